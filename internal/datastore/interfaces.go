// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"log"
	"os"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/carplateapi/carplate-go/internal/conf"
	"github.com/carplateapi/carplate-go/internal/registration"
)

// Interface abstracts the underlying database implementation and defines the
// operations available on the registration store.
type Interface interface {
	Open() error
	Close() error
	Create(reg *Registration) error
	GetByID(id uint) (Registration, error)
	GetByPlate(plate string) (Registration, error)
	List(filter *RegistrationFilter) ([]Registration, error)
	Update(reg *Registration) error
	Delete(id uint) error
	SetImage(plate, imageRef string) error
}

// DataStore implements the registration store using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

// New creates a new datastore instance based on the provided configuration.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{
			Settings: settings,
		}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{
			Settings: settings,
		}
	default:
		return nil
	}
}

// Create inserts a new registration row. Plate uniqueness is enforced by the
// database; a duplicate plate fails with a conflict error and no row is
// created.
func (ds *DataStore) Create(reg *Registration) error {
	if ds.DB == nil {
		return dbError(errNotOpen, "create")
	}

	if err := ds.DB.Create(reg).Error; err != nil {
		return storeError(err, "create", "plate", reg.Plate)
	}
	return nil
}

// GetByID retrieves a registration by its numeric ID.
func (ds *DataStore) GetByID(id uint) (Registration, error) {
	if ds.DB == nil {
		return Registration{}, dbError(errNotOpen, "get_by_id")
	}

	var reg Registration
	if err := ds.DB.First(&reg, id).Error; err != nil {
		return Registration{}, storeError(err, "get_by_id", "id", id)
	}
	return reg, nil
}

// GetByPlate retrieves a registration by its plate string. The lookup is
// case-insensitive: plates are stored normalized, so the incoming value is
// normalized before the exact match.
func (ds *DataStore) GetByPlate(plate string) (Registration, error) {
	if ds.DB == nil {
		return Registration{}, dbError(errNotOpen, "get_by_plate")
	}

	var reg Registration
	normalized := registration.NormalizePlate(plate)
	if err := ds.DB.Where("plate = ?", normalized).First(&reg).Error; err != nil {
		return Registration{}, storeError(err, "get_by_plate", "plate", normalized)
	}
	return reg, nil
}

// List returns registrations matching the given filter, ordered by creation
// time. A nil filter returns all registrations.
func (ds *DataStore) List(filter *RegistrationFilter) ([]Registration, error) {
	if ds.DB == nil {
		return nil, dbError(errNotOpen, "list")
	}

	query := ds.DB.Order("created_at ASC")
	if filter != nil {
		if filter.Plate != "" {
			query = query.Where("plate = ?", registration.NormalizePlate(filter.Plate))
		}
		if filter.Owner != "" {
			query = query.Where("owner = ?", filter.Owner)
		}
		if filter.Search != "" {
			query = query.Where("plate LIKE ?", "%"+registration.NormalizePlate(filter.Search)+"%")
		}
	}

	var regs []Registration
	if err := query.Find(&regs).Error; err != nil {
		return nil, storeError(err, "list")
	}
	return regs, nil
}

// Update persists changed fields of an existing registration. The row must
// exist; a plate collision with another row fails with a conflict error.
func (ds *DataStore) Update(reg *Registration) error {
	if ds.DB == nil {
		return dbError(errNotOpen, "update")
	}

	result := ds.DB.Model(&Registration{}).
		Where("id = ?", reg.ID).
		Select("plate", "owner", "car_model", "needs_image").
		Updates(map[string]any{
			"plate":       reg.Plate,
			"owner":       reg.Owner,
			"car_model":   reg.CarModel,
			"needs_image": reg.NeedsImage,
		})
	if result.Error != nil {
		return storeError(result.Error, "update", "id", reg.ID)
	}
	if result.RowsAffected == 0 {
		return notFoundError("update", "id", reg.ID)
	}
	return nil
}

// Delete removes a registration by its numeric ID.
func (ds *DataStore) Delete(id uint) error {
	if ds.DB == nil {
		return dbError(errNotOpen, "delete")
	}

	result := ds.DB.Delete(&Registration{}, id)
	if result.Error != nil {
		return storeError(result.Error, "delete", "id", id)
	}
	if result.RowsAffected == 0 {
		return notFoundError("delete", "id", id)
	}
	return nil
}

// SetImage records the resolved image reference for the given plate and
// clears the pending-image flag in a single update. This is the only write
// path for ImageRef; it is invoked exclusively by the image retrieval worker.
// Racing workers are tolerated, the last writer's result stands.
func (ds *DataStore) SetImage(plate, imageRef string) error {
	if ds.DB == nil {
		return dbError(errNotOpen, "set_image")
	}

	normalized := registration.NormalizePlate(plate)
	result := ds.DB.Model(&Registration{}).
		Where("plate = ?", normalized).
		Updates(map[string]any{
			"image_ref":   imageRef,
			"needs_image": false,
		})
	if result.Error != nil {
		return storeError(result.Error, "set_image", "plate", normalized)
	}
	if result.RowsAffected == 0 {
		return notFoundError("set_image", "plate", normalized)
	}
	return nil
}

// createGormLogger creates a GORM logger used by both database backends.
func createGormLogger() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: 200 * time.Millisecond,
			LogLevel:      logger.Warn,
			Colorful:      true,
		},
	)
}

// performAutoMigration runs gorm AutoMigrate for the registration schema.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(&Registration{}); err != nil {
		return dbError(err, "auto_migrate", "db_type", dbType)
	}
	if debug {
		log.Printf("%s database connection initialized: %s", dbType, connectionInfo)
	}
	return nil
}
