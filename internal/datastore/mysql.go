package datastore

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/carplateapi/carplate-go/internal/conf"
)

// MySQLStore implements DataStore for MySQL
type MySQLStore struct {
	DataStore
	Settings *conf.Settings
}

func validateMySQLConfig(settings *conf.Settings) error {
	mysqlSettings := settings.Output.MySQL
	if mysqlSettings.Host == "" || mysqlSettings.Database == "" {
		return fmt.Errorf("MySQL host and database are required")
	}
	return nil
}

// buildMySQLDSN constructs the connection string. clientFoundRows makes the
// driver report matched rows instead of changed rows, so an update that
// writes values identical to the stored ones still counts as affecting the
// row. The store relies on that to tell "row missing" apart from "row
// unchanged".
func buildMySQLDSN(settings *conf.Settings) string {
	mysqlSettings := settings.Output.MySQL
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local&clientFoundRows=true",
		mysqlSettings.Username, mysqlSettings.Password,
		mysqlSettings.Host, mysqlSettings.Port,
		mysqlSettings.Database)
}

// Open sets up the MySQL database connection
func (store *MySQLStore) Open() error {
	if err := validateMySQLConfig(store.Settings); err != nil {
		return err // validateMySQLConfig returns a properly formatted error
	}

	dsn := buildMySQLDSN(store.Settings)

	// Create a new GORM logger
	newLogger := createGormLogger()

	// Open the MySQL database
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: newLogger})
	if err != nil {
		return fmt.Errorf("failed to open MySQL database: %w", err)
	}

	store.DB = db
	return performAutoMigration(db, store.Settings.Debug, "MySQL",
		fmt.Sprintf("%s@%s:%s/%s", store.Settings.Output.MySQL.Username,
			store.Settings.Output.MySQL.Host, store.Settings.Output.MySQL.Port,
			store.Settings.Output.MySQL.Database))
}

// Close handles close specific to MySQL
func (store *MySQLStore) Close() error {
	if store.DB == nil {
		return nil
	}
	sqlDB, err := store.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to access MySQL connection: %w", err)
	}
	return sqlDB.Close()
}
