// model.go this code defines the data model for the application
package datastore

import "time"

// Registration represents a single vehicle license-plate registration.
//
// Plate is stored normalized (trimmed, upper cased), which together with the
// unique index gives case-insensitive uniqueness across all registrations.
// ImageRef and NeedsImage are server controlled: ImageRef is only ever written
// by the image retrieval worker through SetImage, and NeedsImage tracks
// whether an image resolution task must run for the current CarModel value.
type Registration struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time `gorm:"index:idx_registrations_created" json:"created"`
	Plate      string    `gorm:"size:6;uniqueIndex:idx_registrations_plate;not null" json:"plate"`
	Owner      string    `gorm:"size:200;not null" json:"owner"`
	CarModel   string    `gorm:"size:200;not null" json:"car_model"`
	ImageRef   string    `gorm:"size:255" json:"image"`
	NeedsImage bool      `json:"needs_image"`
}

// RegistrationFilter narrows List results.
type RegistrationFilter struct {
	Plate  string // exact match on the normalized plate
	Owner  string // exact match on the normalized owner name
	Search string // substring match against the plate
}
