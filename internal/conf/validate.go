// conf/validate.go

package conf

import (
	"errors"
	"fmt"
	"strconv"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	// Validate WebServer settings
	if err := validateWebServerSettings(&settings.WebServer); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	// Validate Output settings
	if err := validateOutputSettings(&settings.Output); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	// Validate Images settings
	if err := validateImageSettings(&settings.Images); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	// Validate JobQueue settings
	if err := validateJobQueueSettings(&settings.JobQueue); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateWebServerSettings(settings *WebServerSettings) error {
	if !settings.Enabled {
		return nil
	}
	port, err := strconv.Atoi(settings.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid WebServer port: %s", settings.Port)
	}
	return nil
}

func validateOutputSettings(settings *OutputSettings) error {
	if !settings.SQLite.Enabled && !settings.MySQL.Enabled {
		return errors.New("no database enabled, enable either SQLite or MySQL")
	}
	if settings.SQLite.Enabled && settings.SQLite.Path == "" {
		return errors.New("SQLite database path is required")
	}
	if settings.MySQL.Enabled {
		if settings.MySQL.Host == "" || settings.MySQL.Database == "" {
			return errors.New("MySQL host and database are required")
		}
		if _, err := strconv.Atoi(settings.MySQL.Port); err != nil {
			return fmt.Errorf("invalid MySQL port: %s", settings.MySQL.Port)
		}
	}
	return nil
}

func validateImageSettings(settings *ImageSettings) error {
	if settings.CacheDir == "" {
		return errors.New("image cache directory is required")
	}
	if settings.DefaultImage == "" {
		return errors.New("default sentinel image name is required")
	}
	if settings.Provider.RateLimit < 0 {
		return fmt.Errorf("image provider rate limit must not be negative: %f", settings.Provider.RateLimit)
	}
	return nil
}

func validateJobQueueSettings(settings *JobQueueSettings) error {
	if settings.MaxJobs < 1 {
		return fmt.Errorf("jobqueue maxjobs must be at least 1: %d", settings.MaxJobs)
	}
	if settings.Interval < 1 {
		return fmt.Errorf("jobqueue interval must be at least 1 second: %d", settings.Interval)
	}
	return nil
}
