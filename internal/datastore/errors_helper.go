// Package datastore provides error handling helpers for database operations
package datastore

import (
	"strings"

	"github.com/go-sql-driver/mysql"
	sqlite3 "github.com/mattn/go-sqlite3"
	"gorm.io/gorm"

	"github.com/carplateapi/carplate-go/internal/errors"
)

var errNotOpen = errors.NewStd("database connection is not initialized")

// mysqlDuplicateEntry is the MySQL error number for unique key violations.
const mysqlDuplicateEntry = 1062

// dbError creates a properly categorized database error with context
func dbError(err error, operation string, context ...any) error {
	builder := errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation)

	// Add context pairs
	for i := 0; i < len(context)-1; i += 2 {
		if key, ok := context[i].(string); ok {
			builder = builder.Context(key, context[i+1])
		}
	}

	return builder.Build()
}

// notFoundError creates a not-found error for an unknown id or plate
func notFoundError(operation string, context ...any) error {
	builder := errors.Newf("registration not found").
		Component("datastore").
		Category(errors.CategoryNotFound).
		Context("operation", operation)

	for i := 0; i < len(context)-1; i += 2 {
		if key, ok := context[i].(string); ok {
			builder = builder.Context(key, context[i+1])
		}
	}

	return builder.Build()
}

// conflictError creates a conflict error for a duplicate plate
func conflictError(err error, operation string, context ...any) error {
	builder := errors.New(err).
		Component("datastore").
		Category(errors.CategoryConflict).
		Context("operation", operation)

	for i := 0; i < len(context)-1; i += 2 {
		if key, ok := context[i].(string); ok {
			builder = builder.Context(key, context[i+1])
		}
	}

	return builder.Build()
}

// storeError maps a raw gorm/driver error to the matching category.
func storeError(err error, operation string, context ...any) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return notFoundError(operation, context...)
	case isUniqueViolation(err):
		return conflictError(err, operation, context...)
	default:
		return dbError(err, operation, context...)
	}
}

// isUniqueViolation reports whether err is a unique constraint violation from
// either database backend.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint &&
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlDuplicateEntry
	}

	// gorm wraps some driver errors into plain errors, fall back to matching
	// the well-known messages.
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "Duplicate entry")
}
