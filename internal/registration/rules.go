// Package registration implements the validation and normalization rules
// applied to vehicle registration fields before persistence.
package registration

import (
	"regexp"

	"github.com/carplateapi/carplate-go/internal/errors"
)

// carPlateRegex is the approved jurisdictional plate grammar. The pattern set
// is fixed, matching is case-insensitive.
const carPlateRegex = `(?i)^([a-zA-Z]{2,3}\d{3}|` +
	`[a-zA-Z]{2}\d{2}|` +
	`\d{3}[a-zA-Z]{2}|` +
	`\d{2}[a-zA-Z]{3}|` +
	`\d{1}[a-zA-Z]{4,5}|` +
	`\d{4}[a-zA-Z]{1,2}|` +
	`[THP]\d{5}|\d{5,6}|` +
	`\d{4}H|P\d{4}|` +
	`E[a-zA-Z]\d{4})$`

// nameShapeRegex requires at least two whitespace separated word tokens.
// Trailing whitespace after the last token is tolerated. It applies
// identically to owner names and car model names.
const nameShapeRegex = `^\w+\s+(\w+\s*)+$`

var (
	platePattern     = regexp.MustCompile(carPlateRegex)
	nameShapePattern = regexp.MustCompile(nameShapeRegex)
)

// ValidatePlate checks the given plate string against the approved plate
// grammar. It returns a validation error if the plate does not match any of
// the approved patterns.
func ValidatePlate(plate string) error {
	if !platePattern.MatchString(plate) {
		return errors.Newf("provided car plate does not match any approved pattern: %q", plate).
			Component("registration").
			Category(errors.CategoryValidation).
			Context("field", "plate").
			Build()
	}
	return nil
}

// ValidateNameShape checks that the given string consists of at least two
// whitespace separated alphanumeric words. One word strings are rejected.
func ValidateNameShape(field, s string) error {
	if !nameShapePattern.MatchString(s) {
		return errors.Newf("%s must be at least two alpha-numeric words: %q", field, s).
			Component("registration").
			Category(errors.CategoryValidation).
			Context("field", field).
			Build()
	}
	return nil
}
