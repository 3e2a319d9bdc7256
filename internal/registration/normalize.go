package registration

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// NormalizePlate canonicalizes a plate string for storage: surrounding
// whitespace trimmed, upper cased. All plate lookups and uniqueness checks
// operate on this form.
func NormalizePlate(plate string) string {
	return strings.ToUpper(strings.TrimSpace(plate))
}

// NormalizeOwner canonicalizes an owner name for storage: surrounding
// whitespace trimmed, each word title cased.
func NormalizeOwner(owner string) string {
	return titleCaser.String(strings.TrimSpace(owner))
}

// NormalizeModel canonicalizes a car model name for storage: surrounding
// whitespace trimmed, upper cased.
func NormalizeModel(model string) string {
	return strings.ToUpper(strings.TrimSpace(model))
}

// CacheKey derives the image cache key for a car model: the normalized model
// name with whitespace runs replaced by underscores. Cached image files are
// named <key>.<ext>.
func CacheKey(model string) string {
	return strings.Join(strings.Fields(NormalizeModel(model)), "_")
}
