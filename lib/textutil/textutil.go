package textutil

import (
	"regexp"
	"strings"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.Trim(name, " \n\t")
	name = whitespaceRegex.ReplaceAllString(name, "")
	return name
}

var nonWordRegex = regexp.MustCompile(`[^\w\s-]`)
var hyphenRunRegex = regexp.MustCompile(`[-\s]+`)

// Slug derives a filesystem/URL-safe identifier from a program name.
// Always non-empty: a name that strips down to nothing becomes "workout".
func Slug(name string) string {
	name = strings.ToLower(name)
	name = nonWordRegex.ReplaceAllString(name, "")
	name = hyphenRunRegex.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-")
	if name == "" {
		return "workout"
	}
	return name
}
