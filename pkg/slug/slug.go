// Package slug generates filesystem-safe names for asset files, adapted
// from the teacher's workspace slug generator.
package slug

import (
	"regexp"
	"strings"
)

var (
	invalidCharsRegex = regexp.MustCompile(`[^a-z0-9-]`)
	separatorRegex    = regexp.MustCompile(`[\s-]+`)
	multiDashRegex    = regexp.MustCompile(`-{2,}`)
)

const maxLength = 64

// Generate normalizes name into a lowercase, hyphenated, length-bounded
// slug: lowercase, collapse whitespace/hyphens, strip anything but
// [a-z0-9-], trim edges, truncate.
func Generate(name string) string {
	s := strings.ToLower(name)
	s = separatorRegex.ReplaceAllString(s, "-")
	s = invalidCharsRegex.ReplaceAllString(s, "")
	s = multiDashRegex.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")

	if len(s) > maxLength {
		s = strings.Trim(s[:maxLength], "-")
	}

	if s == "" {
		s = "asset"
	}
	return s
}
