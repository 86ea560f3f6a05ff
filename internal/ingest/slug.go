package ingest

import (
	"strings"
	"unicode"
)

// Slugify derives a URL-safe identifier from a book's display name.
// Runs of non-alphanumeric characters collapse to single hyphens.
// e.g., "The Pilgrim's Progress (1678)" -> "the-pilgrim-s-progress-1678"
func Slugify(name string) string {
	var b strings.Builder
	lastHyphen := true // suppress a leading hyphen
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastHyphen = false
		case !lastHyphen:
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "book"
	}
	return slug
}
