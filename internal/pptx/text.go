package pptx

import (
	"strings"
	"unicode"
)

// SanitizeText prepares free text for a slide run. Tabs and line breaks collapse to spaces,
// other control characters are dropped and "--" becomes an em dash. Entity escaping of
// & < > " ' is left to the XML serializer.
func SanitizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			b.WriteByte(' ')
		case unicode.IsControl(r):
		case r == unicode.ReplacementChar:
		default:
			b.WriteRune(r)
		}
	}
	return strings.ReplaceAll(b.String(), "--", "—")
}
