package product

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NormalizeSize upper-cases a size label ("xl" -> "XL"). Cart and order
// snapshots go through the same function so they compare equal.
func NormalizeSize(s string) string {
	return cases.Upper(language.Und).String(strings.TrimSpace(s))
}

// NormalizeColor lower-cases a color name.
func NormalizeColor(s string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(s))
}
