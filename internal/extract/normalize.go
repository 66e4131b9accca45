// Package extract holds the pure parsing functions that pull commercial
// slots (zone, typology, budget, move-in date, visit window) out of
// free-form inbound text. Every parser is total: it never fails, it returns
// a no-match sentinel instead.
package extract

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize lowercases the text and strips diacritics so all parsers can
// match accent-insensitively ("Nuñez" == "nunez").
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	stripped, _, err := transform.String(stripMarks, text)
	if err != nil {
		stripped = text
	}
	return strings.ToLower(stripped)
}

// CollapseSpaces normalizes inner whitespace to single spaces and trims.
func CollapseSpaces(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
