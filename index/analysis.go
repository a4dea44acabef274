package index

import (
	"strings"
	"unicode"

	"github.com/quarrysearch/quarry/schema"
)

// Tokenize splits text into lowercase runs of letters and digits.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// analyze returns the index terms for one field value. Text fields are
// tokenized; keyword fields index the verbatim value as a single term.
func analyze(field schema.Field, value string) []string {
	if field.Kind == schema.KindKeyword {
		if value == "" {
			return nil
		}
		return []string{value}
	}
	return Tokenize(value)
}
