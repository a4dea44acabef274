package index

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quarrysearch/quarry/schema"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"simple", "The Old Man", []string{"the", "old", "man"}},
		{"punctuation", "eighty-four days; now!", []string{"eighty", "four", "days", "now"}},
		{"digits", "ISBN 978-0684801223", []string{"isbn", "978", "0684801223"}},
		{"unicode", "Crème Brûlée", []string{"crème", "brûlée"}},
		{"empty", "", nil},
		{"only separators", " ... ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.text))
		})
	}
}

func TestAnalyzeKeyword(t *testing.T) {
	field := schema.Field{Name: "isbn", Kind: schema.KindKeyword, Indexed: true}

	assert.Equal(t, []string{"978-0684801223"}, analyze(field, "978-0684801223"))
	assert.Nil(t, analyze(field, ""))
}
