package searcher

import (
	"strings"
	"unicode"

	"github.com/quarrysearch/quarry/schema"
)

const (
	// snippetRadius is the number of words kept on either side of the first
	// matching term.
	snippetRadius  = 8
	highlightOpen  = "<b>"
	highlightClose = "</b>"
)

// wordSpan locates one token inside the original text.
type wordSpan struct {
	start int
	end   int
	lower string
}

// snippets builds a highlighted fragment per stored text field that contains
// at least one query term. Matched terms are wrapped in <b> tags.
func snippets(s *schema.Schema, doc schema.Document, tokens []string) map[string]string {
	if len(tokens) == 0 {
		return nil
	}
	terms := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		terms[t] = struct{}{}
	}

	var out map[string]string
	for _, field := range s.Fields {
		if field.Kind != schema.KindText || !field.Stored {
			continue
		}
		value, ok := doc[field.Name]
		if !ok {
			continue
		}
		if frag := fragment(value, terms); frag != "" {
			if out == nil {
				out = make(map[string]string)
			}
			out[field.Name] = frag
		}
	}
	return out
}

// fragment extracts a window around the first matching word and highlights
// every match within it. Returns "" when no word matches.
func fragment(text string, terms map[string]struct{}) string {
	spans := scanWords(text)
	first := -1
	for i, w := range spans {
		if _, ok := terms[w.lower]; ok {
			first = i
			break
		}
	}
	if first == -1 {
		return ""
	}

	lo := first - snippetRadius
	if lo < 0 {
		lo = 0
	}
	hi := first + snippetRadius
	if hi >= len(spans) {
		hi = len(spans) - 1
	}

	var sb strings.Builder
	if lo > 0 {
		sb.WriteString("… ")
	}
	cursor := spans[lo].start
	for i := lo; i <= hi; i++ {
		w := spans[i]
		sb.WriteString(text[cursor:w.start])
		if _, ok := terms[w.lower]; ok {
			sb.WriteString(highlightOpen)
			sb.WriteString(text[w.start:w.end])
			sb.WriteString(highlightClose)
		} else {
			sb.WriteString(text[w.start:w.end])
		}
		cursor = w.end
	}
	if hi < len(spans)-1 {
		sb.WriteString(" …")
	}
	return sb.String()
}

// scanWords finds the letter and digit runs of text with their byte offsets,
// mirroring how indexed text is tokenized.
func scanWords(text string) []wordSpan {
	var spans []wordSpan
	start := -1
	for i, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			if start == -1 {
				start = i
			}
			continue
		}
		if start != -1 {
			spans = append(spans, wordSpan{start: start, end: i, lower: strings.ToLower(text[start:i])})
			start = -1
		}
	}
	if start != -1 {
		spans = append(spans, wordSpan{start: start, end: len(text), lower: strings.ToLower(text[start:])})
	}
	return spans
}
