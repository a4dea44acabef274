// Package searcher executes full-text queries against indexes and shapes the
// results for the service boundary.
package searcher

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/quarrysearch/quarry/index"
	"github.com/quarrysearch/quarry/internal/logging"
	"github.com/quarrysearch/quarry/schema"
)

// BM25 parameters.
const (
	k1 = 1.2
	b  = 0.75
)

// DefaultLimit is the result cap applied when a query asks for zero hits.
const DefaultLimit = 10

// Hit is one search result: the stored view of the document, its relevance
// score, and per-field highlighted snippets.
type Hit struct {
	Doc      schema.Document   `json:"doc"`
	Snippets map[string]string `json:"snippets,omitempty"`
	Score    float64           `json:"score"`
}

// Results is the response of a query.
type Results struct {
	Matches []Hit `json:"matches"`
}

// Searcher runs queries against indexes resolved through a loader.
type Searcher struct {
	indexes index.Loader
	logger  *slog.Logger
}

// New creates a Searcher.
func New(indexes index.Loader, logger *slog.Logger) *Searcher {
	return &Searcher{
		indexes: indexes,
		logger:  logging.Default(logger).With("component", "searcher"),
	}
}

// Search tokenizes query, scores every live document matching at least one
// term in any indexed field with BM25, and returns the top limit hits in
// descending score order. Scores are summed across fields. The snapshot is
// refreshed first so commits from other processes are visible.
func (s *Searcher) Search(ctx context.Context, indexID, query string, limit int) (*Results, error) {
	idx, err := s.indexes.LoadIndex(ctx, indexID)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", indexID, err)
	}
	r, err := idx.Reload(ctx)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", indexID, err)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	tokens := index.Tokenize(query)
	scores := score(r, strings.TrimSpace(query), tokens)

	rq := &resultQueue{}
	for ref, sc := range scores {
		if rq.Len() < limit {
			heap.Push(rq, resultItem{ref: ref, score: sc})
		} else if sc > rq.items[0].score {
			rq.items[0] = resultItem{ref: ref, score: sc}
			heap.Fix(rq, 0)
		}
	}

	hits := make([]Hit, 0, rq.Len())
	for _, item := range rq.items {
		doc := r.Document(item.ref)
		hits = append(hits, Hit{
			Doc:      doc,
			Snippets: snippets(r.Schema(), doc, tokens),
			Score:    item.score,
		})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	s.logger.Debug("query executed", "index_id", indexID, "terms", len(tokens), "hits", len(hits))
	return &Results{Matches: hits}, nil
}

// score accumulates per-document BM25 contributions over every indexed
// field. Text fields match the tokenized query terms; keyword fields are
// indexed verbatim, so they match the whole query string.
func score(r *index.Reader, query string, tokens []string) map[index.DocRef]float64 {
	scores := make(map[index.DocRef]float64)
	total := r.DocCount()
	if total == 0 {
		return scores
	}

	for _, field := range r.Schema().Fields {
		if !field.Indexed {
			continue
		}
		avgLen := r.AvgFieldLength(field.Name)
		if avgLen == 0 {
			continue
		}
		fieldTokens := tokens
		if field.Kind == schema.KindKeyword {
			fieldTokens = []string{query}
		}
		for _, token := range fieldTokens {
			postings := r.TermPostings(field.Name, token)
			if len(postings) == 0 {
				continue
			}
			idf := idf(total, len(postings))
			for _, p := range postings {
				tf := float64(p.Freq)
				docLen := float64(r.FieldLength(p.Ref, field.Name))
				num := tf * (k1 + 1)
				denom := tf + k1*(1-b+b*(docLen/avgLen))
				scores[p.Ref] += idf * (num / denom)
			}
		}
	}
	return scores
}

// idf = log(1 + (N - n + 0.5) / (n + 0.5))
func idf(total, df int) float64 {
	N := float64(total)
	n := float64(df)
	return math.Log(1 + (N-n+0.5)/(n+0.5))
}
