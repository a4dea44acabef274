package searcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quarrysearch/quarry/directory"
	"github.com/quarrysearch/quarry/index"
	"github.com/quarrysearch/quarry/schema"
)

func testSchema() *schema.Schema {
	return &schema.Schema{Fields: []schema.Field{
		{Name: "title", Kind: schema.KindText, Indexed: true, Stored: true},
		{Name: "body", Kind: schema.KindText, Indexed: true, Stored: false},
		{Name: "isbn", Kind: schema.KindKeyword, Indexed: true, Stored: true},
	}}
}

func testIndex(t *testing.T, docs []schema.Document) (*Searcher, string) {
	t.Helper()
	ctx := context.Background()
	root := t.TempDir()
	dirs := func(indexID string) (directory.Directory, error) {
		return directory.NewLocalDirectory(root + "/" + indexID)
	}
	provider := index.NewProvider(dirs, schema.Static{Schema: testSchema()}, nil)

	idx, err := provider.LoadIndex(ctx, "books")
	require.NoError(t, err)
	w := idx.Writer()
	for _, d := range docs {
		require.NoError(t, w.AddDocument(d))
	}
	require.NoError(t, w.Commit(ctx))
	require.NoError(t, w.WaitMerges())

	return New(provider, nil), "books"
}

func libraryDocs() []schema.Document {
	return []schema.Document{
		{schema.IDField: "d1", "title": "Dune", "body": "A desert planet and the spice that binds the universe", "isbn": "978-0441"},
		{schema.IDField: "d2", "title": "Dune Messiah", "body": "The desert emperor faces conspiracies", "isbn": "978-0442"},
		{schema.IDField: "d3", "title": "Hyperion", "body": "Pilgrims travel to the time tombs", "isbn": "978-0553"},
	}
}

func TestSearch_RanksByRelevance(t *testing.T) {
	s, id := testIndex(t, libraryDocs())

	res, err := s.Search(context.Background(), id, "dune", 10)
	require.NoError(t, err)
	require.Len(t, res.Matches, 2)
	// "Dune" is the entire title of d1 but only half of d2's, so d1 scores
	// higher on field length normalization.
	require.Equal(t, "d1", res.Matches[0].Doc.ID())
	require.Equal(t, "d2", res.Matches[1].Doc.ID())
	require.Greater(t, res.Matches[0].Score, res.Matches[1].Score)
}

func TestSearch_MatchesUnstoredField(t *testing.T) {
	s, id := testIndex(t, libraryDocs())

	res, err := s.Search(context.Background(), id, "pilgrims", 10)
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	require.Equal(t, "d3", res.Matches[0].Doc.ID())
	// body is indexed but not stored, so the hit carries no body value.
	_, ok := res.Matches[0].Doc["body"]
	require.False(t, ok)
}

func TestSearch_KeywordFieldIsVerbatim(t *testing.T) {
	s, id := testIndex(t, libraryDocs())
	ctx := context.Background()

	res, err := s.Search(ctx, id, "978-0553", 10)
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	require.Equal(t, "d3", res.Matches[0].Doc.ID())
}

func TestSearch_LimitAndDefault(t *testing.T) {
	s, id := testIndex(t, libraryDocs())
	ctx := context.Background()

	res, err := s.Search(ctx, id, "the desert dune", 1)
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)

	res, err = s.Search(ctx, id, "the desert dune", 0)
	require.NoError(t, err)
	require.NotEmpty(t, res.Matches)
	require.LessOrEqual(t, len(res.Matches), DefaultLimit)
}

func TestSearch_NoMatches(t *testing.T) {
	s, id := testIndex(t, libraryDocs())

	res, err := s.Search(context.Background(), id, "zebra", 10)
	require.NoError(t, err)
	require.Empty(t, res.Matches)
}

func TestSearch_SnippetsHighlightStoredText(t *testing.T) {
	s, id := testIndex(t, libraryDocs())

	res, err := s.Search(context.Background(), id, "messiah", 10)
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	require.Equal(t, "Dune <b>Messiah</b>", res.Matches[0].Snippets["title"])
	// No snippet for the unstored body field.
	_, ok := res.Matches[0].Snippets["body"]
	require.False(t, ok)
}

func TestFragment_WindowsLongText(t *testing.T) {
	terms := map[string]struct{}{"spice": {}}
	text := "He who controls the spice controls the universe, as every noble house on Arrakis knows all too well by now."
	got := fragment(text, terms)
	require.Contains(t, got, "<b>spice</b>")
	require.Contains(t, got, "…")
	require.NotContains(t, got, "by now")
}

func TestFragment_NoMatch(t *testing.T) {
	require.Empty(t, fragment("nothing to see here", map[string]struct{}{"spice": {}}))
}
