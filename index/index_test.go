package index

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrysearch/quarry/directory"
	"github.com/quarrysearch/quarry/filestore"
	"github.com/quarrysearch/quarry/schema"
)

func testSchema() *schema.Schema {
	return &schema.Schema{Fields: []schema.Field{
		{Name: "title", Kind: schema.KindText, Indexed: true, Stored: true},
		{Name: "body", Kind: schema.KindText, Indexed: true, Stored: false},
		{Name: "isbn", Kind: schema.KindKeyword, Indexed: true, Stored: true},
	}}
}

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	dir := directory.NewStoreDirectory(filestore.NewMemoryStore())
	idx, err := Create(context.Background(), "books-test", dir, testSchema(), nil)
	require.NoError(t, err)
	return idx
}

func doc(id, title string) schema.Document {
	return schema.Document{
		schema.IDField: id,
		"title":        title,
	}
}

func commitAndDrain(t *testing.T, w *Writer) {
	t.Helper()
	require.NoError(t, w.Commit(context.Background()))
	require.NoError(t, w.WaitMerges())
}

func TestWriter_IndexAndRead(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)

	w := idx.Writer()
	require.NoError(t, w.AddDocument(schema.Document{
		schema.IDField: "book-1",
		"title":        "The Old Man and the Sea",
		"body":         "He was an old man who fished alone in a skiff in the Gulf Stream",
	}))
	commitAndDrain(t, w)

	r, err := idx.Reader(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, r.DocCount())

	got, ok := r.Doc("book-1")
	require.True(t, ok)
	assert.Equal(t, "The Old Man and the Sea", got["title"])
	// body is indexed but not stored.
	_, stored := got["body"]
	assert.False(t, stored)

	postings := r.TermPostings("body", "gulf")
	require.Len(t, postings, 1)
	assert.Equal(t, uint32(1), postings[0].Freq)
}

func TestWriter_UpsertIdempotence(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)

	w := idx.Writer()
	require.NoError(t, w.AddDocument(doc("book-1", "first")))
	commitAndDrain(t, w)

	w = idx.Writer()
	require.NoError(t, w.AddDocument(doc("book-1", "second")))
	commitAndDrain(t, w)

	r, err := idx.Reader(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, r.DocCount())

	got, ok := r.Doc("book-1")
	require.True(t, ok)
	assert.Equal(t, "second", got["title"])

	// The superseded posting must be gone.
	assert.Empty(t, r.TermPostings("title", "first"))
	assert.Len(t, r.TermPostings("title", "second"), 1)
}

func TestWriter_OrderSensitivity(t *testing.T) {
	ctx := context.Background()

	t.Run("add then delete yields nothing", func(t *testing.T) {
		idx := newTestIndex(t)
		w := idx.Writer()
		require.NoError(t, w.AddDocument(doc("1", "A")))
		w.DeleteByID("1")
		commitAndDrain(t, w)

		r, err := idx.Reader(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, r.DocCount())
		_, ok := r.Doc("1")
		assert.False(t, ok)
	})

	t.Run("last add wins within a batch", func(t *testing.T) {
		idx := newTestIndex(t)
		w := idx.Writer()
		require.NoError(t, w.AddDocument(doc("1", "A")))
		require.NoError(t, w.AddDocument(doc("1", "B")))
		commitAndDrain(t, w)

		r, err := idx.Reader(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, r.DocCount())
		got, ok := r.Doc("1")
		require.True(t, ok)
		assert.Equal(t, "B", got["title"])
	})

	t.Run("add delete re-add within a batch keeps one copy", func(t *testing.T) {
		idx := newTestIndex(t)
		w := idx.Writer()
		require.NoError(t, w.AddDocument(doc("1", "A")))
		w.DeleteByID("1")
		require.NoError(t, w.AddDocument(doc("1", "C")))
		commitAndDrain(t, w)

		r, err := idx.Reader(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, r.DocCount())
		got, ok := r.Doc("1")
		require.True(t, ok)
		assert.Equal(t, "C", got["title"])
		assert.Len(t, r.TermPostings("title", "c"), 1)

		// A later upsert must supersede the doc completely.
		w = idx.Writer()
		require.NoError(t, w.AddDocument(doc("1", "D")))
		commitAndDrain(t, w)

		r, err = idx.Reader(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, r.DocCount())
		got, _ = r.Doc("1")
		assert.Equal(t, "D", got["title"])
		assert.Empty(t, r.TermPostings("title", "c"))
	})

	t.Run("delete then re-add keeps the re-added doc", func(t *testing.T) {
		idx := newTestIndex(t)
		w := idx.Writer()
		require.NoError(t, w.AddDocument(doc("1", "A")))
		commitAndDrain(t, w)

		w = idx.Writer()
		w.DeleteByID("1")
		require.NoError(t, w.AddDocument(doc("1", "C")))
		commitAndDrain(t, w)

		r, err := idx.Reader(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, r.DocCount())
		got, _ := r.Doc("1")
		assert.Equal(t, "C", got["title"])
	})
}

func TestWriter_DeleteAbsentIDIsNoop(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)

	w := idx.Writer()
	w.DeleteByID("never-existed")
	commitAndDrain(t, w)

	r, err := idx.Reader(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, r.DocCount())
}

func TestCommit_Visibility(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)

	w := idx.Writer()
	require.NoError(t, w.AddDocument(doc("1", "staged")))

	// A reader opened before commit must not see staged state.
	before, err := idx.Reader(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, before.DocCount())

	commitAndDrain(t, w)

	// The pre-commit snapshot stays on its generation.
	assert.Equal(t, 0, before.DocCount())

	after, err := idx.Reader(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, after.DocCount())
	assert.Greater(t, after.Generation(), before.Generation())
}

func TestWriter_MergeCompactsSegments(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)

	// Enough commits to cross the merge factor.
	for i := 0; i < DefaultMergeFactor; i++ {
		w := idx.Writer()
		require.NoError(t, w.AddDocument(doc(fmt.Sprintf("book-%d", i), fmt.Sprintf("title %d", i))))
		commitAndDrain(t, w)
	}

	r, err := idx.Reader(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultMergeFactor, r.DocCount())
	assert.Equal(t, 1, r.SegmentCount(), "merge should leave a single segment")

	// All documents survive the merge.
	for i := 0; i < DefaultMergeFactor; i++ {
		_, ok := r.Doc(fmt.Sprintf("book-%d", i))
		assert.True(t, ok)
	}
}

func TestWriter_MergeDropsTombstonedDocs(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)

	w := idx.Writer()
	require.NoError(t, w.AddDocument(doc("keep", "kept")))
	require.NoError(t, w.AddDocument(doc("drop", "dropped")))
	commitAndDrain(t, w)

	// Filler commits so that the last one crosses the merge factor.
	for i := 0; i < DefaultMergeFactor-1; i++ {
		w = idx.Writer()
		if i == 0 {
			w.DeleteByID("drop")
		}
		require.NoError(t, w.AddDocument(doc(fmt.Sprintf("filler-%d", i), "filler")))
		commitAndDrain(t, w)
	}

	r, err := idx.Reader(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, r.SegmentCount())
	_, ok := r.Doc("drop")
	assert.False(t, ok)
	_, ok = r.Doc("keep")
	assert.True(t, ok)
}

func TestIndex_ReopenFromDurableState(t *testing.T) {
	ctx := context.Background()
	store := filestore.NewMemoryStore()
	dir := directory.NewStoreDirectory(store)

	idx, err := Create(ctx, "books-test", dir, testSchema(), nil)
	require.NoError(t, err)

	w := idx.Writer()
	require.NoError(t, w.AddDocument(doc("book-1", "durable")))
	commitAndDrain(t, w)

	// A fresh process sees only durable state.
	reopened, err := Open(ctx, "books-test", directory.NewStoreDirectory(store), nil)
	require.NoError(t, err)

	r, err := reopened.Reader(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, r.DocCount())
	got, ok := r.Doc("book-1")
	require.True(t, ok)
	assert.Equal(t, "durable", got["title"])
}

func TestOpen_CorruptMeta(t *testing.T) {
	ctx := context.Background()
	dir := directory.NewStoreDirectory(filestore.NewMemoryStore())
	require.NoError(t, dir.WriteAtomic(ctx, MetaFileName, []byte("not json")))

	_, err := Open(ctx, "broken", dir, nil)
	require.ErrorIs(t, err, ErrDirectoryOpen)
}

func TestReload_SeesForeignCommit(t *testing.T) {
	ctx := context.Background()
	store := filestore.NewMemoryStore()

	idx, err := Create(ctx, "books-test", directory.NewStoreDirectory(store), testSchema(), nil)
	require.NoError(t, err)

	// Another handle over the same durable state commits.
	other, err := Open(ctx, "books-test", directory.NewStoreDirectory(store), nil)
	require.NoError(t, err)
	w := other.Writer()
	require.NoError(t, w.AddDocument(doc("book-1", "elsewhere")))
	commitAndDrain(t, w)

	r, err := idx.Reload(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, r.DocCount())
}

func TestInstall_IgnoresStaleGeneration(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)

	w := idx.Writer()
	require.NoError(t, w.AddDocument(doc("1", "A")))
	commitAndDrain(t, w)

	// Snapshot the meta as a concurrent reader would, then let a newer
	// commit land before the snapshot is handed back.
	stale := idx.currentMeta()

	w = idx.Writer()
	require.NoError(t, w.AddDocument(doc("2", "B")))
	commitAndDrain(t, w)
	require.Equal(t, uint64(2), idx.Generation())

	idx.install(stale)

	assert.Equal(t, uint64(2), idx.Generation())
	r, err := idx.Reader(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, r.DocCount())
}
