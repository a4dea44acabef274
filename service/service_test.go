package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quarrysearch/quarry/directory"
	"github.com/quarrysearch/quarry/index"
	"github.com/quarrysearch/quarry/indexwriter"
	"github.com/quarrysearch/quarry/schema"
	"github.com/quarrysearch/quarry/searcher"
)

type testEnv struct {
	handler http.Handler
	worker  *indexwriter.Worker
	queue   *indexwriter.MemoryQueue
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()
	dirs := func(indexID string) (directory.Directory, error) {
		return directory.NewLocalDirectory(root + "/" + indexID)
	}
	schemas := schema.Static{Schema: &schema.Schema{Fields: []schema.Field{
		{Name: "title", Kind: schema.KindText, Indexed: true, Stored: true},
		{Name: "author", Kind: schema.KindText, Indexed: true, Stored: true},
	}}}
	provider := index.NewProvider(dirs, schemas, nil)

	bucket := indexwriter.NewMemoryBucket()
	queue := indexwriter.NewMemoryQueue()
	client := indexwriter.NewClient(bucket, queue, nil)
	worker := indexwriter.NewWorker(provider, bucket, queue, nil)

	svc := New(schemas, client, searcher.New(provider, nil), provider, nil)
	return &testEnv{handler: svc.Handler(), worker: worker, queue: queue}
}

func (e *testEnv) drain(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	for e.queue.Len() > 0 {
		msgs, err := e.queue.Receive(ctx, indexwriter.DefaultReceiveMax, 0)
		require.NoError(t, err)
		require.NoError(t, e.worker.HandleBatch(ctx, msgs))
		for _, m := range msgs {
			require.NoError(t, e.queue.Delete(ctx, m.Handle))
		}
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestIndexDoc_AcceptsAndAssignsID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/index/books", map[string]any{"title": "Dune"})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[writeResponse](t, rec)
	require.NotEmpty(t, resp.DocID)
	require.NotEmpty(t, resp.UpdatedAt)
	require.Equal(t, 1, env.queue.Len())
}

func TestIndexDoc_ValidationErrors(t *testing.T) {
	env := newTestEnv(t)

	cases := map[string]any{
		"not an object":    []string{"x"},
		"no schema fields": map[string]any{"publisher": "Ace"},
		"non-string value": map[string]any{"title": 42},
		"empty id":         map[string]any{"__id": "", "title": "Dune"},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/index/books", body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decode[errorResponse](t, rec)
			require.NotEmpty(t, resp.Message)
		})
	}
	require.Equal(t, 0, env.queue.Len())
}

func TestWriteQueryRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/index/books/batch", []map[string]any{
		{"__id": "d1", "title": "Dune", "author": "Frank Herbert"},
		{"__id": "d2", "title": "Hyperion", "author": "Dan Simmons"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 2, decode[batchResponse](t, rec).Count)

	env.drain(t)

	rec = env.do(t, http.MethodPost, "/index/books/query", queryRequest{Query: "herbert"})
	require.Equal(t, http.StatusOK, rec.Code)

	res := decode[searcher.Results](t, rec)
	require.Len(t, res.Matches, 1)
	require.Equal(t, "d1", res.Matches[0].Doc.ID())
	require.Equal(t, "Frank <b>Herbert</b>", res.Matches[0].Snippets["author"])
}

func TestQuery_BeforeDrainSeesNothing(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/index/books", map[string]any{"__id": "d1", "title": "Dune"})
	require.Equal(t, http.StatusOK, rec.Code)

	// The write is acknowledged but not yet applied by a worker.
	rec = env.do(t, http.MethodPost, "/index/books/query", queryRequest{Query: "dune"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, decode[searcher.Results](t, rec).Matches)

	env.drain(t)

	rec = env.do(t, http.MethodPost, "/index/books/query", queryRequest{Query: "dune"})
	require.Len(t, decode[searcher.Results](t, rec).Matches, 1)
}

func TestDeleteDoc(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, http.MethodPost, "/index/books", map[string]any{"__id": "d1", "title": "Dune"})
	env.drain(t)

	rec := env.do(t, http.MethodDelete, "/index/books/doc/d1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "d1", decode[writeResponse](t, rec).DocID)

	env.drain(t)

	rec = env.do(t, http.MethodPost, "/index/books/query", queryRequest{Query: "dune"})
	require.Empty(t, decode[searcher.Results](t, rec).Matches)
}

func TestQuery_EmptyQueryRejected(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/index/books/query", queryRequest{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBatch_EmptyRejected(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/index/books/batch", []map[string]any{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStats(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, http.MethodPost, "/index/books", map[string]any{"__id": "d1", "title": "Dune"})
	env.drain(t)

	rec := env.do(t, http.MethodGet, "/index/books/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	stats := decode[statsResponse](t, rec)
	require.Equal(t, "books", stats.IndexID)
	require.Equal(t, 1, stats.DocCount)
	require.Equal(t, 1, stats.SegmentCount)
	require.NotZero(t, stats.Generation)
}
