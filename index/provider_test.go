package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrysearch/quarry/directory"
	"github.com/quarrysearch/quarry/filestore"
	"github.com/quarrysearch/quarry/schema"
)

func testProvider(t *testing.T) (*Provider, map[string]*filestore.MemoryStore) {
	t.Helper()

	stores := make(map[string]*filestore.MemoryStore)
	dirs := func(indexID string) (directory.Directory, error) {
		store, ok := stores[indexID]
		if !ok {
			store = filestore.NewMemoryStore()
			stores[indexID] = store
		}
		return directory.NewStoreDirectory(store), nil
	}

	provider, err := schema.NewProvider([]byte(`{
		"indexes": [{"prefix": "books", "fields": [
			{"name": "title", "kind": "text", "indexed": true, "stored": true}
		]}]
	}`))
	require.NoError(t, err)

	return NewProvider(dirs, provider, nil), stores
}

func TestProvider_CreatesOnFirstLoad(t *testing.T) {
	ctx := context.Background()
	p, stores := testProvider(t)

	idx, err := p.LoadIndex(ctx, "books-2024")
	require.NoError(t, err)
	require.NotNil(t, idx)

	// The location was initialized durably.
	ok, err := stores["books-2024"].Exists(ctx, MetaFileName)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestProvider_SharedHandle(t *testing.T) {
	ctx := context.Background()
	p, _ := testProvider(t)

	first, err := p.LoadIndex(ctx, "books-2024")
	require.NoError(t, err)
	second, err := p.LoadIndex(ctx, "books-2024")
	require.NoError(t, err)

	assert.Same(t, first, second, "handles must be shared by reference")
}

func TestProvider_UnknownSchema(t *testing.T) {
	p, _ := testProvider(t)

	_, err := p.LoadIndex(context.Background(), "movies-2024")
	require.ErrorIs(t, err, schema.ErrSchemaNotFound)
}

func TestProvider_OpensExistingWithoutSchemaLookup(t *testing.T) {
	ctx := context.Background()
	p, stores := testProvider(t)

	_, err := p.LoadIndex(ctx, "books-2024")
	require.NoError(t, err)

	// A second provider without the matching config entry can still open
	// the existing index: the schema lives in the meta record.
	empty, err := schema.NewProvider([]byte(`{"indexes": []}`))
	require.NoError(t, err)

	dirs := func(indexID string) (directory.Directory, error) {
		return directory.NewStoreDirectory(stores[indexID]), nil
	}
	reopener := NewProvider(dirs, empty, nil)

	idx, err := reopener.LoadIndex(ctx, "books-2024")
	require.NoError(t, err)
	require.Len(t, idx.Schema().Fields, 1)
}

func TestProvider_CorruptLocation(t *testing.T) {
	ctx := context.Background()

	store := filestore.NewMemoryStore()
	require.NoError(t, store.WriteFile(ctx, MetaFileName, []byte("garbage")))

	dirs := func(string) (directory.Directory, error) {
		return directory.NewStoreDirectory(store), nil
	}
	p := NewProvider(dirs, schema.Static{Schema: testSchema()}, nil)

	_, err := p.LoadIndex(ctx, "books-broken")
	require.ErrorIs(t, err, ErrDirectoryOpen)
}
