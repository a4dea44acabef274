package filestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	ok, err := store.Exists(ctx, "a.txt")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.WriteFile(ctx, "a.txt", []byte("hi")))

	ok, err = store.Exists(ctx, "a.txt")
	require.NoError(t, err)
	require.True(t, ok)

	paths, err := store.ListFiles(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a.txt"}, paths)

	content, err := store.GetContent(ctx, "a.txt")
	require.NoError(t, err)
	require.Equal(t, []byte("hi"), content)

	require.NoError(t, store.Delete(ctx, "a.txt"))

	ok, err = store.Exists(ctx, "a.txt")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryStore_MissingContentIsEmpty(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	content, err := store.GetContent(ctx, "nope.bin")
	require.NoError(t, err)
	require.Empty(t, content)
	require.NotNil(t, content)
}

func TestMemoryStore_ListingTracksHeaders(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.WriteFile(ctx, "b", []byte("2")))
	require.NoError(t, store.WriteFile(ctx, "a", []byte("1")))
	require.NoError(t, store.WriteFile(ctx, "c", []byte("3")))
	require.NoError(t, store.Delete(ctx, "b"))

	paths, err := store.ListFiles(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "c"}, paths)

	// Rewriting a deleted path resurfaces it.
	require.NoError(t, store.WriteFile(ctx, "b", []byte("2")))
	paths, err = store.ListFiles(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, paths)
}

func TestMemoryStore_TransactionAtomicity(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(WithMaxItemSize(4))

	err := store.WriteFile(ctx, "big.bin", []byte("too large"))
	require.ErrorIs(t, err, ErrTransactionFailed)

	// Neither record may exist after a failed transaction.
	ok, err := store.Exists(ctx, "big.bin")
	require.NoError(t, err)
	require.False(t, ok)

	content, err := store.GetContent(ctx, "big.bin")
	require.NoError(t, err)
	require.Empty(t, content)

	paths, err := store.ListFiles(ctx)
	require.NoError(t, err)
	require.Empty(t, paths)
}

func TestMemoryStore_DeleteLeavesOrphanedContent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.WriteFile(ctx, "a", []byte("1")))
	require.NoError(t, store.WriteFile(ctx, "b", []byte("2")))
	require.NoError(t, store.Delete(ctx, "a"))

	// The content record survives the delete but is not surfaced.
	ok, err := store.Exists(ctx, "a")
	require.NoError(t, err)
	require.False(t, ok)

	n, err := store.OrphanedContent(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
