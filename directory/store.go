package directory

import (
	"context"

	"github.com/quarrysearch/quarry/filestore"
)

// StoreDirectory implements Directory on a transactional file store. The
// header record is the sole source of truth for existence and listing; a
// content record lingering after Delete is never surfaced.
type StoreDirectory struct {
	store filestore.FileStore
}

var _ Directory = (*StoreDirectory)(nil)

// NewStoreDirectory wraps a file store as a Directory.
func NewStoreDirectory(store filestore.FileStore) *StoreDirectory {
	return &StoreDirectory{store: store}
}

func (d *StoreDirectory) Read(ctx context.Context, path string) ([]byte, error) {
	return d.store.GetContent(ctx, path)
}

func (d *StoreDirectory) WriteAtomic(ctx context.Context, path string, data []byte) error {
	return d.store.WriteFile(ctx, path, data)
}

func (d *StoreDirectory) Delete(ctx context.Context, path string) error {
	return d.store.Delete(ctx, path)
}

func (d *StoreDirectory) List(ctx context.Context) ([]string, error) {
	return d.store.ListFiles(ctx)
}

func (d *StoreDirectory) Exists(ctx context.Context, path string) (bool, error) {
	return d.store.Exists(ctx, path)
}
