// Package directory adapts durable storage backends to the filesystem
// contract required by the embedded index engine.
//
// Two interchangeable backends exist: StoreDirectory maps every operation
// onto the transactional file store, while LocalDirectory uses a directory
// on a shared mounted filesystem. Selection happens at construction; the
// engine never learns which backend it runs on.
package directory

import "context"

// Directory is the file model consumed by the index engine.
//
// Read of a path without content yields empty bytes, not an error, on every
// backend; callers gate reads on Exists when absence matters.
type Directory interface {
	// Read returns the full content of path.
	Read(ctx context.Context, path string) ([]byte, error)

	// WriteAtomic replaces the content of path wholesale. A file is never
	// observable in a partially written state.
	WriteAtomic(ctx context.Context, path string, data []byte) error

	// Delete removes path from listings and existence checks.
	Delete(ctx context.Context, path string) error

	// List enumerates the paths currently present.
	List(ctx context.Context) ([]string, error)

	// Exists reports whether path is present.
	Exists(ctx context.Context, path string) (bool, error)
}
