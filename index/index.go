// Package index implements the embedded segment-file search engine.
//
// An index is a set of immutable segment files plus a meta record inside a
// directory.Directory. All mutation goes through a Writer; writing a new
// meta record is the sole atomicity boundary, so readers opened before a
// commit never observe staged state. Durable backends make the engine safe
// on ephemeral compute: no index state lives outside the directory.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/quarrysearch/quarry/directory"
	"github.com/quarrysearch/quarry/internal/logging"
	"github.com/quarrysearch/quarry/schema"
)

var (
	// ErrDirectoryOpen is returned when an existing index location is
	// corrupt or unreadable.
	ErrDirectoryOpen = errors.New("index: directory open failed")

	// ErrMergeWait is returned when background segment merging failed; the
	// index must not be considered successfully processed.
	ErrMergeWait = errors.New("index: merge wait failed")
)

// Index is a named, durable collection of documents. Handles are shared by
// reference; all consumers within one process observe the same state.
type Index struct {
	id     string
	dir    directory.Directory
	logger *slog.Logger

	mu   sync.Mutex
	meta *meta
	segs map[string]*segment // loaded segments by file name
}

// Open loads an existing index from dir. A location without a readable,
// well-formed meta record fails with ErrDirectoryOpen.
func Open(ctx context.Context, id string, dir directory.Directory, logger *slog.Logger) (*Index, error) {
	m, err := readMeta(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("%w: index %q: %w", ErrDirectoryOpen, id, err)
	}
	return newIndex(id, dir, m, logger), nil
}

// Create initializes an empty index in dir with the given schema.
func Create(ctx context.Context, id string, dir directory.Directory, s *schema.Schema, logger *slog.Logger) (*Index, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	m := newMeta(s)
	if err := writeMeta(ctx, dir, m); err != nil {
		return nil, fmt.Errorf("index: create %q: %w", id, err)
	}
	return newIndex(id, dir, m, logger), nil
}

// Exists reports whether dir contains an index.
func Exists(ctx context.Context, dir directory.Directory) (bool, error) {
	return dir.Exists(ctx, MetaFileName)
}

func newIndex(id string, dir directory.Directory, m *meta, logger *slog.Logger) *Index {
	return &Index{
		id:     id,
		dir:    dir,
		logger: logging.Default(logger).With("component", "index", "index_id", id),
		meta:   m,
		segs:   make(map[string]*segment),
	}
}

// ID returns the index identifier.
func (idx *Index) ID() string {
	return idx.id
}

// Schema returns the index schema.
func (idx *Index) Schema() *schema.Schema {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.meta.Schema
}

// Generation returns the current committed generation.
func (idx *Index) Generation() uint64 {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.meta.Generation
}

// currentMeta snapshots the meta record.
func (idx *Index) currentMeta() *meta {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.meta.clone()
}

// segment returns a view of the named segment, loading and caching its
// immutable payload on first use. The tombstone bitmap always comes from sm,
// never from the cache, so every caller owns the bitmap of its own meta
// snapshot and snapshots cannot corrupt each other.
func (idx *Index) segment(ctx context.Context, sm segmentMeta) (*segment, error) {
	idx.mu.Lock()
	cached, ok := idx.segs[sm.Name]
	idx.mu.Unlock()

	if !ok {
		loaded, err := loadSegment(ctx, idx.dir, sm)
		if err != nil {
			return nil, err
		}
		idx.mu.Lock()
		idx.segs[sm.Name] = loaded
		idx.mu.Unlock()
		cached = loaded
	}

	deleted, err := sm.deletedBitmap()
	if err != nil {
		return nil, err
	}
	return &segment{
		name:    cached.name,
		data:    cached.data,
		byID:    cached.byID,
		deleted: deleted,
	}, nil
}

// install publishes a committed meta and drops cache entries for segments
// that are no longer live. A meta at or below the published generation is
// ignored: a reloading reader may hand back a meta it read just before a
// concurrent commit, and installing it would roll the shared state back.
func (idx *Index) install(m *meta) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if m.Generation <= idx.meta.Generation {
		return
	}

	live := make(map[string]struct{}, len(m.Segments))
	for _, sm := range m.Segments {
		live[sm.Name] = struct{}{}
	}
	for name := range idx.segs {
		if _, ok := live[name]; !ok {
			delete(idx.segs, name)
		}
	}
	idx.meta = m
}
