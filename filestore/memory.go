package filestore

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// OrphanCounter is an optional FileStore extension reporting content records
// whose header record has been deleted.
type OrphanCounter interface {
	OrphanedContent(ctx context.Context) (int, error)
}

// MemoryStore is an in-memory FileStore for tests and local development.
// It mirrors the transactional backend's behavior, including the header-only
// delete and the missing-content-means-empty read policy.
type MemoryStore struct {
	mu      sync.Mutex
	headers map[string]struct{}
	content map[string][]byte

	// maxItemSize bounds a single content record, mirroring the item size
	// limit of the transactional backend. Zero means unbounded.
	maxItemSize int
}

var _ FileStore = (*MemoryStore)(nil)
var _ OrphanCounter = (*MemoryStore)(nil)

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMaxItemSize caps content record size; writes beyond the cap fail the
// whole transaction, leaving no partial state.
func WithMaxItemSize(n int) MemoryOption {
	return func(s *MemoryStore) {
		s.maxItemSize = n
	}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		headers: make(map[string]struct{}),
		content: make(map[string][]byte),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) WriteFile(_ context.Context, path string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxItemSize > 0 && len(content) > s.maxItemSize {
		return fmt.Errorf("%w: write %q: item size %d exceeds limit %d",
			ErrTransactionFailed, path, len(content), s.maxItemSize)
	}

	s.headers[path] = struct{}{}
	s.content[path] = append([]byte(nil), content...)
	return nil
}

func (s *MemoryStore) Exists(_ context.Context, path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.headers[path]
	return ok, nil
}

func (s *MemoryStore) ListFiles(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths := make([]string, 0, len(s.headers))
	for path := range s.headers {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *MemoryStore) GetContent(_ context.Context, path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	content, ok := s.content[path]
	if !ok {
		return []byte{}, nil
	}
	return append([]byte(nil), content...), nil
}

func (s *MemoryStore) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.headers, path)
	return nil
}

// OrphanedContent counts content records left behind by Delete.
func (s *MemoryStore) OrphanedContent(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for path := range s.content {
		if _, ok := s.headers[path]; !ok {
			n++
		}
	}
	return n, nil
}
