package indexwriter

import (
	"context"
	"errors"
	"sync"
)

// ErrObjectNotFound is returned when a batch payload is missing from the
// bucket, typically because it expired before the queue delivered its ref.
var ErrObjectNotFound = errors.New("indexwriter: object not found")

// ObjectBucket stores batch payloads referenced by queue messages.
type ObjectBucket interface {
	// Put writes data under key, overwriting any existing object.
	Put(ctx context.Context, key string, data []byte) error
	// Get reads the object at key. Missing keys yield ErrObjectNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes the object at key. Deleting a missing key is a no-op.
	Delete(ctx context.Context, key string) error
}

// MemoryBucket is an in-process ObjectBucket for tests and local runs.
type MemoryBucket struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryBucket creates an empty in-memory bucket.
func NewMemoryBucket() *MemoryBucket {
	return &MemoryBucket{objects: make(map[string][]byte)}
}

func (b *MemoryBucket) Put(_ context.Context, key string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	b.objects[key] = cp
	return nil
}

func (b *MemoryBucket) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (b *MemoryBucket) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

// Len returns the number of stored objects.
func (b *MemoryBucket) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}
