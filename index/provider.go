package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/quarrysearch/quarry/directory"
	"github.com/quarrysearch/quarry/internal/logging"
	"github.com/quarrysearch/quarry/schema"
)

// DirectoryFactory resolves the durable location for an index id. Backends:
// a store-backed factory uses the index id as store id; a local factory maps
// it to one directory per id under a shared mount root.
type DirectoryFactory func(indexID string) (directory.Directory, error)

// Loader resolves an index id to an opened (or freshly created) index.
type Loader interface {
	LoadIndex(ctx context.Context, indexID string) (*Index, error)
}

// Provider opens indexes on first access and caches the handles, so every
// consumer within the process shares one in-memory view per index.
type Provider struct {
	dirs   DirectoryFactory
	schema schema.Loader
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]*Index
}

var _ Loader = (*Provider)(nil)

// NewProvider creates a Provider over a directory factory and schema loader.
func NewProvider(dirs DirectoryFactory, schemaLoader schema.Loader, logger *slog.Logger) *Provider {
	return &Provider{
		dirs:   dirs,
		schema: schemaLoader,
		logger: logging.Default(logger).With("component", "index_provider"),
		cache:  make(map[string]*Index),
	}
}

// LoadIndex resolves indexID to a shared index handle. An existing location
// is opened; an absent one is created with the schema resolved for the id.
// Opening a corrupt location fails with ErrDirectoryOpen; creating an index
// with no configured schema fails with schema.ErrSchemaNotFound.
func (p *Provider) LoadIndex(ctx context.Context, indexID string) (*Index, error) {
	p.mu.Lock()
	idx, ok := p.cache[indexID]
	p.mu.Unlock()
	if ok {
		return idx, nil
	}

	dir, err := p.dirs(indexID)
	if err != nil {
		return nil, fmt.Errorf("%w: index %q: %w", ErrDirectoryOpen, indexID, err)
	}

	exists, err := Exists(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("%w: index %q: %w", ErrDirectoryOpen, indexID, err)
	}

	if exists {
		idx, err = Open(ctx, indexID, dir, p.logger)
		if err != nil {
			return nil, err
		}
	} else {
		s, err := p.schema.LoadSchema(indexID)
		if err != nil {
			return nil, err
		}
		idx, err = Create(ctx, indexID, dir, s, p.logger)
		if err != nil {
			return nil, err
		}
		p.logger.Info("index created", "index_id", indexID)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if cached, ok := p.cache[indexID]; ok {
		return cached, nil
	}
	p.cache[indexID] = idx
	return idx, nil
}
