package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrSchemaNotFound is returned when no configured schema matches an index id.
var ErrSchemaNotFound = errors.New("schema: no schema for index id")

// Loader resolves the schema for an index id.
type Loader interface {
	LoadSchema(indexID string) (*Schema, error)
}

type configEntry struct {
	Prefix string  `json:"prefix"`
	Fields []Field `json:"fields"`
}

type configDoc struct {
	Indexes []configEntry `json:"indexes"`
}

// Provider resolves schemas by index-id prefix from a JSON configuration
// document of the shape:
//
//	{"indexes": [{"prefix": "books", "fields": [
//	    {"name": "title", "kind": "text", "indexed": true, "stored": true}
//	]}]}
//
// An index id matches the entry whose prefix it starts with; the longest
// prefix wins.
type Provider struct {
	entries []configEntry
}

var _ Loader = (*Provider)(nil)

// NewProvider parses a configuration document.
func NewProvider(data []byte) (*Provider, error) {
	var doc configDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("schema: parse config: %w", err)
	}

	for _, entry := range doc.Indexes {
		if entry.Prefix == "" {
			return nil, errors.New("schema: config entry with empty prefix")
		}
		s := Schema{Fields: entry.Fields}
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("schema: config entry %q: %w", entry.Prefix, err)
		}
	}

	return &Provider{entries: doc.Indexes}, nil
}

// NewProviderFromFile reads and parses a configuration file.
func NewProviderFromFile(path string) (*Provider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema: read config %q: %w", path, err)
	}
	return NewProvider(data)
}

// LoadSchema resolves indexID against the configured prefixes.
func (p *Provider) LoadSchema(indexID string) (*Schema, error) {
	var best *configEntry
	for i := range p.entries {
		entry := &p.entries[i]
		if !strings.HasPrefix(indexID, entry.Prefix) {
			continue
		}
		if best == nil || len(entry.Prefix) > len(best.Prefix) {
			best = entry
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: %q", ErrSchemaNotFound, indexID)
	}
	return &Schema{Fields: best.Fields}, nil
}

// Static is a Loader that always returns the same schema. Useful in tests.
type Static struct {
	Schema *Schema
}

func (s Static) LoadSchema(string) (*Schema, error) {
	return s.Schema, nil
}
