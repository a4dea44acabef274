// Package filestore implements the durable file store backing index
// directories. Files are addressed by (store id, path) and split into a
// header record, which carries existence and listing metadata, and a content
// record, which carries the payload bytes. The split keeps listing and
// existence checks cheap; a transactional write keeps the two records in
// lockstep.
package filestore

import (
	"context"
	"errors"
)

// ErrTransactionFailed is returned when the underlying transactional write is
// rejected, for example by item size limits or a conflicting transaction.
// After such a failure neither the header nor the content record exists.
var ErrTransactionFailed = errors.New("filestore: transaction failed")

// FileStore is the durable file model required by an index directory.
//
// GetContent returns empty bytes, not an error, for a path without a content
// record. Callers that need existence checks must use Exists; the header
// record is the sole source of truth for existence and listing.
type FileStore interface {
	// WriteFile persists the header and content records in a single
	// all-or-nothing transaction.
	WriteFile(ctx context.Context, path string, content []byte) error

	// Exists reports whether a header record exists for path, using a
	// strongly consistent read.
	Exists(ctx context.Context, path string) (bool, error)

	// ListFiles enumerates the paths of all header records under the store id.
	ListFiles(ctx context.Context) ([]string, error)

	// GetContent reads the content record for path. A missing content record
	// yields empty bytes and a nil error.
	GetContent(ctx context.Context, path string) ([]byte, error)

	// Delete removes the header record for path. The content record is left
	// behind; see OrphanedContent on implementations that can count them.
	Delete(ctx context.Context, path string) error
}
