package indexwriter

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/quarrysearch/quarry/schema"
)

// Op kinds inside a batch payload.
const (
	opIndex  = "index"
	opDelete = "delete"
)

// BatchOp is one mutation in a batch. Ops are applied strictly in the order
// they were appended.
type BatchOp struct {
	Kind  string          `msgpack:"kind"`
	Doc   schema.Document `msgpack:"doc,omitempty"`
	DocID string          `msgpack:"doc_id,omitempty"`
}

// Batch is an ordered set of mutations destined for a single index.
type Batch struct {
	IndexID string    `msgpack:"index_id"`
	Ops     []BatchOp `msgpack:"ops"`
}

// NewBatch creates an empty batch for the given index.
func NewBatch(indexID string) *Batch {
	return &Batch{IndexID: indexID}
}

// IndexDoc appends an upsert for doc.
func (b *Batch) IndexDoc(doc schema.Document) {
	b.Ops = append(b.Ops, BatchOp{Kind: opIndex, Doc: doc})
}

// DeleteDoc appends a deletion for the document with the given id.
func (b *Batch) DeleteDoc(id string) {
	b.Ops = append(b.Ops, BatchOp{Kind: opDelete, DocID: id})
}

// Len returns the number of staged ops.
func (b *Batch) Len() int { return len(b.Ops) }

// encodeBatch serializes a batch as lz4-framed msgpack for bucket storage.
func encodeBatch(b *Batch) ([]byte, error) {
	raw, err := msgpack.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("compress batch: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress batch: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeBatch reverses encodeBatch.
func decodeBatch(data []byte) (*Batch, error) {
	zr := lz4.NewReader(bytes.NewReader(data))
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompress batch: %w", err)
	}
	var b Batch
	if err := msgpack.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}
	return &b, nil
}
