// Package indexwriter provides the asynchronous write path: clients stage
// document mutations into batches, publish them through an object bucket and
// a FIFO queue, and a worker drains the queue, applies the mutations through
// index writers grouped by index, and commits.
package indexwriter

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/quarrysearch/quarry/schema"
)

// Detail kinds carried by queue messages.
const (
	KindIndexSingleDoc  = "IndexSingleDoc"
	KindDeleteSingleDoc = "DeleteSingleDoc"
	KindIndexBatch      = "IndexBatch"
)

// ErrMessageDecode is returned when a received queue message cannot be
// decoded. A batch containing such a message is rejected as a whole so that
// nothing is acknowledged and the queue redelivers.
var ErrMessageDecode = errors.New("indexwriter: message decode")

// ObjectRef points at a batch payload stored in the object bucket.
type ObjectRef struct {
	Key string `json:"key"`
}

// Detail is the payload of a queue message. Exactly one of Doc, DocID or Ref
// is set, depending on Kind.
type Detail struct {
	Kind  string           `json:"kind"`
	Doc   *schema.Document `json:"doc,omitempty"`
	DocID string           `json:"doc_id,omitempty"`
	Ref   *ObjectRef       `json:"ref,omitempty"`
}

// Message is one queue entry. IndexID doubles as the FIFO message group, so
// mutations for the same index are always delivered in publish order.
type Message struct {
	IndexID string `json:"index_id"`
	Detail  Detail `json:"detail"`
}

// EncodeMessage serializes a message for the queue body.
func EncodeMessage(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// DecodeMessage parses a queue body and validates its detail shape.
func DecodeMessage(body []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(body, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMessageDecode, err)
	}
	if m.IndexID == "" {
		return Message{}, fmt.Errorf("%w: missing index_id", ErrMessageDecode)
	}
	switch m.Detail.Kind {
	case KindIndexSingleDoc:
		if m.Detail.Doc == nil {
			return Message{}, fmt.Errorf("%w: %s without doc", ErrMessageDecode, m.Detail.Kind)
		}
	case KindDeleteSingleDoc:
		if m.Detail.DocID == "" {
			return Message{}, fmt.Errorf("%w: %s without doc_id", ErrMessageDecode, m.Detail.Kind)
		}
	case KindIndexBatch:
		if m.Detail.Ref == nil || m.Detail.Ref.Key == "" {
			return Message{}, fmt.Errorf("%w: %s without ref", ErrMessageDecode, m.Detail.Kind)
		}
	default:
		return Message{}, fmt.Errorf("%w: unknown kind %q", ErrMessageDecode, m.Detail.Kind)
	}
	return m, nil
}
