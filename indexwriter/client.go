package indexwriter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/quarrysearch/quarry/internal/logging"
	"github.com/quarrysearch/quarry/schema"
)

// Client publishes index mutations. Writes are asynchronous: a call returns
// once the queue has acknowledged the message, and the mutation becomes
// visible after a worker commits it.
type Client struct {
	bucket ObjectBucket
	queue  Queue
	logger *slog.Logger
}

// NewClient creates a write client over the given bucket and queue.
func NewClient(bucket ObjectBucket, queue Queue, logger *slog.Logger) *Client {
	return &Client{
		bucket: bucket,
		queue:  queue,
		logger: logging.Default(logger).With("component", "indexwriter.client"),
	}
}

// WriteBatch stores the batch payload in the bucket and enqueues a reference
// to it. The returned key identifies the stored payload.
func (c *Client) WriteBatch(ctx context.Context, batch *Batch) (string, error) {
	if batch.Len() == 0 {
		return "", fmt.Errorf("write batch: empty batch")
	}
	data, err := encodeBatch(batch)
	if err != nil {
		return "", fmt.Errorf("write batch: %w", err)
	}

	key := fmt.Sprintf("%s/%s", batch.IndexID, uuid.NewString())
	if err := c.bucket.Put(ctx, key, data); err != nil {
		return "", fmt.Errorf("write batch payload: %w", err)
	}

	body, err := EncodeMessage(Message{
		IndexID: batch.IndexID,
		Detail: Detail{
			Kind: KindIndexBatch,
			Ref:  &ObjectRef{Key: key},
		},
	})
	if err != nil {
		return "", fmt.Errorf("write batch: %w", err)
	}
	if err := c.queue.Send(ctx, batch.IndexID, body); err != nil {
		return "", fmt.Errorf("enqueue batch: %w", err)
	}

	c.logger.Debug("batch enqueued", "index_id", batch.IndexID, "ops", batch.Len(), "key", key)
	return key, nil
}

// IndexDoc enqueues a single-document upsert without a bucket round trip.
func (c *Client) IndexDoc(ctx context.Context, indexID string, doc schema.Document) error {
	body, err := EncodeMessage(Message{
		IndexID: indexID,
		Detail: Detail{
			Kind: KindIndexSingleDoc,
			Doc:  &doc,
		},
	})
	if err != nil {
		return fmt.Errorf("index doc: %w", err)
	}
	if err := c.queue.Send(ctx, indexID, body); err != nil {
		return fmt.Errorf("enqueue doc: %w", err)
	}
	return nil
}

// DeleteDoc enqueues a single-document deletion.
func (c *Client) DeleteDoc(ctx context.Context, indexID, docID string) error {
	body, err := EncodeMessage(Message{
		IndexID: indexID,
		Detail: Detail{
			Kind:  KindDeleteSingleDoc,
			DocID: docID,
		},
	})
	if err != nil {
		return fmt.Errorf("delete doc: %w", err)
	}
	if err := c.queue.Send(ctx, indexID, body); err != nil {
		return fmt.Errorf("enqueue delete: %w", err)
	}
	return nil
}
