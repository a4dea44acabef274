package indexwriter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/quarrysearch/quarry/index"
	"github.com/quarrysearch/quarry/internal/logging"
	"github.com/quarrysearch/quarry/schema"
)

const (
	// DefaultReceiveMax is the number of messages pulled per poll.
	DefaultReceiveMax = 10
	// DefaultReceiveWait is the long-poll wait per receive.
	DefaultReceiveWait = 20 * time.Second
)

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithReceiveMax sets the number of messages pulled per poll.
func WithReceiveMax(n int) WorkerOption {
	return func(w *Worker) { w.receiveMax = n }
}

// WithReceiveWait sets the long-poll wait per receive.
func WithReceiveWait(d time.Duration) WorkerOption {
	return func(w *Worker) { w.receiveWait = d }
}

// WithPollLimit caps the poll rate. Useful when the receive wait is short,
// e.g. against a memory queue in tests.
func WithPollLimit(l *rate.Limiter) WorkerOption {
	return func(w *Worker) { w.limiter = l }
}

// Worker drains the mutation queue. Each received batch of messages is
// applied as a unit: mutations are grouped by index, applied in arrival
// order, and committed once per touched index. Nothing is acknowledged
// unless the whole batch succeeds, so a failed batch is redelivered intact
// and reapplied. Upserts and deletions are idempotent, which makes the
// redelivery safe.
type Worker struct {
	indexes index.Loader
	bucket  ObjectBucket
	queue   Queue
	logger  *slog.Logger

	receiveMax  int
	receiveWait time.Duration
	limiter     *rate.Limiter
}

// NewWorker creates a queue worker.
func NewWorker(indexes index.Loader, bucket ObjectBucket, queue Queue, logger *slog.Logger, optFns ...WorkerOption) *Worker {
	w := &Worker{
		indexes:     indexes,
		bucket:      bucket,
		queue:       queue,
		logger:      logging.Default(logger).With("component", "index_worker"),
		receiveMax:  DefaultReceiveMax,
		receiveWait: DefaultReceiveWait,
		limiter:     rate.NewLimiter(rate.Every(time.Second), 1),
	}
	for _, fn := range optFns {
		fn(w)
	}
	return w
}

// op is one resolved mutation after message and payload decoding.
type op struct {
	indexID string
	doc     *schema.Document
	docID   string
}

// HandleBatch applies one delivery of messages. It decodes every message and
// payload up front, so a malformed message fails the invocation before any
// index is touched.
func (w *Worker) HandleBatch(ctx context.Context, msgs []QueueMessage) error {
	ops, err := w.resolve(ctx, msgs)
	if err != nil {
		return err
	}

	writers := make(map[string]*index.Writer)
	order := make([]string, 0, 2)

	for _, o := range ops {
		wr, ok := writers[o.indexID]
		if !ok {
			idx, err := w.indexes.LoadIndex(ctx, o.indexID)
			if err != nil {
				return fmt.Errorf("load index %q: %w", o.indexID, err)
			}
			wr = idx.Writer()
			writers[o.indexID] = wr
			order = append(order, o.indexID)
		}
		if o.doc != nil {
			if err := wr.AddDocument(*o.doc); err != nil {
				return fmt.Errorf("index doc in %q: %w", o.indexID, err)
			}
		} else {
			wr.DeleteByID(o.docID)
		}
	}

	for _, id := range order {
		wr := writers[id]
		staged := wr.Staged()
		if err := wr.Commit(ctx); err != nil {
			return fmt.Errorf("commit %q: %w", id, err)
		}
		if err := wr.WaitMerges(); err != nil {
			return fmt.Errorf("merge %q: %w", id, err)
		}
		w.logger.Info("batch committed", "index_id", id, "ops", staged)
	}
	return nil
}

// resolve decodes messages into ordered ops, fetching referenced batch
// payloads from the bucket.
func (w *Worker) resolve(ctx context.Context, msgs []QueueMessage) ([]op, error) {
	ops := make([]op, 0, len(msgs))
	for _, m := range msgs {
		msg, err := DecodeMessage(m.Body)
		if err != nil {
			return nil, err
		}
		switch msg.Detail.Kind {
		case KindIndexSingleDoc:
			ops = append(ops, op{indexID: msg.IndexID, doc: msg.Detail.Doc})
		case KindDeleteSingleDoc:
			ops = append(ops, op{indexID: msg.IndexID, docID: msg.Detail.DocID})
		case KindIndexBatch:
			data, err := w.bucket.Get(ctx, msg.Detail.Ref.Key)
			if err != nil {
				return nil, fmt.Errorf("fetch batch %q: %w", msg.Detail.Ref.Key, err)
			}
			batch, err := decodeBatch(data)
			if err != nil {
				return nil, fmt.Errorf("%w: batch %q: %v", ErrMessageDecode, msg.Detail.Ref.Key, err)
			}
			for _, bop := range batch.Ops {
				switch bop.Kind {
				case opIndex:
					doc := bop.Doc
					ops = append(ops, op{indexID: msg.IndexID, doc: &doc})
				case opDelete:
					ops = append(ops, op{indexID: msg.IndexID, docID: bop.DocID})
				default:
					return nil, fmt.Errorf("%w: unknown batch op %q", ErrMessageDecode, bop.Kind)
				}
			}
		}
	}
	return ops, nil
}

// Run polls the queue until ctx is canceled. Messages are deleted only after
// a fully successful HandleBatch.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started")
	for {
		if err := w.limiter.Wait(ctx); err != nil {
			w.logger.Info("worker stopped")
			return nil
		}

		msgs, err := w.queue.Receive(ctx, w.receiveMax, w.receiveWait)
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info("worker stopped")
				return nil
			}
			w.logger.Error("receive failed", "error", err)
			continue
		}
		if len(msgs) == 0 {
			continue
		}

		if err := w.HandleBatch(ctx, msgs); err != nil {
			w.logger.Error("batch failed, leaving messages for redelivery", "count", len(msgs), "error", err)
			continue
		}

		for _, m := range msgs {
			if err := w.queue.Delete(ctx, m.Handle); err != nil {
				w.logger.Warn("delete message failed", "handle", m.Handle, "error", err)
			}
		}
	}
}
