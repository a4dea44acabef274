package indexwriter

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// QueueMessage is a received queue entry. Handle identifies the delivery for
// acknowledgment.
type QueueMessage struct {
	Handle string
	Body   []byte
}

// Queue is a FIFO message queue. Messages sharing a group id are delivered
// in the order they were sent, and a group with unacknowledged deliveries
// hands out no further messages until they are deleted.
type Queue interface {
	// Send enqueues body under the given ordering group.
	Send(ctx context.Context, groupID string, body []byte) error
	// Receive returns up to max messages, waiting up to wait for at least one.
	Receive(ctx context.Context, max int, wait time.Duration) ([]QueueMessage, error)
	// Delete acknowledges a delivery. Undeleted messages are redelivered.
	Delete(ctx context.Context, handle string) error
}

type memoryEntry struct {
	seq    uint64
	group  string
	handle string
	body   []byte
}

// MemoryQueue is an in-process FIFO queue for tests and local runs.
type MemoryQueue struct {
	mu       sync.Mutex
	seq      uint64
	pending  []*memoryEntry
	inflight map[string]*memoryEntry
}

// NewMemoryQueue creates an empty in-memory queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{inflight: make(map[string]*memoryEntry)}
}

func (q *MemoryQueue) Send(_ context.Context, groupID string, body []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	cp := make([]byte, len(body))
	copy(cp, body)
	q.pending = append(q.pending, &memoryEntry{
		seq:    q.seq,
		group:  groupID,
		handle: fmt.Sprintf("%s-%d", groupID, q.seq),
		body:   cp,
	})
	return nil
}

// Receive skips groups with unacknowledged deliveries, matching FIFO queue
// behavior. Once one entry of a group is skipped, the rest of that group is
// skipped too, preserving per-group order.
func (q *MemoryQueue) Receive(_ context.Context, max int, _ time.Duration) ([]QueueMessage, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	blocked := make(map[string]struct{}, len(q.inflight))
	for _, e := range q.inflight {
		blocked[e.group] = struct{}{}
	}

	msgs := make([]QueueMessage, 0, max)
	kept := q.pending[:0]
	for _, e := range q.pending {
		_, skip := blocked[e.group]
		if skip || len(msgs) >= max {
			blocked[e.group] = struct{}{}
			kept = append(kept, e)
			continue
		}
		q.inflight[e.handle] = e
		msgs = append(msgs, QueueMessage{Handle: e.handle, Body: e.body})
	}
	q.pending = kept
	return msgs, nil
}

func (q *MemoryQueue) Delete(_ context.Context, handle string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inflight, handle)
	return nil
}

// Redeliver returns all unacknowledged deliveries to the front of the queue
// in their original send order.
func (q *MemoryQueue) Redeliver() {
	q.mu.Lock()
	defer q.mu.Unlock()
	entries := make([]*memoryEntry, 0, len(q.inflight))
	for _, e := range q.inflight {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	q.pending = append(entries, q.pending...)
	q.inflight = make(map[string]*memoryEntry)
}

// Len returns the number of messages awaiting delivery.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Inflight returns the number of delivered but unacknowledged messages.
func (q *MemoryQueue) Inflight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.inflight)
}
