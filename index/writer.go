package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/quarrysearch/quarry/schema"
)

// DefaultMergeFactor is the live segment count that triggers a merge after
// commit.
const DefaultMergeFactor = 4

type opKind int

const (
	opAdd opKind = iota
	opDelete
)

type stagedOp struct {
	kind opKind
	id   string
	doc  schema.Document
}

// Writer is the exclusive mutator of one index. Exclusivity across processes
// is delegated to the messaging layer's per-index serialization; Writer
// itself holds no lock. A Writer lives for one invocation: stage mutations,
// Commit, WaitMerges, drop.
type Writer struct {
	idx    *Index
	logger *slog.Logger

	staged      []stagedOp
	mergeFactor int

	mergeWG  sync.WaitGroup
	mergeMu  sync.Mutex
	mergeErr error
}

// Writer returns a fresh writer handle for the index.
func (idx *Index) Writer() *Writer {
	return &Writer{
		idx:         idx,
		logger:      idx.logger.With("component", "writer"),
		mergeFactor: DefaultMergeFactor,
	}
}

// AddDocument stages an upsert. Any existing document with the same id is
// deleted before the new one becomes visible, so re-indexing an id is
// idempotent in final content.
func (w *Writer) AddDocument(doc schema.Document) error {
	id := doc.ID()
	if id == "" {
		return fmt.Errorf("%w: document without %s", schema.ErrInvalidDocument, schema.IDField)
	}
	w.staged = append(w.staged, stagedOp{kind: opAdd, id: id, doc: doc})
	w.logger.Debug("doc staged", "doc_id", id)
	return nil
}

// DeleteByID stages a delete. Deleting an absent id is not an error.
func (w *Writer) DeleteByID(id string) {
	w.staged = append(w.staged, stagedOp{kind: opDelete, id: id})
	w.logger.Debug("doc delete staged", "doc_id", id)
}

// Staged returns the number of staged operations.
func (w *Writer) Staged() int {
	return len(w.staged)
}

// Commit seals the staged mutations into a new durable generation. Writing
// the meta record is the atomicity boundary: a reader opened before it
// completes observes the previous generation. Commit may kick off a
// background merge; call WaitMerges before treating the invocation as done.
func (w *Writer) Commit(ctx context.Context) error {
	m := w.idx.currentMeta()

	// Fold staged ops in arrival order: later ops for an id strictly
	// override earlier ones, including a delete overriding an add.
	// Insertion order is tracked separately from final membership, so an
	// add-delete-add sequence records the id once, not per surviving add.
	final := make(map[string]schema.Document)
	touched := make(map[string]struct{})
	seenAdd := make(map[string]struct{})
	var addOrder []string
	for _, op := range w.staged {
		touched[op.id] = struct{}{}
		switch op.kind {
		case opAdd:
			if _, seen := seenAdd[op.id]; !seen {
				seenAdd[op.id] = struct{}{}
				addOrder = append(addOrder, op.id)
			}
			final[op.id] = op.doc
		case opDelete:
			delete(final, op.id)
		}
	}

	// Tombstone superseded occurrences in existing segments.
	for i := range m.Segments {
		seg, err := w.idx.segment(ctx, m.Segments[i])
		if err != nil {
			return err
		}
		changed := false
		for id := range touched {
			docnum, ok := seg.byID[id]
			if ok && !seg.deleted.Contains(docnum) {
				seg.deleted.Add(docnum)
				changed = true
			}
		}
		if changed {
			if err := m.Segments[i].setDeleted(seg.deleted); err != nil {
				return err
			}
		}
	}

	// Write the new segment, if any documents survived the fold.
	if len(final) > 0 {
		builder := newSegmentBuilder(m.Schema)
		for _, id := range addOrder {
			if doc, ok := final[id]; ok {
				builder.add(doc)
			}
		}
		data, err := builder.build()
		if err != nil {
			return err
		}

		name := segmentFileName(m.NextSegment)
		m.NextSegment++
		if err := writeSegment(ctx, w.idx.dir, name, data); err != nil {
			return err
		}
		m.Segments = append(m.Segments, segmentMeta{
			Name:     name,
			DocCount: uint32(builder.count()),
		})
	}

	m.Generation++
	if err := writeMeta(ctx, w.idx.dir, m); err != nil {
		return err
	}
	w.idx.install(m)

	w.logger.Info("index committed",
		"generation", m.Generation,
		"ops", len(w.staged),
		"segments", len(m.Segments),
	)
	w.staged = nil

	if len(m.Segments) >= w.mergeFactor {
		w.mergeWG.Add(1)
		go func() {
			defer w.mergeWG.Done()
			if err := w.merge(ctx); err != nil {
				w.mergeMu.Lock()
				w.mergeErr = err
				w.mergeMu.Unlock()
				w.logger.Error("merge failed", "error", err)
			}
		}()
	}

	return nil
}

// WaitMerges blocks until background merge activity settles. A failed merge
// surfaces as ErrMergeWait: the index must not be reported as successfully
// processed, and redelivery will retry the whole batch.
func (w *Writer) WaitMerges() error {
	w.mergeWG.Wait()

	w.mergeMu.Lock()
	defer w.mergeMu.Unlock()
	if w.mergeErr != nil {
		return fmt.Errorf("%w: %w", ErrMergeWait, w.mergeErr)
	}
	return nil
}

// merge consolidates all live segments into one, dropping tombstoned
// documents, and commits the result as a new generation. Obsolete segment
// files are deleted best-effort afterwards; the meta no longer references
// them either way.
func (w *Writer) merge(ctx context.Context) error {
	m := w.idx.currentMeta()
	if len(m.Segments) < 2 {
		return nil
	}

	builder := newSegmentBuilder(m.Schema)
	obsolete := make([]string, 0, len(m.Segments))
	for _, sm := range m.Segments {
		seg, err := w.idx.segment(ctx, sm)
		if err != nil {
			return err
		}
		obsolete = append(obsolete, sm.Name)
		for docnum, doc := range seg.data.Docs {
			if seg.deleted.Contains(uint32(docnum)) {
				continue
			}
			builder.add(doc)
		}
	}

	data, err := builder.build()
	if err != nil {
		return err
	}

	name := segmentFileName(m.NextSegment)
	m.NextSegment++
	if err := writeSegment(ctx, w.idx.dir, name, data); err != nil {
		return err
	}

	m.Segments = []segmentMeta{{Name: name, DocCount: uint32(builder.count())}}
	m.Generation++
	if err := writeMeta(ctx, w.idx.dir, m); err != nil {
		return err
	}
	w.idx.install(m)

	for _, old := range obsolete {
		if err := w.idx.dir.Delete(ctx, old); err != nil {
			w.logger.Warn("obsolete segment not deleted", "segment", old, "error", err)
		}
	}

	w.logger.Info("segments merged",
		"generation", m.Generation,
		"merged", len(obsolete),
		"docs", builder.count(),
	)
	return nil
}
