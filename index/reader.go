package index

import (
	"context"

	"github.com/quarrysearch/quarry/schema"
)

// Reader is a read-only snapshot of one committed generation. It never
// observes staged writer state: it is built from the meta record current at
// construction time, and segments are immutable.
type Reader struct {
	schema     *schema.Schema
	generation uint64
	segments   []*segment
}

// Reader opens a snapshot of the latest committed generation.
func (idx *Index) Reader(ctx context.Context) (*Reader, error) {
	m := idx.currentMeta()

	segments := make([]*segment, 0, len(m.Segments))
	for _, sm := range m.Segments {
		seg, err := idx.segment(ctx, sm)
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}

	return &Reader{
		schema:     m.Schema,
		generation: m.Generation,
		segments:   segments,
	}, nil
}

// Reload re-reads the meta record from durable storage and opens a snapshot
// of whatever generation another process committed last.
func (idx *Index) Reload(ctx context.Context) (*Reader, error) {
	m, err := readMeta(ctx, idx.dir)
	if err != nil {
		return nil, err
	}
	idx.install(m)
	return idx.Reader(ctx)
}

// Schema returns the index schema.
func (r *Reader) Schema() *schema.Schema {
	return r.schema
}

// Generation returns the committed generation this snapshot observes.
func (r *Reader) Generation() uint64 {
	return r.generation
}

// DocCount returns the number of live documents.
func (r *Reader) DocCount() int {
	n := 0
	for _, seg := range r.segments {
		n += seg.liveCount()
	}
	return n
}

// SegmentCount returns the number of live segments.
func (r *Reader) SegmentCount() int {
	return len(r.segments)
}

// DocRef addresses one live document within the snapshot.
type DocRef struct {
	seg    int
	docnum uint32
}

// Posting pairs a document reference with a term frequency.
type Posting struct {
	Ref  DocRef
	Freq uint32
}

// TermPostings returns the live postings for a term in a field, across all
// segments.
func (r *Reader) TermPostings(field, token string) []Posting {
	var out []Posting
	for i, seg := range r.segments {
		for _, df := range seg.postings(field, token) {
			out = append(out, Posting{
				Ref:  DocRef{seg: i, docnum: df.docnum},
				Freq: df.freq,
			})
		}
	}
	return out
}

// FieldLength returns the token count of a field in the referenced document.
func (r *Reader) FieldLength(ref DocRef, field string) int {
	return int(r.segments[ref.seg].fieldLength(field, ref.docnum))
}

// AvgFieldLength returns the mean token count of a field over live documents.
func (r *Reader) AvgFieldLength(field string) float64 {
	total, docs := 0, 0
	for _, seg := range r.segments {
		lengths, ok := seg.data.Lengths[field]
		if !ok {
			continue
		}
		for docnum, length := range lengths {
			if seg.deleted.Contains(uint32(docnum)) {
				continue
			}
			total += int(length)
			docs++
		}
	}
	if docs == 0 {
		return 0
	}
	return float64(total) / float64(docs)
}

// Document materializes the stored view of a referenced document.
func (r *Reader) Document(ref DocRef) schema.Document {
	return r.storedView(r.segments[ref.seg].data.Docs[ref.docnum])
}

// Doc returns the stored view of the live document with the given id.
func (r *Reader) Doc(id string) (schema.Document, bool) {
	for _, seg := range r.segments {
		if docnum, ok := seg.lookup(id); ok {
			return r.storedView(seg.data.Docs[docnum]), true
		}
	}
	return nil, false
}

// storedView filters a source document down to its stored fields.
func (r *Reader) storedView(source schema.Document) schema.Document {
	out := schema.Document{schema.IDField: source.ID()}
	for _, field := range r.schema.Fields {
		if !field.Stored {
			continue
		}
		if value, ok := source[field.Name]; ok {
			out[field.Name] = value
		}
	}
	return out
}
