package index

import (
	"context"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/quarrysearch/quarry/directory"
	"github.com/quarrysearch/quarry/schema"
)

// Segment files are immutable: a commit only ever adds whole files and a
// merge replaces them wholesale. Payloads are msgpack, zstd-compressed.

const segmentExt = ".qseg"

func segmentFileName(id uint64) string {
	return fmt.Sprintf("seg-%d%s", id, segmentExt)
}

var (
	segmentEncoder, _ = zstd.NewWriter(nil)
	segmentDecoder, _ = zstd.NewReader(nil)
)

// posting holds the docnums containing a term and the aligned term
// frequencies. Freqs follows the bitmap's ascending docnum order.
type posting struct {
	Docs  []byte   `msgpack:"docs"`
	Freqs []uint32 `msgpack:"freqs"`
}

// segmentData is the durable payload of one segment.
type segmentData struct {
	IDs     []string                      `msgpack:"ids"`
	Docs    []schema.Document             `msgpack:"docs"`
	Fields  map[string]map[string]posting `msgpack:"fields"`
	Lengths map[string][]uint32           `msgpack:"lengths"`
}

// segmentBuilder accumulates documents for a new segment.
type segmentBuilder struct {
	schema  *schema.Schema
	ids     []string
	docs    []schema.Document
	terms   map[string]map[string]map[uint32]uint32 // field -> term -> docnum -> freq
	lengths map[string][]uint32
}

func newSegmentBuilder(s *schema.Schema) *segmentBuilder {
	return &segmentBuilder{
		schema:  s,
		terms:   make(map[string]map[string]map[uint32]uint32),
		lengths: make(map[string][]uint32),
	}
}

func (b *segmentBuilder) count() int {
	return len(b.ids)
}

// add appends doc as the next docnum. The caller guarantees id uniqueness
// within the builder.
func (b *segmentBuilder) add(doc schema.Document) {
	docnum := uint32(len(b.ids))
	b.ids = append(b.ids, doc.ID())

	// Segments keep the full source document so a merge can rebuild
	// postings for indexed-but-unstored fields. Readers filter retrieval
	// to stored fields.
	source := schema.Document{schema.IDField: doc.ID()}
	for _, field := range b.schema.Fields {
		value, ok := doc[field.Name]
		if !ok {
			continue
		}
		source[field.Name] = value
		if !field.Indexed {
			continue
		}

		tokens := analyze(field, value)

		lengths := b.lengths[field.Name]
		for len(lengths) < int(docnum) {
			lengths = append(lengths, 0)
		}
		b.lengths[field.Name] = append(lengths, uint32(len(tokens)))

		fieldTerms := b.terms[field.Name]
		if fieldTerms == nil {
			fieldTerms = make(map[string]map[uint32]uint32)
			b.terms[field.Name] = fieldTerms
		}
		for _, token := range tokens {
			byDoc := fieldTerms[token]
			if byDoc == nil {
				byDoc = make(map[uint32]uint32)
				fieldTerms[token] = byDoc
			}
			byDoc[docnum]++
		}
	}
	b.docs = append(b.docs, source)
}

func (b *segmentBuilder) build() (*segmentData, error) {
	fields := make(map[string]map[string]posting, len(b.terms))
	for fieldName, fieldTerms := range b.terms {
		postings := make(map[string]posting, len(fieldTerms))
		for token, byDoc := range fieldTerms {
			bm := roaring.New()
			for docnum := range byDoc {
				bm.Add(docnum)
			}
			freqs := make([]uint32, 0, len(byDoc))
			it := bm.Iterator()
			for it.HasNext() {
				freqs = append(freqs, byDoc[it.Next()])
			}
			data, err := bm.MarshalBinary()
			if err != nil {
				return nil, fmt.Errorf("index: encode posting %q: %w", token, err)
			}
			postings[token] = posting{Docs: data, Freqs: freqs}
		}
		fields[fieldName] = postings
	}

	// Pad field lengths so every indexed field covers all docnums.
	for fieldName, lengths := range b.lengths {
		for len(lengths) < len(b.ids) {
			lengths = append(lengths, 0)
		}
		b.lengths[fieldName] = lengths
	}

	return &segmentData{
		IDs:     b.ids,
		Docs:    b.docs,
		Fields:  fields,
		Lengths: b.lengths,
	}, nil
}

// segment is a loaded, immutable segment plus its current tombstones.
type segment struct {
	name    string
	data    *segmentData
	byID    map[string]uint32
	deleted *roaring.Bitmap
}

func writeSegment(ctx context.Context, dir directory.Directory, name string, data *segmentData) error {
	raw, err := msgpack.Marshal(data)
	if err != nil {
		return fmt.Errorf("index: encode segment %q: %w", name, err)
	}
	return dir.WriteAtomic(ctx, name, segmentEncoder.EncodeAll(raw, nil))
}

func loadSegment(ctx context.Context, dir directory.Directory, sm segmentMeta) (*segment, error) {
	compressed, err := dir.Read(ctx, sm.Name)
	if err != nil {
		return nil, err
	}
	if len(compressed) == 0 {
		return nil, fmt.Errorf("index: segment %q has no content", sm.Name)
	}

	raw, err := segmentDecoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("index: decompress segment %q: %w", sm.Name, err)
	}

	var data segmentData
	if err := msgpack.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("index: decode segment %q: %w", sm.Name, err)
	}

	deleted, err := sm.deletedBitmap()
	if err != nil {
		return nil, err
	}

	byID := make(map[string]uint32, len(data.IDs))
	for docnum, id := range data.IDs {
		byID[id] = uint32(docnum)
	}

	return &segment{
		name:    sm.Name,
		data:    &data,
		byID:    byID,
		deleted: deleted,
	}, nil
}

// lookup returns the docnum of a live document with the given id.
func (s *segment) lookup(id string) (uint32, bool) {
	docnum, ok := s.byID[id]
	if !ok || s.deleted.Contains(docnum) {
		return 0, false
	}
	return docnum, true
}

func (s *segment) liveCount() int {
	return len(s.data.IDs) - int(s.deleted.GetCardinality())
}

// postings returns the live (docnum, freq) pairs for a term in a field.
func (s *segment) postings(field, token string) []docFreq {
	fieldTerms, ok := s.data.Fields[field]
	if !ok {
		return nil
	}
	p, ok := fieldTerms[token]
	if !ok {
		return nil
	}

	bm := roaring.New()
	if err := bm.UnmarshalBinary(p.Docs); err != nil {
		return nil
	}

	var out []docFreq
	it := bm.Iterator()
	for i := 0; it.HasNext(); i++ {
		docnum := it.Next()
		if s.deleted.Contains(docnum) {
			continue
		}
		freq := uint32(1)
		if i < len(p.Freqs) {
			freq = p.Freqs[i]
		}
		out = append(out, docFreq{docnum: docnum, freq: freq})
	}
	return out
}

type docFreq struct {
	docnum uint32
	freq   uint32
}

func (s *segment) fieldLength(field string, docnum uint32) uint32 {
	lengths, ok := s.data.Lengths[field]
	if !ok || int(docnum) >= len(lengths) {
		return 0
	}
	return lengths[docnum]
}
