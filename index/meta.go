package index

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/quarrysearch/quarry/directory"
	"github.com/quarrysearch/quarry/schema"
)

// MetaFileName is the atomic commit point of an index. Writing a new meta
// seals staged mutations into a new reader-visible generation.
const MetaFileName = "meta.json"

const metaVersion = 1

// segmentMeta describes one immutable segment file plus its tombstones.
// Deleted is a serialized roaring bitmap of dead docnums; JSON base64-encodes
// it. Tombstones live in the meta rather than the segment so that deletes
// never rewrite segment files.
type segmentMeta struct {
	Name     string `json:"name"`
	DocCount uint32 `json:"doc_count"`
	Deleted  []byte `json:"deleted,omitempty"`
}

func (sm *segmentMeta) deletedBitmap() (*roaring.Bitmap, error) {
	bm := roaring.New()
	if len(sm.Deleted) == 0 {
		return bm, nil
	}
	if err := bm.UnmarshalBinary(sm.Deleted); err != nil {
		return nil, fmt.Errorf("index: segment %q tombstones: %w", sm.Name, err)
	}
	return bm, nil
}

func (sm *segmentMeta) setDeleted(bm *roaring.Bitmap) error {
	if bm == nil || bm.IsEmpty() {
		sm.Deleted = nil
		return nil
	}
	data, err := bm.MarshalBinary()
	if err != nil {
		return fmt.Errorf("index: segment %q tombstones: %w", sm.Name, err)
	}
	sm.Deleted = data
	return nil
}

// meta is the durable root record of an index.
type meta struct {
	Version     int            `json:"version"`
	Generation  uint64         `json:"generation"`
	NextSegment uint64         `json:"next_segment"`
	Schema      *schema.Schema `json:"schema"`
	Segments    []segmentMeta  `json:"segments"`
}

func newMeta(s *schema.Schema) *meta {
	return &meta{
		Version: metaVersion,
		Schema:  s,
	}
}

func (m *meta) clone() *meta {
	segments := make([]segmentMeta, len(m.Segments))
	copy(segments, m.Segments)
	out := *m
	out.Segments = segments
	return &out
}

func readMeta(ctx context.Context, dir directory.Directory) (*meta, error) {
	data, err := dir.Read(ctx, MetaFileName)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("index: empty %s", MetaFileName)
	}

	var m meta
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("index: decode %s: %w", MetaFileName, err)
	}
	if m.Schema == nil {
		return nil, fmt.Errorf("index: %s without schema", MetaFileName)
	}
	return &m, nil
}

func writeMeta(ctx context.Context, dir directory.Directory, m *meta) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("index: encode %s: %w", MetaFileName, err)
	}
	return dir.WriteAtomic(ctx, MetaFileName, data)
}
