package vectorindex

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// snapshot is the on-wire form of an index. Records are sorted by chunk ID
// so identical indexes serialize to identical bytes.
type snapshot struct {
	Dimensions int      `json:"dimensions"`
	Records    []Record `json:"records"`
}

// WriteTo serializes the full index as JSON. The round trip through ReadFrom
// restores every (chunk, metadata, vector) record exactly.
func (ix *Index) WriteTo(w io.Writer) error {
	ix.mu.RLock()
	snap := snapshot{
		Dimensions: ix.dims,
		Records:    make([]Record, 0, len(ix.recs)),
	}
	for _, rec := range ix.recs {
		snap.Records = append(snap.Records, rec)
	}
	ix.mu.RUnlock()

	sort.Slice(snap.Records, func(i, j int) bool {
		return snap.Records[i].Chunk.ID < snap.Records[j].Chunk.ID
	})

	enc := json.NewEncoder(w)
	return enc.Encode(snap)
}

// ReadFrom deserializes an index previously written with WriteTo.
func ReadFrom(r io.Reader) (*Index, error) {
	var snap snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode index snapshot: %w", err)
	}
	if snap.Dimensions <= 0 {
		return nil, fmt.Errorf("index snapshot has invalid dimensions %d", snap.Dimensions)
	}

	ix := New(snap.Dimensions)
	for _, rec := range snap.Records {
		if len(rec.Vector) != snap.Dimensions {
			return nil, &InconsistencyError{
				ChunkID: rec.Chunk.ID,
				Detail:  fmt.Sprintf("snapshot vector has %d dimensions, want %d", len(rec.Vector), snap.Dimensions),
			}
		}
		ix.recs[rec.Chunk.ID] = rec
	}
	return ix, nil
}
