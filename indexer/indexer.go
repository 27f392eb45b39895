// Package indexer assigns occurrence records to grid cells and derives their
// storage partition keys. Indexing is a pure transform: malformed records are
// dropped, never errored, so one bad row cannot poison a planetary-scale
// ingest.
package indexer

import (
	"github.com/hupe1980/hexdiv/grid"
	"github.com/hupe1980/hexdiv/model"
)

// Indexed is one record indexed at every configured resolution.
type Indexed struct {
	// Records holds one resolution-specific record per configured
	// resolution, in the same order as the indexer's resolutions.
	Records []model.OccurrenceRecord
}

// Indexer attaches cell identifiers and partition keys for a fixed set of
// resolutions.
type Indexer struct {
	grid        grid.Grid
	resolutions []model.Resolution

	dropped uint64
}

// New creates an Indexer over the given grid and resolutions.
func New(g grid.Grid, resolutions ...model.Resolution) *Indexer {
	if len(resolutions) == 0 {
		resolutions = []model.Resolution{3, 4}
	}
	return &Indexer{grid: g, resolutions: resolutions}
}

// Resolutions returns the configured resolutions.
func (ix *Indexer) Resolutions() []model.Resolution {
	return ix.resolutions
}

// Dropped returns the number of records dropped so far for missing
// coordinates or species.
func (ix *Indexer) Dropped() uint64 {
	return ix.dropped
}

// Assign indexes a batch. Records without valid coordinates or with an empty
// species identifier are dropped. The result slice is grouped per input
// record; each surviving record yields one entry per resolution.
func (ix *Indexer) Assign(batch []model.RawOccurrence) []Indexed {
	out := make([]Indexed, 0, len(batch))
	for i := range batch {
		raw := &batch[i]
		if raw.Species == "" || !model.ValidCoordinates(raw.Lon, raw.Lat) {
			ix.dropped++
			continue
		}

		count := raw.Count
		if count <= 0 {
			count = 1
		}
		depth, hasDepth := summarizeDepth(raw)

		indexed := Indexed{Records: make([]model.OccurrenceRecord, 0, len(ix.resolutions))}
		ok := true
		for _, res := range ix.resolutions {
			cell, err := ix.grid.PointToCell(raw.Lon, raw.Lat, res)
			if err != nil {
				// Encoding failures are input-data problems, handled the
				// same way as missing coordinates.
				ix.dropped++
				ok = false
				break
			}
			indexed.Records = append(indexed.Records, model.OccurrenceRecord{
				Lon:      raw.Lon,
				Lat:      raw.Lat,
				Species:  raw.Species,
				Count:    count,
				Depth:    depth,
				HasDepth: hasDepth,
				Cell:     cell,
				Key:      grid.KeyForCell(cell),
			})
		}
		if ok {
			out = append(out, indexed)
		}
	}
	return out
}

// summarizeDepth collapses the min/max depth pair into a single summary: the
// mean of whichever values are present.
func summarizeDepth(raw *model.RawOccurrence) (float64, bool) {
	switch {
	case raw.HasMinDepth && raw.HasMaxDepth:
		return (raw.MinDepth + raw.MaxDepth) / 2, true
	case raw.HasMinDepth:
		return raw.MinDepth, true
	case raw.HasMaxDepth:
		return raw.MaxDepth, true
	default:
		return 0, false
	}
}
