// Package report turns aggregation output into consumer-facing artifacts:
// indicator rows joined with cell boundary polygons for mapping, and
// per-cell species lists recovered from the stored partitions.
package report

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/hexdiv/grid"
	"github.com/hupe1980/hexdiv/model"
	"github.com/hupe1980/hexdiv/store"
)

// CellFeature is one indicator row with its cell boundary attached, ready
// for GeoJSON-style serialization by a mapping consumer.
type CellFeature struct {
	model.CellAggregate
	Boundary []model.LatLng `json:"boundary"`
}

// Join attaches boundary polygons to aggregate rows. Rows come back sorted
// by cell identifier so repeated runs produce identical output.
func Join(aggregates map[model.CellID]model.CellAggregate, g grid.Grid) ([]CellFeature, error) {
	cells := make([]model.CellID, 0, len(aggregates))
	for cell := range aggregates {
		cells = append(cells, cell)
	}
	sort.Slice(cells, func(i, j int) bool { return cells[i] < cells[j] })

	out := make([]CellFeature, 0, len(cells))
	for _, cell := range cells {
		boundary, err := g.CellBoundary(cell)
		if err != nil {
			return nil, fmt.Errorf("report: boundary of %s: %w", cell, err)
		}
		out = append(out, CellFeature{CellAggregate: aggregates[cell], Boundary: boundary})
	}
	return out, nil
}

// SpeciesSets returns the distinct species observed in each requested cell,
// as sorted name lists. Cells with no records are absent from the result.
//
// Species names are interned to dense ids and the per-cell sets held as
// roaring bitmaps while scanning, so a request spanning many records stays
// cheap; names are only materialized once per set at the end.
func SpeciesSets(ctx context.Context, s *store.Store, res model.Resolution, cells []model.CellID) (map[model.CellID][]string, error) {
	if len(cells) == 0 {
		return map[model.CellID][]string{}, nil
	}

	// Group the requested cells by partition so each segment is read once.
	// Partitions absent from the store hold no records for their cells.
	wantKeys := make(map[model.PartitionKey]map[model.CellID]struct{})
	for _, cell := range cells {
		key := grid.KeyForCell(cell)
		if wantKeys[key] == nil {
			wantKeys[key] = make(map[model.CellID]struct{})
		}
		wantKeys[key][cell] = struct{}{}
	}
	present, err := s.ListPartitions(ctx, res)
	if err != nil {
		return nil, fmt.Errorf("report: list partitions: %w", err)
	}

	var (
		names []string
		ids   = make(map[string]uint32)
		sets  = make(map[model.CellID]*roaring.Bitmap)
	)
	intern := func(name string) uint32 {
		id, ok := ids[name]
		if !ok {
			id = uint32(len(names))
			ids[name] = id
			names = append(names, name)
		}
		return id
	}

	for _, key := range present {
		members, ok := wantKeys[key]
		if !ok {
			continue
		}
		filter := model.RowFilter{Cells: members}
		err := s.Scan(ctx, res, key, filter, store.Projection{}, func(rec *model.OccurrenceRecord) error {
			set := sets[rec.Cell]
			if set == nil {
				set = roaring.New()
				sets[rec.Cell] = set
			}
			set.Add(intern(rec.Species))
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("report: species scan: %w", err)
		}
	}

	out := make(map[model.CellID][]string, len(sets))
	for cell, set := range sets {
		list := make([]string, 0, set.GetCardinality())
		it := set.Iterator()
		for it.HasNext() {
			list = append(list, names[it.Next()])
		}
		sort.Strings(list)
		out[cell] = list
	}
	return out, nil
}

// WriteSpeciesList writes the species sets as a plain-text listing, one
// header line per cell followed by its species names, cells in identifier
// order.
func WriteSpeciesList(w io.Writer, sets map[model.CellID][]string) error {
	cells := make([]model.CellID, 0, len(sets))
	for cell := range sets {
		cells = append(cells, cell)
	}
	sort.Slice(cells, func(i, j int) bool { return cells[i] < cells[j] })

	for _, cell := range cells {
		if _, err := fmt.Fprintf(w, "# %s (%d species)\n", cell, len(sets[cell])); err != nil {
			return err
		}
		for _, name := range sets[cell] {
			if _, err := fmt.Fprintln(w, name); err != nil {
				return err
			}
		}
	}
	return nil
}
