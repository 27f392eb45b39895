package dataset

import (
	"context"

	"github.com/hupe1980/hexdiv/model"
)

// Memory is an in-memory dataset, used for tests and embedding.
type Memory struct {
	rows []model.RawOccurrence
}

// NewMemory creates a Memory dataset over the given rows. The slice is not
// copied.
func NewMemory(rows []model.RawOccurrence) *Memory {
	return &Memory{rows: rows}
}

// Schema returns the default column names; a Memory dataset always exposes
// the full occurrence shape.
func (m *Memory) Schema(_ context.Context) ([]string, error) {
	c := DefaultColumns()
	return []string{c.Lon, c.Lat, c.Species, c.MinDepth, c.MaxDepth}, nil
}

// Batches implements Dataset.
func (m *Memory) Batches(ctx context.Context, opts Options, fn BatchFunc) error {
	opts.normalize()

	batch := make([]model.RawOccurrence, 0, opts.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for i := range m.rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if opts.RequireSpecies && m.rows[i].Species == "" {
			continue
		}
		batch = append(batch, m.rows[i])
		if len(batch) == opts.BatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}
