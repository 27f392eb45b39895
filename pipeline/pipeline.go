// Package pipeline orchestrates the two phases of an indicator run: the
// ingest pass, which streams a source dataset through the spatial indexer
// into partitioned storage, and the aggregation pass, which folds stored
// partitions into per-cell indicator tables. Partitions never share a cell,
// so per-partition results merge by disjoint union and partition order does
// not matter.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/hexdiv/dataset"
	"github.com/hupe1980/hexdiv/diversity"
	"github.com/hupe1980/hexdiv/indexer"
	"github.com/hupe1980/hexdiv/model"
	"github.com/hupe1980/hexdiv/store"
)

const defaultWorkers = 4

// Pipeline runs ingest and aggregation passes over one store.
type Pipeline struct {
	store   *store.Store
	indexer *indexer.Indexer
	calc    *diversity.Calculator
	logger  *slog.Logger
	workers int
	scan    dataset.Options
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithWorkers bounds how many partitions aggregate concurrently. Memory use
// of a pass grows with this bound.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithCalculator replaces the default indicator calculator.
func WithCalculator(c *diversity.Calculator) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.calc = c
		}
	}
}

// WithLogger sets the structured logger. If unset, logging is discarded.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithScanOptions sets the dataset scan options used by Ingest.
func WithScanOptions(opts dataset.Options) Option {
	return func(p *Pipeline) { p.scan = opts }
}

// New creates a Pipeline over the given store and indexer.
func New(s *store.Store, ix *indexer.Indexer, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:   s,
		indexer: ix,
		calc:    diversity.NewCalculator(diversity.DefaultESN),
		logger:  slog.New(slog.DiscardHandler),
		workers: defaultWorkers,
		scan:    dataset.Options{RequireSpecies: true},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IngestStats summarizes one ingest pass.
type IngestStats struct {
	// Rows is the number of source rows that survived indexing.
	Rows uint64
	// Dropped is the number of source rows rejected for missing coordinates
	// or species.
	Dropped uint64
	// Resolutions lists the resolutions written.
	Resolutions []model.Resolution
}

// Ingest streams the dataset through the indexer and writes one partition
// namespace per configured resolution. The pass replaces any previous run in
// the store; on error nothing written by this pass is committed.
func (p *Pipeline) Ingest(ctx context.Context, ds dataset.Dataset) (*IngestStats, error) {
	resolutions := p.indexer.Resolutions()

	writers := make([]*store.Writer, len(resolutions))
	for i, res := range resolutions {
		w, err := p.store.Writer(ctx, res)
		if err != nil {
			for _, open := range writers[:i] {
				open.Abort()
			}
			return nil, fmt.Errorf("pipeline: open writer for %s: %w", res, err)
		}
		writers[i] = w
	}
	abort := func() {
		for _, w := range writers {
			w.Abort()
		}
	}

	stats := &IngestStats{Resolutions: resolutions}
	droppedBefore := p.indexer.Dropped()

	err := ds.Batches(ctx, p.scan, func(batch []model.RawOccurrence) error {
		for _, indexed := range p.indexer.Assign(batch) {
			stats.Rows++
			for i := range indexed.Records {
				if err := writers[i].Add(indexed.Records[i]); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		abort()
		return nil, fmt.Errorf("pipeline: ingest: %w", err)
	}

	for i, w := range writers {
		if err := w.Close(); err != nil {
			for _, open := range writers[i+1:] {
				open.Abort()
			}
			return nil, fmt.Errorf("pipeline: commit %s: %w", resolutions[i], err)
		}
	}

	stats.Dropped = p.indexer.Dropped() - droppedBefore
	p.logger.Info("ingest pass complete",
		"rows", stats.Rows,
		"dropped", stats.Dropped,
		"resolutions", len(resolutions),
	)
	return stats, nil
}

// Aggregate folds every partition of one resolution into a per-cell
// indicator table. Partitions are processed with bounded parallelism and
// merged by disjoint union; a missing partition aborts the pass rather than
// contributing an empty result.
func (p *Pipeline) Aggregate(ctx context.Context, res model.Resolution, filter model.RowFilter) (map[model.CellID]model.CellAggregate, error) {
	keys, err := p.store.ListPartitions(ctx, res)
	if err != nil {
		return nil, fmt.Errorf("pipeline: list partitions for %s: %w", res, err)
	}

	proj := store.Projection{Counts: true, Depths: filter.Band != model.DepthAll}

	var (
		mu     sync.Mutex
		merged = make(map[model.CellID]model.CellAggregate)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for _, key := range keys {
		g.Go(func() error {
			acc := diversity.NewAccumulator()
			err := p.store.Scan(gctx, res, key, filter, proj, func(rec *model.OccurrenceRecord) error {
				acc.Add(rec)
				return nil
			})
			if err != nil {
				return err
			}
			part := acc.Finalize(int64(p.calc.ESN()))

			mu.Lock()
			defer mu.Unlock()
			if !diversity.Merge(merged, part) {
				return fmt.Errorf("pipeline: partition %s/%s overlaps another partition", res, key)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	p.logger.Info("aggregation pass complete",
		"resolution", res.String(),
		"band", filter.Band.String(),
		"partitions", len(keys),
		"cells", len(merged),
	)
	return merged, nil
}

// BandResult is the outcome of one depth-band pass.
type BandResult struct {
	Band  model.DepthBand
	Cells map[model.CellID]model.CellAggregate
	Err   error
}

// DepthBands runs the unfiltered, shallow (depth < threshold) and deep
// (depth >= threshold) passes over the same stored partitions. A failed pass
// carries its error and an absent table; the other passes are unaffected.
func (p *Pipeline) DepthBands(ctx context.Context, res model.Resolution, threshold float64) []BandResult {
	bands := []model.DepthBand{model.DepthAll, model.DepthShallow, model.DepthDeep}

	out := make([]BandResult, len(bands))
	for i, band := range bands {
		filter := model.RowFilter{Band: band, Threshold: threshold}
		cells, err := p.Aggregate(ctx, res, filter)
		if err != nil {
			p.logger.Error("depth band pass failed",
				"resolution", res.String(),
				"band", band.String(),
				"error", err,
			)
			out[i] = BandResult{Band: band, Err: err}
			continue
		}
		out[i] = BandResult{Band: band, Cells: cells}
	}
	return out
}
