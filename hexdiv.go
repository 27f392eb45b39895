package hexdiv

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hupe1980/hexdiv/blobstore"
	"github.com/hupe1980/hexdiv/dataset"
	"github.com/hupe1980/hexdiv/diversity"
	"github.com/hupe1980/hexdiv/grid"
	"github.com/hupe1980/hexdiv/indexer"
	"github.com/hupe1980/hexdiv/model"
	"github.com/hupe1980/hexdiv/pipeline"
	"github.com/hupe1980/hexdiv/report"
	"github.com/hupe1980/hexdiv/results"
	"github.com/hupe1980/hexdiv/store"
)

// maxResolution is the finest resolution the H3 grid supports.
const maxResolution = 15

// Hexdiv computes per-cell biodiversity indicator tables from occurrence
// datasets: records are indexed onto a hexagonal grid, persisted in disjoint
// partitions, and aggregated into indicators with bounded memory. All
// methods are safe for concurrent use, provided at most one Ingest runs at a
// time per storage location.
type Hexdiv struct {
	blobs    blobstore.Store
	grid     grid.Grid
	store    *store.Store
	indexer  *indexer.Indexer
	pipeline *pipeline.Pipeline
	logger   *Logger
	metrics  MetricsCollector
	esn      int
	closed   atomic.Bool
}

// Open creates a Hexdiv instance over the given blobstore. The blobstore
// holds both the partitioned occurrence segments and the results snapshots.
func Open(blobs blobstore.Store, optFns ...Option) (*Hexdiv, error) {
	o := applyOptions(optFns)

	for _, res := range o.resolutions {
		if res < 0 || res > maxResolution {
			return nil, &ErrInvalidResolution{Resolution: res}
		}
	}

	s := store.New(blobs,
		store.WithCompression(o.compression),
		store.WithChunkRows(o.chunkRows),
		store.WithLogger(o.logger.Logger),
	)
	ix := indexer.New(o.grid, o.resolutions...)
	p := pipeline.New(s, ix,
		pipeline.WithWorkers(o.workers),
		pipeline.WithCalculator(diversity.NewCalculator(o.esn)),
		pipeline.WithLogger(o.logger.Logger),
		pipeline.WithScanOptions(o.scan),
	)

	return &Hexdiv{
		blobs:    blobs,
		grid:     o.grid,
		store:    s,
		indexer:  ix,
		pipeline: p,
		logger:   o.logger,
		metrics:  o.metricsCollector,
		esn:      o.esn,
	}, nil
}

// Resolutions returns the configured grid resolutions.
func (hd *Hexdiv) Resolutions() []model.Resolution {
	return hd.indexer.Resolutions()
}

// Grid returns the grid geometry in use.
func (hd *Hexdiv) Grid() grid.Grid {
	return hd.grid
}

// Ingest streams the dataset into partitioned storage at every configured
// resolution, replacing the previous run. Returns how many rows were written
// and how many were dropped for missing coordinates or species.
func (hd *Hexdiv) Ingest(ctx context.Context, ds dataset.Dataset) (*pipeline.IngestStats, error) {
	if hd.closed.Load() {
		return nil, ErrClosed
	}

	start := time.Now()
	stats, err := hd.pipeline.Ingest(ctx, ds)

	var rows, dropped uint64
	if stats != nil {
		rows, dropped = stats.Rows, stats.Dropped
	}
	hd.metrics.RecordIngest(rows, dropped, time.Since(start), err)
	hd.logger.LogIngest(ctx, rows, dropped, err)
	return stats, translateError(err)
}

// Aggregate computes the indicator table for one resolution, optionally
// restricted to a depth band. Threshold is ignored when band is DepthAll.
func (hd *Hexdiv) Aggregate(ctx context.Context, res model.Resolution, band model.DepthBand, threshold float64) (map[model.CellID]model.CellAggregate, error) {
	if hd.closed.Load() {
		return nil, ErrClosed
	}

	start := time.Now()
	cells, err := hd.pipeline.Aggregate(ctx, res, model.RowFilter{Band: band, Threshold: threshold})
	hd.metrics.RecordAggregate(len(cells), time.Since(start), err)
	hd.logger.LogAggregate(ctx, res, band, len(cells), err)
	return cells, translateError(err)
}

// DepthBands computes the unfiltered, shallow and deep indicator tables for
// one resolution. A failed band carries its error; the others are
// unaffected.
func (hd *Hexdiv) DepthBands(ctx context.Context, res model.Resolution, threshold float64) []pipeline.BandResult {
	if hd.closed.Load() {
		return []pipeline.BandResult{{Band: model.DepthAll, Err: ErrClosed}}
	}

	out := hd.pipeline.DepthBands(ctx, res, threshold)
	for i := range out {
		out[i].Err = translateError(out[i].Err)
	}
	return out
}

// Features joins an aggregate table with cell boundary polygons, sorted by
// cell identifier.
func (hd *Hexdiv) Features(cells map[model.CellID]model.CellAggregate) ([]report.CellFeature, error) {
	return report.Join(cells, hd.grid)
}

// SpeciesSets returns the distinct species per requested cell as sorted
// name lists.
func (hd *Hexdiv) SpeciesSets(ctx context.Context, res model.Resolution, cells []model.CellID) (map[model.CellID][]string, error) {
	if hd.closed.Load() {
		return nil, ErrClosed
	}
	sets, err := report.SpeciesSets(ctx, hd.store, res, cells)
	return sets, translateError(err)
}

// SaveSnapshot persists an aggregate table as a compressed results snapshot
// under the conventional name for its resolution and band.
func (hd *Hexdiv) SaveSnapshot(ctx context.Context, res model.Resolution, band model.DepthBand, threshold float64, cells map[model.CellID]model.CellAggregate) error {
	if hd.closed.Load() {
		return ErrClosed
	}

	start := time.Now()
	name := results.Name(res, band)
	snap := results.NewSnapshot(res, band, threshold, hd.esn, cells)
	err := results.Save(ctx, hd.blobs, name, snap)

	hd.metrics.RecordSnapshot(time.Since(start), err)
	hd.logger.LogSnapshot(ctx, name, err)
	return translateError(err)
}

// LoadSnapshot reads a previously saved results snapshot.
func (hd *Hexdiv) LoadSnapshot(ctx context.Context, res model.Resolution, band model.DepthBand) (*results.Snapshot, error) {
	if hd.closed.Load() {
		return nil, ErrClosed
	}

	start := time.Now()
	snap, err := results.Load(ctx, hd.blobs, results.Name(res, band))
	hd.metrics.RecordSnapshot(time.Since(start), err)
	return snap, translateError(err)
}

// Run executes a complete indicator run: one ingest pass followed by the
// three depth-band aggregation passes per resolution, each saved as a
// results snapshot. Band failures are collected, not fatal: the run
// continues so one bad band cannot void the rest of the computation.
func (hd *Hexdiv) Run(ctx context.Context, ds dataset.Dataset, threshold float64) (*RunReport, error) {
	stats, err := hd.Ingest(ctx, ds)
	if err != nil {
		return nil, fmt.Errorf("run: %w", err)
	}

	rep := &RunReport{Ingest: stats}
	for _, res := range hd.Resolutions() {
		for _, result := range hd.DepthBands(ctx, res, threshold) {
			pass := PassReport{Resolution: res, Band: result.Band, Err: result.Err}
			if result.Err == nil {
				pass.Cells = len(result.Cells)
				pass.Err = hd.SaveSnapshot(ctx, res, result.Band, threshold, result.Cells)
			}
			rep.Passes = append(rep.Passes, pass)
		}
	}
	return rep, nil
}

// RunReport summarizes one complete indicator run.
type RunReport struct {
	Ingest *pipeline.IngestStats
	Passes []PassReport
}

// Failed returns the passes that did not complete.
func (r *RunReport) Failed() []PassReport {
	var out []PassReport
	for _, p := range r.Passes {
		if p.Err != nil {
			out = append(out, p)
		}
	}
	return out
}

// PassReport is the outcome of one aggregation pass within a run.
type PassReport struct {
	Resolution model.Resolution
	Band       model.DepthBand
	Cells      int
	Err        error
}
