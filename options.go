package hexdiv

import (
	"log/slog"

	"github.com/hupe1980/hexdiv/dataset"
	"github.com/hupe1980/hexdiv/diversity"
	"github.com/hupe1980/hexdiv/grid"
	"github.com/hupe1980/hexdiv/model"
	"github.com/hupe1980/hexdiv/store"
)

type options struct {
	resolutions      []model.Resolution
	esn              int
	workers          int
	compression      store.Compression
	chunkRows        int
	scan             dataset.Options
	grid             grid.Grid
	logger           *Logger
	metricsCollector MetricsCollector
}

// Option configures Hexdiv constructor behavior.
//
// Today options primarily exist to avoid exploding the API surface
// (e.g. storage-specific constructor variants).
type Option func(*options)

// WithResolutions configures the grid resolutions every ingest pass indexes
// at. Defaults to resolutions 3 and 4.
func WithResolutions(resolutions ...model.Resolution) Option {
	return func(o *options) {
		if len(resolutions) > 0 {
			o.resolutions = resolutions
		}
	}
}

// WithESN configures the subsample size for Hurlbert's expected species
// index. Defaults to diversity.DefaultESN.
func WithESN(esn int) Option {
	return func(o *options) {
		o.esn = esn
	}
}

// WithWorkers bounds how many partitions an aggregation pass processes
// concurrently. Aggregation memory grows with this bound.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithCompression selects the segment compression for stored partitions.
// LZ4 is the default; ZSTD trades write speed for smaller cold segments on
// object stores.
func WithCompression(c store.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithChunkRows sets the row-group size of stored segments. Larger chunks
// compress better, smaller ones bound ingest memory tighter.
func WithChunkRows(n int) Option {
	return func(o *options) {
		o.chunkRows = n
	}
}

// WithScanOptions configures how Ingest scans the source dataset (batch
// size, column mapping, species predicate).
func WithScanOptions(opts dataset.Options) Option {
	return func(o *options) {
		o.scan = opts
	}
}

// WithGrid replaces the default H3 grid. Mostly useful for tests.
func WithGrid(g grid.Grid) Option {
	return func(o *options) {
		if g != nil {
			o.grid = g
		}
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &hexdiv.BasicMetricsCollector{}
//	hd, _ := hexdiv.Open(blobs, hexdiv.WithMetricsCollector(metrics))
//	// ... use hd ...
//	stats := metrics.GetStats()
//	fmt.Printf("Rows: %d, Avg pass: %dns\n", stats.IngestRows, stats.IngestAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := hexdiv.NewJSONLogger(slog.LevelInfo)
//	hd, _ := hexdiv.Open(blobs, hexdiv.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		resolutions:      []model.Resolution{3, 4},
		esn:              diversity.DefaultESN,
		workers:          4,
		compression:      store.CompressionLZ4,
		scan:             dataset.Options{RequireSpecies: true},
		grid:             grid.NewH3(),
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
