// Package hexdiv provides spatial biodiversity indicators over occurrence
// datasets.
//
// This file implements the fluent builder API for creating and configuring
// Hexdiv instances. The builder is immutable - each method returns a new
// builder with the updated configuration.
package hexdiv

import (
	"github.com/hupe1980/hexdiv/blobstore"
	"github.com/hupe1980/hexdiv/dataset"
	"github.com/hupe1980/hexdiv/grid"
	"github.com/hupe1980/hexdiv/model"
	"github.com/hupe1980/hexdiv/store"
)

// Local creates a builder over a directory on the local filesystem.
//
// Example:
//
//	hd, err := hexdiv.Local("./data").
//	    Resolutions(3, 4).
//	    ESN(50).
//	    ZSTD().
//	    Build()
func Local(path string) Builder {
	return Builder{localPath: path}
}

// InMemory creates a builder over an in-memory store. Nothing survives the
// process; useful for tests and exploratory runs.
func InMemory() Builder {
	return Builder{blobs: blobstore.NewMemoryStore()}
}

// Remote creates a builder over an existing blobstore, typically an object
// store.
//
// Example:
//
//	s3Store, _ := s3.New(ctx, "indicators", s3.WithPrefix("runs/2026/"))
//	hd, _ := hexdiv.Remote(s3Store).ZSTD().Build()
func Remote(blobs blobstore.Store) Builder {
	return Builder{blobs: blobs}
}

// Builder is an immutable fluent builder for creating Hexdiv instances.
// Each method returns a new builder with the updated configuration.
type Builder struct {
	localPath   string
	blobs       blobstore.Store
	resolutions []model.Resolution
	esn         int
	workers     int
	compression *store.Compression
	chunkRows   int
	scan        *dataset.Options
	grid        grid.Grid
	logger      *Logger
	metrics     MetricsCollector
}

// Resolutions sets the grid resolutions indexed per ingest pass.
// Default: 3 and 4.
func (b Builder) Resolutions(resolutions ...model.Resolution) Builder {
	b.resolutions = append([]model.Resolution(nil), resolutions...)
	return b
}

// ESN sets the subsample size for Hurlbert's expected species index.
// Default: 50.
func (b Builder) ESN(esn int) Builder {
	b.esn = esn
	return b
}

// Workers bounds concurrent partition aggregation. Default: 4.
func (b Builder) Workers(n int) Builder {
	b.workers = n
	return b
}

// LZ4 stores segments with LZ4 block compression (fast, the default).
func (b Builder) LZ4() Builder {
	c := store.CompressionLZ4
	b.compression = &c
	return b
}

// ZSTD stores segments with ZSTD block compression. Better ratio than LZ4;
// the usual choice for cold object-store segments.
func (b Builder) ZSTD() Builder {
	c := store.CompressionZSTD
	b.compression = &c
	return b
}

// NoCompression stores segments uncompressed.
func (b Builder) NoCompression() Builder {
	c := store.CompressionNone
	b.compression = &c
	return b
}

// ChunkRows sets the segment row-group size. Default: 16384.
func (b Builder) ChunkRows(n int) Builder {
	b.chunkRows = n
	return b
}

// ScanOptions sets how Ingest scans the source dataset.
func (b Builder) ScanOptions(opts dataset.Options) Builder {
	b.scan = &opts
	return b
}

// Grid replaces the default H3 grid.
func (b Builder) Grid(g grid.Grid) Builder {
	b.grid = g
	return b
}

// Logger sets the structured logger for operation tracing.
func (b Builder) Logger(l *Logger) Builder {
	b.logger = l
	return b
}

// Metrics sets the metrics collector for monitoring.
func (b Builder) Metrics(mc MetricsCollector) Builder {
	b.metrics = mc
	return b
}

// Build creates the Hexdiv instance.
func (b Builder) Build() (*Hexdiv, error) {
	blobs := b.blobs
	if blobs == nil {
		local, err := blobstore.NewLocalStore(b.localPath)
		if err != nil {
			return nil, err
		}
		blobs = local
	}

	var opts []Option
	if len(b.resolutions) > 0 {
		opts = append(opts, WithResolutions(b.resolutions...))
	}
	if b.esn > 0 {
		opts = append(opts, WithESN(b.esn))
	}
	if b.workers > 0 {
		opts = append(opts, WithWorkers(b.workers))
	}
	if b.compression != nil {
		opts = append(opts, WithCompression(*b.compression))
	}
	if b.chunkRows > 0 {
		opts = append(opts, WithChunkRows(b.chunkRows))
	}
	if b.scan != nil {
		opts = append(opts, WithScanOptions(*b.scan))
	}
	if b.grid != nil {
		opts = append(opts, WithGrid(b.grid))
	}
	if b.logger != nil {
		opts = append(opts, WithLogger(b.logger))
	}
	if b.metrics != nil {
		opts = append(opts, WithMetricsCollector(b.metrics))
	}
	return Open(blobs, opts...)
}
