// Command hexdiv runs a complete biodiversity indicator computation: it
// ingests an occurrence parquet table into partitioned storage and writes
// per-cell indicator snapshots for every configured resolution and depth
// band.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"golang.org/x/time/rate"

	hexdiv "github.com/hupe1980/hexdiv"
	"github.com/hupe1980/hexdiv/blobstore"
	minioblob "github.com/hupe1980/hexdiv/blobstore/minio"
	s3blob "github.com/hupe1980/hexdiv/blobstore/s3"
	"github.com/hupe1980/hexdiv/dataset"
)

func main() {
	configPath := flag.String("config", "hexdiv.yaml", "path to the run configuration")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger(cfg.Logging)

	blobs, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	builder := hexdiv.Remote(blobs).
		Resolutions(cfg.Run.ResolutionList()...).
		ESN(cfg.Run.ESN).
		Workers(cfg.Run.Workers).
		ChunkRows(cfg.Run.ChunkRows).
		ScanOptions(scanOptions(cfg.Source)).
		Logger(logger)
	switch cfg.Run.Compression {
	case "zstd":
		builder = builder.ZSTD()
	case "none":
		builder = builder.NoCompression()
	}

	hd, err := builder.Build()
	if err != nil {
		return err
	}
	defer hd.Close()

	ds := openSource(cfg.Source, blobs)

	report, err := hd.Run(ctx, ds, cfg.Run.DepthThreshold)
	if err != nil {
		return err
	}

	fmt.Printf("ingested %d rows (%d dropped)\n", report.Ingest.Rows, report.Ingest.Dropped)
	for _, pass := range report.Passes {
		if pass.Err != nil {
			fmt.Printf("  %s %-7s FAILED: %v\n", pass.Resolution, pass.Band, pass.Err)
			continue
		}
		fmt.Printf("  %s %-7s %d cells\n", pass.Resolution, pass.Band, pass.Cells)
	}
	if failed := report.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d of %d passes failed", len(failed), len(report.Passes))
	}
	return nil
}

func newLogger(cfg LoggingConfig) *hexdiv.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	if cfg.Format == "json" {
		return hexdiv.NewJSONLogger(level)
	}
	return hexdiv.NewTextLogger(level)
}

func openStorage(ctx context.Context, cfg StorageConfig) (blobstore.Store, error) {
	switch cfg.Backend {
	case "local":
		return blobstore.NewLocalStore(cfg.Path)

	case "s3":
		var loadOpts []func(*awsconfig.LoadOptions) error
		if cfg.Region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, err
		}
		return s3blob.NewStore(awss3.NewFromConfig(awsCfg), cfg.Bucket, cfg.Prefix), nil

	case "minio":
		client, err := minio.New(cfg.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
			Secure: cfg.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		return minioblob.NewStore(client, cfg.Bucket, cfg.Prefix), nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func scanOptions(cfg SourceConfig) dataset.Options {
	cols := dataset.DefaultColumns()
	if cfg.Columns.Lon != "" {
		cols.Lon = cfg.Columns.Lon
	}
	if cfg.Columns.Lat != "" {
		cols.Lat = cfg.Columns.Lat
	}
	if cfg.Columns.Species != "" {
		cols.Species = cfg.Columns.Species
	}
	cols.Count = cfg.Columns.Count
	if cfg.Columns.MinDepth != "" {
		cols.MinDepth = cfg.Columns.MinDepth
	}
	if cfg.Columns.MaxDepth != "" {
		cols.MaxDepth = cfg.Columns.MaxDepth
	}

	return dataset.Options{
		BatchSize:      cfg.BatchSize,
		Columns:        cols,
		RequireSpecies: true,
	}
}

func openSource(cfg SourceConfig, blobs blobstore.Store) dataset.Dataset {
	var ds dataset.Dataset
	if cfg.Path != "" {
		ds = dataset.OpenFile(cfg.Path)
	} else {
		ds = dataset.OpenBlob(blobs, cfg.Blob)
	}

	if cfg.RateLimitRows > 0 {
		burst := int(cfg.RateLimitRows)
		if burst < 1 {
			burst = 1
		}
		ds = dataset.NewRateLimited(ds, rate.NewLimiter(rate.Limit(cfg.RateLimitRows), burst))
	}
	return ds
}
