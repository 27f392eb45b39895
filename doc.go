// Package hexdiv computes spatial biodiversity indicators over species
// occurrence datasets.
//
// Occurrence records (position, species, optional abundance and depth) are
// aggregated into the cells of a hexagonal discrete global grid, and each
// cell gets an indicator row: record count, species richness, Shannon
// entropy, Simpson concentration, Hurlbert's expected species in a fixed
// subsample, and the Hill numbers of order 1, 2 and infinity.
//
// # Quick Start
//
// Local mode:
//
//	ctx := context.Background()
//	hd, _ := hexdiv.Local("./data").Resolutions(3, 4).Build()
//	hd.Ingest(ctx, dataset.OpenFile("occurrences.parquet"))
//	table, _ := hd.Aggregate(ctx, 3, model.DepthAll, 0)
//
// Cloud mode:
//
//	s3Store, _ := s3.New(ctx, "indicators", s3.WithPrefix("runs/"))
//	hd, _ := hexdiv.Remote(s3Store).ZSTD().Build()
//
// # Processing Model
//
// A run has two phases. Ingest streams the source dataset in bounded
// batches, assigns every record to its grid cell at each configured
// resolution, and writes records into per-partition segments, where the
// partition key is a pure function of the cell identifier. Aggregation then
// processes partitions independently, with bounded parallelism, and merges
// the per-partition indicator tables by disjoint union.
//
// Because cells never span partitions, the merged table is identical to a
// single-pass computation over the whole dataset, while peak memory stays
// bounded by the largest partition times the worker count. Dataset scale is
// limited by storage, not by RAM.
//
// # Depth Bands
//
// Records carrying a depth can be aggregated in bands (shallow/deep around a
// threshold) without re-ingesting: the bands are row filters applied while
// scanning stored partitions.
//
// # Key Features
//
//   - H3 hexagonal grid, multiple resolutions per run
//   - Out-of-core partitioned aggregation with disjoint-union merges
//   - Compressed columnar segments (LZ4/ZSTD) on local disk or object stores
//   - Parquet dataset scans with column projection
//   - Results snapshots for serving tables without the store
package hexdiv
