package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/hexdiv/blobstore"
	"github.com/hupe1980/hexdiv/dataset"
	"github.com/hupe1980/hexdiv/diversity"
	"github.com/hupe1980/hexdiv/grid"
	"github.com/hupe1980/hexdiv/indexer"
	"github.com/hupe1980/hexdiv/model"
	"github.com/hupe1980/hexdiv/store"
)

// stubGrid buckets longitudes into synthetic cells so tests control the cell
// layout without H3.
type stubGrid struct{}

func (stubGrid) PointToCell(lon, lat float64, res model.Resolution) (model.CellID, error) {
	if !model.ValidCoordinates(lon, lat) {
		return "", grid.ErrOutOfRange
	}
	return model.CellID(fmt.Sprintf("res%d-%03d", res, int(lon))), nil
}

func (stubGrid) CellBoundary(model.CellID) ([]model.LatLng, error) { return nil, nil }

func (stubGrid) PolygonToCells([]model.LatLng, model.Resolution) ([]model.CellID, error) {
	return nil, nil
}

func newTestPipeline(t *testing.T, opts ...Option) (*Pipeline, *store.Store) {
	t.Helper()
	s := store.New(blobstore.NewMemoryStore())
	ix := indexer.New(stubGrid{}, 3)
	return New(s, ix, opts...), s
}

func TestIngestAndAggregate(t *testing.T) {
	p, _ := newTestPipeline(t)
	ctx := context.Background()

	// One cell with a 70/30 split, one single-species cell.
	var rows []model.RawOccurrence
	for i := 0; i < 70; i++ {
		rows = append(rows, model.RawOccurrence{Lon: 1, Lat: 1, Species: "Gadus morhua"})
	}
	for i := 0; i < 30; i++ {
		rows = append(rows, model.RawOccurrence{Lon: 1, Lat: 1, Species: "Clupea harengus"})
	}
	rows = append(rows, model.RawOccurrence{Lon: 2, Lat: 1, Species: "Solea solea", Count: 4})

	stats, err := p.Ingest(ctx, dataset.NewMemory(rows))
	require.NoError(t, err)
	assert.Equal(t, uint64(101), stats.Rows)
	assert.Zero(t, stats.Dropped)

	got, err := p.Aggregate(ctx, 3, model.RowFilter{})
	require.NoError(t, err)
	require.Len(t, got, 2)

	mixed := got["res3-001"]
	assert.Equal(t, int64(100), mixed.N)
	assert.Equal(t, 2, mixed.Richness)
	assert.InDelta(t, 0.6109, mixed.Shannon, 1e-4)
	assert.InDelta(t, 0.58, mixed.Simpson, 1e-12)

	single := got["res3-002"]
	assert.Equal(t, int64(4), single.N)
	assert.Equal(t, 1, single.Richness)
	assert.Zero(t, single.Shannon)
}

func TestIngestDropsBadRows(t *testing.T) {
	p, _ := newTestPipeline(t)

	stats, err := p.Ingest(context.Background(), dataset.NewMemory([]model.RawOccurrence{
		{Lon: 1, Lat: 1, Species: "A"},
		{Lon: 500, Lat: 1, Species: "B"}, // out of range
	}))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.Rows)
	assert.Equal(t, uint64(1), stats.Dropped)
}

// Aggregating the partitioned store must give the same table as computing
// over all records in one pass, whatever the partition layout.
func TestRepartitionInvariance(t *testing.T) {
	p, s := newTestPipeline(t, WithWorkers(3))
	ctx := context.Background()

	var rows []model.RawOccurrence
	for i := 0; i < 10000; i++ {
		rows = append(rows, model.RawOccurrence{
			Lon:     float64(i % 120),
			Lat:     float64(i % 40),
			Species: fmt.Sprintf("species-%02d", (i*7)%23),
			Count:   int64(i%3 + 1),
		})
	}
	_, err := p.Ingest(ctx, dataset.NewMemory(rows))
	require.NoError(t, err)

	got, err := p.Aggregate(ctx, 3, model.RowFilter{})
	require.NoError(t, err)

	// Single-pass reference over the store's full contents.
	keys, err := s.ListPartitions(ctx, 3)
	require.NoError(t, err)
	var all []model.OccurrenceRecord
	for _, key := range keys {
		recs, err := s.Read(ctx, 3, key, model.RowFilter{})
		require.NoError(t, err)
		all = append(all, recs...)
	}
	want := diversity.NewCalculator(diversity.DefaultESN).Compute(all)

	require.Equal(t, len(want), len(got))
	for cell, w := range want {
		g, ok := got[cell]
		require.True(t, ok, "cell %s missing", cell)
		assert.Equal(t, w.N, g.N)
		assert.Equal(t, w.Richness, g.Richness)
		assert.InDelta(t, w.Shannon, g.Shannon, 1e-12)
		assert.InDelta(t, w.HurlbertES, g.HurlbertES, 1e-12)
	}
}

func TestDepthBands(t *testing.T) {
	p, _ := newTestPipeline(t)
	ctx := context.Background()

	rows := []model.RawOccurrence{
		{Lon: 1, Lat: 1, Species: "A", MinDepth: 10, HasMinDepth: true, MaxDepth: 30, HasMaxDepth: true}, // depth 20
		{Lon: 1, Lat: 1, Species: "B", MinDepth: 150, HasMinDepth: true},                                 // depth 150
		{Lon: 1, Lat: 1, Species: "C"},                                                                   // no depth
	}
	_, err := p.Ingest(ctx, dataset.NewMemory(rows))
	require.NoError(t, err)

	results := p.DepthBands(ctx, 3, 100)
	require.Len(t, results, 3)

	byBand := map[model.DepthBand]BandResult{}
	for _, r := range results {
		require.NoError(t, r.Err)
		byBand[r.Band] = r
	}

	assert.Equal(t, 3, byBand[model.DepthAll].Cells["res3-001"].Richness)
	assert.Equal(t, 1, byBand[model.DepthShallow].Cells["res3-001"].Richness)
	assert.Equal(t, 1, byBand[model.DepthDeep].Cells["res3-001"].Richness)
}

func TestAggregateMissingPartitionAborts(t *testing.T) {
	blobs := blobstore.NewMemoryStore()
	s := store.New(blobs)
	p := New(s, indexer.New(stubGrid{}, 3))
	ctx := context.Background()

	_, err := p.Ingest(ctx, dataset.NewMemory([]model.RawOccurrence{
		{Lon: 1, Lat: 1, Species: "A"},
	}))
	require.NoError(t, err)

	// The manifest still names the partition, but its segment is gone. The
	// pass must fail rather than treat it as empty.
	keys, err := s.ListPartitions(ctx, 3)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	require.NoError(t, blobs.Delete(ctx, fmt.Sprintf("res=3/part-%s.seg", keys[0])))

	_, err = p.Aggregate(ctx, 3, model.RowFilter{})
	assert.ErrorIs(t, err, store.ErrPartitionNotFound)
}

func TestEmptyDataset(t *testing.T) {
	p, _ := newTestPipeline(t)
	ctx := context.Background()

	stats, err := p.Ingest(ctx, dataset.NewMemory(nil))
	require.NoError(t, err)
	assert.Zero(t, stats.Rows)

	got, err := p.Aggregate(ctx, 3, model.RowFilter{})
	require.NoError(t, err)
	assert.Empty(t, got)
}
