package indexer

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/hexdiv/grid"
	"github.com/hupe1980/hexdiv/model"
)

// stubGrid encodes cells as "r<res>:<lon>:<lat>" so tests don't depend on H3
// cell numbering.
type stubGrid struct{}

func (stubGrid) PointToCell(lon, lat float64, res model.Resolution) (model.CellID, error) {
	if !model.ValidCoordinates(lon, lat) {
		return "", grid.ErrOutOfRange
	}
	return model.CellID(fmt.Sprintf("r%d:%.0f:%.0f", res, lon, lat)), nil
}

func (stubGrid) CellBoundary(model.CellID) ([]model.LatLng, error) { return nil, nil }

func (stubGrid) PolygonToCells([]model.LatLng, model.Resolution) ([]model.CellID, error) {
	return nil, nil
}

func TestAssignAttachesBothResolutions(t *testing.T) {
	ix := New(stubGrid{}, 3, 4)

	out := ix.Assign([]model.RawOccurrence{{Lon: 10, Lat: 20, Species: "Gadus morhua"}})
	require.Len(t, out, 1)
	require.Len(t, out[0].Records, 2)

	r3 := out[0].Records[0]
	r4 := out[0].Records[1]
	assert.Equal(t, model.CellID("r3:10:20"), r3.Cell)
	assert.Equal(t, model.CellID("r4:10:20"), r4.Cell)
	assert.Equal(t, grid.KeyForCell(r3.Cell), r3.Key)
	assert.Equal(t, grid.KeyForCell(r4.Cell), r4.Key)
	assert.Equal(t, int64(1), r3.Count, "count defaults to 1")
}

func TestAssignDropsBadRecords(t *testing.T) {
	ix := New(stubGrid{}, 3)

	out := ix.Assign([]model.RawOccurrence{
		{Lon: 10, Lat: 20, Species: ""},                       // no species
		{Lon: math.NaN(), Lat: 20, Species: "Clupea"},         // no coordinates
		{Lon: 400, Lat: 20, Species: "Clupea"},                 // out of range
		{Lon: 3, Lat: 4, Species: "Clupea harengus", Count: 5}, // good
	})
	require.Len(t, out, 1)
	assert.Equal(t, "Clupea harengus", out[0].Records[0].Species)
	assert.Equal(t, int64(5), out[0].Records[0].Count)
	assert.Equal(t, uint64(3), ix.Dropped())
}

func TestSummarizeDepth(t *testing.T) {
	tests := []struct {
		name      string
		raw       model.RawOccurrence
		wantDepth float64
		wantHas   bool
	}{
		{
			name:      "both present takes the mean",
			raw:       model.RawOccurrence{MinDepth: 50, HasMinDepth: true, MaxDepth: 150, HasMaxDepth: true},
			wantDepth: 100, wantHas: true,
		},
		{
			name:      "min only",
			raw:       model.RawOccurrence{MinDepth: 30, HasMinDepth: true},
			wantDepth: 30, wantHas: true,
		},
		{
			name:      "max only",
			raw:       model.RawOccurrence{MaxDepth: 80, HasMaxDepth: true},
			wantDepth: 80, wantHas: true,
		},
		{
			name:    "neither present",
			raw:     model.RawOccurrence{},
			wantHas: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			depth, has := summarizeDepth(&tt.raw)
			assert.Equal(t, tt.wantHas, has)
			if tt.wantHas {
				assert.InDelta(t, tt.wantDepth, depth, 1e-12)
			}
		})
	}
}

func TestDepthFilterOnIndexedRecord(t *testing.T) {
	ix := New(stubGrid{}, 3)
	out := ix.Assign([]model.RawOccurrence{{
		Lon: 1, Lat: 1, Species: "Solea solea",
		MinDepth: 50, HasMinDepth: true,
		MaxDepth: 150, HasMaxDepth: true,
	}})
	require.Len(t, out, 1)
	rec := out[0].Records[0]
	require.True(t, rec.HasDepth)
	assert.InDelta(t, 100, rec.Depth, 1e-12)

	shallow := model.RowFilter{Band: model.DepthShallow, Threshold: 100}
	deep := model.RowFilter{Band: model.DepthDeep, Threshold: 100}
	assert.False(t, shallow.Match(&rec), "depth 100 is not < 100")
	assert.True(t, deep.Match(&rec), "depth 100 is >= 100")
}
