package report

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/hexdiv/blobstore"
	"github.com/hupe1980/hexdiv/grid"
	"github.com/hupe1980/hexdiv/model"
	"github.com/hupe1980/hexdiv/store"
)

type boundaryGrid struct{}

func (boundaryGrid) PointToCell(lon, lat float64, res model.Resolution) (model.CellID, error) {
	return "", grid.ErrOutOfRange
}

func (boundaryGrid) CellBoundary(cell model.CellID) ([]model.LatLng, error) {
	if cell == "bad-cell" {
		return nil, grid.ErrOutOfRange
	}
	return []model.LatLng{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}, {Lat: 1, Lng: 0}}, nil
}

func (boundaryGrid) PolygonToCells([]model.LatLng, model.Resolution) ([]model.CellID, error) {
	return nil, nil
}

func TestJoinSortsAndAttachesBoundaries(t *testing.T) {
	aggregates := map[model.CellID]model.CellAggregate{
		"cell-b": {Cell: "cell-b", N: 2},
		"cell-a": {Cell: "cell-a", N: 1},
	}

	features, err := Join(aggregates, boundaryGrid{})
	require.NoError(t, err)
	require.Len(t, features, 2)
	assert.Equal(t, model.CellID("cell-a"), features[0].Cell)
	assert.Equal(t, model.CellID("cell-b"), features[1].Cell)
	assert.Len(t, features[0].Boundary, 3)
}

func TestJoinPropagatesBoundaryError(t *testing.T) {
	_, err := Join(map[model.CellID]model.CellAggregate{
		"bad-cell": {Cell: "bad-cell"},
	}, boundaryGrid{})
	assert.True(t, errors.Is(err, grid.ErrOutOfRange))
}

func seedStore(t *testing.T) *store.Store {
	t.Helper()
	s := store.New(blobstore.NewMemoryStore())
	w, err := s.Writer(context.Background(), 3)
	require.NoError(t, err)

	records := []model.OccurrenceRecord{
		{Cell: "res3-001", Species: "Gadus morhua", Count: 3},
		{Cell: "res3-001", Species: "Clupea harengus", Count: 1},
		{Cell: "res3-001", Species: "Gadus morhua", Count: 2},
		{Cell: "res3-002", Species: "Solea solea", Count: 1},
		{Cell: "res3-077", Species: "Merlangius merlangus", Count: 1},
	}
	for i := range records {
		records[i].Key = grid.KeyForCell(records[i].Cell)
	}
	require.NoError(t, w.Add(records...))
	require.NoError(t, w.Close())
	return s
}

func TestSpeciesSets(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()

	sets, err := SpeciesSets(ctx, s, 3, []model.CellID{"res3-001", "res3-077", "res3-999"})
	require.NoError(t, err)

	// res3-999 has no records and res3-002 was not requested.
	require.Len(t, sets, 2)
	assert.Equal(t, []string{"Clupea harengus", "Gadus morhua"}, sets["res3-001"])
	assert.Equal(t, []string{"Merlangius merlangus"}, sets["res3-077"])
}

func TestSpeciesSetsEmptyRequest(t *testing.T) {
	s := seedStore(t)

	sets, err := SpeciesSets(context.Background(), s, 3, nil)
	require.NoError(t, err)
	assert.Empty(t, sets)
}

func TestWriteSpeciesList(t *testing.T) {
	var buf bytes.Buffer
	err := WriteSpeciesList(&buf, map[model.CellID][]string{
		"cell-b": {"Solea solea"},
		"cell-a": {"Clupea harengus", "Gadus morhua"},
	})
	require.NoError(t, err)

	want := "# cell-a (2 species)\n" +
		"Clupea harengus\n" +
		"Gadus morhua\n" +
		"# cell-b (1 species)\n" +
		"Solea solea\n"
	assert.Equal(t, want, buf.String())
}
