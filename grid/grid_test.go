package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/hexdiv/model"
)

func TestKeyForCell(t *testing.T) {
	tests := []struct {
		name string
		cell model.CellID
		want model.PartitionKey
	}{
		{name: "res3 identifier", cell: "83754efffffffff", want: "ef"},
		{name: "res4 identifier", cell: "84754a9ffffffff", want: "a9"},
		{name: "short identifier falls back to itself", cell: "abc", want: "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KeyForCell(tt.cell))
		})
	}
}

func TestKeyForCellIsPure(t *testing.T) {
	cell := model.CellID("84754a9ffffffff")
	first := KeyForCell(cell)
	for i := 0; i < 100; i++ {
		require.Equal(t, first, KeyForCell(cell))
	}
}

func TestH3PointToCell(t *testing.T) {
	g := NewH3()

	cell, err := g.PointToCell(4.35, 51.0, 3)
	require.NoError(t, err)
	assert.Len(t, string(cell), 15)

	// Same point, same cell.
	again, err := g.PointToCell(4.35, 51.0, 3)
	require.NoError(t, err)
	assert.Equal(t, cell, again)

	// Finer resolution yields a different identifier.
	fine, err := g.PointToCell(4.35, 51.0, 4)
	require.NoError(t, err)
	assert.NotEqual(t, cell, fine)
}

func TestH3PointToCellRejectsBadCoordinates(t *testing.T) {
	g := NewH3()

	_, err := g.PointToCell(200, 95, 3)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestH3CellBoundary(t *testing.T) {
	g := NewH3()

	cell, err := g.PointToCell(-70.5, -12.25, 3)
	require.NoError(t, err)

	ring, err := g.CellBoundary(cell)
	require.NoError(t, err)
	// Hexagon or pentagon.
	assert.GreaterOrEqual(t, len(ring), 5)
	for _, v := range ring {
		assert.True(t, model.ValidCoordinates(v.Lng, v.Lat))
	}
}

func TestH3CellBoundaryInvalidCell(t *testing.T) {
	g := NewH3()

	_, err := g.CellBoundary("not-a-cell")
	assert.ErrorIs(t, err, ErrOutOfRange)
}
