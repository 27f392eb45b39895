// Package grid abstracts the discrete global grid used for spatial
// aggregation. The pipeline only needs three pure functions: point to cell,
// cell to boundary polygon, and polygon to covering cells. The default
// implementation wraps Uber's H3 hexagonal grid.
package grid

import (
	"errors"

	"github.com/hupe1980/hexdiv/model"
)

// ErrOutOfRange is returned for coordinates or cells the grid cannot encode.
var ErrOutOfRange = errors.New("grid: out of range")

// Grid is the geometry capability consumed by the pipeline. Implementations
// must be pure: the same input always yields the same output, with no side
// effects.
type Grid interface {
	// PointToCell returns the cell containing the given WGS84 point at the
	// given resolution.
	PointToCell(lon, lat float64, res model.Resolution) (model.CellID, error)

	// CellBoundary returns the boundary polygon of a cell as a closed ring
	// of vertices.
	CellBoundary(cell model.CellID) ([]model.LatLng, error)

	// PolygonToCells returns the set of cells at the given resolution whose
	// centers fall inside the polygon described by the outer loop.
	PolygonToCells(loop []model.LatLng, res model.Resolution) ([]model.CellID, error)
}

// partitionKeyOffset and partitionKeyLen select the slice of the cell
// identifier used as partition key. Two characters of the identifier give a
// small bounded key set with a reasonably even record spread; the choice is
// immaterial to correctness as long as it is a pure function of the cell.
const (
	partitionKeyOffset = 5
	partitionKeyLen    = 2
)

// KeyForCell derives the storage partition key for a cell. It is a pure
// function of the identifier, which makes partitions disjoint by
// construction: a cell's records can never land in two partitions.
func KeyForCell(cell model.CellID) model.PartitionKey {
	s := string(cell)
	if len(s) < partitionKeyOffset+partitionKeyLen {
		return model.PartitionKey(s)
	}
	return model.PartitionKey(s[partitionKeyOffset : partitionKeyOffset+partitionKeyLen])
}
