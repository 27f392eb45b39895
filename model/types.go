package model

import (
	"fmt"
	"math"
)

// Resolution selects a level of the hierarchical grid. Finer resolutions
// produce smaller cells.
type Resolution int

// String returns a string representation of the Resolution.
func (r Resolution) String() string {
	return fmt.Sprintf("res%d", int(r))
}

// CellID identifies one cell of the discrete global grid at a given
// resolution. The encoding is grid-implementation specific but stable for a
// given grid.
type CellID string

// PartitionKey is a coarse grouping key derived deterministically from a
// CellID. It exists purely for storage locality and carries no semantic
// meaning of its own.
type PartitionKey string

// RawOccurrence is an occurrence row as it arrives from the source dataset,
// before any spatial indexing. Optional columns carry a presence flag.
type RawOccurrence struct {
	Lon     float64
	Lat     float64
	Species string
	Count   int64

	MinDepth    float64
	HasMinDepth bool
	MaxDepth    float64
	HasMaxDepth bool
}

// OccurrenceRecord is one species observation, optionally pre-aggregated
// (Count > 1 means the row stands for that many identical observations).
type OccurrenceRecord struct {
	Lon     float64
	Lat     float64
	Species string
	Count   int64

	// Depth is the summary depth in meters, the mean of whichever of the
	// source's minimum/maximum depths were present. HasDepth reports whether
	// any depth was present at all; records without depth are excluded from
	// depth-filtered passes but still aggregate in unfiltered ones.
	Depth    float64
	HasDepth bool

	// Cell and Key are attached by the spatial indexer for one resolution.
	// A stored partition is resolution-specific, so a record carries exactly
	// one (Cell, Key) pair once persisted.
	Cell CellID
	Key  PartitionKey
}

// CellAggregate is one row of the output indicator table.
//
// All indices derive from the per-species abundance distribution within the
// cell; see the diversity package for the exact formulas.
type CellAggregate struct {
	Cell CellID `json:"cell"`

	// N is the total record count in the cell.
	N int64 `json:"n"`
	// Richness is the number of distinct species observed in the cell.
	Richness int `json:"sp"`

	Shannon       float64 `json:"shannon"`
	Simpson       float64 `json:"simpson"`
	MaxProportion float64 `json:"max_p"`

	// HurlbertES is Hurlbert's expected number of species in a random
	// subsample of the configured size.
	HurlbertES float64 `json:"es"`

	// Hill numbers: effective species counts of order 1, 2 and infinity.
	Hill1   float64 `json:"hill_1"`
	Hill2   float64 `json:"hill_2"`
	HillInf float64 `json:"hill_inf"`
}

// LatLng is a WGS84 coordinate pair in degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ValidCoordinates reports whether lon/lat form a usable WGS84 position.
func ValidCoordinates(lon, lat float64) bool {
	if math.IsNaN(lon) || math.IsNaN(lat) {
		return false
	}
	return lon >= -180 && lon <= 180 && lat >= -90 && lat <= 90
}

// DepthBand restricts a read-back to records above or below a depth
// threshold.
type DepthBand int

const (
	// DepthAll applies no depth restriction.
	DepthAll DepthBand = iota
	// DepthShallow keeps records with depth < threshold.
	DepthShallow
	// DepthDeep keeps records with depth >= threshold.
	DepthDeep
)

// String returns a string representation of the DepthBand.
func (b DepthBand) String() string {
	switch b {
	case DepthShallow:
		return "shallow"
	case DepthDeep:
		return "deep"
	default:
		return "all"
	}
}

// RowFilter restricts which records a partition read returns. The zero value
// matches everything.
type RowFilter struct {
	Band      DepthBand
	Threshold float64

	// Cells, when non-empty, keeps only records belonging to one of the
	// given cells. Used for species-list lookups.
	Cells map[CellID]struct{}
}

// Match reports whether the record passes the filter.
func (f RowFilter) Match(rec *OccurrenceRecord) bool {
	switch f.Band {
	case DepthShallow:
		if !rec.HasDepth || rec.Depth >= f.Threshold {
			return false
		}
	case DepthDeep:
		if !rec.HasDepth || rec.Depth < f.Threshold {
			return false
		}
	}
	if len(f.Cells) > 0 {
		if _, ok := f.Cells[rec.Cell]; !ok {
			return false
		}
	}
	return true
}
