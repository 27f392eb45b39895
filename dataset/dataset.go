// Package dataset streams occurrence rows out of a source table in bounded
// batches. Sources are read-only and column-projected: only the coordinate,
// species, count and depth columns ever leave the source, whatever else the
// table carries.
package dataset

import (
	"context"

	"github.com/hupe1980/hexdiv/model"
)

const defaultBatchSize = 8192

// ColumnMapping names the source columns for each occurrence field. Count,
// MinDepth and MaxDepth are optional; an empty name or a missing column
// leaves the field unset.
type ColumnMapping struct {
	Lon      string
	Lat      string
	Species  string
	Count    string
	MinDepth string
	MaxDepth string
}

// DefaultColumns returns the Darwin Core column names used by occurrence
// exports.
func DefaultColumns() ColumnMapping {
	return ColumnMapping{
		Lon:      "decimallongitude",
		Lat:      "decimallatitude",
		Species:  "species",
		MinDepth: "minimumdepthinmeters",
		MaxDepth: "maximumdepthinmeters",
	}
}

// Options controls one scan over a dataset.
type Options struct {
	// BatchSize bounds the number of rows per callback. Defaults to 8192.
	BatchSize int

	// Columns maps occurrence fields to source columns. Zero value means
	// DefaultColumns.
	Columns ColumnMapping

	// RequireSpecies drops rows with a null or empty species column at the
	// source, before they reach the caller.
	RequireSpecies bool
}

func (o *Options) normalize() {
	if o.BatchSize <= 0 {
		o.BatchSize = defaultBatchSize
	}
	if o.Columns == (ColumnMapping{}) {
		o.Columns = DefaultColumns()
	}
}

// BatchFunc receives one batch of rows. The batch slice is only valid for
// the duration of the call.
type BatchFunc func(batch []model.RawOccurrence) error

// Dataset is a scannable source of occurrence rows.
type Dataset interface {
	// Schema returns the source column names.
	Schema(ctx context.Context) ([]string, error)

	// Batches streams the whole dataset through fn in bounded batches.
	// Returning a non-nil error from fn stops the scan.
	Batches(ctx context.Context, opts Options, fn BatchFunc) error
}
