// Package diversity computes per-cell biodiversity indicators from
// occurrence records: record count, species richness, Shannon entropy,
// Simpson concentration, Hurlbert's expected species in a subsample, and the
// derived Hill numbers.
//
// The implementation is a single-pass hash aggregation keyed by
// (cell, species); memory is bounded by the number of distinct species per
// cell, not by the number of records.
package diversity

import (
	"math"

	"github.com/hupe1980/hexdiv/model"
)

// DefaultESN is the default subsample size for Hurlbert's expected species.
const DefaultESN = 50

// Calculator aggregates occurrence records into CellAggregate rows.
type Calculator struct {
	esn int64
}

// NewCalculator creates a Calculator with the given Hurlbert subsample size.
// A non-positive esn falls back to DefaultESN.
func NewCalculator(esn int) *Calculator {
	if esn <= 0 {
		esn = DefaultESN
	}
	return &Calculator{esn: int64(esn)}
}

// ESN returns the configured subsample size.
func (c *Calculator) ESN() int { return int(c.esn) }

// Compute aggregates the given records into one CellAggregate per cell.
// Records with a non-positive count are ignored; cells end up in the result
// only if they received at least one record, so n == 0 rows never appear.
func (c *Calculator) Compute(records []model.OccurrenceRecord) map[model.CellID]model.CellAggregate {
	acc := NewAccumulator()
	for i := range records {
		acc.Add(&records[i])
	}
	return acc.Finalize(c.esn)
}

// Accumulator collects species counts per cell incrementally, so callers can
// feed batches without materializing a partition as one slice.
type Accumulator struct {
	cells map[model.CellID]map[string]int64
}

// NewAccumulator creates an empty Accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{cells: make(map[model.CellID]map[string]int64)}
}

// Add folds one record into the per-cell species counts.
func (a *Accumulator) Add(rec *model.OccurrenceRecord) {
	if rec.Count <= 0 || rec.Species == "" || rec.Cell == "" {
		return
	}
	species := a.cells[rec.Cell]
	if species == nil {
		species = make(map[string]int64)
		a.cells[rec.Cell] = species
	}
	species[rec.Species] += rec.Count
}

// Cells returns the number of distinct cells seen so far.
func (a *Accumulator) Cells() int { return len(a.cells) }

// Finalize computes the indicator row for every accumulated cell.
func (a *Accumulator) Finalize(esn int64) map[model.CellID]model.CellAggregate {
	out := make(map[model.CellID]model.CellAggregate, len(a.cells))
	for cell, species := range a.cells {
		agg, ok := aggregateCell(cell, species, esn)
		if ok {
			out[cell] = agg
		}
	}
	return out
}

func aggregateCell(cell model.CellID, species map[string]int64, esn int64) (model.CellAggregate, bool) {
	var n int64
	for _, ni := range species {
		n += ni
	}
	if n == 0 {
		return model.CellAggregate{}, false
	}

	var (
		shannon float64
		simpson float64
		maxQ    float64
		es      float64
	)
	nf := float64(n)
	for _, ni := range species {
		qi := float64(ni) / nf
		shannon -= qi * math.Log(qi)
		simpson += qi * qi
		if qi > maxQ {
			maxQ = qi
		}
		if esi, ok := hurlbertTerm(n, ni, esn); ok {
			es += esi
		}
	}
	// -0*log(0) style residue: a single-species cell must come out exactly
	// degenerate.
	if len(species) == 1 {
		shannon = 0
	}
	if shannon < 0 {
		shannon = 0
	}

	return model.CellAggregate{
		Cell:          cell,
		N:             n,
		Richness:      len(species),
		Shannon:       shannon,
		Simpson:       simpson,
		MaxProportion: maxQ,
		HurlbertES:    es,
		Hill1:         math.Exp(shannon),
		Hill2:         1 / simpson,
		HillInf:       1 / maxQ,
	}, true
}

// hurlbertTerm is species i's contribution to Hurlbert's expected species
// count in a random subsample of size esn:
//
//	esi = 1 - C(n-ni, esn) / C(n, esn)
//
// evaluated through log-gamma, since the binomials overflow for large n.
// When fewer than esn individuals belong to other species the species is
// certain to appear (esi = 1); when the cell itself holds fewer than esn
// individuals the term is undefined and excluded.
func hurlbertTerm(n, ni, esn int64) (float64, bool) {
	rest := n - ni
	switch {
	case rest >= esn:
		lg, _ := math.Lgamma(float64(rest + 1))
		lg2, _ := math.Lgamma(float64(n - esn + 1))
		lg3, _ := math.Lgamma(float64(rest - esn + 1))
		lg4, _ := math.Lgamma(float64(n + 1))
		return 1 - math.Exp(lg+lg2-lg3-lg4), true
	case n >= esn:
		return 1, true
	default:
		return 0, false
	}
}

// Merge unions disjoint aggregate tables. It is only valid when the inputs
// share no cell (as is guaranteed for per-partition results, because the
// partition key is a function of the cell identifier); a duplicate cell
// reports false.
func Merge(dst map[model.CellID]model.CellAggregate, src map[model.CellID]model.CellAggregate) bool {
	for cell, agg := range src {
		if _, exists := dst[cell]; exists {
			return false
		}
		dst[cell] = agg
	}
	return true
}
