package hexdiv

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    ingestCounter      prometheus.Counter
//	    aggregateHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordIngest(rows, dropped uint64, duration time.Duration, err error) {
//	    p.ingestCounter.Add(float64(rows))
//	    // ... record error state, duration, etc.
//	}
type MetricsCollector interface {
	// RecordIngest is called after each ingest pass. rows is the number of
	// records written, dropped the number rejected, duration the total time
	// taken; err is nil if successful.
	RecordIngest(rows, dropped uint64, duration time.Duration, err error)

	// RecordAggregate is called after each aggregation pass. cells is the
	// number of result rows.
	RecordAggregate(cells int, duration time.Duration, err error)

	// RecordSnapshot is called after each results snapshot save or load.
	RecordSnapshot(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordIngest(uint64, uint64, time.Duration, error) {}
func (NoopMetricsCollector) RecordAggregate(int, time.Duration, error)         {}
func (NoopMetricsCollector) RecordSnapshot(time.Duration, error)               {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	IngestCount         atomic.Int64
	IngestRows          atomic.Int64
	IngestDropped       atomic.Int64
	IngestErrors        atomic.Int64
	IngestTotalNanos    atomic.Int64
	AggregateCount      atomic.Int64
	AggregateCells      atomic.Int64
	AggregateErrors     atomic.Int64
	AggregateTotalNanos atomic.Int64
	SnapshotCount       atomic.Int64
	SnapshotErrors      atomic.Int64
}

// RecordIngest implements MetricsCollector.
func (b *BasicMetricsCollector) RecordIngest(rows, dropped uint64, duration time.Duration, err error) {
	b.IngestCount.Add(1)
	b.IngestRows.Add(int64(rows))
	b.IngestDropped.Add(int64(dropped))
	b.IngestTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.IngestErrors.Add(1)
	}
}

// RecordAggregate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAggregate(cells int, duration time.Duration, err error) {
	b.AggregateCount.Add(1)
	b.AggregateCells.Add(int64(cells))
	b.AggregateTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.AggregateErrors.Add(1)
	}
}

// RecordSnapshot implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSnapshot(duration time.Duration, err error) {
	b.SnapshotCount.Add(1)
	if err != nil {
		b.SnapshotErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		IngestCount:        b.IngestCount.Load(),
		IngestRows:         b.IngestRows.Load(),
		IngestDropped:      b.IngestDropped.Load(),
		IngestErrors:       b.IngestErrors.Load(),
		IngestAvgNanos:     avg(b.IngestTotalNanos.Load(), b.IngestCount.Load()),
		AggregateCount:     b.AggregateCount.Load(),
		AggregateCells:     b.AggregateCells.Load(),
		AggregateErrors:    b.AggregateErrors.Load(),
		AggregateAvgNanos:  avg(b.AggregateTotalNanos.Load(), b.AggregateCount.Load()),
		SnapshotCount:      b.SnapshotCount.Load(),
		SnapshotErrors:     b.SnapshotErrors.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	IngestCount       int64
	IngestRows        int64
	IngestDropped     int64
	IngestErrors      int64
	IngestAvgNanos    int64
	AggregateCount    int64
	AggregateCells    int64
	AggregateErrors   int64
	AggregateAvgNanos int64
	SnapshotCount     int64
	SnapshotErrors    int64
}
