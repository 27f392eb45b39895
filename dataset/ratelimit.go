package dataset

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/hupe1980/hexdiv/model"
)

// RateLimited wraps a dataset with a row-budget limiter, for polite scans of
// shared remote sources. The budget is charged per batch before it is handed
// to the caller.
type RateLimited struct {
	ds  Dataset
	lim *rate.Limiter
}

// NewRateLimited wraps ds with the given limiter.
func NewRateLimited(ds Dataset, lim *rate.Limiter) *RateLimited {
	return &RateLimited{ds: ds, lim: lim}
}

// Schema implements Dataset.
func (r *RateLimited) Schema(ctx context.Context) ([]string, error) {
	return r.ds.Schema(ctx)
}

// Batches implements Dataset.
func (r *RateLimited) Batches(ctx context.Context, opts Options, fn BatchFunc) error {
	return r.ds.Batches(ctx, opts, func(batch []model.RawOccurrence) error {
		if err := r.wait(ctx, len(batch)); err != nil {
			return err
		}
		return fn(batch)
	})
}

// wait charges n rows against the limiter, in burst-sized installments so
// batches larger than the burst still pass.
func (r *RateLimited) wait(ctx context.Context, n int) error {
	burst := r.lim.Burst()
	if burst <= 0 {
		return nil
	}
	for n > 0 {
		take := n
		if take > burst {
			take = burst
		}
		if err := r.lim.WaitN(ctx, take); err != nil {
			return err
		}
		n -= take
	}
	return nil
}
