package hexdiv

import (
	"errors"
	"fmt"

	"github.com/hupe1980/hexdiv/grid"
	"github.com/hupe1980/hexdiv/model"
	"github.com/hupe1980/hexdiv/results"
	"github.com/hupe1980/hexdiv/store"
)

var (
	// ErrNotFound is returned when a partition, manifest or snapshot does
	// not exist.
	ErrNotFound = errors.New("not found")

	// ErrClosed is returned when operating on a closed instance.
	ErrClosed = errors.New("hexdiv is closed")

	// ErrOutOfRange is returned for coordinates or cells the grid cannot
	// encode.
	ErrOutOfRange = grid.ErrOutOfRange
)

// ErrInvalidResolution indicates a resolution outside the grid's range.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrInvalidResolution struct {
	Resolution model.Resolution
	cause      error
}

func (e *ErrInvalidResolution) Error() string {
	return fmt.Sprintf("invalid resolution: %d", int(e.Resolution))
}

func (e *ErrInvalidResolution) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Not found unification.
	if errors.Is(err, store.ErrPartitionNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if errors.Is(err, results.ErrSnapshotNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	return err
}
