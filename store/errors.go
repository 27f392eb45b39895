package store

import (
	"errors"
	"fmt"

	"github.com/hupe1980/hexdiv/model"
)

// ErrPartitionNotFound is returned when a partition key has no segment. It
// is a distinct outcome from an empty partition and callers must not treat
// it as "zero records".
var ErrPartitionNotFound = errors.New("partition not found")

// WriteError indicates that persisting a partition failed. The original
// underlying error can be accessed via errors.Unwrap.
type WriteError struct {
	Resolution model.Resolution
	Key        model.PartitionKey
	cause      error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write partition %s/%s: %v", e.Resolution, e.Key, e.cause)
}

func (e *WriteError) Unwrap() error { return e.cause }
