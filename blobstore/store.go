package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrNotFound)`. The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// Store is an abstraction for reading and writing named data blobs
// (partition segments, manifests, snapshots). Implementations must be safe
// for concurrent use by multiple goroutines, provided no two writers target
// the same name.
type Store interface {
	// Open opens an existing blob for reading.
	Open(ctx context.Context, name string) (Blob, error)

	// Create creates a new blob for streaming writes. The blob only becomes
	// visible once Close returns nil.
	Create(ctx context.Context, name string) (WritableBlob, error)

	// Put writes a small blob in one call, replacing any previous content.
	Put(ctx context.Context, name string, data []byte) error

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// List returns all blob names with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a data blob.
type Blob interface {
	// ReadAt reads len(p) bytes starting at offset off.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)

	// ReadRange returns a reader over [off, off+length).
	ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error)

	// Size returns the size of the blob in bytes.
	Size() int64

	io.Closer
}

// WritableBlob is a streaming write handle. Writes are not visible to
// readers until Close succeeds.
type WritableBlob interface {
	io.Writer

	// Sync flushes buffered data to stable storage where the backend
	// supports it; object-store backends treat it as a no-op.
	Sync() error

	// Discard abandons the write without publishing anything. After Discard
	// the blob does not exist for readers; the handle must not be used again.
	Discard() error

	io.Closer
}

// Mappable is an optional interface for Blobs whose content is addressable
// as one byte slice without copying (local mmap, memory).
type Mappable interface {
	// Bytes returns the underlying byte slice, valid until Close.
	Bytes() ([]byte, error)
}

// ReadAll reads a whole blob into memory, using the zero-copy path when the
// blob supports it.
func ReadAll(ctx context.Context, b Blob) ([]byte, error) {
	if m, ok := b.(Mappable); ok {
		data, err := m.Bytes()
		if err != nil {
			return nil, err
		}
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	}

	out := make([]byte, b.Size())
	if len(out) == 0 {
		return out, nil
	}
	n, err := b.ReadAt(ctx, out, 0)
	if err == io.EOF && int64(n) == b.Size() {
		err = nil
	}
	return out[:n], err
}
