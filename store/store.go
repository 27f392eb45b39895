// Package store persists occurrence records grouped by partition key, one
// columnar segment per partition, on top of a blobstore. Partitions are
// disjoint by construction (the key is a pure function of the cell
// identifier), which is what lets the aggregation stage process them one at
// a time and merge results without coordination.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/hupe1980/hexdiv/blobstore"
	"github.com/hupe1980/hexdiv/model"
)

const defaultChunkRows = 16384

// Store reads and writes partitioned occurrence segments.
type Store struct {
	blobs       blobstore.Store
	compression Compression
	chunkRows   int
	logger      *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithCompression selects the segment chunk compression.
func WithCompression(c Compression) Option {
	return func(s *Store) { s.compression = c }
}

// WithChunkRows sets how many rows a segment chunk holds before it is
// compressed and flushed. Larger chunks compress better, smaller ones bound
// writer memory tighter.
func WithChunkRows(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.chunkRows = n
		}
	}
}

// WithLogger sets the structured logger. If unset, logging is discarded.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Store on the given blobstore.
func New(blobs blobstore.Store, opts ...Option) *Store {
	s := &Store{
		blobs:       blobs,
		compression: CompressionLZ4,
		chunkRows:   defaultChunkRows,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func resPrefix(res model.Resolution) string {
	return fmt.Sprintf("res=%d/", int(res))
}

func segmentName(res model.Resolution, key model.PartitionKey) string {
	return fmt.Sprintf("res=%d/part-%s.seg", int(res), key)
}

// Writer accumulates records for one resolution and persists them grouped
// by partition key. It must be used from a single goroutine; each partition
// segment has exactly one writer.
type Writer struct {
	store *Store
	ctx   context.Context
	res   model.Resolution

	buffers   map[model.PartitionKey][]model.OccurrenceRecord
	open      map[model.PartitionKey]*openSegment
	committed []string
	closed    bool
}

type openSegment struct {
	blob    blobstore.WritableBlob
	seg     *segmentWriter
	counter *countingWriter
}

// Writer starts a write pass for one resolution. Any partitions from a
// previous run are cleared first: each run recomputes indicators from the
// full source, so writes are idempotent per storage location.
func (s *Store) Writer(ctx context.Context, res model.Resolution) (*Writer, error) {
	existing, err := s.blobs.List(ctx, resPrefix(res))
	if err != nil {
		return nil, &WriteError{Resolution: res, cause: err}
	}
	for _, name := range existing {
		if err := s.blobs.Delete(ctx, name); err != nil {
			return nil, &WriteError{Resolution: res, cause: err}
		}
	}

	return &Writer{
		store:   s,
		ctx:     ctx,
		res:     res,
		buffers: make(map[model.PartitionKey][]model.OccurrenceRecord),
		open:    make(map[model.PartitionKey]*openSegment),
	}, nil
}

// Add buffers records, flushing full chunks to their partition segments.
// Records must already carry the partition key for this writer's resolution.
func (w *Writer) Add(records ...model.OccurrenceRecord) error {
	if w.closed {
		return errors.New("store: writer already closed")
	}
	for i := range records {
		rec := records[i]
		if rec.Key == "" {
			return &WriteError{Resolution: w.res, cause: errors.New("record without partition key")}
		}
		w.buffers[rec.Key] = append(w.buffers[rec.Key], rec)
		if len(w.buffers[rec.Key]) >= w.store.chunkRows {
			if err := w.flushKey(rec.Key); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *Writer) flushKey(key model.PartitionKey) error {
	buf := w.buffers[key]
	if len(buf) == 0 {
		return nil
	}

	seg, ok := w.open[key]
	if !ok {
		blob, err := w.store.blobs.Create(w.ctx, segmentName(w.res, key))
		if err != nil {
			return &WriteError{Resolution: w.res, Key: key, cause: err}
		}
		cw := &countingWriter{w: blob}
		sw, err := newSegmentWriter(cw, w.store.compression)
		if err != nil {
			_ = blob.Close()
			return &WriteError{Resolution: w.res, Key: key, cause: err}
		}
		seg = &openSegment{blob: blob, seg: sw, counter: cw}
		w.open[key] = seg
	}

	if err := seg.seg.writeChunk(buf); err != nil {
		return &WriteError{Resolution: w.res, Key: key, cause: err}
	}
	w.buffers[key] = buf[:0]
	return nil
}

// Close flushes all buffered records, finalizes every segment and writes the
// resolution manifest. The write pass only becomes visible to readers once
// Close returns nil.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	keys := make([]model.PartitionKey, 0, len(w.buffers))
	for key := range w.buffers {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	manifest := &Manifest{
		Resolution:  w.res,
		Compression: w.store.compression.String(),
		WrittenAt:   time.Now().UTC(),
	}

	for _, key := range keys {
		if err := w.flushKey(key); err != nil {
			w.abort()
			return err
		}
	}

	openKeys := make([]model.PartitionKey, 0, len(w.open))
	for key := range w.open {
		openKeys = append(openKeys, key)
	}
	sort.Slice(openKeys, func(i, j int) bool { return openKeys[i] < openKeys[j] })

	for _, key := range openKeys {
		seg := w.open[key]
		if err := seg.seg.finish(); err != nil {
			w.abort()
			return &WriteError{Resolution: w.res, Key: key, cause: err}
		}
		if err := seg.blob.Close(); err != nil {
			w.abort()
			return &WriteError{Resolution: w.res, Key: key, cause: err}
		}
		w.committed = append(w.committed, segmentName(w.res, key))
		manifest.Partitions = append(manifest.Partitions, PartitionInfo{
			Key:  key,
			Rows: seg.seg.rows,
			Size: seg.counter.n,
		})
		manifest.TotalRows += seg.seg.rows
		delete(w.open, key)
	}

	if err := saveManifest(w.ctx, w.store.blobs, manifest); err != nil {
		w.abort()
		return &WriteError{Resolution: w.res, cause: err}
	}

	w.store.logger.Info("partition write pass complete",
		"resolution", w.res.String(),
		"partitions", len(manifest.Partitions),
		"rows", manifest.TotalRows,
	)
	return nil
}

// Abort discards the write pass: open segments are abandoned unpublished and
// segments already finalized by Close are deleted, so an aborted pass leaves
// no partitions behind for readers to trip over.
func (w *Writer) Abort() {
	if w.closed {
		return
	}
	w.closed = true
	w.abort()
}

func (w *Writer) abort() {
	for _, seg := range w.open {
		_ = seg.blob.Discard()
	}
	w.open = map[model.PartitionKey]*openSegment{}

	// Cleanup must run even when the abort was triggered by cancellation.
	ctx := context.WithoutCancel(w.ctx)
	for _, name := range w.committed {
		_ = w.store.blobs.Delete(ctx, name)
	}
	w.committed = nil
}

// ListPartitions enumerates the partition keys present for a resolution.
// The manifest is authoritative when present; otherwise the blob namespace
// is listed directly.
func (s *Store) ListPartitions(ctx context.Context, res model.Resolution) ([]model.PartitionKey, error) {
	m, err := loadManifest(ctx, s.blobs, res)
	if err == nil {
		keys := make([]model.PartitionKey, 0, len(m.Partitions))
		for _, p := range m.Partitions {
			keys = append(keys, p.Key)
		}
		return keys, nil
	}
	if !errors.Is(err, blobstore.ErrNotFound) {
		return nil, err
	}

	names, err := s.blobs.List(ctx, resPrefix(res))
	if err != nil {
		return nil, err
	}
	var keys []model.PartitionKey
	for _, name := range names {
		base := strings.TrimPrefix(name, resPrefix(res))
		if !strings.HasPrefix(base, "part-") || !strings.HasSuffix(base, ".seg") {
			continue
		}
		keys = append(keys, model.PartitionKey(strings.TrimSuffix(strings.TrimPrefix(base, "part-"), ".seg")))
	}
	return keys, nil
}

// Scan streams one partition's records through fn, applying the filter and
// projection during decode. Returns ErrPartitionNotFound if the key has no
// segment.
func (s *Store) Scan(ctx context.Context, res model.Resolution, key model.PartitionKey, filter model.RowFilter, proj Projection, fn func(*model.OccurrenceRecord) error) error {
	blob, err := s.blobs.Open(ctx, segmentName(res, key))
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return fmt.Errorf("%w: %s/%s", ErrPartitionNotFound, res, key)
		}
		return err
	}
	defer blob.Close()

	data, err := blobstore.ReadAll(ctx, blob)
	if err != nil {
		return err
	}

	rows, err := scanSegment(data, key, filter, proj, fn)
	if err != nil {
		return fmt.Errorf("partition %s/%s: %w", res, key, err)
	}

	s.logger.Debug("partition scanned",
		"resolution", res.String(),
		"partition", string(key),
		"rows", rows,
	)
	return nil
}

// Read returns one partition's records as a slice. The read-back of a
// partition is exactly the multiset written to it, independent of any other
// partition's state.
func (s *Store) Read(ctx context.Context, res model.Resolution, key model.PartitionKey, filter model.RowFilter) ([]model.OccurrenceRecord, error) {
	var out []model.OccurrenceRecord
	err := s.Scan(ctx, res, key, filter, FullProjection(), func(rec *model.OccurrenceRecord) error {
		out = append(out, *rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Manifest returns the manifest for a resolution, or ErrPartitionNotFound
// if no write pass has completed.
func (s *Store) Manifest(ctx context.Context, res model.Resolution) (*Manifest, error) {
	m, err := loadManifest(ctx, s.blobs, res)
	if errors.Is(err, blobstore.ErrNotFound) {
		return nil, fmt.Errorf("%w: no manifest for %s", ErrPartitionNotFound, res)
	}
	return m, err
}

// countingWriter tracks bytes written to a segment for the manifest.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
