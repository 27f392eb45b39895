package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/apache/arrow/go/v17/parquet"
	"github.com/apache/arrow/go/v17/parquet/file"
	"github.com/apache/arrow/go/v17/parquet/pqarrow"

	"github.com/hupe1980/hexdiv/blobstore"
	"github.com/hupe1980/hexdiv/model"
)

// ErrColumnNotFound is returned when a required source column is missing.
var ErrColumnNotFound = errors.New("dataset: column not found")

// Parquet reads occurrence rows from a parquet table. Row groups are decoded
// one batch at a time, so memory stays bounded by the batch size regardless
// of table size. A Parquet dataset can be scanned multiple times; each scan
// opens the source fresh.
type Parquet struct {
	open  func(ctx context.Context) (parquet.ReaderAtSeeker, io.Closer, error)
	alloc memory.Allocator
}

// OpenFile creates a Parquet dataset over a local file path.
func OpenFile(path string) *Parquet {
	return &Parquet{
		alloc: memory.DefaultAllocator,
		open: func(context.Context) (parquet.ReaderAtSeeker, io.Closer, error) {
			f, err := os.Open(path)
			if err != nil {
				return nil, nil, err
			}
			return f, f, nil
		},
	}
}

// OpenBlob creates a Parquet dataset over a blobstore object. Reads go
// through the blob's ranged-read interface, so remote object stores are
// scanned without downloading the whole table.
func OpenBlob(store blobstore.Store, name string) *Parquet {
	return &Parquet{
		alloc: memory.DefaultAllocator,
		open: func(ctx context.Context) (parquet.ReaderAtSeeker, io.Closer, error) {
			blob, err := store.Open(ctx, name)
			if err != nil {
				return nil, nil, err
			}
			return &blobReaderAt{ctx: ctx, blob: blob}, blob, nil
		},
	}
}

// Schema implements Dataset.
func (p *Parquet) Schema(ctx context.Context) ([]string, error) {
	fr, cleanup, err := p.openArrow(ctx, pqarrow.ArrowReadProperties{})
	if err != nil {
		return nil, err
	}
	defer cleanup()

	sc, err := fr.Schema()
	if err != nil {
		return nil, fmt.Errorf("dataset: read parquet schema: %w", err)
	}
	names := make([]string, 0, sc.NumFields())
	for i := 0; i < sc.NumFields(); i++ {
		names = append(names, sc.Field(i).Name)
	}
	return names, nil
}

// Batches implements Dataset. Only the mapped columns are read from the
// source.
func (p *Parquet) Batches(ctx context.Context, opts Options, fn BatchFunc) error {
	opts.normalize()

	fr, cleanup, err := p.openArrow(ctx, pqarrow.ArrowReadProperties{
		BatchSize: int64(opts.BatchSize),
	})
	if err != nil {
		return err
	}
	defer cleanup()

	sc, err := fr.Schema()
	if err != nil {
		return fmt.Errorf("dataset: read parquet schema: %w", err)
	}
	proj, err := projectColumns(sc, opts.Columns)
	if err != nil {
		return err
	}

	rr, err := fr.GetRecordReader(ctx, proj.indices, nil)
	if err != nil {
		return fmt.Errorf("dataset: open record reader: %w", err)
	}
	defer rr.Release()

	// The projected record keeps the source column order, so positions are
	// resolved from the reader's schema, not from request order.
	proj.bind(rr.Schema())

	batch := make([]model.RawOccurrence, 0, opts.BatchSize)
	for {
		rec, err := rr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("dataset: read parquet batch: %w", err)
		}

		batch = proj.appendRows(batch[:0], rec, opts.RequireSpecies)
		if len(batch) == 0 {
			continue
		}
		if err := fn(batch); err != nil {
			return err
		}
	}
}

func (p *Parquet) openArrow(ctx context.Context, props pqarrow.ArrowReadProperties) (*pqarrow.FileReader, func(), error) {
	src, closer, err := p.open(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("dataset: open parquet source: %w", err)
	}

	rdr, err := file.NewParquetReader(src)
	if err != nil {
		_ = closer.Close()
		return nil, nil, fmt.Errorf("dataset: open parquet: %w", err)
	}

	fr, err := pqarrow.NewFileReader(rdr, props, p.alloc)
	if err != nil {
		_ = rdr.Close()
		return nil, nil, fmt.Errorf("dataset: open parquet: %w", err)
	}

	cleanup := func() {
		// file.Reader closes the underlying source.
		_ = rdr.Close()
	}
	return fr, cleanup, nil
}

// projection holds the parquet column indices to request and, once bound to
// the projected schema, the record position of each occurrence field. A
// position of -1 means the column is absent from the source.
type projection struct {
	indices []int
	cols    ColumnMapping

	lon, lat, species  int
	count              int
	minDepth, maxDepth int
}

func projectColumns(sc *arrow.Schema, cols ColumnMapping) (*projection, error) {
	p := &projection{cols: cols}

	seen := map[int]struct{}{}
	add := func(name string, required bool) error {
		if name == "" {
			return nil
		}
		idx := sc.FieldIndices(name)
		if len(idx) == 0 {
			if required {
				return fmt.Errorf("%w: %q", ErrColumnNotFound, name)
			}
			return nil
		}
		if _, ok := seen[idx[0]]; !ok {
			seen[idx[0]] = struct{}{}
			p.indices = append(p.indices, idx[0])
		}
		return nil
	}

	if err := add(cols.Lon, true); err != nil {
		return nil, err
	}
	if err := add(cols.Lat, true); err != nil {
		return nil, err
	}
	if err := add(cols.Species, true); err != nil {
		return nil, err
	}
	if err := add(cols.Count, false); err != nil {
		return nil, err
	}
	if err := add(cols.MinDepth, false); err != nil {
		return nil, err
	}
	if err := add(cols.MaxDepth, false); err != nil {
		return nil, err
	}
	return p, nil
}

// bind resolves record positions against the projected schema.
func (p *projection) bind(sc *arrow.Schema) {
	at := func(name string) int {
		if name == "" {
			return -1
		}
		idx := sc.FieldIndices(name)
		if len(idx) == 0 {
			return -1
		}
		return idx[0]
	}
	p.lon = at(p.cols.Lon)
	p.lat = at(p.cols.Lat)
	p.species = at(p.cols.Species)
	p.count = at(p.cols.Count)
	p.minDepth = at(p.cols.MinDepth)
	p.maxDepth = at(p.cols.MaxDepth)
}

// appendRows copies one arrow record into raw occurrences. The record stays
// owned by the reader; values are copied out, never referenced.
func (p *projection) appendRows(dst []model.RawOccurrence, rec arrow.Record, requireSpecies bool) []model.RawOccurrence {
	n := int(rec.NumRows())
	for row := 0; row < n; row++ {
		var raw model.RawOccurrence
		var ok bool

		if raw.Lon, ok = floatAt(rec.Column(p.lon), row); !ok {
			continue
		}
		if raw.Lat, ok = floatAt(rec.Column(p.lat), row); !ok {
			continue
		}
		raw.Species, _ = stringAt(rec.Column(p.species), row)
		if requireSpecies && raw.Species == "" {
			continue
		}

		if p.count >= 0 {
			if v, ok := intAt(rec.Column(p.count), row); ok {
				raw.Count = v
			}
		}
		if p.minDepth >= 0 {
			raw.MinDepth, raw.HasMinDepth = floatAt(rec.Column(p.minDepth), row)
		}
		if p.maxDepth >= 0 {
			raw.MaxDepth, raw.HasMaxDepth = floatAt(rec.Column(p.maxDepth), row)
		}
		dst = append(dst, raw)
	}
	return dst
}

func floatAt(col arrow.Array, row int) (float64, bool) {
	if col.IsNull(row) {
		return 0, false
	}
	switch a := col.(type) {
	case *array.Float64:
		return a.Value(row), true
	case *array.Float32:
		return float64(a.Value(row)), true
	default:
		return 0, false
	}
}

func intAt(col arrow.Array, row int) (int64, bool) {
	if col.IsNull(row) {
		return 0, false
	}
	switch a := col.(type) {
	case *array.Int64:
		return a.Value(row), true
	case *array.Int32:
		return int64(a.Value(row)), true
	default:
		return 0, false
	}
}

func stringAt(col arrow.Array, row int) (string, bool) {
	if col.IsNull(row) {
		return "", false
	}
	switch a := col.(type) {
	case *array.String:
		return a.Value(row), true
	case *array.LargeString:
		return a.Value(row), true
	default:
		return "", false
	}
}

// blobReaderAt adapts a blobstore.Blob to the reader the parquet layer
// expects.
type blobReaderAt struct {
	ctx  context.Context
	blob blobstore.Blob
	off  int64
}

func (r *blobReaderAt) ReadAt(p []byte, off int64) (int, error) {
	return r.blob.ReadAt(r.ctx, p, off)
}

func (r *blobReaderAt) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		r.off = offset
	case io.SeekCurrent:
		r.off += offset
	case io.SeekEnd:
		r.off = r.blob.Size() + offset
	default:
		return 0, fmt.Errorf("dataset: invalid seek whence %d", whence)
	}
	if r.off < 0 {
		return 0, errors.New("dataset: negative seek offset")
	}
	return r.off, nil
}
