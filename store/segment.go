package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"

	"github.com/hupe1980/hexdiv/model"
)

// Segment layout (one blob per partition):
//
//	header:  magic "HXSG" | version u8 | compression u8 | reserved u16
//	frames:  (frameChunk u8 | payloadLen u32 | compressed chunk payload)*
//	footer:  frameFooter u8 | footerLen u32 | rowCount u64 | crc32c u32
//
// Chunks are self-contained row groups with chunk-local dictionaries, so a
// writer can stream batches without holding the partition in memory, and a
// reader can decode chunk by chunk. The CRC covers every chunk frame.
//
// Chunk payload (before compression), columnar:
//
//	rowCount u32
//	cell dictionary:    count u32, then uvarint-length-prefixed strings
//	species dictionary: count u32, then uvarint-length-prefixed strings
//	cell column:    rowCount x uvarint dictionary index
//	species column: rowCount x uvarint dictionary index
//	count column:   rowCount x uvarint
//	depth column:   rowCount x (present u8 [+ float64 bits])
const (
	segmentMagic   = "HXSG"
	segmentVersion = 1

	frameChunk  = 1
	frameFooter = 2

	frameHeaderSize   = 5 // type u8 + payloadLen u32
	segmentHeaderSize = 8
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

var (
	errBadMagic    = errors.New("segment: bad magic")
	errBadVersion  = errors.New("segment: unsupported version")
	errTruncated   = errors.New("segment: truncated")
	errBadChecksum = errors.New("segment: checksum mismatch")
	errNoFooter    = errors.New("segment: missing footer")
)

// Projection selects which optional columns a scan decodes. Cell and species
// are always decoded; counts and depths can be skipped for consumers that
// only need membership.
type Projection struct {
	Counts bool
	Depths bool
}

// FullProjection decodes every column.
func FullProjection() Projection {
	return Projection{Counts: true, Depths: true}
}

// segmentWriter streams chunks of records into a WritableBlob-shaped sink.
type segmentWriter struct {
	w           io.Writer
	compression Compression
	rows        uint64
	crc         uint32
	scratch     []byte
}

func newSegmentWriter(w io.Writer, compression Compression) (*segmentWriter, error) {
	header := make([]byte, segmentHeaderSize)
	copy(header, segmentMagic)
	header[4] = segmentVersion
	header[5] = byte(compression)
	if _, err := w.Write(header); err != nil {
		return nil, err
	}
	return &segmentWriter{w: w, compression: compression}, nil
}

// writeChunk encodes and appends one row group. Empty chunks are skipped.
func (sw *segmentWriter) writeChunk(records []model.OccurrenceRecord) error {
	if len(records) == 0 {
		return nil
	}

	payload := encodeChunk(sw.scratch[:0], records)
	sw.scratch = payload // reuse the allocation for the next chunk

	compressed, err := compressBlock(payload, sw.compression)
	if err != nil {
		return err
	}

	frame := make([]byte, frameHeaderSize)
	frame[0] = frameChunk
	binary.LittleEndian.PutUint32(frame[1:], uint32(len(compressed)))
	if _, err := sw.w.Write(frame); err != nil {
		return err
	}
	if _, err := sw.w.Write(compressed); err != nil {
		return err
	}

	sw.crc = crc32.Update(sw.crc, castagnoli, frame)
	sw.crc = crc32.Update(sw.crc, castagnoli, compressed)
	sw.rows += uint64(len(records))
	return nil
}

// finish appends the footer frame.
func (sw *segmentWriter) finish() error {
	footer := make([]byte, frameHeaderSize+12)
	footer[0] = frameFooter
	binary.LittleEndian.PutUint32(footer[1:], 12)
	binary.LittleEndian.PutUint64(footer[frameHeaderSize:], sw.rows)
	binary.LittleEndian.PutUint32(footer[frameHeaderSize+8:], sw.crc)
	_, err := sw.w.Write(footer)
	return err
}

func encodeChunk(buf []byte, records []model.OccurrenceRecord) []byte {
	cellDict := make(map[model.CellID]uint64)
	var cellNames []string
	speciesDict := make(map[string]uint64)
	var speciesNames []string

	for i := range records {
		rec := &records[i]
		if _, ok := cellDict[rec.Cell]; !ok {
			cellDict[rec.Cell] = uint64(len(cellNames))
			cellNames = append(cellNames, string(rec.Cell))
		}
		if _, ok := speciesDict[rec.Species]; !ok {
			speciesDict[rec.Species] = uint64(len(speciesNames))
			speciesNames = append(speciesNames, rec.Species)
		}
	}

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(records)))
	buf = appendDict(buf, cellNames)
	buf = appendDict(buf, speciesNames)

	for i := range records {
		buf = binary.AppendUvarint(buf, cellDict[records[i].Cell])
	}
	for i := range records {
		buf = binary.AppendUvarint(buf, speciesDict[records[i].Species])
	}
	for i := range records {
		count := records[i].Count
		if count < 0 {
			count = 0
		}
		buf = binary.AppendUvarint(buf, uint64(count))
	}
	for i := range records {
		rec := &records[i]
		if rec.HasDepth {
			buf = append(buf, 1)
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(rec.Depth))
		} else {
			buf = append(buf, 0)
		}
	}
	return buf
}

func appendDict(buf []byte, names []string) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(names)))
	for _, name := range names {
		buf = binary.AppendUvarint(buf, uint64(len(name)))
		buf = append(buf, name...)
	}
	return buf
}

// scanSegment decodes a whole segment, invoking fn for every record that
// passes the filter. key is re-attached from the segment's storage location.
func scanSegment(data []byte, key model.PartitionKey, filter model.RowFilter, proj Projection, fn func(*model.OccurrenceRecord) error) (uint64, error) {
	if len(data) < segmentHeaderSize {
		return 0, errTruncated
	}
	if string(data[:4]) != segmentMagic {
		return 0, errBadMagic
	}
	if data[4] != segmentVersion {
		return 0, fmt.Errorf("%w: %d", errBadVersion, data[4])
	}
	compression := Compression(data[5])

	var (
		crc     uint32
		rows    uint64
		sawFoot bool
		off     = int64(segmentHeaderSize)
		total   = int64(len(data))
		rec     model.OccurrenceRecord
	)

	for off < total {
		if off+frameHeaderSize > total {
			return 0, errTruncated
		}
		frameType := data[off]
		payloadLen := int64(binary.LittleEndian.Uint32(data[off+1:]))
		if off+frameHeaderSize+payloadLen > total {
			return 0, errTruncated
		}
		payload := data[off+frameHeaderSize : off+frameHeaderSize+payloadLen]

		switch frameType {
		case frameChunk:
			crc = crc32.Update(crc, castagnoli, data[off:off+frameHeaderSize])
			crc = crc32.Update(crc, castagnoli, payload)

			chunk, err := decompressBlock(payload, compression)
			if err != nil {
				return 0, err
			}
			n, err := decodeChunk(chunk, key, filter, proj, &rec, fn)
			if err != nil {
				return 0, err
			}
			rows += n
		case frameFooter:
			if payloadLen != 12 {
				return 0, errTruncated
			}
			wantRows := binary.LittleEndian.Uint64(payload)
			wantCRC := binary.LittleEndian.Uint32(payload[8:])
			if wantCRC != crc {
				return 0, errBadChecksum
			}
			if wantRows != rows {
				return 0, fmt.Errorf("segment: row count mismatch: footer %d, decoded %d", wantRows, rows)
			}
			sawFoot = true
		default:
			return 0, fmt.Errorf("segment: unknown frame type %d", frameType)
		}
		off += frameHeaderSize + payloadLen
	}

	if !sawFoot {
		return 0, errNoFooter
	}
	return rows, nil
}

// decodeChunk decodes one chunk payload. Note rows counts decoded records
// before filtering, so footer validation is filter-independent.
func decodeChunk(chunk []byte, key model.PartitionKey, filter model.RowFilter, proj Projection, rec *model.OccurrenceRecord, fn func(*model.OccurrenceRecord) error) (uint64, error) {
	r := &byteReader{data: chunk}

	rowCount, err := r.uint32()
	if err != nil {
		return 0, err
	}
	// Every row occupies at least one byte per column, so a row count beyond
	// the chunk size is corruption; reject it before sizing the index slices.
	if int64(rowCount) > int64(len(chunk)) {
		return 0, errTruncated
	}
	cellNames, err := readDict(r)
	if err != nil {
		return 0, err
	}
	speciesNames, err := readDict(r)
	if err != nil {
		return 0, err
	}

	cellIdx := make([]uint64, rowCount)
	for i := range cellIdx {
		if cellIdx[i], err = r.uvarint(); err != nil {
			return 0, err
		}
		if cellIdx[i] >= uint64(len(cellNames)) {
			return 0, errors.New("segment: cell index out of range")
		}
	}
	spIdx := make([]uint64, rowCount)
	for i := range spIdx {
		if spIdx[i], err = r.uvarint(); err != nil {
			return 0, err
		}
		if spIdx[i] >= uint64(len(speciesNames)) {
			return 0, errors.New("segment: species index out of range")
		}
	}
	counts := make([]uint64, rowCount)
	for i := range counts {
		if counts[i], err = r.uvarint(); err != nil {
			return 0, err
		}
	}

	for i := uint32(0); i < rowCount; i++ {
		*rec = model.OccurrenceRecord{
			Cell:    model.CellID(cellNames[cellIdx[i]]),
			Species: speciesNames[spIdx[i]],
			Key:     key,
			Count:   1,
		}
		if proj.Counts {
			rec.Count = int64(counts[i])
		}

		present, err := r.byte()
		if err != nil {
			return 0, err
		}
		if present != 0 {
			bits, err := r.uint64()
			if err != nil {
				return 0, err
			}
			if proj.Depths {
				rec.Depth = math.Float64frombits(bits)
				rec.HasDepth = true
			}
		}

		if !filter.Match(rec) {
			continue
		}
		if err := fn(rec); err != nil {
			return 0, err
		}
	}
	return uint64(rowCount), nil
}

func readDict(r *byteReader) ([]string, error) {
	n, err := r.uint32()
	if err != nil {
		return nil, err
	}
	// Each entry needs at least its length byte.
	if int64(n) > int64(len(r.data)-r.off) {
		return nil, errTruncated
	}
	names := make([]string, n)
	for i := range names {
		l, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		b, err := r.bytes(int(l))
		if err != nil {
			return nil, err
		}
		names[i] = string(b)
	}
	return names, nil
}

// byteReader is a minimal cursor over a decoded chunk.
type byteReader struct {
	data []byte
	off  int
}

func (r *byteReader) byte() (byte, error) {
	if r.off >= len(r.data) {
		return 0, errTruncated
	}
	b := r.data[r.off]
	r.off++
	return b, nil
}

func (r *byteReader) bytes(n int) ([]byte, error) {
	// Compare against the remaining bytes, not r.off+n: a corrupt length can
	// be large enough to wrap the addition past the bounds check.
	if n < 0 || n > len(r.data)-r.off {
		return nil, errTruncated
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *byteReader) uint32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *byteReader) uint64() (uint64, error) {
	b, err := r.bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *byteReader) uvarint() (uint64, error) {
	v, n := binary.Uvarint(r.data[r.off:])
	if n <= 0 {
		return 0, errTruncated
	}
	r.off += n
	return v, nil
}
