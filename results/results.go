// Package results persists merged indicator tables as compressed snapshots,
// so a completed aggregation pass can be served to reporting consumers
// without re-reading the partitioned store.
//
// A snapshot is a small binary envelope around a zstd-compressed JSON body:
//
//	magic "HXRS" | version u8 | reserved u8 x3 | bodyLen u32 | zstd(json)
package results

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/hupe1980/hexdiv/blobstore"
	"github.com/hupe1980/hexdiv/model"
)

const (
	snapshotMagic      = "HXRS"
	snapshotVersion    = 1
	snapshotHeaderSize = 12
)

var (
	// ErrSnapshotNotFound is returned when loading a snapshot that does not
	// exist.
	ErrSnapshotNotFound = errors.New("results: snapshot not found")

	errBadSnapshot = errors.New("results: malformed snapshot")
)

// Snapshot is one persisted indicator table with its run parameters, enough
// for a consumer to interpret the rows without the store that produced them.
type Snapshot struct {
	Resolution model.Resolution `json:"resolution"`
	Band       string           `json:"band"`
	Threshold  float64          `json:"threshold,omitempty"`
	ESN        int              `json:"esn"`
	CreatedAt  time.Time        `json:"created_at"`

	Cells []model.CellAggregate `json:"cells"`
}

// NewSnapshot builds a snapshot from a merged aggregate table. Rows are
// sorted by cell identifier, so identical tables serialize identically.
func NewSnapshot(res model.Resolution, band model.DepthBand, threshold float64, esn int, cells map[model.CellID]model.CellAggregate) *Snapshot {
	rows := make([]model.CellAggregate, 0, len(cells))
	for _, agg := range cells {
		rows = append(rows, agg)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Cell < rows[j].Cell })

	return &Snapshot{
		Resolution: res,
		Band:       band.String(),
		Threshold:  threshold,
		ESN:        esn,
		CreatedAt:  time.Now().UTC(),
		Cells:      rows,
	}
}

// Table returns the snapshot rows as a cell-keyed map.
func (s *Snapshot) Table() map[model.CellID]model.CellAggregate {
	out := make(map[model.CellID]model.CellAggregate, len(s.Cells))
	for _, agg := range s.Cells {
		out[agg.Cell] = agg
	}
	return out
}

// Save writes the snapshot to the blobstore under the given name. The write
// replaces any previous snapshot at that name in one step.
func Save(ctx context.Context, blobs blobstore.Store, name string, snap *Snapshot) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("results: encode snapshot: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("results: zstd encoder: %w", err)
	}
	compressed := enc.EncodeAll(body, nil)
	_ = enc.Close()

	out := make([]byte, snapshotHeaderSize, snapshotHeaderSize+len(compressed))
	copy(out, snapshotMagic)
	out[4] = snapshotVersion
	binary.LittleEndian.PutUint32(out[8:], uint32(len(body)))
	out = append(out, compressed...)

	if err := blobs.Put(ctx, name, out); err != nil {
		return fmt.Errorf("results: write snapshot %s: %w", name, err)
	}
	return nil
}

// Load reads a snapshot back.
func Load(ctx context.Context, blobs blobstore.Store, name string) (*Snapshot, error) {
	blob, err := blobs.Open(ctx, name)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
		}
		return nil, err
	}
	defer blob.Close()

	data, err := blobstore.ReadAll(ctx, blob)
	if err != nil {
		return nil, err
	}
	if len(data) < snapshotHeaderSize || string(data[:4]) != snapshotMagic {
		return nil, errBadSnapshot
	}
	if data[4] != snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", errBadSnapshot, data[4])
	}
	bodyLen := binary.LittleEndian.Uint32(data[8:])

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("results: zstd decoder: %w", err)
	}
	defer dec.Close()

	body, err := dec.DecodeAll(data[snapshotHeaderSize:], make([]byte, 0, bodyLen))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadSnapshot, err)
	}
	if uint32(len(body)) != bodyLen {
		return nil, fmt.Errorf("%w: body length mismatch", errBadSnapshot)
	}

	var snap Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", errBadSnapshot, err)
	}
	return &snap, nil
}

// Name returns the conventional snapshot name for one pass.
func Name(res model.Resolution, band model.DepthBand) string {
	return fmt.Sprintf("results/res=%d/%s.snap", int(res), band)
}
