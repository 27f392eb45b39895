package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/hupe1980/hexdiv/blobstore"
	"github.com/hupe1980/hexdiv/model"
)

const manifestVersion = 1

// Manifest describes the partitions written for one resolution in the
// current run. It is rewritten atomically after every successful write pass.
type Manifest struct {
	Version     int              `json:"version"`
	Resolution  model.Resolution `json:"resolution"`
	Compression string           `json:"compression"`
	WrittenAt   time.Time        `json:"written_at"`
	TotalRows   uint64           `json:"total_rows"`
	Partitions  []PartitionInfo  `json:"partitions"`
}

// PartitionInfo describes a single partition segment.
type PartitionInfo struct {
	Key  model.PartitionKey `json:"key"`
	Rows uint64             `json:"rows"`
	Size int64              `json:"size"`
}

func manifestName(res model.Resolution) string {
	return fmt.Sprintf("res=%d/MANIFEST.json", int(res))
}

func saveManifest(ctx context.Context, blobs blobstore.Store, m *Manifest) error {
	m.Version = manifestVersion
	sort.Slice(m.Partitions, func(i, j int) bool {
		return m.Partitions[i].Key < m.Partitions[j].Key
	})

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return blobs.Put(ctx, manifestName(m.Resolution), data)
}

func loadManifest(ctx context.Context, blobs blobstore.Store, res model.Resolution) (*Manifest, error) {
	blob, err := blobs.Open(ctx, manifestName(res))
	if err != nil {
		return nil, err
	}
	defer blob.Close()

	data, err := blobstore.ReadAll(ctx, blob)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m.Version != manifestVersion {
		return nil, fmt.Errorf("unsupported manifest version: %d (expected %d)", m.Version, manifestVersion)
	}
	return &m, nil
}
