package results

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/hexdiv/blobstore"
	"github.com/hupe1980/hexdiv/model"
)

func sampleTable() map[model.CellID]model.CellAggregate {
	return map[model.CellID]model.CellAggregate{
		"cell-b": {Cell: "cell-b", N: 10, Richness: 3, Shannon: 0.9, Simpson: 0.4, MaxProportion: 0.5, HurlbertES: 2.7, Hill1: 2.46, Hill2: 2.5, HillInf: 2},
		"cell-a": {Cell: "cell-a", N: 4, Richness: 1, Shannon: 0, Simpson: 1, MaxProportion: 1, HurlbertES: 0, Hill1: 1, Hill2: 1, HillInf: 1},
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	blobs := blobstore.NewMemoryStore()
	ctx := context.Background()

	snap := NewSnapshot(3, model.DepthShallow, 100, 50, sampleTable())
	require.Len(t, snap.Cells, 2)
	assert.Equal(t, model.CellID("cell-a"), snap.Cells[0].Cell, "rows sorted by cell")
	assert.Equal(t, "shallow", snap.Band)

	name := Name(3, model.DepthShallow)
	require.NoError(t, Save(ctx, blobs, name, snap))

	got, err := Load(ctx, blobs, name)
	require.NoError(t, err)
	assert.Equal(t, snap.Resolution, got.Resolution)
	assert.Equal(t, snap.Band, got.Band)
	assert.Equal(t, snap.ESN, got.ESN)
	assert.Equal(t, snap.Cells, got.Cells)
	assert.Equal(t, sampleTable(), got.Table())
}

func TestLoadMissingSnapshot(t *testing.T) {
	_, err := Load(context.Background(), blobstore.NewMemoryStore(), "results/res=3/all.snap")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestLoadRejectsGarbage(t *testing.T) {
	blobs := blobstore.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, blobs.Put(ctx, "bad.snap", []byte("not a snapshot")))
	_, err := Load(ctx, blobs, "bad.snap")
	assert.Error(t, err)

	// Valid header, corrupt body.
	snap := NewSnapshot(3, model.DepthAll, 0, 50, sampleTable())
	require.NoError(t, Save(ctx, blobs, "corrupt.snap", snap))
	blob, err := blobs.Open(ctx, "corrupt.snap")
	require.NoError(t, err)
	data, err := blobstore.ReadAll(ctx, blob)
	require.NoError(t, err)
	require.NoError(t, blob.Close())
	data[len(data)-1] ^= 0xFF
	require.NoError(t, blobs.Put(ctx, "corrupt.snap", data))

	_, err = Load(ctx, blobs, "corrupt.snap")
	assert.Error(t, err)
}

func TestSnapshotName(t *testing.T) {
	assert.Equal(t, "results/res=3/all.snap", Name(3, model.DepthAll))
	assert.Equal(t, "results/res=4/deep.snap", Name(4, model.DepthDeep))
}
