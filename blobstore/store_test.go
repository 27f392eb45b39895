package blobstore

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	// Missing blobs are distinguishable.
	_, err := s.Open(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	// Put / Open round-trip.
	payload := []byte("hello partitions")
	require.NoError(t, s.Put(ctx, "res=3/part-aa.seg", payload))

	blob, err := s.Open(ctx, "res=3/part-aa.seg")
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), blob.Size())

	got, err := ReadAll(ctx, blob)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	// Ranged read.
	rc, err := blob.ReadRange(ctx, 6, 4)
	require.NoError(t, err)
	part, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, []byte("part"), part)
	require.NoError(t, blob.Close())

	// Streaming create.
	w, err := s.Create(ctx, "res=3/part-bb.seg")
	require.NoError(t, err)
	_, err = w.Write([]byte("second "))
	require.NoError(t, err)
	_, err = w.Write([]byte("segment"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	blob, err = s.Open(ctx, "res=3/part-bb.seg")
	require.NoError(t, err)
	got, err = ReadAll(ctx, blob)
	require.NoError(t, err)
	assert.Equal(t, []byte("second segment"), got)
	require.NoError(t, blob.Close())

	// Discarded writes never become visible.
	w, err = s.Create(ctx, "res=3/part-cc.seg")
	require.NoError(t, err)
	_, err = w.Write([]byte("abandoned"))
	require.NoError(t, err)
	require.NoError(t, w.Discard())
	_, err = s.Open(ctx, "res=3/part-cc.seg")
	assert.ErrorIs(t, err, ErrNotFound)

	// List with prefix.
	names, err := s.List(ctx, "res=3/")
	require.NoError(t, err)
	assert.Equal(t, []string{"res=3/part-aa.seg", "res=3/part-bb.seg"}, names)

	// Overwrite replaces content.
	require.NoError(t, s.Put(ctx, "res=3/part-aa.seg", []byte("v2")))
	blob, err = s.Open(ctx, "res=3/part-aa.seg")
	require.NoError(t, err)
	got, err = ReadAll(ctx, blob)
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)
	require.NoError(t, blob.Close())

	// Delete is idempotent.
	require.NoError(t, s.Delete(ctx, "res=3/part-aa.seg"))
	require.NoError(t, s.Delete(ctx, "res=3/part-aa.seg"))
	_, err = s.Open(ctx, "res=3/part-aa.seg")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestLocalStore(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	testStore(t, s)
}

func TestLocalStoreTempFilesInvisible(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	w, err := s.Create(ctx, "res=4/part-cc.seg")
	require.NoError(t, err)
	_, err = w.Write([]byte("in flight"))
	require.NoError(t, err)

	// Not visible before Close.
	_, err = s.Open(ctx, "res=4/part-cc.seg")
	assert.ErrorIs(t, err, ErrNotFound)
	names, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, w.Close())
	_, err = s.Open(ctx, "res=4/part-cc.seg")
	assert.NoError(t, err)
}
