package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/hexdiv/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hexdiv.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
source:
  path: /data/occurrences.parquet
  batch_size: 4096
  columns:
    count: individualcount
storage:
  backend: local
  path: ./indicators
run:
  resolutions: [3, 4]
  esn: 50
  depth_threshold: 100
  workers: 8
  compression: zstd
logging:
  format: json
  level: debug
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/data/occurrences.parquet", cfg.Source.Path)
	assert.Equal(t, 4096, cfg.Source.BatchSize)
	assert.Equal(t, "individualcount", cfg.Source.Columns.Count)
	assert.Equal(t, []model.Resolution{3, 4}, cfg.Run.ResolutionList())
	assert.Equal(t, 100.0, cfg.Run.DepthThreshold)
	assert.Equal(t, "zstd", cfg.Run.Compression)
	assert.Equal(t, "json", cfg.Logging.Format)

	opts := scanOptions(cfg.Source)
	assert.Equal(t, "individualcount", opts.Columns.Count)
	assert.Equal(t, "decimallongitude", opts.Columns.Lon, "unset columns keep defaults")
	assert.True(t, opts.RequireSpecies)
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "no source",
			body: "storage:\n  backend: local\n  path: ./x\n",
		},
		{
			name: "both sources",
			body: "source:\n  path: a\n  blob: b\nstorage:\n  backend: local\n  path: ./x\n",
		},
		{
			name: "unknown backend",
			body: "source:\n  path: a\nstorage:\n  backend: gcs\n  path: ./x\n",
		},
		{
			name: "s3 without bucket",
			body: "source:\n  path: a\nstorage:\n  backend: s3\n",
		},
		{
			name: "minio without endpoint",
			body: "source:\n  path: a\nstorage:\n  backend: minio\n  bucket: b\n",
		},
		{
			name: "bad compression",
			body: "source:\n  path: a\nstorage:\n  backend: local\n  path: ./x\nrun:\n  compression: gzip\n",
		},
		{
			name: "resolution out of range",
			body: "source:\n  path: a\nstorage:\n  backend: local\n  path: ./x\nrun:\n  resolutions: [16]\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig(writeConfig(t, tt.body))
			require.NoError(t, err)
			assert.Error(t, cfg.Validate())
		})
	}
}
