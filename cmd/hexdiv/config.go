package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/hexdiv/model"
)

// Config is the run configuration loaded from a YAML file.
type Config struct {
	Source  SourceConfig  `yaml:"source"`
	Storage StorageConfig `yaml:"storage"`
	Run     RunConfig     `yaml:"run"`
	Logging LoggingConfig `yaml:"logging"`
}

// SourceConfig names the occurrence table to ingest. Exactly one of Path
// (local parquet file) and Blob (object in the storage backend) must be set.
type SourceConfig struct {
	Path string `yaml:"path"`
	Blob string `yaml:"blob"`

	Columns       ColumnsConfig `yaml:"columns"`
	BatchSize     int           `yaml:"batch_size"`
	RateLimitRows float64       `yaml:"rate_limit_rows_per_sec"`
}

// ColumnsConfig maps occurrence fields to source column names. Empty fields
// keep the Darwin Core defaults.
type ColumnsConfig struct {
	Lon      string `yaml:"lon"`
	Lat      string `yaml:"lat"`
	Species  string `yaml:"species"`
	Count    string `yaml:"count"`
	MinDepth string `yaml:"min_depth"`
	MaxDepth string `yaml:"max_depth"`
}

// StorageConfig selects where partitions and snapshots live.
type StorageConfig struct {
	// Backend is one of "local", "s3" or "minio".
	Backend string `yaml:"backend"`

	// Path is the root directory for the local backend.
	Path string `yaml:"path"`

	// Bucket and Prefix locate the namespace for object-store backends.
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`

	// Endpoint, AccessKey, SecretKey and UseSSL configure the minio backend.
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`

	// Region overrides the AWS region for the s3 backend.
	Region string `yaml:"region"`
}

// RunConfig holds the indicator run parameters.
type RunConfig struct {
	Resolutions    []int   `yaml:"resolutions"`
	ESN            int     `yaml:"esn"`
	DepthThreshold float64 `yaml:"depth_threshold"`
	Workers        int     `yaml:"workers"`
	Compression    string  `yaml:"compression"`
	ChunkRows      int     `yaml:"chunk_rows"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	// Format is "text" (default) or "json".
	Format string `yaml:"format"`
	// Level is "debug", "info" (default), "warn" or "error".
	Level string `yaml:"level"`
}

// LoadConfig loads configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if (c.Source.Path == "") == (c.Source.Blob == "") {
		return fmt.Errorf("exactly one of source.path and source.blob must be set")
	}

	switch c.Storage.Backend {
	case "local":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the local backend")
		}
	case "s3", "minio":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for the %s backend", c.Storage.Backend)
		}
		if c.Storage.Backend == "minio" && c.Storage.Endpoint == "" {
			return fmt.Errorf("storage.endpoint is required for the minio backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	switch c.Run.Compression {
	case "", "lz4", "zstd", "none":
	default:
		return fmt.Errorf("unknown compression %q", c.Run.Compression)
	}

	for _, res := range c.Run.Resolutions {
		if res < 0 || res > 15 {
			return fmt.Errorf("resolution %d out of range", res)
		}
	}
	return nil
}

// ResolutionList returns the configured resolutions as model values.
func (c *RunConfig) ResolutionList() []model.Resolution {
	out := make([]model.Resolution, 0, len(c.Resolutions))
	for _, r := range c.Resolutions {
		out = append(out, model.Resolution(r))
	}
	return out
}
