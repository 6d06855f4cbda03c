package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	defaults "github.com/comrade-coop/blockchain-predictor/config"
)

// Config represents the complete storage configuration.
type Config struct {
	// DataDir is the root directory for all storage files.
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`

	// CatalogPath is the SQLite catalog file. Defaults to {DataDir}/catalog.db.
	CatalogPath string `yaml:"catalog_path" mapstructure:"catalog_path"`

	// DefaultPeriod is the chunk period used when a save does not name one.
	// Format: "D", "W", "M", "Y"
	DefaultPeriod string `yaml:"default_period" mapstructure:"default_period"`

	// Compression configures Parquet compression.
	Compression CompressionConfig `yaml:"compression" mapstructure:"compression"`

	// Read configures chunk file reads.
	Read ReadConfig `yaml:"read" mapstructure:"read"`

	// Query configures the DuckDB inspection engine.
	Query QueryConfig `yaml:"query" mapstructure:"query"`
}

// CompressionConfig configures Parquet compression.
type CompressionConfig struct {
	// Algorithm is the compression algorithm: snappy, zstd, lz4, gzip, none.
	Algorithm string `yaml:"algorithm" mapstructure:"algorithm"`

	// Level is the compression level (for zstd: 1-22).
	Level int `yaml:"level" mapstructure:"level"`
}

// ReadConfig configures chunk file reads.
type ReadConfig struct {
	// BufferSize is the parquet read buffer size in bytes.
	BufferSize int `yaml:"buffer_size" mapstructure:"buffer_size"`

	// BatchRows is the number of rows decoded per read call.
	BatchRows int `yaml:"batch_rows" mapstructure:"batch_rows"`
}

// QueryConfig configures the query service.
type QueryConfig struct {
	// MemoryLimit is the DuckDB memory limit.
	MemoryLimit string `yaml:"memory_limit" mapstructure:"memory_limit"`

	// Timeout is the query timeout.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// MaxRows is the maximum number of rows returned by ad-hoc SQL.
	MaxRows int `yaml:"max_rows" mapstructure:"max_rows"`
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DataDir:       defaults.DefaultDataDir,
		DefaultPeriod: defaults.DefaultChunkPeriod,
		Compression: CompressionConfig{
			Algorithm: "zstd",
			Level:     3,
		},
		Read: ReadConfig{
			BufferSize: defaults.DefaultReadBufferSize,
			BatchRows:  defaults.DefaultReadBatchRows,
		},
		Query: QueryConfig{
			MemoryLimit: defaults.DefaultQueryMemoryLimit,
			Timeout:     defaults.DefaultQueryTimeout,
			MaxRows:     defaults.DefaultQueryMaxRows,
		},
	}
}

// CatalogFile returns the catalog database path.
func (c *Config) CatalogFile() string {
	if c.CatalogPath != "" {
		return c.CatalogPath
	}
	return filepath.Join(c.DataDir, "catalog.db")
}

// SeriesRoot returns the directory holding every series.
func (c *Config) SeriesRoot() string {
	return filepath.Join(c.DataDir, "series")
}

// SeriesDir returns the directory path for a series.
func (c *Config) SeriesDir(name string) string {
	return filepath.Join(c.SeriesRoot(), name)
}
