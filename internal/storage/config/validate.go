package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/comrade-coop/blockchain-predictor/internal/storage/types"
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	// DataDir
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}

	// DefaultPeriod
	if _, err := types.ParsePeriod(c.DefaultPeriod); err != nil {
		errs = append(errs, fmt.Errorf("default_period: %w", err))
	}

	// Compression
	if err := c.Compression.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("compression: %w", err))
	}

	// Read
	if err := c.Read.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("read: %w", err))
	}

	// Query
	if err := c.Query.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("query: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the compression configuration.
func (c *CompressionConfig) Validate() error {
	var errs []error

	validAlgorithms := map[string]bool{
		"snappy": true,
		"zstd":   true,
		"lz4":    true,
		"gzip":   true,
		"none":   true,
		"":       true, // Empty means uncompressed
	}
	if !validAlgorithms[c.Algorithm] {
		errs = append(errs, errors.New("algorithm must be one of: snappy, zstd, lz4, gzip, none"))
	}

	if c.Algorithm == "zstd" && (c.Level < 0 || c.Level > 22) {
		errs = append(errs, errors.New("level for zstd must be between 0 and 22"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the read configuration.
func (c *ReadConfig) Validate() error {
	var errs []error

	if c.BufferSize <= 0 {
		errs = append(errs, errors.New("buffer_size must be positive"))
	}

	if c.BatchRows <= 0 {
		errs = append(errs, errors.New("batch_rows must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the query configuration.
func (c *QueryConfig) Validate() error {
	var errs []error

	if c.Timeout <= 0 {
		errs = append(errs, errors.New("timeout must be positive"))
	}

	if c.MaxRows <= 0 {
		errs = append(errs, errors.New("max_rows must be positive"))
	}

	if strings.ContainsAny(c.MemoryLimit, "'\";") {
		errs = append(errs, errors.New("memory_limit contains invalid characters"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		c.SeriesRoot(),
		filepath.Dir(c.CatalogFile()),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}
