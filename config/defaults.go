// Package config provides configuration defaults and utilities
// for the propgen application.
//
// This package defines all configurable constants with documented defaults.
// Users can override these values via config.yaml or PROPGEN_* environment variables.
package config

import "time"

// =============================================================================
// Storage Defaults
// =============================================================================

const (
	// DefaultDataDir is the root directory for series chunk files and the catalog.
	// Override via config: storage.data_dir
	DefaultDataDir = "./data"

	// DefaultChunkPeriod is the period a saved series is partitioned by.
	// Derived property series have always been stored in monthly chunks.
	// Override via config: storage.default_period / generator.chunk_period
	DefaultChunkPeriod = "M"

	// DefaultReadBufferSize is the parquet read buffer per open chunk file.
	// Override via config: storage.read.buffer_size
	DefaultReadBufferSize = 1024 * 1024

	// DefaultReadBatchRows is how many rows are decoded per parquet read call.
	// Override via config: storage.read.batch_rows
	DefaultReadBatchRows = 4096
)

// =============================================================================
// Query Defaults
// =============================================================================

const (
	// DefaultQueryMemoryLimit caps DuckDB memory during inspection queries.
	// Override via config: storage.query.memory_limit
	DefaultQueryMemoryLimit = "1GB"

	// DefaultQueryTimeout bounds a single inspection query.
	// Override via config: storage.query.timeout
	DefaultQueryTimeout = 30 * time.Second

	// DefaultQueryMaxRows limits rows returned by ad-hoc SQL.
	// Override via config: storage.query.max_rows
	DefaultQueryMaxRows = 100000
)

// =============================================================================
// Generator Defaults
// =============================================================================

const (
	// DefaultDrivingSeries is the series whose timestamps define intervals.
	// Override via config: generator.driving_series
	DefaultDrivingSeries = "ticks"

	// DefaultFetchTimeout bounds a single chunk fetch so a stalled store
	// cannot block a run forever. Zero disables the per-fetch deadline.
	// Override via config: generator.fetch_timeout
	DefaultFetchTimeout = 2 * time.Minute

	// DefaultParallelFetch enables concurrent chunk fetches across
	// auxiliary series within one interval.
	// Override via config: generator.parallel_fetch
	DefaultParallelFetch = false
)

// =============================================================================
// Logging Defaults
// =============================================================================

const (
	// DefaultLogLevel is the minimum level written.
	// Override via config: log.level or --log-level
	DefaultLogLevel = "info"

	// DefaultLogJSON selects JSON output instead of text.
	// Override via config: log.json or --log-json
	DefaultLogJSON = false
)

// =============================================================================
// Metrics Defaults
// =============================================================================

const (
	// DefaultMetricsJob is the Pushgateway job name for generation runs.
	// Override via config: metrics.job
	DefaultMetricsJob = "propgen"

	// DefaultMetricsPushTimeout bounds the final metrics push.
	// Override via config: metrics.push_timeout
	DefaultMetricsPushTimeout = 10 * time.Second
)
