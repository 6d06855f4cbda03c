// Package storage implements the chunked series store used by the
// property generator.
//
// Architecture:
//
//	┌─────────────┐     ┌─────────────┐     ┌─────────────┐
//	│  SaveSeries │────▶│  Partition  │────▶│   Parquet   │
//	│   Import    │     │ (D/W/M/Y)   │     │   Writer    │
//	└─────────────┘     └─────────────┘     └─────────────┘
//	                                               │
//	                                               ▼
//	┌─────────────┐     ┌─────────────┐     ┌─────────────┐
//	│   Chunk     │◀────│   SQLite    │◀────│  Catalog    │
//	│  Iterator   │     │   Catalog   │     │   Swap      │
//	└─────────────┘     └─────────────┘     └─────────────┘
//
// Each series lives under <data_dir>/series/<name>/<generation>/ as one
// Parquet file per period. A save writes a complete new generation and then
// swaps the catalog entry in a single transaction; the previous generation
// is deleted afterwards. Generations left behind by interrupted saves are
// reclaimed by Prune.
//
// The store provides:
//   - Lazy per-chunk iteration clipped to a time range
//   - Period partitioning (day, ISO week, month, year; UTC)
//   - DuckDB inspection queries over the Parquet files
//   - Idempotent removal
package storage
