// Package parquet implements Parquet file reading and writing for series chunks.
//
// The package provides:
//   - ChunkWriter/ChunkReader for one period-bounded chunk of series rows
//   - Support for multiple compression algorithms (snappy, zstd, lz4, gzip)
//   - Chunk bounds and series name stored as file key/value metadata
//   - Type conversion between storage types and Parquet records
package parquet
