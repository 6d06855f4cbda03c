// Package types defines the core data types used throughout propgen.
//
// Key types:
//   - Row: a timestamped record of a series
//   - Chunk: a period-bounded block of rows, the unit of lazy fetch
//   - Interval / Window: the (start, end] range between two driving rows and
//     the per-series rows inside it
//   - Period: the chunk partitioning unit (D, W, M, Y)
package types
