package types

import (
	"fmt"
	"time"
)

// Bounds is a closed time range [Start, End] in Unix milliseconds.
type Bounds struct {
	Start int64
	End   int64
}

// Empty reports whether the range contains no instant.
func (b Bounds) Empty() bool {
	return b.Start > b.End
}

// Contains reports whether ts lies in [Start, End].
func (b Bounds) Contains(ts int64) bool {
	return ts >= b.Start && ts <= b.End
}

// Overlaps reports whether the two closed ranges share an instant.
func (b Bounds) Overlaps(o Bounds) bool {
	return b.Start <= o.End && o.Start <= b.End
}

// String formats the bounds as RFC3339 timestamps.
func (b Bounds) String() string {
	return fmt.Sprintf("[%s, %s]", formatMs(b.Start), formatMs(b.End))
}

// Interval is the half-open range (Start, End] between two consecutive
// driving timestamps. End is inclusive, Start exclusive, so a row dated
// exactly on a boundary belongs to the interval that ends there.
type Interval struct {
	Start int64
	End   int64
}

// Contains reports whether ts lies in (Start, End].
func (i Interval) Contains(ts int64) bool {
	return ts > i.Start && ts <= i.End
}

// String formats the interval as (start, end].
func (i Interval) String() string {
	return fmt.Sprintf("(%s, %s]", formatMs(i.Start), formatMs(i.End))
}

// Window maps a series key to the rows of that series inside one Interval.
type Window map[string][]Row

// Rows returns the rows for key, or nil if the key is absent.
func (w Window) Rows(key string) []Row {
	return w[key]
}

// Restrict returns a window holding only the given keys.
// Keys absent from w map to an empty (nil) slice.
func (w Window) Restrict(keys []string) Window {
	out := make(Window, len(keys))
	for _, k := range keys {
		out[k] = w[k]
	}
	return out
}

// Metadata describes a stored series.
type Metadata struct {
	Name   string
	Start  int64 // first row timestamp (ms)
	End    int64 // last row timestamp (ms)
	Period Period
	Rows   int64
	Chunks int

	UpdatedAt time.Time
}

// Bounds returns the metadata range as Bounds.
func (m Metadata) Bounds() Bounds {
	return Bounds{Start: m.Start, End: m.End}
}

func formatMs(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339Nano)
}
