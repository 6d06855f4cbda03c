package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/comrade-coop/blockchain-predictor/internal/errors"
)

// Period is the unit a series is partitioned into chunks by.
// All periods are aligned in UTC.
type Period int

const (
	// PeriodDay partitions by calendar day.
	PeriodDay Period = iota

	// PeriodWeek partitions by ISO week (Monday 00:00 UTC).
	PeriodWeek

	// PeriodMonth partitions by calendar month.
	PeriodMonth

	// PeriodYear partitions by calendar year.
	PeriodYear
)

// String returns the single-letter code of the period.
func (p Period) String() string {
	switch p {
	case PeriodDay:
		return "D"
	case PeriodWeek:
		return "W"
	case PeriodMonth:
		return "M"
	case PeriodYear:
		return "Y"
	default:
		return fmt.Sprintf("unknown(%d)", p)
	}
}

// ParsePeriod parses a period code ("D", "W", "M", "Y") or name
// ("day", "week", "month", "year").
func ParsePeriod(s string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "d", "day", "daily":
		return PeriodDay, nil
	case "w", "week", "weekly":
		return PeriodWeek, nil
	case "m", "month", "monthly":
		return PeriodMonth, nil
	case "y", "year", "yearly":
		return PeriodYear, nil
	default:
		return PeriodMonth, fmt.Errorf("%q: %w", s, errors.ErrInvalidPeriod)
	}
}

// Truncate returns the start of the period containing ts.
func (p Period) Truncate(ts time.Time) time.Time {
	ts = ts.UTC()
	switch p {
	case PeriodDay:
		return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	case PeriodWeek:
		// Truncate to Monday 00:00:00 UTC
		weekday := int(ts.Weekday())
		if weekday == 0 {
			weekday = 7 // Sunday = 7
		}
		monday := ts.AddDate(0, 0, -(weekday - 1))
		return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, time.UTC)
	case PeriodMonth:
		return time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, time.UTC)
	case PeriodYear:
		return time.Date(ts.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	default:
		return ts
	}
}

// Next returns the start of the period following the one that starts at start.
func (p Period) Next(start time.Time) time.Time {
	switch p {
	case PeriodDay:
		return start.AddDate(0, 0, 1)
	case PeriodWeek:
		return start.AddDate(0, 0, 7)
	case PeriodMonth:
		return start.AddDate(0, 1, 0)
	case PeriodYear:
		return start.AddDate(1, 0, 0)
	default:
		return start
	}
}

// BoundsOf returns the inclusive millisecond bounds of the period holding ts.
func (p Period) BoundsOf(tsMs int64) Bounds {
	start := p.Truncate(time.UnixMilli(tsMs))
	return Bounds{
		Start: start.UnixMilli(),
		End:   p.Next(start).UnixMilli() - 1,
	}
}

// Partition splits ordered rows into one chunk per period.
// Periods without rows produce no chunk.
func (p Period) Partition(rows []Row) []Chunk {
	var chunks []Chunk

	for i := 0; i < len(rows); {
		b := p.BoundsOf(rows[i].TimestampMs)
		j := i
		for j < len(rows) && rows[j].TimestampMs <= b.End {
			j++
		}
		chunks = append(chunks, Chunk{
			Start: b.Start,
			End:   b.End,
			Rows:  rows[i:j:j],
		})
		i = j
	}

	return chunks
}

// AllPeriods returns all available periods in order.
func AllPeriods() []Period {
	return []Period{PeriodDay, PeriodWeek, PeriodMonth, PeriodYear}
}
