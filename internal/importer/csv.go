// Package importer reads raw series rows from CSV files.
//
// The first record is a header. One column holds the row date, either as
// Unix milliseconds or as an RFC 3339 / ISO date string; every other
// column is a numeric payload field. Empty cells are left out of the row.
package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/comrade-coop/blockchain-predictor/internal/errors"
	"github.com/comrade-coop/blockchain-predictor/internal/storage/types"
)

// DefaultTimestampColumns are tried in order when no column is named.
var DefaultTimestampColumns = []string{"timestamp", "date", "time"}

// timeLayouts are the accepted textual date formats.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Options configures CSV parsing.
type Options struct {
	// TimestampColumn names the date column. Empty tries DefaultTimestampColumns.
	TimestampColumn string

	// Comma is the field delimiter. Zero means ','.
	Comma rune
}

// ReadCSV parses every record of r into rows, in file order.
func ReadCSV(r io.Reader, opts Options) ([]types.Row, error) {
	cr := csv.NewReader(r)
	if opts.Comma != 0 {
		cr.Comma = opts.Comma
	}
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.NewMissingField("csv header")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	tsCol, err := timestampColumn(header, opts.TimestampColumn)
	if err != nil {
		return nil, err
	}

	var rows []types.Row
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}
		line, _ := cr.FieldPos(0)

		ts, err := ParseTimestamp(record[tsCol])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		row := types.Row{TimestampMs: ts, Fields: make(map[string]float64, len(header)-1)}
		for i, cell := range record {
			cell = strings.TrimSpace(cell)
			if i == tsCol || cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: column %s: %w",
					line, header[i], errors.NewInvalidValue(header[i], cell, "not a number"))
			}
			row.Fields[header[i]] = v
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func timestampColumn(header []string, name string) (int, error) {
	candidates := DefaultTimestampColumns
	if name != "" {
		candidates = []string{name}
	}

	for _, c := range candidates {
		for i, h := range header {
			if strings.EqualFold(h, c) {
				return i, nil
			}
		}
	}
	return 0, errors.NewMissingField("timestamp column " + strings.Join(candidates, "/"))
}

// ParseTimestamp parses Unix milliseconds or a textual date (UTC unless
// the text carries an offset) into Unix milliseconds.
func ParseTimestamp(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.NewMissingField("timestamp")
	}

	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, nil
	}

	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UnixMilli(), nil
		}
	}
	return 0, errors.NewInvalidValue("timestamp", s, "expected unix milliseconds or RFC 3339")
}
