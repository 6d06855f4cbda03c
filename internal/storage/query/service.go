package query

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/comrade-coop/blockchain-predictor/internal/storage/config"
)

// Service provides inspection queries over stored chunk files.
// It uses DuckDB to query the Parquet files of a series directly.
type Service struct {
	mu sync.RWMutex

	config *config.Config
	db     *sql.DB

	// Statistics
	queries   atomic.Int64
	rowsOut   atomic.Int64
	errors    atomic.Int64
	truncated atomic.Int64
}

// FieldStats summarizes one payload field of a series.
type FieldStats struct {
	Name  string
	Count int64
	Min   float64
	Max   float64
	Mean  float64
}

// Summary summarizes the rows stored in a set of chunk files.
type Summary struct {
	Rows    int64
	FirstTs int64
	LastTs  int64
	Fields  []FieldStats
}

// New creates a new query service.
func New(cfg *config.Config) (*Service, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	// Open in-memory DuckDB database
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	// Configure DuckDB
	if cfg.Query.MemoryLimit != "" {
		_, err = db.Exec(fmt.Sprintf("SET memory_limit='%s'", cfg.Query.MemoryLimit))
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("set memory limit: %w", err)
		}
	}

	return &Service{
		config: cfg,
		db:     db,
	}, nil
}

// Close closes the query service.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.Query.Timeout > 0 {
		return context.WithTimeout(ctx, s.config.Query.Timeout)
	}
	return context.WithCancel(ctx)
}

// Summarize computes row and per-field statistics over the given chunk files.
// An empty file list yields an empty summary.
func (s *Service) Summarize(ctx context.Context, files []string) (*Summary, error) {
	if len(files) == 0 {
		return &Summary{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	source := parquetSource(files)

	summary := &Summary{}
	var first, last sql.NullInt64

	err := s.db.QueryRowContext(ctx, `
		SELECT count(*), min(timestamp_ms), max(timestamp_ms)
		FROM `+source).Scan(&summary.Rows, &first, &last)
	if err != nil {
		s.recordError()
		return nil, fmt.Errorf("summarize rows: %w", err)
	}
	summary.FirstTs = first.Int64
	summary.LastTs = last.Int64

	rows, err := s.db.QueryContext(ctx, `
		SELECT f.name, count(*), min(f.value), max(f.value), avg(f.value)
		FROM (SELECT unnest(fields) AS f FROM `+source+`)
		GROUP BY f.name
		ORDER BY f.name
	`)
	if err != nil {
		s.recordError()
		return nil, fmt.Errorf("summarize fields: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var fs FieldStats
		if err := rows.Scan(&fs.Name, &fs.Count, &fs.Min, &fs.Max, &fs.Mean); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		summary.Fields = append(summary.Fields, fs)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.recordQuery(1 + int64(len(summary.Fields)))
	return summary, nil
}

// parquetSource builds a read_parquet table function over a literal file list.
func parquetSource(files []string) string {
	quoted := make([]string, len(files))
	for i, f := range files {
		quoted[i] = "'" + strings.ReplaceAll(f, "'", "''") + "'"
	}
	return "read_parquet([" + strings.Join(quoted, ", ") + "])"
}

func (s *Service) recordQuery(rows int64) {
	s.queries.Add(1)
	s.rowsOut.Add(rows)
}

func (s *Service) recordError() {
	s.errors.Add(1)
}

// Stats returns query statistics.
func (s *Service) Stats() ServiceStats {
	return ServiceStats{
		QueriesExecuted: s.queries.Load(),
		RowsReturned:    s.rowsOut.Load(),
		Errors:          s.errors.Load(),
		Truncated:       s.truncated.Load(),
	}
}

// ServiceStats holds service statistics.
type ServiceStats struct {
	QueriesExecuted int64
	RowsReturned    int64
	Errors          int64
	Truncated       int64
}

// ExecuteSQL executes a raw SQL query using DuckDB.
// At most Query.MaxRows rows are returned; the second result reports
// whether the result was truncated.
func (s *Service) ExecuteSQL(ctx context.Context, query string) ([]map[string]interface{}, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		s.recordError()
		return nil, false, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, false, err
	}

	var (
		results   []map[string]interface{}
		truncated bool
	)

	for rows.Next() {
		if s.config.Query.MaxRows > 0 && len(results) >= s.config.Query.MaxRows {
			truncated = true
			break
		}

		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, false, err
		}

		row := make(map[string]interface{})
		for i, col := range columns {
			row[col] = values[i]
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}

	s.recordQuery(int64(len(results)))
	if truncated {
		s.truncated.Add(1)
	}

	return results, truncated, nil
}
