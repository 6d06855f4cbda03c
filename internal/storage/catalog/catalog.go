// Package catalog tracks stored series and their chunk files in SQLite.
//
// The catalog is the source of truth for which chunk files make up the
// current version of a series. Chunk files are written under a fresh
// generation directory first; a save becomes visible only when PutSeries
// commits, so readers never observe a half-written series.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	// SQLite driver using pure Go implementation
	_ "modernc.org/sqlite"

	"github.com/comrade-coop/blockchain-predictor/internal/errors"
	"github.com/comrade-coop/blockchain-predictor/internal/storage/types"
)

// Options configures the SQLite connection.
type Options struct {
	// JournalMode sets the SQLite journal mode (WAL, DELETE, TRUNCATE, etc.)
	JournalMode string

	// BusyTimeout is the timeout for acquiring locks.
	BusyTimeout time.Duration

	// MaxConnections is the max number of database connections.
	MaxConnections int
}

// DefaultOptions returns default connection options.
func DefaultOptions() Options {
	return Options{
		JournalMode:    "WAL",
		BusyTimeout:    5 * time.Second,
		MaxConnections: 4,
	}
}

// Entry is the catalog record of one series.
type Entry struct {
	types.Metadata

	// Generation is the directory generation holding the current chunk files.
	Generation int64
}

// ChunkEntry is the catalog record of one chunk file.
type ChunkEntry struct {
	Series     string
	Generation int64
	Start      int64
	End        int64
	Rows       int64
	Size       int64
	Path       string
}

// Bounds returns the chunk period bounds.
func (c ChunkEntry) Bounds() types.Bounds {
	return types.Bounds{Start: c.Start, End: c.End}
}

// Catalog is the SQLite-backed series catalog.
type Catalog struct {
	db     *sql.DB
	path   string
	mu     sync.RWMutex
	closed bool
}

// New opens (creating if needed) the catalog at path.
func New(path string, opts Options) (*Catalog, error) {
	if opts.JournalMode == "" {
		opts.JournalMode = "WAL"
	}
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = 5 * time.Second
	}
	if opts.MaxConnections <= 0 {
		opts.MaxConnections = 4
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(%s)&_pragma=foreign_keys(1)",
		path, opts.BusyTimeout.Milliseconds(), opts.JournalMode)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	db.SetMaxOpenConns(opts.MaxConnections)
	db.SetMaxIdleConns(opts.MaxConnections)

	c := &Catalog{db: db, path: path}
	if err := c.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize catalog schema: %w", err)
	}

	return c, nil
}

func (c *Catalog) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS series (
			name TEXT PRIMARY KEY,
			start_ms INTEGER NOT NULL,
			end_ms INTEGER NOT NULL,
			period TEXT NOT NULL,
			row_count INTEGER NOT NULL,
			chunks INTEGER NOT NULL,
			generation INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS chunks (
			series TEXT NOT NULL REFERENCES series(name) ON DELETE CASCADE,
			generation INTEGER NOT NULL,
			start_ms INTEGER NOT NULL,
			end_ms INTEGER NOT NULL,
			row_count INTEGER NOT NULL,
			size INTEGER NOT NULL,
			path TEXT NOT NULL,
			PRIMARY KEY (series, start_ms)
		);

		CREATE INDEX IF NOT EXISTS idx_chunks_series_end ON chunks(series, end_ms);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (c *Catalog) checkOpen() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.ErrCatalogClosed
	}
	return nil
}

// Path returns the catalog database file.
func (c *Catalog) Path() string {
	return c.path
}

// Series returns the catalog entry of a series, or ErrSeriesNotFound.
func (c *Catalog) Series(ctx context.Context, name string) (Entry, error) {
	if err := c.checkOpen(); err != nil {
		return Entry{}, err
	}

	row := c.db.QueryRowContext(ctx, `
		SELECT name, start_ms, end_ms, period, row_count, chunks, generation, updated_at
		FROM series WHERE name = ?
	`, name)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, errors.NewNotFound(name)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("read series %s: %w", name, err)
	}
	return e, nil
}

// List returns every series entry ordered by name.
func (c *Catalog) List(ctx context.Context) ([]Entry, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT name, start_ms, end_ms, period, row_count, chunks, generation, updated_at
		FROM series ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan series: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Chunks returns the current chunk files of name whose period overlaps
// [start, end], ordered by start.
func (c *Catalog) Chunks(ctx context.Context, name string, start, end int64) ([]ChunkEntry, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT series, generation, start_ms, end_ms, row_count, size, path
		FROM chunks
		WHERE series = ? AND start_ms <= ? AND end_ms >= ?
		ORDER BY start_ms
	`, name, end, start)
	if err != nil {
		return nil, fmt.Errorf("list chunks of %s: %w", name, err)
	}
	defer rows.Close()

	var chunks []ChunkEntry
	for rows.Next() {
		var ch ChunkEntry
		if err := rows.Scan(&ch.Series, &ch.Generation, &ch.Start, &ch.End, &ch.Rows, &ch.Size, &ch.Path); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunks = append(chunks, ch)
	}
	return chunks, rows.Err()
}

// PutSeries replaces the entry and chunk list of a series in one
// transaction. It returns the generation that was replaced, or 0 if the
// series is new.
func (c *Catalog) PutSeries(ctx context.Context, e Entry, chunks []ChunkEntry) (int64, error) {
	if err := c.checkOpen(); err != nil {
		return 0, err
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var prev int64
	err = tx.QueryRowContext(ctx, `SELECT generation FROM series WHERE name = ?`, e.Name).Scan(&prev)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("read previous generation: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE series = ?`, e.Name); err != nil {
		return 0, fmt.Errorf("clear chunks: %w", err)
	}

	updated := e.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO series (name, start_ms, end_ms, period, row_count, chunks, generation, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			start_ms = excluded.start_ms,
			end_ms = excluded.end_ms,
			period = excluded.period,
			row_count = excluded.row_count,
			chunks = excluded.chunks,
			generation = excluded.generation,
			updated_at = excluded.updated_at
	`, e.Name, e.Start, e.End, e.Period.String(), e.Rows, len(chunks), e.Generation, updated.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("upsert series: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (series, generation, start_ms, end_ms, row_count, size, path)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, ch := range chunks {
		if _, err := stmt.ExecContext(ctx, e.Name, e.Generation, ch.Start, ch.End, ch.Rows, ch.Size, ch.Path); err != nil {
			return 0, fmt.Errorf("insert chunk %s: %w", ch.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return prev, nil
}

// DeleteSeries removes a series and its chunk records. It returns the
// removed generation and false if the series did not exist.
func (c *Catalog) DeleteSeries(ctx context.Context, name string) (int64, bool, error) {
	if err := c.checkOpen(); err != nil {
		return 0, false, err
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var gen int64
	err = tx.QueryRowContext(ctx, `SELECT generation FROM series WHERE name = ?`, name).Scan(&gen)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read series %s: %w", name, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE series = ?`, name); err != nil {
		return 0, false, fmt.Errorf("delete chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM series WHERE name = ?`, name); err != nil {
		return 0, false, fmt.Errorf("delete series: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("commit: %w", err)
	}
	return gen, true, nil
}

// Close closes the catalog database.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var (
		e       Entry
		period  string
		updated int64
	)
	if err := s.Scan(&e.Name, &e.Start, &e.End, &period, &e.Rows, &e.Chunks, &e.Generation, &updated); err != nil {
		return Entry{}, err
	}

	p, err := types.ParsePeriod(period)
	if err != nil {
		return Entry{}, err
	}
	e.Period = p
	e.UpdatedAt = time.Unix(0, updated)
	return e, nil
}
