// Package retention reclaims disk space held by series generations that the
// catalog no longer references, and reports per-series disk usage.
//
// A generation becomes orphaned when a save is interrupted after writing
// chunk files but before the catalog swap, or when removing an old
// generation fails after a successful swap.
package retention

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/comrade-coop/blockchain-predictor/internal/storage/config"
)

// Manager prunes unreferenced generation directories.
type Manager struct {
	mu     sync.RWMutex
	config *config.Config
	stats  Stats
}

// Stats holds retention statistics.
type Stats struct {
	LastRunTime   time.Time
	DirsDeleted   int64
	BytesFreed    int64
	SeriesSkipped int64
	Errors        int64
}

// CleanupResult holds the result of a prune pass.
type CleanupResult struct {
	// Removed lists the generation directories deleted (or, in a dry run,
	// that would be deleted).
	Removed    []string
	BytesFreed int64
	Errors     []error
}

// New creates a new retention manager.
func New(cfg *config.Config) *Manager {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	return &Manager{
		config: cfg,
	}
}

// Prune removes every generation directory not listed in live, which maps a
// series name to its current generation. Series directories absent from live
// are removed entirely.
func (m *Manager) Prune(live map[string]int64, dryRun bool) CleanupResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := m.prune(live, dryRun)

	if !dryRun {
		m.stats.LastRunTime = time.Now()
		m.stats.DirsDeleted += int64(len(result.Removed))
		m.stats.BytesFreed += result.BytesFreed
		m.stats.Errors += int64(len(result.Errors))
	}

	return result
}

func (m *Manager) prune(live map[string]int64, dryRun bool) CleanupResult {
	var result CleanupResult

	series, err := os.ReadDir(m.config.SeriesRoot())
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, fmt.Errorf("list series: %w", err))
		}
		return result
	}

	for _, s := range series {
		if !s.IsDir() {
			continue
		}

		name := s.Name()
		current, ok := live[name]

		gens, err := m.listGenerations(m.config.SeriesDir(name))
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("list generations of %s: %w", name, err))
			continue
		}

		kept := 0
		for _, g := range gens {
			if ok && g.generation == current {
				kept++
				continue
			}

			if !dryRun {
				if err := os.RemoveAll(g.path); err != nil {
					result.Errors = append(result.Errors, fmt.Errorf("delete %s: %w", g.path, err))
					continue
				}
			}

			result.Removed = append(result.Removed, g.path)
			result.BytesFreed += g.size
		}

		if dryRun {
			continue
		}
		if kept > 0 {
			m.stats.SeriesSkipped++
		} else if !ok {
			// Drop the now empty series directory
			os.Remove(m.config.SeriesDir(name))
		}
	}

	return result
}

// generationInfo holds information about a generation directory.
type generationInfo struct {
	generation int64
	path       string
	files      int
	size       int64
}

// listGenerations lists the generation directories of one series, oldest first.
// Directories whose name is not a generation number are ignored.
func (m *Manager) listGenerations(dir string) ([]generationInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var gens []generationInfo

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		gen, err := strconv.ParseInt(entry.Name(), 10, 64)
		if err != nil {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		files, size := dirUsage(path)
		gens = append(gens, generationInfo{
			generation: gen,
			path:       path,
			files:      files,
			size:       size,
		})
	}

	sort.Slice(gens, func(i, j int) bool {
		return gens[i].generation < gens[j].generation
	})

	return gens, nil
}

// dirUsage counts the Parquet files in dir and their total size.
func dirUsage(dir string) (int, int64) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0
	}

	var (
		files int
		size  int64
	)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".parquet" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files++
		size += info.Size()
	}
	return files, size
}

// Stats returns current statistics.
func (m *Manager) Stats() ManagerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return ManagerStats{
		LastRunTime:   m.stats.LastRunTime,
		DirsDeleted:   m.stats.DirsDeleted,
		BytesFreed:    m.stats.BytesFreed,
		SeriesSkipped: m.stats.SeriesSkipped,
		Errors:        m.stats.Errors,
	}
}

// ManagerStats holds manager statistics.
type ManagerStats struct {
	LastRunTime   time.Time
	DirsDeleted   int64
	BytesFreed    int64
	SeriesSkipped int64
	Errors        int64
}

// DiskUsage holds disk usage information.
type DiskUsage struct {
	Generations int
	FileCount   int
	TotalSize   int64
}

// GetDiskUsage returns disk usage for each series directory.
func (m *Manager) GetDiskUsage() map[string]DiskUsage {
	m.mu.RLock()
	defer m.mu.RUnlock()

	usage := make(map[string]DiskUsage)

	series, err := os.ReadDir(m.config.SeriesRoot())
	if err != nil {
		return usage
	}

	for _, s := range series {
		if !s.IsDir() {
			continue
		}

		gens, err := m.listGenerations(m.config.SeriesDir(s.Name()))
		if err != nil {
			continue
		}

		var u DiskUsage
		for _, g := range gens {
			u.Generations++
			u.FileCount += g.files
			u.TotalSize += g.size
		}
		usage[s.Name()] = u
	}

	return usage
}

// FormatDiskUsage returns a formatted string of disk usage.
func (m *Manager) FormatDiskUsage() string {
	usage := m.GetDiskUsage()

	names := make([]string, 0, len(usage))
	for name := range usage {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		b          strings.Builder
		totalSize  int64
		totalFiles int
	)

	b.WriteString("Disk Usage:\n")
	for _, name := range names {
		u := usage[name]
		totalSize += u.TotalSize
		totalFiles += u.FileCount

		fmt.Fprintf(&b, "  %s: %d files, %s\n", name, u.FileCount, humanize.IBytes(uint64(u.TotalSize)))
	}
	fmt.Fprintf(&b, "  Total: %d files, %s\n", totalFiles, humanize.IBytes(uint64(totalSize)))

	return b.String()
}
