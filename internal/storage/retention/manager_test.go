package retention

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/comrade-coop/blockchain-predictor/internal/storage/config"
)

func newTestManager(t *testing.T) (*Manager, *config.Config) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	return New(cfg), cfg
}

func writeGeneration(t *testing.T, cfg *config.Config, series, gen string, files int) string {
	t.Helper()

	dir := filepath.Join(cfg.SeriesDir(series), gen)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	for i := 0; i < files; i++ {
		name := filepath.Join(dir, string(rune('a'+i))+".parquet")
		if err := os.WriteFile(name, make([]byte, 100), 0644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	return dir
}

func TestManager_New(t *testing.T) {
	m := New(nil)
	if m == nil {
		t.Fatal("manager is nil")
	}
}

func TestManager_Prune(t *testing.T) {
	m, cfg := newTestManager(t)

	current := writeGeneration(t, cfg, "ticks", "2", 2)
	stale := writeGeneration(t, cfg, "ticks", "1", 3)
	orphan := writeGeneration(t, cfg, "gone", "5", 1)

	result := m.Prune(map[string]int64{"ticks": 2}, false)

	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Removed) != 2 {
		t.Fatalf("expected 2 removed generations, got %v", result.Removed)
	}
	if result.BytesFreed != 400 {
		t.Errorf("expected 400 bytes freed, got %d", result.BytesFreed)
	}

	if _, err := os.Stat(current); err != nil {
		t.Errorf("current generation should remain: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale generation should be removed")
	}
	if _, err := os.Stat(orphan); !os.IsNotExist(err) {
		t.Error("orphan series generation should be removed")
	}
	if _, err := os.Stat(cfg.SeriesDir("gone")); !os.IsNotExist(err) {
		t.Error("orphan series directory should be removed")
	}

	stats := m.Stats()
	if stats.DirsDeleted != 2 {
		t.Errorf("expected 2 dirs deleted, got %d", stats.DirsDeleted)
	}
	if stats.LastRunTime.IsZero() {
		t.Error("expected LastRunTime to be set")
	}
}

func TestManager_PruneDryRun(t *testing.T) {
	m, cfg := newTestManager(t)

	stale := writeGeneration(t, cfg, "ticks", "1", 1)
	writeGeneration(t, cfg, "ticks", "2", 1)

	result := m.Prune(map[string]int64{"ticks": 2}, true)

	if len(result.Removed) != 1 || result.Removed[0] != stale {
		t.Errorf("expected dry run to report %s, got %v", stale, result.Removed)
	}
	if _, err := os.Stat(stale); err != nil {
		t.Errorf("dry run must not delete: %v", err)
	}
	if m.Stats().DirsDeleted != 0 {
		t.Error("dry run must not update stats")
	}
}

func TestManager_IgnoresForeignDirs(t *testing.T) {
	m, cfg := newTestManager(t)

	foreign := filepath.Join(cfg.SeriesDir("ticks"), "tmp")
	if err := os.MkdirAll(foreign, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	result := m.Prune(map[string]int64{"ticks": 1}, false)
	if len(result.Removed) != 0 {
		t.Errorf("non-generation directories must be ignored, removed %v", result.Removed)
	}
	if _, err := os.Stat(foreign); err != nil {
		t.Errorf("foreign directory should remain: %v", err)
	}
}

func TestManager_GetDiskUsage(t *testing.T) {
	m, cfg := newTestManager(t)

	writeGeneration(t, cfg, "ticks", "1", 2)
	writeGeneration(t, cfg, "ticks", "2", 1)
	writeGeneration(t, cfg, "blocks", "1", 1)

	usage := m.GetDiskUsage()

	ticks := usage["ticks"]
	if ticks.Generations != 2 || ticks.FileCount != 3 || ticks.TotalSize != 300 {
		t.Errorf("unexpected ticks usage %+v", ticks)
	}
	if usage["blocks"].FileCount != 1 {
		t.Errorf("unexpected blocks usage %+v", usage["blocks"])
	}
}

func TestManager_FormatDiskUsage(t *testing.T) {
	m, cfg := newTestManager(t)

	writeGeneration(t, cfg, "ticks", "1", 2)

	out := m.FormatDiskUsage()
	if !strings.Contains(out, "ticks: 2 files") {
		t.Errorf("expected ticks line, got:\n%s", out)
	}
	if !strings.Contains(out, "Total: 2 files, 200 B") {
		t.Errorf("expected total line, got:\n%s", out)
	}
}
