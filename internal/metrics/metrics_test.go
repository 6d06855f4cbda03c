package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder_Counters(t *testing.T) {
	r := New()

	r.ChunkFetched("ticks", 10)
	r.ChunkFetched("ticks", 5)
	r.ChunkFetched("blocks", 3)
	r.WindowDispatched()
	r.WindowDispatched()
	r.ValueEmitted("openPrice")
	r.SaveCompleted("openPrice", nil)
	r.SaveCompleted("gasPrice", errors.New("disk full"))
	r.BufferPeak("blocks", 42)

	if got := testutil.ToFloat64(r.chunksFetched.WithLabelValues("ticks")); got != 2 {
		t.Errorf("expected 2 ticks chunks, got %v", got)
	}
	if got := testutil.ToFloat64(r.rowsFetched.WithLabelValues("ticks")); got != 15 {
		t.Errorf("expected 15 ticks rows, got %v", got)
	}
	if got := testutil.ToFloat64(r.windows); got != 2 {
		t.Errorf("expected 2 windows, got %v", got)
	}
	if got := testutil.ToFloat64(r.saves.WithLabelValues("gasPrice", "failure")); got != 1 {
		t.Errorf("expected 1 failed save, got %v", got)
	}
	if got := testutil.ToFloat64(r.bufferPeak.WithLabelValues("blocks")); got != 42 {
		t.Errorf("expected buffer peak 42, got %v", got)
	}
}

func TestRecorder_RunCompleted(t *testing.T) {
	r := New()

	r.RunCompleted(2*time.Second, nil)

	if got := testutil.ToFloat64(r.lastSuccess); got <= 0 {
		t.Error("expected last success timestamp to be set")
	}
	if n := testutil.CollectAndCount(r.runDuration); n != 1 {
		t.Errorf("expected 1 duration series, got %d", n)
	}
}

func TestRecorder_Nil(t *testing.T) {
	var r *Recorder

	// Must not panic
	r.ChunkFetched("ticks", 1)
	r.BufferPeak("ticks", 1)
	r.WindowDispatched()
	r.ValueEmitted("p")
	r.SaveCompleted("p", nil)
	r.RunCompleted(time.Second, nil)

	if r.Registry() != nil {
		t.Error("nil recorder should have no registry")
	}
	if err := r.Push(context.Background(), "http://localhost:1", "job"); err != nil {
		t.Errorf("nil recorder push should be a no-op: %v", err)
	}
}

func TestRecorder_Push(t *testing.T) {
	var (
		requests atomic.Int32
		path     atomic.Value
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		requests.Add(1)
		path.Store(req.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := New()
	r.WindowDispatched()

	if err := r.Push(context.Background(), srv.URL, "propgen"); err != nil {
		t.Fatalf("Push: %v", err)
	}

	if requests.Load() != 1 {
		t.Errorf("expected 1 push request, got %d", requests.Load())
	}
	if p, _ := path.Load().(string); !strings.Contains(p, "/job/propgen") {
		t.Errorf("unexpected push path %q", p)
	}
}

func TestRecorder_PushEmptyURL(t *testing.T) {
	r := New()
	if err := r.Push(context.Background(), "", "propgen"); err != nil {
		t.Errorf("empty url should disable push: %v", err)
	}
}
