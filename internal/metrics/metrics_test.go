package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.ObserveRecords("contextOSE", 100)
	m.ObserveRecords("contextOSE", 50)
	m.ObserveRecords("null", 0)
	m.ObserveFile("contextOSE", "ok", 250*time.Millisecond)
	m.ObserveFile("contextOSE", "failed", time.Second)
	m.ObserveFile("contextOSE", "ok", time.Second)
	m.SetContexts("contextOSE", 42)

	if got := testutil.ToFloat64(m.recordsProcessed.WithLabelValues("contextOSE")); got != 150 {
		t.Errorf("records processed = %v, want 150", got)
	}
	if got := testutil.ToFloat64(m.filesTotal.WithLabelValues("contextOSE", "ok")); got != 2 {
		t.Errorf("ok files = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.filesTotal.WithLabelValues("contextOSE", "failed")); got != 1 {
		t.Errorf("failed files = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.contexts.WithLabelValues("contextOSE")); got != 42 {
		t.Errorf("contexts = %v, want 42", got)
	}
	if got := testutil.CollectAndCount(m.fileDuration, "cadbench_file_duration_seconds"); got != 1 {
		t.Errorf("duration series = %d, want 1", got)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveRecords("null", 7)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if !strings.Contains(string(body), `cadbench_records_processed_total{detector="null"} 7`) {
		t.Errorf("exposition missing records counter:\n%s", body)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveRecords("x", 1)
	m.ObserveFile("x", "ok", time.Second)
	m.SetContexts("x", 1)
	if m.Registry() != nil {
		t.Error("nil Metrics should have nil registry")
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
