package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{"info", "info", slog.LevelInfo},
		{"debug", "debug", slog.LevelDebug},
		{"trace", "trace", LevelTrace},
		{"uppercase INFO", "INFO", slog.LevelInfo},
		{"uppercase DEBUG", "DEBUG", slog.LevelDebug},
		{"uppercase TRACE", "TRACE", LevelTrace},
		{"mixed case Debug", "Debug", slog.LevelDebug},
		{"unknown defaults to info", "unknown", slog.LevelInfo},
		{"empty defaults to info", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name  string
		level string
	}{
		{"info level", "info"},
		{"debug level", "debug"},
		{"trace level", "trace"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(tt.level, &buf)
			if logger == nil {
				t.Fatal("NewLogger returned nil")
			}
		})
	}
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		name       string
		level      string
		logAtDebug bool
		logAtInfo  bool
	}{
		{"info filters debug", "info", false, true},
		{"debug passes debug", "debug", true, true},
		{"trace passes debug", "trace", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(tt.level, &buf)

			logger.Debug("debug message")
			hasDebug := strings.Contains(buf.String(), "debug message")
			if hasDebug != tt.logAtDebug {
				t.Errorf("debug message visible = %v, want %v (buf: %q)", hasDebug, tt.logAtDebug, buf.String())
			}

			buf.Reset()
			logger.Info("info message")
			hasInfo := strings.Contains(buf.String(), "info message")
			if hasInfo != tt.logAtInfo {
				t.Errorf("info message visible = %v, want %v (buf: %q)", hasInfo, tt.logAtInfo, buf.String())
			}
		})
	}
}

func TestLevelTrace(t *testing.T) {
	// Trace should be below debug (more verbose)
	if LevelTrace >= slog.LevelDebug {
		t.Errorf("LevelTrace (%d) should be less than LevelDebug (%d)", LevelTrace, slog.LevelDebug)
	}
}

func TestNewLogger_TraceLabel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("trace", &buf)
	logger.Log(context.Background(), LevelTrace, "engine step")
	if !strings.Contains(buf.String(), "level=TRACE") {
		t.Errorf("expected level=TRACE in %q", buf.String())
	}
}

func TestNewStepTracer_InfoLevel(t *testing.T) {
	dir := t.TempDir()
	st, err := NewStepTracer(dir, "info")
	if err != nil {
		t.Fatalf("NewStepTracer: %v", err)
	}
	if st != nil {
		t.Error("expected nil StepTracer at info level")
	}

	// Nil tracer should still be safe to use
	st.Record("contextOSE", "a.csv", 0, []float64{0.5}, nil)
	if st.Verbose() {
		t.Error("nil tracer should not be verbose")
	}

	if _, err := os.Stat(filepath.Join(dir, TraceFileName)); err == nil {
		t.Error("trace.jsonl should not exist at info level")
	}
}

func readTrace(t *testing.T, dir string) []Step {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, TraceFileName))
	if err != nil {
		t.Fatalf("failed to read trace.jsonl: %v", err)
	}
	var steps []Step
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var s Step
		if err := json.Unmarshal([]byte(line), &s); err != nil {
			t.Fatalf("failed to parse JSONL entry %q: %v", line, err)
		}
		steps = append(steps, s)
	}
	return steps
}

func TestStepTracer_DebugLevel(t *testing.T) {
	dir := t.TempDir()
	st, err := NewStepTracer(dir, "debug")
	if err != nil {
		t.Fatalf("NewStepTracer: %v", err)
	}
	if st.Verbose() {
		t.Error("debug tracer should not be verbose")
	}

	st.Record("contextOSE", "data/a.csv", 3, []float64{0.25, 0.87}, []string{"raw_score"})
	st.Record("null", "data/a.csv", 4, []float64{0.5}, nil)
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	steps := readTrace(t, dir)
	if len(steps) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(steps))
	}
	first := steps[0]
	if first.Detector != "contextOSE" || first.File != "data/a.csv" || first.Index != 3 || first.Score != 0.25 {
		t.Errorf("first step = %+v", first)
	}
	if first.Extra["raw_score"] != 0.87 {
		t.Errorf("raw_score = %v, want 0.87", first.Extra["raw_score"])
	}
	if steps[1].Extra != nil {
		t.Errorf("second step extra = %v, want none", steps[1].Extra)
	}
}

func TestStepTracer_TraceLevelVerbose(t *testing.T) {
	st, err := NewStepTracer(t.TempDir(), "trace")
	if err != nil {
		t.Fatalf("NewStepTracer: %v", err)
	}
	defer st.Close()
	if !st.Verbose() {
		t.Error("trace tracer should be verbose")
	}
}

func TestStepTracer_MismatchedHeaders(t *testing.T) {
	dir := t.TempDir()
	st, err := NewStepTracer(dir, "debug")
	if err != nil {
		t.Fatalf("NewStepTracer: %v", err)
	}
	st.Record("d", "f", 0, []float64{0.1}, []string{"raw_score"})
	st.Record("d", "f", 1, nil, nil)
	st.Close()

	steps := readTrace(t, dir)
	if len(steps) != 1 {
		t.Fatalf("expected 1 line, got %d", len(steps))
	}
	if steps[0].Extra != nil {
		t.Errorf("extra = %v, want none", steps[0].Extra)
	}
}

func TestStepTracer_NilSafety(t *testing.T) {
	var st *StepTracer
	st.Log(Step{Detector: "should_not_panic"})
	if err := st.Close(); err != nil {
		t.Errorf("Close on nil = %v", err)
	}
}

func TestStepTracer_LogAfterClose(t *testing.T) {
	st, err := NewStepTracer(t.TempDir(), "debug")
	if err != nil {
		t.Fatalf("NewStepTracer: %v", err)
	}
	st.Log(Step{Detector: "before_close"})
	st.Close()

	// Should be a no-op, not panic or error
	st.Log(Step{Detector: "after_close"})
	if err := st.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
}

func TestNewStepTracer_CreatesDir(t *testing.T) {
	nestedDir := filepath.Join(t.TempDir(), "sub", "dir")

	st, err := NewStepTracer(nestedDir, "debug")
	if err != nil {
		t.Fatalf("NewStepTracer: %v", err)
	}
	defer st.Close()

	if _, err := os.Stat(filepath.Join(nestedDir, TraceFileName)); err != nil {
		t.Fatalf("trace.jsonl should exist after dir creation: %v", err)
	}
}

func TestStepTracer_ConcurrentWrites(t *testing.T) {
	dir := t.TempDir()
	st, err := NewStepTracer(dir, "debug")
	if err != nil {
		t.Fatalf("NewStepTracer: %v", err)
	}

	var wg sync.WaitGroup
	for w := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 50 {
				st.Record("d", "f", w*100+i, []float64{0.1}, nil)
			}
		}()
	}
	wg.Wait()
	st.Close()

	if got := len(readTrace(t, dir)); got != 200 {
		t.Errorf("expected 200 lines, got %d", got)
	}
}
