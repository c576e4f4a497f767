// Package logging provides leveled logging and step tracing for cadbench.
// It offers two complementary outputs:
//   - A leveled slog.Logger for stderr (operational output)
//   - A StepTracer for per-record JSONL traces (<results>/trace.jsonl)
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// TraceFileName is the step trace file created inside the results directory.
const TraceFileName = "trace.jsonl"

// LevelTrace is a custom slog level below Debug. At this level the step
// tracer also records engine internals for every record.
const LevelTrace = slog.LevelDebug - 4

// ParseLevel maps a string level name to a slog.Level.
// Supported values: "info", "debug", "trace" (case-insensitive).
// Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a leveled slog.Logger writing to w.
func NewLogger(level string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Step is one scored record as written to the trace.
type Step struct {
	Detector string             `json:"detector"`
	File     string             `json:"file"`
	Index    int                `json:"index"`
	Score    float64            `json:"score"`
	Extra    map[string]float64 `json:"extra,omitempty"`
}

// StepTracer appends scored records to a JSONL file. It is safe for
// concurrent use by the runner's workers. A nil StepTracer is valid and
// every method is a no-op on it.
type StepTracer struct {
	mu      sync.Mutex
	file    *os.File
	verbose bool
	enc     *json.Encoder
}

// NewStepTracer opens dir/trace.jsonl for append when level is debug or
// trace. At info level it returns nil, nil and no file is created.
func NewStepTracer(dir, level string) (*StepTracer, error) {
	lvl := ParseLevel(level)
	if lvl >= slog.LevelInfo {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating trace directory: %w", err)
	}
	path := filepath.Join(dir, TraceFileName)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening step trace: %w", err)
	}
	return &StepTracer{file: f, verbose: lvl <= LevelTrace, enc: json.NewEncoder(f)}, nil
}

// Verbose reports whether engine internals should be attached to each step.
func (st *StepTracer) Verbose() bool {
	return st != nil && st.verbose
}

// Record writes one step built from a detector's output row: values[0] is
// the score and values[i+1] belongs to headers[i].
func (st *StepTracer) Record(detector, file string, index int, values []float64, headers []string) {
	if st == nil || len(values) == 0 {
		return
	}
	step := Step{Detector: detector, File: file, Index: index, Score: values[0]}
	if n := min(len(headers), len(values)-1); n > 0 {
		step.Extra = make(map[string]float64, n)
		for i := range n {
			step.Extra[headers[i]] = values[i+1]
		}
	}
	st.Log(step)
}

// Log writes a step as a single JSONL line.
func (st *StepTracer) Log(step Step) {
	if st == nil {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.file == nil {
		return
	}
	_ = st.enc.Encode(step)
}

// Close closes the underlying file. Safe to call on nil receiver.
func (st *StepTracer) Close() error {
	if st == nil {
		return nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.file == nil {
		return nil
	}
	err := st.file.Close()
	st.file = nil
	return err
}
