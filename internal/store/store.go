// Package store records one summary row per scored data file so benchmark
// runs can be listed and compared later.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Status is the outcome of scoring one file.
type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// Run summarizes one detector over one data file.
type Run struct {
	ID               string        `json:"id"`
	Detector         string        `json:"detector"`
	File             string        `json:"file"`
	Records          int           `json:"records"`
	MeanScore        float64       `json:"mean_score"`
	MaxScore         float64       `json:"max_score"`
	AnomaliesFlagged int           `json:"anomalies_flagged"`
	Duration         time.Duration `json:"duration"`
	StartedAt        time.Time     `json:"started_at"`
	Status           Status        `json:"status"`
	Error            string        `json:"error,omitempty"`
}

// Filter selects runs. Zero fields match everything.
type Filter struct {
	Detector string
	File     string
	Status   Status
	// Limit caps the number of runs returned; 0 means no limit.
	Limit int
}

// Matches reports whether r passes the filter, ignoring Limit.
func (f Filter) Matches(r Run) bool {
	if f.Detector != "" && r.Detector != f.Detector {
		return false
	}
	if f.File != "" && r.File != f.File {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	return true
}

// RunStore persists run summaries.
type RunStore interface {
	// RecordRun stores r and returns its ID. An empty ID is replaced by a
	// new UUID and a zero StartedAt by the current time.
	RecordRun(ctx context.Context, r Run) (string, error)

	// ListRuns returns matching runs, most recent first.
	ListRuns(ctx context.Context, f Filter) ([]Run, error)

	Close() error
}

// NewRunID returns a fresh run identifier.
func NewRunID() string { return uuid.NewString() }

// prepare fills the defaulted fields of r.
func prepare(r Run) Run {
	if r.ID == "" {
		r.ID = NewRunID()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now().UTC()
	}
	if r.Status == "" {
		r.Status = StatusOK
	}
	return r
}
