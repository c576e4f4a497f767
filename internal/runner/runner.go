// Package runner replays corpus files through registered detectors and
// writes their scores, run summaries and metrics.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nvandessel/cadbench/internal/constants"
	"github.com/nvandessel/cadbench/internal/corpus"
	"github.com/nvandessel/cadbench/internal/detector"
	"github.com/nvandessel/cadbench/internal/logging"
	"github.com/nvandessel/cadbench/internal/metrics"
	"github.com/nvandessel/cadbench/internal/pathutil"
	"github.com/nvandessel/cadbench/internal/results"
	"github.com/nvandessel/cadbench/internal/store"
)

// Options configures a Runner.
type Options struct {
	// ResultsDir receives one results file per job and format.
	ResultsDir string
	// Formats selects the results encodings. Empty writes no files.
	Formats []results.Format
	// Workers bounds the number of files scored concurrently.
	Workers int
	// Detector holds the options handed to every detector factory.
	Detector detector.Options
	// ProbationPercent derives each file's probation period.
	ProbationPercent float64
}

// Job scores one data file with one detector.
type Job struct {
	Detector string
	RelPath  string
	File     *corpus.DataFile
	// Labels is the binary label vector of File; nil labels every record 0.
	Labels []int
}

// FileResult summarizes one job. Err is set when the job failed; the other
// fields then describe the records processed before the failure.
type FileResult struct {
	RunID            string
	Detector         string
	File             string
	Records          int
	MeanScore        float64
	MaxScore         float64
	AnomaliesFlagged int
	Duration         time.Duration
	Outputs          []string
	Err              error
}

// Runner scores jobs. The logger, metrics, tracer and store may all be nil.
type Runner struct {
	opts    Options
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  *logging.StepTracer
	runs    store.RunStore
}

// New creates a Runner.
func New(opts Options, logger *slog.Logger, m *metrics.Metrics, tracer *logging.StepTracer, runs store.RunStore) (*Runner, error) {
	if opts.Workers < 1 {
		return nil, fmt.Errorf("workers must be positive, got %d", opts.Workers)
	}
	if len(opts.Formats) > 0 && opts.ResultsDir == "" {
		return nil, errors.New("results directory is required when writing results")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{opts: opts, logger: logger, metrics: m, tracer: tracer, runs: runs}, nil
}

// Jobs expands every detector over every corpus file, ordered by detector
// then file name. Labels are attached when l knows the file.
func Jobs(c *corpus.Corpus, l *corpus.Labels, detectors []string) []Job {
	names := c.Names()
	jobs := make([]Job, 0, len(detectors)*len(names))
	for _, d := range detectors {
		for _, rel := range names {
			job := Job{Detector: d, RelPath: rel, File: c.DataFiles[rel]}
			if l != nil {
				job.Labels = l.Labels(rel)
			}
			jobs = append(jobs, job)
		}
	}
	return jobs
}

// Run scores all jobs with at most Workers in flight. A failing job never
// stops the others; the returned error joins every job error. Results are
// in job order.
func (r *Runner) Run(ctx context.Context, jobs []Job) ([]FileResult, error) {
	out := make([]FileResult, len(jobs))

	var g errgroup.Group
	g.SetLimit(r.opts.Workers)
	for i, job := range jobs {
		g.Go(func() error {
			out[i] = r.ScoreFile(ctx, job)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, res := range out {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("%s on %s: %w", res.Detector, res.File, res.Err))
		}
	}
	return out, errors.Join(errs...)
}

// ScoreFile runs one job to completion. Rows go to the configured results
// files and to every extra sink; sinks are not closed.
func (r *Runner) ScoreFile(ctx context.Context, job Job, sinks ...results.Writer) FileResult {
	start := time.Now()
	res := FileResult{RunID: store.NewRunID(), Detector: job.Detector, File: job.RelPath}

	res.Err = r.score(ctx, job, &res, sinks)
	res.Duration = time.Since(start)
	r.finish(ctx, start, &res)
	return res
}

func (r *Runner) score(ctx context.Context, job Job, res *FileResult, sinks []results.Writer) (err error) {
	if job.File == nil {
		return errors.New("no data file")
	}
	if job.Labels != nil && len(job.Labels) != job.File.Len() {
		return fmt.Errorf("have %d labels for %d records", len(job.Labels), job.File.Len())
	}

	factory, err := detector.Lookup(job.Detector)
	if err != nil {
		return err
	}
	lo, hi := job.File.Range()
	info := detector.DataSetInfo{
		InputMin:        lo,
		InputMax:        hi,
		ProbationPeriod: corpus.ProbationPeriod(r.opts.ProbationPercent, job.File.Len()),
		Length:          job.File.Len(),
	}
	det, err := factory(info, r.opts.Detector)
	if err != nil {
		return fmt.Errorf("creating detector: %w", err)
	}
	if err := det.Initialize(); err != nil {
		return err
	}

	headers := det.AdditionalHeaders()
	files, err := r.openWriters(det.Name(), job.RelPath, headers, res)
	if err != nil {
		return err
	}
	defer func() {
		for _, w := range files {
			if cerr := w.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
	}()
	writers := append(files[:len(files):len(files)], sinks...)

	log := r.logger.With("detector", det.Name(), "file", job.RelPath)
	log.Debug("scoring file", "records", info.Length, "probation", info.ProbationPeriod, "min", lo, "max", hi)

	reporter, _ := det.(detector.StepReporter)
	sum, best := 0.0, math.Inf(-1)
	defer func() {
		if res.Records > 0 {
			res.MeanScore = sum / float64(res.Records)
			res.MaxScore = best
		}
	}()
	for i, rec := range job.File.Records {
		if err := ctx.Err(); err != nil {
			return err
		}
		values, err := det.HandleRecord(rec)
		if err != nil {
			return fmt.Errorf("record %d: %w", rec.Index, err)
		}

		row := results.Row{Timestamp: rec.Timestamp, Value: rec.Value, Values: values}
		if job.Labels != nil {
			row.Label = job.Labels[i]
		}
		for _, w := range writers {
			if err := w.WriteRow(row); err != nil {
				return err
			}
		}
		r.trace(det.Name(), job.RelPath, rec.Index, values, headers, reporter)

		score := values[0]
		sum += score
		best = max(best, score)
		if score >= r.opts.Detector.BaseThreshold {
			res.AnomaliesFlagged++
		}
		res.Records++
		if res.Records%constants.ProgressInterval == 0 {
			log.Debug("progress", "records", res.Records)
		}
	}

	if cc, ok := det.(detector.ContextCounter); ok {
		r.metrics.SetContexts(det.Name(), cc.NumContexts())
	}
	return nil
}

// openWriters creates one results file per configured format.
func (r *Runner) openWriters(name, rel string, headers []string, res *FileResult) ([]results.Writer, error) {
	var writers []results.Writer
	for _, format := range r.opts.Formats {
		path := results.OutputPath(r.opts.ResultsDir, name, rel, format.Ext())
		err := pathutil.ValidatePath(path, r.opts.ResultsDir)
		var w results.Writer
		if err == nil {
			w, err = results.Create(format, path, headers)
		}
		if err != nil {
			for _, open := range writers {
				open.Close()
			}
			return nil, err
		}
		writers = append(writers, w)
		res.Outputs = append(res.Outputs, path)
	}
	return writers, nil
}

// trace writes one step, with engine internals when the tracer is verbose.
func (r *Runner) trace(name, rel string, index int, values []float64, headers []string, reporter detector.StepReporter) {
	if r.tracer == nil {
		return
	}
	if !r.tracer.Verbose() || reporter == nil {
		r.tracer.Record(name, rel, index, values, headers)
		return
	}
	step := reporter.LastStep()
	values = append(append([]float64(nil), values...),
		step.PercentActive, step.PercentNew, float64(step.NumActive), float64(step.NumNewContexts))
	headers = append(append([]string(nil), headers...),
		"percent_active", "percent_new", "num_active", "num_new_contexts")
	r.tracer.Record(name, rel, index, values, headers)
}

// finish records metrics and the run summary, and logs the outcome.
func (r *Runner) finish(ctx context.Context, start time.Time, res *FileResult) {
	status := store.StatusOK
	if res.Err != nil {
		status = store.StatusFailed
	}
	r.metrics.ObserveRecords(res.Detector, res.Records)
	r.metrics.ObserveFile(res.Detector, string(status), res.Duration)

	if r.runs != nil {
		run := store.Run{
			ID:               res.RunID,
			Detector:         res.Detector,
			File:             res.File,
			Records:          res.Records,
			MeanScore:        res.MeanScore,
			MaxScore:         res.MaxScore,
			AnomaliesFlagged: res.AnomaliesFlagged,
			Duration:         res.Duration,
			StartedAt:        start.UTC(),
			Status:           status,
		}
		if res.Err != nil {
			run.Error = res.Err.Error()
		}
		// A cancelled run is still recorded.
		if _, err := r.runs.RecordRun(context.WithoutCancel(ctx), run); err != nil {
			r.logger.Warn("failed to record run", "detector", res.Detector, "file", res.File, "error", err)
		}
	}

	if res.Err != nil {
		r.logger.Error("file failed", "detector", res.Detector, "file", res.File, "records", res.Records, "error", res.Err)
		return
	}
	r.logger.Info("file scored", "detector", res.Detector, "file", res.File,
		"records", res.Records, "mean_score", res.MeanScore, "flagged", res.AnomaliesFlagged,
		"duration", res.Duration)
}
