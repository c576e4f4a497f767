package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/nvandessel/cadbench/internal/config"
	"github.com/nvandessel/cadbench/internal/corpus"
	"github.com/nvandessel/cadbench/internal/detector"
	"github.com/nvandessel/cadbench/internal/logging"
	"github.com/nvandessel/cadbench/internal/metrics"
	"github.com/nvandessel/cadbench/internal/results"
	"github.com/nvandessel/cadbench/internal/runner"
	"github.com/nvandessel/cadbench/internal/store"
	"github.com/spf13/cobra"
)

// fileSummary is the reported outcome of one job.
type fileSummary struct {
	RunID            string   `json:"run_id"`
	Detector         string   `json:"detector"`
	File             string   `json:"file"`
	Records          int      `json:"records"`
	MeanScore        float64  `json:"mean_score"`
	MaxScore         float64  `json:"max_score"`
	AnomaliesFlagged int      `json:"anomalies_flagged"`
	DurationMS       int64    `json:"duration_ms"`
	Outputs          []string `json:"outputs,omitempty"`
	Error            string   `json:"error,omitempty"`
}

func summarize(res runner.FileResult) fileSummary {
	s := fileSummary{
		RunID:            res.RunID,
		Detector:         res.Detector,
		File:             res.File,
		Records:          res.Records,
		MeanScore:        res.MeanScore,
		MaxScore:         res.MaxScore,
		AnomaliesFlagged: res.AnomaliesFlagged,
		DurationMS:       res.Duration.Milliseconds(),
		Outputs:          res.Outputs,
	}
	if res.Err != nil {
		s.Error = res.Err.Error()
	}
	return s
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Score every corpus file with every selected detector",
		Long: `Load the corpus and its label windows, replay each data file through each
selected detector and write one results file per detector, file and format.

A summary of every scored file is recorded in the run store.

Examples:
  cadbench run --data data --labels labels/combined_windows.json
  cadbench run --detectors contextOSE,null --format csv,arrow --workers 8
  cadbench run --subset realKnownCause --metrics-addr localhost:9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := applyRunFlags(cmd, cfg); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			subset, _ := cmd.Flags().GetString("subset")
			noStore, _ := cmd.Flags().GetBool("no-store")

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			summaries, runErr := runBenchmark(ctx, cmd, cfg, subset, noStore)
			if summaries == nil {
				return runErr
			}

			if jsonOut {
				if err := writeJSON(cmd.OutOrStdout(), summaries); err != nil {
					return err
				}
			} else {
				printSummaries(cmd, summaries)
			}
			return runErr
		},
	}

	cmd.Flags().String("data", "", "Corpus root directory")
	cmd.Flags().String("labels", "", "Label windows JSON file")
	cmd.Flags().String("results", "", "Results directory")
	cmd.Flags().StringSlice("detectors", nil, "Detectors to run (see 'cadbench detectors')")
	cmd.Flags().Int("workers", 0, "Files scored concurrently")
	cmd.Flags().StringSlice("format", nil, "Results formats: csv, arrow")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address while running")
	cmd.Flags().String("log-level", "", "Log level: info, debug, trace")
	cmd.Flags().String("subset", "", "Only score files whose relative path contains this string")
	cmd.Flags().Bool("no-store", false, "Do not record runs in the run store")

	return cmd
}

// applyRunFlags overrides configuration values with explicitly set flags.
func applyRunFlags(cmd *cobra.Command, cfg *config.CadbenchConfig) error {
	flags := cmd.Flags()
	if flags.Changed("data") {
		cfg.Corpus.DataDir, _ = flags.GetString("data")
	}
	if flags.Changed("labels") {
		cfg.Corpus.LabelPath, _ = flags.GetString("labels")
	}
	if flags.Changed("results") {
		cfg.Runner.ResultsDir, _ = flags.GetString("results")
	}
	if flags.Changed("detectors") {
		cfg.Runner.Detectors, _ = flags.GetStringSlice("detectors")
	}
	if flags.Changed("workers") {
		cfg.Runner.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("format") {
		cfg.Runner.Formats, _ = flags.GetStringSlice("format")
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Addr, _ = flags.GetString("metrics-addr")
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level, _ = flags.GetString("log-level")
	}
	for _, name := range cfg.Runner.Detectors {
		if _, err := detector.Lookup(name); err != nil {
			return err
		}
	}
	return nil
}

// runBenchmark scores the corpus. It returns nil summaries when the run
// could not start.
func runBenchmark(ctx context.Context, cmd *cobra.Command, cfg *config.CadbenchConfig, subset string, noStore bool) ([]fileSummary, error) {
	logger := logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())

	c, err := corpus.LoadCorpus(cfg.Corpus.DataDir)
	if err != nil {
		return nil, err
	}
	labels, err := loadLabels(cfg.Corpus.LabelPath, c, logger)
	if err != nil {
		return nil, err
	}
	if subset != "" {
		c = &corpus.Corpus{SrcRoot: c.SrcRoot, DataFiles: c.Subset(subset)}
	}
	if len(c.DataFiles) == 0 {
		return nil, fmt.Errorf("no data files under %s", cfg.Corpus.DataDir)
	}

	formats := make([]results.Format, 0, len(cfg.Runner.Formats))
	for _, f := range cfg.Runner.Formats {
		format, err := results.ParseFormat(f)
		if err != nil {
			return nil, err
		}
		formats = append(formats, format)
	}

	m := metrics.New()
	if cfg.Metrics.Addr != "" {
		stop, err := serveMetrics(cfg.Metrics.Addr, m, logger)
		if err != nil {
			return nil, err
		}
		defer stop()
	}

	tracer, err := logging.NewStepTracer(cfg.Runner.ResultsDir, cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	defer tracer.Close()

	var runs store.RunStore
	if !noStore {
		s, err := store.NewSQLiteRunStore(cfg.StorePath())
		if err != nil {
			return nil, err
		}
		defer s.Close()
		runs = s
	}

	r, err := runner.New(runner.Options{
		ResultsDir:       cfg.Runner.ResultsDir,
		Formats:          formats,
		Workers:          cfg.Runner.Workers,
		Detector:         cfg.DetectorOptions(),
		ProbationPercent: cfg.Corpus.ProbationPercent,
	}, logger, m, tracer, runs)
	if err != nil {
		return nil, err
	}

	jobs := runner.Jobs(c, labels, cfg.Runner.Detectors)
	logger.Info("starting run", "files", len(c.DataFiles), "detectors", cfg.Runner.Detectors, "jobs", len(jobs), "workers", cfg.Runner.Workers)
	out, err := r.Run(ctx, jobs)

	summaries := make([]fileSummary, len(out))
	failed := 0
	for i, res := range out {
		summaries[i] = summarize(res)
		if res.Err != nil {
			failed++
		}
	}
	if err != nil {
		return summaries, fmt.Errorf("%d of %d jobs failed: %w", failed, len(out), err)
	}
	return summaries, nil
}

// loadLabels reads the label windows. A missing file at the configured path
// is not an error; every record is then labeled 0.
func loadLabels(path string, c *corpus.Corpus, logger *slog.Logger) (*corpus.Labels, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		logger.Warn("label file not found, scoring without labels", "path", path)
		return nil, nil
	}
	l, err := corpus.LoadLabels(path, c)
	if err != nil {
		return nil, err
	}
	if err := l.ValidateWindows(); err != nil {
		return nil, err
	}
	return l, nil
}

// serveMetrics starts the Prometheus endpoint and returns its shutdown func.
func serveMetrics(addr string, m *metrics.Metrics, logger *slog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}, nil
}

func printSummaries(cmd *cobra.Command, summaries []fileSummary) {
	w := cmd.OutOrStdout()
	for _, s := range summaries {
		if s.Error != "" {
			fmt.Fprintf(w, "FAIL %-12s %s: %s\n", s.Detector, s.File, s.Error)
			continue
		}
		fmt.Fprintf(w, "ok   %-12s %s  records=%d mean=%.4f max=%.4f flagged=%d (%dms)\n",
			s.Detector, s.File, s.Records, s.MeanScore, s.MaxScore, s.AnomaliesFlagged, s.DurationMS)
	}
}
