package main

import (
	"fmt"
	"path/filepath"

	"github.com/nvandessel/cadbench/internal/constants"
	"github.com/nvandessel/cadbench/internal/corpus"
	"github.com/nvandessel/cadbench/internal/detector"
	"github.com/nvandessel/cadbench/internal/logging"
	"github.com/nvandessel/cadbench/internal/results"
	"github.com/nvandessel/cadbench/internal/runner"
	"github.com/spf13/cobra"
)

func newScoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score <file.csv>",
		Short: "Score a single data file and print the results as CSV",
		Long: `Replay one data file through a detector and write the results rows to
stdout. Nothing is written to the results directory or the run store.

Example:
  cadbench score data/realKnownCause/nyc_taxi.csv --detector contextOSE`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			name, _ := cmd.Flags().GetString("detector")
			if cmd.Flags().Changed("log-level") {
				cfg.Logging.Level, _ = cmd.Flags().GetString("log-level")
			}

			headers, err := detector.Headers(name)
			if err != nil {
				return err
			}
			df, err := corpus.LoadDataFile(args[0])
			if err != nil {
				return err
			}

			logger := logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())
			r, err := runner.New(runner.Options{
				Workers:          1,
				Detector:         cfg.DetectorOptions(),
				ProbationPercent: cfg.Corpus.ProbationPercent,
			}, logger, nil, nil, nil)
			if err != nil {
				return err
			}

			sink, err := results.NewCSVWriter(cmd.OutOrStdout(), headers)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			res := r.ScoreFile(ctx, runner.Job{Detector: name, RelPath: filepath.Base(args[0]), File: df}, sink)
			if err := sink.Close(); err != nil && res.Err == nil {
				res.Err = err
			}
			if res.Err != nil {
				return fmt.Errorf("scoring %s: %w", args[0], res.Err)
			}
			return nil
		},
	}

	cmd.Flags().String("detector", constants.DetectorContextOSE, "Detector to run")
	cmd.Flags().String("log-level", "", "Log level: info, debug, trace")

	return cmd
}
