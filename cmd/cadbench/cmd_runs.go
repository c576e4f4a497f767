package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/nvandessel/cadbench/internal/store"
	"github.com/spf13/cobra"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs, newest first",
		Long: `List the per-file run summaries recorded by 'cadbench run'.

Examples:
  cadbench runs
  cadbench runs --detector contextOSE --status failed
  cadbench runs --file realKnownCause/nyc_taxi.csv --limit 5 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			jsonOut, _ := cmd.Flags().GetBool("json")

			filter := store.Filter{}
			filter.Detector, _ = cmd.Flags().GetString("detector")
			filter.File, _ = cmd.Flags().GetString("file")
			filter.Limit, _ = cmd.Flags().GetInt("limit")
			status, _ := cmd.Flags().GetString("status")
			switch store.Status(status) {
			case "", store.StatusOK, store.StatusFailed:
				filter.Status = store.Status(status)
			default:
				return fmt.Errorf("invalid status %q (valid: ok, failed)", status)
			}

			var runs []store.Run
			path := cfg.StorePath()
			if _, err := os.Stat(path); err == nil {
				s, err := store.NewSQLiteRunStore(path)
				if err != nil {
					return err
				}
				defer s.Close()
				if runs, err = s.ListRuns(cmd.Context(), filter); err != nil {
					return err
				}
			} else if !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("checking run store: %w", err)
			}

			if jsonOut {
				if runs == nil {
					runs = []store.Run{}
				}
				return writeJSON(cmd.OutOrStdout(), runs)
			}

			w := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(w, "No runs recorded.")
				return nil
			}
			for _, r := range runs {
				fmt.Fprintf(w, "%s  %s  %-6s %-12s %s  records=%d mean=%.4f max=%.4f flagged=%d (%s)\n",
					shortID(r.ID), r.StartedAt.Local().Format(time.DateTime), r.Status, r.Detector, r.File,
					r.Records, r.MeanScore, r.MaxScore, r.AnomaliesFlagged, r.Duration.Round(time.Millisecond))
				if r.Error != "" {
					fmt.Fprintf(w, "          error: %s\n", r.Error)
				}
			}
			return nil
		},
	}

	cmd.Flags().String("detector", "", "Only runs of this detector")
	cmd.Flags().String("file", "", "Only runs of this data file")
	cmd.Flags().String("status", "", "Only runs with this status: ok, failed")
	cmd.Flags().Int("limit", 20, "Maximum runs to list (0 for all)")

	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
