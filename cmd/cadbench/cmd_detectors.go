package main

import (
	"fmt"
	"strings"

	"github.com/nvandessel/cadbench/internal/detector"
	"github.com/spf13/cobra"
)

type detectorInfo struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
}

func newDetectorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detectors",
		Short: "List registered detectors",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			var infos []detectorInfo
			for _, name := range detector.Names() {
				headers, err := detector.Headers(name)
				if err != nil {
					return fmt.Errorf("detector %s: %w", name, err)
				}
				infos = append(infos, detectorInfo{Name: name, Columns: headers})
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), infos)
			}
			for _, info := range infos {
				if len(info.Columns) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), info.Name)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (extra columns: %s)\n", info.Name, strings.Join(info.Columns, ", "))
			}
			return nil
		},
	}
}
