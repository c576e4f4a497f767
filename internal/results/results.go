// Package results writes per-file detector output in the benchmark's
// results layout: one file per detector and data file, holding the input
// record, the anomaly score, any extra detector columns and the label.
package results

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Format selects the on-disk encoding of a results file.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatArrow Format = "arrow"
)

// Formats lists the supported formats.
var Formats = []Format{FormatCSV, FormatArrow}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if string(f) == strings.ToLower(s) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown results format %q (valid: csv, arrow)", s)
}

// Ext returns the file extension of the format, including the dot.
func (f Format) Ext() string { return "." + string(f) }

// Row is one scored record.
type Row struct {
	Timestamp time.Time
	Value     float64
	// Values holds the anomaly score followed by the detector's extra
	// columns.
	Values []float64
	Label  int
}

// Writer receives the rows of one results file in order.
type Writer interface {
	WriteRow(Row) error
	Close() error
}

// Columns returns the header of a results file for the given extra
// detector columns.
func Columns(additional []string) []string {
	cols := make([]string, 0, 4+len(additional))
	cols = append(cols, "timestamp", "value", "anomaly_score")
	cols = append(cols, additional...)
	return append(cols, "label")
}

// OutputPath returns <resultsDir>/<detector>/<reldir>/<detector>_<file>,
// with the data file's extension replaced by ext. relPath uses forward
// slashes.
func OutputPath(resultsDir, detector, relPath, ext string) string {
	dir, file := path.Split(relPath)
	file = strings.TrimSuffix(file, path.Ext(file)) + ext
	return filepath.Join(resultsDir, detector, filepath.FromSlash(dir), detector+"_"+file)
}

// Create opens a results writer at path, creating parent directories.
func Create(format Format, path string, additional []string) (Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating results directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating results file: %w", err)
	}

	switch format {
	case FormatCSV:
		w, err := newCSVWriter(f, f, additional)
		if err != nil {
			f.Close()
			return nil, err
		}
		return w, nil
	case FormatArrow:
		w, err := newArrowWriter(f, additional)
		if err != nil {
			f.Close()
			return nil, err
		}
		return w, nil
	default:
		f.Close()
		return nil, fmt.Errorf("unknown results format %q", format)
	}
}

// checkWidth verifies a row carries one value per score column.
func checkWidth(r Row, additional []string) error {
	if len(r.Values) != 1+len(additional) {
		return fmt.Errorf("row has %d score values, want %d", len(r.Values), 1+len(additional))
	}
	return nil
}
