// Package corpus loads benchmark data: time-series CSV files, the directory
// tree that groups them, and the labeled anomaly windows that score them.
package corpus

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Record is one (timestamp, value) row of a data file.
type Record struct {
	Index     int
	Timestamp time.Time
	Value     float64
}

// DataFile is a loaded time-series file.
type DataFile struct {
	// SrcPath is the file's path on disk; FileName its base name.
	SrcPath  string
	FileName string
	Records  []Record
}

// timestampLayouts are tried in order when parsing the timestamp column.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp parses a timestamp in any of the supported layouts.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// LoadDataFile reads a CSV file with a header row containing "timestamp" and
// "value" columns.
func LoadDataFile(path string) (*DataFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening data file: %w", err)
	}
	defer f.Close()

	records, err := ReadRecords(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return &DataFile{
		SrcPath:  path,
		FileName: filepath.Base(path),
		Records:  records,
	}, nil
}

// ReadRecords parses CSV rows from r.
func ReadRecords(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("missing header row")
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}

	tsCol, valCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "timestamp":
			tsCol = i
		case "value":
			valCol = i
		}
	}
	if tsCol < 0 || valCol < 0 {
		return nil, fmt.Errorf("header must contain timestamp and value columns, got %v", header)
	}

	var records []Record
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		ts, err := ParseTimestamp(row[tsCol])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(row[valCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: parsing value: %w", line, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("line %d: value must be finite, got %v", line, v)
		}

		records = append(records, Record{Index: len(records), Timestamp: ts, Value: v})
	}

	return records, nil
}

// Len returns the number of records.
func (d *DataFile) Len() int { return len(d.Records) }

// Range returns the minimum and maximum value. An empty file yields (0, 0).
func (d *DataFile) Range() (min, max float64) {
	if len(d.Records) == 0 {
		return 0, 0
	}
	min, max = d.Records[0].Value, d.Records[0].Value
	for _, r := range d.Records[1:] {
		if r.Value < min {
			min = r.Value
		}
		if r.Value > max {
			max = r.Value
		}
	}
	return min, max
}

// IndexOf returns the index of the record with exactly timestamp t, or -1.
func (d *DataFile) IndexOf(t time.Time) int {
	for i, r := range d.Records {
		if r.Timestamp.Equal(t) {
			return i
		}
	}
	return -1
}
