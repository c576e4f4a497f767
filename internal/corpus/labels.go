package corpus

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Window is an inclusive labeled anomaly window.
type Window struct {
	Start time.Time
	End   time.Time
}

// Labels holds the anomaly windows of a corpus, keyed by relative path.
type Labels struct {
	Path    string
	Windows map[string][]Window
	corpus  *Corpus
}

// LoadLabels reads a JSON label file of the form
// {"dir/file.csv": [["start", "end"], ...]} and checks every window
// boundary against the corpus: each timestamp must exist exactly in its data
// file. Windows for files absent from the corpus are rejected.
func LoadLabels(path string, c *Corpus) (*Labels, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading label file: %w", err)
	}

	var raw map[string][][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing label file %s: %w", path, err)
	}

	l := &Labels{Path: path, Windows: make(map[string][]Window, len(raw)), corpus: c}
	for rel, pairs := range raw {
		windows := make([]Window, 0, len(pairs))
		for _, pair := range pairs {
			if len(pair) != 2 {
				return nil, fmt.Errorf("label file %s: window for %s must have 2 timestamps, got %d", path, rel, len(pair))
			}
			start, err := ParseTimestamp(pair[0])
			if err != nil {
				return nil, fmt.Errorf("label file %s: %s: %w", path, rel, err)
			}
			end, err := ParseTimestamp(pair[1])
			if err != nil {
				return nil, fmt.Errorf("label file %s: %s: %w", path, rel, err)
			}
			windows = append(windows, Window{Start: start, End: end})
		}
		l.Windows[rel] = windows

		if len(windows) == 0 {
			continue
		}
		df, ok := c.DataFiles[rel]
		if !ok {
			return nil, fmt.Errorf("label file %s: no data file %s in corpus", path, rel)
		}
		for _, w := range windows {
			for _, ts := range []time.Time{w.Start, w.End} {
				if df.IndexOf(ts) < 0 {
					return nil, fmt.Errorf("in the label file %s, timestamp %s for data file %s does not exist in the file; "+
						"label timestamps must exactly match timestamps in the data file",
						path, ts.Format(time.DateTime), rel)
				}
			}
		}
	}

	return l, nil
}

// ValidateWindows checks that each file's windows are ordered and do not
// overlap.
func (l *Labels) ValidateWindows() error {
	for rel, windows := range l.Windows {
		for i, w := range windows {
			if w.End.Before(w.Start) {
				return fmt.Errorf("in the label file %s, window %d of %s ends before it starts", l.Path, i, rel)
			}
			if i > 0 && w.Start.Sub(windows[i-1].End) < 0 {
				return fmt.Errorf("in the label file %s, windows %d and %d of %s overlap", l.Path, i-1, i, rel)
			}
		}
	}
	return nil
}

// Has reports whether the label file mentions rel.
func (l *Labels) Has(rel string) bool {
	_, ok := l.Windows[rel]
	return ok
}

// Labels returns the binary label vector of rel: 1 for records inside any
// window, 0 otherwise. It returns nil if rel is unknown to the corpus.
func (l *Labels) Labels(rel string) []int {
	df, ok := l.corpus.DataFiles[rel]
	if !ok {
		return nil
	}
	out := make([]int, df.Len())
	for _, w := range l.Windows[rel] {
		for i, r := range df.Records {
			if !r.Timestamp.Before(w.Start) && !r.Timestamp.After(w.End) {
				out[i] = 1
			}
		}
	}
	return out
}
