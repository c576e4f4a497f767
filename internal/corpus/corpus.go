package corpus

import (
	"fmt"
	"io/fs"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nvandessel/cadbench/internal/constants"
)

// Corpus is a directory tree of data files keyed by slash-separated path
// relative to the root.
type Corpus struct {
	SrcRoot   string
	DataFiles map[string]*DataFile
}

// LoadCorpus walks root and loads every .csv file, skipping dot-files and
// dot-directories.
func LoadCorpus(root string) (*Corpus, error) {
	c := &Corpus{SrcRoot: root, DataFiles: make(map[string]*DataFile)}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") && path != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(name), ".csv") {
			return nil
		}

		df, err := LoadDataFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("relative path for %s: %w", path, err)
		}
		c.DataFiles[filepath.ToSlash(rel)] = df
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading corpus %s: %w", root, err)
	}

	return c, nil
}

// Names returns the relative paths of all data files, sorted.
func (c *Corpus) Names() []string {
	names := make([]string, 0, len(c.DataFiles))
	for n := range c.DataFiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Subset returns the data files whose relative path contains query.
func (c *Corpus) Subset(query string) map[string]*DataFile {
	out := make(map[string]*DataFile)
	for rel, df := range c.DataFiles {
		if strings.Contains(rel, query) {
			out[rel] = df
		}
	}
	return out
}

// ProbationPeriod returns the number of leading records of a file of the
// given length treated as probation: min(floor(percent*length),
// percent*ProbationReferenceLength).
func ProbationPeriod(percent float64, length int) int {
	byLength := math.Floor(percent * float64(length))
	byReference := percent * constants.ProbationReferenceLength
	return int(math.Min(byLength, byReference))
}
