// Package config provides unified configuration loading for cadbench.
// It supports loading from YAML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/nvandessel/cadbench/internal/constants"
	"github.com/nvandessel/cadbench/internal/detector"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable override.
const EnvPrefix = "CADBENCH_"

// CadbenchConfig contains all cadbench configuration settings.
type CadbenchConfig struct {
	// Detector holds the contextual anomaly detector options.
	Detector DetectorConfig `json:"detector" yaml:"detector"`

	// Corpus locates the benchmark data and its labels.
	Corpus CorpusConfig `json:"corpus" yaml:"corpus"`

	// Runner controls how the corpus is scored.
	Runner RunnerConfig `json:"runner" yaml:"runner"`

	// Store locates the run history database.
	Store StoreConfig `json:"store" yaml:"store"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`

	// Logging contains settings for operational logging and step tracing.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// DetectorConfig mirrors detector.Options.
type DetectorConfig struct {
	BaseThreshold             float64 `json:"base_threshold" yaml:"base_threshold" validate:"gte=0,lte=1"`
	RestPeriod                int     `json:"rest_period" yaml:"rest_period" validate:"gte=1"`
	MaxLeftSemiContextsLength int     `json:"max_left_semi_contexts_length" yaml:"max_left_semi_contexts_length" validate:"gte=1"`
	MaxActiveNeurons          int     `json:"max_active_neurons" yaml:"max_active_neurons" validate:"gte=1"`
	NumNormValueBits          int     `json:"num_norm_value_bits" yaml:"num_norm_value_bits" validate:"gte=1,lte=30"`
}

// CorpusConfig locates the data files and label windows.
type CorpusConfig struct {
	DataDir   string `json:"data_dir" yaml:"data_dir" validate:"required"`
	LabelPath string `json:"label_path,omitempty" yaml:"label_path,omitempty"`

	// ProbationPercent is the share of each file the detectors may learn
	// from before their scores count.
	ProbationPercent float64 `json:"probation_percent" yaml:"probation_percent" validate:"gte=0,lte=1"`
}

// RunnerConfig controls the corpus runner.
type RunnerConfig struct {
	ResultsDir string   `json:"results_dir" yaml:"results_dir" validate:"required"`
	Workers    int      `json:"workers" yaml:"workers" validate:"gte=1"`
	Detectors  []string `json:"detectors" yaml:"detectors" validate:"min=1,dive,required"`
	Formats    []string `json:"formats" yaml:"formats" validate:"min=1,dive,oneof=csv arrow"`
}

// StoreConfig locates the SQLite run history. An empty path places it at
// <results_dir>/runs.db.
type StoreConfig struct {
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// MetricsConfig configures the metrics listener. An empty address disables
// it.
type MetricsConfig struct {
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty" validate:"omitempty,hostname_port"`
}

// LoggingConfig configures cadbench's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables step tracing to <results_dir>/trace.jsonl.
	Level string `json:"level" yaml:"level" validate:"omitempty,oneof=info debug trace"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report yaml key names instead of Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Default returns a CadbenchConfig with sensible defaults.
func Default() *CadbenchConfig {
	return &CadbenchConfig{
		Detector: DetectorConfig{
			BaseThreshold:             constants.DefaultBaseThreshold,
			RestPeriod:                constants.DefaultRestPeriod,
			MaxLeftSemiContextsLength: constants.DefaultMaxLeftSemiContextsLength,
			MaxActiveNeurons:          constants.DefaultMaxActiveNeurons,
			NumNormValueBits:          constants.DefaultNumNormValueBits,
		},
		Corpus: CorpusConfig{
			DataDir:          "data",
			LabelPath:        filepath.Join("labels", "combined_windows.json"),
			ProbationPercent: constants.DefaultProbationPercent,
		},
		Runner: RunnerConfig{
			ResultsDir: "results",
			Workers:    constants.DefaultWorkers,
			Detectors:  []string{constants.DetectorContextOSE},
			Formats:    []string{"csv"},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns ~/.cadbench/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(homeDir, ".cadbench", "config.yaml"), nil
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.cadbench/config.yaml -> environment variables
func Load() (*CadbenchConfig, error) {
	config := Default()

	if configPath, err := DefaultPath(); err == nil {
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadPath loads configuration like Load, but reads path instead of the
// default file when path is non-empty.
func LoadPath(path string) (*CadbenchConfig, error) {
	if path == "" {
		return Load()
	}
	config, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(config)
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file. Keys absent
// from the file keep their defaults.
func LoadFromFile(path string) (*CadbenchConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Corpus.DataDir = expandEnvVars(config.Corpus.DataDir)
	config.Runner.ResultsDir = expandEnvVars(config.Runner.ResultsDir)
	config.Store.Path = expandEnvVars(config.Store.Path)

	return config, nil
}

// Save writes the configuration as YAML to path, creating its directory.
func (c *CadbenchConfig) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *CadbenchConfig) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// describe renders one validation failure using the dotted yaml key.
func describe(fe validator.FieldError) string {
	key := fe.Namespace()
	if _, rest, ok := strings.Cut(key, "."); ok {
		key = rest
	}
	switch fe.Tag() {
	case "required", "min":
		return fmt.Sprintf("%s is required", key)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %v", key, fe.Param(), fe.Value())
	case "gte":
		return fmt.Sprintf("%s must be >= %s, got %v", key, fe.Param(), fe.Value())
	case "lte":
		return fmt.Sprintf("%s must be <= %s, got %v", key, fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s is not a valid %s: %v", key, fe.Tag(), fe.Value())
	}
}

// DetectorOptions converts the detector section into detector options.
func (c *CadbenchConfig) DetectorOptions() detector.Options {
	return detector.Options{
		BaseThreshold:             c.Detector.BaseThreshold,
		RestPeriod:                c.Detector.RestPeriod,
		MaxLeftSemiContextsLength: c.Detector.MaxLeftSemiContextsLength,
		MaxActiveNeurons:          c.Detector.MaxActiveNeurons,
		NumNormValueBits:          c.Detector.NumNormValueBits,
	}
}

// StorePath resolves the run history location.
func (c *CadbenchConfig) StorePath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	return filepath.Join(c.Runner.ResultsDir, "runs.db")
}

// Keys lists every dot-notation key understood by Get and Set.
var Keys = []string{
	"detector.base_threshold",
	"detector.rest_period",
	"detector.max_left_semi_contexts_length",
	"detector.max_active_neurons",
	"detector.num_norm_value_bits",
	"corpus.data_dir",
	"corpus.label_path",
	"corpus.probation_percent",
	"runner.results_dir",
	"runner.workers",
	"runner.detectors",
	"runner.formats",
	"store.path",
	"metrics.addr",
	"logging.level",
}

// Get retrieves a configuration value by dot-notation key.
func (c *CadbenchConfig) Get(key string) (any, bool) {
	switch key {
	case "detector.base_threshold":
		return c.Detector.BaseThreshold, true
	case "detector.rest_period":
		return c.Detector.RestPeriod, true
	case "detector.max_left_semi_contexts_length":
		return c.Detector.MaxLeftSemiContextsLength, true
	case "detector.max_active_neurons":
		return c.Detector.MaxActiveNeurons, true
	case "detector.num_norm_value_bits":
		return c.Detector.NumNormValueBits, true
	case "corpus.data_dir":
		return c.Corpus.DataDir, true
	case "corpus.label_path":
		return c.Corpus.LabelPath, true
	case "corpus.probation_percent":
		return c.Corpus.ProbationPercent, true
	case "runner.results_dir":
		return c.Runner.ResultsDir, true
	case "runner.workers":
		return c.Runner.Workers, true
	case "runner.detectors":
		return strings.Join(c.Runner.Detectors, ","), true
	case "runner.formats":
		return strings.Join(c.Runner.Formats, ","), true
	case "store.path":
		return c.StorePath(), true
	case "metrics.addr":
		return c.Metrics.Addr, true
	case "logging.level":
		return c.Logging.Level, true
	default:
		return nil, false
	}
}

// Set assigns a configuration value by dot-notation key and re-validates
// the result. On error the configuration is left unchanged.
func (c *CadbenchConfig) Set(key, value string) error {
	next := *c
	next.Runner.Detectors = append([]string(nil), c.Runner.Detectors...)
	next.Runner.Formats = append([]string(nil), c.Runner.Formats...)

	var err error
	switch key {
	case "detector.base_threshold":
		next.Detector.BaseThreshold, err = strconv.ParseFloat(value, 64)
	case "detector.rest_period":
		next.Detector.RestPeriod, err = strconv.Atoi(value)
	case "detector.max_left_semi_contexts_length":
		next.Detector.MaxLeftSemiContextsLength, err = strconv.Atoi(value)
	case "detector.max_active_neurons":
		next.Detector.MaxActiveNeurons, err = strconv.Atoi(value)
	case "detector.num_norm_value_bits":
		next.Detector.NumNormValueBits, err = strconv.Atoi(value)
	case "corpus.data_dir":
		next.Corpus.DataDir = value
	case "corpus.label_path":
		next.Corpus.LabelPath = value
	case "corpus.probation_percent":
		next.Corpus.ProbationPercent, err = strconv.ParseFloat(value, 64)
	case "runner.results_dir":
		next.Runner.ResultsDir = value
	case "runner.workers":
		next.Runner.Workers, err = strconv.Atoi(value)
	case "runner.detectors":
		next.Runner.Detectors = splitList(value)
	case "runner.formats":
		next.Runner.Formats = splitList(value)
	case "store.path":
		next.Store.Path = value
	case "metrics.addr":
		next.Metrics.Addr = value
	case "logging.level":
		next.Logging.Level = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	if err != nil {
		return fmt.Errorf("invalid value %q for %s: %w", value, key, err)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *CadbenchConfig) {
	if v := os.Getenv(EnvPrefix + "DATA_DIR"); v != "" {
		config.Corpus.DataDir = v
	}
	if v := os.Getenv(EnvPrefix + "LABEL_PATH"); v != "" {
		config.Corpus.LabelPath = v
	}
	if v := os.Getenv(EnvPrefix + "PROBATION_PERCENT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Corpus.ProbationPercent = f
		}
	}
	if v := os.Getenv(EnvPrefix + "BASE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Detector.BaseThreshold = f
		}
	}
	if v := os.Getenv(EnvPrefix + "RESULTS_DIR"); v != "" {
		config.Runner.ResultsDir = v
	}
	if v := os.Getenv(EnvPrefix + "WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Runner.Workers = n
		}
	}
	if v := os.Getenv(EnvPrefix + "DETECTORS"); v != "" {
		config.Runner.Detectors = splitList(v)
	}
	if v := os.Getenv(EnvPrefix + "STORE_PATH"); v != "" {
		config.Store.Path = v
	}
	if v := os.Getenv(EnvPrefix + "METRICS_ADDR"); v != "" {
		config.Metrics.Addr = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}

// splitList splits a comma-separated list, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
