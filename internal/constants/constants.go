// Package constants provides named constants used throughout cadbench.
// This centralizes magic numbers for better maintainability and documentation.
package constants

// Contextual anomaly detector defaults.
const (
	// DefaultBaseThreshold is the raw score at or above which the detector
	// enters its rest-period cooldown.
	DefaultBaseThreshold = 0.75

	// DefaultRestPeriod is the cooldown window length, in steps, used when no
	// probation period is known.
	DefaultRestPeriod = 30

	// DefaultMaxLeftSemiContextsLength bounds the left overlap of candidate
	// contexts.
	DefaultMaxLeftSemiContextsLength = 7

	// DefaultMaxActiveNeurons caps the number of fired contexts fed back into
	// the next step.
	DefaultMaxActiveNeurons = 15

	// DefaultNumNormValueBits is the encoder width; at most this many signal
	// facts are produced per step.
	DefaultNumNormValueBits = 3

	// InitialScoreSentinel seeds the score history so the first steps fall
	// inside a cooldown.
	InitialScoreSentinel = 1.0

	// RestPeriodDivisor derives the rest period from the probation period.
	RestPeriodDivisor = 5
)

// Benchmark harness defaults.
const (
	// DefaultProbationPercent is the fraction of each file treated as
	// probation.
	DefaultProbationPercent = 0.15

	// ProbationReferenceLength caps the probation period at
	// DefaultProbationPercent of this many records.
	ProbationReferenceLength = 5000

	// NullDetectorScore is the constant emitted by the null detector.
	NullDetectorScore = 0.5

	// ProgressInterval is how many records pass between progress log lines.
	ProgressInterval = 1000

	// DefaultWorkers is the number of files scored concurrently.
	DefaultWorkers = 4
)

// Detector names registered by default.
const (
	DetectorContextOSE = "contextOSE"
	DetectorNull       = "null"
)
