// Package compress is the top-level job orchestrator: validate, plan,
// compress chunk by chunk, merge, all wrapped in the graceful-degradation
// retry loop.
package compress

import (
	"fmt"
	"time"

	"github.com/QuickTools-one/qr-pdf-compress/internal/codec"
	"github.com/QuickTools-one/qr-pdf-compress/internal/progress"
)

// DefaultTimeout bounds each execution unit's lifetime.
const DefaultTimeout = 300 * time.Second

// Options configures one compression job.
type Options struct {
	// Preset is the requested aggressiveness level (required).
	Preset string

	// ChunkSize is pages per execution unit; auto-computed when 0.
	ChunkSize int

	// OnProgress receives derived progress events. May be nil.
	OnProgress func(progress.Update)

	// DisableDegradation turns off the preset fallback retry loop. The
	// zero value keeps degradation enabled, the default behavior.
	DisableDegradation bool

	// Optional overrides of the preset's engine parameters.
	PreserveMetadata   *bool
	TargetDPI          int
	Quality            int
	AllowRasterization *bool

	// MergeStrategy is "isolated" (default) or "inline".
	MergeStrategy string

	// Timeout per execution unit; DefaultTimeout when 0.
	Timeout time.Duration

	// Metadata is applied to the final artifact exactly once.
	Metadata *codec.Metadata

	// ConstrainedDevice shrinks the default chunk size.
	ConstrainedDevice bool
}

func (o *Options) timeout() time.Duration {
	if o.Timeout <= 0 {
		return DefaultTimeout
	}
	return o.Timeout
}

// Stats aggregates the outcome of a completed job.
type Stats struct {
	OriginalSize    int64         `json:"originalSize"`
	CompressedSize  int64         `json:"compressedSize"`
	Ratio           float64       `json:"ratio"`
	BytesSaved      int64         `json:"bytesSaved"`
	PercentageSaved float64       `json:"percentageSaved"`
	PresetUsed      string        `json:"presetUsed"`
	ProcessingTime  time.Duration `json:"processingTime"`
	ChunksProcessed int           `json:"chunksProcessed"`
}

// Result is a successful job outcome. Warning is set when the job succeeded
// under a different preset than requested, or when degradation exhausted all
// presets and the original bytes were returned verbatim.
type Result struct {
	Artifact []byte
	Stats    Stats
	Warning  string
}

// JobError is the structured failure surfaced when degradation is disabled
// (or impossible) and the job cannot complete.
type JobError struct {
	Preset       string // last attempted preset
	Phase        string // job phase where the failure occurred
	OriginalSize int64
	Err          error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("compression failed (preset=%s, phase=%s, originalSize=%d): %v",
		e.Preset, e.Phase, e.OriginalSize, e.Err)
}

func (e *JobError) Unwrap() error { return e.Err }
