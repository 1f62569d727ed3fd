package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/mintenance/surveyor/pkg/domain/interfaces"
	"github.com/mintenance/surveyor/pkg/utils/logging"
)

// Counter aggregates outcomes of one kind of sub-call
type Counter struct {
	Success       int           `json:"success"`
	Failure       int           `json:"failure"`
	TimedOut      int           `json:"timed_out"`
	TotalDuration time.Duration `json:"total_duration_ns"`
}

// Snapshot is a copy of the aggregated counters
type Snapshot struct {
	Detectors        map[string]Counter `json:"detectors"`
	ModelCalls       Counter            `json:"model_calls"`
	Segmentation     Counter            `json:"segmentation"`
	PromptTokens     int                `json:"prompt_tokens"`
	CompletionTokens int                `json:"completion_tokens"`
}

// Recorder emits each measurement as a structured log record and keeps running totals
type Recorder struct {
	mu               sync.Mutex
	detectors        map[string]Counter
	modelCalls       Counter
	segmentation     Counter
	promptTokens     int
	completionTokens int
}

var _ interfaces.MetricsRecorder = &Recorder{}

// New creates an empty recorder
func New() *Recorder {
	return &Recorder{detectors: make(map[string]Counter)}
}

func (r *Recorder) RecordDetector(ctx context.Context, name string, success, timedOut bool, duration time.Duration) {
	r.mu.Lock()
	c := r.detectors[name]
	c.add(success, timedOut, duration)
	r.detectors[name] = c
	r.mu.Unlock()

	logging.From(ctx).Info("detector call",
		"metric", "detector",
		"detector", name,
		"success", success,
		"timed_out", timedOut,
		"duration_ms", duration.Milliseconds())
}

func (r *Recorder) RecordModelCall(ctx context.Context, success bool, duration time.Duration, promptTokens, completionTokens int) {
	r.mu.Lock()
	r.modelCalls.add(success, false, duration)
	r.promptTokens += promptTokens
	r.completionTokens += completionTokens
	r.mu.Unlock()

	logging.From(ctx).Info("vision model call",
		"metric", "model_call",
		"success", success,
		"duration_ms", duration.Milliseconds(),
		"prompt_tokens", promptTokens,
		"completion_tokens", completionTokens)
}

func (r *Recorder) RecordSegmentation(ctx context.Context, success bool, duration time.Duration) {
	r.mu.Lock()
	r.segmentation.add(success, false, duration)
	r.mu.Unlock()

	logging.From(ctx).Info("segmentation call",
		"metric", "segmentation",
		"success", success,
		"duration_ms", duration.Milliseconds())
}

// Snapshot returns a copy of the totals
func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	detectors := make(map[string]Counter, len(r.detectors))
	for k, v := range r.detectors {
		detectors[k] = v
	}
	return Snapshot{
		Detectors:        detectors,
		ModelCalls:       r.modelCalls,
		Segmentation:     r.segmentation,
		PromptTokens:     r.promptTokens,
		CompletionTokens: r.completionTokens,
	}
}

func (c *Counter) add(success, timedOut bool, d time.Duration) {
	if success {
		c.Success++
	} else {
		c.Failure++
	}
	if timedOut {
		c.TimedOut++
	}
	c.TotalDuration += d
}

// Nop discards every measurement
type Nop struct{}

var _ interfaces.MetricsRecorder = Nop{}

func (Nop) RecordDetector(context.Context, string, bool, bool, time.Duration) {}
func (Nop) RecordModelCall(context.Context, bool, time.Duration, int, int)    {}
func (Nop) RecordSegmentation(context.Context, bool, time.Duration)           {}
