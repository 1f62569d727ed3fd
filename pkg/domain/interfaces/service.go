package interfaces

import (
	"context"
	"time"

	"github.com/mintenance/surveyor/pkg/domain/model"
)

// ObjectDetector returns discrete detections for a set of images
type ObjectDetector interface {
	Detect(ctx context.Context, imageURLs []string) ([]model.Detection, error)
}

// ImageAnalyzer returns a general label/object summary for a set of images
type ImageAnalyzer interface {
	Analyze(ctx context.Context, imageURLs []string) (*model.VisionAnalysisSummary, error)
}

// VisionModel is a vision-capable language model producing structured output
type VisionModel interface {
	Generate(ctx context.Context, req *model.VisionRequest) (*model.VisionResponse, error)
}

// Segmenter produces pixel masks for natural-language damage prompts
type Segmenter interface {
	HealthCheck(ctx context.Context) bool
	SegmentDamageTypes(ctx context.Context, imageURL string, damageTypes []string) (map[string]model.SegmentationMask, error)
}

// LearnedExtractor is a model-backed feature extractor
type LearnedExtractor interface {
	Initialize(ctx context.Context) error
	Extract(ctx context.Context, input *model.FeatureInput) (model.FeatureVector, error)
}

// MemoryStore answers nearest-neighbour queries at one temporal level
type MemoryStore interface {
	Query(ctx context.Context, agent string, fv model.FeatureVector, level model.MemoryLevel) (*model.MemoryLevelResult, error)
	Remember(ctx context.Context, entry *model.MemoryEntry) error
}

// ReviewNotifier tells reviewers an assessment needs human review
type ReviewNotifier interface {
	NotifyReviewRequired(ctx context.Context, record *model.AssessmentRecord, reason string) error
}

// ExportSink stores exported training data
type ExportSink interface {
	Write(ctx context.Context, name string, data []byte) (string, error)
}

// MetricsRecorder receives per-sub-call measurements
type MetricsRecorder interface {
	RecordDetector(ctx context.Context, name string, success, timedOut bool, duration time.Duration)
	RecordModelCall(ctx context.Context, success bool, duration time.Duration, promptTokens, completionTokens int)
	RecordSegmentation(ctx context.Context, success bool, duration time.Duration)
}
