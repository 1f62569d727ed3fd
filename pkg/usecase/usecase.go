package usecase

import (
	"time"

	"github.com/mintenance/surveyor/pkg/domain/interfaces"
	"github.com/mintenance/surveyor/pkg/domain/model"
	"github.com/mintenance/surveyor/pkg/service/metrics"
)

type UseCases struct {
	repo interfaces.Repository

	vision    interfaces.VisionModel
	detector  interfaces.ObjectDetector
	analyzer  interfaces.ImageAnalyzer
	segmenter interfaces.Segmenter
	learned   interfaces.LearnedExtractor
	memory    interfaces.MemoryStore
	notifier  interfaces.ReviewNotifier
	sink      interfaces.ExportSink
	metrics   interfaces.MetricsRecorder
	scorer    Scorer

	autoValidation AutoValidationConfig
	memoryLevels   []model.MemoryLevel
	timeouts       Timeouts
	now            func() time.Time

	Assessment *AssessmentUseCase
	Validation *ValidationUseCase
	Export     *ExportUseCase
	Features   *FeatureExtractor
}

type Option func(*UseCases)

func WithVisionModel(v interfaces.VisionModel) Option {
	return func(uc *UseCases) {
		uc.vision = v
	}
}

func WithObjectDetector(d interfaces.ObjectDetector) Option {
	return func(uc *UseCases) {
		uc.detector = d
	}
}

func WithImageAnalyzer(a interfaces.ImageAnalyzer) Option {
	return func(uc *UseCases) {
		uc.analyzer = a
	}
}

// WithSegmenter enables segmentation refinement
func WithSegmenter(s interfaces.Segmenter) Option {
	return func(uc *UseCases) {
		uc.segmenter = s
	}
}

// WithLearnedExtractor enables learned feature extraction
func WithLearnedExtractor(x interfaces.LearnedExtractor) Option {
	return func(uc *UseCases) {
		uc.learned = x
	}
}

func WithMemoryStore(m interfaces.MemoryStore) Option {
	return func(uc *UseCases) {
		uc.memory = m
	}
}

func WithMemoryLevels(levels []model.MemoryLevel) Option {
	return func(uc *UseCases) {
		uc.memoryLevels = levels
	}
}

func WithReviewNotifier(n interfaces.ReviewNotifier) Option {
	return func(uc *UseCases) {
		uc.notifier = n
	}
}

func WithExportSink(s interfaces.ExportSink) Option {
	return func(uc *UseCases) {
		uc.sink = s
	}
}

func WithMetrics(m interfaces.MetricsRecorder) Option {
	return func(uc *UseCases) {
		uc.metrics = m
	}
}

func WithScorer(s Scorer) Option {
	return func(uc *UseCases) {
		uc.scorer = s
	}
}

func WithAutoValidation(cfg AutoValidationConfig) Option {
	return func(uc *UseCases) {
		uc.autoValidation = cfg
	}
}

func WithTimeouts(t Timeouts) Option {
	return func(uc *UseCases) {
		uc.timeouts = t
	}
}

// WithClock overrides the time source for records, reviews and exports
func WithClock(now func() time.Time) Option {
	return func(uc *UseCases) {
		uc.now = now
	}
}

func New(repo interfaces.Repository, opts ...Option) *UseCases {
	uc := &UseCases{
		repo:           repo,
		metrics:        metrics.Nop{},
		scorer:         DefaultScorer{},
		autoValidation: DefaultAutoValidationConfig(),
		timeouts:       DefaultTimeouts(),
		now:            time.Now,
	}

	for _, opt := range opts {
		opt(uc)
	}

	uc.Features = NewFeatureExtractor(uc.learned)
	memory := NewMemoryAdjuster(uc.memory, DefaultMemoryAgent, uc.memoryLevels)
	memory.now = uc.now

	uc.Validation = NewValidationUseCase(repo, uc.autoValidation, uc.Features, memory)
	uc.Validation.now = uc.now

	uc.Assessment = &AssessmentUseCase{
		vision:     uc.vision,
		detector:   uc.detector,
		analyzer:   uc.analyzer,
		segmenter:  uc.segmenter,
		features:   uc.Features,
		memory:     memory,
		scorer:     uc.scorer,
		metrics:    uc.metrics,
		timeouts:   uc.timeouts,
		repo:       repo,
		validation: uc.Validation,
		notifier:   uc.notifier,
		now:        uc.now,
	}

	uc.Export = NewExportUseCase(repo, uc.sink)
	uc.Export.now = uc.now

	return uc
}
