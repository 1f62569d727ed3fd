package usecase

import (
	"context"
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/m-mizutani/goerr/v2"
	"github.com/mintenance/surveyor/pkg/domain/interfaces"
	"github.com/mintenance/surveyor/pkg/domain/model"
	"github.com/mintenance/surveyor/pkg/domain/types"
	"github.com/mintenance/surveyor/pkg/utils/async"
	"github.com/mintenance/surveyor/pkg/utils/errutil"
	"github.com/mintenance/surveyor/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

// Timeouts bounds each external sub-call of an assessment
type Timeouts struct {
	Detector     time.Duration
	Analyzer     time.Duration
	Model        time.Duration
	Segmentation time.Duration
}

// DefaultTimeouts returns the default sub-call deadlines
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Detector:     7 * time.Second,
		Analyzer:     10 * time.Second,
		Model:        90 * time.Second,
		Segmentation: 30 * time.Second,
	}
}

const (
	subCallDetector     = "object_detector"
	subCallAnalyzer     = "image_analyzer"
	subCallModel        = "vision_model"
	subCallSegmentation = "segmentation"
)

// AssessmentUseCase runs the damage assessment pipeline
type AssessmentUseCase struct {
	vision    interfaces.VisionModel
	detector  interfaces.ObjectDetector
	analyzer  interfaces.ImageAnalyzer
	segmenter interfaces.Segmenter

	features *FeatureExtractor
	memory   *MemoryAdjuster
	scorer   Scorer
	metrics  interfaces.MetricsRecorder
	timeouts Timeouts

	repo       interfaces.Repository
	validation *ValidationUseCase
	notifier   interfaces.ReviewNotifier
	now        func() time.Time
}

// AssessDamage produces a structured assessment for imageURLs.
// Only invalid input, missing model configuration and model failure are returned as errors;
// every other sub-call degrades to empty evidence.
func (uc *AssessmentUseCase) AssessDamage(ctx context.Context, imageURLs []string, actx *model.AssessmentContext) (*model.Assessment, error) {
	// 1. configuration and input
	if uc.vision == nil {
		return nil, goerr.Wrap(ErrConfiguration, "vision model credential is not configured")
	}
	if err := model.ValidateImageURLs(imageURLs); err != nil {
		return nil, asValidationError(err)
	}
	if err := actx.Validate(); err != nil {
		return nil, asValidationError(err)
	}

	logger := logging.From(ctx)
	logger.Info("assessment started", "image_count", len(imageURLs), "context", actx)

	// 2. detectors
	detections, vision := uc.runDetectors(ctx, imageURLs)

	// 3. features
	fv, source := uc.features.ExtractFeatures(ctx, &model.FeatureInput{
		ImageURLs:  imageURLs,
		Context:    actx,
		Detections: detections,
		Vision:     vision,
	})

	// 4. memory
	adj := uc.memory.Adjust(ctx, fv)

	// 5-7. model
	req := BuildVisionRequest(imageURLs, actx, detections, vision)
	resp, err := uc.callModel(ctx, req)
	if err != nil {
		return nil, err
	}
	raw, err := parseAssessment(resp.Content)
	if err != nil {
		return nil, goerr.Wrap(ErrExternalService, err.Error(), goerr.V(SubCallKey, subCallModel), goerr.V("model", resp.Model))
	}

	// 8. segmentation
	segmentation := uc.refine(ctx, imageURLs[0], raw.Damage.DamageType)

	// 9. assembly
	assessment := uc.assemble(raw, adj)
	assessment.Model = resp.Model
	assessment.Evidence = model.Evidence{
		Detections:       detections,
		Vision:           vision,
		Segmentation:     segmentation,
		MemoryAdjustment: adj,
		FeatureSource:    source,
	}

	logger.Info("assessment completed",
		"damage_type", assessment.Damage.DamageType,
		"severity", assessment.Damage.Severity,
		"confidence", assessment.Damage.Confidence,
		"priority", assessment.PriorityScore,
		"feature_source", source)
	return assessment, nil
}

// runDetectors runs both detectors concurrently. Neither failure cancels the other.
func (uc *AssessmentUseCase) runDetectors(ctx context.Context, imageURLs []string) ([]model.Detection, *model.VisionAnalysisSummary) {
	var (
		detections []model.Detection
		vision     *model.VisionAnalysisSummary
	)

	// plain Group: a failed detector must not cancel its sibling
	var eg errgroup.Group

	if uc.detector != nil {
		eg.Go(func() error {
			r := async.RunWithTimeout(ctx, subCallDetector, uc.timeouts.Detector, func(ctx context.Context) ([]model.Detection, error) {
				return uc.detector.Detect(ctx, imageURLs)
			})
			uc.recordDetector(ctx, r.Name, r.Success, r.TimedOut, r.Duration, r.Err)
			if r.Success {
				detections = r.Data
			}
			return nil
		})
	}

	if uc.analyzer != nil {
		eg.Go(func() error {
			r := async.RunWithTimeout(ctx, subCallAnalyzer, uc.timeouts.Analyzer, func(ctx context.Context) (*model.VisionAnalysisSummary, error) {
				return uc.analyzer.Analyze(ctx, imageURLs)
			})
			uc.recordDetector(ctx, r.Name, r.Success, r.TimedOut, r.Duration, r.Err)
			if r.Success {
				vision = r.Data
			}
			return nil
		})
	}

	_ = eg.Wait()
	return detections, vision
}

func (uc *AssessmentUseCase) recordDetector(ctx context.Context, name string, success, timedOut bool, d time.Duration, err error) {
	uc.metrics.RecordDetector(ctx, name, success, timedOut, d)
	if !success {
		logging.From(ctx).Warn("detector unavailable, continuing without its evidence",
			"detector", name,
			"timed_out", timedOut,
			"duration", d,
			"error", goerr.Wrap(ErrDegraded, errMessage(err), goerr.V(SubCallKey, name)))
	}
}

func (uc *AssessmentUseCase) callModel(ctx context.Context, req *model.VisionRequest) (*model.VisionResponse, error) {
	r := async.RunWithTimeout(ctx, subCallModel, uc.timeouts.Model, func(ctx context.Context) (*model.VisionResponse, error) {
		return uc.vision.Generate(ctx, req)
	})

	if !r.Success {
		uc.metrics.RecordModelCall(ctx, false, r.Duration, 0, 0)
		// The provider error stays in the chain so callers can recover its status and code.
		return nil, goerr.Wrap(goerr.Join(ErrExternalService, r.Err), "vision model call failed",
			goerr.V(SubCallKey, subCallModel),
			goerr.V("timed_out", r.TimedOut),
			goerr.V("duration", r.Duration.String()))
	}

	resp := r.Data
	if resp == nil {
		uc.metrics.RecordModelCall(ctx, false, r.Duration, 0, 0)
		return nil, goerr.Wrap(ErrExternalService, "vision model returned no response", goerr.V(SubCallKey, subCallModel))
	}
	uc.metrics.RecordModelCall(ctx, true, r.Duration, resp.PromptTokens, resp.CompletionTokens)
	return resp, nil
}

// parseAssessment decodes the model's JSON content, tolerating surrounding prose and code fences
func parseAssessment(content string) (*model.Assessment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, goerr.New("vision model returned empty content")
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return nil, goerr.New("vision model content is not a JSON object", goerr.V("content", truncateForLog(content)))
	}

	var raw model.Assessment
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return nil, goerr.Wrap(err, "failed to parse vision model content", goerr.V("content", truncateForLog(content)))
	}
	return &raw, nil
}

// refine requests masks for the primary damage type on the first image. Failures return nil.
func (uc *AssessmentUseCase) refine(ctx context.Context, imageURL string, damageType types.DamageType) *model.SegmentationEvidence {
	if uc.segmenter == nil || damageType == "" || damageType == types.DamageTypeUnknown {
		return nil
	}

	logger := logging.From(ctx)
	prompt := damageType.Prompt()

	r := async.RunWithTimeout(ctx, subCallSegmentation, uc.timeouts.Segmentation, func(ctx context.Context) (map[string]model.SegmentationMask, error) {
		if !uc.segmenter.HealthCheck(ctx) {
			return nil, goerr.New("segmentation service is not healthy")
		}
		return uc.segmenter.SegmentDamageTypes(ctx, imageURL, []string{prompt})
	})
	uc.metrics.RecordSegmentation(ctx, r.Success, r.Duration)

	if !r.Success {
		logger.Warn("segmentation skipped",
			"damage_type", damageType,
			"timed_out", r.TimedOut,
			"error", goerr.Wrap(ErrDegraded, errMessage(r.Err), goerr.V(SubCallKey, subCallSegmentation)))
		return nil
	}

	return &model.SegmentationEvidence{
		ImageURL:   imageURL,
		DamageType: prompt,
		Results:    r.Data,
	}
}

// assemble combines the model output with derived analyses and the memory signal
func (uc *AssessmentUseCase) assemble(raw *model.Assessment, adj model.MemoryAdjustment) *model.Assessment {
	a := &model.Assessment{
		Damage:               raw.Damage,
		Urgency:              raw.Urgency,
		HomeownerExplanation: raw.HomeownerExplanation,
		ContractorAdvice:     raw.ContractorAdvice,
	}

	a.Damage.DamageType = types.DamageType(strings.TrimSpace(string(a.Damage.DamageType)))
	if a.Damage.DamageType == "" {
		a.Damage.DamageType = types.DamageTypeUnknown
	}
	a.Damage.Severity = types.Severity(strings.ToLower(strings.TrimSpace(string(a.Damage.Severity))))
	a.Urgency.Urgency = types.Urgency(strings.ToLower(strings.TrimSpace(string(a.Urgency.Urgency))))

	a.Safety = uc.scorer.Safety(raw.Safety)
	a.Compliance = uc.scorer.Compliance(raw.Compliance)
	a.Insurance = uc.scorer.Insurance(raw.Insurance)

	a.Damage.Confidence = calibrateConfidence(clampScore(raw.Damage.Confidence), adj)
	a.PriorityScore = PriorityScore(a.Urgency.Urgency, a.Damage.Severity, a.Safety.OverallSafetyScore)
	return a
}

// AssessAndRecord assesses, stores a pending record, applies the auto-validation gate once
// and notifies reviewers when the gate declines.
func (uc *AssessmentUseCase) AssessAndRecord(ctx context.Context, imageURLs []string, actx *model.AssessmentContext) (*model.AssessmentRecord, Decision, error) {
	assessment, err := uc.AssessDamage(ctx, imageURLs, actx)
	if err != nil {
		return nil, Decision{}, err
	}

	now := uc.now()
	record, err := uc.repo.Assessment().Create(ctx, &model.AssessmentRecord{
		ID:         model.NewAssessmentID(),
		ImageURLs:  imageURLs,
		Context:    actx,
		Assessment: assessment,
		Validation: model.PendingValidation(),
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return nil, Decision{}, goerr.Wrap(err, "failed to store assessment")
	}

	decision, err := uc.validation.AutoValidateIfHighConfidence(ctx, assessment, record.ID)
	if err != nil {
		// the record stays pending and goes to human review
		errutil.Handle(ctx, err, "auto-validation failed")
		decision = Decision{Reason: "evaluation error: " + err.Error()}
	}

	if decision.CanAutoValidate {
		updated, err := uc.repo.Assessment().Get(ctx, record.ID)
		if err != nil {
			return nil, decision, goerr.Wrap(err, "failed to reload assessment", goerr.V(AssessmentIDKey, record.ID))
		}
		return updated, decision, nil
	}

	if uc.notifier != nil {
		if err := uc.notifier.NotifyReviewRequired(ctx, record, decision.Reason); err != nil {
			errutil.Handle(ctx, err, "failed to notify reviewers")
		}
	}
	return record, decision, nil
}

func errMessage(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

func truncateForLog(s string) string {
	const limit = 200
	if len(s) <= limit {
		return s
	}
	n := limit
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
