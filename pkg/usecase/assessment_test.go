package usecase_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/mintenance/surveyor/pkg/domain/model"
	"github.com/mintenance/surveyor/pkg/domain/types"
	"github.com/mintenance/surveyor/pkg/repository/memory"
	"github.com/mintenance/surveyor/pkg/service/metrics"
	"github.com/mintenance/surveyor/pkg/service/visionmodel"
	"github.com/mintenance/surveyor/pkg/usecase"
)

func staticModel(content string) *mockVisionModel {
	return &mockVisionModel{
		generateFn: func(ctx context.Context, req *model.VisionRequest) (*model.VisionResponse, error) {
			return &model.VisionResponse{Content: content, Model: "test-model", PromptTokens: 100, CompletionTokens: 50}, nil
		},
	}
}

func workingDetector() *mockDetector {
	return &mockDetector{
		detectFn: func(ctx context.Context, imageURLs []string) ([]model.Detection, error) {
			return []model.Detection{{ClassName: "water_stain", Confidence: 88}}, nil
		},
	}
}

func workingAnalyzer() *mockAnalyzer {
	return &mockAnalyzer{
		analyzeFn: func(ctx context.Context, imageURLs []string) (*model.VisionAnalysisSummary, error) {
			return &model.VisionAnalysisSummary{Confidence: 75, Labels: []string{"ceiling", "stain"}}, nil
		},
	}
}

func shortTimeouts() usecase.Timeouts {
	return usecase.Timeouts{
		Detector:     200 * time.Millisecond,
		Analyzer:     200 * time.Millisecond,
		Model:        2 * time.Second,
		Segmentation: 200 * time.Millisecond,
	}
}

func TestAssessDamage(t *testing.T) {
	ctx := context.Background()

	t.Run("assembles assessment with derived scores", func(t *testing.T) {
		rec := metrics.New()
		var captured *model.VisionRequest
		vision := &mockVisionModel{
			generateFn: func(ctx context.Context, req *model.VisionRequest) (*model.VisionResponse, error) {
				captured = req
				return &model.VisionResponse{Content: modelResponse, Model: "test-model", PromptTokens: 100, CompletionTokens: 50}, nil
			},
		}
		uc := usecase.New(memory.New(),
			usecase.WithVisionModel(vision),
			usecase.WithObjectDetector(workingDetector()),
			usecase.WithImageAnalyzer(workingAnalyzer()),
			usecase.WithMetrics(rec),
			usecase.WithTimeouts(shortTimeouts()),
		)

		a, err := uc.Assessment.AssessDamage(ctx, testImageURLs, &model.AssessmentContext{PropertyType: "flat"})
		gt.NoError(t, err).Required()

		gt.Value(t, a.Damage.DamageType).Equal(types.DamageTypeWaterDamage)
		gt.Value(t, a.Damage.Severity).Equal(types.SeverityMidway)
		gt.Value(t, a.Damage.Confidence).Equal(95)
		// model-provided scores are replaced by derived ones
		gt.Value(t, a.Safety.OverallSafetyScore).Equal(90)
		gt.Value(t, a.Compliance.ComplianceScore).Equal(90)
		gt.Value(t, a.Insurance.RiskScore).Equal(10)
		gt.Value(t, a.Insurance.PremiumImpact).Equal("low")
		gt.Value(t, a.PriorityScore).Equal(45)
		gt.Value(t, a.Model).Equal("test-model")
		gt.Value(t, a.HomeownerExplanation.WhatToDo).Equal("Call a plumber")

		gt.Array(t, a.Evidence.Detections).Length(1)
		gt.Value(t, a.Evidence.Vision).NotNil()
		gt.Value(t, a.Evidence.FeatureSource).Equal(model.FeatureSourceHandcrafted)
		gt.Value(t, a.Evidence.Segmentation).Nil()

		gt.Value(t, captured).NotNil()
		gt.String(t, captured.UserPrompt).Contains("water_stain: 1 detection(s), average confidence 88%")
		gt.String(t, captured.UserPrompt).Contains("Labels: ceiling, stain")
		gt.String(t, captured.UserPrompt).Contains("Property type: flat")

		s := rec.Snapshot()
		gt.Value(t, s.Detectors["object_detector"].Success).Equal(1)
		gt.Value(t, s.Detectors["image_analyzer"].Success).Equal(1)
		gt.Value(t, s.ModelCalls.Success).Equal(1)
		gt.Value(t, s.PromptTokens).Equal(100)
	})

	t.Run("both detectors failing still yields an assessment", func(t *testing.T) {
		rec := metrics.New()
		var captured *model.VisionRequest
		uc := usecase.New(memory.New(),
			usecase.WithVisionModel(&mockVisionModel{
				generateFn: func(ctx context.Context, req *model.VisionRequest) (*model.VisionResponse, error) {
					captured = req
					return &model.VisionResponse{Content: modelResponse}, nil
				},
			}),
			usecase.WithObjectDetector(&mockDetector{
				detectFn: func(ctx context.Context, imageURLs []string) ([]model.Detection, error) {
					return nil, errors.New("inference service down")
				},
			}),
			usecase.WithImageAnalyzer(&mockAnalyzer{
				analyzeFn: func(ctx context.Context, imageURLs []string) (*model.VisionAnalysisSummary, error) {
					<-ctx.Done()
					return nil, ctx.Err()
				},
			}),
			usecase.WithMetrics(rec),
			usecase.WithTimeouts(shortTimeouts()),
		)

		a, err := uc.Assessment.AssessDamage(ctx, testImageURLs, nil)
		gt.NoError(t, err).Required()

		gt.Array(t, a.Evidence.Detections).Length(0)
		gt.Value(t, a.Evidence.Vision).Nil()
		gt.Number(t, a.PriorityScore).GreaterOrEqual(0)
		gt.Bool(t, a.PriorityScore <= 100).True()
		gt.String(t, captured.UserPrompt).Contains("Rely entirely on your own visual analysis")

		s := rec.Snapshot()
		gt.Value(t, s.Detectors["object_detector"].Failure).Equal(1)
		gt.Value(t, s.Detectors["image_analyzer"].TimedOut).Equal(1)
	})

	t.Run("slow detector does not delay past its timeout", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)

		uc := usecase.New(memory.New(),
			usecase.WithVisionModel(staticModel(modelResponse)),
			usecase.WithObjectDetector(&mockDetector{
				detectFn: func(ctx context.Context, imageURLs []string) ([]model.Detection, error) {
					// ignores cancellation; its late result must be discarded
					<-release
					return []model.Detection{{ClassName: "late", Confidence: 99}}, nil
				},
			}),
			usecase.WithImageAnalyzer(workingAnalyzer()),
			usecase.WithTimeouts(shortTimeouts()),
		)

		start := time.Now()
		a, err := uc.Assessment.AssessDamage(ctx, testImageURLs, nil)
		gt.NoError(t, err).Required()
		gt.Bool(t, time.Since(start) < time.Second).True()
		gt.Array(t, a.Evidence.Detections).Length(0)
		gt.Value(t, a.Evidence.Vision).NotNil()
	})

	t.Run("missing model credential is a configuration error", func(t *testing.T) {
		uc := usecase.New(memory.New())
		_, err := uc.Assessment.AssessDamage(ctx, testImageURLs, nil)
		gt.Error(t, err).Is(usecase.ErrConfiguration)
	})

	t.Run("empty image list is a validation error", func(t *testing.T) {
		uc := usecase.New(memory.New(), usecase.WithVisionModel(staticModel(modelResponse)))
		_, err := uc.Assessment.AssessDamage(ctx, nil, nil)
		gt.Error(t, err).Is(usecase.ErrValidation)
	})

	t.Run("every invalid URL is reported", func(t *testing.T) {
		var called atomic.Bool
		uc := usecase.New(memory.New(), usecase.WithVisionModel(&mockVisionModel{
			generateFn: func(ctx context.Context, req *model.VisionRequest) (*model.VisionResponse, error) {
				called.Store(true)
				return &model.VisionResponse{Content: modelResponse}, nil
			},
		}))

		_, err := uc.Assessment.AssessDamage(ctx, []string{
			"https://img.example.com/ok.jpg",
			"ftp://img.example.com/a.jpg",
			"not a url",
			"",
		}, nil)
		gt.Error(t, err).Is(usecase.ErrValidation)
		gt.String(t, err.Error()).Contains("3 of 4 image URLs are invalid")
		gt.String(t, err.Error()).Contains("[1]")
		gt.String(t, err.Error()).Contains("[2]")
		gt.String(t, err.Error()).Contains("[3]")
		gt.Bool(t, called.Load()).False()
	})

	t.Run("model failure is an external service error carrying the provider message", func(t *testing.T) {
		rec := metrics.New()
		uc := usecase.New(memory.New(),
			usecase.WithVisionModel(&mockVisionModel{
				generateFn: func(ctx context.Context, req *model.VisionRequest) (*model.VisionResponse, error) {
					return nil, errors.New("openai API error (status 429, code rate_limit_exceeded): Rate limit reached")
				},
			}),
			usecase.WithMetrics(rec),
		)

		_, err := uc.Assessment.AssessDamage(ctx, testImageURLs, nil)
		gt.Error(t, err).Is(usecase.ErrExternalService)
		gt.String(t, err.Error()).Contains("rate_limit_exceeded")
		gt.Value(t, rec.Snapshot().ModelCalls.Failure).Equal(1)
	})

	t.Run("provider error is recoverable from the external service error", func(t *testing.T) {
		uc := usecase.New(memory.New(),
			usecase.WithVisionModel(&mockVisionModel{
				generateFn: func(ctx context.Context, req *model.VisionRequest) (*model.VisionResponse, error) {
					return nil, &visionmodel.APIError{Provider: "openai", StatusCode: 429, Code: "rate_limit_exceeded", Message: "Rate limit reached"}
				},
			}),
		)

		_, err := uc.Assessment.AssessDamage(ctx, testImageURLs, nil)
		gt.Error(t, err).Is(usecase.ErrExternalService)

		var apiErr *visionmodel.APIError
		gt.Bool(t, errors.As(err, &apiErr)).True()
		gt.Value(t, apiErr.StatusCode).Equal(429)
		gt.Value(t, apiErr.Code).Equal("rate_limit_exceeded")
	})

	t.Run("empty model content is an external service error", func(t *testing.T) {
		uc := usecase.New(memory.New(), usecase.WithVisionModel(staticModel("  ")))
		_, err := uc.Assessment.AssessDamage(ctx, testImageURLs, nil)
		gt.Error(t, err).Is(usecase.ErrExternalService)
	})

	t.Run("unparseable model content is an external service error", func(t *testing.T) {
		uc := usecase.New(memory.New(), usecase.WithVisionModel(staticModel("I cannot assess these images.")))
		_, err := uc.Assessment.AssessDamage(ctx, testImageURLs, nil)
		gt.Error(t, err).Is(usecase.ErrExternalService)
	})

	t.Run("fenced JSON content is accepted", func(t *testing.T) {
		uc := usecase.New(memory.New(), usecase.WithVisionModel(staticModel("```json\n"+modelResponse+"\n```")))
		a, err := uc.Assessment.AssessDamage(ctx, testImageURLs, nil)
		gt.NoError(t, err).Required()
		gt.Value(t, a.Damage.DamageType).Equal(types.DamageTypeWaterDamage)
	})

	t.Run("memory adjustment calibrates confidence", func(t *testing.T) {
		store := levelResults(map[string]*model.MemoryLevelResult{
			"fine": {Values: []float64{-0.5, 0, 0, 0, 0}, Confidence: 1},
		})
		uc := usecase.New(memory.New(),
			usecase.WithVisionModel(staticModel(modelResponse)),
			usecase.WithMemoryStore(store),
		)

		a, err := uc.Assessment.AssessDamage(ctx, testImageURLs, nil)
		gt.NoError(t, err).Required()
		// coarse and medium levels return zero confidence, so fine decides alone
		gt.Value(t, a.Evidence.MemoryAdjustment[model.AdjustConfidence]).Equal(-0.5)
		gt.Value(t, a.Damage.Confidence).Equal(90)
	})

	t.Run("memory failure is neutral", func(t *testing.T) {
		uc := usecase.New(memory.New(),
			usecase.WithVisionModel(staticModel(modelResponse)),
			usecase.WithMemoryStore(levelResults(nil, "fine", "medium", "coarse")),
		)

		a, err := uc.Assessment.AssessDamage(ctx, testImageURLs, nil)
		gt.NoError(t, err).Required()
		gt.Bool(t, a.Evidence.MemoryAdjustment.IsZero()).True()
		gt.Value(t, a.Damage.Confidence).Equal(95)
	})
}

func TestAssessDamage_Segmentation(t *testing.T) {
	ctx := context.Background()

	t.Run("healthy service refines the first image", func(t *testing.T) {
		var gotURL string
		var gotTypes []string
		rec := metrics.New()
		uc := usecase.New(memory.New(),
			usecase.WithVisionModel(staticModel(modelResponse)),
			usecase.WithSegmenter(&mockSegmenter{
				healthy: true,
				segmentFn: func(ctx context.Context, imageURL string, damageTypes []string) (map[string]model.SegmentationMask, error) {
					gotURL = imageURL
					gotTypes = damageTypes
					return map[string]model.SegmentationMask{
						"water damage": {NumInstances: 2, Scores: []float64{0.9, 0.8}},
					}, nil
				},
			}),
			usecase.WithMetrics(rec),
		)

		a, err := uc.Assessment.AssessDamage(ctx, testImageURLs, nil)
		gt.NoError(t, err).Required()

		gt.Value(t, gotURL).Equal(testImageURLs[0])
		gt.Value(t, gotTypes).Equal([]string{"water damage"})
		gt.Value(t, a.Evidence.Segmentation).NotNil()
		gt.Value(t, a.Evidence.Segmentation.Results["water damage"].NumInstances).Equal(2)
		gt.Value(t, rec.Snapshot().Segmentation.Success).Equal(1)
	})

	t.Run("unhealthy service is skipped", func(t *testing.T) {
		var called atomic.Bool
		uc := usecase.New(memory.New(),
			usecase.WithVisionModel(staticModel(modelResponse)),
			usecase.WithSegmenter(&mockSegmenter{
				healthy: false,
				segmentFn: func(ctx context.Context, imageURL string, damageTypes []string) (map[string]model.SegmentationMask, error) {
					called.Store(true)
					return nil, nil
				},
			}),
		)

		a, err := uc.Assessment.AssessDamage(ctx, testImageURLs, nil)
		gt.NoError(t, err).Required()
		gt.Value(t, a.Evidence.Segmentation).Nil()
		gt.Bool(t, called.Load()).False()
	})

	t.Run("segmentation failure does not affect the result", func(t *testing.T) {
		uc := usecase.New(memory.New(),
			usecase.WithVisionModel(staticModel(modelResponse)),
			usecase.WithSegmenter(&mockSegmenter{
				healthy: true,
				segmentFn: func(ctx context.Context, imageURL string, damageTypes []string) (map[string]model.SegmentationMask, error) {
					return nil, errors.New("CUDA out of memory")
				},
			}),
		)

		a, err := uc.Assessment.AssessDamage(ctx, testImageURLs, nil)
		gt.NoError(t, err).Required()
		gt.Value(t, a.Evidence.Segmentation).Nil()
		gt.Value(t, a.PriorityScore).Equal(45)
	})
}

func TestAssessAndRecord(t *testing.T) {
	ctx := context.Background()

	t.Run("gate declines and reviewers are notified", func(t *testing.T) {
		repo := memory.New()
		notifier := &mockNotifier{}
		uc := usecase.New(repo,
			usecase.WithVisionModel(staticModel(modelResponse)),
			usecase.WithReviewNotifier(notifier),
		)

		record, decision, err := uc.Assessment.AssessAndRecord(ctx, testImageURLs, nil)
		gt.NoError(t, err).Required()

		gt.Bool(t, decision.CanAutoValidate).False()
		gt.String(t, decision.Reason).Contains("insufficient validated corpus: 0 of 100 required")
		gt.Value(t, record.Validation.Status).Equal(types.ValidationStatusPending)
		gt.Array(t, notifier.reasons).Length(1)

		stored, err := repo.Assessment().Get(ctx, record.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, stored.Assessment.Damage.Confidence).Equal(95)
		gt.Value(t, stored.ImageURLs).Equal(testImageURLs)
	})

	t.Run("gate passes and record is validated by system", func(t *testing.T) {
		repo := memory.New()
		seedValidated(t, repo, testCorpusSize)
		notifier := &mockNotifier{}
		uc := usecase.New(repo,
			usecase.WithVisionModel(staticModel(modelResponse)),
			usecase.WithReviewNotifier(notifier),
			usecase.WithAutoValidation(gateConfig()),
		)

		record, decision, err := uc.Assessment.AssessAndRecord(ctx, testImageURLs, nil)
		gt.NoError(t, err).Required()

		gt.Bool(t, decision.CanAutoValidate).True()
		gt.Value(t, record.Validation.Status).Equal(types.ValidationStatusValidated)
		gt.Bool(t, record.Validation.ValidatedBy.IsSystem()).True()
		gt.Array(t, notifier.reasons).Length(0)
	})

	t.Run("capitalised violation severity still blocks the gate", func(t *testing.T) {
		repo := memory.New()
		seedValidated(t, repo, testCorpusSize)
		notifier := &mockNotifier{}
		reply := strings.Replace(modelResponse, `"severity": "warning"`, `"severity": "Violation"`, 1)
		uc := usecase.New(repo,
			usecase.WithVisionModel(staticModel(reply)),
			usecase.WithReviewNotifier(notifier),
			usecase.WithAutoValidation(gateConfig()),
		)

		record, decision, err := uc.Assessment.AssessAndRecord(ctx, testImageURLs, nil)
		gt.NoError(t, err).Required()

		gt.Bool(t, decision.CanAutoValidate).False()
		gt.String(t, decision.Reason).Contains("compliance violation present")
		gt.Value(t, record.Validation.Status).Equal(types.ValidationStatusPending)
		gt.Value(t, record.Assessment.Compliance.ComplianceScore).Equal(70)
		gt.Bool(t, record.Assessment.Compliance.RequiresProfessionalInspection).True()
		gt.Array(t, notifier.reasons).Length(1)
	})

	t.Run("model failure stores nothing", func(t *testing.T) {
		repo := memory.New()
		uc := usecase.New(repo, usecase.WithVisionModel(staticModel("")))

		_, _, err := uc.Assessment.AssessAndRecord(ctx, testImageURLs, nil)
		gt.Error(t, err).Is(usecase.ErrExternalService)

		count, err := repo.Assessment().CountValidated(ctx)
		gt.NoError(t, err).Required()
		gt.Value(t, count).Equal(0)
	})
}

func TestParseAssessment(t *testing.T) {
	_, err := usecase.ParseAssessment("")
	gt.Error(t, err)

	a, err := usecase.ParseAssessment("Here is the result:\n" + modelResponse + "\nLet me know if you need more.")
	gt.NoError(t, err).Required()
	gt.Value(t, a.Urgency.Urgency).Equal(types.UrgencySoon)
	gt.Bool(t, strings.Contains(a.Damage.Description, "staining")).True()
}
