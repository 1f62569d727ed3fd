package usecase_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/mintenance/surveyor/pkg/domain/model"
	"github.com/mintenance/surveyor/pkg/domain/types"
	"github.com/mintenance/surveyor/pkg/usecase"
)

func sampleFeatureInput() *model.FeatureInput {
	return &model.FeatureInput{
		ImageURLs: testImageURLs,
		Context:   &model.AssessmentContext{PropertyType: "house", PropertyAge: 50, Location: "York"},
		Detections: []model.Detection{
			{ClassName: "water_stain", Confidence: 80},
			{ClassName: "crack", Confidence: 60},
		},
		Vision: &model.VisionAnalysisSummary{Confidence: 70, Labels: []string{"ceiling", "mould"}},
	}
}

func TestHandcraftedFeatures(t *testing.T) {
	fv := usecase.HandcraftedFeatures(sampleFeatureInput())

	gt.Bool(t, fv.IsNormalized()).True()
	gt.Value(t, fv[usecase.FeatPropertyAge]).Equal(0.5)
	gt.Value(t, fv[usecase.FeatDetectionCount]).Equal(0.1)
	// water_damage slot takes the matching detection confidence
	gt.Value(t, fv[usecase.FeatDamageTypeStart]).Equal(0.8)
	// structural_crack slot
	gt.Value(t, fv[usecase.FeatDamageTypeStart+1]).Equal(0.6)
	// mold slot from the vision label, half-weighted
	gt.Value(t, fv[usecase.FeatDamageTypeStart+3]).Equal(0.35)
	gt.Value(t, fv[usecase.FeatVisionConfidence]).Equal(0.7)
	gt.Value(t, fv[usecase.FeatPriorAvailable]).Equal(0.0)
	gt.Value(t, fv[usecase.FeatEvidenceAvailable]).Equal(1.0)
}

func TestHandcraftedFeatures_Deterministic(t *testing.T) {
	a := usecase.HandcraftedFeatures(sampleFeatureInput())
	b := usecase.HandcraftedFeatures(sampleFeatureInput())
	gt.Value(t, a).Equal(b)
}

func TestHandcraftedFeatures_EmptyInput(t *testing.T) {
	fv := usecase.HandcraftedFeatures(nil)
	gt.Value(t, fv).Equal(model.FeatureVector{})

	fv = usecase.HandcraftedFeatures(&model.FeatureInput{})
	gt.Bool(t, fv.IsNormalized()).True()
	gt.Array(t, fv.Slice()).Length(model.FeatureDimension)
}

func TestHandcraftedFeatures_Prior(t *testing.T) {
	input := sampleFeatureInput()
	input.Prior = &model.Assessment{
		Damage:  model.DamageAssessment{Severity: types.SeverityFull, Confidence: 90},
		Urgency: model.UrgencyAssessment{Urgency: types.UrgencyImmediate},
		Safety:  model.SafetyAnalysis{OverallSafetyScore: 40},
	}

	fv := usecase.HandcraftedFeatures(input)
	gt.Bool(t, fv.IsNormalized()).True()
	gt.Value(t, fv[usecase.FeatPriorAvailable]).Equal(1.0)
	gt.Value(t, fv[usecase.FeatPriorSeverity]).Equal(1.0)
	gt.Value(t, fv[usecase.FeatPriorUrgency]).Equal(1.0)
}

func TestFeatureExtractor(t *testing.T) {
	ctx := context.Background()

	t.Run("without learned extractor uses handcrafted", func(t *testing.T) {
		x := usecase.NewFeatureExtractor(nil)
		fv, source := x.ExtractFeatures(ctx, sampleFeatureInput())
		gt.Value(t, source).Equal(model.FeatureSourceHandcrafted)
		gt.Value(t, fv).Equal(usecase.HandcraftedFeatures(sampleFeatureInput()))
	})

	t.Run("uses learned extractor when it succeeds", func(t *testing.T) {
		var want model.FeatureVector
		for i := range want {
			want[i] = 0.25
		}
		x := usecase.NewFeatureExtractor(&mockLearnedExtractor{
			extractFn: func(ctx context.Context, input *model.FeatureInput) (model.FeatureVector, error) {
				return want, nil
			},
		})

		fv, source := x.ExtractFeatures(ctx, sampleFeatureInput())
		gt.Value(t, source).Equal(model.FeatureSourceLearned)
		gt.Value(t, fv).Equal(want)
	})

	t.Run("falls back when learned extractor errors", func(t *testing.T) {
		x := usecase.NewFeatureExtractor(&mockLearnedExtractor{
			extractFn: func(ctx context.Context, input *model.FeatureInput) (model.FeatureVector, error) {
				return model.FeatureVector{}, errors.New("embedding backend down")
			},
		})

		fv, source := x.ExtractFeatures(ctx, sampleFeatureInput())
		gt.Value(t, source).Equal(model.FeatureSourceHandcrafted)
		gt.Array(t, fv.Slice()).Length(40)
		gt.Bool(t, fv.IsNormalized()).True()
	})

	t.Run("falls back when learned extractor panics", func(t *testing.T) {
		x := usecase.NewFeatureExtractor(&mockLearnedExtractor{
			extractFn: func(ctx context.Context, input *model.FeatureInput) (model.FeatureVector, error) {
				panic("boom")
			},
		})

		_, source := x.ExtractFeatures(ctx, sampleFeatureInput())
		gt.Value(t, source).Equal(model.FeatureSourceHandcrafted)
	})

	t.Run("falls back when learned output is not normalized", func(t *testing.T) {
		x := usecase.NewFeatureExtractor(&mockLearnedExtractor{
			extractFn: func(ctx context.Context, input *model.FeatureInput) (model.FeatureVector, error) {
				var fv model.FeatureVector
				fv[0] = 3
				return fv, nil
			},
		})

		_, source := x.ExtractFeatures(ctx, sampleFeatureInput())
		gt.Value(t, source).Equal(model.FeatureSourceHandcrafted)
	})

	t.Run("initializes once and skips learned path after init failure", func(t *testing.T) {
		var inits, extracts atomic.Int32
		x := usecase.NewFeatureExtractor(&mockLearnedExtractor{
			initializeFn: func(ctx context.Context) error {
				inits.Add(1)
				return errors.New("no credentials")
			},
			extractFn: func(ctx context.Context, input *model.FeatureInput) (model.FeatureVector, error) {
				extracts.Add(1)
				return model.FeatureVector{}, nil
			},
		})

		for i := 0; i < 3; i++ {
			_, source := x.ExtractFeatures(ctx, sampleFeatureInput())
			gt.Value(t, source).Equal(model.FeatureSourceHandcrafted)
		}
		gt.Error(t, x.Initialize(ctx))
		gt.Value(t, inits.Load()).Equal(int32(1))
		gt.Value(t, extracts.Load()).Equal(int32(0))
	})

	t.Run("cancelled first request does not disable the learned path", func(t *testing.T) {
		var want model.FeatureVector
		for i := range want {
			want[i] = 0.5
		}
		x := usecase.NewFeatureExtractor(&mockLearnedExtractor{
			initializeFn: func(ctx context.Context) error {
				return ctx.Err()
			},
			extractFn: func(ctx context.Context, input *model.FeatureInput) (model.FeatureVector, error) {
				return want, nil
			},
		})

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, source := x.ExtractFeatures(cancelled, sampleFeatureInput())
		gt.Value(t, source).Equal(model.FeatureSourceLearned)

		fv, source := x.ExtractFeatures(ctx, sampleFeatureInput())
		gt.Value(t, source).Equal(model.FeatureSourceLearned)
		gt.Value(t, fv).Equal(want)
		gt.NoError(t, x.Initialize(ctx))
	})
}
