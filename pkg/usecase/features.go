package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/mintenance/surveyor/pkg/domain/interfaces"
	"github.com/mintenance/surveyor/pkg/domain/model"
	"github.com/mintenance/surveyor/pkg/domain/types"
	"github.com/mintenance/surveyor/pkg/utils/logging"
)

// FeatureExtractor produces the feature vector for the memory module.
// A configured learned extractor is tried first; the handcrafted path is the fallback and never fails.
type FeatureExtractor struct {
	learned interfaces.LearnedExtractor

	initOnce sync.Once
	initErr  error
}

// NewFeatureExtractor creates an extractor. learned may be nil.
func NewFeatureExtractor(learned interfaces.LearnedExtractor) *FeatureExtractor {
	return &FeatureExtractor{learned: learned}
}

// Initialize prepares the learned extractor once. Later calls return the first result.
// The caller's cancellation is not passed on, since the result is shared by every later request.
func (x *FeatureExtractor) Initialize(ctx context.Context) error {
	if x.learned == nil {
		return nil
	}
	x.initOnce.Do(func() {
		x.initErr = x.learned.Initialize(context.WithoutCancel(ctx))
		if x.initErr != nil {
			logging.From(ctx).Warn("learned feature extractor unavailable, using handcrafted features",
				"error", x.initErr.Error())
		}
	})
	return x.initErr
}

// ExtractFeatures returns a normalized vector and the extractor that produced it
func (x *FeatureExtractor) ExtractFeatures(ctx context.Context, input *model.FeatureInput) (model.FeatureVector, model.FeatureSource) {
	if x.learned != nil && x.Initialize(ctx) == nil {
		fv, err := x.extractLearned(ctx, input)
		if err == nil {
			return fv, model.FeatureSourceLearned
		}
		logging.From(ctx).Warn("learned feature extraction failed, falling back",
			"error", goerr.Wrap(ErrDegraded, err.Error(), goerr.V(SubCallKey, "feature_extraction")))
	}
	return HandcraftedFeatures(input), model.FeatureSourceHandcrafted
}

func (x *FeatureExtractor) extractLearned(ctx context.Context, input *model.FeatureInput) (fv model.FeatureVector, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = goerr.New("panic in learned extractor", goerr.V("panic", fmt.Sprint(r)))
		}
	}()

	fv, err = x.learned.Extract(ctx, input)
	if err != nil {
		return fv, err
	}
	if !fv.IsNormalized() {
		return fv, goerr.New("learned extractor returned values outside [0,1]")
	}
	return fv, nil
}

// Handcrafted feature layout
const (
	featPropertyAge = iota
	featTypeHouse
	featTypeFlat
	featTypeCommercial
	featTypeIndustrial
	featTypeOther
	featHasLocation
	featDetailsLength
	featImageCount
	featDetectionCount
	featDetectionMeanConf
	featDetectionMaxConf
	featDetectionClasses
	featDamageTypeStart // one slot per known damage type, excluding unknown
)

const (
	featVisionConfidence = featDamageTypeStart + 16 + iota
	featVisionLabels
	featVisionObjects
	featVisionIndicators
	featPriorSeverity
	featPriorUrgency
	featPriorConfidence
	featPriorSafetyRisk
	featPriorInsuranceRisk
	featPriorAvailable
	featEvidenceAvailable // last slot, index 39
)

// damageKeywords maps each known damage type to words detectors and labelers use for it
var damageKeywords = []struct {
	damageType types.DamageType
	keywords   []string
}{
	{types.DamageTypeWaterDamage, []string{"water", "moisture", "damp", "stain"}},
	{types.DamageTypeStructuralCrack, []string{"crack"}},
	{types.DamageTypeRoofDamage, []string{"roof", "shingle", "tile"}},
	{types.DamageTypeMold, []string{"mold", "mould", "mildew"}},
	{types.DamageTypeWoodRot, []string{"rot", "decay"}},
	{types.DamageTypePestDamage, []string{"pest", "termite", "rodent", "insect"}},
	{types.DamageTypeElectricalHazard, []string{"electric", "wire", "wiring", "outlet", "socket"}},
	{types.DamageTypePlumbingLeak, []string{"pipe", "plumbing", "leak"}},
	{types.DamageTypeFoundationIssue, []string{"foundation", "subsidence"}},
	{types.DamageTypeFireDamage, []string{"fire", "burn", "soot", "smoke"}},
	{types.DamageTypeWindowDoorDamage, []string{"window", "door", "glass", "frame"}},
	{types.DamageTypePaintDamage, []string{"paint", "peel", "blister"}},
	{types.DamageTypeAsbestosDetected, []string{"asbestos"}},
	{types.DamageTypeLeadPaint, []string{"lead"}},
	{types.DamageTypeStructuralFailure, []string{"collapse", "failure", "sag", "buckl"}},
	{types.DamageTypeMoldToxicity, []string{"toxic", "black mold", "black mould"}},
}

// HandcraftedFeatures derives a 40-dimension vector from context, detections,
// vision labels and an optional prior assessment. It has no external dependency and cannot fail.
func HandcraftedFeatures(input *model.FeatureInput) model.FeatureVector {
	var raw [model.FeatureDimension]float64
	if input == nil {
		return model.NewFeatureVector(raw[:])
	}

	if c := input.Context; c != nil {
		raw[featPropertyAge] = ratio(float64(c.PropertyAge), 100)
		raw[propertyTypeSlot(c.PropertyType)] = 1
		if c.Location != "" {
			raw[featHasLocation] = 1
		}
		raw[featDetailsLength] = ratio(float64(len(c.Details)), 500)
	}

	raw[featImageCount] = ratio(float64(len(input.ImageURLs)), 10)

	if n := len(input.Detections); n > 0 {
		var sum, maxConf float64
		classes := make(map[string]struct{})
		for _, d := range input.Detections {
			sum += d.Confidence
			if d.Confidence > maxConf {
				maxConf = d.Confidence
			}
			classes[strings.ToLower(d.ClassName)] = struct{}{}
		}
		raw[featDetectionCount] = ratio(float64(n), 20)
		raw[featDetectionMeanConf] = ratio(sum/float64(n), 100)
		raw[featDetectionMaxConf] = ratio(maxConf, 100)
		raw[featDetectionClasses] = ratio(float64(len(classes)), 10)
	}

	for i, dk := range damageKeywords {
		slot := featDamageTypeStart + i
		for _, d := range input.Detections {
			if matchesAny(d.ClassName, dk.keywords) {
				raw[slot] = max(raw[slot], ratio(d.Confidence, 100))
			}
		}
		if v := input.Vision; v != nil {
			for _, label := range append(append([]string{}, v.Labels...), v.Features...) {
				if matchesAny(label, dk.keywords) {
					raw[slot] = max(raw[slot], ratio(v.Confidence, 100)*0.5)
				}
			}
		}
	}

	if v := input.Vision; v != nil {
		raw[featVisionConfidence] = ratio(v.Confidence, 100)
		raw[featVisionLabels] = ratio(float64(len(v.Labels)), 20)
		raw[featVisionObjects] = ratio(float64(len(v.Objects)), 20)
		raw[featVisionIndicators] = ratio(float64(len(v.Features)), 10)
	}

	if p := input.Prior; p != nil {
		if r := p.Damage.Severity.Rank(); r >= 0 {
			raw[featPriorSeverity] = float64(r) / 2
		}
		if r := p.Urgency.Urgency.Rank(); r >= 0 {
			raw[featPriorUrgency] = float64(4-r) / 4
		}
		raw[featPriorConfidence] = ratio(float64(p.Damage.Confidence), 100)
		raw[featPriorSafetyRisk] = ratio(float64(100-p.Safety.OverallSafetyScore), 100)
		raw[featPriorInsuranceRisk] = ratio(float64(p.Insurance.RiskScore), 100)
		raw[featPriorAvailable] = 1
	}

	var available float64
	if len(input.Detections) > 0 {
		available += 0.5
	}
	if input.Vision != nil {
		available += 0.5
	}
	raw[featEvidenceAvailable] = available

	return model.NewFeatureVector(raw[:])
}

func propertyTypeSlot(propertyType string) int {
	t := strings.ToLower(propertyType)
	switch {
	case t == "":
		return featTypeOther
	case strings.Contains(t, "house"), strings.Contains(t, "residential"), strings.Contains(t, "bungalow"), strings.Contains(t, "cottage"):
		return featTypeHouse
	case strings.Contains(t, "flat"), strings.Contains(t, "apartment"), strings.Contains(t, "condo"):
		return featTypeFlat
	case strings.Contains(t, "commercial"), strings.Contains(t, "office"), strings.Contains(t, "retail"):
		return featTypeCommercial
	case strings.Contains(t, "industrial"), strings.Contains(t, "warehouse"):
		return featTypeIndustrial
	default:
		return featTypeOther
	}
}

func matchesAny(s string, keywords []string) bool {
	s = strings.ToLower(strings.NewReplacer("_", " ", "-", " ").Replace(s))
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// ratio returns v/scale clamped to [0,1]
func ratio(v, scale float64) float64 {
	return model.Clamp01(v / scale)
}
