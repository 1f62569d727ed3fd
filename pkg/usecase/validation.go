package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/mintenance/surveyor/pkg/domain/interfaces"
	"github.com/mintenance/surveyor/pkg/domain/model"
	"github.com/mintenance/surveyor/pkg/domain/types"
	"github.com/mintenance/surveyor/pkg/utils/logging"
)

// AutoValidationConfig holds the gate thresholds
type AutoValidationConfig struct {
	Enabled             bool
	MinConfidence       int
	MinSafetyScore      int
	MaxInsuranceRisk    int
	EdgeCaseDamageTypes []string
	MinValidatedCount   int
}

// DefaultAutoValidationConfig returns the default thresholds with the gate enabled
func DefaultAutoValidationConfig() AutoValidationConfig {
	return AutoValidationConfig{
		Enabled:             true,
		MinConfidence:       90,
		MinSafetyScore:      70,
		MaxInsuranceRisk:    50,
		EdgeCaseDamageTypes: []string{"structural_failure", "asbestos", "mold_toxicity", "lead_paint"},
		MinValidatedCount:   100,
	}
}

// Decision is the verdict of the auto-validation gate
type Decision struct {
	CanAutoValidate bool   `json:"can_auto_validate"`
	Reason          string `json:"reason,omitempty"`
}

// validationRule can only reject. An empty reason means the rule passed.
type validationRule struct {
	name  string
	check func(ctx context.Context, a *model.Assessment) (string, error)
}

// ValidationUseCase decides and records the validation state of assessments
type ValidationUseCase struct {
	repo     interfaces.Repository
	cfg      AutoValidationConfig
	features *FeatureExtractor
	memory   *MemoryAdjuster
	now      func() time.Time
	rules    []validationRule
}

// NewValidationUseCase creates the gate. features and memory may be nil, in which case
// human reviews are not fed back into memory.
func NewValidationUseCase(repo interfaces.Repository, cfg AutoValidationConfig, features *FeatureExtractor, memory *MemoryAdjuster) *ValidationUseCase {
	uc := &ValidationUseCase{
		repo:     repo,
		cfg:      cfg,
		features: features,
		memory:   memory,
		now:      time.Now,
	}
	uc.rules = uc.buildRules()
	return uc
}

// Config returns the active thresholds
func (uc *ValidationUseCase) Config() AutoValidationConfig {
	return uc.cfg
}

func (uc *ValidationUseCase) buildRules() []validationRule {
	return []validationRule{
		{"enabled", func(ctx context.Context, a *model.Assessment) (string, error) {
			if !uc.cfg.Enabled {
				return "auto-validation is disabled", nil
			}
			return "", nil
		}},
		{"corpus", func(ctx context.Context, a *model.Assessment) (string, error) {
			count, err := uc.repo.Assessment().CountValidated(ctx)
			if err != nil {
				return "", goerr.Wrap(err, "failed to count validated assessments")
			}
			if count < uc.cfg.MinValidatedCount {
				return fmt.Sprintf("insufficient validated corpus: %d of %d required", count, uc.cfg.MinValidatedCount), nil
			}
			return "", nil
		}},
		{"confidence", func(ctx context.Context, a *model.Assessment) (string, error) {
			if a.Damage.Confidence < uc.cfg.MinConfidence {
				return fmt.Sprintf("confidence %d below minimum %d", a.Damage.Confidence, uc.cfg.MinConfidence), nil
			}
			return "", nil
		}},
		{"critical_hazards", func(ctx context.Context, a *model.Assessment) (string, error) {
			if a.Safety.HasCriticalHazards {
				return "critical safety hazards present", nil
			}
			return "", nil
		}},
		{"safety_score", func(ctx context.Context, a *model.Assessment) (string, error) {
			if a.Safety.OverallSafetyScore < uc.cfg.MinSafetyScore {
				return fmt.Sprintf("safety score %d below minimum %d", a.Safety.OverallSafetyScore, uc.cfg.MinSafetyScore), nil
			}
			return "", nil
		}},
		{"insurance_risk", func(ctx context.Context, a *model.Assessment) (string, error) {
			if a.Insurance.RiskScore > uc.cfg.MaxInsuranceRisk {
				return fmt.Sprintf("insurance risk %d above maximum %d", a.Insurance.RiskScore, uc.cfg.MaxInsuranceRisk), nil
			}
			return "", nil
		}},
		{"edge_case", func(ctx context.Context, a *model.Assessment) (string, error) {
			damageType := strings.ToLower(string(a.Damage.DamageType))
			for _, edge := range uc.cfg.EdgeCaseDamageTypes {
				if edge != "" && strings.Contains(damageType, strings.ToLower(edge)) {
					return fmt.Sprintf("damage type %q matches edge case %q", a.Damage.DamageType, edge), nil
				}
			}
			return "", nil
		}},
		{"urgency", func(ctx context.Context, a *model.Assessment) (string, error) {
			if a.Urgency.Urgency.RequiresHumanReview() {
				return fmt.Sprintf("urgency %q requires human review", a.Urgency.Urgency), nil
			}
			return "", nil
		}},
		{"compliance", func(ctx context.Context, a *model.Assessment) (string, error) {
			if a.Compliance.HasViolation() {
				return "compliance violation present", nil
			}
			return "", nil
		}},
	}
}

// CanAutoValidate runs the ordered rule chain. The first failing rule supplies the reason.
// Any error or panic during evaluation yields false.
func (uc *ValidationUseCase) CanAutoValidate(ctx context.Context, assessment *model.Assessment, id model.AssessmentID) (decision Decision) {
	logger := logging.From(ctx).With(AssessmentIDKey, id)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic in auto-validation gate", "panic", r)
			decision = Decision{Reason: fmt.Sprintf("evaluation error: %v", r)}
		}
	}()

	if assessment == nil {
		return Decision{Reason: "evaluation error: assessment is missing"}
	}

	for _, rule := range uc.rules {
		reason, err := rule.check(ctx, assessment)
		if err != nil {
			logger.Error("auto-validation rule failed", "rule", rule.name, "error", err)
			return Decision{Reason: "evaluation error: " + err.Error()}
		}
		if reason != "" {
			logger.Debug("auto-validation declined", "rule", rule.name, "reason", reason)
			return Decision{Reason: reason}
		}
	}

	return Decision{CanAutoValidate: true}
}

// AutoValidateIfHighConfidence validates the record as System when the gate passes.
// A declined record is left untouched.
func (uc *ValidationUseCase) AutoValidateIfHighConfidence(ctx context.Context, assessment *model.Assessment, id model.AssessmentID) (Decision, error) {
	decision := uc.CanAutoValidate(ctx, assessment, id)
	if !decision.CanAutoValidate {
		return decision, nil
	}

	now := uc.now()
	validation := model.Validation{
		Status:      types.ValidationStatusValidated,
		ValidatedBy: model.SystemValidator(),
		ValidatedAt: &now,
		Notes:       fmt.Sprintf("Auto-validated: confidence %d%% meets all auto-validation criteria", assessment.Damage.Confidence),
	}
	if _, err := uc.repo.Assessment().UpdateValidation(ctx, id, validation); err != nil {
		return Decision{}, goerr.Wrap(err, "failed to record auto-validation", goerr.V(AssessmentIDKey, id))
	}

	logging.From(ctx).Info("assessment auto-validated",
		AssessmentIDKey, id,
		"confidence", assessment.Damage.Confidence)
	return decision, nil
}

// ReviewInput is a human reviewer's verdict. Corrections are optional.
type ReviewInput struct {
	ReviewerID             string          `json:"reviewer_id"`
	Approved               bool            `json:"approved"`
	Notes                  string          `json:"notes,omitempty"`
	CorrectedSeverity      *types.Severity `json:"corrected_severity,omitempty"`
	CorrectedUrgency       *types.Urgency  `json:"corrected_urgency,omitempty"`
	CorrectedSafetyScore   *int            `json:"corrected_safety_score,omitempty"`
	CorrectedInsuranceRisk *int            `json:"corrected_insurance_risk,omitempty"`
}

// Validate checks the reviewer input
func (in *ReviewInput) Validate() error {
	if strings.TrimSpace(in.ReviewerID) == "" {
		return goerr.Wrap(model.ErrInvalidReview, "reviewer_id is required")
	}
	if in.CorrectedSeverity != nil && !in.CorrectedSeverity.IsValid() {
		return goerr.Wrap(model.ErrInvalidReview, "unknown corrected severity", goerr.V("severity", *in.CorrectedSeverity))
	}
	if in.CorrectedUrgency != nil && !in.CorrectedUrgency.IsValid() {
		return goerr.Wrap(model.ErrInvalidReview, "unknown corrected urgency", goerr.V("urgency", *in.CorrectedUrgency))
	}
	for name, v := range map[string]*int{
		"corrected_safety_score":   in.CorrectedSafetyScore,
		"corrected_insurance_risk": in.CorrectedInsuranceRisk,
	} {
		if v != nil && (*v < 0 || *v > 100) {
			return goerr.Wrap(model.ErrInvalidReview, name+" must be between 0 and 100", goerr.V(name, *v))
		}
	}
	return nil
}

// Review records a human verdict on a pending assessment and feeds the outcome back into memory
func (uc *ValidationUseCase) Review(ctx context.Context, id model.AssessmentID, input ReviewInput) (*model.AssessmentRecord, error) {
	if err := input.Validate(); err != nil {
		return nil, asValidationError(err)
	}

	record, err := uc.repo.Assessment().Get(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get assessment", goerr.V(AssessmentIDKey, id))
	}
	if record.Validation.Status.Normalize() != types.ValidationStatusPending {
		return nil, goerr.Wrap(ErrAlreadyReviewed, "assessment has already been reviewed",
			goerr.V(AssessmentIDKey, id),
			goerr.V("status", record.Validation.Status))
	}

	status := types.ValidationStatusRejected
	if input.Approved {
		status = types.ValidationStatusValidated
	}
	now := uc.now()
	updated, err := uc.repo.Assessment().UpdateValidation(ctx, id, model.Validation{
		Status:      status,
		ValidatedBy: model.HumanValidator(input.ReviewerID),
		ValidatedAt: &now,
		Notes:       input.Notes,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to record review",
			goerr.V(AssessmentIDKey, id),
			goerr.V(model.ReviewerIDKey, input.ReviewerID))
	}

	if err := uc.rememberReview(ctx, updated, input); err != nil {
		logging.From(ctx).Warn("failed to feed review back into memory",
			AssessmentIDKey, id,
			"error", goerr.Wrap(ErrDegraded, err.Error(), goerr.V(SubCallKey, "memory_append")))
	}

	return updated, nil
}

func (uc *ValidationUseCase) rememberReview(ctx context.Context, record *model.AssessmentRecord, input ReviewInput) error {
	if uc.features == nil || uc.memory == nil || record.Assessment == nil {
		return nil
	}

	a := record.Assessment
	fv, _ := uc.features.ExtractFeatures(ctx, &model.FeatureInput{
		ImageURLs:  record.ImageURLs,
		Context:    record.Context,
		Detections: a.Evidence.Detections,
		Vision:     a.Evidence.Vision,
	})
	return uc.memory.Remember(ctx, fv, ReviewOutcome(a, input), record.ID)
}

// ReviewOutcome encodes a review as memory values:
// [±1 approved, Δseverity rank/2, Δurgency rank/4, Δsafety/100, Δinsurance/100],
// where each Δ is corrected minus predicted and zero without a correction.
func ReviewOutcome(a *model.Assessment, input ReviewInput) model.MemoryAdjustment {
	var out model.MemoryAdjustment

	out[model.AdjustConfidence] = -1
	if input.Approved {
		out[model.AdjustConfidence] = 1
	}

	if s := input.CorrectedSeverity; s != nil {
		if predicted := a.Damage.Severity.Rank(); predicted >= 0 {
			out[model.AdjustSeverity] = float64(s.Rank()-predicted) / 2
		}
	}
	if u := input.CorrectedUrgency; u != nil {
		if predicted := a.Urgency.Urgency.Rank(); predicted >= 0 {
			out[model.AdjustUrgency] = float64(u.Rank()-predicted) / 4
		}
	}
	if v := input.CorrectedSafetyScore; v != nil {
		out[model.AdjustSafety] = float64(*v-a.Safety.OverallSafetyScore) / 100
	}
	if v := input.CorrectedInsuranceRisk; v != nil {
		out[model.AdjustInsurance] = float64(*v-a.Insurance.RiskScore) / 100
	}
	return out
}
