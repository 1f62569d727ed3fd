package usecase

import (
	"strings"

	"github.com/mintenance/surveyor/pkg/domain/model"
	"github.com/mintenance/surveyor/pkg/domain/types"
)

// Scorer derives the safety, compliance and insurance analyses from the model's raw lists
type Scorer interface {
	Safety(raw model.SafetyAnalysis) model.SafetyAnalysis
	Compliance(raw model.ComplianceAnalysis) model.ComplianceAnalysis
	Insurance(raw model.InsuranceRiskAnalysis) model.InsuranceRiskAnalysis
}

// DefaultScorer is a deduction-based scorer
type DefaultScorer struct{}

var _ Scorer = DefaultScorer{}

var hazardPenalty = map[types.HazardSeverity]int{
	types.HazardSeverityCritical: 40,
	types.HazardSeverityHigh:     25,
	types.HazardSeverityMedium:   10,
	types.HazardSeverityLow:      5,
}

// Safety starts at 100 and deducts per hazard by severity.
// A critical flag set by the model is kept even without a critical hazard entry.
func (DefaultScorer) Safety(raw model.SafetyAnalysis) model.SafetyAnalysis {
	out := model.SafetyAnalysis{
		Hazards:            raw.Hazards,
		HasCriticalHazards: raw.HasCriticalHazards,
		OverallSafetyScore: 100,
	}
	for _, h := range raw.Hazards {
		sev := types.HazardSeverity(strings.ToLower(string(h.Severity)))
		out.OverallSafetyScore -= hazardPenalty[sev]
		if sev == types.HazardSeverityCritical {
			out.HasCriticalHazards = true
		}
	}
	out.OverallSafetyScore = clampScore(out.OverallSafetyScore)
	return out
}

var compliancePenalty = map[types.ComplianceSeverity]int{
	types.ComplianceSeverityViolation: 30,
	types.ComplianceSeverityWarning:   10,
	types.ComplianceSeverityInfo:      2,
}

func (DefaultScorer) Compliance(raw model.ComplianceAnalysis) model.ComplianceAnalysis {
	out := model.ComplianceAnalysis{
		Issues:                         make([]model.ComplianceIssue, len(raw.Issues)),
		RequiresProfessionalInspection: raw.RequiresProfessionalInspection,
		ComplianceScore:                100,
	}
	for i, issue := range raw.Issues {
		issue.Severity = types.ComplianceSeverity(strings.ToLower(strings.TrimSpace(string(issue.Severity))))
		out.Issues[i] = issue
		out.ComplianceScore -= compliancePenalty[issue.Severity]
	}
	out.ComplianceScore = clampScore(out.ComplianceScore)
	if out.HasViolation() {
		out.RequiresProfessionalInspection = true
	}
	return out
}

var riskWeight = map[string]int{
	"low":    10,
	"medium": 25,
	"high":   40,
}

func (DefaultScorer) Insurance(raw model.InsuranceRiskAnalysis) model.InsuranceRiskAnalysis {
	out := model.InsuranceRiskAnalysis{
		RiskFactors: raw.RiskFactors,
		Mitigations: raw.Mitigations,
	}
	for _, f := range raw.RiskFactors {
		out.RiskScore += riskWeight[strings.ToLower(f.Severity)]
	}
	out.RiskScore = clampScore(out.RiskScore)
	out.PremiumImpact = premiumImpact(out.RiskScore)
	return out
}

func premiumImpact(risk int) string {
	switch {
	case risk == 0:
		return "none"
	case risk < 25:
		return "low"
	case risk < 50:
		return "medium"
	default:
		return "high"
	}
}

// PriorityScore fuses urgency, severity and safety into a 0-100 triage number:
// round(0.4*U + 0.3*S + 0.3*(100-safety)), in integer arithmetic.
func PriorityScore(urgency types.Urgency, severity types.Severity, safetyScore int) int {
	u := urgency.Score()
	s := severity.Score()
	return clampScore((4*u + 3*s + 3*(100-safetyScore) + 5) / 10)
}

// calibrateConfidence shifts the model's confidence by the memory signal
func calibrateConfidence(confidence int, adj model.MemoryAdjustment) int {
	shift := adj[model.AdjustConfidence] * 10
	if shift >= 0 {
		return clampScore(confidence + int(shift+0.5))
	}
	return clampScore(confidence - int(-shift+0.5))
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
