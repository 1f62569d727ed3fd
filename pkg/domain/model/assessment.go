package model

import (
	"strings"

	"github.com/google/uuid"
	"github.com/mintenance/surveyor/pkg/domain/types"
)

// AssessmentID is a UUID-based identifier for an assessment record
type AssessmentID string

// NewAssessmentID generates a new UUID v4 AssessmentID
func NewAssessmentID() AssessmentID {
	return AssessmentID(uuid.New().String())
}

// DamageAssessment is the primary finding
type DamageAssessment struct {
	DamageType    types.DamageType `json:"damage_type"`
	Severity      types.Severity   `json:"severity"`
	Confidence    int              `json:"confidence"` // 0-100
	Location      string           `json:"location"`
	Description   string           `json:"description"`
	DetectedItems []string         `json:"detected_items"`
}

type SafetyHazard struct {
	Type            string               `json:"type"`
	Severity        types.HazardSeverity `json:"severity"`
	Urgency         types.Urgency        `json:"urgency"`
	ImmediateAction string               `json:"immediate_action"`
	Location        string               `json:"location"`
	Description     string               `json:"description"`
}

type SafetyAnalysis struct {
	Hazards            []SafetyHazard `json:"hazards"`
	HasCriticalHazards bool           `json:"has_critical_hazards"`
	OverallSafetyScore int            `json:"overall_safety_score"` // 0-100, higher is safer
}

type ComplianceIssue struct {
	Code           string                   `json:"code"`
	Description    string                   `json:"description"`
	Severity       types.ComplianceSeverity `json:"severity"`
	Recommendation string                   `json:"recommendation"`
}

type ComplianceAnalysis struct {
	Issues                         []ComplianceIssue `json:"issues"`
	RequiresProfessionalInspection bool              `json:"requires_professional_inspection"`
	ComplianceScore                int               `json:"compliance_score"`
}

// HasViolation reports whether any issue is a code violation
func (c ComplianceAnalysis) HasViolation() bool {
	for _, issue := range c.Issues {
		if strings.EqualFold(strings.TrimSpace(string(issue.Severity)), string(types.ComplianceSeverityViolation)) {
			return true
		}
	}
	return false
}

type RiskFactor struct {
	Factor   string `json:"factor"`
	Severity string `json:"severity"` // low, medium, high
	Impact   string `json:"impact"`
}

type InsuranceRiskAnalysis struct {
	RiskFactors   []RiskFactor `json:"risk_factors"`
	RiskScore     int          `json:"risk_score"` // 0-100, higher is riskier
	PremiumImpact string       `json:"premium_impact"`
	Mitigations   []string     `json:"mitigation_recommendations"`
}

type UrgencyAssessment struct {
	Urgency               types.Urgency `json:"urgency"`
	RecommendedTimeline   string        `json:"recommended_action_timeline"`
	EstimatedTimeToWorsen string        `json:"estimated_time_to_worsen"`
	Reasoning             string        `json:"reasoning"`
}

type HomeownerExplanation struct {
	WhatIsIt      string `json:"what_is_it"`
	WhyItHappened string `json:"why_it_happened"`
	WhatToDo      string `json:"what_to_do"`
}

type CostRange struct {
	Min      int    `json:"min"`
	Max      int    `json:"max"`
	Currency string `json:"currency,omitempty"`
}

type ContractorAdvice struct {
	RepairNeeded  []string  `json:"repair_needed"`
	Materials     []string  `json:"materials"`
	Tools         []string  `json:"tools"`
	EstimatedTime string    `json:"estimated_time"`
	EstimatedCost CostRange `json:"estimated_cost"`
	Complexity    string    `json:"complexity"`
}

// Assessment is the final structured result of one assessment request.
// It is created once and treated as read-only afterwards.
type Assessment struct {
	Damage               DamageAssessment      `json:"damage_assessment"`
	Safety               SafetyAnalysis        `json:"safety_hazards"`
	Compliance           ComplianceAnalysis    `json:"compliance"`
	Insurance            InsuranceRiskAnalysis `json:"insurance_risk"`
	Urgency              UrgencyAssessment     `json:"urgency"`
	PriorityScore        int                   `json:"priority_score"`
	HomeownerExplanation HomeownerExplanation  `json:"homeowner_explanation"`
	ContractorAdvice     ContractorAdvice      `json:"contractor_advice"`
	Evidence             Evidence              `json:"evidence"`
	Model                string                `json:"model,omitempty"`
}
