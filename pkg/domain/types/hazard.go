package types

// HazardSeverity grades a single safety hazard
type HazardSeverity string

const (
	HazardSeverityLow      HazardSeverity = "low"
	HazardSeverityMedium   HazardSeverity = "medium"
	HazardSeverityHigh     HazardSeverity = "high"
	HazardSeverityCritical HazardSeverity = "critical"
)

// IsValid checks if the hazard severity is valid
func (s HazardSeverity) IsValid() bool {
	switch s {
	case HazardSeverityLow,
		HazardSeverityMedium,
		HazardSeverityHigh,
		HazardSeverityCritical:
		return true
	default:
		return false
	}
}

// ComplianceSeverity grades a building-code compliance issue
type ComplianceSeverity string

const (
	ComplianceSeverityInfo      ComplianceSeverity = "info"
	ComplianceSeverityWarning   ComplianceSeverity = "warning"
	ComplianceSeverityViolation ComplianceSeverity = "violation"
)

// IsValid checks if the compliance severity is valid
func (s ComplianceSeverity) IsValid() bool {
	switch s {
	case ComplianceSeverityInfo,
		ComplianceSeverityWarning,
		ComplianceSeverityViolation:
		return true
	default:
		return false
	}
}
