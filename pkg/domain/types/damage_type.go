package types

import "strings"

// DamageType is the primary damage category reported by the vision model.
// Values outside the known set are preserved verbatim.
type DamageType string

const (
	DamageTypeWaterDamage       DamageType = "water_damage"
	DamageTypeStructuralCrack   DamageType = "structural_crack"
	DamageTypeRoofDamage        DamageType = "roof_damage"
	DamageTypeMold              DamageType = "mold"
	DamageTypeWoodRot           DamageType = "wood_rot"
	DamageTypePestDamage        DamageType = "pest_damage"
	DamageTypeElectricalHazard  DamageType = "electrical_hazard"
	DamageTypePlumbingLeak      DamageType = "plumbing_leak"
	DamageTypeFoundationIssue   DamageType = "foundation_issue"
	DamageTypeFireDamage        DamageType = "fire_damage"
	DamageTypeWindowDoorDamage  DamageType = "window_door_damage"
	DamageTypePaintDamage       DamageType = "paint_damage"
	DamageTypeAsbestosDetected  DamageType = "asbestos_detected"
	DamageTypeLeadPaint         DamageType = "lead_paint"
	DamageTypeStructuralFailure DamageType = "structural_failure"
	DamageTypeMoldToxicity      DamageType = "mold_toxicity"
	DamageTypeUnknown           DamageType = "unknown"
)

// AllDamageTypes returns the known damage types in the order presented to the model
func AllDamageTypes() []DamageType {
	return []DamageType{
		DamageTypeWaterDamage,
		DamageTypeStructuralCrack,
		DamageTypeRoofDamage,
		DamageTypeMold,
		DamageTypeWoodRot,
		DamageTypePestDamage,
		DamageTypeElectricalHazard,
		DamageTypePlumbingLeak,
		DamageTypeFoundationIssue,
		DamageTypeFireDamage,
		DamageTypeWindowDoorDamage,
		DamageTypePaintDamage,
		DamageTypeAsbestosDetected,
		DamageTypeLeadPaint,
		DamageTypeStructuralFailure,
		DamageTypeMoldToxicity,
		DamageTypeUnknown,
	}
}

// IsKnown reports whether d is one of the enumerated damage types
func (d DamageType) IsKnown() bool {
	for _, known := range AllDamageTypes() {
		if d == known {
			return true
		}
	}
	return false
}

// Prompt returns the natural-language form used for text-prompted segmentation,
// e.g. "water_damage" becomes "water damage".
func (d DamageType) Prompt() string {
	return strings.TrimSpace(strings.ReplaceAll(string(d), "_", " "))
}

// String returns the string representation of the damage type
func (d DamageType) String() string {
	return string(d)
}
