package types_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/mintenance/surveyor/pkg/domain/types"
)

func TestSeverity(t *testing.T) {
	tests := []struct {
		name  string
		s     types.Severity
		valid bool
		rank  int
		score int
	}{
		{"early", types.SeverityEarly, true, 0, 30},
		{"midway", types.SeverityMidway, true, 1, 60},
		{"full", types.SeverityFull, true, 2, 100},
		{"unknown", "catastrophic", false, -1, 50},
		{"empty", "", false, -1, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gt.Value(t, tt.s.IsValid()).Equal(tt.valid)
			gt.Value(t, tt.s.Rank()).Equal(tt.rank)
			gt.Value(t, tt.s.Score()).Equal(tt.score)
		})
	}
}

func TestParseSeverity(t *testing.T) {
	s, err := types.ParseSeverity("midway")
	gt.NoError(t, err).Required()
	gt.Value(t, s).Equal(types.SeverityMidway)

	_, err = types.ParseSeverity("Midway")
	gt.Error(t, err)
}

func TestUrgency(t *testing.T) {
	tests := []struct {
		name   string
		u      types.Urgency
		valid  bool
		rank   int
		score  int
		review bool
	}{
		{"immediate", types.UrgencyImmediate, true, 0, 100, true},
		{"urgent", types.UrgencyUrgent, true, 1, 80, true},
		{"soon", types.UrgencySoon, true, 2, 60, false},
		{"planned", types.UrgencyPlanned, true, 3, 40, false},
		{"monitor", types.UrgencyMonitor, true, 4, 20, false},
		{"unknown", "whenever", false, -1, 50, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gt.Value(t, tt.u.IsValid()).Equal(tt.valid)
			gt.Value(t, tt.u.Rank()).Equal(tt.rank)
			gt.Value(t, tt.u.Score()).Equal(tt.score)
			gt.Value(t, tt.u.RequiresHumanReview()).Equal(tt.review)
		})
	}
}

func TestValidationStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from types.ValidationStatus
		to   types.ValidationStatus
		want bool
	}{
		{"pending to validated", types.ValidationStatusPending, types.ValidationStatusValidated, true},
		{"pending to rejected", types.ValidationStatusPending, types.ValidationStatusRejected, true},
		{"empty to validated", "", types.ValidationStatusValidated, true},
		{"pending to pending", types.ValidationStatusPending, types.ValidationStatusPending, false},
		{"validated to rejected", types.ValidationStatusValidated, types.ValidationStatusRejected, false},
		{"rejected to validated", types.ValidationStatusRejected, types.ValidationStatusValidated, false},
		{"validated to pending", types.ValidationStatusValidated, types.ValidationStatusPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gt.Value(t, tt.from.CanTransitionTo(tt.to)).Equal(tt.want)
		})
	}
}

func TestParseValidationStatus(t *testing.T) {
	for _, s := range types.AllValidationStatuses() {
		got, err := types.ParseValidationStatus(s.String())
		gt.NoError(t, err)
		gt.Value(t, got).Equal(s)
	}

	_, err := types.ParseValidationStatus("approved")
	gt.Error(t, err)
}

func TestHazardAndComplianceSeverity(t *testing.T) {
	gt.Bool(t, types.HazardSeverityCritical.IsValid()).True()
	gt.Bool(t, types.HazardSeverity("severe").IsValid()).False()
	gt.Bool(t, types.ComplianceSeverityViolation.IsValid()).True()
	gt.Bool(t, types.ComplianceSeverity("error").IsValid()).False()
}

func TestDamageType(t *testing.T) {
	t.Run("known types", func(t *testing.T) {
		for _, d := range types.AllDamageTypes() {
			gt.Bool(t, d.IsKnown()).True()
		}
		gt.Bool(t, types.DamageType("gutter_sag").IsKnown()).False()
	})

	t.Run("segmentation prompt", func(t *testing.T) {
		gt.Value(t, types.DamageTypeWaterDamage.Prompt()).Equal("water damage")
		gt.Value(t, types.DamageTypeMold.Prompt()).Equal("mold")
		gt.Value(t, types.DamageType("window_door_damage").Prompt()).Equal("window door damage")
	})
}
