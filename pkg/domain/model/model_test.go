package model_test

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/mintenance/surveyor/pkg/domain/model"
	"github.com/mintenance/surveyor/pkg/domain/types"
)

func TestNewAssessmentID(t *testing.T) {
	id1 := model.NewAssessmentID()
	id2 := model.NewAssessmentID()

	gt.Value(t, string(id1)).NotEqual("")
	gt.Value(t, id1).NotEqual(id2)
}

func TestNewFeatureVector(t *testing.T) {
	fv := model.NewFeatureVector([]float64{0.5, -2, 3, math.NaN(), math.Inf(1), math.Inf(-1)})

	gt.Value(t, fv[0]).Equal(0.5)
	gt.Value(t, fv[1]).Equal(0.0)
	gt.Value(t, fv[2]).Equal(1.0)
	gt.Value(t, fv[3]).Equal(0.0)
	gt.Value(t, fv[4]).Equal(1.0)
	gt.Value(t, fv[5]).Equal(0.0)
	gt.Value(t, fv[39]).Equal(0.0)
	gt.Bool(t, fv.IsNormalized()).True()

	long := make([]float64, 64)
	for i := range long {
		long[i] = 0.25
	}
	fv = model.NewFeatureVector(long)
	gt.Array(t, fv.Slice()).Length(model.FeatureDimension)
}

func TestFeatureVector_CosineSimilarity(t *testing.T) {
	var a, b, zero model.FeatureVector
	a[0], a[1] = 1, 0
	b[0], b[1] = 1, 1

	gt.Value(t, a.CosineSimilarity(a)).Equal(1.0)
	gt.Number(t, a.CosineSimilarity(b)).Greater(0.70).Less(0.71)
	gt.Value(t, a.CosineSimilarity(zero)).Equal(0.0)
}

func TestFeatureVector_CopySemantics(t *testing.T) {
	var fv model.FeatureVector
	fv[0] = 0.3
	copied := fv
	copied[0] = 0.9
	gt.Value(t, fv[0]).Equal(0.3)
}

func TestMemoryLevelResult_IsWellFormed(t *testing.T) {
	tests := []struct {
		name   string
		result *model.MemoryLevelResult
		want   bool
	}{
		{"nil", nil, false},
		{"ok", &model.MemoryLevelResult{Values: []float64{1, 0, 0, 0, 0}, Confidence: 0.5}, true},
		{"zero confidence", &model.MemoryLevelResult{Values: make([]float64, 5), Confidence: 0}, true},
		{"short", &model.MemoryLevelResult{Values: []float64{1, 2}, Confidence: 0.5}, false},
		{"negative confidence", &model.MemoryLevelResult{Values: make([]float64, 5), Confidence: -1}, false},
		{"nan value", &model.MemoryLevelResult{Values: []float64{math.NaN(), 0, 0, 0, 0}, Confidence: 1}, false},
		{"inf confidence", &model.MemoryLevelResult{Values: make([]float64, 5), Confidence: math.Inf(1)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gt.Value(t, tt.result.IsWellFormed()).Equal(tt.want)
		})
	}
}

func TestMemoryLevel_Since(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	levels := model.DefaultMemoryLevels()
	gt.Array(t, levels).Length(3)

	gt.Value(t, levels[0].Since(now)).Equal(now.Add(-7 * 24 * time.Hour))
	gt.Bool(t, levels[2].Since(now).IsZero()).True()
}

func TestValidatedBy(t *testing.T) {
	t.Run("system is null", func(t *testing.T) {
		v := model.SystemValidator()
		gt.Bool(t, v.IsSystem()).True()
		data, err := json.Marshal(v)
		gt.NoError(t, err).Required()
		gt.Value(t, string(data)).Equal("null")
	})

	t.Run("human is id", func(t *testing.T) {
		v := model.HumanValidator("U123")
		id, ok := v.HumanID()
		gt.Bool(t, ok).True()
		gt.Value(t, id).Equal("U123")
		data, err := json.Marshal(v)
		gt.NoError(t, err).Required()
		gt.Value(t, string(data)).Equal(`"U123"`)
	})

	t.Run("validation round trip", func(t *testing.T) {
		at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		in := model.Validation{
			Status:      types.ValidationStatusValidated,
			ValidatedBy: model.HumanValidator("reviewer-7"),
			ValidatedAt: &at,
			Notes:       "checked on site",
		}
		data, err := json.Marshal(in)
		gt.NoError(t, err).Required()
		gt.String(t, string(data)).Contains(`"validated_by":"reviewer-7"`)

		var out model.Validation
		gt.NoError(t, json.Unmarshal(data, &out)).Required()
		gt.Value(t, out.ValidatedBy).Equal(in.ValidatedBy)
		gt.Value(t, out.Status).Equal(in.Status)
	})

	t.Run("null decodes to system", func(t *testing.T) {
		var out model.Validation
		gt.NoError(t, json.Unmarshal([]byte(`{"validation_status":"validated","validated_by":null}`), &out)).Required()
		gt.Bool(t, out.ValidatedBy.IsSystem()).True()
	})
}

func TestComplianceAnalysis_HasViolation(t *testing.T) {
	c := model.ComplianceAnalysis{Issues: []model.ComplianceIssue{
		{Code: "BS-1", Severity: types.ComplianceSeverityWarning},
	}}
	gt.Bool(t, c.HasViolation()).False()

	c.Issues = append(c.Issues, model.ComplianceIssue{Code: "BS-2", Severity: types.ComplianceSeverityViolation})
	gt.Bool(t, c.HasViolation()).True()
}

func TestComplianceAnalysis_HasViolationIgnoresCase(t *testing.T) {
	c := model.ComplianceAnalysis{Issues: []model.ComplianceIssue{
		{Code: "BS-3", Severity: "Violation"},
	}}
	gt.Bool(t, c.HasViolation()).True()
}
