package model

import (
	"time"

	"github.com/mintenance/surveyor/pkg/domain/types"
)

// TrainingExample is one line of a training-data export
type TrainingExample struct {
	ID            AssessmentID     `json:"id"`
	ImageURLs     []string         `json:"image_urls"`
	DamageType    types.DamageType `json:"damage_type"`
	Severity      types.Severity   `json:"severity"`
	Urgency       types.Urgency    `json:"urgency"`
	Confidence    int              `json:"confidence"`
	Detections    []Detection      `json:"detections"`
	ValidatedBy   string           `json:"validated_by"` // "system" or "human"
	ValidatedAt   time.Time        `json:"validated_at"`
	PropertyType  string           `json:"property_type,omitempty"`
	PropertyAge   int              `json:"property_age,omitempty"`
	FeatureSource FeatureSource    `json:"feature_source,omitempty"`
}

// ExportResult summarizes one export run
type ExportResult struct {
	Location string    `json:"location,omitempty"`
	Count    int       `json:"count"`
	Since    time.Time `json:"since"`
	// Until is the ValidatedAt of the newest exported record, or Since when nothing was exported
	Until time.Time `json:"until"`
}
