package model

import "log/slog"

// AssessmentContext carries optional caller-supplied metadata about the property.
// All fields may be empty.
type AssessmentContext struct {
	PropertyType string `json:"property_type,omitempty"`
	Location     string `json:"location,omitempty"`
	PropertyAge  int    `json:"property_age,omitempty"` // years, 0 when unknown
	Details      string `json:"details,omitempty"`
}

// IsEmpty reports whether no context field is set
func (c *AssessmentContext) IsEmpty() bool {
	return c == nil || (c.PropertyType == "" && c.Location == "" && c.PropertyAge == 0 && c.Details == "")
}

// LogValue implements slog.LogValuer. Details are free text and are not logged.
func (c *AssessmentContext) LogValue() slog.Value {
	if c == nil {
		return slog.StringValue("none")
	}
	return slog.GroupValue(
		slog.String("property_type", c.PropertyType),
		slog.String("location", c.Location),
		slog.Int("property_age", c.PropertyAge),
		slog.Int("details_len", len(c.Details)),
	)
}
