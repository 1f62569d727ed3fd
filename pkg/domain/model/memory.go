package model

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// AdjustmentDimension is the length of a memory adjustment
const AdjustmentDimension = 5

// Adjustment dimensions
const (
	AdjustConfidence = iota
	AdjustSeverity
	AdjustUrgency
	AdjustSafety
	AdjustInsurance
)

// MemoryAdjustment is a confidence-weighted correction derived from past outcomes
type MemoryAdjustment [AdjustmentDimension]float64

// IsZero reports whether every dimension is zero
func (a MemoryAdjustment) IsZero() bool {
	return a == MemoryAdjustment{}
}

// MemoryLevel is one temporal granularity of the memory store
type MemoryLevel struct {
	Name       string
	Window     time.Duration // 0 means unbounded
	Neighbours int
}

// Since returns the oldest creation time covered by the level, or the zero time when unbounded
func (l MemoryLevel) Since(now time.Time) time.Time {
	if l.Window <= 0 {
		return time.Time{}
	}
	return now.Add(-l.Window)
}

// DefaultMemoryLevels returns the fine, medium and coarse levels
func DefaultMemoryLevels() []MemoryLevel {
	return []MemoryLevel{
		{Name: "fine", Window: 7 * 24 * time.Hour, Neighbours: 5},
		{Name: "medium", Window: 90 * 24 * time.Hour, Neighbours: 10},
		{Name: "coarse", Window: 0, Neighbours: 20},
	}
}

// MemoryLevelResult is what a single level query returns
type MemoryLevelResult struct {
	Values     []float64
	Confidence float64
}

// IsWellFormed reports whether the result can take part in the weighted average
func (r *MemoryLevelResult) IsWellFormed() bool {
	if r == nil || len(r.Values) != AdjustmentDimension {
		return false
	}
	if math.IsNaN(r.Confidence) || math.IsInf(r.Confidence, 0) || r.Confidence < 0 {
		return false
	}
	for _, v := range r.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// MemoryEntryID is a UUID-based identifier for MemoryEntry
type MemoryEntryID string

// NewMemoryEntryID generates a new UUID v4 MemoryEntryID
func NewMemoryEntryID() MemoryEntryID {
	return MemoryEntryID(uuid.New().String())
}

// MemoryEntry is one remembered outcome, keyed by the features that produced it
type MemoryEntry struct {
	ID           MemoryEntryID
	Agent        string
	Features     FeatureVector
	Values       MemoryAdjustment
	AssessmentID AssessmentID
	CreatedAt    time.Time
}

// ScoredMemoryEntry is a nearest-neighbour hit
type ScoredMemoryEntry struct {
	Entry      *MemoryEntry
	Similarity float64
}
