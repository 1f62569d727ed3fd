package usecase_test

import (
	"context"
	"sync"
	"time"

	"github.com/mintenance/surveyor/pkg/domain/model"
)

type mockVisionModel struct {
	generateFn func(ctx context.Context, req *model.VisionRequest) (*model.VisionResponse, error)
}

func (m *mockVisionModel) Generate(ctx context.Context, req *model.VisionRequest) (*model.VisionResponse, error) {
	return m.generateFn(ctx, req)
}

type mockDetector struct {
	detectFn func(ctx context.Context, imageURLs []string) ([]model.Detection, error)
}

func (m *mockDetector) Detect(ctx context.Context, imageURLs []string) ([]model.Detection, error) {
	return m.detectFn(ctx, imageURLs)
}

type mockAnalyzer struct {
	analyzeFn func(ctx context.Context, imageURLs []string) (*model.VisionAnalysisSummary, error)
}

func (m *mockAnalyzer) Analyze(ctx context.Context, imageURLs []string) (*model.VisionAnalysisSummary, error) {
	return m.analyzeFn(ctx, imageURLs)
}

type mockSegmenter struct {
	healthy   bool
	segmentFn func(ctx context.Context, imageURL string, damageTypes []string) (map[string]model.SegmentationMask, error)
}

func (m *mockSegmenter) HealthCheck(ctx context.Context) bool {
	return m.healthy
}

func (m *mockSegmenter) SegmentDamageTypes(ctx context.Context, imageURL string, damageTypes []string) (map[string]model.SegmentationMask, error) {
	return m.segmentFn(ctx, imageURL, damageTypes)
}

type mockLearnedExtractor struct {
	initializeFn func(ctx context.Context) error
	extractFn    func(ctx context.Context, input *model.FeatureInput) (model.FeatureVector, error)
}

func (m *mockLearnedExtractor) Initialize(ctx context.Context) error {
	if m.initializeFn == nil {
		return nil
	}
	return m.initializeFn(ctx)
}

func (m *mockLearnedExtractor) Extract(ctx context.Context, input *model.FeatureInput) (model.FeatureVector, error) {
	return m.extractFn(ctx, input)
}

type mockMemoryStore struct {
	queryFn func(ctx context.Context, agent string, fv model.FeatureVector, level model.MemoryLevel) (*model.MemoryLevelResult, error)

	mu         sync.Mutex
	remembered []*model.MemoryEntry
}

func (m *mockMemoryStore) Query(ctx context.Context, agent string, fv model.FeatureVector, level model.MemoryLevel) (*model.MemoryLevelResult, error) {
	return m.queryFn(ctx, agent, fv, level)
}

func (m *mockMemoryStore) Remember(ctx context.Context, entry *model.MemoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remembered = append(m.remembered, entry)
	return nil
}

type mockNotifier struct {
	mu      sync.Mutex
	reasons []string
}

func (m *mockNotifier) NotifyReviewRequired(ctx context.Context, record *model.AssessmentRecord, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reasons = append(m.reasons, reason)
	return nil
}

type mockSink struct {
	writes map[string][]byte
}

func (m *mockSink) Write(ctx context.Context, name string, data []byte) (string, error) {
	if m.writes == nil {
		m.writes = make(map[string][]byte)
	}
	m.writes[name] = data
	return "mem://" + name, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// modelResponse is a vision model reply with one medium hazard, one warning and one low risk factor.
// Derived scores: safety 90, compliance 90, insurance 10.
const modelResponse = `{
  "damage_assessment": {
    "damage_type": "water_damage",
    "severity": "midway",
    "confidence": 95,
    "location": "kitchen ceiling",
    "description": "Brown staining around a ceiling light fitting",
    "detected_items": ["stain", "ceiling"]
  },
  "safety_hazards": {
    "hazards": [
      {"type": "electrical", "severity": "medium", "urgency": "soon", "immediate_action": "Isolate the lighting circuit", "location": "ceiling light", "description": "Water near a fitting"}
    ],
    "has_critical_hazards": false,
    "overall_safety_score": 12
  },
  "compliance": {
    "issues": [
      {"code": "BR-P", "description": "Fitting not rated for damp areas", "severity": "warning", "recommendation": "Replace with IP44 fitting"}
    ],
    "requires_professional_inspection": false
  },
  "insurance_risk": {
    "risk_factors": [{"factor": "escape of water", "severity": "low", "impact": "minor claim"}],
    "risk_score": 99,
    "mitigation_recommendations": ["Fix the leak source"]
  },
  "urgency": {
    "urgency": "soon",
    "recommended_action_timeline": "within 2 weeks",
    "estimated_time_to_worsen": "1 month",
    "reasoning": "Active staining"
  },
  "homeowner_explanation": {
    "what_is_it": "A leak above the ceiling",
    "why_it_happened": "Likely a failed pipe joint",
    "what_to_do": "Call a plumber"
  },
  "contractor_advice": {
    "repair_needed": ["trace leak", "replace plasterboard"],
    "materials": ["plasterboard"],
    "tools": ["moisture meter"],
    "estimated_time": "1 day",
    "estimated_cost": {"min": 300, "max": 800, "currency": "GBP"},
    "complexity": "medium"
  }
}`

var testImageURLs = []string{
	"https://img.example.com/1.jpg",
	"https://img.example.com/2.jpg",
}
