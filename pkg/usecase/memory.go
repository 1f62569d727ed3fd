package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/mintenance/surveyor/pkg/domain/interfaces"
	"github.com/mintenance/surveyor/pkg/domain/model"
	"github.com/mintenance/surveyor/pkg/utils/logging"
)

// DefaultMemoryAgent names the memory partition written and read by the assessment pipeline
const DefaultMemoryAgent = "building_surveyor"

// MemoryAdjuster fuses memory level results into a single adjustment
type MemoryAdjuster struct {
	store  interfaces.MemoryStore
	agent  string
	levels []model.MemoryLevel
	now    func() time.Time
}

// NewMemoryAdjuster creates an adjuster. A nil store always yields a zero adjustment.
func NewMemoryAdjuster(store interfaces.MemoryStore, agent string, levels []model.MemoryLevel) *MemoryAdjuster {
	if agent == "" {
		agent = DefaultMemoryAgent
	}
	if len(levels) == 0 {
		levels = model.DefaultMemoryLevels()
	}
	return &MemoryAdjuster{
		store:  store,
		agent:  agent,
		levels: levels,
		now:    time.Now,
	}
}

// Adjust queries every level and returns adjustment[i] = Σ values[i]·confidence / Σ confidence.
// A failing or malformed level is excluded. Zero total weight yields the zero adjustment.
func (m *MemoryAdjuster) Adjust(ctx context.Context, fv model.FeatureVector) model.MemoryAdjustment {
	var adj model.MemoryAdjustment
	if m == nil || m.store == nil {
		return adj
	}

	var weighted [model.AdjustmentDimension]float64
	var totalWeight float64
	for _, level := range m.levels {
		result, err := m.queryLevel(ctx, fv, level)
		if err != nil {
			logging.From(ctx).Warn("memory level query failed",
				"level", level.Name,
				"error", goerr.Wrap(ErrDegraded, err.Error(), goerr.V(SubCallKey, "memory_query")))
			continue
		}
		if !result.IsWellFormed() {
			logging.From(ctx).Warn("memory level returned malformed result", "level", level.Name)
			continue
		}
		for i, v := range result.Values {
			weighted[i] += v * result.Confidence
		}
		totalWeight += result.Confidence
	}

	if totalWeight == 0 || math.IsInf(totalWeight, 0) {
		return adj
	}
	for i := range adj {
		adj[i] = weighted[i] / totalWeight
	}
	return adj
}

func (m *MemoryAdjuster) queryLevel(ctx context.Context, fv model.FeatureVector, level model.MemoryLevel) (result *model.MemoryLevelResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = goerr.New("panic in memory query", goerr.V("panic", fmt.Sprint(r)))
		}
	}()
	return m.store.Query(ctx, m.agent, fv, level)
}

// Remember appends an outcome for fv to the memory store
func (m *MemoryAdjuster) Remember(ctx context.Context, fv model.FeatureVector, values model.MemoryAdjustment, id model.AssessmentID) error {
	if m == nil || m.store == nil {
		return nil
	}
	entry := &model.MemoryEntry{
		ID:           model.NewMemoryEntryID(),
		Agent:        m.agent,
		Features:     fv,
		Values:       values,
		AssessmentID: id,
		CreatedAt:    m.now(),
	}
	if err := m.store.Remember(ctx, entry); err != nil {
		return goerr.Wrap(err, "failed to remember outcome", goerr.V(AssessmentIDKey, id))
	}
	return nil
}
