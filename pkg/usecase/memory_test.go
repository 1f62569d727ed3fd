package usecase_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/mintenance/surveyor/pkg/domain/model"
	"github.com/mintenance/surveyor/pkg/usecase"
)

func levelResults(results map[string]*model.MemoryLevelResult, failing ...string) *mockMemoryStore {
	fail := make(map[string]bool)
	for _, name := range failing {
		fail[name] = true
	}
	return &mockMemoryStore{
		queryFn: func(ctx context.Context, agent string, fv model.FeatureVector, level model.MemoryLevel) (*model.MemoryLevelResult, error) {
			if fail[level.Name] {
				return nil, errors.New("level unavailable")
			}
			if r, ok := results[level.Name]; ok {
				return r, nil
			}
			return &model.MemoryLevelResult{Values: make([]float64, 5)}, nil
		},
	}
}

func TestMemoryAdjuster_Adjust(t *testing.T) {
	ctx := context.Background()
	fv := model.FeatureVector{}

	t.Run("confidence-weighted average across levels", func(t *testing.T) {
		store := levelResults(map[string]*model.MemoryLevelResult{
			"fine":   {Values: []float64{1, 0, 0, 0, 0}, Confidence: 0.5},
			"medium": {Values: []float64{0, 1, 0, 0, 0}, Confidence: 0.25},
			"coarse": {Values: []float64{0.5, 0, 1, 0, 0}, Confidence: 0.25},
		})
		adj := usecase.NewMemoryAdjuster(store, "", nil).Adjust(ctx, fv)

		gt.Value(t, adj).Equal(model.MemoryAdjustment{0.625, 0.25, 0.25, 0, 0})
	})

	t.Run("failing level is excluded", func(t *testing.T) {
		store := levelResults(map[string]*model.MemoryLevelResult{
			"fine":   {Values: []float64{1, 1, 1, 1, 1}, Confidence: 0.5},
			"coarse": {Values: []float64{0, 0, 0, 0, 0}, Confidence: 0.5},
		}, "medium")
		adj := usecase.NewMemoryAdjuster(store, "", nil).Adjust(ctx, fv)

		gt.Value(t, adj).Equal(model.MemoryAdjustment{0.5, 0.5, 0.5, 0.5, 0.5})
	})

	t.Run("panicking level is excluded", func(t *testing.T) {
		store := &mockMemoryStore{
			queryFn: func(ctx context.Context, agent string, fv model.FeatureVector, level model.MemoryLevel) (*model.MemoryLevelResult, error) {
				if level.Name == "fine" {
					panic("corrupt index")
				}
				return &model.MemoryLevelResult{Values: []float64{0.2, 0, 0, 0, 0}, Confidence: 1}, nil
			},
		}
		adj := usecase.NewMemoryAdjuster(store, "", nil).Adjust(ctx, fv)

		gt.Value(t, adj[model.AdjustConfidence]).Equal(0.2)
	})

	t.Run("malformed results are excluded", func(t *testing.T) {
		store := levelResults(map[string]*model.MemoryLevelResult{
			"fine":   {Values: []float64{1, 1, 1}, Confidence: 1},
			"medium": {Values: []float64{math.NaN(), 0, 0, 0, 0}, Confidence: 1},
			"coarse": {Values: []float64{0.4, 0, 0, 0, 0}, Confidence: -1},
		})
		adj := usecase.NewMemoryAdjuster(store, "", nil).Adjust(ctx, fv)

		gt.Bool(t, adj.IsZero()).True()
	})

	t.Run("zero total weight yields zero adjustment", func(t *testing.T) {
		store := levelResults(map[string]*model.MemoryLevelResult{
			"fine": {Values: []float64{1, 1, 1, 1, 1}, Confidence: 0},
		})
		adj := usecase.NewMemoryAdjuster(store, "", nil).Adjust(ctx, fv)

		gt.Bool(t, adj.IsZero()).True()
	})

	t.Run("every level failing yields zero adjustment", func(t *testing.T) {
		store := levelResults(nil, "fine", "medium", "coarse")
		adj := usecase.NewMemoryAdjuster(store, "", nil).Adjust(ctx, fv)

		gt.Bool(t, adj.IsZero()).True()
	})

	t.Run("nil store yields zero adjustment", func(t *testing.T) {
		adj := usecase.NewMemoryAdjuster(nil, "", nil).Adjust(ctx, fv)
		gt.Bool(t, adj.IsZero()).True()
	})

	t.Run("queries the configured agent and levels", func(t *testing.T) {
		var agents, levels []string
		store := &mockMemoryStore{
			queryFn: func(ctx context.Context, agent string, fv model.FeatureVector, level model.MemoryLevel) (*model.MemoryLevelResult, error) {
				agents = append(agents, agent)
				levels = append(levels, level.Name)
				return &model.MemoryLevelResult{Values: make([]float64, 5)}, nil
			},
		}
		custom := []model.MemoryLevel{{Name: "recent", Neighbours: 3}}
		usecase.NewMemoryAdjuster(store, "roof_agent", custom).Adjust(ctx, fv)

		gt.Value(t, agents).Equal([]string{"roof_agent"})
		gt.Value(t, levels).Equal([]string{"recent"})
	})
}

func TestMemoryAdjuster_Remember(t *testing.T) {
	store := levelResults(nil)
	m := usecase.NewMemoryAdjuster(store, "", nil)

	var fv model.FeatureVector
	fv[3] = 0.5
	err := m.Remember(context.Background(), fv, model.MemoryAdjustment{1, 0, 0, 0, 0}, "a-1")
	gt.NoError(t, err).Required()

	gt.Array(t, store.remembered).Length(1)
	entry := store.remembered[0]
	gt.Value(t, entry.Agent).Equal(usecase.DefaultMemoryAgent)
	gt.Value(t, entry.Features).Equal(fv)
	gt.Value(t, entry.AssessmentID).Equal(model.AssessmentID("a-1"))
	gt.String(t, string(entry.ID)).NotEqual("")
	gt.Bool(t, entry.CreatedAt.IsZero()).False()
}
