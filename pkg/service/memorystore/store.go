package memorystore

import (
	"context"
	"math"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/mintenance/surveyor/pkg/domain/interfaces"
	"github.com/mintenance/surveyor/pkg/domain/model"
)

// Store answers level queries from a MemoryRepository.
// A level result is the similarity-weighted mean of the neighbours' values, and its
// confidence is the summed similarity divided by the level's neighbour count.
type Store struct {
	repo interfaces.MemoryRepository
	now  func() time.Time
}

var _ interfaces.MemoryStore = &Store{}

type Option func(*Store)

// WithClock overrides the time source used to compute level windows
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func New(repo interfaces.MemoryRepository, opts ...Option) *Store {
	s := &Store{repo: repo, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Query(ctx context.Context, agent string, fv model.FeatureVector, level model.MemoryLevel) (*model.MemoryLevelResult, error) {
	if level.Neighbours <= 0 {
		return nil, goerr.New("memory level has no neighbours", goerr.V("level", level.Name))
	}

	hits, err := s.repo.FindNearest(ctx, agent, fv, level.Since(s.now()), level.Neighbours)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query memory level",
			goerr.V("level", level.Name),
			goerr.V("agent", agent))
	}

	result := &model.MemoryLevelResult{Values: make([]float64, model.AdjustmentDimension)}

	var weight float64
	for _, hit := range hits {
		sim := hit.Similarity
		if math.IsNaN(sim) || sim <= 0 {
			continue
		}
		weight += sim
		for i := range result.Values {
			result.Values[i] += sim * hit.Entry.Values[i]
		}
	}
	if weight == 0 {
		return result, nil
	}

	for i := range result.Values {
		result.Values[i] /= weight
	}
	result.Confidence = weight / float64(level.Neighbours)
	return result, nil
}

func (s *Store) Remember(ctx context.Context, entry *model.MemoryEntry) error {
	if _, err := s.repo.Append(ctx, entry); err != nil {
		return goerr.Wrap(err, "failed to remember outcome", goerr.V("agent", entry.Agent))
	}
	return nil
}
