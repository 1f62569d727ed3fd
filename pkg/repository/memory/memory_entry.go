package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/mintenance/surveyor/pkg/domain/model"
)

type memoryRepository struct {
	mu      sync.RWMutex
	entries map[string][]*model.MemoryEntry // key = agent
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		entries: make(map[string][]*model.MemoryEntry),
	}
}

func copyEntry(e *model.MemoryEntry) *model.MemoryEntry {
	copied := *e
	return &copied
}

func (r *memoryRepository) Append(ctx context.Context, entry *model.MemoryEntry) (*model.MemoryEntry, error) {
	if entry.Agent == "" {
		return nil, goerr.New("memory agent is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	created := copyEntry(entry)
	if created.ID == "" {
		created.ID = model.NewMemoryEntryID()
	}
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC()
	}

	r.entries[created.Agent] = append(r.entries[created.Agent], created)
	return copyEntry(created), nil
}

func (r *memoryRepository) FindNearest(ctx context.Context, agent string, fv model.FeatureVector, since time.Time, limit int) ([]*model.ScoredMemoryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 {
		return []*model.ScoredMemoryEntry{}, nil
	}

	scored := make([]*model.ScoredMemoryEntry, 0)
	for _, e := range r.entries[agent] {
		if !since.IsZero() && e.CreatedAt.Before(since) {
			continue
		}
		scored = append(scored, &model.ScoredMemoryEntry{
			Entry:      copyEntry(e),
			Similarity: fv.CosineSimilarity(e.Features),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}
