package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/mintenance/surveyor/pkg/domain/model"
)

type memoryRepository struct {
	db *sql.DB
}

func (r *memoryRepository) Append(ctx context.Context, entry *model.MemoryEntry) (*model.MemoryEntry, error) {
	if entry.Agent == "" {
		return nil, goerr.New("memory agent is required")
	}

	created := *entry
	if created.ID == "" {
		created.ID = model.NewMemoryEntryID()
	}
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC()
	}

	adjustment, err := json.Marshal(created.Values)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal memory values")
	}

	_, err = r.db.ExecContext(ctx, `INSERT INTO memory_entries (id, agent, features, adjustment, assessment_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(created.ID), created.Agent, encodeFeatures(created.Features), string(adjustment),
		string(created.AssessmentID), toUnixNano(created.CreatedAt))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to insert memory entry", goerr.V("id", created.ID))
	}

	return &created, nil
}

// FindNearest scans the agent's entries inside the window and ranks them in process.
// The memory corpus is small enough per agent for a linear scan.
func (r *memoryRepository) FindNearest(ctx context.Context, agent string, fv model.FeatureVector, since time.Time, limit int) ([]*model.ScoredMemoryEntry, error) {
	if limit <= 0 {
		return []*model.ScoredMemoryEntry{}, nil
	}

	var lowerBound int64
	if !since.IsZero() {
		lowerBound = toUnixNano(since)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT id, agent, features, adjustment, assessment_id, created_at
		FROM memory_entries WHERE agent = ? AND created_at >= ?`, agent, lowerBound)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query memory entries", goerr.V("agent", agent))
	}
	defer rows.Close()

	scored := make([]*model.ScoredMemoryEntry, 0)
	for rows.Next() {
		var (
			e            model.MemoryEntry
			id           string
			features     []byte
			adjustment   string
			assessmentID sql.NullString
			createdAt    int64
		)
		if err := rows.Scan(&id, &e.Agent, &features, &adjustment, &assessmentID, &createdAt); err != nil {
			return nil, goerr.Wrap(err, "failed to scan memory entry")
		}
		e.ID = model.MemoryEntryID(id)
		if e.Features, err = decodeFeatures(features); err != nil {
			return nil, goerr.Wrap(err, "failed to decode memory features", goerr.V("id", id))
		}
		if err := json.Unmarshal([]byte(adjustment), &e.Values); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal memory values", goerr.V("id", id))
		}
		e.AssessmentID = model.AssessmentID(assessmentID.String)
		e.CreatedAt = fromUnixNano(createdAt)

		scored = append(scored, &model.ScoredMemoryEntry{
			Entry:      &e,
			Similarity: fv.CosineSimilarity(e.Features),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate memory entries")
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}
