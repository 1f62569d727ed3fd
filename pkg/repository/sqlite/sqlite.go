package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/mintenance/surveyor/pkg/domain/interfaces"
	"github.com/mintenance/surveyor/pkg/domain/model"
	"github.com/mintenance/surveyor/pkg/repository/sqlite/migrations"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLite is a single-file repository for deployments without Firestore
type SQLite struct {
	db         *sql.DB
	path       string
	assessment *assessmentRepository
	memory     *memoryRepository
}

var _ interfaces.Repository = &SQLite{}

// New opens (creating if needed) the database at path and applies pending migrations
func New(ctx context.Context, path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, goerr.Wrap(err, "failed to create data directory", goerr.V("dir", dir))
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sqlite database", goerr.V("path", path))
	}

	s := &SQLite{
		db:         db,
		path:       path,
		assessment: &assessmentRepository{db: db},
		memory:     &memoryRepository{db: db},
	}

	if err := s.migrate(ctx, migrations.FS); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *SQLite) Assessment() interfaces.AssessmentRepository {
	return s.assessment
}

func (s *SQLite) Memory() interfaces.MemoryRepository {
	return s.memory
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// Path returns the database file path
func (s *SQLite) Path() string {
	return s.path
}

func (s *SQLite) migrate(ctx context.Context, fsys fs.FS) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return goerr.Wrap(err, "failed to create schema_migrations table")
	}

	var current int
	if err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return goerr.Wrap(err, "failed to get schema version")
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return goerr.Wrap(err, "failed to read migrations")
	}

	var files []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= current {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return goerr.Wrap(err, "failed to read migration", goerr.V("name", name))
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return goerr.Wrap(err, "failed to apply migration", goerr.V("name", name))
		}
	}

	return nil
}

// encodeFeatures packs a feature vector as little-endian float64s
func encodeFeatures(fv model.FeatureVector) []byte {
	buf := make([]byte, model.FeatureDimension*8)
	for i, f := range fv {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

func decodeFeatures(data []byte) (model.FeatureVector, error) {
	var fv model.FeatureVector
	if len(data) != model.FeatureDimension*8 {
		return fv, goerr.New("unexpected feature blob size", goerr.V("size", len(data)))
	}
	for i := range fv {
		fv[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return fv, nil
}

func toUnixNano(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromUnixNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
