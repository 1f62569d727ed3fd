package storage

import (
	"context"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	"github.com/mintenance/surveyor/pkg/domain/interfaces"
)

// LocalSink writes exported objects under a directory
type LocalSink struct {
	dir string
}

var _ interfaces.ExportSink = &LocalSink{}

// NewLocal creates a sink rooted at dir
func NewLocal(dir string) (*LocalSink, error) {
	if dir == "" {
		return nil, goerr.New("export directory is required")
	}
	return &LocalSink{dir: dir}, nil
}

// Write stores data at dir/name and returns the file path
func (s *LocalSink) Write(ctx context.Context, name string, data []byte) (string, error) {
	p := filepath.Join(s.dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", goerr.Wrap(err, "failed to create export directory", goerr.V("path", p))
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", goerr.Wrap(err, "failed to write export file", goerr.V("path", p))
	}
	return p, nil
}
