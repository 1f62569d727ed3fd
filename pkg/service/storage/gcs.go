package storage

import (
	"context"
	"fmt"
	"path"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"github.com/mintenance/surveyor/pkg/domain/interfaces"
	"google.golang.org/api/option"
)

// GCSSink writes exported objects to a Cloud Storage bucket
type GCSSink struct {
	client *storage.Client
	bucket string
	prefix string
}

var _ interfaces.ExportSink = &GCSSink{}

// GCSOption configures GCSSink
type GCSOption func(*GCSSink)

// WithPrefix prepends prefix to every object name
func WithPrefix(prefix string) GCSOption {
	return func(s *GCSSink) {
		s.prefix = prefix
	}
}

// NewGCS creates a sink for bucket
func NewGCS(ctx context.Context, bucket string, clientOpts []option.ClientOption, opts ...GCSOption) (*GCSSink, error) {
	if bucket == "" {
		return nil, goerr.New("bucket is required")
	}

	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Cloud Storage client", goerr.V("bucket", bucket))
	}

	s := &GCSSink{client: client, bucket: bucket}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Write uploads data and returns the gs:// URI of the object
func (s *GCSSink) Write(ctx context.Context, name string, data []byte) (string, error) {
	objName := path.Join(s.prefix, name)

	w := s.client.Bucket(s.bucket).Object(objName).NewWriter(ctx)
	w.ContentType = contentType(name)

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", goerr.Wrap(err, "failed to write object", goerr.V("bucket", s.bucket), goerr.V("object", objName))
	}
	if err := w.Close(); err != nil {
		return "", goerr.Wrap(err, "failed to finalize object", goerr.V("bucket", s.bucket), goerr.V("object", objName))
	}

	return fmt.Sprintf("gs://%s/%s", s.bucket, objName), nil
}

// Close releases the underlying client
func (s *GCSSink) Close() error {
	return s.client.Close()
}

func contentType(name string) string {
	switch path.Ext(name) {
	case ".jsonl":
		return "application/x-ndjson"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
