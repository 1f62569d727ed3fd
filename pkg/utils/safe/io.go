package safe

import (
	"context"
	"io"
	"log/slog"

	"github.com/mintenance/surveyor/pkg/utils/logging"
)

// Close closes closer and logs any error. Nil closers are ignored.
func Close(ctx context.Context, closer io.Closer) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.From(ctx).Error("Failed to close", slog.Any("error", err))
	}
}

// ReadLimited reads at most limit bytes from r. Used to bound upstream error bodies
// and downloaded images.
func ReadLimited(r io.Reader, limit int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, limit))
}
