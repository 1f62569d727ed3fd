package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/mintenance/surveyor/pkg/domain/interfaces"
	"github.com/mintenance/surveyor/pkg/service/storage"
	"github.com/mintenance/surveyor/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Export holds configuration for training-data export
type Export struct {
	bucket   string
	prefix   string
	dir      string
	schedule string
}

func (x *Export) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "export-gcs-bucket",
			Usage:       "Cloud Storage bucket receiving training exports",
			Category:    "Export",
			Sources:     cli.EnvVars("SURVEYOR_EXPORT_GCS_BUCKET"),
			Destination: &x.bucket,
		},
		&cli.StringFlag{
			Name:        "export-gcs-prefix",
			Usage:       "Object name prefix inside the export bucket",
			Category:    "Export",
			Sources:     cli.EnvVars("SURVEYOR_EXPORT_GCS_PREFIX"),
			Destination: &x.prefix,
		},
		&cli.StringFlag{
			Name:        "export-dir",
			Usage:       "Local directory receiving training exports (used when no bucket is set)",
			Category:    "Export",
			Sources:     cli.EnvVars("SURVEYOR_EXPORT_DIR"),
			Destination: &x.dir,
		},
		&cli.StringFlag{
			Name:        "export-schedule",
			Usage:       "Cron schedule of the export worker in serve mode (disabled when empty)",
			Category:    "Export",
			Sources:     cli.EnvVars("SURVEYOR_EXPORT_SCHEDULE"),
			Destination: &x.schedule,
		},
	}
}

func (x Export) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("bucket", x.bucket),
		slog.String("prefix", x.prefix),
		slog.String("dir", x.dir),
		slog.String("schedule", x.schedule),
	)
}

// Schedule returns the cron schedule of the export worker
func (x *Export) Schedule() string {
	return x.schedule
}

// HasDestination reports whether a bucket or a directory is configured
func (x *Export) HasDestination() bool {
	return x.bucket != "" || x.dir != ""
}

// Configure returns the export sink and a function releasing it.
// Returns a nil sink when neither a bucket nor a directory is configured.
func (x *Export) Configure(ctx context.Context) (interfaces.ExportSink, func(), error) {
	switch {
	case x.bucket != "":
		var opts []storage.GCSOption
		if x.prefix != "" {
			opts = append(opts, storage.WithPrefix(x.prefix))
		}
		sink, err := storage.NewGCS(ctx, x.bucket, nil, opts...)
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to create GCS export sink")
		}
		closer := func() {
			if err := sink.Close(); err != nil {
				logging.Default().Error("failed to close GCS client", "error", err.Error())
			}
		}
		return sink, closer, nil

	case x.dir != "":
		sink, err := storage.NewLocal(x.dir)
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to create local export sink")
		}
		return sink, func() {}, nil

	default:
		return nil, func() {}, nil
	}
}
