package worker

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/mintenance/surveyor/pkg/domain/model"
	"github.com/mintenance/surveyor/pkg/utils/logging"
	"github.com/robfig/cron/v3"
)

// Exporter exports records validated after since
type Exporter interface {
	ExportValidated(ctx context.Context, since time.Time) (*model.ExportResult, error)
}

// ExportWorker runs training-data exports on a cron schedule.
// Each run exports records validated since the previous successful run.
//
// Architecture assumptions:
// - Single server instance (no distributed locking)
// - The watermark lives in memory; after a restart the first run starts from the initial watermark
type ExportWorker struct {
	exporter Exporter
	cron     *cron.Cron
	schedule string

	mu        sync.Mutex
	watermark time.Time
}

// ExportWorkerOption configures ExportWorker
type ExportWorkerOption func(*ExportWorker)

// WithInitialWatermark sets the lower bound for the first run
func WithInitialWatermark(t time.Time) ExportWorkerOption {
	return func(w *ExportWorker) {
		w.watermark = t
	}
}

// NewExportWorker creates a worker. schedule is a standard 5-field cron expression.
func NewExportWorker(exporter Exporter, schedule string, opts ...ExportWorkerOption) (*ExportWorker, error) {
	w := &ExportWorker{
		exporter: exporter,
		schedule: schedule,
		cron:     cron.New(),
	}
	for _, opt := range opts {
		opt(w)
	}

	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, goerr.Wrap(err, "invalid export schedule", goerr.V("schedule", schedule))
	}
	return w, nil
}

// Start registers the job and starts the scheduler in the background
func (w *ExportWorker) Start(ctx context.Context) error {
	if _, err := w.cron.AddFunc(w.schedule, func() {
		if _, err := w.RunOnce(ctx); err != nil {
			logging.From(ctx).Error("Training export failed (will retry next schedule)",
				"error", err.Error())
		}
	}); err != nil {
		return goerr.Wrap(err, "failed to schedule export", goerr.V("schedule", w.schedule))
	}

	logging.From(ctx).Info("Export worker starting", "schedule", w.schedule)
	w.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for a running export to finish
func (w *ExportWorker) Stop() {
	logging.Default().Info("Export worker stopping")
	<-w.cron.Stop().Done()
	logging.Default().Info("Export worker stopped")
}

// RunOnce performs a single export and advances the watermark on success
func (w *ExportWorker) RunOnce(ctx context.Context) (*model.ExportResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	result, err := w.exporter.ExportValidated(ctx, w.watermark)
	if err != nil {
		return nil, goerr.Wrap(err, "export run failed", goerr.V("since", w.watermark))
	}

	if result.Until.After(w.watermark) {
		w.watermark = result.Until
	}

	logging.From(ctx).Info("Training export completed",
		"count", result.Count,
		"location", result.Location,
		"watermark", w.watermark)
	return result, nil
}

// Watermark returns the lower bound of the next run
func (w *ExportWorker) Watermark() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.watermark
}
