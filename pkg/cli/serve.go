package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	httpctrl "github.com/mintenance/surveyor/pkg/controller/http"
	"github.com/mintenance/surveyor/pkg/service/metrics"
	"github.com/mintenance/surveyor/pkg/service/worker"
	"github.com/mintenance/surveyor/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdServe() *cli.Command {
	var addr string
	var baseURL string
	var maxBodySize int64
	var pipelineCfg pipelineConfig

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("SURVEYOR_ADDR"),
			Destination: &addr,
		},
		&cli.StringFlag{
			Name:        "base-url",
			Usage:       "Base URL for the application (e.g., https://your-domain.com), used in review notifications",
			Sources:     cli.EnvVars("SURVEYOR_BASE_URL"),
			Destination: &baseURL,
		},
		&cli.Int64Flag{
			Name:        "max-body-size",
			Usage:       "Maximum request body size in bytes",
			Value:       1 << 20,
			Sources:     cli.EnvVars("SURVEYOR_MAX_BODY_SIZE"),
			Destination: &maxBodySize,
		},
	}

	// Add shared config flags
	flags = append(flags, pipelineCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			recorder := metrics.New()

			pl, err := pipelineCfg.Configure(ctx, baseURL, recorder)
			if err != nil {
				return err
			}
			defer pl.Close()

			// Start the training export worker if a schedule and a destination are set
			var exportWorker *worker.ExportWorker
			if schedule := pipelineCfg.export.Schedule(); schedule != "" {
				if !pipelineCfg.export.HasDestination() {
					return goerr.New("export-schedule requires export-gcs-bucket or export-dir")
				}
				w, err := worker.NewExportWorker(pl.uc.Export, schedule)
				if err != nil {
					return goerr.Wrap(err, "failed to create export worker")
				}
				if err := w.Start(ctx); err != nil {
					return goerr.Wrap(err, "failed to start export worker")
				}
				exportWorker = w
			}

			httpHandler := httpctrl.New(pl.uc.Assessment, pl.uc.Validation, pl.repo.Assessment(),
				httpctrl.WithMaxBodySize(maxBodySize),
				httpctrl.WithMetrics(recorder),
			)
			server := &http.Server{
				Addr:              addr,
				Handler:           httpHandler,
				ReadHeaderTimeout: 30 * time.Second,
			}

			// Setup signal handling for graceful shutdown
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			// Start server in goroutine
			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server", "addr", addr)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			// Wait for shutdown signal or server error
			select {
			case err := <-errCh:
				if exportWorker != nil {
					exportWorker.Stop()
				}
				return err
			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)

				// Stop export worker first
				if exportWorker != nil {
					exportWorker.Stop()
				}

				// Create shutdown context with timeout
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				// Attempt graceful shutdown
				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				logging.Default().Info("Server shutdown completed")
				return nil
			}
		},
	}
}
