package cli

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/mintenance/surveyor/pkg/service/metrics"
	"github.com/mintenance/surveyor/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdExport() *cli.Command {
	var since time.Duration
	var pipelineCfg pipelineConfig

	flags := []cli.Flag{
		&cli.DurationFlag{
			Name:        "since",
			Usage:       "Export records validated within this period (0 exports everything)",
			Value:       24 * time.Hour,
			Destination: &since,
		},
	}
	flags = append(flags, pipelineCfg.Flags()...)

	return &cli.Command{
		Name:    "export",
		Aliases: []string{"e"},
		Usage:   "Export validated assessments as training data",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if !pipelineCfg.export.HasDestination() {
				return goerr.New("export-gcs-bucket or export-dir is required")
			}

			pl, err := pipelineCfg.Configure(ctx, "", metrics.Nop{})
			if err != nil {
				return err
			}
			defer pl.Close()

			var from time.Time
			if since > 0 {
				from = time.Now().Add(-since)
			}

			result, err := pl.uc.Export.ExportValidated(ctx, from)
			if err != nil {
				return goerr.Wrap(err, "training export failed")
			}

			logging.Default().Info("Training export completed",
				"count", result.Count,
				"location", result.Location,
				"since", result.Since,
				"until", result.Until,
			)
			return nil
		},
	}
}
