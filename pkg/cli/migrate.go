package cli

import (
	"context"

	"github.com/m-mizutani/fireconf"
	"github.com/m-mizutani/goerr/v2"
	"github.com/mintenance/surveyor/pkg/domain/model"
	"github.com/mintenance/surveyor/pkg/repository/firestore"
	"github.com/mintenance/surveyor/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdMigrate() *cli.Command {
	var projectID string
	var databaseID string
	var collectionPrefix string
	var dryRun bool

	return &cli.Command{
		Name:    "migrate",
		Aliases: []string{"m"},
		Usage:   "Migrate Firestore indexes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "firestore-project-id",
				Usage:       "Firestore Project ID (required)",
				Required:    true,
				Sources:     cli.EnvVars("SURVEYOR_FIRESTORE_PROJECT_ID"),
				Destination: &projectID,
			},
			&cli.StringFlag{
				Name:        "firestore-database-id",
				Usage:       "Firestore Database ID",
				Sources:     cli.EnvVars("SURVEYOR_FIRESTORE_DATABASE_ID"),
				Destination: &databaseID,
			},
			&cli.StringFlag{
				Name:        "firestore-collection-prefix",
				Usage:       "Prefix added to every Firestore collection name",
				Sources:     cli.EnvVars("SURVEYOR_FIRESTORE_COLLECTION_PREFIX"),
				Destination: &collectionPrefix,
			},
			&cli.BoolFlag{
				Name:        "dry-run",
				Usage:       "Preview changes without applying",
				Destination: &dryRun,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.Default()

			logger.Info("Migrate configuration",
				"projectID", projectID,
				"databaseID", databaseID,
				"collectionPrefix", collectionPrefix,
				"dryRun", dryRun)

			indexConfig := getIndexConfig(collectionPrefix)

			client, err := fireconf.NewClient(ctx, projectID, databaseID)
			if err != nil {
				return goerr.Wrap(err, "failed to create fireconf client")
			}
			defer func() {
				if err := client.Close(); err != nil {
					logger.Error("failed to close fireconf client", "error", err.Error())
				}
			}()

			if dryRun {
				logger.Info("Dry run mode - previewing changes")
				plan, err := client.GetMigrationPlan(ctx, indexConfig)
				if err != nil {
					return goerr.Wrap(err, "failed to create migration plan")
				}

				if len(plan.Steps) == 0 {
					logger.Info("No changes required")
					return nil
				}

				for _, step := range plan.Steps {
					logger.Info("Migration step",
						"collection", step.Collection,
						"operation", step.Operation,
						"description", step.Description,
						"destructive", step.Destructive)
				}
			} else {
				logger.Info("Applying migrations")
				if err := client.Migrate(ctx, indexConfig); err != nil {
					return goerr.Wrap(err, "failed to apply migrations")
				}
				logger.Info("Migrations applied successfully")
			}

			return nil
		},
	}
}

// getIndexConfig returns the Firestore index configuration
func getIndexConfig(prefix string) *fireconf.Config {
	features := fireconf.IndexField{
		Path:   firestore.FeaturesField,
		Vector: &fireconf.VectorConfig{Dimension: model.FeatureDimension},
	}

	return &fireconf.Config{
		Collections: []fireconf.Collection{
			{
				Name: prefix + firestore.AssessmentsCollection,
				Indexes: []fireconf.Index{
					// ListValidated: validation_status ==, validated_at > ASC
					{
						Fields: []fireconf.IndexField{
							{Path: "validation_status", Order: fireconf.OrderAscending},
							{Path: "validated_at", Order: fireconf.OrderAscending},
						},
					},
				},
			},
			{
				Name: prefix + firestore.MemoryEntriesCollection,
				Indexes: []fireconf.Index{
					// FindNearest over an unbounded level: agent ==
					{
						Fields: []fireconf.IndexField{
							{Path: "agent", Order: fireconf.OrderAscending},
							features,
						},
					},
					// FindNearest over a windowed level: agent ==, created_at >=
					{
						Fields: []fireconf.IndexField{
							{Path: "agent", Order: fireconf.OrderAscending},
							{Path: "created_at", Order: fireconf.OrderAscending},
							features,
						},
					},
				},
			},
		},
	}
}
