package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gollem/llm/gemini"
	"github.com/mintenance/surveyor/pkg/domain/interfaces"
	"github.com/mintenance/surveyor/pkg/service/embedding"
	"github.com/urfave/cli/v3"
)

// Gemini holds configuration for the Gemini client backing the learned feature extractor
type Gemini struct {
	projectID string
	location  string
}

// Flags returns CLI flags for Gemini configuration
func (g *Gemini) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini API (learned features are disabled when empty)",
			Category:    "Features",
			Sources:     cli.EnvVars("SURVEYOR_GEMINI_PROJECT"),
			Destination: &g.projectID,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini API",
			Category:    "Features",
			Value:       "us-central1",
			Sources:     cli.EnvVars("SURVEYOR_GEMINI_LOCATION"),
			Destination: &g.location,
		},
	}
}

// LogAttrs returns log attributes for the Gemini configuration
func (g *Gemini) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("project_id", g.projectID),
		slog.String("location", g.location),
	}
}

// Configure creates a new Gemini LLM client from the configured flags.
// Returns nil if projectID is not configured.
func (g *Gemini) Configure(ctx context.Context) (gollem.LLMClient, error) {
	if g.projectID == "" {
		return nil, nil
	}

	client, err := gemini.New(ctx, g.projectID, g.location)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Gemini client")
	}

	return client, nil
}

// LearnedExtractor returns an embedding-based feature extractor, or nil when
// Gemini is not configured and only handcrafted features are used
func (g *Gemini) LearnedExtractor(ctx context.Context) (interfaces.LearnedExtractor, error) {
	client, err := g.Configure(ctx)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, nil
	}
	return embedding.New(client), nil
}
