package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/mintenance/surveyor/pkg/cli/config"
	"github.com/mintenance/surveyor/pkg/domain/interfaces"
	"github.com/mintenance/surveyor/pkg/service/memorystore"
	"github.com/mintenance/surveyor/pkg/usecase"
	"github.com/mintenance/surveyor/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// pipelineConfig gathers the configuration shared by commands that run the pipeline
type pipelineConfig struct {
	repo     config.Repository
	vision   config.VisionModel
	evidence config.Evidence
	gemini   config.Gemini
	slack    config.Slack
	export   config.Export
	policy   config.Policy
}

func (p *pipelineConfig) Flags() []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, p.repo.Flags()...)
	flags = append(flags, p.vision.Flags()...)
	flags = append(flags, p.evidence.Flags()...)
	flags = append(flags, p.gemini.Flags()...)
	flags = append(flags, p.slack.Flags()...)
	flags = append(flags, p.export.Flags()...)
	flags = append(flags, p.policy.Flags()...)
	return flags
}

// pipeline is a wired set of use cases. Close releases every client it opened.
type pipeline struct {
	repo    interfaces.Repository
	uc      *usecase.UseCases
	closers []func()
}

func (p *pipeline) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
}

// Configure opens every configured backend and builds the use cases.
// Services that are not configured are left out and the pipeline degrades accordingly.
func (p *pipelineConfig) Configure(ctx context.Context, baseURL string, metrics interfaces.MetricsRecorder) (*pipeline, error) {
	logger := logging.Default()
	pl := &pipeline{}

	repo, err := p.repo.Configure(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize repository")
	}
	pl.repo = repo
	pl.closers = append(pl.closers, func() {
		if err := repo.Close(); err != nil {
			logger.Error("failed to close repository", "error", err.Error())
		}
	})

	opts, err := p.policy.Configure()
	if err != nil {
		pl.Close()
		return nil, goerr.Wrap(err, "failed to load policy")
	}
	opts = append(opts,
		usecase.WithMemoryStore(memorystore.New(repo.Memory())),
		usecase.WithMetrics(metrics),
	)

	vision, err := p.vision.Configure()
	if err != nil {
		pl.Close()
		return nil, err
	}
	if vision != nil {
		opts = append(opts, usecase.WithVisionModel(vision))
	} else {
		logger.Warn("Vision model API key not configured, assessments will be rejected")
	}

	det, err := p.evidence.Detector()
	if err != nil {
		pl.Close()
		return nil, err
	}
	if det != nil {
		opts = append(opts, usecase.WithObjectDetector(det))
	}

	analyzer, err := p.evidence.Analyzer(ctx)
	if err != nil {
		pl.Close()
		return nil, err
	}
	if analyzer != nil {
		opts = append(opts, usecase.WithImageAnalyzer(analyzer))
	}

	seg, err := p.evidence.Segmenter()
	if err != nil {
		pl.Close()
		return nil, err
	}
	if seg != nil {
		opts = append(opts, usecase.WithSegmenter(seg))
	}

	learned, err := p.gemini.LearnedExtractor(ctx)
	if err != nil {
		pl.Close()
		return nil, err
	}
	if learned != nil {
		opts = append(opts, usecase.WithLearnedExtractor(learned))
	} else {
		logger.Info("Gemini not configured, using handcrafted features only")
	}

	notifier, err := p.slack.Configure(baseURL)
	if err != nil {
		pl.Close()
		return nil, err
	}
	if notifier != nil {
		opts = append(opts, usecase.WithReviewNotifier(notifier))
		logger.Info("Slack review notifications enabled")
	}

	sink, closeSink, err := p.export.Configure(ctx)
	if err != nil {
		pl.Close()
		return nil, err
	}
	pl.closers = append(pl.closers, closeSink)
	if sink != nil {
		opts = append(opts, usecase.WithExportSink(sink))
	}

	pl.uc = usecase.New(repo, opts...)

	// Warm up the learned extractor; failure only means handcrafted features are used.
	_ = pl.uc.Features.Initialize(ctx)

	logger.Info("Pipeline configured",
		"repository", p.repo,
		"vision", p.vision,
		"evidence", p.evidence,
		"slack", p.slack,
		"export", p.export,
		"policy", p.policy,
	)

	return pl, nil
}
