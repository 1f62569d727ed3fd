package config

import (
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/mintenance/surveyor/pkg/domain/interfaces"
	"github.com/mintenance/surveyor/pkg/service/visionmodel"
	"github.com/urfave/cli/v3"
)

// VisionModel holds configuration for the vision-language model provider
type VisionModel struct {
	provider string
	apiKey   string
	model    string
	baseURL  string
	detail   string
	rps      float64
	burst    int
}

func (x *VisionModel) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "vision-provider",
			Usage:       "Vision model provider (openai, anthropic)",
			Category:    "Vision model",
			Value:       "openai",
			Sources:     cli.EnvVars("SURVEYOR_VISION_PROVIDER"),
			Destination: &x.provider,
		},
		&cli.StringFlag{
			Name:        "vision-api-key",
			Usage:       "API key of the vision model provider",
			Category:    "Vision model",
			Sources:     cli.EnvVars("SURVEYOR_VISION_API_KEY"),
			Destination: &x.apiKey,
		},
		&cli.StringFlag{
			Name:        "vision-model",
			Usage:       "Model name (provider default when empty)",
			Category:    "Vision model",
			Sources:     cli.EnvVars("SURVEYOR_VISION_MODEL"),
			Destination: &x.model,
		},
		&cli.StringFlag{
			Name:        "vision-base-url",
			Usage:       "Override the provider API base URL",
			Category:    "Vision model",
			Sources:     cli.EnvVars("SURVEYOR_VISION_BASE_URL"),
			Destination: &x.baseURL,
		},
		&cli.StringFlag{
			Name:        "vision-image-detail",
			Usage:       "Image detail level for OpenAI (low, high, auto)",
			Category:    "Vision model",
			Value:       "high",
			Sources:     cli.EnvVars("SURVEYOR_VISION_IMAGE_DETAIL"),
			Destination: &x.detail,
		},
		&cli.FloatFlag{
			Name:        "vision-rate-limit",
			Usage:       "Maximum requests per second to the provider (0 disables limiting)",
			Category:    "Vision model",
			Sources:     cli.EnvVars("SURVEYOR_VISION_RATE_LIMIT"),
			Destination: &x.rps,
		},
		&cli.IntFlag{
			Name:        "vision-rate-burst",
			Usage:       "Burst size of the provider rate limiter",
			Category:    "Vision model",
			Value:       1,
			Sources:     cli.EnvVars("SURVEYOR_VISION_RATE_BURST"),
			Destination: &x.burst,
		},
	}
}

func (x VisionModel) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("provider", x.provider),
		slog.String("model", x.model),
		slog.String("base_url", x.baseURL),
		slog.Int("api_key.len", len(x.apiKey)),
		slog.Float64("rate_limit", x.rps),
	)
}

// Configure creates the vision model client. Returns nil when no API key is set;
// assessments then fail with a configuration error.
func (x *VisionModel) Configure() (interfaces.VisionModel, error) {
	if x.apiKey == "" {
		return nil, nil
	}

	switch x.provider {
	case "openai", "":
		opts := []visionmodel.OpenAIOption{
			visionmodel.WithImageDetail(x.detail),
			visionmodel.WithOpenAIRateLimit(x.rps, x.burst),
		}
		if x.model != "" {
			opts = append(opts, visionmodel.WithOpenAIModel(x.model))
		}
		if x.baseURL != "" {
			opts = append(opts, visionmodel.WithOpenAIBaseURL(x.baseURL))
		}
		client, err := visionmodel.NewOpenAI(x.apiKey, opts...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create OpenAI vision client")
		}
		return client, nil

	case "anthropic":
		opts := []visionmodel.AnthropicOption{
			visionmodel.WithAnthropicRateLimit(x.rps, x.burst),
		}
		if x.model != "" {
			opts = append(opts, visionmodel.WithAnthropicModel(x.model))
		}
		if x.baseURL != "" {
			opts = append(opts, visionmodel.WithAnthropicBaseURL(x.baseURL))
		}
		client, err := visionmodel.NewAnthropic(x.apiKey, opts...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create Anthropic vision client")
		}
		return client, nil

	default:
		return nil, goerr.Wrap(ErrInvalidConfig, "invalid vision provider", goerr.V("provider", x.provider))
	}
}
