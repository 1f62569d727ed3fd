package config

import (
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/mintenance/surveyor/pkg/domain/interfaces"
	"github.com/mintenance/surveyor/pkg/service/slack"
	"github.com/urfave/cli/v3"
)

// Slack holds configuration for reviewer notifications
type Slack struct {
	botToken  string
	channelID string
	apiURL    string
}

func (x *Slack) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-bot-token",
			Usage:       "Slack Bot User OAuth Token (review notifications are disabled when empty)",
			Category:    "Slack",
			Destination: &x.botToken,
			Sources:     cli.EnvVars("SURVEYOR_SLACK_BOT_TOKEN"),
		},
		&cli.StringFlag{
			Name:        "slack-channel-id",
			Usage:       "Slack channel ID receiving review requests",
			Category:    "Slack",
			Destination: &x.channelID,
			Sources:     cli.EnvVars("SURVEYOR_SLACK_CHANNEL_ID"),
		},
		&cli.StringFlag{
			Name:        "slack-api-url",
			Usage:       "Override the Slack API URL",
			Category:    "Slack",
			Destination: &x.apiURL,
			Sources:     cli.EnvVars("SURVEYOR_SLACK_API_URL"),
		},
	}
}

func (x Slack) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("bot-token.len", len(x.botToken)),
		slog.String("channel-id", x.channelID),
	)
}

// BotToken returns the Slack bot token
func (x *Slack) BotToken() string {
	return x.botToken
}

// IsConfigured checks if Slack configuration is complete
func (x *Slack) IsConfigured() bool {
	return x.botToken != "" && x.channelID != ""
}

// Configure creates the review notifier. Returns nil when Slack is not configured.
// baseURL is used to link notifications to the assessment API.
func (x *Slack) Configure(baseURL string) (interfaces.ReviewNotifier, error) {
	if x.botToken == "" && x.channelID == "" {
		return nil, nil
	}
	if !x.IsConfigured() {
		return nil, goerr.Wrap(ErrMissingSetting, "both slack-bot-token and slack-channel-id are required",
			goerr.V(FlagKey, "slack-channel-id"))
	}

	var opts []slack.Option
	if x.apiURL != "" {
		opts = append(opts, slack.WithAPIURL(x.apiURL))
	}
	svc, err := slack.New(x.botToken, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize slack service")
	}
	return slack.NewReviewNotifier(svc, x.channelID, baseURL), nil
}
