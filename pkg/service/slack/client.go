package slack

import (
	"context"
	"unicode/utf8"

	"github.com/m-mizutani/goerr/v2"
	"github.com/slack-go/slack"
)

// client implements Service interface
type client struct {
	api *slack.Client
}

// Option is a functional option for client configuration
type Option func(*clientSettings)

type clientSettings struct {
	apiURL string
}

// WithAPIURL points the client at a different Slack API base URL
func WithAPIURL(url string) Option {
	return func(s *clientSettings) {
		s.apiURL = url
	}
}

// New creates a new Slack service with the provided bot token
func New(token string, opts ...Option) (Service, error) {
	if token == "" {
		return nil, goerr.New("Slack bot token is required")
	}

	settings := &clientSettings{}
	for _, opt := range opts {
		opt(settings)
	}

	var slackOpts []slack.Option
	if settings.apiURL != "" {
		slackOpts = append(slackOpts, slack.OptionAPIURL(settings.apiURL))
	}

	return &client{api: slack.New(token, slackOpts...)}, nil
}

// PostMessage posts a Block Kit message to a channel
func (c *client) PostMessage(ctx context.Context, channelID string, blocks []slack.Block, text string) (string, error) {
	_, ts, err := c.api.PostMessageContext(ctx, channelID,
		slack.MsgOptionBlocks(blocks...),
		slack.MsgOptionText(text, false),
	)
	if err != nil {
		return "", goerr.Wrap(err, "failed to post Slack message", goerr.V("channelID", channelID))
	}
	return ts, nil
}

// truncateToMaxBytes cuts s to at most maxBytes without splitting a UTF-8 sequence
func truncateToMaxBytes(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
