package visionmodel

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/m-mizutani/goerr/v2"
	"github.com/mintenance/surveyor/pkg/domain/interfaces"
	"github.com/mintenance/surveyor/pkg/domain/model"
	"github.com/mintenance/surveyor/pkg/utils/logging"
	"golang.org/x/time/rate"
)

const DefaultAnthropicModel = "claude-sonnet-4-5"

// jsonOnlyInstruction is appended to the system prompt because the Messages API has no JSON mode
const jsonOnlyInstruction = "\n\nRespond with a single JSON object and nothing else. Do not wrap it in markdown."

// Anthropic calls the Anthropic Messages API
type Anthropic struct {
	client  anthropic.Client
	model   string
	limiter *rate.Limiter
}

var _ interfaces.VisionModel = &Anthropic{}

type AnthropicOption func(*anthropicSettings)

type anthropicSettings struct {
	model      string
	baseURL    string
	httpClient *http.Client
	rps        float64
	burst      int
}

func WithAnthropicModel(name string) AnthropicOption {
	return func(s *anthropicSettings) {
		s.model = name
	}
}

func WithAnthropicBaseURL(url string) AnthropicOption {
	return func(s *anthropicSettings) {
		s.baseURL = url
	}
}

func WithAnthropicHTTPClient(client *http.Client) AnthropicOption {
	return func(s *anthropicSettings) {
		s.httpClient = client
	}
}

func WithAnthropicRateLimit(rps float64, burst int) AnthropicOption {
	return func(s *anthropicSettings) {
		s.rps = rps
		s.burst = burst
	}
}

func NewAnthropic(apiKey string, opts ...AnthropicOption) (*Anthropic, error) {
	if apiKey == "" {
		return nil, goerr.New("Anthropic API key is required")
	}

	settings := &anthropicSettings{model: DefaultAnthropicModel}
	for _, opt := range opts {
		opt(settings)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if settings.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(settings.baseURL))
	}
	if settings.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(settings.httpClient))
	}

	c := &Anthropic{
		client: anthropic.NewClient(reqOpts...),
		model:  settings.model,
	}
	if settings.rps > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(settings.rps), settings.burst)
	}
	return c, nil
}

func (c *Anthropic) Generate(ctx context.Context, req *model.VisionRequest) (*model.VisionResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, goerr.Wrap(err, "rate limiter wait failed")
		}
	}

	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(req.ImageURLs)+1)
	for _, u := range req.ImageURLs {
		blocks = append(blocks, anthropic.NewImageBlock(anthropic.URLImageSourceParam{URL: u}))
	}
	blocks = append(blocks, anthropic.NewTextBlock(req.UserPrompt))

	system := req.SystemPrompt
	if req.JSON {
		system += jsonOnlyInstruction
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(req.Temperature),
		System: []anthropic.TextBlockParam{
			{Text: system, CacheControl: anthropic.NewCacheControlEphemeralParam()},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(blocks...),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			converted := parseAnthropicError(apiErr.StatusCode, apiErr.RawJSON())
			logging.From(ctx).Warn("vision model returned error",
				"status", converted.StatusCode,
				"type", converted.Type,
				"message", converted.Message)
			return nil, converted
		}
		return nil, goerr.Wrap(err, "anthropic messages request failed", goerr.V("model", c.model))
	}

	out := &model.VisionResponse{
		Model:            string(message.Model),
		PromptTokens:     int(message.Usage.InputTokens),
		CompletionTokens: int(message.Usage.OutputTokens),
	}
	for _, block := range message.Content {
		if block.Type == "text" {
			out.Content = block.Text
			break
		}
	}
	return out, nil
}

type anthropicErrorEnvelope struct {
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func parseAnthropicError(statusCode int, body string) *APIError {
	apiErr := &APIError{Provider: "anthropic", StatusCode: statusCode}

	var envelope anthropicErrorEnvelope
	if err := json.Unmarshal([]byte(body), &envelope); err == nil && envelope.Error != nil {
		apiErr.Type = envelope.Error.Type
		apiErr.Code = envelope.Error.Type
		apiErr.Message = envelope.Error.Message
		return apiErr
	}

	apiErr.Body = truncate(body, MaxErrorBodyLength)
	return apiErr
}
