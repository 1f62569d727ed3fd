package visionmodel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/mintenance/surveyor/pkg/domain/interfaces"
	"github.com/mintenance/surveyor/pkg/domain/model"
	"github.com/mintenance/surveyor/pkg/utils/logging"
	"github.com/mintenance/surveyor/pkg/utils/safe"
	"golang.org/x/time/rate"
)

const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = "gpt-4o"
	defaultMaxTokens     = 4096
	maxResponseBytes     = 8 << 20
)

// OpenAI calls an OpenAI-compatible chat completions endpoint
type OpenAI struct {
	apiKey     string
	model      string
	baseURL    string
	detail     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

var _ interfaces.VisionModel = &OpenAI{}

type OpenAIOption func(*OpenAI)

func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(c *OpenAI) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

func WithOpenAIModel(name string) OpenAIOption {
	return func(c *OpenAI) {
		c.model = name
	}
}

// WithImageDetail sets the image_url detail level (low, high, auto)
func WithImageDetail(detail string) OpenAIOption {
	return func(c *OpenAI) {
		c.detail = detail
	}
}

func WithOpenAIHTTPClient(client *http.Client) OpenAIOption {
	return func(c *OpenAI) {
		c.httpClient = client
	}
}

// WithOpenAIRateLimit limits outgoing requests to rps with the given burst
func WithOpenAIRateLimit(rps float64, burst int) OpenAIOption {
	return func(c *OpenAI) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

func NewOpenAI(apiKey string, opts ...OpenAIOption) (*OpenAI, error) {
	if apiKey == "" {
		return nil, goerr.New("OpenAI API key is required")
	}

	c := &OpenAI{
		apiKey:     apiKey,
		model:      DefaultOpenAIModel,
		baseURL:    DefaultOpenAIBaseURL,
		detail:     "high",
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type openAIRequest struct {
	Model          string                `json:"model"`
	Messages       []openAIMessage       `json:"messages"`
	Temperature    float64               `json:"temperature"`
	MaxTokens      int                   `json:"max_tokens,omitempty"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type openAIContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type openAIResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type openAIErrorEnvelope struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

func (c *OpenAI) buildRequest(req *model.VisionRequest) *openAIRequest {
	parts := []openAIContentPart{{Type: "text", Text: req.UserPrompt}}
	for _, u := range req.ImageURLs {
		parts = append(parts, openAIContentPart{
			Type:     "image_url",
			ImageURL: &openAIImageURL{URL: u, Detail: c.detail},
		})
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	body := &openAIRequest{
		Model: c.model,
		Messages: []openAIMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: parts},
		},
		Temperature: req.Temperature,
		MaxTokens:   maxTokens,
	}
	if req.JSON {
		body.ResponseFormat = &openAIResponseFormat{Type: "json_object"}
	}
	return body
}

func (c *OpenAI) Generate(ctx context.Context, req *model.VisionRequest) (*model.VisionResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, goerr.Wrap(err, "rate limiter wait failed")
		}
	}

	bodyBytes, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal chat completion request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create chat completion request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, goerr.Wrap(err, "chat completion request failed", goerr.V("model", c.model))
	}
	defer safe.Close(ctx, resp.Body)

	respBody, err := safe.ReadLimited(resp.Body, maxResponseBytes)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read chat completion response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := parseOpenAIError(resp.StatusCode, respBody)
		logging.From(ctx).Warn("vision model returned error",
			"status", resp.StatusCode,
			"code", apiErr.Code,
			"message", apiErr.Message)
		return nil, apiErr
	}

	var parsed openAIResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, goerr.Wrap(err, "failed to parse chat completion response",
			goerr.V("body", truncate(string(respBody), MaxErrorBodyLength)))
	}
	if len(parsed.Choices) == 0 {
		return nil, goerr.New("no choices in chat completion response")
	}

	out := &model.VisionResponse{
		Content: parsed.Choices[0].Message.Content,
		Model:   parsed.Model,
	}
	if parsed.Usage != nil {
		out.PromptTokens = parsed.Usage.PromptTokens
		out.CompletionTokens = parsed.Usage.CompletionTokens
	}
	return out, nil
}

func parseOpenAIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{Provider: "openai", StatusCode: statusCode}

	var envelope openAIErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		apiErr.Message = envelope.Error.Message
		apiErr.Type = envelope.Error.Type
		if envelope.Error.Code != nil {
			apiErr.Code = fmt.Sprint(envelope.Error.Code)
		}
		return apiErr
	}

	apiErr.Body = truncate(string(body), MaxErrorBodyLength)
	return apiErr
}
