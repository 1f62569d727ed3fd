package visionmodel_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/m-mizutani/gt"
	"github.com/mintenance/surveyor/pkg/domain/model"
	"github.com/mintenance/surveyor/pkg/service/visionmodel"
)

func newVisionRequest() *model.VisionRequest {
	return &model.VisionRequest{
		SystemPrompt: "you are a surveyor",
		UserPrompt:   "assess this",
		ImageURLs:    []string{"https://img.example.com/a.jpg", "https://img.example.com/b.jpg"},
		Temperature:  0.1,
		JSON:         true,
	}
}

func TestOpenAI_Generate(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.Value(t, r.URL.Path).Equal("/chat/completions")
		gt.Value(t, r.Header.Get("Authorization")).Equal("Bearer sk-test")
		body, _ := io.ReadAll(r.Body)
		gt.NoError(t, json.Unmarshal(body, &captured)).Required()

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"model": "gpt-4o-2024",
			"choices": [{"message": {"content": "{\"damage_assessment\":{}}"}}],
			"usage": {"prompt_tokens": 1200, "completion_tokens": 300}
		}`))
	}))
	defer srv.Close()

	client, err := visionmodel.NewOpenAI("sk-test", visionmodel.WithOpenAIBaseURL(srv.URL))
	gt.NoError(t, err).Required()

	resp, err := client.Generate(context.Background(), newVisionRequest())
	gt.NoError(t, err).Required()
	gt.Value(t, resp.Content).Equal(`{"damage_assessment":{}}`)
	gt.Value(t, resp.Model).Equal("gpt-4o-2024")
	gt.Value(t, resp.PromptTokens).Equal(1200)
	gt.Value(t, resp.CompletionTokens).Equal(300)

	gt.Value(t, captured["temperature"]).Equal(0.1)
	format, ok := captured["response_format"].(map[string]any)
	gt.Bool(t, ok).True()
	gt.Value(t, format["type"]).Equal("json_object")

	messages := captured["messages"].([]any)
	gt.Array(t, messages).Length(2)
	user := messages[1].(map[string]any)
	parts := user["content"].([]any)
	gt.Array(t, parts).Length(3)
	gt.Value(t, parts[1].(map[string]any)["type"]).Equal("image_url")
}

func TestOpenAI_Generate_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid image URL","type":"invalid_request_error","code":"invalid_image_url"}}`))
	}))
	defer srv.Close()

	client, err := visionmodel.NewOpenAI("sk-test", visionmodel.WithOpenAIBaseURL(srv.URL))
	gt.NoError(t, err).Required()

	_, err = client.Generate(context.Background(), newVisionRequest())
	var apiErr *visionmodel.APIError
	gt.Bool(t, errors.As(err, &apiErr)).True()
	gt.Value(t, apiErr.StatusCode).Equal(http.StatusBadRequest)
	gt.Value(t, apiErr.Code).Equal("invalid_image_url")
	gt.Value(t, apiErr.Message).Equal("Invalid image URL")
	gt.String(t, err.Error()).Contains("invalid_image_url")
}

func TestOpenAI_Generate_UnparseableError(t *testing.T) {
	body := strings.Repeat("x", 2000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	client, err := visionmodel.NewOpenAI("sk-test", visionmodel.WithOpenAIBaseURL(srv.URL))
	gt.NoError(t, err).Required()

	_, err = client.Generate(context.Background(), newVisionRequest())
	var apiErr *visionmodel.APIError
	gt.Bool(t, errors.As(err, &apiErr)).True()
	gt.Value(t, len(apiErr.Body)).Equal(visionmodel.MaxErrorBodyLength)
	gt.Value(t, apiErr.Code).Equal("")
}

func TestOpenAI_Generate_UnparseableErrorKeepsValidUTF8(t *testing.T) {
	// 499 ASCII bytes then a 3-byte rune straddling the length bound
	body := strings.Repeat("x", visionmodel.MaxErrorBodyLength-1) + strings.Repeat("漏", 10)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	client, err := visionmodel.NewOpenAI("sk-test", visionmodel.WithOpenAIBaseURL(srv.URL))
	gt.NoError(t, err).Required()

	_, err = client.Generate(context.Background(), newVisionRequest())
	var apiErr *visionmodel.APIError
	gt.Bool(t, errors.As(err, &apiErr)).True()
	gt.Bool(t, utf8.ValidString(apiErr.Body)).True()
	gt.Value(t, len(apiErr.Body)).Equal(visionmodel.MaxErrorBodyLength - 1)
}

func TestNewOpenAI_RequiresKey(t *testing.T) {
	_, err := visionmodel.NewOpenAI("")
	gt.Error(t, err)
}
