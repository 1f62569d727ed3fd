package detector

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
	"github.com/mintenance/surveyor/pkg/utils/safe"
)

const (
	DefaultConfidenceThreshold = 0.25
	maxResponseBytes           = 4 << 20
	maxErrorBodyLength         = 500
)

// Client calls a YOLO inference service over HTTP
type Client struct {
	baseURL    string
	threshold  float64
	httpClient *http.Client
}

var _ interfaces.ObjectDetector = &Client{}

type Option func(*Client)

// WithConfidenceThreshold sets the minimum confidence (0-1) the service should return
func WithConfidenceThreshold(threshold float64) Option {
	return func(c *Client) {
		c.threshold = threshold
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, goerr.New("detector URL is required")
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		threshold:  DefaultConfidenceThreshold,
		httpClient: &http.Client{Timeout: time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type detectRequest struct {
	ImageURLs           []string `json:"image_urls"`
	ConfidenceThreshold float64  `json:"confidence_threshold"`
}

type detectResponse struct {
	Detections []struct {
		ClassName  string    `json:"class_name"`
		Confidence float64   `json:"confidence"` // 0-1
		BBox       []float64 `json:"bbox"`       // x, y, width, height normalized
		ImageIndex int       `json:"image_index"`
	} `json:"detections"`
}

func (c *Client) Detect(ctx context.Context, imageURLs []string) ([]model.Detection, error) {
	body, err := json.Marshal(detectRequest{ImageURLs: imageURLs, ConfidenceThreshold: c.threshold})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal detect request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/detect", bytes.NewReader(body))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create detect request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "detect request failed", goerr.V("url", c.baseURL))
	}
	defer safe.Close(ctx, resp.Body)

	respBody, err := safe.ReadLimited(resp.Body, maxResponseBytes)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read detect response")
	}
	if resp.StatusCode != http.StatusOK {
		msg := string(respBody)
		if len(msg) > maxErrorBodyLength {
			msg = msg[:maxErrorBodyLength]
		}
		return nil, goerr.New(fmt.Sprintf("detector returned status %d", resp.StatusCode),
			goerr.V("status", resp.StatusCode),
			goerr.V("body", msg))
	}

	var parsed detectResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, goerr.Wrap(err, "failed to parse detect response")
	}

	detections := make([]model.Detection, 0, len(parsed.Detections))
	for _, d := range parsed.Detections {
		det := model.Detection{
			ClassName:  d.ClassName,
			Confidence: model.Clamp01(d.Confidence) * 100,
			ImageIndex: d.ImageIndex,
		}
		if len(d.BBox) == 4 {
			det.Region = model.Region{
				X:      model.Clamp01(d.BBox[0]),
				Y:      model.Clamp01(d.BBox[1]),
				Width:  model.Clamp01(d.BBox[2]),
				Height: model.Clamp01(d.BBox[3]),
			}
		}
		detections = append(detections, det)
	}
	return detections, nil
}
