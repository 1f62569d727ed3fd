package segmentation

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/mintenance/surveyor/pkg/domain/interfaces"
	"github.com/mintenance/surveyor/pkg/domain/model"
	"github.com/mintenance/surveyor/pkg/utils/logging"
	"github.com/mintenance/surveyor/pkg/utils/safe"
)

const (
	maxImageBytes    = 20 << 20
	maxResponseBytes = 64 << 20
)

// DefaultDamageTypes are used when the caller passes none
var DefaultDamageTypes = []string{"water damage", "crack", "rot", "mold"}

// Client calls a text-prompted segmentation service
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ interfaces.Segmenter = &Client{}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, goerr.New("segmentation service URL is required")
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type healthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	Service     string `json:"service"`
}

// HealthCheck reports whether the service is up with its model loaded. Errors count as unhealthy.
func (c *Client) HealthCheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logging.From(ctx).Debug("segmentation health check failed", "error", err)
		return false
	}
	defer safe.Close(ctx, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var health healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return false
	}
	return health.Status == "healthy" && health.ModelLoaded
}

type segmentResponse struct {
	Success     bool                              `json:"success"`
	DamageTypes map[string]model.SegmentationMask `json:"damage_types"`
}

func (c *Client) SegmentDamageTypes(ctx context.Context, imageURL string, damageTypes []string) (map[string]model.SegmentationMask, error) {
	if len(damageTypes) == 0 {
		damageTypes = DefaultDamageTypes
	}

	image, err := c.fetchImage(ctx, imageURL)
	if err != nil {
		return nil, err
	}

	// The service takes the image as a query parameter and the prompts as a bare JSON array body.
	body, err := json.Marshal(damageTypes)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal segmentation request")
	}
	query := url.Values{}
	query.Set("image_base64", base64.StdEncoding.EncodeToString(image))

	endpoint := c.baseURL + "/segment-damage-types?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create segmentation request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "segmentation request failed")
	}
	defer safe.Close(ctx, resp.Body)

	respBody, err := safe.ReadLimited(resp.Body, maxResponseBytes)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read segmentation response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, goerr.New(fmt.Sprintf("segmentation service returned status %d", resp.StatusCode),
			goerr.V("status", resp.StatusCode))
	}

	var parsed segmentResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, goerr.Wrap(err, "failed to parse segmentation response")
	}
	if !parsed.Success {
		return nil, goerr.New("segmentation service reported failure")
	}
	return parsed.DamageTypes, nil
}

func (c *Client) fetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create image request", goerr.V("url", imageURL))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch image", goerr.V("url", imageURL))
	}
	defer safe.Close(ctx, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, goerr.New("image fetch returned non-200",
			goerr.V("url", imageURL),
			goerr.V("status", resp.StatusCode))
	}

	data, err := safe.ReadLimited(resp.Body, maxImageBytes)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read image", goerr.V("url", imageURL))
	}
	return data, nil
}
