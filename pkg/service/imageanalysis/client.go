package imageanalysis

import (
	"context"
	"sort"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/mintenance/surveyor/pkg/domain/interfaces"
	"github.com/mintenance/surveyor/pkg/domain/model"
	"github.com/mintenance/surveyor/pkg/utils/logging"
	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"
)

const (
	defaultMaxResults = 20
	// maxImagesPerBatch is the Cloud Vision limit for URI-sourced batch requests
	maxImagesPerBatch = 16
)

// damageIndicators are label fragments surfaced as Features because they hint at damage
var damageIndicators = []string{
	"crack", "mold", "mould", "stain", "rust", "corrosion", "rot", "leak", "water",
	"damp", "fire", "soot", "debris", "damage", "peeling", "erosion", "fracture",
}

// Client summarizes images with Cloud Vision label and object detection
type Client struct {
	svc        *vision.Service
	maxResults int64
}

var _ interfaces.ImageAnalyzer = &Client{}

type Option func(*Client)

func WithMaxResults(n int64) Option {
	return func(c *Client) {
		c.maxResults = n
	}
}

// New creates a Cloud Vision client. clientOpts are passed to the API client as is,
// e.g. option.WithAPIKey or option.WithCredentialsFile.
func New(ctx context.Context, clientOpts []option.ClientOption, opts ...Option) (*Client, error) {
	svc, err := vision.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Cloud Vision service")
	}

	c := &Client{svc: svc, maxResults: defaultMaxResults}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Analyze(ctx context.Context, imageURLs []string) (*model.VisionAnalysisSummary, error) {
	if len(imageURLs) > maxImagesPerBatch {
		imageURLs = imageURLs[:maxImagesPerBatch]
	}

	req := &vision.BatchAnnotateImagesRequest{}
	for _, u := range imageURLs {
		req.Requests = append(req.Requests, &vision.AnnotateImageRequest{
			Image: &vision.Image{Source: &vision.ImageSource{ImageUri: u}},
			Features: []*vision.Feature{
				{Type: "LABEL_DETECTION", MaxResults: c.maxResults},
				{Type: "OBJECT_LOCALIZATION", MaxResults: c.maxResults},
			},
		})
	}

	resp, err := c.svc.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		return nil, goerr.Wrap(err, "Cloud Vision annotate failed", goerr.V("images", len(imageURLs)))
	}

	return summarize(ctx, resp)
}

func summarize(ctx context.Context, resp *vision.BatchAnnotateImagesResponse) (*model.VisionAnalysisSummary, error) {
	labels := map[string]float64{}
	objects := map[string]float64{}
	failed := 0

	for i, r := range resp.Responses {
		if r.Error != nil {
			failed++
			logging.From(ctx).Warn("Cloud Vision failed for image", "index", i, "message", r.Error.Message)
			continue
		}
		for _, l := range r.LabelAnnotations {
			name := strings.ToLower(l.Description)
			if l.Score > labels[name] {
				labels[name] = l.Score
			}
		}
		for _, o := range r.LocalizedObjectAnnotations {
			name := strings.ToLower(o.Name)
			if o.Score > objects[name] {
				objects[name] = o.Score
			}
		}
	}

	if len(resp.Responses) > 0 && failed == len(resp.Responses) {
		return nil, goerr.New("Cloud Vision failed for every image", goerr.V("images", failed))
	}

	summary := &model.VisionAnalysisSummary{
		Labels:  rankByScore(labels),
		Objects: rankByScore(objects),
	}

	var total float64
	for _, score := range labels {
		total += score
	}
	if len(labels) > 0 {
		summary.Confidence = total / float64(len(labels)) * 100
	}

	for _, label := range summary.Labels {
		for _, indicator := range damageIndicators {
			if strings.Contains(label, indicator) {
				summary.Features = append(summary.Features, label)
				break
			}
		}
	}

	return summary, nil
}

// rankByScore returns names ordered by descending score, then name
func rankByScore(scores map[string]float64) []string {
	names := make([]string, 0, len(scores))
	for name := range scores {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if scores[names[i]] != scores[names[j]] {
			return scores[names[i]] > scores[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}
