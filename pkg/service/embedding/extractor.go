package embedding

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/mintenance/surveyor/pkg/domain/interfaces"
	"github.com/mintenance/surveyor/pkg/domain/model"
)

var (
	ErrNotInitialized   = goerr.New("learned extractor is not initialized")
	ErrInvalidEmbedding = goerr.New("embedding has unexpected shape")
)

// Extractor derives feature vectors from a text description of the request
// embedded by an LLM provider.
type Extractor struct {
	llm         gollem.LLMClient
	initialized bool
}

var _ interfaces.LearnedExtractor = &Extractor{}

func New(llm gollem.LLMClient) *Extractor {
	return &Extractor{llm: llm}
}

// Initialize probes the provider once and checks it honours the feature dimension
func (x *Extractor) Initialize(ctx context.Context) error {
	if x.llm == nil {
		return goerr.New("LLM client is not configured")
	}
	if _, err := x.embed(ctx, "building damage assessment"); err != nil {
		return goerr.Wrap(err, "failed to probe embedding provider")
	}
	x.initialized = true
	return nil
}

func (x *Extractor) Extract(ctx context.Context, input *model.FeatureInput) (model.FeatureVector, error) {
	if !x.initialized {
		return model.FeatureVector{}, ErrNotInitialized
	}

	raw, err := x.embed(ctx, Describe(input))
	if err != nil {
		return model.FeatureVector{}, err
	}
	return Normalize(raw)
}

func (x *Extractor) embed(ctx context.Context, text string) ([]float64, error) {
	embeddings, err := x.llm.GenerateEmbedding(ctx, model.FeatureDimension, []string{text})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate embedding")
	}
	if len(embeddings) == 0 || len(embeddings[0]) != model.FeatureDimension {
		got := 0
		if len(embeddings) > 0 {
			got = len(embeddings[0])
		}
		return nil, goerr.Wrap(ErrInvalidEmbedding, "embedding dimension mismatch",
			goerr.V("expected", model.FeatureDimension),
			goerr.V("actual", got))
	}
	return embeddings[0], nil
}

// Normalize L2-normalizes raw and maps each component from [-1,1] onto [0,1],
// so learned vectors share the scale of handcrafted ones.
func Normalize(raw []float64) (model.FeatureVector, error) {
	if len(raw) != model.FeatureDimension {
		return model.FeatureVector{}, goerr.Wrap(ErrInvalidEmbedding, "embedding dimension mismatch",
			goerr.V("actual", len(raw)))
	}

	var norm float64
	for _, v := range raw {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return model.FeatureVector{}, goerr.Wrap(ErrInvalidEmbedding, "embedding has non-finite component")
		}
		norm += v * v
	}
	if norm == 0 {
		return model.FeatureVector{}, goerr.Wrap(ErrInvalidEmbedding, "embedding has zero norm")
	}
	norm = math.Sqrt(norm)

	scaled := make([]float64, len(raw))
	for i, v := range raw {
		scaled[i] = (v/norm + 1) / 2
	}
	return model.NewFeatureVector(scaled), nil
}

// Describe renders the request as stable text for embedding.
// Identical inputs always produce identical text.
func Describe(input *model.FeatureInput) string {
	var b strings.Builder
	b.WriteString("Property damage assessment request.\n")

	if input == nil {
		return b.String()
	}

	if c := input.Context; c != nil {
		if c.PropertyType != "" {
			fmt.Fprintf(&b, "Property type: %s.\n", c.PropertyType)
		}
		if c.PropertyAge > 0 {
			fmt.Fprintf(&b, "Property age: %d years.\n", c.PropertyAge)
		}
		if c.Location != "" {
			fmt.Fprintf(&b, "Location: %s.\n", c.Location)
		}
		if c.Details != "" {
			fmt.Fprintf(&b, "Details: %s\n", c.Details)
		}
	}
	fmt.Fprintf(&b, "Images: %d.\n", len(input.ImageURLs))

	if len(input.Detections) > 0 {
		counts := map[string]int{}
		for _, d := range input.Detections {
			counts[strings.ToLower(d.ClassName)]++
		}
		classes := make([]string, 0, len(counts))
		for c := range counts {
			classes = append(classes, c)
		}
		sort.Strings(classes)
		parts := make([]string, len(classes))
		for i, c := range classes {
			parts[i] = fmt.Sprintf("%s x%d", c, counts[c])
		}
		fmt.Fprintf(&b, "Detected: %s.\n", strings.Join(parts, ", "))
	}

	if v := input.Vision; v != nil {
		if len(v.Labels) > 0 {
			fmt.Fprintf(&b, "Labels: %s.\n", strings.Join(v.Labels, ", "))
		}
		if len(v.Objects) > 0 {
			fmt.Fprintf(&b, "Objects: %s.\n", strings.Join(v.Objects, ", "))
		}
		if len(v.Features) > 0 {
			fmt.Fprintf(&b, "Features: %s.\n", strings.Join(v.Features, ", "))
		}
	}

	if p := input.Prior; p != nil {
		fmt.Fprintf(&b, "Previous finding: %s, %s severity.\n", p.Damage.DamageType, p.Damage.Severity)
	}

	return b.String()
}
