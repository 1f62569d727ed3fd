package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/mintenance/surveyor/pkg/domain/interfaces"
	"github.com/mintenance/surveyor/pkg/service/detector"
	"github.com/mintenance/surveyor/pkg/service/imageanalysis"
	"github.com/mintenance/surveyor/pkg/service/segmentation"
	"github.com/urfave/cli/v3"
	"google.golang.org/api/option"
)

// Evidence holds configuration for the machine-evidence services: object
// detection, general image analysis and segmentation
type Evidence struct {
	detectorURL       string
	detectorThreshold float64

	analyzerEnabled    bool
	analyzerAPIKey     string
	analyzerMaxResults int64

	segmentationEnabled bool
	segmentationURL     string
}

func (x *Evidence) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "detector-url",
			Usage:       "Object detection service base URL (detection is skipped when empty)",
			Category:    "Evidence",
			Sources:     cli.EnvVars("SURVEYOR_DETECTOR_URL"),
			Destination: &x.detectorURL,
		},
		&cli.FloatFlag{
			Name:        "detector-threshold",
			Usage:       "Minimum detection confidence (0-1)",
			Category:    "Evidence",
			Value:       detector.DefaultConfidenceThreshold,
			Sources:     cli.EnvVars("SURVEYOR_DETECTOR_THRESHOLD"),
			Destination: &x.detectorThreshold,
		},
		&cli.BoolFlag{
			Name:        "image-analysis",
			Usage:       "Enable Cloud Vision label and object analysis",
			Category:    "Evidence",
			Sources:     cli.EnvVars("SURVEYOR_IMAGE_ANALYSIS"),
			Destination: &x.analyzerEnabled,
		},
		&cli.StringFlag{
			Name:        "image-analysis-api-key",
			Usage:       "Cloud Vision API key (application default credentials when empty)",
			Category:    "Evidence",
			Sources:     cli.EnvVars("SURVEYOR_IMAGE_ANALYSIS_API_KEY"),
			Destination: &x.analyzerAPIKey,
		},
		&cli.Int64Flag{
			Name:        "image-analysis-max-results",
			Usage:       "Maximum labels and objects per image",
			Category:    "Evidence",
			Value:       10,
			Sources:     cli.EnvVars("SURVEYOR_IMAGE_ANALYSIS_MAX_RESULTS"),
			Destination: &x.analyzerMaxResults,
		},
		&cli.BoolFlag{
			Name:        "segmentation",
			Usage:       "Enable segmentation refinement of the primary damage type",
			Category:    "Evidence",
			Sources:     cli.EnvVars("SURVEYOR_SEGMENTATION"),
			Destination: &x.segmentationEnabled,
		},
		&cli.StringFlag{
			Name:        "segmentation-url",
			Usage:       "Segmentation service base URL",
			Category:    "Evidence",
			Sources:     cli.EnvVars("SURVEYOR_SEGMENTATION_URL"),
			Destination: &x.segmentationURL,
		},
	}
}

func (x Evidence) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("detector_url", x.detectorURL),
		slog.Bool("image_analysis", x.analyzerEnabled),
		slog.Bool("segmentation", x.segmentationEnabled),
		slog.String("segmentation_url", x.segmentationURL),
	)
}

// Detector returns the object detector, or nil when no URL is configured
func (x *Evidence) Detector() (interfaces.ObjectDetector, error) {
	if x.detectorURL == "" {
		return nil, nil
	}
	client, err := detector.New(x.detectorURL, detector.WithConfidenceThreshold(x.detectorThreshold))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create object detector")
	}
	return client, nil
}

// Analyzer returns the image analyzer, or nil when disabled
func (x *Evidence) Analyzer(ctx context.Context) (interfaces.ImageAnalyzer, error) {
	if !x.analyzerEnabled {
		return nil, nil
	}
	var clientOpts []option.ClientOption
	if x.analyzerAPIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(x.analyzerAPIKey))
	}
	client, err := imageanalysis.New(ctx, clientOpts, imageanalysis.WithMaxResults(x.analyzerMaxResults))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create image analyzer")
	}
	return client, nil
}

// Segmenter returns the segmentation client, or nil when disabled
func (x *Evidence) Segmenter() (interfaces.Segmenter, error) {
	if !x.segmentationEnabled {
		return nil, nil
	}
	if x.segmentationURL == "" {
		return nil, goerr.Wrap(ErrMissingSetting, "segmentation-url is required when segmentation is enabled",
			goerr.V(FlagKey, "segmentation-url"))
	}
	client, err := segmentation.New(x.segmentationURL)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create segmentation client")
	}
	return client, nil
}
