package config

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/mintenance/surveyor/pkg/domain/model"
	"github.com/mintenance/surveyor/pkg/usecase"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"
)

// PolicyFile is the optional TOML file tuning the auto-validation gate and memory levels
type PolicyFile struct {
	AutoValidation AutoValidationPolicy `toml:"auto_validation"`
	MemoryLevels   []MemoryLevelPolicy  `toml:"memory_level"`
}

// AutoValidationPolicy overrides the gate thresholds. Unset keys keep their defaults.
type AutoValidationPolicy struct {
	Enabled             bool     `toml:"enabled"`
	MinConfidence       int      `toml:"min_confidence"`
	MinSafetyScore      int      `toml:"min_safety_score"`
	MaxInsuranceRisk    int      `toml:"max_insurance_risk"`
	EdgeCaseDamageTypes []string `toml:"edge_case_damage_types"`
	MinValidatedCount   int      `toml:"min_validated_count"`
}

// MemoryLevelPolicy describes one memory level. Window accepts Go durations
// plus a "d" suffix for days; empty or "0" means unbounded.
type MemoryLevelPolicy struct {
	Name       string `toml:"name"`
	Window     string `toml:"window"`
	Neighbours int    `toml:"neighbours"`
}

func defaultPolicyFile() *PolicyFile {
	av := usecase.DefaultAutoValidationConfig()
	return &PolicyFile{
		AutoValidation: AutoValidationPolicy{
			Enabled:             av.Enabled,
			MinConfidence:       av.MinConfidence,
			MinSafetyScore:      av.MinSafetyScore,
			MaxInsuranceRisk:    av.MaxInsuranceRisk,
			EdgeCaseDamageTypes: av.EdgeCaseDamageTypes,
			MinValidatedCount:   av.MinValidatedCount,
		},
	}
}

func parseWindow(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, goerr.Wrap(err, "invalid day count", goerr.V("window", s))
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, goerr.Wrap(err, "invalid duration", goerr.V("window", s))
	}
	return d, nil
}

func validPercent(v int) bool {
	return v >= 0 && v <= 100
}

// Validate checks thresholds and memory levels
func (p *PolicyFile) Validate() error {
	av := p.AutoValidation
	for name, v := range map[string]int{
		"min_confidence":     av.MinConfidence,
		"min_safety_score":   av.MinSafetyScore,
		"max_insurance_risk": av.MaxInsuranceRisk,
	} {
		if !validPercent(v) {
			return goerr.Wrap(ErrInvalidConfig, "threshold must be between 0 and 100",
				goerr.V("key", name), goerr.V("value", v))
		}
	}
	if av.MinValidatedCount < 0 {
		return goerr.Wrap(ErrInvalidConfig, "min_validated_count must not be negative",
			goerr.V("value", av.MinValidatedCount))
	}

	names := make(map[string]bool)
	for _, lv := range p.MemoryLevels {
		if lv.Name == "" {
			return goerr.Wrap(ErrInvalidConfig, "memory level name is required")
		}
		if names[lv.Name] {
			return goerr.Wrap(ErrInvalidConfig, "duplicate memory level", goerr.V("name", lv.Name))
		}
		names[lv.Name] = true

		if lv.Neighbours < 1 {
			return goerr.Wrap(ErrInvalidConfig, "memory level needs at least one neighbour",
				goerr.V("name", lv.Name), goerr.V("neighbours", lv.Neighbours))
		}
		w, err := parseWindow(lv.Window)
		if err != nil {
			return goerr.Wrap(err, "invalid memory level window", goerr.V("name", lv.Name))
		}
		if w < 0 {
			return goerr.Wrap(ErrInvalidConfig, "memory level window must not be negative", goerr.V("name", lv.Name))
		}
	}
	return nil
}

// AutoValidationConfig converts the policy to the gate configuration
func (p *PolicyFile) AutoValidationConfig() usecase.AutoValidationConfig {
	av := p.AutoValidation
	return usecase.AutoValidationConfig{
		Enabled:             av.Enabled,
		MinConfidence:       av.MinConfidence,
		MinSafetyScore:      av.MinSafetyScore,
		MaxInsuranceRisk:    av.MaxInsuranceRisk,
		EdgeCaseDamageTypes: av.EdgeCaseDamageTypes,
		MinValidatedCount:   av.MinValidatedCount,
	}
}

// MemoryLevels converts the policy levels; nil when the file defines none.
// Must only be called on a validated policy.
func (p *PolicyFile) MemoryLevels() []model.MemoryLevel {
	if len(p.MemoryLevels) == 0 {
		return nil
	}
	levels := make([]model.MemoryLevel, 0, len(p.MemoryLevels))
	for _, lv := range p.MemoryLevels {
		w, _ := parseWindow(lv.Window)
		levels = append(levels, model.MemoryLevel{Name: lv.Name, Window: w, Neighbours: lv.Neighbours})
	}
	return levels
}

// LoadPolicy loads the policy file. Keys missing from the file keep their defaults.
func LoadPolicy(path string) (*PolicyFile, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, goerr.Wrap(ErrPolicyNotFound, "policy file does not exist", goerr.V(PolicyPathKey, path))
		}
		return nil, goerr.Wrap(err, "failed to read policy file", goerr.V(PolicyPathKey, path))
	}

	policy := defaultPolicyFile()
	if err := toml.Unmarshal(data, policy); err != nil {
		return nil, goerr.Wrap(err, "failed to parse TOML policy", goerr.V(PolicyPathKey, path))
	}

	if err := policy.Validate(); err != nil {
		return nil, goerr.Wrap(err, "policy validation failed", goerr.V(PolicyPathKey, path))
	}

	return policy, nil
}

// Policy holds the CLI flags for the pipeline policy and sub-call timeouts
type Policy struct {
	path     string
	timeouts usecase.Timeouts
}

func (x *Policy) Flags() []cli.Flag {
	d := usecase.DefaultTimeouts()
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "policy",
			Usage:       "TOML file with auto-validation thresholds and memory levels",
			Category:    "Policy",
			Sources:     cli.EnvVars("SURVEYOR_POLICY"),
			Destination: &x.path,
		},
		&cli.DurationFlag{
			Name:        "detector-timeout",
			Usage:       "Deadline of the object detector call",
			Category:    "Policy",
			Value:       d.Detector,
			Sources:     cli.EnvVars("SURVEYOR_DETECTOR_TIMEOUT"),
			Destination: &x.timeouts.Detector,
		},
		&cli.DurationFlag{
			Name:        "analyzer-timeout",
			Usage:       "Deadline of the image analyzer call",
			Category:    "Policy",
			Value:       d.Analyzer,
			Sources:     cli.EnvVars("SURVEYOR_ANALYZER_TIMEOUT"),
			Destination: &x.timeouts.Analyzer,
		},
		&cli.DurationFlag{
			Name:        "model-timeout",
			Usage:       "Deadline of the vision model call",
			Category:    "Policy",
			Value:       d.Model,
			Sources:     cli.EnvVars("SURVEYOR_MODEL_TIMEOUT"),
			Destination: &x.timeouts.Model,
		},
		&cli.DurationFlag{
			Name:        "segmentation-timeout",
			Usage:       "Deadline of the segmentation refinement",
			Category:    "Policy",
			Value:       d.Segmentation,
			Sources:     cli.EnvVars("SURVEYOR_SEGMENTATION_TIMEOUT"),
			Destination: &x.timeouts.Segmentation,
		},
	}
}

func (x Policy) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("path", x.path),
		slog.Duration("detector_timeout", x.timeouts.Detector),
		slog.Duration("analyzer_timeout", x.timeouts.Analyzer),
		slog.Duration("model_timeout", x.timeouts.Model),
		slog.Duration("segmentation_timeout", x.timeouts.Segmentation),
	)
}

// Configure returns use case options for the policy file and timeouts
func (x *Policy) Configure() ([]usecase.Option, error) {
	opts := []usecase.Option{usecase.WithTimeouts(x.timeouts)}
	if x.path == "" {
		return opts, nil
	}

	policy, err := LoadPolicy(x.path)
	if err != nil {
		return nil, err
	}
	opts = append(opts, usecase.WithAutoValidation(policy.AutoValidationConfig()))
	if levels := policy.MemoryLevels(); levels != nil {
		opts = append(opts, usecase.WithMemoryLevels(levels))
	}
	return opts, nil
}
