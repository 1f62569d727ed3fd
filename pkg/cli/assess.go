package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/mintenance/surveyor/pkg/domain/model"
	"github.com/mintenance/surveyor/pkg/domain/types"
	"github.com/mintenance/surveyor/pkg/service/metrics"
	"github.com/mintenance/surveyor/pkg/usecase"
	"github.com/urfave/cli/v3"
)

func cmdAssess() *cli.Command {
	var images []string
	var actx model.AssessmentContext
	var propertyAge int64
	var record bool
	var quiet bool
	var pipelineCfg pipelineConfig

	flags := []cli.Flag{
		&cli.StringSliceFlag{
			Name:     "image",
			Aliases:  []string{"i"},
			Usage:    "Image URL to assess (repeatable)",
			Required: true,
		},
		&cli.StringFlag{
			Name:        "property-type",
			Usage:       "Property type (house, flat, commercial, ...)",
			Destination: &actx.PropertyType,
		},
		&cli.StringFlag{
			Name:        "location",
			Usage:       "Where in the property the images were taken",
			Destination: &actx.Location,
		},
		&cli.Int64Flag{
			Name:        "property-age",
			Usage:       "Property age in years",
			Destination: &propertyAge,
		},
		&cli.StringFlag{
			Name:        "details",
			Usage:       "Free-text description from the homeowner",
			Destination: &actx.Details,
		},
		&cli.BoolFlag{
			Name:        "record",
			Usage:       "Persist the assessment and run the auto-validation gate",
			Destination: &record,
		},
		&cli.BoolFlag{
			Name:        "quiet",
			Aliases:     []string{"q"},
			Usage:       "Do not print the summary to stderr",
			Destination: &quiet,
		},
	}
	flags = append(flags, pipelineCfg.Flags()...)

	return &cli.Command{
		Name:    "assess",
		Aliases: []string{"a"},
		Usage:   "Assess building damage in images and print the result as JSON",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			images = c.StringSlice("image")
			actx.PropertyAge = int(propertyAge)

			recorder := metrics.New()
			pl, err := pipelineCfg.Configure(ctx, "", recorder)
			if err != nil {
				return err
			}
			defer pl.Close()

			var output any
			var assessment *model.Assessment
			var decision *usecase.Decision

			if record {
				rec, d, err := pl.uc.Assessment.AssessAndRecord(ctx, images, &actx)
				if err != nil {
					return goerr.Wrap(err, "assessment failed")
				}
				output, assessment, decision = rec, rec.Assessment, &d
			} else {
				a, err := pl.uc.Assessment.AssessDamage(ctx, images, &actx)
				if err != nil {
					return goerr.Wrap(err, "assessment failed")
				}
				output, assessment = a, a
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(output); err != nil {
				return goerr.Wrap(err, "failed to write assessment")
			}

			if !quiet {
				printSummary(os.Stderr, assessment, decision)
			}
			return nil
		},
	}
}

func severityColor(s types.Severity) *color.Color {
	switch s {
	case types.SeverityFull:
		return color.New(color.FgRed, color.Bold)
	case types.SeverityMidway:
		return color.New(color.FgYellow, color.Bold)
	default:
		return color.New(color.FgGreen, color.Bold)
	}
}

func urgencyColor(u types.Urgency) *color.Color {
	switch u {
	case types.UrgencyImmediate, types.UrgencyUrgent:
		return color.New(color.FgRed)
	case types.UrgencySoon:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgCyan)
	}
}

// printSummary writes a short human readable digest of the assessment
func printSummary(w io.Writer, a *model.Assessment, decision *usecase.Decision) {
	if a == nil {
		return
	}
	bold := color.New(color.Bold)
	faint := color.New(color.Faint)

	_, _ = bold.Fprintf(w, "%s ", a.Damage.DamageType)
	_, _ = severityColor(a.Damage.Severity).Fprintf(w, "[%s]", a.Damage.Severity)
	_, _ = fmt.Fprintf(w, " confidence %d%%\n", a.Damage.Confidence)

	_, _ = fmt.Fprint(w, "  urgency:   ")
	_, _ = urgencyColor(a.Urgency.Urgency).Fprintln(w, a.Urgency.Urgency)
	_, _ = fmt.Fprintf(w, "  priority:  %d\n", a.PriorityScore)
	_, _ = fmt.Fprintf(w, "  safety:    %d", a.Safety.OverallSafetyScore)
	if a.Safety.HasCriticalHazards {
		_, _ = color.New(color.FgRed, color.Bold).Fprint(w, " CRITICAL HAZARD")
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "  insurance: %d (%s)\n", a.Insurance.RiskScore, a.Insurance.PremiumImpact)
	_, _ = fmt.Fprintf(w, "  compliance: %d", a.Compliance.ComplianceScore)
	if a.Compliance.RequiresProfessionalInspection {
		_, _ = color.New(color.FgYellow).Fprint(w, " inspection required")
	}
	_, _ = fmt.Fprintln(w)
	_, _ = faint.Fprintf(w, "  evidence:  %d detections, features %s\n",
		len(a.Evidence.Detections), a.Evidence.FeatureSource)

	if decision != nil {
		if decision.CanAutoValidate {
			_, _ = color.New(color.FgGreen).Fprintln(w, "  auto-validated")
		} else {
			_, _ = color.New(color.FgYellow).Fprintf(w, "  needs review: %s\n", decision.Reason)
		}
	}
}
