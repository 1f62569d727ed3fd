package usecase

import (
	"bytes"
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/mintenance/surveyor/pkg/domain/model"
	"github.com/mintenance/surveyor/pkg/domain/types"
)

const (
	// MaxPromptImages caps the images attached to one model request
	MaxPromptImages = 4

	modelTemperature = 0.1
	modelMaxTokens   = 4096

	noEvidenceSummary = "No machine evidence available."
)

//go:embed prompt/assessment_system.md
var assessmentSystemPromptTmpl string

//go:embed prompt/assessment_user.md
var assessmentUserPromptTmpl string

var (
	assessmentSystemPrompt = template.Must(template.New("assessment_system").Parse(assessmentSystemPromptTmpl))
	assessmentUserPrompt   = template.Must(template.New("assessment_user").Parse(assessmentUserPromptTmpl))
)

type systemPromptData struct {
	DamageTypes []types.DamageType
}

type userPromptData struct {
	ImageCount  int
	Context     *model.AssessmentContext
	Evidence    string
	HasEvidence bool
}

// BuildSystemPrompt returns the fixed instruction describing the taxonomy and output schema
func BuildSystemPrompt() string {
	var buf bytes.Buffer
	if err := assessmentSystemPrompt.Execute(&buf, systemPromptData{DamageTypes: types.AllDamageTypes()}); err != nil {
		// the template is static; reaching here means it is broken at build time
		panic(fmt.Sprintf("assessment system prompt: %v", err))
	}
	return buf.String()
}

// SummarizeDetections groups detections by class, sorted by class name
func SummarizeDetections(detections []model.Detection) []model.DetectionClassSummary {
	byClass := make(map[string]*model.DetectionClassSummary)
	total := make(map[string]float64)
	for _, d := range detections {
		s, ok := byClass[d.ClassName]
		if !ok {
			s = &model.DetectionClassSummary{ClassName: d.ClassName}
			byClass[d.ClassName] = s
		}
		s.Count++
		total[d.ClassName] += d.Confidence
	}

	out := make([]model.DetectionClassSummary, 0, len(byClass))
	for name, s := range byClass {
		s.AverageConfidence = total[name] / float64(s.Count)
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClassName < out[j].ClassName })
	return out
}

// BuildEvidenceSummary renders detector output as text for the model
func BuildEvidenceSummary(detections []model.Detection, vision *model.VisionAnalysisSummary) string {
	var sections []string

	if len(detections) > 0 {
		var b strings.Builder
		fmt.Fprintf(&b, "Object detection found %d item(s):", len(detections))
		for _, s := range SummarizeDetections(detections) {
			fmt.Fprintf(&b, "\n- %s: %d detection(s), average confidence %.0f%%", s.ClassName, s.Count, s.AverageConfidence)
		}
		sections = append(sections, b.String())
	}

	if vision != nil {
		var b strings.Builder
		fmt.Fprintf(&b, "Image analysis (confidence %.0f%%):", vision.Confidence)
		if len(vision.Labels) > 0 {
			b.WriteString("\n- Labels: " + strings.Join(vision.Labels, ", "))
		}
		if len(vision.Objects) > 0 {
			b.WriteString("\n- Objects: " + strings.Join(vision.Objects, ", "))
		}
		if len(vision.Features) > 0 {
			b.WriteString("\n- Damage indicators: " + strings.Join(vision.Features, ", "))
		}
		sections = append(sections, b.String())
	}

	if len(sections) == 0 {
		return noEvidenceSummary
	}
	return strings.Join(sections, "\n\n")
}

// BuildUserPrompt embeds the property context and evidence summary
func BuildUserPrompt(imageCount int, actx *model.AssessmentContext, evidence string) string {
	data := userPromptData{
		ImageCount:  imageCount,
		Evidence:    evidence,
		HasEvidence: evidence != noEvidenceSummary && evidence != "",
	}
	if !actx.IsEmpty() {
		data.Context = actx
	}
	if data.Evidence == "" {
		data.Evidence = noEvidenceSummary
	}

	var buf bytes.Buffer
	if err := assessmentUserPrompt.Execute(&buf, data); err != nil {
		panic(fmt.Sprintf("assessment user prompt: %v", err))
	}
	return buf.String()
}

// BuildVisionRequest assembles the full model request. At most MaxPromptImages images are attached.
func BuildVisionRequest(imageURLs []string, actx *model.AssessmentContext, detections []model.Detection, vision *model.VisionAnalysisSummary) *model.VisionRequest {
	images := imageURLs
	if len(images) > MaxPromptImages {
		images = images[:MaxPromptImages]
	}
	attached := make([]string, len(images))
	copy(attached, images)

	return &model.VisionRequest{
		SystemPrompt: BuildSystemPrompt(),
		UserPrompt:   BuildUserPrompt(len(attached), actx, BuildEvidenceSummary(detections, vision)),
		ImageURLs:    attached,
		Temperature:  modelTemperature,
		MaxTokens:    modelMaxTokens,
		JSON:         true,
	}
}
