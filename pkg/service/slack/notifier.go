package slack

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/mintenance/surveyor/pkg/domain/interfaces"
	"github.com/mintenance/surveyor/pkg/domain/model"
	"github.com/slack-go/slack"
)

const (
	// maxSectionTextBytes is the Slack limit for section text
	maxSectionTextBytes = 3000
	maxLinkedImages     = 4
)

// ReviewNotifier posts assessments that need a human reviewer to a channel
type ReviewNotifier struct {
	svc       Service
	channelID string
	baseURL   string
}

var _ interfaces.ReviewNotifier = &ReviewNotifier{}

// NewReviewNotifier creates a notifier. baseURL, when set, is used to link to the record API.
func NewReviewNotifier(svc Service, channelID, baseURL string) *ReviewNotifier {
	return &ReviewNotifier{
		svc:       svc,
		channelID: channelID,
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

func (n *ReviewNotifier) NotifyReviewRequired(ctx context.Context, record *model.AssessmentRecord, reason string) error {
	blocks, text := BuildReviewBlocks(record, reason, n.baseURL)
	if _, err := n.svc.PostMessage(ctx, n.channelID, blocks, text); err != nil {
		return goerr.Wrap(err, "failed to notify reviewers", goerr.V("id", record.ID))
	}
	return nil
}

// BuildReviewBlocks renders the review request message and its fallback text
func BuildReviewBlocks(record *model.AssessmentRecord, reason, baseURL string) ([]slack.Block, string) {
	a := record.Assessment
	if a == nil {
		a = &model.Assessment{}
	}

	text := fmt.Sprintf("Assessment %s needs review: %s", record.ID, reason)

	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, "Assessment needs review", false, false)),
		slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, truncateToMaxBytes("*Reason:* "+reason, maxSectionTextBytes), false, false),
			[]*slack.TextBlockObject{
				mrkdwnField("Damage type", string(a.Damage.DamageType)),
				mrkdwnField("Severity", string(a.Damage.Severity)),
				mrkdwnField("Confidence", fmt.Sprintf("%d%%", a.Damage.Confidence)),
				mrkdwnField("Urgency", string(a.Urgency.Urgency)),
				mrkdwnField("Priority", fmt.Sprintf("%d", a.PriorityScore)),
				mrkdwnField("Safety score", fmt.Sprintf("%d", a.Safety.OverallSafetyScore)),
			},
			nil,
		),
	}

	if a.Damage.Description != "" {
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, truncateToMaxBytes(a.Damage.Description, maxSectionTextBytes), false, false),
			nil, nil,
		))
	}

	var links []string
	for i, u := range record.ImageURLs {
		if i >= maxLinkedImages {
			break
		}
		links = append(links, fmt.Sprintf("<%s|image %d>", u, i+1))
	}
	if len(links) > 0 {
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, strings.Join(links, "  "), false, false),
			nil, nil,
		))
	}

	idText := fmt.Sprintf("ID: `%s`", record.ID)
	if baseURL != "" {
		idText = fmt.Sprintf("ID: <%s/api/v1/assessments/%s|%s>", baseURL, record.ID, record.ID)
	}
	blocks = append(blocks, slack.NewContextBlock("",
		slack.NewTextBlockObject(slack.MarkdownType, idText, false, false),
	))

	return blocks, text
}

func mrkdwnField(label, value string) *slack.TextBlockObject {
	if value == "" {
		value = "-"
	}
	return slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*%s*\n%s", label, value), false, false)
}
