package slack_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/mintenance/surveyor/pkg/domain/model"
	"github.com/mintenance/surveyor/pkg/domain/types"
	"github.com/mintenance/surveyor/pkg/service/slack"
)

func TestNew(t *testing.T) {
	t.Run("returns error when token is empty", func(t *testing.T) {
		_, err := slack.New("")
		gt.Value(t, err).NotNil()
	})

	t.Run("creates service when token is provided", func(t *testing.T) {
		svc, err := slack.New("test-token")
		gt.NoError(t, err).Required()
		gt.Value(t, svc).NotNil()
	})
}

func TestTruncateToMaxBytes(t *testing.T) {
	gt.Value(t, slack.TruncateToMaxBytes("hello", 10)).Equal("hello")
	gt.Value(t, slack.TruncateToMaxBytes("hello", 3)).Equal("hel")
	// "é" is two bytes; cutting inside it drops the whole rune
	gt.Value(t, slack.TruncateToMaxBytes("café", 4)).Equal("caf")
}

func testRecord() *model.AssessmentRecord {
	return &model.AssessmentRecord{
		ID:        "a-1",
		ImageURLs: []string{"https://img.example.com/1.jpg", "https://img.example.com/2.jpg"},
		Assessment: &model.Assessment{
			Damage: model.DamageAssessment{
				DamageType:  types.DamageTypeStructuralFailure,
				Severity:    types.SeverityFull,
				Confidence:  93,
				Description: "Load-bearing wall displaced",
			},
			Urgency:       model.UrgencyAssessment{Urgency: types.UrgencyImmediate},
			PriorityScore: 97,
		},
	}
}

func TestReviewNotifier(t *testing.T) {
	var form string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.Bool(t, strings.HasSuffix(r.URL.Path, "chat.postMessage")).True()
		gt.NoError(t, r.ParseForm()).Required()
		form = r.Form.Get("blocks") + "|" + r.Form.Get("channel") + "|" + r.Form.Get("text")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok": true, "channel": "C123", "ts": "1700000000.000100"}`))
	}))
	defer srv.Close()

	svc, err := slack.New("xoxb-test", slack.WithAPIURL(srv.URL+"/"))
	gt.NoError(t, err).Required()

	notifier := slack.NewReviewNotifier(svc, "C123", "https://surveyor.example.com")
	err = notifier.NotifyReviewRequired(context.Background(), testRecord(), `damage type "structural_failure" matches edge case "structural_failure"`)
	gt.NoError(t, err).Required()

	gt.String(t, form).Contains("C123")
	gt.String(t, form).Contains("Assessment needs review")
	gt.String(t, form).Contains("structural_failure")
	gt.String(t, form).Contains("https://surveyor.example.com/api/v1/assessments/a-1")
}

func TestReviewNotifier_PostFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok": false, "error": "channel_not_found"}`))
	}))
	defer srv.Close()

	svc, err := slack.New("xoxb-test", slack.WithAPIURL(srv.URL+"/"))
	gt.NoError(t, err).Required()

	err = slack.NewReviewNotifier(svc, "C404", "").NotifyReviewRequired(context.Background(), testRecord(), "reason")
	gt.Error(t, err)
}

func TestBuildReviewBlocks(t *testing.T) {
	record := testRecord()
	for i := 0; i < 6; i++ {
		record.ImageURLs = append(record.ImageURLs, "https://img.example.com/x.jpg")
	}

	blocks, text := slack.BuildReviewBlocks(record, "confidence 60 below minimum 90", "")
	gt.String(t, text).Contains("a-1")
	gt.String(t, text).Contains("confidence 60 below minimum 90")
	// header, summary, description, images, context
	gt.Array(t, blocks).Length(5)
}

func TestIntegration(t *testing.T) {
	token := os.Getenv("TEST_SLACK_BOT_TOKEN")
	channelID := os.Getenv("TEST_SLACK_CHANNEL_ID")
	if token == "" || channelID == "" {
		t.Skip("TEST_SLACK_BOT_TOKEN or TEST_SLACK_CHANNEL_ID is not set")
	}

	svc, err := slack.New(token)
	gt.NoError(t, err).Required()

	err = slack.NewReviewNotifier(svc, channelID, "").NotifyReviewRequired(context.Background(), testRecord(), "integration test")
	gt.NoError(t, err)
}
