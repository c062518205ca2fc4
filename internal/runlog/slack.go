package runlog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/amishk599/jobsync/internal/model"
)

var _ Sink = (*SlackSink)(nil)

// SlackSink posts a summary of each finished run to a Slack channel via an
// Incoming Webhook. Non-terminal events are ignored.
type SlackSink struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewSlackSink returns a sink that reports finished runs to Slack.
func NewSlackSink(webhookURL string, httpClient *http.Client, logger *slog.Logger) *SlackSink {
	return &SlackSink{
		webhookURL: webhookURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Emit sends terminal events. Failures are logged, never returned.
func (s *SlackSink) Emit(e Event) {
	if !e.Terminal() {
		return
	}
	if err := s.send(buildPayload(e)); err != nil {
		s.logger.Error("slack notification failed", "run_id", e.RunID, "error", err)
	}
}

// SendTest posts a dummy completed-run report to verify the webhook works.
func (s *SlackSink) SendTest() error {
	return s.send(buildPayload(Event{
		Type:     EventComplete,
		RunID:    "test-run",
		SyncType: "test",
		Source:   "jobsync",
		Time:     time.Now(),
		Stats:    &model.RunStats{Fetched: 1, Added: 1},
	}))
}

func (s *SlackSink) send(payload slackPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	resp, err := s.httpClient.Post(s.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post to slack: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		secs, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		if secs <= 0 {
			secs = 1
		}
		s.logger.Warn("slack rate limited, retrying", "retry_after_secs", secs)
		time.Sleep(time.Duration(secs) * time.Second)

		resp2, err := s.httpClient.Post(s.webhookURL, "application/json", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("post to slack (retry): %w", err)
		}
		defer resp2.Body.Close()

		if resp2.StatusCode != http.StatusOK {
			return fmt.Errorf("slack returned %d on retry", resp2.StatusCode)
		}
		return nil
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned %d", resp.StatusCode)
	}
	return nil
}

// Block Kit payload types.

type slackPayload struct {
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type   string      `json:"type"`
	Text   *slackText  `json:"text,omitempty"`
	Fields []slackText `json:"fields,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func buildPayload(e Event) slackPayload {
	title := "✅ " + capitalize(e.SyncType) + " sync complete"
	if e.Type == EventError {
		title = "❌ " + capitalize(e.SyncType) + " sync failed"
	}
	source := e.Source
	if source == "" {
		source = "all"
	}

	blocks := []slackBlock{
		{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: title},
		},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: "*Source:*\n" + source},
				{Type: "mrkdwn", Text: "*Finished:*\n" + e.Time.UTC().Format(time.RFC1123)},
			},
		},
	}

	if st := e.Stats; st != nil {
		text := fmt.Sprintf("*Fetched:* %d   *Added:* %d   *Updated:* %d   *Skipped:* %d   *Failed:* %d",
			st.Fetched, st.Added, st.Updated, st.Skipped, st.Failed)
		if st.Checked > 0 {
			text += fmt.Sprintf("\n*Checked:* %d   *Discovered:* %d   *Not found:* %d", st.Checked, st.Discovered, st.NotFound)
		}
		if st.Aborted {
			text += "\n_Run was aborted before finishing._"
		}
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: text},
		})
	}

	if e.Type == EventError && e.Message != "" {
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: "*Error:*\n```" + e.Message + "```"},
		})
	}

	return slackPayload{Blocks: blocks}
}
