// Package notify posts run summaries to a Slack incoming webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dtnitsch/llm-report-pipeline/models"
)

type Slack struct {
	webhookURL string
	client     *http.Client
}

type Option func(*Slack)

func WithHTTPClient(c *http.Client) Option {
	return func(s *Slack) { s.client = c }
}

func NewSlack(webhookURL string, opts ...Option) *Slack {
	s := &Slack{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type slackMessage struct {
	Text string `json:"text"`
}

// Notify posts a one-message summary of the run.
func (s *Slack) Notify(ctx context.Context, run models.RunRecord) error {
	body, err := json.Marshal(slackMessage{Text: Summary(run)})
	if err != nil {
		return fmt.Errorf("failed to encode slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post to slack: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack webhook returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

// Summary is the message text for a run.
func Summary(run models.RunRecord) string {
	var b strings.Builder
	if run.State == "error" {
		fmt.Fprintf(&b, ":x: %s run %s failed", run.Kind, run.ID)
		if run.FailedStage != "" {
			fmt.Fprintf(&b, " during %s", run.FailedStage)
		}
		if run.Error != "" {
			fmt.Fprintf(&b, ": %s", run.Error)
		}
	} else {
		fmt.Fprintf(&b, ":white_check_mark: %s run %s finished in %s", run.Kind, run.ID, run.Duration().Round(time.Millisecond))
	}

	if run.URL != "" {
		fmt.Fprintf(&b, "\nURL: %s", run.URL)
	}
	if n := len(run.Generations); n > 0 {
		fmt.Fprintf(&b, "\nGenerations: %d", n)
	}
	for _, a := range run.Artifacts {
		fmt.Fprintf(&b, "\n- %s (%d bytes)", a.Filename, a.SizeBytes)
	}
	return b.String()
}
