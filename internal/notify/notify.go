// Package notify posts run summaries to a chat webhook.
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

	"nextmeeting/internal/model"
	"nextmeeting/internal/retry"
)

// Notifier delivers the outcome of a run.
type Notifier interface {
	Notify(ctx context.Context, report *model.RunReport) error
}

// Webhook posts Slack-compatible {"text": ...} messages.
type Webhook struct {
	url    string
	client *http.Client
	policy retry.Policy
}

// NewWebhook creates a notifier for url. A nil client means http.DefaultClient.
func NewWebhook(url string, client *http.Client, policy retry.Policy) *Webhook {
	if client == nil {
		client = http.DefaultClient
	}
	return &Webhook{url: url, client: client, policy: policy}
}

// Notify sends the success or error message for report.
func (w *Webhook) Notify(ctx context.Context, report *model.RunReport) error {
	text := SuccessMessage(report)
	if report.Failed() {
		text = ErrorMessage(report)
	}
	return w.Send(ctx, text)
}

// Send posts a raw message.
func (w *Webhook) Send(ctx context.Context, text string) error {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return err
	}

	return retry.Do(ctx, "notify", w.policy, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
		if err != nil {
			return retry.Permanent(fmt.Errorf("creating request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := w.client.Do(req)
		if err != nil {
			return fmt.Errorf("posting webhook: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			io.Copy(io.Discard, resp.Body)
			return nil
		}

		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err = fmt.Errorf("webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return retry.Permanent(err)
		}
		return err
	})
}

// SuccessMessage summarizes a run without errors.
func SuccessMessage(r *model.RunReport) string {
	meetings := 0
	for _, s := range r.Sites {
		meetings += s.Meetings
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Meeting schedules regenerated: %d sites, %d meetings (run %s, %s).",
		len(r.Sites), meetings, r.RunID, r.FinishedAt.Sub(r.StartedAt).Round(100*time.Millisecond))
	for _, s := range r.Sites {
		fmt.Fprintf(&b, "\n• %s: %d meetings", s.Name, s.Meetings)
		if s.Skipped > 0 {
			fmt.Fprintf(&b, ", %d rows skipped", s.Skipped)
		}
	}
	return b.String()
}

// ErrorMessage names every failed site and job-level error.
func ErrorMessage(r *model.RunReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Meeting schedule regeneration failed (run %s):", r.RunID)
	for _, e := range r.Errors {
		fmt.Fprintf(&b, "\n• %s", e)
	}
	ok := 0
	for _, s := range r.Sites {
		if s.Error == "" {
			ok++
		}
	}
	fmt.Fprintf(&b, "\n%d of %d sites published.", ok, len(r.Sites))
	return b.String()
}
