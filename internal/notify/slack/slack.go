// Package slack sends emergency alert notifications to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linnemanlabs/triageline/internal/triage"
)

const (
	maxFlagsLen = 2000
	httpTimeout = 10 * time.Second
)

// Notifier posts emergency alerts to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
	logger     log.Logger
}

// New creates a new Slack notifier. If webhookURL is empty, Send is a no-op.
func New(webhookURL string, logger log.Logger) *Notifier {
	if logger == nil {
		logger = log.Nop()
	}
	client := &http.Client{
		Timeout:   httpTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	return &Notifier{
		webhookURL: webhookURL,
		client:     client,
		logger:     logger,
	}
}

// Send posts an emergency alert to the configured Slack webhook.
// If no webhook URL is configured, it returns nil immediately.
func (n *Notifier) Send(ctx context.Context, a *triage.EmergencyAlert) error {
	if n.webhookURL == "" || a == nil {
		return nil
	}

	body, err := json.Marshal(buildMessage(a))
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}

	n.logger.Info(ctx, "emergency alert posted to slack", "alert_id", a.ID, "consultation_id", a.ConsultationID)
	return nil
}

func buildMessage(a *triage.EmergencyAlert) map[string]any {
	return map[string]any{
		"text": fmt.Sprintf("Emergency alert: %s", emergencyLabel(a)),
		"blocks": []map[string]any{
			headerBlock(a),
			{"type": "divider"},
			fieldsBlock(a),
			flagsBlock(a),
			{"type": "divider"},
			contextBlock(a),
		},
	}
}

func headerBlock(a *triage.EmergencyAlert) map[string]any {
	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": fmt.Sprintf("%s Emergency: %s", riskEmoji(a.RiskScore), emergencyLabel(a)),
		},
	}
}

func fieldsBlock(a *triage.EmergencyAlert) map[string]any {
	location := a.Location
	if location == "" {
		location = "_unknown_"
	}
	patient := a.PatientRef
	if patient == "" {
		patient = "_anonymous_"
	}

	fields := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Risk score:* %.1f / 10", a.RiskScore),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Language:* %s", a.Language),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Patient:* %s", patient),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Location:* %s", truncate(location, 200)),
		},
	}

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func flagsBlock(a *triage.EmergencyAlert) map[string]any {
	text := "_No emergency flags recorded._"
	if len(a.Flags) > 0 {
		text = truncate("• "+strings.Join(a.Flags, "\n• "), maxFlagsLen)
	}
	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Emergency flags*\n%s", text),
		},
	}
}

func contextBlock(a *triage.EmergencyAlert) map[string]any {
	ts := a.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	elements := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("triageline • alert %s • consultation %s • %s",
				a.ID, a.ConsultationID, ts.UTC().Format("2006-01-02 15:04 UTC")),
		},
	}

	return map[string]any{
		"type":     "context",
		"elements": elements,
	}
}

func emergencyLabel(a *triage.EmergencyAlert) string {
	if a.EmergencyType != "" {
		return a.EmergencyType
	}
	return "unspecified"
}

func riskEmoji(score float64) string {
	switch {
	case score >= 8:
		return "\U0001f534" // red circle
	case score >= 5:
		return "\U0001f7e0" // orange circle
	default:
		return "\U0001f7e1" // yellow circle
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
