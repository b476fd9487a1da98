package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

// AlertConfig holds alerting configuration.
type AlertConfig struct {
	// WebhookURL is a generic webhook endpoint (Slack, Discord, or custom)
	WebhookURL string
	// WebhookType determines the payload format: "slack", "discord", or "generic"
	WebhookType string
	// Enabled controls whether alerts are sent
	Enabled bool
	// MinFailuresBeforeAlert is the consecutive refresh failure threshold
	// before a failure alert is sent
	MinFailuresBeforeAlert int
	// Timeout for HTTP requests
	Timeout time.Duration
}

// DefaultAlertConfig returns config from environment variables.
func DefaultAlertConfig() AlertConfig {
	cfg := AlertConfig{
		WebhookURL:             os.Getenv("ALERT_WEBHOOK_URL"),
		WebhookType:            os.Getenv("ALERT_WEBHOOK_TYPE"),
		MinFailuresBeforeAlert: 1,
		Timeout:                10 * time.Second,
	}

	cfg.Enabled = cfg.WebhookURL != ""

	if cfg.WebhookType == "" {
		// Auto-detect from URL
		if strings.Contains(cfg.WebhookURL, "slack.com") {
			cfg.WebhookType = "slack"
		} else if strings.Contains(cfg.WebhookURL, "discord.com") {
			cfg.WebhookType = "discord"
		} else {
			cfg.WebhookType = "generic"
		}
	}

	if v := os.Getenv("ALERT_MIN_FAILURES"); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil && n > 0 {
			cfg.MinFailuresBeforeAlert = n
		}
	}

	return cfg
}

// Alerter sends alerts to configured webhooks.
type Alerter struct {
	cfg    AlertConfig
	client *http.Client
}

// NewAlerter creates a new alerter instance.
func NewAlerter(cfg AlertConfig) *Alerter {
	return &Alerter{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// RefreshAlert reports consecutive failed refresh cycles for an account.
type RefreshAlert struct {
	Account      string
	Error        string
	FailureCount int
	Duration     time.Duration
	Timestamp    time.Time
}

// LowTankAlert reports a tank level at or below the configured threshold.
type LowTankAlert struct {
	Account          string
	TankLevelPct     int
	ThresholdPct     int
	GallonsRemaining float64
	DaysUntilEmpty   int
	Timestamp        time.Time
}

// SendRefreshAlert sends an alert about failing refresh cycles.
func (a *Alerter) SendRefreshAlert(ctx context.Context, alert RefreshAlert) error {
	if !a.cfg.Enabled {
		log.Printf("alerting: alerts disabled, skipping")
		return nil
	}

	if alert.FailureCount < a.cfg.MinFailuresBeforeAlert {
		log.Printf("alerting: %d failures below threshold (%d), skipping",
			alert.FailureCount, a.cfg.MinFailuresBeforeAlert)
		return nil
	}

	var payload []byte
	var err error

	switch a.cfg.WebhookType {
	case "slack":
		payload, err = a.buildSlackRefreshPayload(alert)
	case "discord":
		payload, err = a.buildDiscordRefreshPayload(alert)
	default:
		payload, err = json.Marshal(map[string]any{
			"alert_type":    "refresh_failure",
			"account":       alert.Account,
			"error":         alert.Error,
			"failure_count": alert.FailureCount,
			"duration_ms":   alert.Duration.Milliseconds(),
			"timestamp":     alert.Timestamp.Format(time.RFC3339),
		})
	}
	if err != nil {
		return fmt.Errorf("build payload: %w", err)
	}

	if err := a.post(ctx, payload); err != nil {
		return err
	}
	log.Printf("alerting: sent refresh failure alert for account %s", alert.Account)
	return nil
}

// SendLowTankAlert sends an alert about a low tank level.
func (a *Alerter) SendLowTankAlert(ctx context.Context, alert LowTankAlert) error {
	if !a.cfg.Enabled {
		log.Printf("alerting: alerts disabled, skipping")
		return nil
	}

	var payload []byte
	var err error

	switch a.cfg.WebhookType {
	case "slack":
		payload, err = a.buildSlackLowTankPayload(alert)
	case "discord":
		payload, err = a.buildDiscordLowTankPayload(alert)
	default:
		payload, err = json.Marshal(map[string]any{
			"alert_type":        "low_tank_level",
			"account":           alert.Account,
			"tank_level_pct":    alert.TankLevelPct,
			"threshold_pct":     alert.ThresholdPct,
			"gallons_remaining": alert.GallonsRemaining,
			"days_until_empty":  alert.DaysUntilEmpty,
			"timestamp":         alert.Timestamp.Format(time.RFC3339),
		})
	}
	if err != nil {
		return fmt.Errorf("build payload: %w", err)
	}

	if err := a.post(ctx, payload); err != nil {
		return err
	}
	log.Printf("alerting: sent low tank alert for account %s (%d%%)", alert.Account, alert.TankLevelPct)
	return nil
}

func (a *Alerter) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, "POST", a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func (a *Alerter) buildSlackRefreshPayload(alert RefreshAlert) ([]byte, error) {
	payload := map[string]interface{}{
		"blocks": []map[string]interface{}{
			{
				"type": "header",
				"text": map[string]string{
					"type": "plain_text",
					"text": fmt.Sprintf(":warning: Refresh Failing: %s", alert.Account),
				},
			},
			{
				"type": "section",
				"fields": []map[string]string{
					{"type": "mrkdwn", "text": fmt.Sprintf("*Consecutive Failures:*\n%d", alert.FailureCount)},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Duration:*\n%s", alert.Duration.Round(time.Millisecond))},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Error:*\n%s", alert.Error)},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Timestamp:*\n%s", alert.Timestamp.Format(time.RFC3339))},
				},
			},
		},
	}
	return json.Marshal(payload)
}

func (a *Alerter) buildDiscordRefreshPayload(alert RefreshAlert) ([]byte, error) {
	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{
			{
				"title":       fmt.Sprintf("Refresh Failing: %s", alert.Account),
				"description": fmt.Sprintf("%d consecutive refresh failures", alert.FailureCount),
				"color":       16711680, // Red
				"fields": []map[string]interface{}{
					{"name": "Error", "value": alert.Error, "inline": false},
					{"name": "Duration", "value": alert.Duration.Round(time.Millisecond).String(), "inline": true},
				},
				"timestamp": alert.Timestamp.Format(time.RFC3339),
			},
		},
	}
	return json.Marshal(payload)
}

func (a *Alerter) buildSlackLowTankPayload(alert LowTankAlert) ([]byte, error) {
	emoji := ":warning:"
	if alert.TankLevelPct <= alert.ThresholdPct/2 {
		emoji = ":x:"
	}

	payload := map[string]interface{}{
		"blocks": []map[string]interface{}{
			{
				"type": "header",
				"text": map[string]string{
					"type": "plain_text",
					"text": fmt.Sprintf("%s Low Propane Tank: %s", emoji, alert.Account),
				},
			},
			{
				"type": "section",
				"fields": []map[string]string{
					{"type": "mrkdwn", "text": fmt.Sprintf("*Level:*\n%d%% (threshold %d%%)", alert.TankLevelPct, alert.ThresholdPct)},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Remaining:*\n%.1f gal", alert.GallonsRemaining)},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Days Until Empty:*\n%d", alert.DaysUntilEmpty)},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Timestamp:*\n%s", alert.Timestamp.Format(time.RFC3339))},
				},
			},
		},
	}
	return json.Marshal(payload)
}

func (a *Alerter) buildDiscordLowTankPayload(alert LowTankAlert) ([]byte, error) {
	color := 16776960 // Yellow
	if alert.TankLevelPct <= alert.ThresholdPct/2 {
		color = 16711680 // Red
	}

	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{
			{
				"title":       fmt.Sprintf("Low Propane Tank: %s", alert.Account),
				"description": fmt.Sprintf("Tank level at %d%%, threshold %d%%", alert.TankLevelPct, alert.ThresholdPct),
				"color":       color,
				"fields": []map[string]interface{}{
					{"name": "Remaining", "value": fmt.Sprintf("%.1f gal", alert.GallonsRemaining), "inline": true},
					{"name": "Days Until Empty", "value": fmt.Sprintf("%d", alert.DaysUntilEmpty), "inline": true},
				},
				"timestamp": alert.Timestamp.Format(time.RFC3339),
			},
		},
	}
	return json.Marshal(payload)
}
