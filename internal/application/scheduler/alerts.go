package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/filingpulse/filingpulse/internal/domain"
)

// Default alert thresholds.
const (
	DefaultConsecutiveFailureThreshold = 3
	DefaultStaleRunThreshold           = 2 * time.Hour
	DefaultWebhookTimeout              = 10 * time.Second
)

// AlertConfig configures alert evaluation and webhook dispatch.
type AlertConfig struct {
	ConsecutiveFailureThreshold int           // Failure streak that triggers an alert (default: 3)
	StaleRunThreshold           time.Duration // Running-run age that triggers an alert (default: 2h)
	WebhookURL                  string        // Optional POST target; empty disables dispatch
	WebhookTimeout              time.Duration // Per-dispatch timeout (default: 10s)
}

// DefaultAlertConfig returns the default alert thresholds with no webhook.
func DefaultAlertConfig() AlertConfig {
	return AlertConfig{
		ConsecutiveFailureThreshold: DefaultConsecutiveFailureThreshold,
		StaleRunThreshold:           DefaultStaleRunThreshold,
		WebhookTimeout:              DefaultWebhookTimeout,
	}
}

// RunHistory is the run-tracker surface alert evaluation reads from.
type RunHistory interface {
	LatestRuns(ctx context.Context) ([]*domain.PipelineRun, error)
	CountConsecutiveFailures(ctx context.Context, companyID string, window int) (int, error)
	StaleRuns(ctx context.Context, threshold time.Duration) ([]*domain.PipelineRun, error)
}

// FailureAlert reports a company whose recent runs keep failing.
type FailureAlert struct {
	CompanyID           string `json:"company_id"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	LatestRunID         string `json:"latest_run_id"`
	LatestRunStatus     string `json:"latest_run_status"`
}

// StaleAlert reports a run stuck in running beyond the threshold.
type StaleAlert struct {
	RunID        string  `json:"run_id"`
	CompanyID    string  `json:"company_id"`
	StartedAt    string  `json:"started_at"`
	RunningHours float64 `json:"running_hours"`
}

// AlertPayload is the webhook body.
type AlertPayload struct {
	FailureAlerts []FailureAlert `json:"failure_alerts"`
	StaleAlerts   []StaleAlert   `json:"stale_alerts"`
}

// Alerter evaluates alert predicates against run history and dispatches a
// webhook when anything fires. Evaluation never fails the tick: every error
// is logged and swallowed.
type Alerter struct {
	cfg    AlertConfig
	runs   RunHistory
	client *http.Client
	clock  domain.Clock
}

// NewAlerter creates an alerter. A nil clock defaults to the system clock.
func NewAlerter(cfg AlertConfig, runs RunHistory, clock domain.Clock) *Alerter {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if cfg.ConsecutiveFailureThreshold <= 0 {
		cfg.ConsecutiveFailureThreshold = DefaultConsecutiveFailureThreshold
	}
	if cfg.StaleRunThreshold <= 0 {
		cfg.StaleRunThreshold = DefaultStaleRunThreshold
	}
	if cfg.WebhookTimeout <= 0 {
		cfg.WebhookTimeout = DefaultWebhookTimeout
	}
	return &Alerter{
		cfg:    cfg,
		runs:   runs,
		client: &http.Client{Timeout: cfg.WebhookTimeout},
		clock:  clock,
	}
}

// Evaluate runs both alert predicates and dispatches the webhook when any
// alert fired and a webhook URL is configured.
func (a *Alerter) Evaluate(ctx context.Context) {
	payload := AlertPayload{
		FailureAlerts: a.failureAlerts(ctx),
		StaleAlerts:   a.staleAlerts(ctx),
	}
	if len(payload.FailureAlerts) == 0 && len(payload.StaleAlerts) == 0 {
		return
	}
	if a.cfg.WebhookURL == "" {
		return
	}
	a.dispatch(ctx, payload)
}

func (a *Alerter) failureAlerts(ctx context.Context) []FailureAlert {
	latest, err := a.runs.LatestRuns(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failure alert evaluation failed", "error", err)
		return nil
	}

	var alerts []FailureAlert
	for _, run := range latest {
		if !run.Status.Failure() {
			continue
		}
		count, err := a.runs.CountConsecutiveFailures(ctx, run.CompanyID, 0)
		if err != nil {
			slog.ErrorContext(ctx, "consecutive failure count failed",
				"company_id", run.CompanyID, "error", err)
			continue
		}
		if count < a.cfg.ConsecutiveFailureThreshold {
			continue
		}
		slog.WarnContext(ctx, "consecutive pipeline failures",
			"company_id", run.CompanyID,
			"consecutive_failures", count,
			"latest_run_id", run.ID,
			"latest_run_status", run.Status)
		alerts = append(alerts, FailureAlert{
			CompanyID:           run.CompanyID,
			ConsecutiveFailures: count,
			LatestRunID:         run.ID,
			LatestRunStatus:     string(run.Status),
		})
	}
	return alerts
}

func (a *Alerter) staleAlerts(ctx context.Context) []StaleAlert {
	stale, err := a.runs.StaleRuns(ctx, a.cfg.StaleRunThreshold)
	if err != nil {
		slog.ErrorContext(ctx, "stale run evaluation failed", "error", err)
		return nil
	}

	now := a.clock.Now()
	var alerts []StaleAlert
	for _, run := range stale {
		if run.StartedAt == nil {
			continue
		}
		age := now.Sub(*run.StartedAt)
		slog.WarnContext(ctx, "pipeline run stale",
			"run_id", run.ID,
			"company_id", run.CompanyID,
			"started_at", run.StartedAt,
			"running_hours", age.Hours())
		alerts = append(alerts, StaleAlert{
			RunID:        run.ID,
			CompanyID:    run.CompanyID,
			StartedAt:    run.StartedAt.Format(time.RFC3339),
			RunningHours: age.Hours(),
		})
	}
	return alerts
}

// dispatch POSTs the payload to the webhook. Only the URL hostname is ever
// logged. Dispatch failures are logged and swallowed.
func (a *Alerter) dispatch(ctx context.Context, payload AlertPayload) {
	host := webhookHost(a.cfg.WebhookURL)

	body, err := json.Marshal(payload)
	if err != nil {
		slog.ErrorContext(ctx, "alert payload marshal failed", "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		slog.ErrorContext(ctx, "alert webhook request failed", "webhook_host", host, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		// url.Error repeats the full URL; strip it before logging.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		slog.ErrorContext(ctx, "alert webhook dispatch failed", "webhook_host", host, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		slog.ErrorContext(ctx, "alert webhook rejected",
			"webhook_host", host, "status_code", resp.StatusCode)
		return
	}
	slog.InfoContext(ctx, "alert webhook dispatched",
		"webhook_host", host,
		"failure_alerts", len(payload.FailureAlerts),
		"stale_alerts", len(payload.StaleAlerts))
}

// webhookHost extracts the hostname for logging; the full URL may carry
// credentials or tokens in the query string.
func webhookHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "invalid-url"
	}
	return u.Hostname()
}
