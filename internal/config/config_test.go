package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/filingpulse")
	t.Setenv("EDGAR_CONTACT", "FilingPulse test@example.com")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	var cfg Worker
	require.NoError(t, Load(&cfg))

	assert.Equal(t, 2*time.Second, cfg.PollInterval())
	assert.Equal(t, 10*time.Minute, cfg.StaleThreshold())
	assert.Equal(t, time.Minute, cfg.StaleCheckInterval())
	assert.Equal(t, 10*time.Minute, cfg.LLM.Timeout())
	assert.Equal(t, "claude-sonnet-4-20250514", cfg.LLM.Model)
	assert.Equal(t, 25, cfg.DB.MaxOpenConns)
}

func TestSchedulerDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/filingpulse")
	t.Setenv("EDGAR_CONTACT", "FilingPulse test@example.com")

	var cfg Scheduler
	require.NoError(t, Load(&cfg))

	assert.Equal(t, 6*time.Hour, cfg.PollInterval())
	assert.Equal(t, []string{"10-K", "10-Q"}, cfg.EnabledForms)
	assert.Equal(t, 30, cfg.FilingLookbackDays)
	assert.False(t, cfg.BulkIngestEnabled)
	assert.Equal(t, 50, cfg.BulkIngestBatchSize)
	assert.Equal(t, 3, cfg.AlertConsecutiveFailureThreshold)
	assert.Equal(t, 2*time.Hour, cfg.AlertStaleRunThreshold())
	assert.Empty(t, cfg.AlertWebhookURL)
}

func TestSchedulerOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/filingpulse")
	t.Setenv("EDGAR_CONTACT", "FilingPulse test@example.com")
	t.Setenv("SCHEDULER_POLL_INTERVAL", "60")
	t.Setenv("SCHEDULER_ENABLED_FORMS", "8-K")
	t.Setenv("SCHEDULER_BULK_INGEST_ENABLED", "true")
	t.Setenv("SCHEDULER_ALERT_WEBHOOK_URL", "https://hooks.example.com/alerts")

	var cfg Scheduler
	require.NoError(t, Load(&cfg))

	assert.Equal(t, time.Minute, cfg.PollInterval())
	assert.Equal(t, []string{"8-K"}, cfg.EnabledForms)
	assert.True(t, cfg.BulkIngestEnabled)
	assert.Equal(t, "https://hooks.example.com/alerts", cfg.AlertWebhookURL)
}

func TestMissingRequiredFails(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("EDGAR_CONTACT", "FilingPulse test@example.com")

	var cfg Scheduler
	assert.Error(t, Load(&cfg))
}

func TestFractionalSeconds(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/filingpulse")
	t.Setenv("EDGAR_CONTACT", "FilingPulse test@example.com")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("WORKER_POLL_INTERVAL", "0.5")

	var cfg Worker
	require.NoError(t, Load(&cfg))
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval())
}
