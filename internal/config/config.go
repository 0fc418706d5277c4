// Package config loads per-binary configuration from environment variables.
// Interval-style values are plain seconds (e.g. WORKER_POLL_INTERVAL=2.0) so
// the same values work across deploy tooling; accessors convert to
// time.Duration.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// DB configures the PostgreSQL connection shared by every binary.
type DB struct {
	URL             string        `env:"DATABASE_URL,required,notEmpty"`
	MaxOpenConns    int           `env:"DATABASE_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"DATABASE_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DATABASE_CONN_MAX_LIFETIME" envDefault:"5m"`
}

// Edgar configures the SEC EDGAR client.
type Edgar struct {
	// Contact is the User-Agent contact string the SEC fair-access policy
	// requires, e.g. "FilingPulse admin@example.com".
	Contact   string `env:"EDGAR_CONTACT,required,notEmpty"`
	RateLimit int    `env:"EDGAR_RATE_LIMIT" envDefault:"10"`
}

// LLM configures the Anthropic client used by content generation.
type LLM struct {
	APIKey         string `env:"ANTHROPIC_API_KEY,required,notEmpty"`
	Model          string `env:"LLM_MODEL" envDefault:"claude-sonnet-4-20250514"`
	MaxTokens      int    `env:"LLM_MAX_TOKENS" envDefault:"8192"`
	TimeoutSeconds int    `env:"LLM_TIMEOUT" envDefault:"600"`
}

// Timeout is the total wall-clock budget for one generation including retries.
func (l LLM) Timeout() time.Duration {
	return time.Duration(l.TimeoutSeconds) * time.Second
}

// Observability toggles the OTLP exporters.
type Observability struct {
	Enabled     bool   `env:"OTEL_ENABLED" envDefault:"false"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"filingpulse"`
}

// Worker configures the worker binary.
type Worker struct {
	DB            DB
	Edgar         Edgar
	LLM           LLM
	Observability Observability

	PollIntervalSeconds       float64 `env:"WORKER_POLL_INTERVAL" envDefault:"2.0"`
	StaleThresholdSeconds     float64 `env:"WORKER_STALE_THRESHOLD" envDefault:"600"`
	StaleCheckIntervalSeconds float64 `env:"WORKER_STALE_CHECK_INTERVAL" envDefault:"60.0"`
}

func (w Worker) PollInterval() time.Duration {
	return secondsToDuration(w.PollIntervalSeconds)
}

func (w Worker) StaleThreshold() time.Duration {
	return secondsToDuration(w.StaleThresholdSeconds)
}

func (w Worker) StaleCheckInterval() time.Duration {
	return secondsToDuration(w.StaleCheckIntervalSeconds)
}

// Scheduler configures the scheduler binary.
type Scheduler struct {
	DB            DB
	Edgar         Edgar
	Observability Observability

	PollIntervalSeconds float64  `env:"SCHEDULER_POLL_INTERVAL" envDefault:"21600"`
	EnabledForms        []string `env:"SCHEDULER_ENABLED_FORMS" envDefault:"10-K,10-Q"`
	FilingLookbackDays  int      `env:"SCHEDULER_FILING_LOOKBACK_DAYS" envDefault:"30"`
	BulkIngestEnabled   bool     `env:"SCHEDULER_BULK_INGEST_ENABLED" envDefault:"false"`
	BulkIngestBatchSize int      `env:"SCHEDULER_BULK_INGEST_BATCH_SIZE" envDefault:"50"`

	AlertConsecutiveFailureThreshold int     `env:"SCHEDULER_ALERT_CONSECUTIVE_FAILURE_THRESHOLD" envDefault:"3"`
	AlertStaleRunThresholdSeconds    float64 `env:"SCHEDULER_ALERT_STALE_RUN_THRESHOLD_SECONDS" envDefault:"7200"`
	AlertWebhookURL                  string  `env:"SCHEDULER_ALERT_WEBHOOK_URL"`
	AlertWebhookTimeoutSeconds       float64 `env:"SCHEDULER_ALERT_WEBHOOK_TIMEOUT" envDefault:"10"`
}

func (s Scheduler) PollInterval() time.Duration {
	return secondsToDuration(s.PollIntervalSeconds)
}

func (s Scheduler) AlertStaleRunThreshold() time.Duration {
	return secondsToDuration(s.AlertStaleRunThresholdSeconds)
}

func (s Scheduler) AlertWebhookTimeout() time.Duration {
	return secondsToDuration(s.AlertWebhookTimeoutSeconds)
}

// Server configures the API server binary.
type Server struct {
	DB            DB
	Observability Observability

	Host string `env:"SERVER_HOST" envDefault:""`
	Port string `env:"SERVER_PORT" envDefault:"8080"`
}

// Load parses environment variables into cfg, which must be a pointer to one
// of the per-binary config structs.
func Load(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	return nil
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
