package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP API.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeWorker runs the research job worker.
	ServiceModeWorker ServiceMode = "worker"
	// ServiceModeReaper runs the stale job reaper.
	ServiceModeReaper ServiceMode = "reaper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeHTTP,
		ServiceModeWorker,
		ServiceModeReaper,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	if strings.TrimSpace(servicesStr) == "" {
		return nil, errors.New("at least one service must be specified")
	}

	services := make(map[ServiceMode]bool)
	for _, part := range strings.Split(servicesStr, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}

		mode := ServiceMode(name)
		switch mode {
		case ServiceModeHTTP, ServiceModeWorker, ServiceModeReaper:
			services[mode] = true
		default:
			return nil, fmt.Errorf("invalid service name: %q (valid options: http, worker, reaper)", name)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// WorkerConfig contains research worker configuration.
type WorkerConfig struct {
	// Concurrency is the number of jobs processed in parallel (one goroutine per job).
	Concurrency int `env:"WORKER_CONCURRENCY" envDefault:"2"`

	// PollInterval is the fallback poll period when no notification arrives.
	PollInterval time.Duration `env:"WORKER_POLL_INTERVAL" envDefault:"5s"`

	// HeartbeatInterval is how often a running job refreshes its heartbeat.
	HeartbeatInterval time.Duration `env:"WORKER_HEARTBEAT_INTERVAL" envDefault:"15s"`

	// RetryBaseDelay and RetryMaxDelay bound the exponential backoff between attempts.
	RetryBaseDelay time.Duration `env:"WORKER_RETRY_BASE_DELAY" envDefault:"2s"`
	RetryMaxDelay  time.Duration `env:"WORKER_RETRY_MAX_DELAY"  envDefault:"1m"`
}

// Sanitize applies guardrails to worker configuration values.
func (w *WorkerConfig) Sanitize() {
	if w.Concurrency < 1 {
		w.Concurrency = 1
	}
	if w.PollInterval < 100*time.Millisecond {
		w.PollInterval = 100 * time.Millisecond
	}
	if w.HeartbeatInterval < time.Second {
		w.HeartbeatInterval = time.Second
	}
	if w.RetryBaseDelay <= 0 {
		w.RetryBaseDelay = 2 * time.Second
	}
	if w.RetryMaxDelay < w.RetryBaseDelay {
		w.RetryMaxDelay = w.RetryBaseDelay
	}
}

// ReaperConfig contains job reaper service configuration.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"1m"`

	// StaleAfter is how long a processing job may go without a heartbeat before it is
	// requeued (attempts remaining) or failed.
	StaleAfter time.Duration `env:"REAPER_STALE_AFTER" envDefault:"5m"`

	// PendingMaxAge is the maximum age for pending jobs before they are marked as failed.
	PendingMaxAge time.Duration `env:"REAPER_PENDING_MAX_AGE" envDefault:"6h"`

	// RetentionMaxAge is the maximum age of failed jobs before deletion.
	// Completed jobs are never deleted because publishing reads them.
	RetentionMaxAge time.Duration `env:"REAPER_FAILED_MAX_AGE" envDefault:"720h"` // 30 days

	// BatchSize limits the number of jobs touched per cleanup pass.
	BatchSize int `env:"REAPER_BATCH_SIZE" envDefault:"100"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	if r.Interval < time.Second {
		r.Interval = time.Second
	}
	if r.StaleAfter < 30*time.Second {
		r.StaleAfter = 30 * time.Second
	}
	if r.PendingMaxAge <= 0 {
		r.PendingMaxAge = 6 * time.Hour
	}
	if r.BatchSize < 1 {
		r.BatchSize = 1
	}
}

// ResearchConfig contains content pipeline settings.
type ResearchConfig struct {
	// MaxNeighborhoods caps the number of sub-locality pages per job.
	MaxNeighborhoods int `env:"RESEARCH_MAX_NEIGHBORHOODS" envDefault:"4"`

	// DefaultNeighborhoods is used when the main page produces no neighborhood list.
	DefaultNeighborhoods []string `env:"RESEARCH_DEFAULT_NEIGHBORHOODS" envDefault:"Downtown,Northside,Westside,Eastside"`

	// MaxAttempts is the number of worker attempts for one job before it is failed.
	MaxAttempts int `env:"RESEARCH_MAX_ATTEMPTS" envDefault:"3"`

	// FAQMode selects how FAQ sections are generated: "batch" answers the question
	// bank in batches of five, "json" asks for the whole section as one JSON object.
	FAQMode string `env:"RESEARCH_FAQ_MODE" envDefault:"batch"`
}

// FAQ generation modes.
const (
	FAQModeBatch = "batch"
	FAQModeJSON  = "json"
)

// Sanitize applies guardrails to research configuration values.
func (r *ResearchConfig) Sanitize() {
	if r.MaxNeighborhoods < 0 {
		r.MaxNeighborhoods = 0
	}
	if r.MaxAttempts < 1 {
		r.MaxAttempts = 1
	}
	cleaned := r.DefaultNeighborhoods[:0]
	for _, n := range r.DefaultNeighborhoods {
		if n = strings.TrimSpace(n); n != "" {
			cleaned = append(cleaned, n)
		}
	}
	r.DefaultNeighborhoods = cleaned

	r.FAQMode = strings.ToLower(strings.TrimSpace(r.FAQMode))
	if r.FAQMode != FAQModeJSON {
		r.FAQMode = FAQModeBatch
	}
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled     bool    `env:"ENABLED"       envDefault:"false"`
	ServiceName string  `env:"SERVICE_NAME"  envDefault:"pagegen"`
	Endpoint    string  `env:"EXPORTER_OTLP_ENDPOINT"`
	Insecure    bool    `env:"EXPORTER_OTLP_INSECURE" envDefault:"false"`
	SampleRatio float64 `env:"SAMPLER_RATIO" envDefault:"0.1"`
	// Headers are sent with every OTLP export, e.g. "authorization=Bearer x,tenant=y".
	Headers map[string]string `env:"EXPORTER_OTLP_HEADERS" envKeyValSeparator:"="`
}

// Sanitize applies guardrails to telemetry configuration values.
func (t *TelemetryConfig) Sanitize() {
	if t.ServiceName == "" {
		t.ServiceName = "pagegen"
	}
	if t.SampleRatio < 0 {
		t.SampleRatio = 0
	}
	if t.SampleRatio > 1 {
		t.SampleRatio = 1
	}
	t.Endpoint = strings.TrimSpace(t.Endpoint)
}

// MetricsConfig configures the StatsD sink.
type MetricsConfig struct {
	Enabled bool   `env:"ENABLED" envDefault:"false"`
	Address string `env:"ADDRESS" envDefault:"127.0.0.1:8125"`
	Prefix  string `env:"PREFIX"  envDefault:"pagegen"`
}
