package config

import (
	"reflect"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestParseServices(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    map[ServiceMode]bool
		expectError bool
	}{
		{
			name:     "single service - http",
			input:    "http",
			expected: map[ServiceMode]bool{ServiceModeHTTP: true},
		},
		{
			name:     "single service - worker",
			input:    "worker",
			expected: map[ServiceMode]bool{ServiceModeWorker: true},
		},
		{
			name:  "all services with spaces",
			input: " http , worker , reaper ",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP:   true,
				ServiceModeWorker: true,
				ServiceModeReaper: true,
			},
		},
		{
			name:  "duplicate services",
			input: "worker,worker,reaper",
			expected: map[ServiceMode]bool{
				ServiceModeWorker: true,
				ServiceModeReaper: true,
			},
		},
		{
			name:        "empty string",
			input:       "",
			expectError: true,
		},
		{
			name:        "only spaces and commas",
			input:       " , , ",
			expectError: true,
		},
		{
			name:        "mixed valid and invalid",
			input:       "http,rules-engine",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseServices(tt.input)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				return
			}

			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}

			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestConfig_ServiceEnabledMethods(t *testing.T) {
	cfg := AppConfig{Services: "http,reaper"}
	if !cfg.IsHTTPServerEnabled() {
		t.Errorf("expected http enabled")
	}
	if cfg.IsWorkerEnabled() {
		t.Errorf("expected worker disabled")
	}
	if !cfg.IsReaperEnabled() {
		t.Errorf("expected reaper enabled")
	}

	invalid := AppConfig{Services: "bogus"}
	if invalid.IsHTTPServerEnabled() || invalid.IsWorkerEnabled() || invalid.IsReaperEnabled() {
		t.Errorf("invalid service list must disable every mode")
	}
}

func TestValidServiceModes(t *testing.T) {
	modes := ValidServiceModes()
	if len(modes) != 3 {
		t.Fatalf("expected 3 service modes, got %d", len(modes))
	}
	for _, m := range modes {
		if _, err := ParseServices(string(m)); err != nil {
			t.Errorf("mode %q not accepted by ParseServices: %v", m, err)
		}
	}
}

func TestAppConfig_ParseEnv(t *testing.T) {
	t.Setenv("LLM_API_KEY", "sk-test")
	t.Setenv("LLM_TEMPERATURE", "0.4")
	t.Setenv("WORDPRESS_SITE_URL", "https://example.com/")
	t.Setenv("WORDPRESS_USERNAME", "editor")
	t.Setenv("WORDPRESS_APP_PASSWORD", "abcd efgh")
	t.Setenv("RESEARCH_DEFAULT_NEIGHBORHOODS", "Old Town, ,Riverside")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("RESEARCH_FAQ_MODE", " JSON ")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "authorization=Bearer x,tenant=dumpsters")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if cfg.LLM.APIKey != "sk-test" || cfg.LLM.Temperature != 0.4 {
		t.Errorf("unexpected llm config: %#v", cfg.LLM)
	}
	if cfg.LLM.Timeout != 45*time.Second {
		t.Errorf("expected default llm timeout 45s, got %s", cfg.LLM.Timeout)
	}
	if cfg.WordPress.SiteURL != "https://example.com" {
		t.Errorf("expected trailing slash trimmed, got %q", cfg.WordPress.SiteURL)
	}
	if !cfg.WordPress.Configured() {
		t.Errorf("expected wordpress configured")
	}
	if cfg.Postgres.Host != "db.internal" {
		t.Errorf("expected DB_HOST applied, got %q", cfg.Postgres.Host)
	}
	want := []string{"Old Town", "Riverside"}
	if !reflect.DeepEqual(cfg.Research.DefaultNeighborhoods, want) {
		t.Errorf("expected neighborhoods %v, got %v", want, cfg.Research.DefaultNeighborhoods)
	}
	if cfg.Research.FAQMode != FAQModeJSON {
		t.Errorf("expected faq mode json, got %q", cfg.Research.FAQMode)
	}
	if cfg.Telemetry.Headers["tenant"] != "dumpsters" || cfg.Telemetry.Headers["authorization"] != "Bearer x" {
		t.Errorf("unexpected otlp headers: %#v", cfg.Telemetry.Headers)
	}
	if cfg.Metrics.Prefix != "pagegen" || cfg.Metrics.Enabled {
		t.Errorf("unexpected metrics defaults: %#v", cfg.Metrics)
	}
}

func TestSanitize_Clamps(t *testing.T) {
	cfg := AppConfig{
		LLM:       LLMConfig{Temperature: 3, Timeout: -1},
		Worker:    WorkerConfig{Concurrency: 0, RetryBaseDelay: 5 * time.Second, RetryMaxDelay: time.Second},
		Reaper:    ReaperConfig{StaleAfter: time.Second},
		Research:  ResearchConfig{MaxAttempts: 0, MaxNeighborhoods: -3, FAQMode: "bogus"},
		Telemetry: TelemetryConfig{SampleRatio: 7},
	}
	cfg.Sanitize()

	if cfg.LLM.Temperature != 1 {
		t.Errorf("temperature not clamped: %v", cfg.LLM.Temperature)
	}
	if cfg.LLM.Timeout != 45*time.Second {
		t.Errorf("timeout not defaulted: %v", cfg.LLM.Timeout)
	}
	if cfg.Worker.Concurrency != 1 {
		t.Errorf("concurrency not clamped: %d", cfg.Worker.Concurrency)
	}
	if cfg.Worker.RetryMaxDelay != 5*time.Second {
		t.Errorf("max delay must not be below base delay: %v", cfg.Worker.RetryMaxDelay)
	}
	if cfg.Reaper.StaleAfter != 30*time.Second {
		t.Errorf("stale-after not clamped: %v", cfg.Reaper.StaleAfter)
	}
	if cfg.Research.MaxAttempts != 1 || cfg.Research.MaxNeighborhoods != 0 {
		t.Errorf("research config not clamped: %#v", cfg.Research)
	}
	if cfg.Research.FAQMode != FAQModeBatch {
		t.Errorf("unknown faq mode should fall back to batch, got %q", cfg.Research.FAQMode)
	}
	if cfg.Telemetry.SampleRatio != 1 || cfg.Telemetry.ServiceName != "pagegen" {
		t.Errorf("telemetry config not sanitized: %#v", cfg.Telemetry)
	}
}
