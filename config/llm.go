package config

import (
	"strings"
	"time"
)

// LLMConfig configures the text-completion provider used for section generation.
type LLMConfig struct {
	APIKey  string `env:"API_KEY"`
	BaseURL string `env:"BASE_URL" envDefault:"https://api.anthropic.com"`
	Model   string `env:"MODEL"    envDefault:"claude-sonnet-4-20250514"`
	// APIVersion is sent as the anthropic-version header.
	APIVersion string `env:"API_VERSION" envDefault:"2023-06-01"`

	Temperature float64       `env:"TEMPERATURE" envDefault:"0.7"`
	Timeout     time.Duration `env:"TIMEOUT"     envDefault:"45s"`

	// BatchMaxTokens is the token budget for one FAQ answer batch.
	BatchMaxTokens int `env:"BATCH_MAX_TOKENS" envDefault:"16000"`
	// BatchInterval is the minimum spacing between FAQ answer batches.
	BatchInterval time.Duration `env:"BATCH_INTERVAL" envDefault:"1s"`
}

// Sanitize applies guardrails to LLM configuration values.
func (l *LLMConfig) Sanitize() {
	l.BaseURL = strings.TrimRight(strings.TrimSpace(l.BaseURL), "/")
	if l.Temperature < 0 {
		l.Temperature = 0
	}
	if l.Temperature > 1 {
		l.Temperature = 1
	}
	if l.Timeout <= 0 {
		l.Timeout = 45 * time.Second
	}
	if l.BatchMaxTokens <= 0 {
		l.BatchMaxTokens = 16000
	}
	if l.BatchInterval < 0 {
		l.BatchInterval = 0
	}
}
