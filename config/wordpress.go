package config

import (
	"strings"
	"time"
)

// WordPressConfig configures the WordPress REST publisher.
// Authentication uses an application password over HTTP Basic auth.
type WordPressConfig struct {
	SiteURL     string        `env:"SITE_URL"`
	Username    string        `env:"USERNAME"`
	AppPassword string        `env:"APP_PASSWORD"`
	Template    string        `env:"TEMPLATE"     envDefault:"city-landing-template"`
	Status      string        `env:"STATUS"       envDefault:"publish"`
	Timeout     time.Duration `env:"TIMEOUT"      envDefault:"30s"`
	// LockTTL bounds how long a publish run may hold the per-locality lock.
	LockTTL time.Duration `env:"LOCK_TTL" envDefault:"10m"`
}

// Sanitize applies guardrails to WordPress configuration values.
func (w *WordPressConfig) Sanitize() {
	w.SiteURL = strings.TrimRight(strings.TrimSpace(w.SiteURL), "/")
	if w.Template == "" {
		w.Template = "city-landing-template"
	}
	if w.Status == "" {
		w.Status = "publish"
	}
	if w.Timeout <= 0 {
		w.Timeout = 30 * time.Second
	}
	if w.LockTTL < time.Minute {
		w.LockTTL = time.Minute
	}
}

// Configured reports whether enough settings are present to publish.
func (w WordPressConfig) Configured() bool {
	return w.SiteURL != "" && w.Username != "" && w.AppPassword != ""
}
