// Package testutil provides fixtures and infrastructure helpers for tests that
// need Postgres or Redis. Infra tests skip unless the service answers; set
// TEST_REQUIRE_INFRA (or TEST_REQUIRE_DB / TEST_REQUIRE_REDIS) to fail instead.
package testutil

import (
	"context"
	"database/sql"
	"net"
	"net/url"
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	// Registers the "pgx" database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/UltimateServices/Dumpsters-CRM/internal/migrate"
)

// DBConfig locates the Postgres server used by tests.
type DBConfig struct {
	Host         string `env:"TEST_DB_HOST"     envDefault:"localhost"`
	Port         string `env:"TEST_DB_PORT"     envDefault:"55432"`
	User         string `env:"TEST_DB_USER"     envDefault:"pagegen"`
	Password     string `env:"TEST_DB_PASSWORD" envDefault:"pagegen"`
	Name         string `env:"TEST_DB_NAME"     envDefault:"pagegen"`
	SSLMode      string `env:"TEST_DB_SSL_MODE" envDefault:"disable"`
	Require      bool   `env:"TEST_REQUIRE_DB"`
	RequireInfra bool   `env:"TEST_REQUIRE_INFRA"`
}

// LoadDBConfig reads DBConfig from the environment.
func LoadDBConfig() (DBConfig, error) {
	return env.ParseAs[DBConfig]()
}

// DSN returns a pgx URL for the database. A non-empty schema is placed first
// on the search_path so migrations and queries stay inside it.
func (c DBConfig) DSN(schema string) string {
	q := url.Values{}
	q.Set("sslmode", c.SSLMode)
	if schema != "" {
		q.Set("search_path", schema+",public")
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, c.Port),
		Path:     "/" + c.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func (c DBConfig) required() bool { return c.Require || c.RequireInfra }

func loadDBConfig(t testing.TB) DBConfig {
	t.Helper()
	cfg, err := LoadDBConfig()
	if err != nil {
		t.Fatalf("test db config: %v", err)
	}
	return cfg
}

// SkipIfNoTestDB skips t when the test database does not answer a ping.
func SkipIfNoTestDB(t testing.TB) {
	t.Helper()
	cfg := loadDBConfig(t)
	db, err := sql.Open("pgx", cfg.DSN(""))
	if err == nil {
		defer func() { _ = db.Close() }()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		err = db.PingContext(ctx)
	}
	if err == nil {
		return
	}
	if cfg.required() {
		t.Fatalf("test database not available at %s:%s: %v", cfg.Host, cfg.Port, err)
	}
	t.Skipf("test database not available at %s:%s: %v", cfg.Host, cfg.Port, err)
}

// OpenSchemaDB returns a pool bound to a fresh schema with every migration
// applied. The schema is dropped when t finishes.
func OpenSchemaDB(t testing.TB) *sql.DB {
	t.Helper()
	SkipIfNoTestDB(t)
	cfg := loadDBConfig(t)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	admin, err := sql.Open("pgx", cfg.DSN(""))
	if err != nil {
		t.Fatalf("open admin db: %v", err)
	}
	schema := "t_" + uuid.NewString()[:8]
	if _, err := admin.ExecContext(ctx, "CREATE SCHEMA "+schema); err != nil {
		_ = admin.Close()
		t.Fatalf("create schema %s: %v", schema, err)
	}

	db, err := sql.Open("pgx", cfg.DSN(schema))
	if err != nil {
		_ = admin.Close()
		t.Fatalf("open schema db: %v", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	t.Cleanup(func() {
		_ = db.Close()
		dctx, dcancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer dcancel()
		if _, err := admin.ExecContext(dctx, "DROP SCHEMA IF EXISTS "+schema+" CASCADE"); err != nil {
			t.Logf("drop schema %s: %v", schema, err)
		}
		_ = admin.Close()
	})

	if err := migrate.Run(ctx, db); err != nil {
		t.Fatalf("migrate schema %s: %v", schema, err)
	}
	t.Logf("using schema %s", schema)
	return db
}

// WithAutoDB runs fn against a migrated schema private to t.
func WithAutoDB(t testing.TB, fn func(*sql.DB)) {
	t.Helper()
	fn(OpenSchemaDB(t))
}
