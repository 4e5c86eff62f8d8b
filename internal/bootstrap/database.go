package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/UltimateServices/Dumpsters-CRM/config"
	"github.com/UltimateServices/Dumpsters-CRM/internal/migrate"
)

const (
	defaultApplicationName = "pagegen"

	// The publish lock and the research cache issue single short commands;
	// the notifier's subscriptions wait on their own context instead.
	redisDialTimeout    = 2 * time.Second
	redisCommandTimeout = 2 * time.Second
)

// DatabaseConfig contains configuration for database connections.
type DatabaseConfig struct {
	DBConfig    config.DBConfig
	RedisConfig config.RedisConfig
	Logger      *slog.Logger

	// ApplicationName is reported to Postgres and Redis so sessions can be
	// told apart by process role. Defaults to "pagegen".
	ApplicationName string
	// Listeners is the number of workers that will hold a connection parked
	// on LISTEN while waiting for jobs. The pool grows by that many.
	Listeners int
}

func (c DatabaseConfig) applicationName() string {
	if c.ApplicationName == "" {
		return defaultApplicationName
	}
	return c.ApplicationName
}

// ConnectDB opens the Postgres pool through the pgx stdlib bridge and pings it.
func ConnectDB(ctx context.Context, cfg DatabaseConfig) (*sql.DB, error) {
	connCfg, err := pgx.ParseConfig(postgresDSN(cfg.DBConfig))
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	connCfg.RuntimeParams["application_name"] = cfg.applicationName()

	db := stdlib.OpenDB(*connCfg)
	open, idle := poolLimits(cfg.DBConfig, cfg.Listeners)
	db.SetMaxOpenConns(open)
	db.SetMaxIdleConns(idle)
	db.SetConnMaxLifetime(cfg.DBConfig.ConnMaxLifetime)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if pingErr := db.PingContext(pctx); pingErr != nil {
		if closeErr := db.Close(); closeErr != nil {
			pingErr = errors.Join(pingErr, fmt.Errorf("close database connection: %w", closeErr))
		}
		return nil, fmt.Errorf("ping database: %w", pingErr)
	}

	if cfg.Logger != nil {
		cfg.Logger.InfoContext(ctx, "database connected",
			"host", cfg.DBConfig.Host,
			"port", cfg.DBConfig.Port,
			"database", cfg.DBConfig.Name,
			"application_name", cfg.applicationName(),
			"max_open_conns", open,
			"listeners", cfg.Listeners,
		)
	}
	return db, nil
}

func postgresDSN(db config.DBConfig) string {
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(db.User, db.Password),
		Host:   net.JoinHostPort(db.Host, strconv.Itoa(db.Port)),
		Path:   "/" + db.Name,
	}
	q := u.Query()
	q.Set("sslmode", db.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// poolLimits adds one connection per LISTEN waiter so parked workers never
// starve repository queries. A zero MaxOpenConns stays unlimited.
func poolLimits(db config.DBConfig, listeners int) (open, idle int) {
	open, idle = db.MaxOpenConns, db.MaxIdleConns
	if open > 0 && listeners > 0 {
		open += listeners
	}
	if open > 0 && idle > open {
		idle = open
	}
	return open, idle
}

// ConnectRedis builds the client shared by the job notifier, the publish lock
// and the research cache, then pings it.
//
//nolint:ireturn // returning redis.UniversalClient lets us pick single, sentinel, or cluster clients at runtime.
func ConnectRedis(ctx context.Context, cfg DatabaseConfig) (redis.UniversalClient, error) {
	opts, err := redisOptions(cfg.RedisConfig)
	if err != nil {
		return nil, err
	}
	opts.ClientName = cfg.applicationName()

	var client redis.UniversalClient
	mode := "direct"
	switch {
	case cfg.RedisConfig.UseCluster:
		mode = "cluster"
		client = redis.NewClusterClient(opts.Cluster())
	case cfg.RedisConfig.UseSentinel:
		mode = "sentinel"
		client = redis.NewFailoverClient(opts.Failover())
	default:
		client = redis.NewClient(opts.Simple())
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if pingErr := client.Ping(pctx).Err(); pingErr != nil {
		if closeErr := client.Close(); closeErr != nil {
			pingErr = errors.Join(pingErr, fmt.Errorf("close redis client: %w", closeErr))
		}
		return nil, fmt.Errorf("ping redis: %w", pingErr)
	}

	if cfg.Logger != nil {
		cfg.Logger.InfoContext(ctx, "redis connected",
			"mode", mode,
			"addrs", strings.Join(opts.Addrs, ","),
			"jobs_channel", cfg.RedisConfig.Channel,
		)
	}
	return client, nil
}

// redisOptions maps the Redis settings onto go-redis options. Cluster mode
// without CLUSTER_NODES seeds from URI. Addrs never carry credentials.
func redisOptions(cfg config.RedisConfig) (*redis.UniversalOptions, error) {
	opts := &redis.UniversalOptions{
		DB:               cfg.DB,
		Password:         cfg.Password,
		MasterName:       cfg.SentinelMasterName,
		SentinelPassword: cfg.SentinelPassword,
		DialTimeout:      redisDialTimeout,
		ReadTimeout:      redisCommandTimeout,
		WriteTimeout:     redisCommandTimeout,
	}

	switch {
	case cfg.UseSentinel && !cfg.UseCluster:
		opts.Addrs = normalizeAddrs(cfg.SentinelNodes)
		if len(opts.Addrs) == 0 {
			return nil, errors.New("redis sentinel configuration requires at least one sentinel node")
		}
		return opts, nil
	case cfg.UseCluster:
		opts.Addrs = normalizeAddrs(cfg.ClusterNodes)
		if len(opts.Addrs) > 0 {
			return opts, nil
		}
	}

	uri := strings.TrimSpace(cfg.URI)
	if uri == "" {
		if cfg.UseCluster {
			return nil, errors.New("redis cluster configuration requires at least one address")
		}
		return nil, errors.New("redis direct configuration requires a URI")
	}
	if !isRedisURL(uri) {
		opts.Addrs = []string{uri}
		return opts, nil
	}

	parsed, err := redis.ParseURL(uri)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.Addrs = []string{parsed.Addr}
	opts.Username = parsed.Username
	if parsed.Password != "" {
		opts.Password = parsed.Password
	}
	opts.DB = parsed.DB
	opts.TLSConfig = parsed.TLSConfig
	return opts, nil
}

func normalizeAddrs(raw []string) []string {
	result := make([]string, 0, len(raw))
	for _, addr := range raw {
		if trimmed := strings.TrimSpace(addr); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func isRedisURL(value string) bool {
	return strings.HasPrefix(value, "redis://") || strings.HasPrefix(value, "rediss://")
}

// RunMigrations applies the embedded schema migrations.
func RunMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	if err := migrate.Run(ctx, db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	if logger != nil {
		logger.InfoContext(ctx, "database migrations completed")
	}

	return nil
}
