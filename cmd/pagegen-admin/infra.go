package main

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/UltimateServices/Dumpsters-CRM/internal/bootstrap"
)

// adminInfra holds the connections and services a command needs.
type adminInfra struct {
	db       *sql.DB
	redis    redis.UniversalClient
	services bootstrap.ServiceContainer
	logger   *slog.Logger
}

// connectInfra connects Postgres (and Redis when enabled) and builds the services.
func connectInfra(cmdCtx *commandContext) (*adminInfra, error) {
	cfg := cmdCtx.Config
	dbCfg := bootstrap.DatabaseConfig{
		DBConfig:        cfg.Postgres,
		RedisConfig:     cfg.Redis,
		Logger:          cmdCtx.Logger,
		ApplicationName: "pagegen-admin",
	}

	db, err := bootstrap.ConnectDB(cmdCtx.Ctx, dbCfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	infra := &adminInfra{db: db, logger: cmdCtx.Logger}

	if cfg.Redis.Enabled {
		rdb, rerr := bootstrap.ConnectRedis(cmdCtx.Ctx, dbCfg)
		if rerr != nil {
			infra.Close()
			return nil, fmt.Errorf("connect redis: %w", rerr)
		}
		infra.redis = rdb
	}

	services, err := bootstrap.BuildServices(bootstrap.ServiceDeps{
		Config:      &cfg,
		DB:          db,
		RedisClient: infra.redis,
		Logger:      cmdCtx.Logger,
	})
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("build services: %w", err)
	}
	infra.services = services
	return infra, nil
}

// Close releases every connection, logging failures.
func (i *adminInfra) Close() {
	if i.redis != nil {
		if err := i.redis.Close(); err != nil {
			i.logger.Warn("redis close failed", "error", err)
		}
	}
	if i.db != nil {
		if err := i.db.Close(); err != nil {
			i.logger.Warn("db close failed", "error", err)
		}
	}
	if err := i.services.Metrics.Close(); err != nil {
		i.logger.Warn("statsd close failed", "error", err)
	}
}
