package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/redis/go-redis/v9"
)

// redisDBCursorKey lives in DB 0 and hands out databases 1-15 round robin so
// packages running in parallel do not flush each other's keys.
const redisDBCursorKey = "pagegen:testutil:next_db"

// RedisConfig locates the Redis server used by the cache and notifier tests.
type RedisConfig struct {
	Addr         string `env:"TEST_REDIS_ADDR" envDefault:"localhost:56379"`
	DB           int    `env:"TEST_REDIS_DB"   envDefault:"-1"`
	Require      bool   `env:"TEST_REQUIRE_REDIS"`
	RequireInfra bool   `env:"TEST_REQUIRE_INFRA"`
}

// SetupTestRedis returns a client on an emptied database. The caller closes it.
// A TEST_REDIS_DB of zero or more pins the database instead of rotating.
func SetupTestRedis(t testing.TB) *redis.Client {
	t.Helper()
	cfg, err := env.ParseAs[RedisConfig]()
	if err != nil {
		t.Fatalf("test redis config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	db := cfg.DB
	if db < 0 {
		if db, err = nextRedisDB(ctx, cfg.Addr); err != nil {
			if cfg.Require || cfg.RequireInfra {
				t.Fatalf("redis not available at %s: %v", cfg.Addr, err)
			}
			t.Skipf("redis not available at %s: %v", cfg.Addr, err)
		}
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, DB: db})
	if err := client.FlushDB(ctx).Err(); err != nil {
		_ = client.Close()
		t.Fatalf("flush redis db %d: %v", db, err)
	}
	return client
}

func nextRedisDB(ctx context.Context, addr string) (int, error) {
	meta := redis.NewClient(&redis.Options{Addr: addr})
	defer func() { _ = meta.Close() }()
	n, err := meta.Incr(ctx, redisDBCursorKey).Result()
	if err != nil {
		return 0, err
	}
	return int(n%15) + 1, nil
}
