package database

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-hr/internal/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisPingTimeout = 3 * time.Second

// ConnectRedis returns nil when no host is configured or the server does not
// answer; the team workload cache is then skipped.
func ConnectRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) *redis.Client {
	if cfg.Host == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unavailable, team workload cache disabled", zap.Error(err))
		rdb.Close()
		return nil
	}
	return rdb
}
