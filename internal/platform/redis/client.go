package redis

import (
	"context"
	"fmt"
	"time"

	"buildinghub_backend/internal/config"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewClient connects to Redis. An empty REDIS_ADDR yields (nil, nil);
// consumers fall back to in-process alternatives.
func NewClient(cfg *config.Config, logger *zap.Logger) (*goredis.Client, error) {
	if cfg.RedisAddr == "" {
		logger.Info("REDIS_ADDR not set, Redis client disabled")
		return nil, nil
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.RedisAddr, err)
	}

	logger.Info("Connected to Redis", zap.String("addr", cfg.RedisAddr), zap.Int("db", cfg.RedisDB))
	return client, nil
}

// Close releases the client if one was created.
func Close(client *goredis.Client, logger *zap.Logger) {
	if client == nil {
		return
	}
	if err := client.Close(); err != nil {
		logger.Warn("Error closing redis client", zap.Error(err))
	}
}
