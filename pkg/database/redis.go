package database

import (
	"context"
	"fmt"
	"seekmind-go/internal/config"
	"seekmind-go/pkg/log"
	"time"

	"github.com/go-redis/redis/v8"
)

// NewRedis 创建 Redis 客户端并测试连接，会话存储后端为 redis 时使用。
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	log.Infof("Redis client connected successfully, addr=%s db=%d", cfg.Addr, cfg.DB)
	return rdb, nil
}
