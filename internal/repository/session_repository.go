// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"seekmind-go/internal/session"
	"time"

	"github.com/go-redis/redis/v8"
)

const sessionKeyPrefix = "seekmind:session:"

// redisSessionRepository 把会话状态以 JSON 形式保存在 Redis 中，过期时间随每次访问顺延，
// 会话结束（空闲超时）后数据随之消失。
type redisSessionRepository struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewSessionRepository 创建一个基于 Redis 的 session.Store。
func NewSessionRepository(redisClient *redis.Client, ttl time.Duration) session.Store {
	return &redisSessionRepository{redisClient: redisClient, ttl: ttl}
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

// Load 从 Redis 读取会话状态。
func (r *redisSessionRepository) Load(ctx context.Context, id string) (session.State, error) {
	key := sessionKey(id)
	data, err := r.redisClient.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return session.State{}, session.ErrSessionNotFound
	}
	if err != nil {
		return session.State{}, fmt.Errorf("failed to get session state: %w", err)
	}
	var st session.State
	if err := json.Unmarshal(data, &st); err != nil {
		return session.State{}, fmt.Errorf("failed to unmarshal session state: %w", err)
	}
	if r.ttl > 0 {
		if err := r.redisClient.Expire(ctx, key, r.ttl).Err(); err != nil {
			return session.State{}, fmt.Errorf("failed to refresh session ttl: %w", err)
		}
	}
	return st, nil
}

// Save 在 Redis 中写入会话状态。
func (r *redisSessionRepository) Save(ctx context.Context, id string, st session.State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal session state: %w", err)
	}
	if err := r.redisClient.Set(ctx, sessionKey(id), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set session state: %w", err)
	}
	return nil
}

// Delete 删除会话状态。
func (r *redisSessionRepository) Delete(ctx context.Context, id string) error {
	if err := r.redisClient.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session state: %w", err)
	}
	return nil
}
