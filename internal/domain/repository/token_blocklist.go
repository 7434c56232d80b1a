package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenBlocklist holds revoked session token ids until they would have expired anyway.
type TokenBlocklist interface {
	Block(ctx context.Context, tokenID string, ttl time.Duration) error
	IsBlocked(ctx context.Context, tokenID string) (bool, error)
}

const blocklistPrefix = "token:"

type redisTokenBlocklist struct {
	rdb *redis.Client
}

func NewRedisTokenBlocklist(rdb *redis.Client) TokenBlocklist {
	return &redisTokenBlocklist{rdb: rdb}
}

func (b *redisTokenBlocklist) Block(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil // already expired
	}
	if err := b.rdb.Set(ctx, blocklistPrefix+tokenID, "blocked", ttl).Err(); err != nil {
		return fmt.Errorf("redisTokenBlocklist.Block: %w", err)
	}
	return nil
}

func (b *redisTokenBlocklist) IsBlocked(ctx context.Context, tokenID string) (bool, error) {
	n, err := b.rdb.Exists(ctx, blocklistPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("redisTokenBlocklist.IsBlocked: %w", err)
	}
	return n > 0, nil
}
