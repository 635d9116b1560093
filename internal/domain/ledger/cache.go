package ledger

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// BalanceCache is a read-through cache in front of the balance row.
type BalanceCache interface {
	Get(ctx context.Context, userID uuid.UUID) (int64, bool)
	Set(ctx context.Context, userID uuid.UUID, balance int64)
	Invalidate(ctx context.Context, userID uuid.UUID)
}

// NewBalanceCache returns a Redis cache, or a no-op cache when client is nil
// (Redis is optional in development).
func NewBalanceCache(client *redis.Client, ttl time.Duration) BalanceCache {
	if client == nil {
		return noopCache{}
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &redisBalanceCache{client: client, ttl: ttl}
}

type redisBalanceCache struct {
	client *redis.Client
	ttl    time.Duration
}

func balanceKey(userID uuid.UUID) string {
	return "credits:balance:" + userID.String()
}

func (c *redisBalanceCache) Get(ctx context.Context, userID uuid.UUID) (int64, bool) {
	raw, err := c.client.Get(ctx, balanceKey(userID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("user_id", userID.String()).Msg("balance cache read failed")
		}
		return 0, false
	}
	balance, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return balance, true
}

func (c *redisBalanceCache) Set(ctx context.Context, userID uuid.UUID, balance int64) {
	if err := c.client.Set(ctx, balanceKey(userID), balance, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("user_id", userID.String()).Msg("balance cache write failed")
	}
}

func (c *redisBalanceCache) Invalidate(ctx context.Context, userID uuid.UUID) {
	if err := c.client.Del(ctx, balanceKey(userID)).Err(); err != nil {
		log.Warn().Err(err).Str("user_id", userID.String()).Msg("balance cache invalidate failed")
	}
}

type noopCache struct{}

func (noopCache) Get(context.Context, uuid.UUID) (int64, bool) { return 0, false }
func (noopCache) Set(context.Context, uuid.UUID, int64)        {}
func (noopCache) Invalidate(context.Context, uuid.UUID)        {}
