package respcache

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/icvsb/icvsb/pkg/redis"
)

// DefaultTTL keeps redis entries from outliving the key they were
// cached under by too long; expired keys stop being queried anyway.
const DefaultTTL = 24 * time.Hour

// Redis stores cached responses in redis, sharing the 304 cache across
// replicas.
type Redis struct {
	client *redis.Client
	logger ectologger.Logger
	ttl    time.Duration
}

func NewRedis(client *redis.Client, logger ectologger.Logger, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, logger: logger, ttl: ttl}
}

func (r *Redis) redisKey(key Key) string {
	return fmt.Sprintf("icvsb:labels:%d:%d:%s", key.ClientID, key.KeyID, key.URI)
}

func (r *Redis) Get(ctx context.Context, key Key) ([]byte, bool) {
	value, err := r.client.Get(ctx, r.redisKey(key))
	if err != nil {
		return nil, false
	}
	return []byte(value), true
}

func (r *Redis) Put(ctx context.Context, key Key, body []byte) {
	if err := r.client.Set(ctx, r.redisKey(key), body, r.ttl); err != nil {
		r.logger.WithContext(ctx).WithError(err).Warn("failed to cache labels response in redis")
	}
}
