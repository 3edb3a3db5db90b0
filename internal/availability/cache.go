package availability

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"zapisly/internal/slots"
)

// CachedResolver wraps a Resolver with a short-TTL Redis cache. Staleness
// is bounded by the TTL; the conflict-checked insert at commit time still
// decides, so a stale read only costs the client one rejected attempt.
type CachedResolver struct {
	inner  *Resolver
	redis  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedResolver wraps resolver with Redis caching.
func NewCachedResolver(inner *Resolver, rdb *redis.Client, ttl time.Duration, logger zerolog.Logger) *CachedResolver {
	return &CachedResolver{
		inner:  inner,
		redis:  rdb,
		ttl:    ttl,
		logger: logger.With().Str("component", "availability_cache").Logger(),
	}
}

// Resolve serves from cache when possible, otherwise resolves and
// stores the result. Redis failures degrade to a direct resolve.
func (c *CachedResolver) Resolve(ctx context.Context, req Request) ([]slots.Candidate, error) {
	key := cacheKey(req)

	if data, err := c.redis.Get(ctx, key).Bytes(); err == nil {
		var cached []slots.Candidate
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached, nil
		}
	} else if err != redis.Nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("cache read failed")
	}

	result, err := c.inner.Resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(result); err == nil {
		if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Debug().Err(err).Str("key", key).Msg("cache write failed")
		}
	}
	return result, nil
}

func cacheKey(req Request) string {
	emp := int64(0)
	if req.EmployeeID != nil {
		emp = *req.EmployeeID
	}
	return fmt.Sprintf("availability:%d:%d:%s:%d",
		req.BusinessID, emp, req.Date.Format("2006-01-02"), req.DurationMinutes)
}
