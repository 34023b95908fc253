// Package cache holds the Redis adapter behind services.SessionCache.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "gatekeeper:session:"

// revoked marks a deleted token. Principal ids are UUIDs and never collide
// with it.
const revoked = "-"

// Connect builds a client from a redis:// URL or a bare host:port.
func Connect(_ context.Context, redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

// RedisSessionCache maps session tokens to principal ids with a TTL.
// Tokens are stored hashed.
type RedisSessionCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSessionCache(client *redis.Client, ttl time.Duration) *RedisSessionCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisSessionCache{client: client, ttl: ttl}
}

func sessionKey(class models.PrincipalClass, token string) string {
	sum := sha256.Sum256([]byte(token))
	return keyPrefix + class.String() + ":" + hex.EncodeToString(sum[:])
}

func (c *RedisSessionCache) Get(ctx context.Context, class models.PrincipalClass, token string) (string, bool, error) {
	id, err := c.client.Get(ctx, sessionKey(class, token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	if id == revoked {
		return "", false, nil
	}
	return id, true, nil
}

// Set caches a positive lookup unless the key already holds an entry or a
// revocation mark.
func (c *RedisSessionCache) Set(ctx context.Context, class models.PrincipalClass, token, principalID string) error {
	return c.client.SetNX(ctx, sessionKey(class, token), principalID, c.ttl).Err()
}

// Delete replaces each token's entry with a revocation mark kept for one TTL.
func (c *RedisSessionCache) Delete(ctx context.Context, class models.PrincipalClass, tokens ...string) error {
	if len(tokens) == 0 {
		return nil
	}
	_, err := c.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, t := range tokens {
			pipe.Set(ctx, sessionKey(class, t), revoked, c.ttl)
		}
		return nil
	})
	return err
}

// Ping reports whether Redis is reachable.
func (c *RedisSessionCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
