package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Ruthvikraj007/backend-buddies/internal/presence"
)

const lookupTimeout = 2 * time.Second

// tokenKey returns the Redis key under which the login service stores a
// session token.
func tokenKey(token string) string {
	return "auth:token:" + token
}

// RedisVerifier resolves opaque session tokens against the shared Redis
// the login service writes to. The stored value is the identity JSON
// ({"userId": ..., "username": ...}); token TTL is owned by the login
// service, so an expired token simply stops resolving.
type RedisVerifier struct {
	client redis.Cmdable
}

// NewRedisVerifier creates a verifier backed by the given Redis client.
func NewRedisVerifier(client redis.Cmdable) *RedisVerifier {
	return &RedisVerifier{client: client}
}

// Verify implements Verifier.
func (v *RedisVerifier) Verify(ctx context.Context, token string) (presence.Identity, error) {
	if token == "" {
		return presence.Identity{}, ErrTokenMissing
	}

	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	val, err := v.client.Get(ctx, tokenKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return presence.Identity{}, fmt.Errorf("%w: unknown token", ErrTokenInvalid)
	}
	if err != nil {
		return presence.Identity{}, fmt.Errorf("auth: redis lookup: %w", err)
	}

	var id presence.Identity
	if err := json.Unmarshal([]byte(val), &id); err != nil {
		return presence.Identity{}, fmt.Errorf("%w: corrupt identity record", ErrTokenInvalid)
	}
	if id.UserID == "" {
		return presence.Identity{}, fmt.Errorf("%w: identity record missing user id", ErrTokenInvalid)
	}
	return id, nil
}

// StoreToken writes a token → identity mapping with a TTL. Mirrors what
// the login service does; exists for local development and tests.
func (v *RedisVerifier) StoreToken(ctx context.Context, token string, id presence.Identity, ttl time.Duration) error {
	data, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("auth: marshal identity: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()
	return v.client.Set(ctx, tokenKey(token), data, ttl).Err()
}
