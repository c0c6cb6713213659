package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ruthvikraj007/backend-buddies/internal/presence"
)

func newTestRedisVerifier(t *testing.T) (*RedisVerifier, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisVerifier(client), mr
}

func TestRedisVerify(t *testing.T) {
	v, _ := newTestRedisVerifier(t)
	ctx := context.Background()

	id := presence.Identity{UserID: "u1", Username: "alice"}
	require.NoError(t, v.StoreToken(ctx, "tok-1", id, time.Hour))

	got, err := v.Verify(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestRedisVerifyUnknownToken(t *testing.T) {
	v, _ := newTestRedisVerifier(t)
	_, err := v.Verify(context.Background(), "never-issued")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestRedisVerifyMissingToken(t *testing.T) {
	v, _ := newTestRedisVerifier(t)
	_, err := v.Verify(context.Background(), "")
	assert.ErrorIs(t, err, ErrTokenMissing)
}

func TestRedisVerifyExpiredToken(t *testing.T) {
	v, mr := newTestRedisVerifier(t)
	ctx := context.Background()

	id := presence.Identity{UserID: "u1", Username: "alice"}
	require.NoError(t, v.StoreToken(ctx, "tok-1", id, time.Minute))

	mr.FastForward(2 * time.Minute)

	_, err := v.Verify(ctx, "tok-1")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestRedisVerifyCorruptRecord(t *testing.T) {
	v, mr := newTestRedisVerifier(t)
	mr.Set("auth:token:tok-1", "not json")

	_, err := v.Verify(context.Background(), "tok-1")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
