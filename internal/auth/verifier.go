package auth

import (
	"context"
	"errors"

	"github.com/Ruthvikraj007/backend-buddies/internal/presence"
)

var (
	// ErrTokenMissing means no credential token was supplied at handshake.
	ErrTokenMissing = errors.New("auth: credential token missing")

	// ErrTokenInvalid means the token failed signature, expiry or lookup.
	ErrTokenInvalid = errors.New("auth: credential token invalid")
)

// Verifier validates an opaque credential token presented at connection
// time and produces the verified identity. It runs exactly once per
// channel, before any other event is accepted; a channel that fails
// verification never enters the registry.
type Verifier interface {
	Verify(ctx context.Context, token string) (presence.Identity, error)
}
