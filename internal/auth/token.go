package auth

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Ruthvikraj007/backend-buddies/internal/presence"
)

// tokenClaims is the signed portion of a stateless credential token.
type tokenClaims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Exp      int64  `json:"exp"`
}

// TokenVerifier verifies Ed25519-signed credential tokens minted by the
// external login service. Token format:
//
//	base64url(claims JSON) "." base64url(ed25519 signature over claims)
//
// Stateless: no lookup, just signature and expiry checks.
type TokenVerifier struct {
	key ed25519.PublicKey
	now func() time.Time
}

// NewTokenVerifier creates a verifier from a base64-encoded Ed25519
// public key.
func NewTokenVerifier(pubKeyB64 string) (*TokenVerifier, error) {
	decoded, err := base64.StdEncoding.DecodeString(pubKeyB64)
	if err != nil {
		return nil, fmt.Errorf("auth: public key is not valid base64: %w", err)
	}
	if len(decoded) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("auth: public key must be %d bytes, got %d", ed25519.PublicKeySize, len(decoded))
	}
	return &TokenVerifier{key: ed25519.PublicKey(decoded), now: time.Now}, nil
}

// Verify implements Verifier.
func (v *TokenVerifier) Verify(_ context.Context, token string) (presence.Identity, error) {
	if token == "" {
		return presence.Identity{}, ErrTokenMissing
	}

	claimsPart, sigPart, ok := strings.Cut(token, ".")
	if !ok {
		return presence.Identity{}, fmt.Errorf("%w: not a signed token", ErrTokenInvalid)
	}
	claimsRaw, err := base64.RawURLEncoding.DecodeString(claimsPart)
	if err != nil {
		return presence.Identity{}, fmt.Errorf("%w: bad claims encoding", ErrTokenInvalid)
	}
	sig, err := base64.RawURLEncoding.DecodeString(sigPart)
	if err != nil {
		return presence.Identity{}, fmt.Errorf("%w: bad signature encoding", ErrTokenInvalid)
	}

	if !ed25519.Verify(v.key, claimsRaw, sig) {
		return presence.Identity{}, fmt.Errorf("%w: signature mismatch", ErrTokenInvalid)
	}

	var claims tokenClaims
	if err := json.Unmarshal(claimsRaw, &claims); err != nil {
		return presence.Identity{}, fmt.Errorf("%w: bad claims payload", ErrTokenInvalid)
	}
	if claims.UserID == "" {
		return presence.Identity{}, fmt.Errorf("%w: missing user id", ErrTokenInvalid)
	}
	if claims.Exp != 0 && v.now().Unix() > claims.Exp {
		return presence.Identity{}, fmt.Errorf("%w: token expired", ErrTokenInvalid)
	}

	return presence.Identity{UserID: claims.UserID, Username: claims.Username}, nil
}

// MintToken signs a credential token for id, valid for ttl. Used by
// cmd/genkey and tests; in production the login service mints tokens.
func MintToken(priv ed25519.PrivateKey, id presence.Identity, ttl time.Duration) (string, error) {
	claims := tokenClaims{
		UserID:   id.UserID,
		Username: id.Username,
		Exp:      time.Now().Add(ttl).Unix(),
	}
	claimsRaw, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("auth: marshal claims: %w", err)
	}
	sig := ed25519.Sign(priv, claimsRaw)
	return base64.RawURLEncoding.EncodeToString(claimsRaw) + "." + base64.RawURLEncoding.EncodeToString(sig), nil
}
