package ws

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/Ruthvikraj007/backend-buddies/internal/auth"
	"github.com/Ruthvikraj007/backend-buddies/internal/metrics"
	"github.com/Ruthvikraj007/backend-buddies/internal/presence"
	"github.com/Ruthvikraj007/backend-buddies/internal/ratelimit"
	"github.com/Ruthvikraj007/backend-buddies/internal/relay"
)

// Handler upgrades HTTP requests to websockets, gates them through the
// identity verifier, registers the resulting channel and runs the read
// loop. Verification happens before the upgrade: a request without a
// valid credential token is refused with an HTTP error and never touches
// the registry.
type Handler struct {
	verifier    auth.Verifier
	registry    *presence.Registry
	broadcaster *relay.Broadcaster
	dispatcher  *relay.Dispatcher
	conns       *ConnManager
	handshakes  *ratelimit.Limiter
	log         zerolog.Logger
}

// NewHandler creates a websocket handler. handshakes limits upgrade
// attempts per remote IP and may be nil.
func NewHandler(
	verifier auth.Verifier,
	registry *presence.Registry,
	broadcaster *relay.Broadcaster,
	dispatcher *relay.Dispatcher,
	conns *ConnManager,
	handshakes *ratelimit.Limiter,
	logger zerolog.Logger,
) *Handler {
	return &Handler{
		verifier:    verifier,
		registry:    registry,
		broadcaster: broadcaster,
		dispatcher:  dispatcher,
		conns:       conns,
		handshakes:  handshakes,
		log:         logger.With().Str("component", "ws").Logger(),
	}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.handshakes != nil && !h.handshakes.Allow(remoteIP(r)) {
		http.Error(w, "too many connection attempts", http.StatusTooManyRequests)
		return
	}

	identity, err := h.verifier.Verify(r.Context(), bearerToken(r))
	if err != nil {
		metrics.AuthFailuresTotal.Inc()
		switch {
		case errors.Is(err, auth.ErrTokenMissing):
			http.Error(w, "credential token required", http.StatusUnauthorized)
		case errors.Is(err, auth.ErrTokenInvalid):
			http.Error(w, "credential token invalid", http.StatusUnauthorized)
		default:
			h.log.Error().Err(err).Msg("verifier unavailable")
			http.Error(w, "verification unavailable", http.StatusServiceUnavailable)
		}
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // Allow all origins in dev; tighten in production.
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("accept error")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	client := &Client{
		conn:     conn,
		identity: identity,
		connID:   uuid.NewString(),
		mgr:      h.conns,
	}

	connCtx := h.conns.add(client)
	if connCtx.Err() != nil {
		// Manager closed or at capacity; socket already closed.
		return
	}

	// Last registration wins: a reconnect supersedes the old entry and
	// the stale channel is no longer resolvable.
	replaced := h.registry.Register(identity, client)
	metrics.ConnectionsActive.Set(float64(h.registry.Count()))

	h.log.Info().
		Str("userId", identity.UserID).
		Str("username", identity.Username).
		Str("connId", client.connID).
		Bool("superseded", replaced).
		Msg("connected")

	// The new channel gets the roster; everyone else learns about the
	// arrival, unless they already knew because this is a reconnect.
	h.broadcaster.Roster(client, identity.UserID)
	if !replaced {
		h.broadcaster.Online(identity)
	}

	h.readLoop(r.Context(), connCtx, client)

	h.conns.remove(client)
	if id, ok := h.registry.Unregister(identity.UserID, client); ok {
		h.dispatcher.Forget(id.UserID)
		metrics.ConnectionsActive.Set(float64(h.registry.Count()))
		h.broadcaster.Offline(id)
		h.log.Info().
			Str("userId", id.UserID).
			Str("connId", client.connID).
			Msg("disconnected")
	}
}

// readLoop reads envelopes until the socket closes or the connection
// manager cancels connCtx.
func (h *Handler) readLoop(ctx context.Context, connCtx context.Context, client *Client) {
	for {
		select {
		case <-connCtx.Done():
			return
		default:
		}

		_, data, err := client.conn.Read(ctx)
		if err != nil {
			// Normal close or context cancelled.
			return
		}

		h.conns.touch(client)
		h.dispatcher.Dispatch(client.identity, client, data)
	}
}

// bearerToken extracts the credential token from the query string or an
// Authorization header. Browsers cannot set headers on websocket dials,
// so the query parameter is the primary path.
func bearerToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	const prefix = "Bearer "
	if h := r.Header.Get("Authorization"); len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}

func remoteIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
