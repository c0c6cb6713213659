package ws

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/Ruthvikraj007/backend-buddies/internal/presence"
)

const (
	// sendBufferSize is the number of outbound envelopes queued per client.
	sendBufferSize = 32

	// writeTimeout is the max time to wait for a single write to complete.
	writeTimeout = 5 * time.Second

	// idleCheckInterval is how often the idle reaper runs.
	idleCheckInterval = 30 * time.Second
)

// Client is one connected user's websocket. It implements
// presence.Channel: Send queues an envelope without blocking on the
// socket, so a slow consumer never stalls the sender's handler.
type Client struct {
	conn     *websocket.Conn
	send     chan []byte
	identity presence.Identity
	connID   string
	mgr      *ConnManager
}

// Identity returns the verified identity bound to this client.
func (c *Client) Identity() presence.Identity {
	return c.identity
}

// Send implements presence.Channel. Returns false if the client's
// buffer is full or the client has been removed.
func (c *Client) Send(data []byte) bool {
	return c.mgr.enqueue(c, data)
}

type connEntry struct {
	cancel      context.CancelFunc
	connectedAt time.Time
	lastActive  time.Time
}

// Stats holds point-in-time connection statistics.
type Stats struct {
	Active          int
	MaxConns        int
	Rejected        int64
	DroppedMessages int64
	IdleReaped      int64
}

// ConnManager owns the lifecycle of every websocket: per-client write
// pumps, connection caps, idle reaping and graceful shutdown.
type ConnManager struct {
	mu       sync.Mutex
	clients  map[*Client]*connEntry
	closed   bool
	maxConns int
	idleTTL  time.Duration
	stopIdle context.CancelFunc
	log      zerolog.Logger

	rejected        atomic.Int64
	droppedMessages atomic.Int64
	idleReaped      atomic.Int64
}

// Option configures a ConnManager.
type Option func(*ConnManager)

// WithMaxConns caps concurrent connections; 0 means unlimited.
func WithMaxConns(n int) Option {
	return func(cm *ConnManager) { cm.maxConns = n }
}

// WithIdleTimeout closes connections idle for longer than d; 0 disables
// reaping.
func WithIdleTimeout(d time.Duration) Option {
	return func(cm *ConnManager) { cm.idleTTL = d }
}

// NewConnManager creates a connection manager.
func NewConnManager(logger zerolog.Logger, opts ...Option) *ConnManager {
	cm := &ConnManager{
		clients: make(map[*Client]*connEntry),
		log:     logger.With().Str("component", "conns").Logger(),
	}
	for _, opt := range opts {
		opt(cm)
	}
	if cm.idleTTL > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		cm.stopIdle = cancel
		go cm.idleReapLoop(ctx)
	}
	return cm
}

// add registers a client and starts its write pump. The returned context
// is cancelled when the client is removed or the manager shuts down;
// read loops should select on it. A cancelled context is returned
// immediately when the manager is closed or at capacity.
func (cm *ConnManager) add(c *Client) context.Context {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.closed {
		c.conn.Close(websocket.StatusGoingAway, "server shutting down")
		return cancelledContext()
	}
	if cm.maxConns > 0 && len(cm.clients) >= cm.maxConns {
		cm.rejected.Add(1)
		c.conn.Close(websocket.StatusTryAgainLater, "server at capacity")
		return cancelledContext()
	}

	now := time.Now()
	c.send = make(chan []byte, sendBufferSize)
	ctx, cancel := context.WithCancel(context.Background())
	cm.clients[c] = &connEntry{
		cancel:      cancel,
		connectedAt: now,
		lastActive:  now,
	}

	go cm.writePump(ctx, c)
	return ctx
}

// remove stops a client's write pump and cleans it up.
func (cm *ConnManager) remove(c *Client) {
	cm.mu.Lock()
	entry, ok := cm.clients[c]
	if ok {
		delete(cm.clients, c)
	}
	cm.mu.Unlock()

	if ok {
		entry.cancel()
		close(c.send)
	}
}

// enqueue queues data for delivery to c. The manager lock orders this
// against remove closing the send channel: once c leaves the clients
// map no further enqueue can reach the channel.
func (cm *ConnManager) enqueue(c *Client, data []byte) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if _, ok := cm.clients[c]; !ok {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		cm.droppedMessages.Add(1)
		cm.log.Warn().
			Str("userId", c.identity.UserID).
			Str("connId", c.connID).
			Msg("send buffer full, dropping envelope")
		return false
	}
}

// touch updates the last-active timestamp so active clients survive the
// idle reaper.
func (cm *ConnManager) touch(c *Client) {
	cm.mu.Lock()
	if entry, ok := cm.clients[c]; ok {
		entry.lastActive = time.Now()
	}
	cm.mu.Unlock()
}

// Count returns the number of active connections.
func (cm *ConnManager) Count() int {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return len(cm.clients)
}

// Stats returns point-in-time connection statistics.
func (cm *ConnManager) Stats() Stats {
	cm.mu.Lock()
	active := len(cm.clients)
	maxConns := cm.maxConns
	cm.mu.Unlock()
	return Stats{
		Active:          active,
		MaxConns:        maxConns,
		Rejected:        cm.rejected.Load(),
		DroppedMessages: cm.droppedMessages.Load(),
		IdleReaped:      cm.idleReaped.Load(),
	}
}

// Shutdown cancels every write pump and closes each socket with
// StatusGoingAway. New connections are refused afterwards.
func (cm *ConnManager) Shutdown() {
	cm.mu.Lock()
	cm.closed = true
	clients := make(map[*Client]*connEntry, len(cm.clients))
	for c, entry := range cm.clients {
		clients[c] = entry
	}
	cm.clients = make(map[*Client]*connEntry)
	cm.mu.Unlock()

	if cm.stopIdle != nil {
		cm.stopIdle()
	}
	for c, entry := range clients {
		entry.cancel()
		close(c.send)
		c.conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
}

func (cm *ConnManager) idleReapLoop(ctx context.Context) {
	ticker := time.NewTicker(idleCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cm.reapIdle()
		}
	}
}

func (cm *ConnManager) reapIdle() {
	cm.mu.Lock()
	now := time.Now()
	stale := make(map[*Client]*connEntry)
	for c, entry := range cm.clients {
		if now.Sub(entry.lastActive) > cm.idleTTL {
			stale[c] = entry
			delete(cm.clients, c)
		}
	}
	cm.mu.Unlock()

	for c, entry := range stale {
		entry.cancel()
		close(c.send)
		c.conn.Close(websocket.StatusPolicyViolation, "idle timeout")
		cm.idleReaped.Add(1)
		cm.log.Info().
			Str("userId", c.identity.UserID).
			Str("connId", c.connID).
			Msg("reaped idle connection")
	}
}

// writePump drains the client's send channel onto the socket. Exits when
// ctx is cancelled, the channel closes, or a write fails.
func (cm *ConnManager) writePump(ctx context.Context, c *Client) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				cm.log.Debug().
					Err(err).
					Str("userId", c.identity.UserID).
					Str("connId", c.connID).
					Msg("write failed")
				return
			}
		}
	}
}

func cancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}
