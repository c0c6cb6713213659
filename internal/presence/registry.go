package presence

import (
	"sync"
	"time"
)

// Identity is the verified identity bound to a connection for its lifetime.
type Identity struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// Channel is the send side of one connected user's transport. Send queues
// the message and reports whether it was accepted; it must never block on
// the recipient's I/O.
type Channel interface {
	Send(data []byte) bool
}

// Connection binds an identity to its channel.
type Connection struct {
	Identity
	Channel     Channel
	ConnectedAt time.Time
}

// Registry is the single source of truth for which identities are
// reachable right now. At most one connection exists per user ID; a new
// registration for an already-registered user supersedes the old entry.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Connection
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*Connection)}
}

// Register inserts or replaces the connection for id.UserID and reports
// whether a previous connection was superseded. The superseded channel is
// no longer reachable through the registry; its transport is left to
// close on its own.
func (r *Registry) Register(id Identity, ch Channel) (replaced bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, replaced = r.conns[id.UserID]
	r.conns[id.UserID] = &Connection{
		Identity:    id,
		Channel:     ch,
		ConnectedAt: time.Now(),
	}
	return replaced
}

// Unregister removes the entry for userID, but only if it still points at
// ch. This makes the late disconnect of a superseded channel a no-op: the
// user's newer connection stays registered. Returns the removed identity
// and whether anything was removed.
func (r *Registry) Unregister(userID string, ch Channel) (Identity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[userID]
	if !ok || conn.Channel != ch {
		return Identity{}, false
	}
	delete(r.conns, userID)
	return conn.Identity, true
}

// Resolve returns the channel for userID, if the user is connected.
func (r *Registry) Resolve(userID string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[userID]
	if !ok {
		return nil, false
	}
	return conn.Channel, true
}

// Online returns a snapshot of every connected identity.
func (r *Registry) Online() []Identity {
	return r.OnlineExcept("")
}

// OnlineExcept returns a snapshot of every connected identity other than
// exceptUserID.
func (r *Registry) OnlineExcept(exceptUserID string) []Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]Identity, 0, len(r.conns))
	for userID, conn := range r.conns {
		if userID == exceptUserID {
			continue
		}
		ids = append(ids, conn.Identity)
	}
	return ids
}

// Connections returns the connections for every user other than
// exceptUserID. The slice is a snapshot; sending on the channels after
// the snapshot is taken is safe but may race with disconnects.
func (r *Registry) Connections(exceptUserID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := make([]*Connection, 0, len(r.conns))
	for userID, conn := range r.conns {
		if userID == exceptUserID {
			continue
		}
		conns = append(conns, conn)
	}
	return conns
}

// Count returns the number of connected users.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
