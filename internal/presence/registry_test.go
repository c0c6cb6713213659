package presence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChannel struct{ name string }

func (s *stubChannel) Send(data []byte) bool { return true }

func TestRegisterAndResolve(t *testing.T) {
	reg := NewRegistry()
	ch := &stubChannel{name: "a"}

	replaced := reg.Register(Identity{UserID: "u1", Username: "alice"}, ch)
	require.False(t, replaced)

	got, ok := reg.Resolve("u1")
	require.True(t, ok)
	assert.Same(t, ch, got)
	assert.Equal(t, 1, reg.Count())
}

func TestResolveUnknown(t *testing.T) {
	reg := NewRegistry()
	_, ok := reg.Resolve("nobody")
	assert.False(t, ok)
}

func TestLastRegistrationWins(t *testing.T) {
	reg := NewRegistry()
	old := &stubChannel{name: "old"}
	fresh := &stubChannel{name: "fresh"}

	reg.Register(Identity{UserID: "u1", Username: "alice"}, old)
	replaced := reg.Register(Identity{UserID: "u1", Username: "alice"}, fresh)
	require.True(t, replaced)

	// Exactly one entry, reachable only through the latest channel.
	assert.Equal(t, 1, reg.Count())
	got, ok := reg.Resolve("u1")
	require.True(t, ok)
	assert.Same(t, fresh, got)
}

func TestUnregisterIsChannelMatched(t *testing.T) {
	reg := NewRegistry()
	old := &stubChannel{name: "old"}
	fresh := &stubChannel{name: "fresh"}

	reg.Register(Identity{UserID: "u1", Username: "alice"}, old)
	reg.Register(Identity{UserID: "u1", Username: "alice"}, fresh)

	// The superseded connection's late disconnect must not evict the
	// newer one.
	_, ok := reg.Unregister("u1", old)
	assert.False(t, ok)
	assert.Equal(t, 1, reg.Count())

	id, ok := reg.Unregister("u1", fresh)
	require.True(t, ok)
	assert.Equal(t, "alice", id.Username)
	assert.Equal(t, 0, reg.Count())
}

func TestUnregisterUnknownIsNoop(t *testing.T) {
	reg := NewRegistry()
	_, ok := reg.Unregister("nobody", &stubChannel{})
	assert.False(t, ok)
}

func TestOnlineExcept(t *testing.T) {
	reg := NewRegistry()
	reg.Register(Identity{UserID: "u1", Username: "alice"}, &stubChannel{})
	reg.Register(Identity{UserID: "u2", Username: "bob"}, &stubChannel{})
	reg.Register(Identity{UserID: "u3", Username: "carol"}, &stubChannel{})

	ids := reg.OnlineExcept("u2")
	require.Len(t, ids, 2)
	for _, id := range ids {
		assert.NotEqual(t, "u2", id.UserID)
	}

	assert.Len(t, reg.Online(), 3)
}

func TestConnectionsExcludesSubject(t *testing.T) {
	reg := NewRegistry()
	reg.Register(Identity{UserID: "u1", Username: "alice"}, &stubChannel{})
	reg.Register(Identity{UserID: "u2", Username: "bob"}, &stubChannel{})

	conns := reg.Connections("u1")
	require.Len(t, conns, 1)
	assert.Equal(t, "u2", conns[0].UserID)
}
