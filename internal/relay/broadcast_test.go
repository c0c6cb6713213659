package relay

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ruthvikraj007/backend-buddies/internal/presence"
)

func TestOnlineBroadcastExcludesSubject(t *testing.T) {
	reg := presence.NewRegistry()
	b := NewBroadcaster(reg, zerolog.Nop())

	aliceCh := &fakeChannel{}
	bobCh := &fakeChannel{}
	carolCh := &fakeChannel{}
	reg.Register(alice, aliceCh)
	reg.Register(bob, bobCh)
	reg.Register(presence.Identity{UserID: "u-carol", Username: "carol"}, carolCh)

	b.Online(alice)

	// Everyone except alice hears about alice.
	assert.Equal(t, 0, aliceCh.count())
	for _, ch := range []*fakeChannel{bobCh, carolCh} {
		require.Equal(t, 1, ch.count())
		kind, payload := ch.envelopeAt(t, 0)
		assert.Equal(t, KindUserOnline, kind)
		assert.Equal(t, alice.UserID, payload["userId"])
		assert.Equal(t, alice.Username, payload["username"])
		assert.NotEmpty(t, payload["timestamp"])
	}
}

func TestOfflineBroadcast(t *testing.T) {
	reg := presence.NewRegistry()
	b := NewBroadcaster(reg, zerolog.Nop())

	aliceCh := &fakeChannel{}
	bobCh := &fakeChannel{}
	reg.Register(alice, aliceCh)
	reg.Register(bob, bobCh)

	// Alice disconnects: unregister first, then announce.
	id, ok := reg.Unregister(alice.UserID, aliceCh)
	require.True(t, ok)
	b.Offline(id)

	require.Equal(t, 1, bobCh.count())
	kind, payload := bobCh.envelopeAt(t, 0)
	assert.Equal(t, KindUserOffline, kind)
	assert.Equal(t, alice.UserID, payload["userId"])
	assert.Equal(t, 0, aliceCh.count())
}

func TestRosterExcludesNewEntrant(t *testing.T) {
	reg := presence.NewRegistry()
	b := NewBroadcaster(reg, zerolog.Nop())

	bobCh := &fakeChannel{}
	aliceCh := &fakeChannel{}
	reg.Register(bob, bobCh)
	reg.Register(alice, aliceCh)

	b.Roster(aliceCh, alice.UserID)

	require.Equal(t, 1, aliceCh.count())

	var env Envelope
	require.NoError(t, json.Unmarshal(aliceCh.msgs[0], &env))
	assert.Equal(t, KindOnlineUsers, env.Type)
	var roster []presence.Identity
	require.NoError(t, json.Unmarshal(env.Payload, &roster))
	require.Len(t, roster, 1)
	assert.Equal(t, bob.UserID, roster[0].UserID)
}

func TestRosterEmptyForFirstUser(t *testing.T) {
	reg := presence.NewRegistry()
	b := NewBroadcaster(reg, zerolog.Nop())

	aliceCh := &fakeChannel{}
	reg.Register(alice, aliceCh)
	b.Roster(aliceCh, alice.UserID)

	var env Envelope
	require.NoError(t, json.Unmarshal(aliceCh.msgs[0], &env))
	var roster []presence.Identity
	require.NoError(t, json.Unmarshal(env.Payload, &roster))
	assert.Empty(t, roster)
}

func TestBroadcastFaultIsolation(t *testing.T) {
	reg := presence.NewRegistry()
	b := NewBroadcaster(reg, zerolog.Nop())

	badCh := &fakeChannel{fail: true}
	goodCh := &fakeChannel{}
	reg.Register(bob, badCh)
	reg.Register(presence.Identity{UserID: "u-carol", Username: "carol"}, goodCh)

	// A recipient refusing the send must not stop delivery to others.
	b.Online(alice)
	assert.Equal(t, 1, goodCh.count())
}
