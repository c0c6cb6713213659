package relay

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ruthvikraj007/backend-buddies/internal/presence"
)

// fakeChannel records everything sent on it.
type fakeChannel struct {
	mu   sync.Mutex
	msgs [][]byte
	fail bool
}

func (f *fakeChannel) Send(data []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return false
	}
	f.msgs = append(f.msgs, append([]byte(nil), data...))
	return true
}

func (f *fakeChannel) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

// envelopeAt decodes the i-th envelope sent on the channel.
func (f *fakeChannel) envelopeAt(t *testing.T, i int) (Kind, map[string]any) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.Greater(t, len(f.msgs), i, "expected at least %d envelopes", i+1)

	var env Envelope
	require.NoError(t, json.Unmarshal(f.msgs[i], &env))
	payload := make(map[string]any)
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	return env.Type, payload
}

var (
	alice = presence.Identity{UserID: "u-alice", Username: "alice"}
	bob   = presence.Identity{UserID: "u-bob", Username: "bob"}
)

func newTestRouter(t *testing.T) (*Router, *presence.Registry) {
	t.Helper()
	reg := presence.NewRegistry()
	return NewRouter(reg, zerolog.Nop()), reg
}

func rawPayload(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestChatMessageDelivered(t *testing.T) {
	router, reg := newTestRouter(t)
	aliceCh := &fakeChannel{}
	bobCh := &fakeChannel{}
	reg.Register(alice, aliceCh)
	reg.Register(bob, bobCh)

	p := ChatMessagePayload{RecipientID: bob.UserID, MessageID: "m1", Text: "hi"}
	outcome := router.ChatMessage(alice, aliceCh, p, rawPayload(t, p))
	assert.Equal(t, Delivered, outcome)

	// Exactly one forwarded event to bob, attributed by the server.
	require.Equal(t, 1, bobCh.count())
	kind, payload := bobCh.envelopeAt(t, 0)
	assert.Equal(t, KindChatMessage, kind)
	assert.Equal(t, "hi", payload["text"])
	assert.Equal(t, alice.UserID, payload["senderId"])
	assert.Equal(t, alice.Username, payload["senderUsername"])
	assert.NotEmpty(t, payload["timestamp"])

	// Exactly one delivery receipt to alice.
	require.Equal(t, 1, aliceCh.count())
	kind, payload = aliceCh.envelopeAt(t, 0)
	assert.Equal(t, KindMessageDelivered, kind)
	assert.Equal(t, "m1", payload["messageId"])
	assert.Equal(t, bob.UserID, payload["recipientId"])
}

func TestChatMessageNotDelivered(t *testing.T) {
	router, reg := newTestRouter(t)
	aliceCh := &fakeChannel{}
	reg.Register(alice, aliceCh)

	p := ChatMessagePayload{RecipientID: "u-gone", MessageID: "m1", Text: "hi"}
	outcome := router.ChatMessage(alice, aliceCh, p, rawPayload(t, p))
	assert.Equal(t, NotDelivered, outcome)

	// One non-delivery notice to the sender, nothing anywhere else.
	require.Equal(t, 1, aliceCh.count())
	kind, payload := aliceCh.envelopeAt(t, 0)
	assert.Equal(t, KindMessageNotDelivered, kind)
	assert.Equal(t, "m1", payload["messageId"])
	assert.Equal(t, "user not online", payload["reason"])
}

func TestChatAttributionOverwritesClientFields(t *testing.T) {
	router, reg := newTestRouter(t)
	aliceCh := &fakeChannel{}
	bobCh := &fakeChannel{}
	reg.Register(alice, aliceCh)
	reg.Register(bob, bobCh)

	// A client asserting someone else's identity gets overwritten; the
	// server is the attribution authority.
	forged := json.RawMessage(`{"recipientId":"u-bob","messageId":"m1","text":"hi","senderId":"u-mallory","senderUsername":"mallory"}`)
	router.ChatMessage(alice, aliceCh, ChatMessagePayload{RecipientID: bob.UserID, MessageID: "m1"}, forged)

	_, payload := bobCh.envelopeAt(t, 0)
	assert.Equal(t, alice.UserID, payload["senderId"])
	assert.Equal(t, alice.Username, payload["senderUsername"])
}

func TestTypingBestEffort(t *testing.T) {
	router, reg := newTestRouter(t)
	aliceCh := &fakeChannel{}
	bobCh := &fakeChannel{}
	reg.Register(alice, aliceCh)
	reg.Register(bob, bobCh)

	p := TypingPayload{RecipientID: bob.UserID}
	outcome := router.Typing(alice, KindTypingStart, p, rawPayload(t, p))
	assert.Equal(t, Delivered, outcome)

	kind, payload := bobCh.envelopeAt(t, 0)
	assert.Equal(t, KindTypingStart, kind)
	assert.Equal(t, alice.UserID, payload["senderId"])
}

func TestTypingToOfflineUserIsSilent(t *testing.T) {
	router, reg := newTestRouter(t)
	aliceCh := &fakeChannel{}
	reg.Register(alice, aliceCh)

	p := TypingPayload{RecipientID: "u-gone"}
	outcome := router.Typing(alice, KindTypingEnd, p, rawPayload(t, p))
	assert.Equal(t, NotDelivered, outcome)

	// Best-effort kinds produce no notice to the sender.
	assert.Equal(t, 0, aliceCh.count())
}

func TestRoutingIsNotDeduplicated(t *testing.T) {
	router, reg := newTestRouter(t)
	aliceCh := &fakeChannel{}
	bobCh := &fakeChannel{}
	reg.Register(alice, aliceCh)
	reg.Register(bob, bobCh)

	p := ChatMessagePayload{RecipientID: bob.UserID, MessageID: "m1", Text: "hi"}
	router.ChatMessage(alice, aliceCh, p, rawPayload(t, p))
	router.ChatMessage(alice, aliceCh, p, rawPayload(t, p))

	// A pure relay forwards twice, no deduplication.
	assert.Equal(t, 2, bobCh.count())
	assert.Equal(t, 2, aliceCh.count())
}

func TestForwardToFaultyChannelStillDelivered(t *testing.T) {
	router, reg := newTestRouter(t)
	aliceCh := &fakeChannel{}
	bobCh := &fakeChannel{fail: true}
	reg.Register(alice, aliceCh)
	reg.Register(bob, bobCh)

	p := ChatMessagePayload{RecipientID: bob.UserID, MessageID: "m1", Text: "hi"}
	outcome := router.ChatMessage(alice, aliceCh, p, rawPayload(t, p))

	// Channel faults are isolated, not reported as non-delivery.
	assert.Equal(t, Delivered, outcome)
	kind, _ := aliceCh.envelopeAt(t, 0)
	assert.Equal(t, KindMessageDelivered, kind)
}
