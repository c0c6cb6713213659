package relay

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/Ruthvikraj007/backend-buddies/internal/metrics"
	"github.com/Ruthvikraj007/backend-buddies/internal/presence"
	"github.com/Ruthvikraj007/backend-buddies/internal/ratelimit"
)

// Dispatcher decodes inbound envelopes and hands them to the router or
// call relay by kind. Malformed envelopes and unknown kinds are logged
// and dropped; neither ever takes the sender's channel down.
type Dispatcher struct {
	router  *Router
	calls   *CallRelay
	limiter *ratelimit.Limiter
	log     zerolog.Logger
}

// NewDispatcher creates a dispatcher. limiter bounds envelopes per
// sender and may be nil to disable flood protection.
func NewDispatcher(router *Router, calls *CallRelay, limiter *ratelimit.Limiter, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		router:  router,
		calls:   calls,
		limiter: limiter,
		log:     logger.With().Str("component", "dispatch").Logger(),
	}
}

// Forget drops the rate-limiter state for userID. Called on disconnect
// so departed users do not linger in the limiter table.
func (d *Dispatcher) Forget(userID string) {
	if d.limiter != nil {
		d.limiter.Forget(userID)
	}
}

// Dispatch handles one raw inbound frame from sender's channel.
func (d *Dispatcher) Dispatch(sender presence.Identity, senderCh presence.Channel, data []byte) {
	if d.limiter != nil && !d.limiter.Allow(sender.UserID) {
		d.log.Warn().Str("sender", sender.UserID).Msg("envelope rate limit exceeded, dropping")
		return
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		d.malformed(sender, "", "invalid JSON")
		return
	}
	if _, ok := inboundKinds[env.Type]; !ok {
		// Collapse under one label value: env.Type is client-controlled
		// and must never mint metric children.
		metrics.EnvelopesTotal.WithLabelValues("unknown").Inc()
		d.log.Warn().
			Str("sender", sender.UserID).
			Str("kind", string(env.Type)).
			Msg("unknown event kind, ignoring")
		return
	}
	metrics.EnvelopesTotal.WithLabelValues(string(env.Type)).Inc()

	switch env.Type {
	case KindChatMessage:
		var p ChatMessagePayload
		if !d.decode(sender, env, &p) {
			return
		}
		if p.RecipientID == "" || p.MessageID == "" {
			d.malformed(sender, env.Type, "recipientId and messageId are required")
			return
		}
		d.router.ChatMessage(sender, senderCh, p, env.Payload)

	case KindTypingStart, KindTypingEnd:
		var p TypingPayload
		if !d.decode(sender, env, &p) {
			return
		}
		if p.RecipientID == "" {
			d.malformed(sender, env.Type, "recipientId is required")
			return
		}
		d.router.Typing(sender, env.Type, p, env.Payload)

	case KindInitiateCall:
		var p InitiateCallPayload
		if !d.decode(sender, env, &p) {
			return
		}
		if p.CallID == "" || p.TargetUserID == "" {
			d.malformed(sender, env.Type, "callId and targetUserId are required")
			return
		}
		d.calls.Initiate(sender, senderCh, p, env.Payload)

	case KindAcceptCall:
		var p AcceptCallPayload
		if !d.decode(sender, env, &p) {
			return
		}
		if p.CallID == "" || p.CallerID == "" {
			d.malformed(sender, env.Type, "callId and callerId are required")
			return
		}
		d.calls.Accept(sender, p, env.Payload)

	case KindRejectCall:
		var p RejectCallPayload
		if !d.decode(sender, env, &p) {
			return
		}
		if p.CallID == "" || p.CallerID == "" {
			d.malformed(sender, env.Type, "callId and callerId are required")
			return
		}
		d.calls.Reject(sender, p, env.Payload)

	case KindWebRTCOffer, KindWebRTCAnswer, KindWebRTCICECandidate, KindWebRTCEndCall:
		var p SignalPayload
		if !d.decode(sender, env, &p) {
			return
		}
		if p.ToUserID == "" {
			d.malformed(sender, env.Type, "toUserId is required")
			return
		}
		d.calls.Signal(sender, env.Type, p, env.Payload)

	case KindSendCaption:
		var p CaptionPayload
		if !d.decode(sender, env, &p) {
			return
		}
		if p.ToUserID == "" {
			d.malformed(sender, env.Type, "toUserId is required")
			return
		}
		d.calls.Caption(sender, p, env.Payload)
	}
}

func (d *Dispatcher) decode(sender presence.Identity, env Envelope, v any) bool {
	if err := json.Unmarshal(env.Payload, v); err != nil {
		d.malformed(sender, env.Type, "unparseable payload")
		return false
	}
	return true
}

func (d *Dispatcher) malformed(sender presence.Identity, kind Kind, reason string) {
	metrics.MalformedEnvelopesTotal.Inc()
	d.log.Warn().
		Str("sender", sender.UserID).
		Str("kind", string(kind)).
		Str("reason", reason).
		Msg("malformed envelope dropped")
}
