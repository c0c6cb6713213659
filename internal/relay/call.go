package relay

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/Ruthvikraj007/backend-buddies/internal/presence"
)

// CallRelay specializes the router for the call invitation handshake and
// WebRTC signaling passthrough. The relay keeps no call state: callId
// continuity is a contract between the two peers, and no check prevents
// an accept for a call that was never initiated.
type CallRelay struct {
	*Router
	clog zerolog.Logger
}

// NewCallRelay creates a call relay on top of an existing router.
func NewCallRelay(router *Router, logger zerolog.Logger) *CallRelay {
	return &CallRelay{
		Router: router,
		clog:   logger.With().Str("component", "call_relay").Logger(),
	}
}

type callRejectedPayload struct {
	CallID         string `json:"callId"`
	TargetUsername string `json:"targetUsername,omitempty"`
	Reason         string `json:"reason"`
}

// Initiate forwards a call invitation to the target as incoming_call,
// with the caller's identity attached so the callee can route its answer
// back. If the target is offline the initiator synchronously receives a
// call_rejected and nothing is forwarded.
func (c *CallRelay) Initiate(sender presence.Identity, senderCh presence.Channel, p InitiateCallPayload, payload json.RawMessage) Outcome {
	outcome := c.forward(p.TargetUserID, KindIncomingCall, payload, map[string]any{
		"callerId":       sender.UserID,
		"callerUsername": sender.Username,
	})
	if outcome == NotDelivered {
		c.reply(senderCh, KindCallRejected, callRejectedPayload{
			CallID: p.CallID,
			Reason: "user not online",
		})
	}
	return outcome
}

// Accept forwards a call acceptance to the original caller as
// call_accepted. Routing resolves through the payload's callerId, not a
// targetUserId: the acceptance travels back to whoever initiated. If the
// caller vanished between initiating and the accept arriving, the event
// is dropped; that race is legal and not reported to the acceptor.
func (c *CallRelay) Accept(sender presence.Identity, p AcceptCallPayload, payload json.RawMessage) Outcome {
	outcome := c.forward(p.CallerID, KindCallAccepted, payload, map[string]any{
		"targetUserId":   sender.UserID,
		"targetUsername": sender.Username,
	})
	if outcome == NotDelivered {
		c.clog.Info().
			Str("callId", p.CallID).
			Str("callerId", p.CallerID).
			Msg("dropping accept_call, caller no longer online")
	}
	return outcome
}

// Reject forwards a call rejection to the original caller as
// call_rejected, resolved through callerId like Accept. Silent drop if
// the caller is gone.
func (c *CallRelay) Reject(sender presence.Identity, p RejectCallPayload, payload json.RawMessage) Outcome {
	outcome := c.forward(p.CallerID, KindCallRejected, payload, map[string]any{
		"targetUsername": sender.Username,
		"reason":         "call rejected",
	})
	if outcome == NotDelivered {
		c.clog.Info().
			Str("callId", p.CallID).
			Str("callerId", p.CallerID).
			Msg("dropping reject_call, caller no longer online")
	}
	return outcome
}

// Signal relays a WebRTC offer, answer, ICE candidate or end-of-call
// event to toUserId with the sender attached. The SDP or candidate in
// the payload passes through unmodified. Best effort.
func (c *CallRelay) Signal(sender presence.Identity, kind Kind, p SignalPayload, payload json.RawMessage) Outcome {
	return c.forward(p.ToUserID, kind, payload, map[string]any{
		"fromUserId": sender.UserID,
	})
}

// Caption relays a live caption to toUserId as receive_caption. Best
// effort, no call-state validation.
func (c *CallRelay) Caption(sender presence.Identity, p CaptionPayload, payload json.RawMessage) Outcome {
	return c.forward(p.ToUserID, KindReceiveCaption, payload, map[string]any{
		"fromUserId":   sender.UserID,
		"fromUsername": sender.Username,
	})
}
