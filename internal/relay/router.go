package relay

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/Ruthvikraj007/backend-buddies/internal/metrics"
	"github.com/Ruthvikraj007/backend-buddies/internal/presence"
)

// Outcome is the result of routing a single envelope.
type Outcome int

const (
	Delivered Outcome = iota
	NotDelivered
)

func (o Outcome) String() string {
	if o == Delivered {
		return "delivered"
	}
	return "not_delivered"
}

// Router resolves a target identity through the registry and forwards an
// envelope to that identity's channel, verbatim except for sender
// attribution and a server timestamp. It is a pure relay: nothing is
// persisted and the same envelope routed twice is forwarded twice.
type Router struct {
	reg *presence.Registry
	log zerolog.Logger
	now func() time.Time
}

// NewRouter creates a router over the given registry.
func NewRouter(reg *presence.Registry, logger zerolog.Logger) *Router {
	return &Router{
		reg: reg,
		log: logger.With().Str("component", "router").Logger(),
		now: time.Now,
	}
}

func (r *Router) timestamp() string {
	return r.now().UTC().Format(time.RFC3339)
}

// reply sends an envelope straight back on the sender's own channel.
func (r *Router) reply(ch presence.Channel, kind Kind, payload any) {
	data, err := marshalEnvelope(kind, payload)
	if err != nil {
		r.log.Error().Err(err).Str("kind", string(kind)).Msg("encode reply")
		return
	}
	if !ch.Send(data) {
		metrics.DroppedSendsTotal.Inc()
	}
}

// forward attributes and forwards payload to targetUserID's channel.
// A send failure on the target channel still counts as Delivered: the
// target was reachable when resolved, and channel faults are isolated
// to that recipient.
func (r *Router) forward(targetUserID string, kind Kind, payload json.RawMessage, fields map[string]any) Outcome {
	ch, ok := r.reg.Resolve(targetUserID)
	if !ok {
		metrics.DeliveriesTotal.WithLabelValues(string(kind), NotDelivered.String()).Inc()
		return NotDelivered
	}

	attributed, err := attribute(payload, fields)
	if err != nil {
		r.log.Warn().Err(err).Str("kind", string(kind)).Msg("dropping unattributable payload")
		return NotDelivered
	}
	data, err := json.Marshal(Envelope{Type: kind, Payload: attributed})
	if err != nil {
		r.log.Error().Err(err).Str("kind", string(kind)).Msg("encode envelope")
		return NotDelivered
	}

	if !ch.Send(data) {
		metrics.DroppedSendsTotal.Inc()
		r.log.Warn().Str("kind", string(kind)).Str("target", targetUserID).Msg("target channel refused send")
	}
	metrics.DeliveriesTotal.WithLabelValues(string(kind), Delivered.String()).Inc()
	return Delivered
}

type messageDeliveredPayload struct {
	MessageID   string `json:"messageId"`
	RecipientID string `json:"recipientId"`
	Timestamp   string `json:"timestamp"`
}

type messageNotDeliveredPayload struct {
	MessageID   string `json:"messageId"`
	RecipientID string `json:"recipientId"`
	Reason      string `json:"reason"`
}

// ChatMessage forwards a chat message to its recipient and reports the
// outcome to the sender: a delivery receipt on success, a non-delivery
// notice if the recipient is offline. Chat is delivery-sensitive, so the
// sender always hears back.
func (r *Router) ChatMessage(sender presence.Identity, senderCh presence.Channel, p ChatMessagePayload, payload json.RawMessage) Outcome {
	ts := r.timestamp()
	outcome := r.forward(p.RecipientID, KindChatMessage, payload, map[string]any{
		"senderId":       sender.UserID,
		"senderUsername": sender.Username,
		"timestamp":      ts,
	})
	if outcome == Delivered {
		r.reply(senderCh, KindMessageDelivered, messageDeliveredPayload{
			MessageID:   p.MessageID,
			RecipientID: p.RecipientID,
			Timestamp:   ts,
		})
	} else {
		r.reply(senderCh, KindMessageNotDelivered, messageNotDeliveredPayload{
			MessageID:   p.MessageID,
			RecipientID: p.RecipientID,
			Reason:      "user not online",
		})
	}
	return outcome
}

// Typing forwards a typing indicator. Best effort: non-delivery is
// silent, the indicator is latency-sensitive and loss-tolerant.
func (r *Router) Typing(sender presence.Identity, kind Kind, p TypingPayload, payload json.RawMessage) Outcome {
	return r.forward(p.RecipientID, kind, payload, map[string]any{
		"senderId":       sender.UserID,
		"senderUsername": sender.Username,
	})
}
