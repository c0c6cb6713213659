package relay

import (
	"encoding/json"
	"fmt"
)

// Kind is the closed set of event types carried over a channel. Inbound
// kinds are sent by clients; outbound kinds only ever originate here.
type Kind string

// Inbound event kinds.
const (
	KindChatMessage        Kind = "chat_message"
	KindTypingStart        Kind = "typing_start"
	KindTypingEnd          Kind = "typing_end"
	KindInitiateCall       Kind = "initiate_call"
	KindAcceptCall         Kind = "accept_call"
	KindRejectCall         Kind = "reject_call"
	KindWebRTCOffer        Kind = "webrtc_offer"
	KindWebRTCAnswer       Kind = "webrtc_answer"
	KindWebRTCICECandidate Kind = "webrtc_ice_candidate"
	KindWebRTCEndCall      Kind = "webrtc_end_call"
	KindSendCaption        Kind = "send_caption"
)

// Outbound event kinds.
const (
	KindOnlineUsers         Kind = "online_users"
	KindUserOnline          Kind = "user_online"
	KindUserOffline         Kind = "user_offline"
	KindMessageDelivered    Kind = "message_delivered"
	KindMessageNotDelivered Kind = "message_not_delivered"
	KindIncomingCall        Kind = "incoming_call"
	KindCallAccepted        Kind = "call_accepted"
	KindCallRejected        Kind = "call_rejected"
	KindReceiveCaption      Kind = "receive_caption"
)

// inboundKinds is the closed set of kinds a client may send. Anything
// outside it is dropped before the kind can reach a metric label.
var inboundKinds = map[Kind]struct{}{
	KindChatMessage:        {},
	KindTypingStart:        {},
	KindTypingEnd:          {},
	KindInitiateCall:       {},
	KindAcceptCall:         {},
	KindRejectCall:         {},
	KindWebRTCOffer:        {},
	KindWebRTCAnswer:       {},
	KindWebRTCICECandidate: {},
	KindWebRTCEndCall:      {},
	KindSendCaption:        {},
}

// Envelope is the JSON structure exchanged over a channel in both
// directions. Payload is opaque to the relay except for the addressing
// fields each kind requires.
type Envelope struct {
	Type    Kind            `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ChatMessagePayload addresses a direct chat message.
type ChatMessagePayload struct {
	RecipientID string `json:"recipientId"`
	MessageID   string `json:"messageId"`
	Text        string `json:"text"`
}

// TypingPayload addresses a typing indicator.
type TypingPayload struct {
	RecipientID string `json:"recipientId"`
}

// InitiateCallPayload starts the call invitation handshake.
type InitiateCallPayload struct {
	CallID         string `json:"callId"`
	RoomID         string `json:"roomId"`
	TargetUserID   string `json:"targetUserId"`
	TargetUsername string `json:"targetUsername"`
}

// AcceptCallPayload answers a call invitation. CallerID identifies where
// the acceptance must be routed; it is the initiator's user ID, not a
// channel reference.
type AcceptCallPayload struct {
	CallID   string `json:"callId"`
	RoomID   string `json:"roomId"`
	CallerID string `json:"callerId"`
}

// RejectCallPayload declines a call invitation, routed like AcceptCall.
type RejectCallPayload struct {
	CallID   string `json:"callId"`
	CallerID string `json:"callerId"`
}

// SignalPayload holds the addressing fields of a WebRTC signaling event.
// The SDP or ICE candidate alongside them is never decoded.
type SignalPayload struct {
	ToUserID string `json:"toUserId"`
	CallID   string `json:"callId"`
}

// CaptionPayload carries a live caption for an active call.
type CaptionPayload struct {
	ToUserID string `json:"toUserId"`
	CallID   string `json:"callId"`
	Caption  string `json:"caption"`
}

// marshalEnvelope encodes an outbound envelope with the given payload.
func marshalEnvelope(kind Kind, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("relay: marshal %s payload: %w", kind, err)
	}
	return json.Marshal(Envelope{Type: kind, Payload: data})
}

// attribute returns a copy of payload with the given fields set,
// overwriting any client-supplied values of the same name. The rest of
// the payload passes through untouched, so opaque signaling content
// survives the merge.
func attribute(payload json.RawMessage, fields map[string]any) (json.RawMessage, error) {
	merged := make(map[string]any)
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &merged); err != nil {
			return nil, fmt.Errorf("relay: payload is not an object: %w", err)
		}
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}
