package relay

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/Ruthvikraj007/backend-buddies/internal/metrics"
	"github.com/Ruthvikraj007/backend-buddies/internal/presence"
)

// Broadcaster announces online/offline transitions to every connected
// user except the subject, and pushes the roster snapshot to a newly
// registered channel. Fire and forget: a failed send to one recipient
// never aborts delivery to the rest.
type Broadcaster struct {
	reg *presence.Registry
	log zerolog.Logger
	now func() time.Time
}

// NewBroadcaster creates a broadcaster over the given registry.
func NewBroadcaster(reg *presence.Registry, logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		reg: reg,
		log: logger.With().Str("component", "broadcaster").Logger(),
		now: time.Now,
	}
}

type presenceEventPayload struct {
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	Timestamp string `json:"timestamp"`
}

// Online announces that subject came online to everyone except subject.
func (b *Broadcaster) Online(subject presence.Identity) {
	b.announce(KindUserOnline, subject)
}

// Offline announces that subject went offline. The subject is already
// unregistered by the time this runs, so excluding it is a formality.
func (b *Broadcaster) Offline(subject presence.Identity) {
	b.announce(KindUserOffline, subject)
}

func (b *Broadcaster) announce(kind Kind, subject presence.Identity) {
	data, err := marshalEnvelope(kind, presenceEventPayload{
		UserID:    subject.UserID,
		Username:  subject.Username,
		Timestamp: b.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		b.log.Error().Err(err).Str("kind", string(kind)).Msg("encode presence event")
		return
	}

	metrics.PresenceEventsTotal.WithLabelValues(string(kind)).Inc()
	for _, conn := range b.reg.Connections(subject.UserID) {
		if !conn.Channel.Send(data) {
			metrics.DroppedSendsTotal.Inc()
			b.log.Warn().
				Str("kind", string(kind)).
				Str("recipient", conn.UserID).
				Msg("presence event not accepted by channel")
		}
	}
}

// Roster sends the current set of online users, excluding exceptUserID,
// to a single channel. Sent once per registration, before any other
// traffic reaches the new channel.
func (b *Broadcaster) Roster(ch presence.Channel, exceptUserID string) {
	ids := b.reg.OnlineExcept(exceptUserID)
	data, err := marshalEnvelope(KindOnlineUsers, ids)
	if err != nil {
		b.log.Error().Err(err).Msg("encode roster")
		return
	}
	if !ch.Send(data) {
		metrics.DroppedSendsTotal.Inc()
	}
}
