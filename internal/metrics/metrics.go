package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectionsActive tracks currently registered websocket connections.
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "buddies_connections_active",
			Help: "Currently connected users",
		},
	)

	// EnvelopesTotal counts inbound envelopes by kind.
	EnvelopesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buddies_envelopes_total",
			Help: "Inbound envelopes received",
		},
		[]string{"kind"},
	)

	// DeliveriesTotal counts routing outcomes by forwarded kind.
	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buddies_deliveries_total",
			Help: "Routing outcomes by event kind",
		},
		[]string{"kind", "outcome"},
	)

	// PresenceEventsTotal counts online/offline broadcasts.
	PresenceEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buddies_presence_events_total",
			Help: "Presence broadcasts by kind",
		},
		[]string{"kind"},
	)

	// AuthFailuresTotal counts rejected connection handshakes.
	AuthFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "buddies_auth_failures_total",
			Help: "Connection handshakes refused by the identity verifier",
		},
	)

	// MalformedEnvelopesTotal counts envelopes dropped before dispatch.
	MalformedEnvelopesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "buddies_malformed_envelopes_total",
			Help: "Envelopes dropped as unparseable or missing required fields",
		},
	)

	// DroppedSendsTotal counts per-recipient send failures (full buffers,
	// closed channels). Isolated faults, never fatal.
	DroppedSendsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "buddies_dropped_sends_total",
			Help: "Outbound sends refused by a recipient channel",
		},
	)
)
