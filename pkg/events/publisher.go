package events

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Publisher emits domain events to NATS. A nil connection disables
// publishing so the API keeps working when the broker is absent.
type Publisher struct {
	conn   *nats.Conn
	logger zerolog.Logger
}

// NewPublisher wraps the connection. conn may be nil.
func NewPublisher(conn *nats.Conn, logger zerolog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger.With().Str("component", "events_publisher").Logger(),
	}
}

// Publish marshals the event and sends it on the subject. Failures are
// logged, never propagated; events are best effort.
func (p *Publisher) Publish(subject string, event any) {
	if p == nil || p.conn == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn().Err(err).Str("subject", subject).Msg("failed to encode event")
		return
	}
	if err := p.conn.Publish(subject, payload); err != nil {
		p.logger.Warn().Err(err).Str("subject", subject).Msg("failed to publish event")
	}
}
