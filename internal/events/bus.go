// Package events is the cross-process fan-out bus for C9: sustained
// degradation alerts, execution outcomes, and protection drops published
// for any out-of-process consumer (internal/alerts, the control surface,
// a future external dashboard) to subscribe to.
//
// Grounded on cryptofunk's internal/orchestrator/messagebus.go, narrowed
// from its full agent-to-agent request/reply/broadcast protocol down to
// the publish/subscribe slice this pipeline actually needs: C8's learner
// already talks to C7 over an in-process Go channel (see
// internal/learning), so this bus only carries events meant to leave the
// process.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Type identifies the kind of event carried on the bus.
type Type string

const (
	TypeDegradationAlert   Type = "degradation_alert"
	TypeExecutionResult    Type = "execution_result"
	TypeProtectionDropped  Type = "protection_dropped"
	TypeCircuitBreakerTrip Type = "circuit_breaker_trip"
	TypeCandidateDiscarded Type = "candidate_discarded"
)

// Event is the envelope published on the bus.
type Event struct {
	ID        uuid.UUID       `json:"id"`
	Type      Type            `json:"type"`
	Source    string          `json:"source"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// Handler processes one received event. A non-nil error is logged but
// does not unsubscribe the handler.
type Handler func(evt Event) error

// Config configures the bus connection.
type Config struct {
	NATSURL string
	Prefix  string // subject prefix, default "solarb.events."
	Source  string // this process's name, stamped on every published event
}

func DefaultConfig() Config {
	return Config{
		NATSURL: nats.DefaultURL,
		Prefix:  "solarb.events.",
		Source:  "solarb-engine",
	}
}

// Bus publishes and subscribes to domain events over NATS.
type Bus struct {
	nc     *nats.Conn
	prefix string
	source string
	log    zerolog.Logger
}

// Connect dials NATS and returns a ready Bus. Use StartEmbedded alongside this to
// run a local NATS server with no external infra.
func Connect(cfg Config, log zerolog.Logger) (*Bus, error) {
	if cfg.Prefix == "" {
		cfg.Prefix = "solarb.events."
	}
	log = log.With().Str("component", "events_bus").Logger()

	nc, err := nats.Connect(
		cfg.NATSURL,
		nats.Name(cfg.Source),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	return &Bus{nc: nc, prefix: cfg.Prefix, source: cfg.Source, log: log}, nil
}

// Publish serializes payload and publishes it under the event's subject,
// pattern "{prefix}{type}".
func (b *Bus) Publish(ctx context.Context, typ Type, payload any) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if !b.nc.IsConnected() {
		return fmt.Errorf("events bus not connected")
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	evt := Event{
		ID:        uuid.New(),
		Type:      typ,
		Source:    b.source,
		Payload:   data,
		Timestamp: time.Now(),
	}
	encoded, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	subject := b.subject(typ)
	if err := b.nc.Publish(subject, encoded); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	b.log.Debug().Str("event_id", evt.ID.String()).Str("type", string(typ)).Str("subject", subject).Msg("published event")
	return nil
}

// Subscribe registers handler for every event of the given type.
func (b *Bus) Subscribe(typ Type, handler Handler) (*Subscription, error) {
	subject := b.subject(typ)
	sub, err := b.nc.Subscribe(subject, func(msg *nats.Msg) {
		var evt Event
		if err := json.Unmarshal(msg.Data, &evt); err != nil {
			b.log.Warn().Err(err).Str("subject", subject).Msg("failed to unmarshal event")
			return
		}
		if err := handler(evt); err != nil {
			b.log.Error().Err(err).Str("event_id", evt.ID.String()).Str("type", string(evt.Type)).Msg("event handler failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", subject, err)
	}
	return &Subscription{sub: sub, subject: subject}, nil
}

func (b *Bus) subject(typ Type) string {
	return b.prefix + string(typ)
}

// Close closes the connection without draining pending messages.
func (b *Bus) Close() {
	if b.nc != nil {
		b.nc.Close()
		b.log.Info().Msg("events bus closed")
	}
}

// Subscription is an active subscription returned by Subscribe.
type Subscription struct {
	sub     *nats.Subscription
	subject string
}

func (s *Subscription) Unsubscribe() error {
	if err := s.sub.Unsubscribe(); err != nil {
		return fmt.Errorf("unsubscribe from %s: %w", s.subject, err)
	}
	return nil
}
