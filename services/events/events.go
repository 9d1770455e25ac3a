// Package events publishes security-relevant happenings to a message bus
// so downstream consumers (audit log, alerting) can react without coupling
// to the auth flow.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

const (
	TopicSecurity = "auth.security"

	EventTokenReuse     = "token_reuse_detected"
	EventOriginMismatch = "origin_mismatch"
	EventLogin          = "login"
	EventLogout         = "logout"
	EventTokensEvicted  = "tokens_evicted"
)

// SecurityEvent is the wire shape for every message on TopicSecurity.
type SecurityEvent struct {
	Type       string    `json:"type"`
	UserID     string    `json:"user_id"`
	Family     string    `json:"family,omitempty"`
	DeviceID   string    `json:"device_id,omitempty"`
	IPAddress  string    `json:"ip_address,omitempty"`
	Origin     string    `json:"origin,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, event SecurityEvent) error
	Close() error
}

// WatermillPublisher forwards events to any watermill publisher backend.
type WatermillPublisher struct {
	publisher message.Publisher
}

func NewWatermillPublisher(publisher message.Publisher) *WatermillPublisher {
	return &WatermillPublisher{publisher: publisher}
}

func (p *WatermillPublisher) Publish(_ context.Context, event SecurityEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("event_type", event.Type)
	return p.publisher.Publish(TopicSecurity, msg)
}

func (p *WatermillPublisher) Close() error {
	return p.publisher.Close()
}

// NopPublisher drops every event. Used when no bus is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, SecurityEvent) error { return nil }
func (NopPublisher) Close() error                                 { return nil }
