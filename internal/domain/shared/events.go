package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each event represents something significant that
// happened in the draw and is interesting to subscribers (cache
// invalidation, audit logging, notifications).
const (
	// Membership events
	EventMembershipCreated   EventType = "membership.created"
	EventMembershipAccepted  EventType = "membership.accepted"
	EventMembershipLocked    EventType = "membership.locked"
	EventMembershipDestroyed EventType = "membership.destroyed"

	// Group events
	EventGroupCreated       EventType = "group.created"
	EventGroupStatusChanged EventType = "group.status_changed"
	EventGroupDisbanded     EventType = "group.disbanded"

	// Draw events
	EventDrawTornDown EventType = "draw.torn_down"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
}

// NewBaseEvent creates a BaseEvent stamped with the current time.
func NewBaseEvent(t EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        t,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
	}
}

// EventType returns the type of the event.
func (e BaseEvent) EventType() EventType { return e.Type }

// OccurredAt returns when the event occurred.
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// AggregateID returns the aggregate that produced the event.
func (e BaseEvent) AggregateID() string { return e.AggregateId }

// EventHandler processes a single event.
type EventHandler func(event Event) error

// EventPublisher publishes domain events to interested subscribers.
// Publishing happens after the transaction that produced the events has
// committed; subscribers must tolerate at-most-once delivery.
type EventPublisher interface {
	Publish(event Event) error
	PublishBatch(events []Event) error
}

// EventBus combines publishing with subscription management.
type EventBus interface {
	EventPublisher

	Subscribe(eventType EventType, handler EventHandler) error
	SubscribeAll(handler EventHandler) error
	Close() error
}
