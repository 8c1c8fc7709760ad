package model

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

const (
	EventCoursePurchased     = "COURSE_PURCHASED"
	EventMembershipActivated = "MEMBERSHIP_ACTIVATED"

	OutboxStatusPending   = "pending"
	OutboxStatusProcessed = "processed"
	OutboxStatusFailed    = "failed"

	AggregateOrder = "order"

	MembershipTypeAnnual = "annual"
)

// OutboxEvent is a durable record of an entitlement that must eventually be
// delivered to the auth service. It is created in the same transaction that
// marks its order paid, and is terminated exactly once by the dispatcher:
// pending -> processed or pending -> failed.
type OutboxEvent struct {
	ID            int64           `json:"-"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	ProcessedAt   *time.Time      `json:"processed_at,omitempty"`
}

// CoursePurchased is the payload carried by a COURSE_PURCHASED event.
type CoursePurchased struct {
	BuyerID  string `json:"userId"`
	OrderRef string `json:"orderId"`
	CourseID string `json:"courseId"`
}

// MembershipActivated is the payload carried by a MEMBERSHIP_ACTIVATED event.
// The validity window is fixed at one year from verification time.
type MembershipActivated struct {
	BuyerID        string    `json:"userId"`
	OrderRef       string    `json:"orderId"`
	MembershipType string    `json:"membershipType"`
	StartsAt       time.Time `json:"startsAt"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

// EventPayload is the tagged union over the two entitlement payloads. The
// dispatcher switches on the concrete type to pick the downstream operation.
type EventPayload interface {
	EventType() string
}

func (CoursePurchased) EventType() string     { return EventCoursePurchased }
func (MembershipActivated) EventType() string { return EventMembershipActivated }

// NewOutboxEvent builds a pending outbox event for the given order reference
// from a typed payload.
func NewOutboxEvent(orderRef string, payload EventPayload) (*OutboxEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal outbox payload")
	}
	return &OutboxEvent{
		AggregateType: AggregateOrder,
		AggregateID:   orderRef,
		EventType:     payload.EventType(),
		Payload:       raw,
		Status:        OutboxStatusPending,
	}, nil
}

// DecodePayload decodes the raw JSON payload back into its typed form based
// on the event type tag.
func (e *OutboxEvent) DecodePayload() (EventPayload, error) {
	switch e.EventType {
	case EventCoursePurchased:
		var p CoursePurchased
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return nil, errors.Wrapf(err, "invalid payload for event %d", e.ID)
		}
		return p, nil
	case EventMembershipActivated:
		var p MembershipActivated
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return nil, errors.Wrapf(err, "invalid payload for event %d", e.ID)
		}
		return p, nil
	default:
		return nil, errors.Errorf("unknown event type %q", e.EventType)
	}
}
