/*
Package events publishes ledger activity to an external broker.

PURPOSE:
  The engine emits an event whenever the ledger changes and when a
  reminder is requested for an outstanding balance. Delivery transport
  (email, SMS) lives on the consuming side of the broker; this module
  only publishes.

  Publishing is best-effort from the caller's point of view: the ledger
  write has already committed by the time the event goes out, and a
  publish failure is logged, not bubbled into the request.
*/
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the ledger service.
const (
	TypeEntryCreated      = "ledger.entry.created"
	TypeEntryUpdated      = "ledger.entry.updated"
	TypeEntryDeleted      = "ledger.entry.deleted"
	TypeCustomerCreated   = "ledger.customer.created"
	TypeCustomerDeleted   = "ledger.customer.deleted"
	TypeReminderRequested = "ledger.reminder.requested"
)

// Event is the envelope written to the broker.
type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	BusinessID int64          `json:"business_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// New builds an event envelope with a fresh id and timestamp.
func New(eventType string, businessID int64, payload map[string]any) Event {
	return Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		BusinessID: businessID,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

// Publisher writes events to a broker.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Noop discards every event. Used when no broker is configured and in
// tests that don't assert on events.
type Noop struct{}

func (Noop) Publish(ctx context.Context, event Event) error { return nil }
func (Noop) Close() error                                   { return nil }
