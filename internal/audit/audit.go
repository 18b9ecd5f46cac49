// Package audit keeps an append-only log of return lifecycle events. The
// log is written by the assistant and read only by operators; nothing in
// a conversation ever reads it back.
package audit

import (
	"context"
	"time"
)

// EventType is what happened to a return.
type EventType string

const (
	EventEligibilityChecked    EventType = "eligibility_checked"
	EventConfirmationRequested EventType = "confirmation_requested"
	EventReturnConfirmed       EventType = "return_confirmed"
	EventReturnCancelled       EventType = "return_cancelled"
	EventLabelGenerated        EventType = "label_generated"
	EventRefundProcessed       EventType = "refund_processed"
)

// Event is a single audit trail record.
type Event struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	Type           EventType `json:"type"`
	Channel        string    `json:"channel,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
	ReturnID       string    `json:"return_id,omitempty"`
	OrderID        string    `json:"order_id,omitempty"`
	CustomerID     string    `json:"customer_id,omitempty"`
	Code           string    `json:"code,omitempty"`
	Success        bool      `json:"success"`
	Detail         string    `json:"detail,omitempty"`
}

// Logger records events.
type Logger interface {
	Log(ctx context.Context, event Event) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Log(context.Context, Event) error { return nil }
