package audit

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// ErrUnknownReturn is returned when no event mentions a return id.
var ErrUnknownReturn = errors.New("unknown return")

// ReturnStatus is where a return stands according to its events.
type ReturnStatus string

const (
	StatusPending   ReturnStatus = "pending_confirmation"
	StatusConfirmed ReturnStatus = "confirmed"
	StatusCancelled ReturnStatus = "cancelled"
)

// Timeline is the history of one return, oldest event first.
type Timeline struct {
	ReturnID   string       `json:"return_id"`
	OrderID    string       `json:"order_id,omitempty"`
	CustomerID string       `json:"customer_id,omitempty"`
	Status     ReturnStatus `json:"status"`
	// LabelIssued and RefundIssued are nil until the step was attempted.
	LabelIssued  *bool   `json:"label_issued,omitempty"`
	RefundIssued *bool   `json:"refund_issued,omitempty"`
	Events       []Event `json:"events"`
}

// Timeline rebuilds the history of returnID from the audit log.
func (s *Store) Timeline(ctx context.Context, returnID string) (*Timeline, error) {
	events, err := s.Query(ctx, QueryFilter{ReturnID: returnID})
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownReturn, returnID)
	}
	slices.Reverse(events)
	return buildTimeline(returnID, events), nil
}

func buildTimeline(returnID string, events []Event) *Timeline {
	t := &Timeline{ReturnID: returnID, Status: StatusPending, Events: events}
	for _, e := range events {
		if t.OrderID == "" {
			t.OrderID = e.OrderID
		}
		if t.CustomerID == "" {
			t.CustomerID = e.CustomerID
		}
		ok := e.Success
		switch e.Type {
		case EventReturnConfirmed:
			t.Status = StatusConfirmed
		case EventReturnCancelled:
			t.Status = StatusCancelled
		case EventLabelGenerated:
			t.LabelIssued = &ok
		case EventRefundProcessed:
			t.RefundIssued = &ok
		}
	}
	return t
}
