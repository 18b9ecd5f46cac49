// Package fulfillment holds the collaborators invoked once a customer
// confirms a return: shipping label generation and refund initiation.
// Both are simulations of downstream systems and report failures as
// result values rather than errors.
package fulfillment

import "context"

// LabelResult is the outcome of a label request.
type LabelResult struct {
	Success    bool   `json:"success"`
	TrackingID string `json:"tracking_id,omitempty"`
	LabelURL   string `json:"label_url,omitempty"`
	Message    string `json:"message"`
}

// RefundResult is the outcome of a refund request.
type RefundResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Labeler generates return shipping labels.
type Labeler interface {
	Generate(ctx context.Context, returnID, originAddress string) LabelResult
}

// Refunder initiates refunds for confirmed returns.
type Refunder interface {
	Process(ctx context.Context, returnID string) RefundResult
}
