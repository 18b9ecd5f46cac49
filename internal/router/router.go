// Package router decides which capability an utterance should reach:
// an eligibility check, the confirmation step, the knowledge base, or a
// request for the missing order reference.
package router

import (
	"context"
	"errors"

	"github.com/ecomarket/ecobot/internal/flow"
)

// ErrInvalidIntent is returned when a classifier produces an intent that
// cannot be acted on.
var ErrInvalidIntent = errors.New("invalid intent")

// Kind is the capability an utterance is routed to.
type Kind string

const (
	KindCheckEligibility Kind = "check_eligibility"
	KindConfirm          Kind = "confirm"
	KindKnowledgeQuery   Kind = "knowledge_query"
	KindAskReference     Kind = "ask_reference"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindCheckEligibility, KindConfirm, KindKnowledgeQuery, KindAskReference:
		return true
	}
	return false
}

// Intent is a routing decision. Reference is set for KindCheckEligibility;
// Text carries the utterance for the other kinds.
type Intent struct {
	Kind      Kind   `json:"kind"`
	Reference string `json:"reference,omitempty"`
	Text      string `json:"text"`
}

// Classifier routes an utterance given the conversation's flow state.
type Classifier interface {
	Classify(ctx context.Context, utterance string, state flow.State) (Intent, error)
}
