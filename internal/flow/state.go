// Package flow implements the per-conversation return confirmation state
// machine. State is an explicit value: callers pass it in and store the
// value they get back, so conversations never share anything.
package flow

// Phase is the coarse position of a conversation in the return flow.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAwaitingConfirmation
)

func (p Phase) String() string {
	if p == PhaseAwaitingConfirmation {
		return "awaiting_confirmation"
	}
	return "idle"
}

// State is the flow state of one conversation. The zero value is Idle.
// AwaitingConfirmation is true exactly when PendingReturnID is set.
type State struct {
	PendingReturnID      string `json:"pending_return_id,omitempty"`
	AwaitingConfirmation bool   `json:"awaiting_confirmation"`
}

// Phase reports which phase the state is in.
func (s State) Phase() Phase {
	if s.AwaitingConfirmation && s.PendingReturnID != "" {
		return PhaseAwaitingConfirmation
	}
	return PhaseIdle
}

// StartConfirmation moves to AwaitingConfirmation for returnID. Any pending
// confirmation is replaced. An empty returnID yields Idle.
func StartConfirmation(_ State, returnID string) State {
	if returnID == "" {
		return Reset()
	}
	return State{PendingReturnID: returnID, AwaitingConfirmation: true}
}

// Reset returns the Idle state.
func Reset() State {
	return State{}
}
