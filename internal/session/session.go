// Package session keeps the flow state of live conversations. A state
// lives only as long as its conversation: entries expire after a period
// of inactivity and Idle states are not stored at all.
package session

import (
	"context"
	"errors"

	"github.com/ecomarket/ecobot/internal/flow"
)

// ErrClosed is returned by a store after Close.
var ErrClosed = errors.New("session store closed")

// Store persists flow state per conversation id.
type Store interface {
	// Load returns the state for id, or the Idle state when none is stored.
	Load(ctx context.Context, id string) (flow.State, error)
	// Save stores the state for id. Saving Idle removes the entry.
	Save(ctx context.Context, id string, state flow.State) error
	// Delete forgets id.
	Delete(ctx context.Context, id string) error
	// Lock gives the caller exclusive use of id among every user of the
	// backing storage until unlock is called. It blocks until the lock is
	// free or ctx is done.
	Lock(ctx context.Context, id string) (unlock func(), err error)
	Close() error
}
