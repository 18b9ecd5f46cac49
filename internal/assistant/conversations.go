package assistant

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ecomarket/ecobot/internal/flow"
	"github.com/ecomarket/ecobot/internal/router"
	"github.com/ecomarket/ecobot/internal/session"
)

// Conversations runs an Assistant over many conversations, keeping each
// one's flow state in a session store. Messages of one conversation are
// handled strictly in order, also across processes sharing the store;
// different conversations run in parallel.
type Conversations struct {
	assistant *Assistant
	store     session.Store
	locks     session.KeyedMutex
}

// NewConversations creates a Conversations.
func NewConversations(a *Assistant, store session.Store) *Conversations {
	return &Conversations{
		assistant: a,
		store:     store,
	}
}

// NewID mints a conversation id for a channel.
func NewID(channel string) string {
	return channel + "-" + uuid.NewString()
}

// Assistant returns the wrapped assistant.
func (c *Conversations) Assistant() *Assistant {
	return c.assistant
}

// Handle answers one message of conversationID. Errors only come from the
// session store.
func (c *Conversations) Handle(ctx context.Context, conversationID, utterance string) (Reply, error) {
	unlock, err := c.lock(ctx, conversationID)
	if err != nil {
		return Reply{}, err
	}
	defer unlock()

	state, err := c.store.Load(ctx, conversationID)
	if err != nil {
		return Reply{}, fmt.Errorf("loading session: %w", err)
	}

	reply, next := c.assistant.Handle(ctx, conversationID, state, utterance)

	if err := c.store.Save(ctx, conversationID, next); err != nil {
		return reply, fmt.Errorf("saving session: %w", err)
	}
	return reply, nil
}

// Dispatch runs a routed intent against conversationID under the same
// ordering guarantees as Handle.
func (c *Conversations) Dispatch(ctx context.Context, conversationID string, intent router.Intent) (Reply, error) {
	unlock, err := c.lock(ctx, conversationID)
	if err != nil {
		return Reply{}, err
	}
	defer unlock()

	state, err := c.store.Load(ctx, conversationID)
	if err != nil {
		return Reply{}, fmt.Errorf("loading session: %w", err)
	}

	reply, next := c.assistant.Dispatch(ctx, conversationID, state, intent)

	if err := c.store.Save(ctx, conversationID, next); err != nil {
		return reply, fmt.Errorf("saving session: %w", err)
	}
	return reply, nil
}

// State returns the current flow state of a conversation.
func (c *Conversations) State(ctx context.Context, conversationID string) (flow.State, error) {
	unlock := c.locks.Lock(conversationID)
	defer unlock()
	return c.store.Load(ctx, conversationID)
}

// End forgets a conversation.
func (c *Conversations) End(ctx context.Context, conversationID string) error {
	unlock, err := c.lock(ctx, conversationID)
	if err != nil {
		return err
	}
	defer unlock()
	return c.store.Delete(ctx, conversationID)
}

// lock takes the in-process lock first so that only one local caller at a
// time waits on the store's lock.
func (c *Conversations) lock(ctx context.Context, conversationID string) (func(), error) {
	unlock := c.locks.Lock(conversationID)
	release, err := c.store.Lock(ctx, conversationID)
	if err != nil {
		unlock()
		return nil, fmt.Errorf("locking conversation: %w", err)
	}
	return func() {
		release()
		unlock()
	}, nil
}
