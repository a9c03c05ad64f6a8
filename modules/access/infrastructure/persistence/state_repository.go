package persistence

import (
	"context"
	"sync"

	"github.com/iota-uz/accessdesk/modules/access/domain/conversation"
)

// InMemoryStateRepository keys request states by requester id. Each state
// has a single conversation-thread owner, the map lock only guards the
// index itself.
type InMemoryStateRepository struct {
	mu     sync.RWMutex
	states map[string]*conversation.RequestState
}

func NewStateRepository() conversation.Repository {
	return &InMemoryStateRepository{states: map[string]*conversation.RequestState{}}
}

func (r *InMemoryStateRepository) Get(ctx context.Context, requesterID string) (*conversation.RequestState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.states[requesterID]
	if !ok {
		return nil, conversation.ErrStateNotFound
	}
	return cloneState(state), nil
}

func (r *InMemoryStateRepository) Save(ctx context.Context, state *conversation.RequestState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[state.RequesterID] = cloneState(state)
	return nil
}

func cloneState(s *conversation.RequestState) *conversation.RequestState {
	clone := *s
	if s.Outcome != nil {
		outcome := *s.Outcome
		clone.Outcome = &outcome
	}
	return &clone
}
