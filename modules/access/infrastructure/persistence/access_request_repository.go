package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/iota-uz/accessdesk/modules/access/domain/approval"
)

// InMemoryAccessRequestRepository is the default volatile ledger store.
// Decisions run under the store lock so two racing deciders serialize and
// the loser observes ErrAlreadyDecided.
type InMemoryAccessRequestRepository struct {
	mu       sync.RWMutex
	requests map[uuid.UUID]*approval.AccessRequest
}

func NewAccessRequestRepository() approval.Repository {
	return &InMemoryAccessRequestRepository{requests: map[uuid.UUID]*approval.AccessRequest{}}
}

func (r *InMemoryAccessRequestRepository) Create(ctx context.Context, req *approval.AccessRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests[req.ID] = cloneRequest(req)
	return nil
}

func (r *InMemoryAccessRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*approval.AccessRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, approval.ErrNotFound
	}
	return cloneRequest(req), nil
}

func (r *InMemoryAccessRequestRepository) Decide(ctx context.Context, id uuid.UUID, rec approval.DecisionRecord) (*approval.AccessRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, approval.ErrNotFound
	}
	// Read-decide-write on a copy: the stored record is replaced only when
	// the decision applies cleanly.
	next := cloneRequest(req)
	if err := next.ApplyDecision(rec); err != nil {
		return nil, err
	}
	r.requests[id] = next
	return cloneRequest(next), nil
}

func (r *InMemoryAccessRequestRepository) ListPending(ctx context.Context) ([]*approval.AccessRequest, error) {
	return r.List(ctx, approval.StatusPending)
}

func (r *InMemoryAccessRequestRepository) List(ctx context.Context, status approval.Status) ([]*approval.AccessRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*approval.AccessRequest, 0)
	for _, req := range r.requests {
		if status == "" || req.Status == status {
			out = append(out, cloneRequest(req))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func cloneRequest(req *approval.AccessRequest) *approval.AccessRequest {
	clone := *req
	if req.DecidedAt != nil {
		at := *req.DecidedAt
		clone.DecidedAt = &at
	}
	return &clone
}
