package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/accessdesk/modules/access/domain/escalation"
)

type InMemoryEscalationRepository struct {
	mu          sync.RWMutex
	escalations map[uuid.UUID]*escalation.Request
}

func NewEscalationRepository() escalation.Repository {
	return &InMemoryEscalationRepository{escalations: map[uuid.UUID]*escalation.Request{}}
}

func (r *InMemoryEscalationRepository) Create(ctx context.Context, req *escalation.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.escalations[req.ID] = cloneEscalation(req)
	return nil
}

func (r *InMemoryEscalationRepository) GetByID(ctx context.Context, id uuid.UUID) (*escalation.Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.escalations[id]
	if !ok {
		return nil, escalation.ErrNotFound
	}
	return cloneEscalation(req), nil
}

func (r *InMemoryEscalationRepository) Resolve(ctx context.Context, id uuid.UUID, status escalation.Status, justification string, maxLen int, at time.Time) (*escalation.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.escalations[id]
	if !ok {
		return nil, escalation.ErrNotFound
	}
	next := cloneEscalation(req)
	if err := next.Resolve(status, justification, maxLen, at); err != nil {
		return nil, err
	}
	r.escalations[id] = next
	return cloneEscalation(next), nil
}

func (r *InMemoryEscalationRepository) ListForTarget(ctx context.Context, targetID string) ([]*escalation.Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*escalation.Request, 0)
	for _, req := range r.escalations {
		if req.TargetID == targetID {
			out = append(out, cloneEscalation(req))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func cloneEscalation(req *escalation.Request) *escalation.Request {
	clone := *req
	if req.ResolvedAt != nil {
		at := *req.ResolvedAt
		clone.ResolvedAt = &at
	}
	return &clone
}
