package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/accessdesk/modules/access/domain/directory"
	"github.com/iota-uz/accessdesk/modules/access/domain/escalation"
	"github.com/iota-uz/accessdesk/modules/access/domain/events"
	"github.com/iota-uz/accessdesk/modules/access/domain/resource"
	"github.com/iota-uz/accessdesk/pkg/eventbus"
)

// EscalationOptions are the knobs the escalation tracker runs with.
type EscalationOptions struct {
	// AutoResolveAfter simulates the project owner approving an unanswered
	// escalation. Zero disables the timer.
	AutoResolveAfter time.Duration
	MaxMessageLength int
}

// EscalationService opens membership escalations toward project owners and
// resolves them, by hand or by timer. An approved escalation is advisory
// only; the requester still has to get into the project roster and resend
// the request.
type EscalationService struct {
	repo      escalation.Repository
	directory directory.Repository
	publisher eventbus.EventBus
	opts      EscalationOptions
	logger    *logrus.Entry

	mu     sync.Mutex
	timers map[uuid.UUID]*time.Timer
}

func NewEscalationService(
	repo escalation.Repository,
	dir directory.Repository,
	publisher eventbus.EventBus,
	opts EscalationOptions,
	logger *logrus.Logger,
) *EscalationService {
	return &EscalationService{
		repo:      repo,
		directory: dir,
		publisher: publisher,
		opts:      opts,
		logger:    logger.WithField("component", "escalation-service"),
		timers:    make(map[uuid.UUID]*time.Timer),
	}
}

// Open records that a requester asked for access to a project they are not
// a member of. Repeated asks for the same project reuse the pending
// escalation instead of spamming the owner.
func (s *EscalationService) Open(
	ctx context.Context,
	requesterID string,
	project *directory.Project,
	sys resource.System,
	level resource.Level,
) (*escalation.Request, error) {
	existing, err := s.repo.ListForTarget(ctx, project.OwnerID)
	if err != nil {
		return nil, errors.Wrap(err, "listing escalations")
	}
	for _, e := range existing {
		if e.Pending() && e.RequesterID == requesterID && e.ProjectID == project.ID {
			return e, nil
		}
	}

	req := &escalation.Request{
		ID:          uuid.New(),
		RequesterID: requesterID,
		ProjectID:   project.ID,
		System:      sys,
		Level:       level,
		TargetID:    project.OwnerID,
		Status:      escalation.StatusPending,
		CreatedAt:   time.Now(),
	}
	if err := s.repo.Create(ctx, req); err != nil {
		return nil, errors.Wrap(err, "creating escalation")
	}

	s.logger.WithFields(logrus.Fields{
		"escalation_id": req.ID,
		"requester_id":  requesterID,
		"project_id":    project.ID,
		"target_id":     project.OwnerID,
	}).Info("membership escalation opened")

	s.publisher.Publish(events.EscalationOpenedV1{Escalation: req, OpenedAt: req.CreatedAt})
	s.scheduleAutoResolve(req.ID)
	return req, nil
}

// Resolve applies the project owner's answer. Only the escalation target or
// an override authority may resolve; resolution happens exactly once.
func (s *EscalationService) Resolve(
	ctx context.Context,
	id uuid.UUID,
	actorID string,
	status escalation.Status,
	justification string,
) (*escalation.Request, error) {
	actor, err := s.directory.PersonByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.ID != current.TargetID && actor.Role != directory.RoleAdmin {
		return nil, escalation.ErrNotAuthorized
	}
	return s.resolve(ctx, id, status, justification, false)
}

func (s *EscalationService) resolve(
	ctx context.Context,
	id uuid.UUID,
	status escalation.Status,
	justification string,
	byTimer bool,
) (*escalation.Request, error) {
	resolved, err := s.repo.Resolve(ctx, id, status, justification, s.opts.MaxMessageLength, time.Now())
	if err != nil {
		return nil, err
	}
	s.cancelTimer(id)

	s.logger.WithFields(logrus.Fields{
		"escalation_id": id,
		"status":        resolved.Status,
		"by_timer":      byTimer,
	}).Info("escalation resolved")

	s.publisher.Publish(events.EscalationResolvedV1{
		Escalation: resolved,
		ByTimer:    byTimer,
		ResolvedAt: *resolved.ResolvedAt,
	})
	return resolved, nil
}

// ListForTarget returns the escalations waiting on one project owner.
func (s *EscalationService) ListForTarget(ctx context.Context, targetID string) ([]*escalation.Request, error) {
	return s.repo.ListForTarget(ctx, targetID)
}

func (s *EscalationService) scheduleAutoResolve(id uuid.UUID) {
	if s.opts.AutoResolveAfter <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.timers[id]; ok {
		return
	}
	s.timers[id] = time.AfterFunc(s.opts.AutoResolveAfter, func() {
		_, err := s.resolve(
			context.Background(), id,
			escalation.StatusApproved,
			"auto-approved: the project owner did not respond in time",
			true,
		)
		if err != nil && !errors.Is(err, escalation.ErrAlreadyResolved) {
			s.logger.WithError(err).WithField("escalation_id", id).Warn("escalation auto-resolve failed")
		}
		s.cancelTimer(id)
	})
}

func (s *EscalationService) cancelTimer(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
}

// Close stops every outstanding auto-resolve timer.
func (s *EscalationService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}
