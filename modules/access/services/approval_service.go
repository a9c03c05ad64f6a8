package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/accessdesk/modules/access/domain/approval"
	"github.com/iota-uz/accessdesk/modules/access/domain/conversation"
	"github.com/iota-uz/accessdesk/modules/access/domain/directory"
	"github.com/iota-uz/accessdesk/modules/access/domain/events"
	"github.com/iota-uz/accessdesk/modules/access/domain/resource"
	"github.com/iota-uz/accessdesk/pkg/authz"
	"github.com/iota-uz/accessdesk/pkg/eventbus"
)

// ApprovalOptions are the knobs the approval ledger runs with.
type ApprovalOptions struct {
	// FallbackApproverID is the override authority, used when a request
	// has no natural approver.
	FallbackApproverID string
	MaxMessageLength   int
}

// DecideCommand is one review action against a pending ledger entry.
type DecideCommand struct {
	RequestID uuid.UUID
	ActorID   string
	Outcome   approval.Decision
	Reason    string
}

// DecisionResult bundles the updated ledger entry with the message set the
// decision produced.
type DecisionResult struct {
	Request       *approval.AccessRequest
	Notifications []events.Notification
	Override      bool
}

// ApprovalService owns the pending-request ledger: submissions from the
// conversation layer, reviewer visibility, and the exactly-once decision
// path with its notification fan-out.
type ApprovalService struct {
	repo         approval.Repository
	states       conversation.Repository
	directory    directory.Repository
	capabilities *authz.Service
	publisher    eventbus.EventBus
	opts         ApprovalOptions
	logger       *logrus.Entry
}

func NewApprovalService(
	repo approval.Repository,
	states conversation.Repository,
	dir directory.Repository,
	capabilities *authz.Service,
	publisher eventbus.EventBus,
	opts ApprovalOptions,
	logger *logrus.Logger,
) *ApprovalService {
	return &ApprovalService{
		repo:         repo,
		states:       states,
		directory:    dir,
		capabilities: capabilities,
		publisher:    publisher,
		opts:         opts,
		logger:       logger.WithField("component", "approval-service"),
	}
}

// Submit files a finalized request into the ledger and announces it. The
// fallback approver can act on it from the moment it is filed.
func (s *ApprovalService) Submit(ctx context.Context, req *approval.AccessRequest) error {
	req.FallbackApproverID = s.opts.FallbackApproverID
	if err := s.repo.Create(ctx, req); err != nil {
		return errors.Wrap(err, "filing access request")
	}

	s.logger.WithFields(logrus.Fields{
		"request_id":   req.ID,
		"requester_id": req.RequesterID,
		"approver_id":  req.AssignedApproverID,
		"system":       req.Target.System(),
		"level":        req.GrantedLevel,
	}).Info("access request submitted")

	s.publisher.Publish(events.RequestSubmittedV1{
		RequestID:   req.ID,
		RequesterID: req.RequesterID,
		ApproverID:  req.AssignedApproverID,
		SubmittedAt: req.CreatedAt,
	})
	return nil
}

// Pending returns the open requests the viewer is allowed to act on: their
// own assignments, or every pending request for an override authority.
func (s *ApprovalService) Pending(ctx context.Context, viewerID string) ([]*approval.AccessRequest, error) {
	viewer, err := s.directory.PersonByID(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	all, err := s.repo.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	override, err := s.canOverride(viewer)
	if err != nil {
		return nil, err
	}
	if override {
		return all, nil
	}
	var visible []*approval.AccessRequest
	for _, req := range all {
		if req.AssignedApproverID == viewer.ID {
			visible = append(visible, req)
		}
	}
	return visible, nil
}

// History lists decided and pending ledger entries; an empty status means
// all of them.
func (s *ApprovalService) History(ctx context.Context, status approval.Status) ([]*approval.AccessRequest, error) {
	return s.repo.List(ctx, status)
}

// Get returns one ledger entry by id.
func (s *ApprovalService) Get(ctx context.Context, id uuid.UUID) (*approval.AccessRequest, error) {
	return s.repo.GetByID(ctx, id)
}

// Decide applies a review action exactly once. The actor must be the
// resolved approver with decision authority, the owner of the targeted
// account, or an override authority; overrides additionally notify the
// bypassed primary approver.
func (s *ApprovalService) Decide(ctx context.Context, cmd DecideCommand) (*DecisionResult, error) {
	actor, err := s.directory.PersonByID(ctx, cmd.ActorID)
	if err != nil {
		return nil, err
	}
	req, err := s.repo.GetByID(ctx, cmd.RequestID)
	if err != nil {
		return nil, err
	}

	override, err := s.authorizeDecision(actor, req)
	if err != nil {
		return nil, err
	}

	if err := approval.ValidateReason(cmd.Outcome, cmd.Reason, s.opts.MaxMessageLength); err != nil {
		return nil, err
	}

	now := time.Now()
	rec := approval.DecisionRecord{
		Outcome:     cmd.Outcome,
		DeciderID:   actor.ID,
		DeciderRole: actor.Role,
		Reason:      cmd.Reason,
		DecidedAt:   now,
	}
	if cmd.Outcome == approval.DecisionApprove {
		rec.AccessRef = approval.NewAccessRef(req.Target.System())
	}

	decided, err := s.repo.Decide(ctx, cmd.RequestID, rec)
	if err != nil {
		return nil, err
	}

	s.reflectIntoConversation(ctx, decided)

	notifications := composeDecisionNotifications(decided, actor, override, s.opts.MaxMessageLength, now)

	s.logger.WithFields(logrus.Fields{
		"request_id": decided.ID,
		"actor_id":   actor.ID,
		"outcome":    decided.Status,
		"override":   override && decided.AssignedApproverID != actor.ID,
	}).Info("access request decided")

	s.publisher.Publish(events.RequestDecidedV1{
		Request:       decided,
		ActorID:       actor.ID,
		Override:      override && decided.AssignedApproverID != actor.ID,
		Notifications: notifications,
		DecidedAt:     now,
	})

	return &DecisionResult{
		Request:       decided,
		Notifications: notifications,
		Override:      override && decided.AssignedApproverID != actor.ID,
	}, nil
}

// authorizeDecision checks the actor against the request. Override
// authorities may decide anything; everyone else must be the resolved
// approver, and must either hold decision authority or own the targeted
// account.
func (s *ApprovalService) authorizeDecision(actor *directory.Person, req *approval.AccessRequest) (override bool, err error) {
	override, err = s.canOverride(actor)
	if err != nil {
		return false, err
	}
	if override {
		return true, nil
	}
	if actor.ID != req.AssignedApproverID {
		return false, approval.ErrNotAuthorized
	}

	canDecide, err := s.capabilities.Check(authz.Request{
		Subject: authz.SubjectForRole(actor.Role.String()),
		Object:  authz.ObjectApprovals,
		Action:  authz.ActionDecide,
	})
	if err != nil {
		return false, err
	}
	if canDecide {
		return false, nil
	}

	// The one path for a non-privileged role: the owner of an
	// account-owned target consents to access to their own account.
	if target, ok := req.Target.(resource.AccountTarget); ok && target.AccountOwnerID == actor.ID {
		return false, nil
	}
	return false, approval.ErrNotAuthorized
}

func (s *ApprovalService) canOverride(p *directory.Person) (bool, error) {
	return s.capabilities.Check(authz.Request{
		Subject: authz.SubjectForRole(p.Role.String()),
		Object:  authz.ObjectApprovals,
		Action:  authz.ActionOverride,
	})
}

// reflectIntoConversation writes the ledger outcome back into the
// requester's conversation state so their next message sees the verdict. A
// reset conversation no longer references the request; that is fine, the
// ledger remains the source of truth.
func (s *ApprovalService) reflectIntoConversation(ctx context.Context, req *approval.AccessRequest) {
	state, err := s.states.Get(ctx, req.RequesterID)
	if err != nil {
		s.logger.WithError(err).WithField("requester_id", req.RequesterID).
			Warn("no conversation state for decided request")
		return
	}
	if state.PendingRequestID != req.ID {
		return
	}
	outcome := conversation.Outcome{
		Approved:    req.Status == approval.StatusApproved,
		AccessRef:   req.AccessRef,
		Reason:      req.DecisionReason,
		DeciderID:   req.DecidedBy,
		DeciderRole: req.DecidedByRole,
		DecidedAt:   *req.DecidedAt,
	}
	if err := state.ApplyDecision(outcome); err != nil {
		s.logger.WithError(err).WithField("requester_id", req.RequesterID).
			Warn("conversation state rejected the decision")
		return
	}
	if err := s.states.Save(ctx, state); err != nil {
		s.logger.WithError(err).WithField("requester_id", req.RequesterID).
			Warn("saving decided conversation state")
	}
}
