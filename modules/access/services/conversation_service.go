package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/accessdesk/modules/access/domain/approval"
	"github.com/iota-uz/accessdesk/modules/access/domain/conversation"
	"github.com/iota-uz/accessdesk/modules/access/domain/directory"
	"github.com/iota-uz/accessdesk/modules/access/domain/policy"
	"github.com/iota-uz/accessdesk/modules/access/domain/resource"
)

// ConversationOptions are the knobs the chat flow runs with.
type ConversationOptions struct {
	MaxMessageLength int
}

// Reply is what the chat boundary renders after one inbound message.
type Reply struct {
	State      *conversation.RequestState
	NextField  conversation.Field
	Confidence policy.Tier
	Message    string
}

// ConversationService drives the per-requester request flow: it reads each
// message for intent, fills the request state, and finalizes through the
// policy evaluator once everything is known.
type ConversationService struct {
	states      conversation.Repository
	directory   directory.Repository
	evaluator   *policy.Evaluator
	approvals   *ApprovalService
	escalations *EscalationService
	opts        ConversationOptions
	logger      *logrus.Entry
}

func NewConversationService(
	states conversation.Repository,
	dir directory.Repository,
	evaluator *policy.Evaluator,
	approvals *ApprovalService,
	escalations *EscalationService,
	opts ConversationOptions,
	logger *logrus.Logger,
) *ConversationService {
	return &ConversationService{
		states:      states,
		directory:   dir,
		evaluator:   evaluator,
		approvals:   approvals,
		escalations: escalations,
		opts:        opts,
		logger:      logger.WithField("component", "conversation-service"),
	}
}

// HandleMessage applies one chat message to the requester's state and
// returns what to say back.
func (s *ConversationService) HandleMessage(ctx context.Context, requesterID, text string) (*Reply, error) {
	requester, err := s.directory.PersonByID(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	state, err := s.stateFor(ctx, requester)
	if err != nil {
		return nil, err
	}

	people, err := s.directory.People(ctx)
	if err != nil {
		return nil, err
	}
	projects, err := s.directory.Projects(ctx)
	if err != nil {
		return nil, err
	}
	guess := ExtractIntent(text, people, projects)

	if guess.Reset {
		return s.doReset(ctx, state)
	}

	switch state.Status {
	case conversation.StatusAwaitingApproval:
		return s.reply(state, fmt.Sprintf(
			"Your request is with %s for approval. I'll let you know once it's decided; say \"reset\" to start a new one.",
			state.AssignedApproverID,
		)), nil
	case conversation.StatusApproved:
		return s.reply(state, fmt.Sprintf(
			"That request was already approved. Access: %s. Say \"reset\" to request something else.",
			state.Outcome.AccessRef,
		)), nil
	case conversation.StatusRejected:
		return s.reply(state, fmt.Sprintf(
			"That request was rejected: %s. Say \"reset\" to start a new one.",
			state.Outcome.Reason,
		)), nil
	}

	if note := s.applyGuess(state, guess); note != "" {
		if err := s.states.Save(ctx, state); err != nil {
			return nil, errors.Wrap(err, "saving conversation state")
		}
		return s.reply(state, note), nil
	}

	if state.Complete() && state.Status == conversation.StatusInProgress {
		reply, err := s.finalize(ctx, requester, state)
		if err != nil {
			return nil, err
		}
		return reply, nil
	}

	if err := s.states.Save(ctx, state); err != nil {
		return nil, errors.Wrap(err, "saving conversation state")
	}
	if field, ok := state.NextField(); ok {
		return s.reply(state, promptFor(field, state.System)), nil
	}
	return s.reply(state, "Tell me what access you need."), nil
}

// Reset discards the requester's current request and starts a fresh draft.
func (s *ConversationService) Reset(ctx context.Context, requesterID string) (*Reply, error) {
	requester, err := s.directory.PersonByID(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	state, err := s.stateFor(ctx, requester)
	if err != nil {
		return nil, err
	}
	return s.doReset(ctx, state)
}

// State exposes the current request state for the chat boundary.
func (s *ConversationService) State(ctx context.Context, requesterID string) (*conversation.RequestState, error) {
	requester, err := s.directory.PersonByID(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	return s.stateFor(ctx, requester)
}

func (s *ConversationService) doReset(ctx context.Context, state *conversation.RequestState) (*Reply, error) {
	fresh := state.Reset()
	if err := s.states.Save(ctx, fresh); err != nil {
		return nil, errors.Wrap(err, "saving conversation state")
	}
	return s.reply(fresh, "Started over. "+promptFor(conversation.FieldSystem, "")), nil
}

func (s *ConversationService) stateFor(ctx context.Context, requester *directory.Person) (*conversation.RequestState, error) {
	state, err := s.states.Get(ctx, requester.ID)
	switch {
	case err == nil:
		return state, nil
	case errors.Is(err, conversation.ErrStateNotFound):
		return conversation.New(requester.ID, requester.Role), nil
	default:
		return nil, err
	}
}

// applyGuess feeds the extracted fields into the state machine in the
// canonical order. The first field the machine refuses produces a
// corrective note and stops the application; the fields before it stick.
func (s *ConversationService) applyGuess(state *conversation.RequestState, g Guess) string {
	if g.System != "" {
		if err := state.SetSystem(g.System); err != nil {
			return correctiveNote(err)
		}
	}
	if g.MailboxOwnerID != "" && g.MailboxOwnerID != state.RequesterID &&
		state.System.Kind() == resource.KindAccountOwned {
		if err := state.SetMailboxOwner(g.MailboxOwnerID); err != nil {
			return correctiveNote(err)
		}
	}
	if g.ProjectID != "" && state.System.Kind() == resource.KindProjectScoped {
		if err := state.SetProject(g.ProjectID); err != nil {
			return correctiveNote(err)
		}
	}
	if g.Level != "" {
		if state.System == "" {
			return promptFor(conversation.FieldSystem, "")
		}
		if err := state.SetLevel(g.Level); err != nil {
			return correctiveNote(err)
		}
	}
	return ""
}

func correctiveNote(err error) string {
	msg := err.Error()
	return strings.ToUpper(msg[:1]) + msg[1:] + "."
}

// finalize runs the evaluator over a complete request and either
// self-approves, hands off to the ledger, raises an escalation, or pushes
// a correction back to the requester.
func (s *ConversationService) finalize(ctx context.Context, requester *directory.Person, state *conversation.RequestState) (*Reply, error) {
	input := policy.Input{
		RequesterID: requester.ID,
		Role:        requester.Role,
		System:      state.System,
		Level:       state.Level,
	}
	if state.ProjectID != "" {
		project, err := s.directory.ProjectByID(ctx, state.ProjectID)
		if err != nil {
			if errors.Is(err, directory.ErrProjectNotFound) {
				state.ProjectID = ""
				if saveErr := s.states.Save(ctx, state); saveErr != nil {
					return nil, errors.Wrap(saveErr, "saving conversation state")
				}
				return s.reply(state, "I don't know that project. "+promptFor(conversation.FieldProject, state.System)), nil
			}
			return nil, err
		}
		input.Project = project
	}

	decision, err := s.evaluator.Evaluate(input)
	if err != nil {
		return nil, err
	}

	switch {
	case decision.RequiresEscalation:
		esc, err := s.escalations.Open(ctx, requester.ID, input.Project, state.System, state.Level)
		if err != nil {
			return nil, err
		}
		if err := s.states.Save(ctx, state); err != nil {
			return nil, errors.Wrap(err, "saving conversation state")
		}
		return s.reply(state, fmt.Sprintf(
			"You're not a member of project %s, so I've escalated to %s. If they add you, just resend the request.",
			esc.ProjectID, esc.TargetID,
		)), nil

	// An employee asking for admin is far more often a misworded message
	// than a real request; hold the flow until they confirm a level.
	case policy.Confidence(requester.Role, state.Level) == policy.TierLow:
		state.Level = ""
		if err := s.states.Save(ctx, state); err != nil {
			return nil, errors.Wrap(err, "saving conversation state")
		}
		return s.reply(state, fmt.Sprintf(
			"Admin access is unusual for your role, so I won't file that as-is. %s",
			promptFor(conversation.FieldLevel, state.System),
		)), nil

	case !decision.Valid:
		state.Level = ""
		if err := s.states.Save(ctx, state); err != nil {
			return nil, errors.Wrap(err, "saving conversation state")
		}
		return s.reply(state, fmt.Sprintf(
			"%s. %s",
			strings.ToUpper(decision.RejectionReason[:1])+decision.RejectionReason[1:],
			promptFor(conversation.FieldLevel, state.System),
		)), nil
	}

	granted := decision.AllowedLevel
	var note string
	if decision.DowngradeReason != "" {
		note = strings.ToUpper(decision.DowngradeReason[:1]) + decision.DowngradeReason[1:] + ". "
	}

	if !decision.RequiresApproval && !state.AccountOwned() {
		ref := approval.NewAccessRef(state.System)
		if err := state.MarkSelfApproved(ref, time.Now()); err != nil {
			return nil, err
		}
		if err := s.states.Save(ctx, state); err != nil {
			return nil, errors.Wrap(err, "saving conversation state")
		}
		s.logger.WithFields(logrus.Fields{
			"requester_id": requester.ID,
			"system":       state.System,
			"level":        granted,
		}).Info("request auto-approved")
		return s.reply(state, fmt.Sprintf(
			"%sYou're all set: %s access to %s. Access: %s",
			note, granted, state.System, ref,
		)), nil
	}

	approverID, target := s.resolveApprover(input, state)
	req := &approval.AccessRequest{
		ID:                 uuid.New(),
		RequesterID:        requester.ID,
		RequesterRole:      requester.Role,
		Target:             target,
		RequestedLevel:     state.Level,
		GrantedLevel:       granted,
		AssignedApproverID: approverID,
		Status:             approval.StatusPending,
		CreatedAt:          time.Now(),
	}
	if err := s.approvals.Submit(ctx, req); err != nil {
		return nil, err
	}
	if err := state.MarkAwaitingApproval(req.ID, approverID); err != nil {
		return nil, err
	}
	if err := s.states.Save(ctx, state); err != nil {
		return nil, errors.Wrap(err, "saving conversation state")
	}
	return s.reply(state, fmt.Sprintf(
		"%sI've sent your %s request for %s to %s for approval.",
		note, granted, describeTarget(target), approverID,
	)), nil
}

// resolveApprover picks the one person who signs off: the project owner
// for project-scoped requests, the account owner for account-owned ones,
// and the fallback authority when neither applies.
func (s *ConversationService) resolveApprover(in policy.Input, state *conversation.RequestState) (string, resource.Target) {
	switch {
	case state.AccountOwned():
		return state.MailboxOwnerID, resource.AccountTarget{
			Sys:            state.System,
			AccountOwnerID: state.MailboxOwnerID,
		}
	case in.Project != nil:
		return in.Project.OwnerID, resource.ProjectTarget{
			Sys:       state.System,
			ProjectID: in.Project.ID,
			OwnerID:   in.Project.OwnerID,
		}
	default:
		return s.approvals.opts.FallbackApproverID, resource.GlobalTarget{Sys: state.System}
	}
}

func (s *ConversationService) reply(state *conversation.RequestState, message string) *Reply {
	r := &Reply{
		State:   state,
		Message: Truncate(message, s.opts.MaxMessageLength),
	}
	if field, ok := state.NextField(); ok {
		r.NextField = field
	}
	if state.Level != "" {
		r.Confidence = policy.Confidence(state.Role, state.Level)
	}
	return r
}
