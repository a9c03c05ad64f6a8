package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/accessdesk/modules/access/domain/directory"
	"github.com/iota-uz/accessdesk/modules/access/domain/resource"
)

// Status is the lifecycle state of a requester's conversation.
type Status string

const (
	StatusDraft            Status = "draft"
	StatusInProgress       Status = "in_progress"
	StatusAwaitingApproval Status = "awaiting_approval"
	StatusApproved         Status = "approved"
	StatusRejected         Status = "rejected"
)

// Terminal states are resettable to a fresh draft but never mutate in
// place.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Field names a request input still missing from the conversation.
type Field string

const (
	FieldSystem       Field = "system"
	FieldMailboxOwner Field = "mailbox_owner"
	FieldProject      Field = "project"
	FieldLevel        Field = "level"
)

var (
	ErrInvalidTransition = errors.New("conversation: invalid state transition")
	ErrIncomplete        = errors.New("conversation: request fields are incomplete")
	ErrNoSystem          = errors.New("conversation: select a resource system first")
	ErrAwaitingDecision  = errors.New("conversation: request is awaiting a decision")
	ErrStateNotFound     = errors.New("conversation: state not found")
)

// Outcome records how a finalized request was decided. A single pointer
// holds either an approval (AccessRef) or a rejection (Reason); the
// opposite outcome's fields are structurally absent.
type Outcome struct {
	Approved     bool
	AccessRef    string
	Reason       string
	DeciderID    string
	DeciderRole  directory.Role
	SelfApproved bool
	DecidedAt    time.Time
}

// RequestState accumulates one requester's access request across chat
// messages. Exactly one conversation thread owns a given state at a time.
type RequestState struct {
	RequesterID string
	Role        directory.Role
	Status      Status

	System         resource.System
	Level          resource.Level
	ProjectID      string
	MailboxOwnerID string

	// PendingRequestID links to the ledger entry while awaiting approval.
	PendingRequestID   uuid.UUID
	AssignedApproverID string

	Outcome *Outcome
}

func New(requesterID string, role directory.Role) *RequestState {
	return &RequestState{
		RequesterID: requesterID,
		Role:        role,
		Status:      StatusDraft,
	}
}

// Reset returns a fresh draft for the same requester. Terminal states are
// only ever left through here.
func (s *RequestState) Reset() *RequestState {
	return New(s.RequesterID, s.Role)
}

func (s *RequestState) mutable() error {
	switch s.Status {
	case StatusDraft, StatusInProgress:
		return nil
	case StatusAwaitingApproval:
		return ErrAwaitingDecision
	default:
		return ErrInvalidTransition
	}
}

// SetSystem records or corrects the target resource system. A new system
// invalidates the previously chosen level, and drops scope fields that do
// not apply to the new system.
func (s *RequestState) SetSystem(sys resource.System) error {
	if err := s.mutable(); err != nil {
		return err
	}
	if !sys.Valid() {
		return fmt.Errorf("conversation: unknown system %q", sys)
	}
	if s.System == sys {
		return nil
	}
	s.System = sys
	s.Level = ""
	if sys.Kind() != resource.KindProjectScoped {
		s.ProjectID = ""
	}
	if sys.Kind() != resource.KindAccountOwned {
		s.MailboxOwnerID = ""
	}
	if s.Status == StatusDraft {
		s.Status = StatusInProgress
	}
	return nil
}

func (s *RequestState) SetLevel(level resource.Level) error {
	if err := s.mutable(); err != nil {
		return err
	}
	if s.System == "" {
		return ErrNoSystem
	}
	if !resource.ValidLevel(s.System, level) {
		return fmt.Errorf("conversation: %s has no %s level", s.System, level)
	}
	s.Level = level
	return nil
}

func (s *RequestState) SetProject(projectID string) error {
	if err := s.mutable(); err != nil {
		return err
	}
	if s.System == "" {
		return ErrNoSystem
	}
	if s.System.Kind() != resource.KindProjectScoped {
		return fmt.Errorf("conversation: %s access is not project-scoped", s.System)
	}
	s.ProjectID = projectID
	return nil
}

func (s *RequestState) SetMailboxOwner(ownerID string) error {
	if err := s.mutable(); err != nil {
		return err
	}
	if s.System == "" {
		return ErrNoSystem
	}
	if s.System.Kind() != resource.KindAccountOwned {
		return fmt.Errorf("conversation: %s access is not account-owned", s.System)
	}
	s.MailboxOwnerID = ownerID
	return nil
}

// MissingFields recomputes the ordered list of still-required inputs from
// the current selections. The order is load-bearing: scope fields come
// before the level so the eventual approver is known before the requester
// commits to a level.
func (s *RequestState) MissingFields() []Field {
	var missing []Field
	if s.System == "" {
		return append(missing, FieldSystem, FieldLevel)
	}
	switch s.System.Kind() {
	case resource.KindAccountOwned:
		if s.Role == directory.RoleEmployee && s.MailboxOwnerID == "" {
			missing = append(missing, FieldMailboxOwner)
		}
	case resource.KindProjectScoped:
		if s.ProjectID == "" {
			missing = append(missing, FieldProject)
		}
	case resource.KindGlobal:
	}
	if s.Level == "" {
		missing = append(missing, FieldLevel)
	}
	return missing
}

// NextField returns the first missing input, if any.
func (s *RequestState) NextField() (Field, bool) {
	missing := s.MissingFields()
	if len(missing) == 0 {
		return "", false
	}
	return missing[0], true
}

func (s *RequestState) Complete() bool {
	return len(s.MissingFields()) == 0
}

// AccountOwned reports whether the request targets a specific person's
// account, which forces approval by that person.
func (s *RequestState) AccountOwned() bool {
	return s.MailboxOwnerID != ""
}

// MarkAwaitingApproval hands the request off to the approval ledger. Only a
// complete in-progress request may transition.
func (s *RequestState) MarkAwaitingApproval(requestID uuid.UUID, approverID string) error {
	if s.Status != StatusInProgress {
		return ErrInvalidTransition
	}
	if !s.Complete() {
		return ErrIncomplete
	}
	s.Status = StatusAwaitingApproval
	s.PendingRequestID = requestID
	s.AssignedApproverID = approverID
	return nil
}

// MarkSelfApproved finalizes a request that needs no human approval.
func (s *RequestState) MarkSelfApproved(accessRef string, at time.Time) error {
	if s.Status != StatusInProgress {
		return ErrInvalidTransition
	}
	if !s.Complete() {
		return ErrIncomplete
	}
	s.Status = StatusApproved
	s.Outcome = &Outcome{
		Approved:     true,
		AccessRef:    accessRef,
		DeciderID:    s.RequesterID,
		DeciderRole:  s.Role,
		SelfApproved: true,
		DecidedAt:    at,
	}
	return nil
}

// ApplyDecision reflects an external ledger decision back into the
// conversation. Assigning the outcome pointer replaces any stale opposite
// outcome wholesale.
func (s *RequestState) ApplyDecision(o Outcome) error {
	if s.Status != StatusAwaitingApproval {
		return ErrInvalidTransition
	}
	if o.Approved {
		s.Status = StatusApproved
	} else {
		s.Status = StatusRejected
	}
	s.Outcome = &o
	return nil
}

// Repository keys request states by requester id.
type Repository interface {
	Get(ctx context.Context, requesterID string) (*RequestState, error)
	Save(ctx context.Context, state *RequestState) error
}
