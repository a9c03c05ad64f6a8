// Package approval owns submitted access requests and their
// pending/approved/rejected lifecycle. Records are never deleted: the
// ledger doubles as the audit trail.
package approval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/accessdesk/modules/access/domain/directory"
	"github.com/iota-uz/accessdesk/modules/access/domain/resource"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Decision is a review action taken on a pending request.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

var (
	ErrNotFound        = errors.New("approval: access request not found")
	ErrAlreadyDecided  = errors.New("approval: access request already decided")
	ErrEmptyReason     = errors.New("approval: rejection requires a reason")
	ErrReasonTooLong   = errors.New("approval: rejection reason exceeds the maximum length")
	ErrInvalidDecision = errors.New("approval: decision must be approve or reject")
	ErrNotAuthorized   = errors.New("approval: actor may not decide this request")
)

// AccessRequest is an immutable snapshot of a finalized submission. Only
// Status and the decision metadata ever change, exactly once.
type AccessRequest struct {
	ID            uuid.UUID
	RequesterID   string
	RequesterRole directory.Role

	Target         resource.Target
	RequestedLevel resource.Level
	GrantedLevel   resource.Level

	// AssignedApproverID is the resolved primary approver: the project
	// owner or the mailbox owner, never both sources at once.
	AssignedApproverID string
	// FallbackApproverID is the designated override authority and may
	// decide any pending request.
	FallbackApproverID string

	Status         Status
	DecidedBy      string
	DecidedByRole  directory.Role
	DecisionReason string
	AccessRef      string
	DecidedAt      *time.Time

	CreatedAt time.Time
}

func (r *AccessRequest) Pending() bool {
	return r.Status == StatusPending
}

// DecisionRecord carries a validated decision into the ledger store.
type DecisionRecord struct {
	Outcome     Decision
	DeciderID   string
	DeciderRole directory.Role
	Reason      string
	AccessRef   string
	DecidedAt   time.Time
}

// ApplyDecision flips a pending request to its decided status. The caller
// must hold the record's lock or equivalent; a decided record rejects any
// further decision.
func (r *AccessRequest) ApplyDecision(rec DecisionRecord) error {
	if !r.Pending() {
		return ErrAlreadyDecided
	}
	switch rec.Outcome {
	case DecisionApprove:
		r.Status = StatusApproved
		r.AccessRef = rec.AccessRef
		r.DecisionReason = ""
	case DecisionReject:
		r.Status = StatusRejected
		r.DecisionReason = rec.Reason
		r.AccessRef = ""
	default:
		return ErrInvalidDecision
	}
	r.DecidedBy = rec.DeciderID
	r.DecidedByRole = rec.DeciderRole
	at := rec.DecidedAt
	r.DecidedAt = &at
	return nil
}

// ValidateReason checks a rejection reason against the configured bound.
// Approvals need no reason.
func ValidateReason(outcome Decision, reason string, maxLen int) error {
	if outcome != DecisionReject {
		return nil
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrEmptyReason
	}
	if len(reason) > maxLen {
		return ErrReasonTooLong
	}
	return nil
}

// NewAccessRef mints the reference string handed to the requester on
// approval.
func NewAccessRef(sys resource.System) string {
	return fmt.Sprintf("https://grants.accessdesk.local/%s/%s", sys, uuid.NewString())
}

// Repository keys access requests by id. Decide must be atomic with
// respect to concurrent decisions on the same record: the implementation
// performs read-decide-write under a per-record lock or a status CAS.
type Repository interface {
	Create(ctx context.Context, req *AccessRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*AccessRequest, error)
	// Decide applies the record to a pending request. It returns
	// ErrNotFound for unknown ids and ErrAlreadyDecided when the request
	// was decided before, leaving the stored record untouched.
	Decide(ctx context.Context, id uuid.UUID, rec DecisionRecord) (*AccessRequest, error)
	ListPending(ctx context.Context) ([]*AccessRequest, error)
	List(ctx context.Context, status Status) ([]*AccessRequest, error)
}
