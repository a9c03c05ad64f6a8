// Package escalation tracks project-membership escalations. An approved
// escalation is advisory: it never grants access by itself, the requester
// still goes through the approval ledger.
package escalation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/accessdesk/modules/access/domain/resource"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDeclined Status = "declined"
)

var (
	ErrNotFound             = errors.New("escalation: not found")
	ErrAlreadyResolved      = errors.New("escalation: already resolved")
	ErrEmptyJustification   = errors.New("escalation: resolution requires a justification")
	ErrJustificationTooLong = errors.New("escalation: justification exceeds the maximum length")
	ErrNotAuthorized        = errors.New("escalation: actor may not resolve this escalation")
)

// Request records that a requester asked for access to a project they are
// not a member of. The target is the project owner.
type Request struct {
	ID          uuid.UUID
	RequesterID string
	ProjectID   string
	System      resource.System
	Level       resource.Level
	TargetID    string

	Status        Status
	Justification string
	CreatedAt     time.Time
	ResolvedAt    *time.Time
}

func (r *Request) Pending() bool {
	return r.Status == StatusPending
}

// Resolve sets the outcome exactly once; a resolved escalation is
// immutable.
func (r *Request) Resolve(status Status, justification string, maxLen int, at time.Time) error {
	if !r.Pending() {
		return ErrAlreadyResolved
	}
	if status != StatusApproved && status != StatusDeclined {
		return errors.New("escalation: resolution must approve or decline")
	}
	justification = strings.TrimSpace(justification)
	if justification == "" {
		return ErrEmptyJustification
	}
	if len(justification) > maxLen {
		return ErrJustificationTooLong
	}
	r.Status = status
	r.Justification = justification
	r.ResolvedAt = &at
	return nil
}

// Repository keys escalations by id. Resolve must reject re-resolution of
// a decided record.
type Repository interface {
	Create(ctx context.Context, req *Request) error
	GetByID(ctx context.Context, id uuid.UUID) (*Request, error)
	// Resolve applies the resolution atomically, returning ErrNotFound or
	// ErrAlreadyResolved without touching the stored record.
	Resolve(ctx context.Context, id uuid.UUID, status Status, justification string, maxLen int, at time.Time) (*Request, error)
	ListForTarget(ctx context.Context, targetID string) ([]*Request, error)
}
