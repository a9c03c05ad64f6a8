package directory

import (
	"context"
	"errors"
)

// Role is a requester's privilege tier. Roles are immutable for the
// lifetime of a conversation record.
type Role string

const (
	// RoleAdmin is the top-privilege tier: bypasses project membership
	// checks and holds override authority over the approval ledger.
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleLead    Role = "lead"
	// RoleEmployee is the lowest-privilege tier.
	RoleEmployee Role = "employee"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleLead, RoleEmployee:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// Person is a directory entry for a requester, approver or mailbox owner.
type Person struct {
	ID    string
	Name  string
	Email string
	Role  Role
}

// Project groups people around a source-control resource. The owner is the
// primary approver for project-scoped requests and the escalation target
// for membership failures.
type Project struct {
	ID        string
	Name      string
	OwnerID   string
	MemberIDs []string
}

// HasMember reports whether id belongs to the project. The owner is always
// a member.
func (p *Project) HasMember(id string) bool {
	if id == p.OwnerID {
		return true
	}
	for _, m := range p.MemberIDs {
		if m == id {
			return true
		}
	}
	return false
}

var (
	ErrPersonNotFound  = errors.New("directory: person not found")
	ErrProjectNotFound = errors.New("directory: project not found")
)

type Repository interface {
	PersonByID(ctx context.Context, id string) (*Person, error)
	People(ctx context.Context) ([]*Person, error)
	ProjectByID(ctx context.Context, id string) (*Project, error)
	Projects(ctx context.Context) ([]*Project, error)
}
