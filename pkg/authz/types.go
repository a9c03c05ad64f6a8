package authz

import (
	"fmt"
	"strings"
)

const (
	rolePrefix       = "role"
	subjectSeparator = ":"

	// ObjectApprovals guards decision authority over the approval ledger.
	ObjectApprovals = "approvals"

	// ActionDecide is the right to approve or reject a pending request.
	ActionDecide = "decide"
	// ActionOverride is the right to decide any pending request regardless
	// of the resolved primary approver.
	ActionOverride = "override"
)

// Request encapsulates the parameters of a single enforcement call.
type Request struct {
	Subject string
	Object  string
	Action  string
}

// SubjectForRole returns the canonical identifier for a role-based subject.
func SubjectForRole(roleSlug string) string {
	roleSlug = strings.TrimSpace(roleSlug)
	if roleSlug == "" {
		roleSlug = "unnamed"
	}
	if strings.HasPrefix(roleSlug, rolePrefix+subjectSeparator) {
		return roleSlug
	}
	return fmt.Sprintf("%s%s%s", rolePrefix, subjectSeparator, strings.ToLower(roleSlug))
}
