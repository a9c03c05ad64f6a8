package policy

import (
	"fmt"

	"github.com/iota-uz/accessdesk/modules/access/domain/directory"
	"github.com/iota-uz/accessdesk/modules/access/domain/resource"
	"github.com/iota-uz/accessdesk/pkg/authz"
)

// Input carries everything the evaluator needs; membership is resolved by
// the caller so evaluation stays a pure lookup over static tables.
type Input struct {
	RequesterID string
	Role        directory.Role
	System      resource.System
	Level       resource.Level
	// Project is set when a project id was supplied with the request.
	Project *directory.Project
}

// Decision is the evaluator's verdict. It is the sole authority for
// grant/deny/downgrade/approval-required outcomes.
type Decision struct {
	Valid              bool
	RequiresApproval   bool
	AllowedLevel       resource.Level
	RequiresEscalation bool
	EscalationTarget   string
	RejectionReason    string
	DowngradeReason    string
}

// Config holds the policy knobs sourced from configuration.
type Config struct {
	// LeadAdminNeedsApproval permits leads to request admin-tier access
	// subject to approval. When false such requests are denied.
	LeadAdminNeedsApproval bool
}

// Evaluator maps (role, system, level, membership) to a Decision. It holds
// no mutable state: identical inputs always produce identical decisions.
type Evaluator struct {
	capabilities *authz.Service
	cfg          Config
}

func NewEvaluator(capabilities *authz.Service, cfg Config) *Evaluator {
	return &Evaluator{capabilities: capabilities, cfg: cfg}
}

// Evaluate runs the three gates in order: membership, admin level,
// capability. The membership gate always goes first so an escalation is
// raised before any role or level verdict leaks to the requester.
func (e *Evaluator) Evaluate(in Input) (Decision, error) {
	if in.Project != nil && in.Role != directory.RoleAdmin && !in.Project.HasMember(in.RequesterID) {
		return Decision{
			RequiresEscalation: true,
			EscalationTarget:   in.Project.OwnerID,
		}, nil
	}

	if in.Level == resource.LevelAdmin {
		return e.adminGate(in), nil
	}

	return e.capabilityGate(in)
}

// adminGate: admin-tier access is never downgraded. It is granted to the
// admin role, to managers on the tracker only, and to leads when the
// approval flag is configured. Everyone else is denied outright.
func (e *Evaluator) adminGate(in Input) Decision {
	switch in.Role {
	case directory.RoleAdmin:
		return Decision{Valid: true, AllowedLevel: resource.LevelAdmin}
	case directory.RoleManager:
		if in.System == resource.SystemTracker {
			return Decision{Valid: true, AllowedLevel: resource.LevelAdmin}
		}
	case directory.RoleLead:
		if e.cfg.LeadAdminNeedsApproval {
			return Decision{
				Valid:            true,
				RequiresApproval: true,
				AllowedLevel:     resource.LevelAdmin,
			}
		}
	}
	return Decision{
		RejectionReason: fmt.Sprintf(
			"admin access to %s is not available for the %s role", in.System, in.Role,
		),
	}
}

// capabilityGate consults the static capability table for the exact level,
// then walks the downgrade cascade until a permitted level is found.
func (e *Evaluator) capabilityGate(in Input) (Decision, error) {
	subject := authz.SubjectForRole(in.Role.String())

	level := in.Level
	for {
		if resource.ValidLevel(in.System, level) {
			allowed, err := e.capabilities.Check(authz.Request{
				Subject: subject,
				Object:  in.System.String(),
				Action:  level.String(),
			})
			if err != nil {
				return Decision{}, err
			}
			if allowed {
				d := Decision{
					Valid:            true,
					AllowedLevel:     level,
					RequiresApproval: e.needsApproval(in, level),
				}
				if level != in.Level {
					d.DowngradeReason = fmt.Sprintf(
						"%s access to %s is not available for the %s role; downgraded to %s",
						in.Level, in.System, in.Role, level,
					)
				}
				return d, nil
			}
		}

		next, ok := resource.Downgrade(level)
		if !ok {
			return Decision{
				RejectionReason: fmt.Sprintf(
					"the %s role has no %s access to %s", in.Role, in.Level, in.System,
				),
			}, nil
		}
		level = next
	}
}

// needsApproval: write access to a project-scoped resource needs the
// project owner's sign-off; everything else the capability table permits is
// self-service. Account-owned consent is enforced by the request state
// machine, not here.
func (e *Evaluator) needsApproval(in Input, allowed resource.Level) bool {
	return in.Project != nil && allowed.WriteTier()
}
