package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/iota-uz/accessdesk/modules/access/domain/approval"
	"github.com/iota-uz/accessdesk/modules/access/domain/conversation"
	"github.com/iota-uz/accessdesk/modules/access/domain/directory"
	"github.com/iota-uz/accessdesk/modules/access/domain/events"
	"github.com/iota-uz/accessdesk/modules/access/domain/resource"
)

// Truncate bounds a human-readable message, marking the cut with an
// ellipsis when it happens.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

// describeTarget renders the scope-specific part of a request for chat
// messages.
func describeTarget(t resource.Target) string {
	switch target := t.(type) {
	case resource.ProjectTarget:
		return fmt.Sprintf("%s access in project %s", target.Sys, target.ProjectID)
	case resource.AccountTarget:
		return fmt.Sprintf("access to %s's %s account", target.AccountOwnerID, target.Sys)
	default:
		return fmt.Sprintf("%s access", t.System())
	}
}

// composeDecisionNotifications produces the message set for a ledger
// decision: one for the actor, one for the requester, and one for the
// bypassed primary approver when an override authority stepped in.
func composeDecisionNotifications(req *approval.AccessRequest, actor *directory.Person, override bool, maxLen int, now time.Time) []events.Notification {
	target := describeTarget(req.Target)
	verb := "approved"
	if req.Status == approval.StatusRejected {
		verb = "rejected"
	}

	actorBody := fmt.Sprintf("You %s %s's request for %s %s.", verb, req.RequesterID, req.GrantedLevel, target)

	var requesterBody string
	switch req.Target.(type) {
	case resource.AccountTarget:
		if req.Status == approval.StatusApproved {
			requesterBody = fmt.Sprintf(
				"%s granted your %s request for %s. Access: %s",
				req.DecidedBy, req.GrantedLevel, target, req.AccessRef,
			)
		} else {
			requesterBody = fmt.Sprintf(
				"%s declined your %s request for %s: %s",
				req.DecidedBy, req.GrantedLevel, target, req.DecisionReason,
			)
		}
	default:
		if req.Status == approval.StatusApproved {
			requesterBody = fmt.Sprintf(
				"Your request for %s %s was approved by %s. Access: %s",
				req.GrantedLevel, target, req.DecidedBy, req.AccessRef,
			)
		} else {
			requesterBody = fmt.Sprintf(
				"Your request for %s %s was rejected by %s: %s",
				req.GrantedLevel, target, req.DecidedBy, req.DecisionReason,
			)
		}
	}

	notifications := []events.Notification{
		{RecipientID: actor.ID, Body: Truncate(actorBody, maxLen), SentAt: now},
		{RecipientID: req.RequesterID, Body: Truncate(requesterBody, maxLen), SentAt: now},
	}

	if override && req.AssignedApproverID != actor.ID {
		overrideBody := fmt.Sprintf(
			"%s %s %s's request for %s %s that was assigned to you.",
			actor.ID, verb, req.RequesterID, req.GrantedLevel, target,
		)
		notifications = append(notifications, events.Notification{
			RecipientID: req.AssignedApproverID,
			Body:        Truncate(overrideBody, maxLen),
			SentAt:      now,
		})
	}

	return notifications
}

// prompts keyed by the next missing conversation field.
var fieldPrompts = map[conversation.Field]string{
	conversation.FieldSystem:       "Which system do you need access to: mail, repo or tracker?",
	conversation.FieldMailboxOwner: "Whose mailbox do you need access to?",
	conversation.FieldProject:      "Which project is this for?",
	conversation.FieldLevel:        "What access level do you need?",
}

func promptFor(field conversation.Field, sys resource.System) string {
	if field == conversation.FieldLevel && sys != "" {
		levels := resource.LevelsFor(sys)
		names := make([]string, len(levels))
		for i, l := range levels {
			names[i] = l.String()
		}
		return fmt.Sprintf("What access level do you need for %s: %s?", sys, strings.Join(names, ", "))
	}
	if prompt, ok := fieldPrompts[field]; ok {
		return prompt
	}
	return "Tell me more about the access you need."
}
