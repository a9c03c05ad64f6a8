package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/accessdesk/modules/access/domain/approval"
	"github.com/iota-uz/accessdesk/modules/access/domain/escalation"
)

// Notification is one structured message for one stakeholder. The delivery
// boundary consumes it verbatim; the core never formats markup.
type Notification struct {
	RecipientID string    `json:"recipient_id"`
	Body        string    `json:"body"`
	SentAt      time.Time `json:"sent_at"`
}

// RequestSubmittedV1 fires when the state machine hands a request to the
// approval ledger.
type RequestSubmittedV1 struct {
	RequestID   uuid.UUID `json:"request_id"`
	RequesterID string    `json:"requester_id"`
	ApproverID  string    `json:"approver_id"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// RequestDecidedV1 fires when a pending request is approved or rejected.
// Notifications carries the composed message set: actor, requester and,
// for overrides, the bypassed primary approver.
type RequestDecidedV1 struct {
	Request       *approval.AccessRequest `json:"request"`
	ActorID       string                  `json:"actor_id"`
	Override      bool                    `json:"override"`
	Notifications []Notification          `json:"notifications"`
	DecidedAt     time.Time               `json:"decided_at"`
}

// EscalationOpenedV1 fires when a membership-gate failure raises an
// escalation to the project owner.
type EscalationOpenedV1 struct {
	Escalation *escalation.Request `json:"escalation"`
	OpenedAt   time.Time           `json:"opened_at"`
}

// EscalationResolvedV1 fires on owner or timer resolution.
type EscalationResolvedV1 struct {
	Escalation *escalation.Request `json:"escalation"`
	ByTimer    bool                `json:"by_timer"`
	ResolvedAt time.Time           `json:"resolved_at"`
}
