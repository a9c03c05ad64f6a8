package handlers

import (
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/accessdesk/modules/access/domain/escalation"
	"github.com/iota-uz/accessdesk/modules/access/domain/events"
	"github.com/iota-uz/accessdesk/modules/access/services"
	"github.com/iota-uz/accessdesk/pkg/eventbus"
)

// NotificationEventsHandler fans composed notifications out to the
// transcript sink so the chat boundary can show each person what they were
// told.
type NotificationEventsHandler struct {
	transcripts *services.TranscriptService
	logger      *logrus.Logger
}

func RegisterNotificationEventHandlers(
	publisher eventbus.EventBus,
	transcripts *services.TranscriptService,
	logger *logrus.Logger,
) {
	handler := &NotificationEventsHandler{
		transcripts: transcripts,
		logger:      logger,
	}
	publisher.Subscribe(handler.onRequestDecided)
	publisher.Subscribe(handler.onEscalationOpened)
	publisher.Subscribe(handler.onEscalationResolved)
}

func (h *NotificationEventsHandler) onRequestDecided(event events.RequestDecidedV1) {
	for _, n := range event.Notifications {
		h.transcripts.Append(n)
	}
	h.logger.WithFields(logrus.Fields{
		"request_id": event.Request.ID,
		"outcome":    event.Request.Status,
		"recipients": len(event.Notifications),
	}).Debug("decision notifications delivered")
}

func (h *NotificationEventsHandler) onEscalationOpened(event events.EscalationOpenedV1) {
	esc := event.Escalation
	h.transcripts.Append(events.Notification{
		RecipientID: esc.TargetID,
		Body: esc.RequesterID + " asked for " + esc.Level.String() + " " + esc.System.String() +
			" access in project " + esc.ProjectID + " but is not a member. Approve or decline the escalation.",
		SentAt: event.OpenedAt,
	})
}

func (h *NotificationEventsHandler) onEscalationResolved(event events.EscalationResolvedV1) {
	esc := event.Escalation
	body := "Your membership escalation for project " + esc.ProjectID + " was " + string(esc.Status) +
		": " + esc.Justification
	if esc.Status == escalation.StatusApproved {
		body += " Once you're on the project roster, resend your access request."
	}
	h.transcripts.Append(events.Notification{
		RecipientID: esc.RequesterID,
		Body:        body,
		SentAt:      event.ResolvedAt,
	})
}
