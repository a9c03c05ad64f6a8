package controllers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/iota-uz/accessdesk/modules/access/domain/approval"
	"github.com/iota-uz/accessdesk/modules/access/domain/conversation"
	"github.com/iota-uz/accessdesk/modules/access/domain/directory"
	"github.com/iota-uz/accessdesk/modules/access/domain/escalation"
	"github.com/iota-uz/accessdesk/modules/access/domain/resource"
	"github.com/iota-uz/accessdesk/modules/access/services"
)

// AccessAPIController is the JSON boundary over the chat flow, the approval
// ledger and the escalation tracker. It stays thin: parse, call a service,
// render.
type AccessAPIController struct {
	conversations *services.ConversationService
	approvals     *services.ApprovalService
	escalations   *services.EscalationService
	transcripts   *services.TranscriptService
	basePath      string
}

func NewAccessAPIController(
	conversations *services.ConversationService,
	approvals *services.ApprovalService,
	escalations *services.EscalationService,
	transcripts *services.TranscriptService,
) *AccessAPIController {
	return &AccessAPIController{
		conversations: conversations,
		approvals:     approvals,
		escalations:   escalations,
		transcripts:   transcripts,
		basePath:      "/access/api",
	}
}

func (c *AccessAPIController) Key() string {
	return c.basePath
}

func (c *AccessAPIController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.HandleFunc("/chat", c.Chat).Methods(http.MethodPost)
	router.HandleFunc("/chat/reset", c.Reset).Methods(http.MethodPost)
	router.HandleFunc("/chat/state", c.State).Methods(http.MethodGet)
	router.HandleFunc("/requests/pending", c.Pending).Methods(http.MethodGet)
	router.HandleFunc("/requests", c.History).Methods(http.MethodGet)
	router.HandleFunc("/requests/{id}/decision", c.Decide).Methods(http.MethodPost)
	router.HandleFunc("/escalations", c.Escalations).Methods(http.MethodGet)
	router.HandleFunc("/escalations/{id}/resolution", c.ResolveEscalation).Methods(http.MethodPost)
	router.HandleFunc("/transcript", c.Transcript).Methods(http.MethodGet)
}

type chatRequest struct {
	RequesterID string `json:"requester_id"`
	Message     string `json:"message"`
}

type stateView struct {
	RequesterID        string `json:"requester_id"`
	Role               string `json:"role"`
	Status             string `json:"status"`
	System             string `json:"system,omitempty"`
	Level              string `json:"level,omitempty"`
	ProjectID          string `json:"project_id,omitempty"`
	MailboxOwnerID     string `json:"mailbox_owner_id,omitempty"`
	PendingRequestID   string `json:"pending_request_id,omitempty"`
	AssignedApproverID string `json:"assigned_approver_id,omitempty"`

	Outcome *outcomeView `json:"outcome,omitempty"`
}

type outcomeView struct {
	Approved     bool      `json:"approved"`
	AccessRef    string    `json:"access_ref,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	DeciderID    string    `json:"decider_id"`
	SelfApproved bool      `json:"self_approved"`
	DecidedAt    time.Time `json:"decided_at"`
}

type replyView struct {
	State      stateView `json:"state"`
	NextField  string    `json:"next_field,omitempty"`
	Confidence string    `json:"confidence,omitempty"`
	Message    string    `json:"message"`
}

func stateToView(s *conversation.RequestState) stateView {
	v := stateView{
		RequesterID:        s.RequesterID,
		Role:               s.Role.String(),
		Status:             string(s.Status),
		System:             s.System.String(),
		Level:              s.Level.String(),
		ProjectID:          s.ProjectID,
		MailboxOwnerID:     s.MailboxOwnerID,
		AssignedApproverID: s.AssignedApproverID,
	}
	if s.PendingRequestID != uuid.Nil {
		v.PendingRequestID = s.PendingRequestID.String()
	}
	if s.Outcome != nil {
		v.Outcome = &outcomeView{
			Approved:     s.Outcome.Approved,
			AccessRef:    s.Outcome.AccessRef,
			Reason:       s.Outcome.Reason,
			DeciderID:    s.Outcome.DeciderID,
			SelfApproved: s.Outcome.SelfApproved,
			DecidedAt:    s.Outcome.DecidedAt,
		}
	}
	return v
}

func replyToView(r *services.Reply) replyView {
	return replyView{
		State:      stateToView(r.State),
		NextField:  string(r.NextField),
		Confidence: string(r.Confidence),
		Message:    r.Message,
	}
}

func (c *AccessAPIController) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "ACCESS_INVALID_JSON", "invalid json")
		return
	}
	if strings.TrimSpace(req.RequesterID) == "" {
		writeAPIError(w, r, http.StatusBadRequest, "ACCESS_MISSING_REQUESTER", "requester_id is required")
		return
	}

	reply, err := c.conversations.HandleMessage(r.Context(), req.RequesterID, req.Message)
	if err != nil {
		c.renderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, replyToView(reply))
}

func (c *AccessAPIController) Reset(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "ACCESS_INVALID_JSON", "invalid json")
		return
	}
	reply, err := c.conversations.Reset(r.Context(), req.RequesterID)
	if err != nil {
		c.renderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, replyToView(reply))
}

func (c *AccessAPIController) State(w http.ResponseWriter, r *http.Request) {
	requesterID := strings.TrimSpace(r.URL.Query().Get("requester"))
	if requesterID == "" {
		writeAPIError(w, r, http.StatusBadRequest, "ACCESS_MISSING_REQUESTER", "requester is required")
		return
	}
	state, err := c.conversations.State(r.Context(), requesterID)
	if err != nil {
		c.renderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stateToView(state))
}

type accessRequestView struct {
	ID                 string     `json:"id"`
	RequesterID        string     `json:"requester_id"`
	RequesterRole      string     `json:"requester_role"`
	System             string     `json:"system"`
	ProjectID          string     `json:"project_id,omitempty"`
	AccountOwnerID     string     `json:"account_owner_id,omitempty"`
	RequestedLevel     string     `json:"requested_level"`
	GrantedLevel       string     `json:"granted_level"`
	AssignedApproverID string     `json:"assigned_approver_id"`
	Status             string     `json:"status"`
	DecidedBy          string     `json:"decided_by,omitempty"`
	DecisionReason     string     `json:"decision_reason,omitempty"`
	AccessRef          string     `json:"access_ref,omitempty"`
	DecidedAt          *time.Time `json:"decided_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

func requestToView(req *approval.AccessRequest) accessRequestView {
	v := accessRequestView{
		ID:                 req.ID.String(),
		RequesterID:        req.RequesterID,
		RequesterRole:      req.RequesterRole.String(),
		System:             req.Target.System().String(),
		RequestedLevel:     req.RequestedLevel.String(),
		GrantedLevel:       req.GrantedLevel.String(),
		AssignedApproverID: req.AssignedApproverID,
		Status:             string(req.Status),
		DecidedBy:          req.DecidedBy,
		DecisionReason:     req.DecisionReason,
		AccessRef:          req.AccessRef,
		DecidedAt:          req.DecidedAt,
		CreatedAt:          req.CreatedAt,
	}
	switch target := req.Target.(type) {
	case resource.ProjectTarget:
		v.ProjectID = target.ProjectID
	case resource.AccountTarget:
		v.AccountOwnerID = target.AccountOwnerID
	}
	return v
}

func (c *AccessAPIController) Pending(w http.ResponseWriter, r *http.Request) {
	viewerID := strings.TrimSpace(r.URL.Query().Get("viewer"))
	if viewerID == "" {
		writeAPIError(w, r, http.StatusBadRequest, "ACCESS_MISSING_VIEWER", "viewer is required")
		return
	}
	pending, err := c.approvals.Pending(r.Context(), viewerID)
	if err != nil {
		c.renderError(w, r, err)
		return
	}
	items := make([]accessRequestView, 0, len(pending))
	for _, req := range pending {
		items = append(items, requestToView(req))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (c *AccessAPIController) History(w http.ResponseWriter, r *http.Request) {
	status := approval.Status(strings.TrimSpace(r.URL.Query().Get("status")))
	list, err := c.approvals.History(r.Context(), status)
	if err != nil {
		c.renderError(w, r, err)
		return
	}
	items := make([]accessRequestView, 0, len(list))
	for _, req := range list {
		items = append(items, requestToView(req))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type decideRequest struct {
	ActorID string `json:"actor_id"`
	Outcome string `json:"outcome"`
	Reason  string `json:"reason"`
}

func (c *AccessAPIController) Decide(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "ACCESS_INVALID_ID", "invalid request id")
		return
	}
	var req decideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "ACCESS_INVALID_JSON", "invalid json")
		return
	}

	result, err := c.approvals.Decide(r.Context(), services.DecideCommand{
		RequestID: id,
		ActorID:   req.ActorID,
		Outcome:   approval.Decision(req.Outcome),
		Reason:    req.Reason,
	})
	if err != nil {
		c.renderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"request":       requestToView(result.Request),
		"override":      result.Override,
		"notifications": result.Notifications,
	})
}

type escalationView struct {
	ID            string     `json:"id"`
	RequesterID   string     `json:"requester_id"`
	ProjectID     string     `json:"project_id"`
	System        string     `json:"system"`
	Level         string     `json:"level"`
	TargetID      string     `json:"target_id"`
	Status        string     `json:"status"`
	Justification string     `json:"justification,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
}

func escalationToView(e *escalation.Request) escalationView {
	return escalationView{
		ID:            e.ID.String(),
		RequesterID:   e.RequesterID,
		ProjectID:     e.ProjectID,
		System:        e.System.String(),
		Level:         e.Level.String(),
		TargetID:      e.TargetID,
		Status:        string(e.Status),
		Justification: e.Justification,
		CreatedAt:     e.CreatedAt,
		ResolvedAt:    e.ResolvedAt,
	}
}

func (c *AccessAPIController) Escalations(w http.ResponseWriter, r *http.Request) {
	targetID := strings.TrimSpace(r.URL.Query().Get("target"))
	if targetID == "" {
		writeAPIError(w, r, http.StatusBadRequest, "ACCESS_MISSING_TARGET", "target is required")
		return
	}
	list, err := c.escalations.ListForTarget(r.Context(), targetID)
	if err != nil {
		c.renderError(w, r, err)
		return
	}
	items := make([]escalationView, 0, len(list))
	for _, e := range list {
		items = append(items, escalationToView(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type resolveEscalationRequest struct {
	ActorID       string `json:"actor_id"`
	Status        string `json:"status"`
	Justification string `json:"justification"`
}

func (c *AccessAPIController) ResolveEscalation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "ACCESS_INVALID_ID", "invalid escalation id")
		return
	}
	var req resolveEscalationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "ACCESS_INVALID_JSON", "invalid json")
		return
	}
	resolved, err := c.escalations.Resolve(r.Context(), id, req.ActorID, escalation.Status(req.Status), req.Justification)
	if err != nil {
		c.renderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, escalationToView(resolved))
}

func (c *AccessAPIController) Transcript(w http.ResponseWriter, r *http.Request) {
	recipientID := strings.TrimSpace(r.URL.Query().Get("recipient"))
	if recipientID == "" {
		writeAPIError(w, r, http.StatusBadRequest, "ACCESS_MISSING_RECIPIENT", "recipient is required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": c.transcripts.For(recipientID)})
}

// renderError maps domain sentinel errors to HTTP codes; everything else is
// a 500.
func (c *AccessAPIController) renderError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, directory.ErrPersonNotFound):
		writeAPIError(w, r, http.StatusNotFound, "ACCESS_UNKNOWN_PERSON", "unknown person")
	case errors.Is(err, directory.ErrProjectNotFound):
		writeAPIError(w, r, http.StatusNotFound, "ACCESS_UNKNOWN_PROJECT", "unknown project")
	case errors.Is(err, approval.ErrNotFound), errors.Is(err, escalation.ErrNotFound):
		writeAPIError(w, r, http.StatusNotFound, "ACCESS_REQUEST_NOT_FOUND", "not found")
	case errors.Is(err, approval.ErrAlreadyDecided), errors.Is(err, escalation.ErrAlreadyResolved):
		writeAPIError(w, r, http.StatusConflict, "ACCESS_ALREADY_DECIDED", err.Error())
	case errors.Is(err, approval.ErrNotAuthorized), errors.Is(err, escalation.ErrNotAuthorized):
		writeAPIError(w, r, http.StatusForbidden, "ACCESS_FORBIDDEN", err.Error())
	case errors.Is(err, approval.ErrEmptyReason),
		errors.Is(err, approval.ErrReasonTooLong),
		errors.Is(err, approval.ErrInvalidDecision),
		errors.Is(err, escalation.ErrEmptyJustification),
		errors.Is(err, escalation.ErrJustificationTooLong):
		writeAPIError(w, r, http.StatusUnprocessableEntity, "ACCESS_INVALID_DECISION", err.Error())
	default:
		writeAPIError(w, r, http.StatusInternalServerError, "ACCESS_INTERNAL", "internal error")
	}
}
