package controllers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/accessdesk/modules/access/domain/policy"
	"github.com/iota-uz/accessdesk/modules/access/handlers"
	"github.com/iota-uz/accessdesk/modules/access/infrastructure/persistence"
	"github.com/iota-uz/accessdesk/modules/access/presentation/controllers"
	"github.com/iota-uz/accessdesk/modules/access/seed"
	"github.com/iota-uz/accessdesk/modules/access/services"
	"github.com/iota-uz/accessdesk/pkg/authz"
	"github.com/iota-uz/accessdesk/pkg/eventbus"
)

func newRouter(t *testing.T) *mux.Router {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	capabilities, err := authz.NewService(authz.Config{Logger: logger})
	require.NoError(t, err)

	dir := persistence.NewDirectoryRepository(seed.People(), seed.Projects())
	states := persistence.NewStateRepository()
	ledger := persistence.NewAccessRequestRepository()
	escalationLog := persistence.NewEscalationRepository()
	publisher := eventbus.NewEventPublisher(logger)
	transcripts := services.NewTranscriptService()
	handlers.RegisterNotificationEventHandlers(publisher, transcripts, logger)

	approvals := services.NewApprovalService(ledger, states, dir, capabilities, publisher, services.ApprovalOptions{
		FallbackApproverID: "maria",
		MaxMessageLength:   280,
	}, logger)
	escalations := services.NewEscalationService(escalationLog, dir, publisher, services.EscalationOptions{
		MaxMessageLength: 280,
	}, logger)
	t.Cleanup(escalations.Close)
	evaluator := policy.NewEvaluator(capabilities, policy.Config{LeadAdminNeedsApproval: true})
	conversations := services.NewConversationService(
		states, dir, evaluator, approvals, escalations,
		services.ConversationOptions{MaxMessageLength: 280}, logger,
	)

	router := mux.NewRouter()
	controllers.NewAccessAPIController(conversations, approvals, escalations, transcripts).Register(router)
	return router
}

func postJSON(t *testing.T, router *mux.Router, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func getJSON(t *testing.T, router *mux.Router, path string, out any) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if out != nil && rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

func TestAccessAPI_ChatToDecision(t *testing.T) {
	t.Parallel()
	router := newRouter(t)

	rec := postJSON(t, router, "/access/api/chat", map[string]string{
		"requester_id": "ivan",
		"message":      "read-write access to repo for phoenix",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var reply struct {
		State struct {
			Status           string `json:"status"`
			PendingRequestID string `json:"pending_request_id"`
		} `json:"state"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	assert.Equal(t, "awaiting_approval", reply.State.Status)
	require.NotEmpty(t, reply.State.PendingRequestID)

	var pending struct {
		Items []struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"items"`
	}
	rec = getJSON(t, router, "/access/api/requests/pending?viewer=lena", &pending)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, pending.Items, 1)
	assert.Equal(t, reply.State.PendingRequestID, pending.Items[0].ID)

	rec = postJSON(t, router, fmt.Sprintf("/access/api/requests/%s/decision", pending.Items[0].ID), map[string]string{
		"actor_id": "lena",
		"outcome":  "approve",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var decided struct {
		Request struct {
			Status    string `json:"status"`
			AccessRef string `json:"access_ref"`
		} `json:"request"`
		Override bool `json:"override"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decided))
	assert.Equal(t, "approved", decided.Request.Status)
	assert.NotEmpty(t, decided.Request.AccessRef)
	assert.False(t, decided.Override)

	// A second decision conflicts.
	rec = postJSON(t, router, fmt.Sprintf("/access/api/requests/%s/decision", pending.Items[0].ID), map[string]string{
		"actor_id": "maria",
		"outcome":  "reject",
		"reason":   "too late",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// The requester's transcript picked the notification up.
	var transcript struct {
		Items []struct {
			Body string `json:"body"`
		} `json:"items"`
	}
	rec = getJSON(t, router, "/access/api/transcript?recipient=ivan", &transcript)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, transcript.Items, 1)
	assert.Contains(t, transcript.Items[0].Body, "approved")
}

func TestAccessAPI_Validation(t *testing.T) {
	t.Parallel()
	router := newRouter(t)

	rec := postJSON(t, router, "/access/api/chat", map[string]string{"message": "hi"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, router, "/access/api/chat", map[string]string{
		"requester_id": "ghost", "message": "hi",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = getJSON(t, router, "/access/api/requests/pending", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, router, "/access/api/requests/not-a-uuid/decision", map[string]string{
		"actor_id": "maria", "outcome": "approve",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAccessAPI_ForbiddenDecision(t *testing.T) {
	t.Parallel()
	router := newRouter(t)

	rec := postJSON(t, router, "/access/api/chat", map[string]string{
		"requester_id": "ivan",
		"message":      "read-write access to repo for phoenix",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var reply struct {
		State struct {
			PendingRequestID string `json:"pending_request_id"`
		} `json:"state"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))

	rec = postJSON(t, router, fmt.Sprintf("/access/api/requests/%s/decision", reply.State.PendingRequestID), map[string]string{
		"actor_id": "olga",
		"outcome":  "approve",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
