package escalation_test

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/accessdesk/modules/access/domain/escalation"
	"github.com/iota-uz/accessdesk/modules/access/domain/resource"
)

func pendingEscalation() *escalation.Request {
	return &escalation.Request{
		ID:          uuid.New(),
		RequesterID: "ivan",
		ProjectID:   "atlas",
		System:      resource.SystemRepo,
		Level:       resource.LevelReadOnly,
		TargetID:    "dmitry",
		Status:      escalation.StatusPending,
		CreatedAt:   time.Now(),
	}
}

func TestEscalation_Resolve(t *testing.T) {
	t.Parallel()

	t.Run("resolves exactly once", func(t *testing.T) {
		r := pendingEscalation()
		require.NoError(t, r.Resolve(escalation.StatusApproved, "joining for the Q3 audit", 280, time.Now()))
		assert.Equal(t, escalation.StatusApproved, r.Status)
		require.NotNil(t, r.ResolvedAt)

		err := r.Resolve(escalation.StatusDeclined, "second thoughts", 280, time.Now())
		assert.ErrorIs(t, err, escalation.ErrAlreadyResolved)
		assert.Equal(t, escalation.StatusApproved, r.Status)
	})

	t.Run("requires a bounded justification", func(t *testing.T) {
		r := pendingEscalation()
		assert.ErrorIs(t, r.Resolve(escalation.StatusDeclined, " ", 280, time.Now()), escalation.ErrEmptyJustification)
		assert.ErrorIs(t, r.Resolve(escalation.StatusDeclined, strings.Repeat("a", 281), 280, time.Now()), escalation.ErrJustificationTooLong)
		assert.True(t, r.Pending(), "failed resolutions must not touch the record")
	})

	t.Run("rejects unknown outcome", func(t *testing.T) {
		r := pendingEscalation()
		assert.Error(t, r.Resolve(escalation.StatusPending, "still thinking", 280, time.Now()))
		assert.True(t, r.Pending())
	})
}
