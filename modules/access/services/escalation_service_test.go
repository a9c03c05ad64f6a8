package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/accessdesk/modules/access/domain/conversation"
	"github.com/iota-uz/accessdesk/modules/access/domain/escalation"
)

func openAtlasEscalation(t *testing.T, f *fixture) *escalation.Request {
	t.Helper()
	ctx := context.Background()
	reply, err := f.conversations.HandleMessage(ctx, "ivan", "read-write repo access for atlas")
	require.NoError(t, err)
	require.Equal(t, conversation.StatusInProgress, reply.State.Status)

	escalations, err := f.escalations.ListForTarget(ctx, "dmitry")
	require.NoError(t, err)
	require.Len(t, escalations, 1)
	return escalations[0]
}

func TestEscalation_OwnerResolves(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	esc := openAtlasEscalation(t, f)

	resolved, err := f.escalations.Resolve(ctx, esc.ID, "dmitry", escalation.StatusDeclined, "atlas is winding down")
	require.NoError(t, err)
	assert.Equal(t, escalation.StatusDeclined, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)

	_, err = f.escalations.Resolve(ctx, esc.ID, "dmitry", escalation.StatusApproved, "changed my mind")
	require.ErrorIs(t, err, escalation.ErrAlreadyResolved)
}

func TestEscalation_OnlyTargetOrAdminResolves(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	esc := openAtlasEscalation(t, f)

	_, err := f.escalations.Resolve(ctx, esc.ID, "lena", escalation.StatusApproved, "looks fine to me")
	require.ErrorIs(t, err, escalation.ErrNotAuthorized)

	resolved, err := f.escalations.Resolve(ctx, esc.ID, "maria", escalation.StatusApproved, "adding ivan to the roster")
	require.NoError(t, err)
	assert.Equal(t, escalation.StatusApproved, resolved.Status)
}

func TestEscalation_ResolutionRequiresJustification(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	esc := openAtlasEscalation(t, f)

	_, err := f.escalations.Resolve(ctx, esc.ID, "dmitry", escalation.StatusApproved, "  ")
	require.ErrorIs(t, err, escalation.ErrEmptyJustification)
}

func TestEscalation_ApprovalIsAdvisory(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	esc := openAtlasEscalation(t, f)

	_, err := f.escalations.Resolve(ctx, esc.ID, "dmitry", escalation.StatusApproved, "go ahead")
	require.NoError(t, err)

	// The roster did not change, so resending the request escalates again
	// rather than granting anything.
	reply, err := f.conversations.HandleMessage(ctx, "ivan", "read-write repo access for atlas")
	require.NoError(t, err)
	assert.Equal(t, conversation.StatusInProgress, reply.State.Status)

	escalations, err := f.escalations.ListForTarget(ctx, "dmitry")
	require.NoError(t, err)
	assert.Len(t, escalations, 2)
}

func TestEscalation_TimerAutoApproves(t *testing.T) {
	t.Parallel()
	f := newFixtureWithAutoResolve(t, 20*time.Millisecond)
	ctx := context.Background()
	esc := openAtlasEscalation(t, f)

	require.Eventually(t, func() bool {
		current, err := f.escalations.ListForTarget(ctx, "dmitry")
		if err != nil || len(current) != 1 {
			return false
		}
		return current[0].Status == escalation.StatusApproved
	}, 2*time.Second, 10*time.Millisecond)

	// The timer outcome is final; the owner's late answer bounces.
	_, err := f.escalations.Resolve(ctx, esc.ID, "dmitry", escalation.StatusDeclined, "too late")
	require.ErrorIs(t, err, escalation.ErrAlreadyResolved)
}
