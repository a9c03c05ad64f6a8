package conversation_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/accessdesk/modules/access/domain/conversation"
	"github.com/iota-uz/accessdesk/modules/access/domain/directory"
	"github.com/iota-uz/accessdesk/modules/access/domain/resource"
)

func TestRequestState_FieldOrdering(t *testing.T) {
	t.Parallel()

	t.Run("empty draft asks for system first", func(t *testing.T) {
		s := conversation.New("ivan", directory.RoleEmployee)
		assert.Equal(t, []conversation.Field{conversation.FieldSystem, conversation.FieldLevel}, s.MissingFields())
	})

	t.Run("mailbox owner precedes level for employee mail requests", func(t *testing.T) {
		s := conversation.New("ivan", directory.RoleEmployee)
		require.NoError(t, s.SetSystem(resource.SystemMail))
		assert.Equal(t, []conversation.Field{conversation.FieldMailboxOwner, conversation.FieldLevel}, s.MissingFields())

		require.NoError(t, s.SetMailboxOwner("dmitry"))
		assert.Equal(t, []conversation.Field{conversation.FieldLevel}, s.MissingFields())
	})

	t.Run("manager mail requests need no mailbox owner", func(t *testing.T) {
		s := conversation.New("dmitry", directory.RoleManager)
		require.NoError(t, s.SetSystem(resource.SystemMail))
		assert.Equal(t, []conversation.Field{conversation.FieldLevel}, s.MissingFields())
	})

	t.Run("project precedes level for repo requests", func(t *testing.T) {
		s := conversation.New("lena", directory.RoleLead)
		require.NoError(t, s.SetSystem(resource.SystemRepo))
		assert.Equal(t, []conversation.Field{conversation.FieldProject, conversation.FieldLevel}, s.MissingFields())
	})
}

func TestRequestState_SystemChangeClearsDependentFields(t *testing.T) {
	t.Parallel()
	s := conversation.New("ivan", directory.RoleEmployee)
	require.NoError(t, s.SetSystem(resource.SystemRepo))
	require.NoError(t, s.SetProject("phoenix"))
	require.NoError(t, s.SetLevel(resource.LevelReadWrite))
	require.True(t, s.Complete())

	require.NoError(t, s.SetSystem(resource.SystemTracker))
	assert.Empty(t, s.Level, "level must be cleared, it may be invalid for the new system")
	assert.Empty(t, s.ProjectID, "project does not apply to the tracker")

	// Re-selecting the same system keeps everything.
	require.NoError(t, s.SetLevel(resource.LevelView))
	require.NoError(t, s.SetSystem(resource.SystemTracker))
	assert.Equal(t, resource.LevelView, s.Level)
}

func TestRequestState_SettersRequireSystem(t *testing.T) {
	t.Parallel()
	s := conversation.New("ivan", directory.RoleEmployee)
	assert.ErrorIs(t, s.SetLevel(resource.LevelReadOnly), conversation.ErrNoSystem)
	assert.ErrorIs(t, s.SetProject("phoenix"), conversation.ErrNoSystem)
	assert.ErrorIs(t, s.SetMailboxOwner("dmitry"), conversation.ErrNoSystem)
}

func TestRequestState_ScopeMismatch(t *testing.T) {
	t.Parallel()
	s := conversation.New("ivan", directory.RoleEmployee)
	require.NoError(t, s.SetSystem(resource.SystemTracker))
	assert.Error(t, s.SetProject("phoenix"))
	assert.Error(t, s.SetMailboxOwner("dmitry"))
	assert.Error(t, s.SetLevel(resource.LevelReadWrite), "tracker has no read-write level")
}

func TestRequestState_DraftBecomesInProgressOnSystem(t *testing.T) {
	t.Parallel()
	s := conversation.New("ivan", directory.RoleEmployee)
	assert.Equal(t, conversation.StatusDraft, s.Status)
	require.NoError(t, s.SetSystem(resource.SystemTracker))
	assert.Equal(t, conversation.StatusInProgress, s.Status)
}

func TestRequestState_Transitions(t *testing.T) {
	t.Parallel()

	complete := func() *conversation.RequestState {
		s := conversation.New("ivan", directory.RoleEmployee)
		require.NoError(t, s.SetSystem(resource.SystemMail))
		require.NoError(t, s.SetMailboxOwner("dmitry"))
		require.NoError(t, s.SetLevel(resource.LevelReadOnly))
		return s
	}

	t.Run("awaiting approval requires completeness", func(t *testing.T) {
		s := conversation.New("ivan", directory.RoleEmployee)
		require.NoError(t, s.SetSystem(resource.SystemMail))
		err := s.MarkAwaitingApproval(uuid.New(), "dmitry")
		assert.ErrorIs(t, err, conversation.ErrIncomplete)
		assert.Equal(t, conversation.StatusInProgress, s.Status)
	})

	t.Run("awaiting approval locks mutations", func(t *testing.T) {
		s := complete()
		require.NoError(t, s.MarkAwaitingApproval(uuid.New(), "dmitry"))
		assert.ErrorIs(t, s.SetLevel(resource.LevelReadWrite), conversation.ErrAwaitingDecision)
		assert.ErrorIs(t, s.SetSystem(resource.SystemRepo), conversation.ErrAwaitingDecision)
	})

	t.Run("self approval only from in-progress", func(t *testing.T) {
		s := complete()
		require.NoError(t, s.MarkSelfApproved("https://grants.accessdesk.local/abc", time.Now()))
		assert.Equal(t, conversation.StatusApproved, s.Status)
		require.NotNil(t, s.Outcome)
		assert.True(t, s.Outcome.SelfApproved)

		assert.ErrorIs(t, s.MarkSelfApproved("x", time.Now()), conversation.ErrInvalidTransition)
	})

	t.Run("external decision only while awaiting", func(t *testing.T) {
		s := complete()
		assert.ErrorIs(t, s.ApplyDecision(conversation.Outcome{Approved: true}), conversation.ErrInvalidTransition)

		require.NoError(t, s.MarkAwaitingApproval(uuid.New(), "dmitry"))
		require.NoError(t, s.ApplyDecision(conversation.Outcome{
			Approved: false,
			Reason:   "not this quarter",
		}))
		assert.Equal(t, conversation.StatusRejected, s.Status)
		require.NotNil(t, s.Outcome)
		assert.Empty(t, s.Outcome.AccessRef, "rejection must not carry an access reference")
	})

	t.Run("rejection replaces approval outcome wholesale", func(t *testing.T) {
		s := complete()
		require.NoError(t, s.MarkAwaitingApproval(uuid.New(), "dmitry"))
		require.NoError(t, s.ApplyDecision(conversation.Outcome{
			Approved:  true,
			AccessRef: "https://grants.accessdesk.local/abc",
		}))
		// A decided request takes no further decisions.
		assert.ErrorIs(t, s.ApplyDecision(conversation.Outcome{Approved: false}), conversation.ErrInvalidTransition)
	})
}

func TestRequestState_ResetRoundTrip(t *testing.T) {
	t.Parallel()
	s := conversation.New("ivan", directory.RoleEmployee)
	require.NoError(t, s.SetSystem(resource.SystemMail))
	require.NoError(t, s.SetMailboxOwner("dmitry"))
	require.NoError(t, s.SetLevel(resource.LevelReadOnly))
	require.NoError(t, s.MarkAwaitingApproval(uuid.New(), "dmitry"))
	require.NoError(t, s.ApplyDecision(conversation.Outcome{Approved: false, Reason: "no"}))
	require.True(t, s.Status.Terminal())

	fresh := s.Reset()
	assert.Equal(t, conversation.New("ivan", directory.RoleEmployee), fresh,
		"reset must be indistinguishable from a brand-new draft")
}
