package persistence_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/accessdesk/modules/access/domain/approval"
	"github.com/iota-uz/accessdesk/modules/access/domain/conversation"
	"github.com/iota-uz/accessdesk/modules/access/domain/directory"
	"github.com/iota-uz/accessdesk/modules/access/domain/escalation"
	"github.com/iota-uz/accessdesk/modules/access/domain/resource"
	"github.com/iota-uz/accessdesk/modules/access/infrastructure/persistence"
)

func newPendingRequest() *approval.AccessRequest {
	return &approval.AccessRequest{
		ID:            uuid.New(),
		RequesterID:   "ivan",
		RequesterRole: directory.RoleEmployee,
		Target: resource.ProjectTarget{
			Sys:       resource.SystemRepo,
			ProjectID: "phoenix",
			OwnerID:   "lena",
		},
		RequestedLevel:     resource.LevelReadWrite,
		GrantedLevel:       resource.LevelReadWrite,
		AssignedApproverID: "lena",
		FallbackApproverID: "maria",
		Status:             approval.StatusPending,
		CreatedAt:          time.Now(),
	}
}

func TestAccessRequestRepository_DecideExactlyOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := persistence.NewAccessRequestRepository()
	req := newPendingRequest()
	require.NoError(t, repo.Create(ctx, req))

	const deciders = 16
	var wg sync.WaitGroup
	errs := make([]error, deciders)
	for i := 0; i < deciders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.Decide(ctx, req.ID, approval.DecisionRecord{
				Outcome:   approval.DecisionApprove,
				DeciderID: "lena",
				AccessRef: "ref",
				DecidedAt: time.Now(),
			})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, approval.ErrAlreadyDecided)
		}
	}
	assert.Equal(t, 1, wins, "exactly one decision may land")

	stored, err := repo.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, approval.StatusApproved, stored.Status)
}

func TestAccessRequestRepository_FailedDecisionLeavesRecordUntouched(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := persistence.NewAccessRequestRepository()
	req := newPendingRequest()
	require.NoError(t, repo.Create(ctx, req))

	_, err := repo.Decide(ctx, req.ID, approval.DecisionRecord{Outcome: "defer"})
	assert.ErrorIs(t, err, approval.ErrInvalidDecision)

	stored, err := repo.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, approval.StatusPending, stored.Status)
}

func TestAccessRequestRepository_UnknownID(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := persistence.NewAccessRequestRepository()
	_, err := repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, approval.ErrNotFound)
	_, err = repo.Decide(ctx, uuid.New(), approval.DecisionRecord{Outcome: approval.DecisionApprove})
	assert.ErrorIs(t, err, approval.ErrNotFound)
}

func TestStateRepository_ClonesOnReadAndWrite(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := persistence.NewStateRepository()

	state := conversation.New("ivan", directory.RoleEmployee)
	require.NoError(t, state.SetSystem(resource.SystemTracker))
	require.NoError(t, repo.Save(ctx, state))

	// Mutating the caller's copy must not leak into the store.
	require.NoError(t, state.SetLevel(resource.LevelView))
	stored, err := repo.Get(ctx, "ivan")
	require.NoError(t, err)
	assert.Empty(t, stored.Level)

	_, err = repo.Get(ctx, "nobody")
	assert.ErrorIs(t, err, conversation.ErrStateNotFound)
}

func TestEscalationRepository_ResolveOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := persistence.NewEscalationRepository()
	esc := &escalation.Request{
		ID:          uuid.New(),
		RequesterID: "ivan",
		ProjectID:   "atlas",
		System:      resource.SystemRepo,
		Level:       resource.LevelReadOnly,
		TargetID:    "dmitry",
		Status:      escalation.StatusPending,
		CreatedAt:   time.Now(),
	}
	require.NoError(t, repo.Create(ctx, esc))

	resolved, err := repo.Resolve(ctx, esc.ID, escalation.StatusApproved, "welcome aboard", 280, time.Now())
	require.NoError(t, err)
	assert.Equal(t, escalation.StatusApproved, resolved.Status)

	_, err = repo.Resolve(ctx, esc.ID, escalation.StatusDeclined, "no", 280, time.Now())
	assert.ErrorIs(t, err, escalation.ErrAlreadyResolved)

	list, err := repo.ListForTarget(ctx, "dmitry")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, escalation.StatusApproved, list[0].Status)
}

func TestDirectoryRepository_Lookups(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := persistence.NewDirectoryRepository(
		[]*directory.Person{{ID: "ivan", Name: "Ivan", Role: directory.RoleEmployee}},
		[]*directory.Project{{ID: "phoenix", OwnerID: "lena", MemberIDs: []string{"ivan"}}},
	)

	p, err := repo.PersonByID(ctx, "ivan")
	require.NoError(t, err)
	assert.Equal(t, directory.RoleEmployee, p.Role)

	_, err = repo.PersonByID(ctx, "ghost")
	assert.ErrorIs(t, err, directory.ErrPersonNotFound)

	proj, err := repo.ProjectByID(ctx, "phoenix")
	require.NoError(t, err)
	assert.True(t, proj.HasMember("ivan"))
	assert.True(t, proj.HasMember("lena"), "owner is always a member")
	assert.False(t, proj.HasMember("dmitry"))
}
