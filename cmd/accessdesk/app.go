package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/iota-uz/accessdesk/modules/access/domain/policy"
	"github.com/iota-uz/accessdesk/modules/access/handlers"
	"github.com/iota-uz/accessdesk/modules/access/infrastructure/persistence"
	"github.com/iota-uz/accessdesk/modules/access/seed"
	"github.com/iota-uz/accessdesk/modules/access/services"
	"github.com/iota-uz/accessdesk/pkg/authz"
	"github.com/iota-uz/accessdesk/pkg/configuration"
	"github.com/iota-uz/accessdesk/pkg/eventbus"
)

// app bundles the assembled services plus whatever needs closing on the
// way out.
type app struct {
	conversations *services.ConversationService
	approvals     *services.ApprovalService
	escalations   *services.EscalationService
	transcripts   *services.TranscriptService

	pool *pgxpool.Pool
}

func (a *app) Close() {
	a.escalations.Close()
	if a.pool != nil {
		a.pool.Close()
	}
}

// buildApp wires repositories, services and event handlers from the
// configuration. The ledger and the escalation log move to Postgres when
// DB_ENABLED is set; the directory and the conversation states stay in
// memory.
func buildApp(ctx context.Context, conf *configuration.Configuration) (*app, error) {
	logger := conf.Logger()

	capabilities, err := authz.NewService(authz.Config{
		ModelPath:  conf.Authz.ModelPath,
		PolicyPath: conf.Authz.PolicyPath,
		Logger:     logger,
	})
	if err != nil {
		return nil, errors.Wrap(err, "building capability table")
	}

	dir := persistence.NewDirectoryRepository(seed.People(), seed.Projects())
	states := persistence.NewStateRepository()

	a := &app{transcripts: services.NewTranscriptService()}

	ledger := persistence.NewAccessRequestRepository()
	escalationLog := persistence.NewEscalationRepository()
	if conf.Database.Enabled {
		poolCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		pool, err := pgxpool.New(poolCtx, conf.Database.ConnectionString())
		if err != nil {
			return nil, errors.Wrap(err, "connecting to postgres")
		}
		if err := persistence.EnsureSchema(poolCtx, pool); err != nil {
			pool.Close()
			return nil, errors.Wrap(err, "ensuring schema")
		}
		a.pool = pool
		ledger = persistence.NewPgAccessRequestRepository(pool)
		escalationLog = persistence.NewPgEscalationRepository(pool)
		logger.Info("ledger persistence: postgres")
	} else {
		logger.Info("ledger persistence: in-memory")
	}

	publisher := eventbus.NewEventPublisher(logger)
	handlers.RegisterNotificationEventHandlers(publisher, a.transcripts, logger)

	a.approvals = services.NewApprovalService(ledger, states, dir, capabilities, publisher, services.ApprovalOptions{
		FallbackApproverID: conf.Access.FallbackApproverID,
		MaxMessageLength:   conf.Access.MaxMessageLength,
	}, logger)
	a.escalations = services.NewEscalationService(escalationLog, dir, publisher, services.EscalationOptions{
		AutoResolveAfter: conf.Access.EscalationAutoResolve,
		MaxMessageLength: conf.Access.MaxMessageLength,
	}, logger)
	evaluator := policy.NewEvaluator(capabilities, policy.Config{
		LeadAdminNeedsApproval: conf.Access.LeadAdminNeedsApproval,
	})
	a.conversations = services.NewConversationService(
		states, dir, evaluator, a.approvals, a.escalations,
		services.ConversationOptions{MaxMessageLength: conf.Access.MaxMessageLength},
		logger,
	)
	return a, nil
}
