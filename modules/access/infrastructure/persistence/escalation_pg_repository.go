package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/iota-uz/accessdesk/modules/access/domain/escalation"
	"github.com/iota-uz/accessdesk/modules/access/domain/resource"
)

type PgEscalationRepository struct {
	pool *pgxpool.Pool
}

func NewPgEscalationRepository(pool *pgxpool.Pool) escalation.Repository {
	return &PgEscalationRepository{pool: pool}
}

const escalationColumns = `
	id, requester_id, project_id, resource_system, level, target_id,
	status, justification, created_at, resolved_at`

func (r *PgEscalationRepository) Create(ctx context.Context, req *escalation.Request) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO escalation_requests (`+escalationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		pgUUID(req.ID), req.RequesterID, req.ProjectID,
		string(req.System), string(req.Level), req.TargetID,
		string(req.Status), req.Justification, req.CreatedAt,
		pgTimePtr(req.ResolvedAt),
	)
	return errors.Wrap(err, "persistence: insert escalation")
}

func (r *PgEscalationRepository) GetByID(ctx context.Context, id uuid.UUID) (*escalation.Request, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+escalationColumns+`
		FROM escalation_requests WHERE id = $1`, pgUUID(id))
	return scanEscalation(row)
}

func (r *PgEscalationRepository) Resolve(ctx context.Context, id uuid.UUID, status escalation.Status, justification string, maxLen int, at time.Time) (*escalation.Request, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "persistence: begin resolve")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		SELECT `+escalationColumns+`
		FROM escalation_requests WHERE id = $1 FOR UPDATE`, pgUUID(id))
	req, err := scanEscalation(row)
	if err != nil {
		return nil, err
	}
	if err := req.Resolve(status, justification, maxLen, at); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE escalation_requests
		SET status = $2, justification = $3, resolved_at = $4
		WHERE id = $1 AND status = $5`,
		pgUUID(id), string(req.Status), req.Justification,
		pgTimePtr(req.ResolvedAt), string(escalation.StatusPending),
	)
	if err != nil {
		return nil, errors.Wrap(err, "persistence: update escalation")
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "persistence: commit resolve")
	}
	return req, nil
}

func (r *PgEscalationRepository) ListForTarget(ctx context.Context, targetID string) ([]*escalation.Request, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+escalationColumns+`
		FROM escalation_requests WHERE target_id = $1 ORDER BY created_at`, targetID)
	if err != nil {
		return nil, errors.Wrap(err, "persistence: list escalations")
	}
	defer rows.Close()

	var out []*escalation.Request
	for rows.Next() {
		req, err := scanEscalation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, errors.Wrap(rows.Err(), "persistence: list escalations")
}

func scanEscalation(row pgx.Row) (*escalation.Request, error) {
	var (
		id            pgtype.UUID
		system, level string
		status        string
		resolvedAt    pgtype.Timestamptz
		req           escalation.Request
	)
	err := row.Scan(
		&id, &req.RequesterID, &req.ProjectID, &system, &level,
		&req.TargetID, &status, &req.Justification, &req.CreatedAt,
		&resolvedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, escalation.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "persistence: scan escalation")
	}
	req.ID = asUUID(id)
	req.System = resource.System(system)
	req.Level = resource.Level(level)
	req.Status = escalation.Status(status)
	req.ResolvedAt = asTimePtr(resolvedAt)
	return &req, nil
}
