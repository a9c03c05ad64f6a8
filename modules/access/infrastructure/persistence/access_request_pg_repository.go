package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/iota-uz/accessdesk/modules/access/domain/approval"
	"github.com/iota-uz/accessdesk/modules/access/domain/directory"
	"github.com/iota-uz/accessdesk/modules/access/domain/resource"
)

// PgAccessRequestRepository is the durable ledger store. The decision CAS
// runs inside a transaction with a row lock so concurrent deciders
// serialize on the database.
type PgAccessRequestRepository struct {
	pool *pgxpool.Pool
}

func NewPgAccessRequestRepository(pool *pgxpool.Pool) approval.Repository {
	return &PgAccessRequestRepository{pool: pool}
}

const accessRequestColumns = `
	id, requester_id, requester_role, resource_system, project_id,
	mailbox_owner_id, requested_level, granted_level, assigned_approver_id,
	fallback_approver_id, status, decided_by, decided_by_role,
	decision_reason, access_ref, decided_at, created_at`

func (r *PgAccessRequestRepository) Create(ctx context.Context, req *approval.AccessRequest) error {
	projectID, mailboxOwnerID := flattenTarget(req.Target)
	_, err := r.pool.Exec(ctx, `
		INSERT INTO access_requests (`+accessRequestColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		pgUUID(req.ID), req.RequesterID, string(req.RequesterRole),
		string(req.Target.System()), projectID, mailboxOwnerID,
		string(req.RequestedLevel), string(req.GrantedLevel),
		req.AssignedApproverID, req.FallbackApproverID, string(req.Status),
		req.DecidedBy, string(req.DecidedByRole), req.DecisionReason,
		req.AccessRef, pgTimePtr(req.DecidedAt), req.CreatedAt,
	)
	return errors.Wrap(err, "persistence: insert access request")
}

func (r *PgAccessRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*approval.AccessRequest, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+accessRequestColumns+`
		FROM access_requests WHERE id = $1`, pgUUID(id))
	return scanAccessRequest(row)
}

func (r *PgAccessRequestRepository) Decide(ctx context.Context, id uuid.UUID, rec approval.DecisionRecord) (*approval.AccessRequest, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "persistence: begin decide")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		SELECT `+accessRequestColumns+`
		FROM access_requests WHERE id = $1 FOR UPDATE`, pgUUID(id))
	req, err := scanAccessRequest(row)
	if err != nil {
		return nil, err
	}
	if err := req.ApplyDecision(rec); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE access_requests
		SET status = $2, decided_by = $3, decided_by_role = $4,
		    decision_reason = $5, access_ref = $6, decided_at = $7
		WHERE id = $1 AND status = $8`,
		pgUUID(id), string(req.Status), req.DecidedBy, string(req.DecidedByRole),
		req.DecisionReason, req.AccessRef, pgTimePtr(req.DecidedAt),
		string(approval.StatusPending),
	)
	if err != nil {
		return nil, errors.Wrap(err, "persistence: update access request")
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "persistence: commit decide")
	}
	return req, nil
}

func (r *PgAccessRequestRepository) ListPending(ctx context.Context) ([]*approval.AccessRequest, error) {
	return r.List(ctx, approval.StatusPending)
}

func (r *PgAccessRequestRepository) List(ctx context.Context, status approval.Status) ([]*approval.AccessRequest, error) {
	query := `SELECT ` + accessRequestColumns + ` FROM access_requests`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "persistence: list access requests")
	}
	defer rows.Close()

	var out []*approval.AccessRequest
	for rows.Next() {
		req, err := scanAccessRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, errors.Wrap(rows.Err(), "persistence: list access requests")
}

func scanAccessRequest(row pgx.Row) (*approval.AccessRequest, error) {
	var (
		id                               pgtype.UUID
		requesterRole, system            string
		projectID, mailboxOwnerID        string
		requestedLevel, grantedLevel     string
		status, decidedByRole            string
		decidedAt                        pgtype.Timestamptz
		req                              approval.AccessRequest
	)
	err := row.Scan(
		&id, &req.RequesterID, &requesterRole, &system, &projectID,
		&mailboxOwnerID, &requestedLevel, &grantedLevel,
		&req.AssignedApproverID, &req.FallbackApproverID, &status,
		&req.DecidedBy, &decidedByRole, &req.DecisionReason, &req.AccessRef,
		&decidedAt, &req.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, approval.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "persistence: scan access request")
	}
	req.ID = asUUID(id)
	req.RequesterRole = directory.Role(requesterRole)
	req.RequestedLevel = resource.Level(requestedLevel)
	req.GrantedLevel = resource.Level(grantedLevel)
	req.Status = approval.Status(status)
	req.DecidedByRole = directory.Role(decidedByRole)
	req.DecidedAt = asTimePtr(decidedAt)
	req.Target = rebuildTarget(resource.System(system), projectID, mailboxOwnerID, req.AssignedApproverID)
	return &req, nil
}
