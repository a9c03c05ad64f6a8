package persistence

import (
	"context"
	_ "embed"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/iota-uz/accessdesk/modules/access/domain/resource"
)

//go:embed schema.sql
var schemaSQL string

// EnsureSchema creates the ledger tables when they do not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return errors.Wrap(err, "persistence: ensure schema")
	}
	return nil
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

func asUUID(v pgtype.UUID) uuid.UUID {
	if !v.Valid {
		return uuid.Nil
	}
	return uuid.UUID(v.Bytes)
}

func pgTimePtr(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

func asTimePtr(v pgtype.Timestamptz) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

// rebuildTarget restores the tagged scope variant from the flattened
// columns.
func rebuildTarget(sys resource.System, projectID, mailboxOwnerID, approverID string) resource.Target {
	switch {
	case projectID != "":
		return resource.ProjectTarget{Sys: sys, ProjectID: projectID, OwnerID: approverID}
	case mailboxOwnerID != "":
		return resource.AccountTarget{Sys: sys, AccountOwnerID: mailboxOwnerID}
	default:
		return resource.GlobalTarget{Sys: sys}
	}
}

// flattenTarget splits the tagged scope variant into nullable-ish columns.
func flattenTarget(t resource.Target) (projectID, mailboxOwnerID string) {
	switch target := t.(type) {
	case resource.ProjectTarget:
		return target.ProjectID, ""
	case resource.AccountTarget:
		return "", target.AccountOwnerID
	default:
		return "", ""
	}
}
