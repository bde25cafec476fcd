package persistence

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/costline/costline/modules/estimation/domain/wbs"
	"github.com/costline/costline/modules/estimation/infrastructure/persistence/models"
	"github.com/costline/costline/pkg/composables"
	"github.com/costline/costline/pkg/repo"
)

const (
	auditFindQuery = `
        SELECT
            a.id,
            a.wbs_id,
            a.action,
            a.from_status,
            a.to_status,
            a.revision,
            a.actor_id,
            a.actor_name,
            a.comment,
            a.created_at
        FROM approval_audit a`

	auditInsertQuery = `
        INSERT INTO approval_audit (
            wbs_id, action, from_status, to_status, revision,
            actor_id, actor_name, comment
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id, created_at`
)

type PgAuditRepository struct{}

func NewAuditRepository() wbs.AuditRepository {
	return &PgAuditRepository{}
}

func (g *PgAuditRepository) Append(ctx context.Context, e *wbs.AuditEntry) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	err = tx.QueryRow(ctx, auditInsertQuery,
		e.WBSID,
		e.Action,
		e.FromStatus,
		e.ToStatus,
		e.Revision,
		e.ActorID,
		e.ActorName,
		e.Comment,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "failed to append approval audit entry")
	}
	return nil
}

func (g *PgAuditRepository) GetByNode(ctx context.Context, wbsID int64) ([]*wbs.AuditEntry, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	rows, err := tx.Query(ctx, repo.Join(auditFindQuery, "WHERE a.wbs_id = $1 ORDER BY a.id"), wbsID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query approval audit")
	}
	defer rows.Close()

	var out []*wbs.AuditEntry
	for rows.Next() {
		var m models.ApprovalAudit
		if err := rows.Scan(
			&m.ID,
			&m.WBSID,
			&m.Action,
			&m.FromStatus,
			&m.ToStatus,
			&m.Revision,
			&m.ActorID,
			&m.ActorName,
			&m.Comment,
			&m.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan audit entry")
		}
		out = append(out, ToDomainAuditEntry(&m))
	}
	return out, rows.Err()
}
