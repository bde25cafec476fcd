package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-faster/errors"

	"github.com/costline/costline/modules/estimation/domain/wbs"
	"github.com/costline/costline/modules/estimation/infrastructure/persistence/models"
	"github.com/costline/costline/pkg/composables"
	"github.com/costline/costline/pkg/repo"
)

var (
	ErrWBSNodeNotFound = errors.New("wbs node not found")
)

// treeInsertChunk keeps each batched insert well under the postgres
// parameter limit.
const treeInsertChunk = 500

const (
	wbsFindQuery = `
        SELECT
            w.id,
            w.project_id,
            w.external_unique_id,
            w.parent_id,
            w.wbs_code,
            w.title,
            w.outline_level,
            w.supplied_outline_level,
            w.schedule_start,
            w.schedule_finish,
            w.baseline_start,
            w.baseline_finish,
            w.late_start,
            w.late_finish,
            w.percent_complete,
            w.is_milestone,
            w.is_summary,
            w.is_critical,
            w.approval_status,
            w.estimate_revision,
            w.last_submitted_at,
            w.approver_identity,
            w.approval_timestamp,
            w.created_at,
            w.updated_at
        FROM wbs_nodes w`

	wbsPathToRootQuery = `
        WITH RECURSIVE chain AS (
            SELECT id, parent_id, 0 AS pos FROM wbs_nodes WHERE id = $1
            UNION ALL
            SELECT w.id, w.parent_id, c.pos + 1
            FROM wbs_nodes w
            JOIN chain c ON w.id = c.parent_id
        )
        SELECT id FROM chain ORDER BY pos`

	wbsInsertPrefix = `
        INSERT INTO wbs_nodes (
            project_id, external_unique_id, wbs_code, title, outline_level,
            supplied_outline_level, schedule_start, schedule_finish,
            baseline_start, baseline_finish, late_start, late_finish,
            percent_complete, is_milestone, is_summary, is_critical
        ) VALUES`

	wbsDeleteByProjectQuery = `DELETE FROM wbs_nodes WHERE project_id = $1`

	wbsUpdateApprovalQuery = `
        UPDATE wbs_nodes
        SET approval_status = $2,
            estimate_revision = $3,
            last_submitted_at = $4,
            approver_identity = $5,
            approval_timestamp = $6,
            updated_at = NOW()
        WHERE id = $1`
)

type PgWBSRepository struct{}

func NewWBSRepository() wbs.Repository {
	return &PgWBSRepository{}
}

func (g *PgWBSRepository) queryNodes(ctx context.Context, query string, args ...interface{}) ([]*wbs.Node, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query wbs nodes")
	}
	defer rows.Close()

	var out []*wbs.Node
	for rows.Next() {
		var m models.WBSNode
		if err := rows.Scan(
			&m.ID,
			&m.ProjectID,
			&m.ExternalUniqueID,
			&m.ParentID,
			&m.WBSCode,
			&m.Title,
			&m.OutlineLevel,
			&m.SuppliedOutlineLevel,
			&m.ScheduleStart,
			&m.ScheduleFinish,
			&m.BaselineStart,
			&m.BaselineFinish,
			&m.LateStart,
			&m.LateFinish,
			&m.PercentComplete,
			&m.IsMilestone,
			&m.IsSummary,
			&m.IsCritical,
			&m.ApprovalStatus,
			&m.EstimateRevision,
			&m.LastSubmittedAt,
			&m.ApproverIdentity,
			&m.ApprovalTimestamp,
			&m.CreatedAt,
			&m.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan wbs node")
		}
		out = append(out, ToDomainWBSNode(&m))
	}
	return out, rows.Err()
}

func (g *PgWBSRepository) getOne(ctx context.Context, query string, args ...interface{}) (*wbs.Node, error) {
	nodes, err := g.queryNodes(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, ErrWBSNodeNotFound
	}
	return nodes[0], nil
}

func (g *PgWBSRepository) GetByID(ctx context.Context, id int64) (*wbs.Node, error) {
	return g.getOne(ctx, repo.Join(wbsFindQuery, "WHERE w.id = $1"), id)
}

func (g *PgWBSRepository) GetByIDForUpdate(ctx context.Context, id int64) (*wbs.Node, error) {
	return g.getOne(ctx, repo.Join(wbsFindQuery, "WHERE w.id = $1 FOR UPDATE OF w"), id)
}

func (g *PgWBSRepository) GetByProject(ctx context.Context, projectID int64) ([]*wbs.Node, error) {
	return g.queryNodes(ctx, repo.Join(wbsFindQuery, "WHERE w.project_id = $1 ORDER BY w.id"), projectID)
}

func (g *PgWBSRepository) PathToRoot(ctx context.Context, id int64) ([]int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	rows, err := tx.Query(ctx, wbsPathToRootQuery, id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query ancestor chain")
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, errors.Wrap(err, "failed to scan ancestor id")
		}
		ids = append(ids, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, ErrWBSNodeNotFound
	}
	return ids, nil
}

// CreateTree inserts the whole forest in two passes: nodes first with a
// null parent, then the parent links once every internal id is known.
// Must run inside one transaction so a failed import leaves nothing.
func (g *PgWBSRepository) CreateTree(ctx context.Context, projectID int64, inserts []wbs.TreeInsert) ([]*wbs.Node, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}

	out := make([]*wbs.Node, 0, len(inserts))
	for start := 0; start < len(inserts); start += treeInsertChunk {
		end := start + treeInsertChunk
		if end > len(inserts) {
			end = len(inserts)
		}
		rows := make([][]interface{}, 0, end-start)
		for _, ins := range inserts[start:end] {
			n := ins.Node
			var supplied sql.NullInt32
			if n.SuppliedOutlineLevel != nil {
				supplied = sql.NullInt32{Int32: int32(*n.SuppliedOutlineLevel), Valid: true}
			}
			rows = append(rows, []interface{}{
				projectID,
				n.ExternalUniqueID,
				n.WBSCode,
				n.Title,
				n.OutlineLevel,
				supplied,
				ptrToNullTime(n.ScheduleStart),
				ptrToNullTime(n.ScheduleFinish),
				ptrToNullTime(n.BaselineStart),
				ptrToNullTime(n.BaselineFinish),
				ptrToNullTime(n.LateStart),
				ptrToNullTime(n.LateFinish),
				n.PercentComplete,
				n.IsMilestone,
				n.IsSummary,
				n.IsCritical,
			})
		}
		query, args := repo.BatchInsertQueryN(wbsInsertPrefix, rows)
		query += " RETURNING id, approval_status, estimate_revision, created_at, updated_at"
		res, err := tx.Query(ctx, query, args...)
		if err != nil {
			return nil, errors.Wrap(err, "failed to insert wbs nodes")
		}
		for i := start; res.Next(); i++ {
			n := *inserts[i].Node
			n.ProjectID = projectID
			if err := res.Scan(&n.ID, &n.ApprovalStatus, &n.EstimateRevision, &n.CreatedAt, &n.UpdatedAt); err != nil {
				res.Close()
				return nil, errors.Wrap(err, "failed to scan inserted wbs node")
			}
			out = append(out, &n)
		}
		res.Close()
		if err := res.Err(); err != nil {
			return nil, errors.Wrap(err, "failed to insert wbs nodes")
		}
	}
	if len(out) != len(inserts) {
		return nil, errors.New("wbs insert returned unexpected row count")
	}

	if err := g.linkParents(ctx, inserts, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (g *PgWBSRepository) linkParents(ctx context.Context, inserts []wbs.TreeInsert, created []*wbs.Node) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	var (
		values []string
		args   []interface{}
	)
	for i, ins := range inserts {
		if ins.ParentIndex < 0 {
			continue
		}
		parentID := created[ins.ParentIndex].ID
		values = append(values, fmt.Sprintf("($%d::bigint, $%d::bigint)", len(args)+1, len(args)+2))
		args = append(args, created[i].ID, parentID)
		pid := parentID
		created[i].ParentID = &pid
	}
	if len(values) == 0 {
		return nil
	}
	query := repo.Join(
		"UPDATE wbs_nodes AS w SET parent_id = v.parent_id",
		"FROM (VALUES "+strings.Join(values, ", ")+") AS v (id, parent_id)",
		"WHERE w.id = v.id",
	)
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return errors.Wrap(err, "failed to link wbs parents")
	}
	return nil
}

func (g *PgWBSRepository) DeleteByProject(ctx context.Context, projectID int64) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	if _, err := tx.Exec(ctx, wbsDeleteByProjectQuery, projectID); err != nil {
		return errors.Wrap(err, "failed to delete project tree")
	}
	return nil
}

func (g *PgWBSRepository) UpdateApproval(ctx context.Context, n *wbs.Node) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	var approver sql.NullString
	if n.ApproverIdentity != nil {
		approver = sql.NullString{String: *n.ApproverIdentity, Valid: true}
	}
	tag, err := tx.Exec(ctx, wbsUpdateApprovalQuery,
		n.ID,
		n.ApprovalStatus,
		n.EstimateRevision,
		ptrToNullTime(n.LastSubmittedAt),
		approver,
		ptrToNullTime(n.ApprovalTimestamp),
	)
	if err != nil {
		return errors.Wrap(err, "failed to update approval state")
	}
	if tag.RowsAffected() == 0 {
		return ErrWBSNodeNotFound
	}
	return nil
}
