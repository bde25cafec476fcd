package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/costline/costline/modules/estimation/domain/assignment"
	"github.com/costline/costline/modules/estimation/infrastructure/persistence/models"
	"github.com/costline/costline/pkg/composables"
	"github.com/costline/costline/pkg/repo"
)

var (
	ErrAssignmentNotFound = errors.New("assignment not found")
)

const (
	assignmentFindQuery = `
        SELECT
            a.id,
            a.wbs_id,
            a.resource_code,
            a.best_estimate,
            a.likely_estimate,
            a.worst_estimate,
            a.pert_estimate,
            a.std_deviation,
            a.created_at,
            a.updated_at
        FROM assignments a`

	assignmentCountQuery = `SELECT COUNT(a.id) FROM assignments a WHERE a.wbs_id = $1`

	assignmentBreakdownQuery = `
        SELECT
            a.resource_code,
            COALESCE(SUM(a.pert_estimate), 0),
            COUNT(a.id)
        FROM assignments a
        JOIN wbs_nodes w ON w.id = a.wbs_id
        WHERE w.project_id = $1
        GROUP BY a.resource_code
        ORDER BY a.resource_code`

	assignmentInsertPrefix = `
        INSERT INTO assignments (
            wbs_id, resource_code, best_estimate, likely_estimate,
            worst_estimate, pert_estimate, std_deviation
        ) VALUES`

	assignmentUpdateQuery = `
        UPDATE assignments
        SET resource_code = $2,
            best_estimate = $3,
            likely_estimate = $4,
            worst_estimate = $5,
            pert_estimate = $6,
            std_deviation = $7,
            updated_at = NOW()
        WHERE id = $1`

	assignmentDeleteQuery = `DELETE FROM assignments WHERE id = $1`
)

type PgAssignmentRepository struct{}

func NewAssignmentRepository() assignment.Repository {
	return &PgAssignmentRepository{}
}

func (g *PgAssignmentRepository) queryAssignments(ctx context.Context, query string, args ...interface{}) ([]*assignment.Assignment, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query assignments")
	}
	defer rows.Close()

	var out []*assignment.Assignment
	for rows.Next() {
		var m models.Assignment
		if err := rows.Scan(
			&m.ID,
			&m.WBSID,
			&m.ResourceCode,
			&m.BestEstimate,
			&m.LikelyEstimate,
			&m.WorstEstimate,
			&m.PertEstimate,
			&m.StdDeviation,
			&m.CreatedAt,
			&m.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan assignment")
		}
		a, err := ToDomainAssignment(&m)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (g *PgAssignmentRepository) GetByID(ctx context.Context, id int64) (*assignment.Assignment, error) {
	out, err := g.queryAssignments(ctx, repo.Join(assignmentFindQuery, "WHERE a.id = $1"), id)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrAssignmentNotFound
	}
	return out[0], nil
}

func (g *PgAssignmentRepository) GetByNode(ctx context.Context, wbsID int64) ([]*assignment.Assignment, error) {
	return g.queryAssignments(ctx, repo.Join(assignmentFindQuery, "WHERE a.wbs_id = $1 ORDER BY a.id"), wbsID)
}

func (g *PgAssignmentRepository) CountByNode(ctx context.Context, wbsID int64) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get transaction")
	}
	var count int64
	if err := tx.QueryRow(ctx, assignmentCountQuery, wbsID).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count assignments")
	}
	return count, nil
}

func (g *PgAssignmentRepository) ResourceBreakdownByProject(ctx context.Context, projectID int64) ([]*assignment.ResourceTotal, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	rows, err := tx.Query(ctx, assignmentBreakdownQuery, projectID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query resource breakdown")
	}
	defer rows.Close()

	var out []*assignment.ResourceTotal
	for rows.Next() {
		var (
			rt    assignment.ResourceTotal
			total string
		)
		if err := rows.Scan(&rt.ResourceCode, &total, &rt.AssignmentCount); err != nil {
			return nil, errors.Wrap(err, "failed to scan resource breakdown")
		}
		v, err := decimal.NewFromString(total)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse resource total")
		}
		rt.TotalPert = v
		out = append(out, &rt)
	}
	return out, rows.Err()
}

func (g *PgAssignmentRepository) Create(ctx context.Context, a *assignment.Assignment) (*assignment.Assignment, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	out := *a
	query := assignmentInsertPrefix + " ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at, updated_at"
	err = tx.QueryRow(ctx, query,
		out.WBSID,
		out.ResourceCode,
		out.BestEstimate,
		out.LikelyEstimate,
		out.WorstEstimate,
		out.PertEstimate,
		out.StdDeviation,
	).Scan(&out.ID, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "failed to insert assignment")
	}
	return &out, nil
}

func (g *PgAssignmentRepository) CreateMany(ctx context.Context, as []*assignment.Assignment) error {
	if len(as) == 0 {
		return nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	rows := make([][]interface{}, 0, len(as))
	for _, a := range as {
		rows = append(rows, []interface{}{
			a.WBSID,
			a.ResourceCode,
			a.BestEstimate,
			a.LikelyEstimate,
			a.WorstEstimate,
			a.PertEstimate,
			a.StdDeviation,
		})
	}
	query, args := repo.BatchInsertQueryN(assignmentInsertPrefix, rows)
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return errors.Wrap(err, "failed to batch insert assignments")
	}
	return nil
}

func (g *PgAssignmentRepository) Update(ctx context.Context, a *assignment.Assignment) (*assignment.Assignment, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	tag, err := tx.Exec(ctx, assignmentUpdateQuery,
		a.ID,
		a.ResourceCode,
		a.BestEstimate,
		a.LikelyEstimate,
		a.WorstEstimate,
		a.PertEstimate,
		a.StdDeviation,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to update assignment")
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrAssignmentNotFound
	}
	return g.GetByID(ctx, a.ID)
}

func (g *PgAssignmentRepository) Delete(ctx context.Context, id int64) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	tag, err := tx.Exec(ctx, assignmentDeleteQuery, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete assignment")
	}
	if tag.RowsAffected() == 0 {
		return ErrAssignmentNotFound
	}
	return nil
}
