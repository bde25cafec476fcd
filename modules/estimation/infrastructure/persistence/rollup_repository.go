package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/costline/costline/modules/estimation/domain/wbs"
	"github.com/costline/costline/modules/estimation/infrastructure/persistence/models"
	"github.com/costline/costline/pkg/composables"
	"github.com/costline/costline/pkg/repo"
)

var (
	ErrRollupNotFound = errors.New("rollup not found")
)

const (
	rollupFindQuery = `
        SELECT
            r.wbs_id,
            r.total_pert,
            r.combined_std_deviation,
            r.confidence_low,
            r.confidence_high,
            r.total_risk_exposure,
            r.risk_adjusted_estimate,
            r.assignment_count,
            r.risk_count,
            r.computed_at
        FROM wbs_rollups r`

	rollupSubtreeCTE = `
        WITH RECURSIVE subtree AS (
            SELECT id FROM wbs_nodes WHERE id = $1
            UNION ALL
            SELECT c.id FROM wbs_nodes c JOIN subtree s ON c.parent_id = s.id
        )`

	rollupAssignmentFiguresQuery = rollupSubtreeCTE + `
        SELECT a.pert_estimate, a.std_deviation
        FROM assignments a
        WHERE a.wbs_id IN (SELECT id FROM subtree)`

	rollupRiskFiguresQuery = rollupSubtreeCTE + `
        SELECT r.risk_exposure
        FROM risks r
        WHERE r.wbs_id IN (SELECT id FROM subtree)`

	rollupUpsertQuery = `
        INSERT INTO wbs_rollups (
            wbs_id, total_pert, combined_std_deviation, confidence_low,
            confidence_high, total_risk_exposure, risk_adjusted_estimate,
            assignment_count, risk_count, computed_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
        ON CONFLICT (wbs_id) DO UPDATE SET
            total_pert = EXCLUDED.total_pert,
            combined_std_deviation = EXCLUDED.combined_std_deviation,
            confidence_low = EXCLUDED.confidence_low,
            confidence_high = EXCLUDED.confidence_high,
            total_risk_exposure = EXCLUDED.total_risk_exposure,
            risk_adjusted_estimate = EXCLUDED.risk_adjusted_estimate,
            assignment_count = EXCLUDED.assignment_count,
            risk_count = EXCLUDED.risk_count,
            computed_at = EXCLUDED.computed_at`
)

type PgRollupRepository struct{}

func NewRollupRepository() wbs.RollupRepository {
	return &PgRollupRepository{}
}

func scanRollup(row pgx.Row) (*wbs.Rollup, error) {
	var m models.WBSRollup
	if err := row.Scan(
		&m.WBSID,
		&m.TotalPert,
		&m.CombinedStdDeviation,
		&m.ConfidenceLow,
		&m.ConfidenceHigh,
		&m.TotalRiskExposure,
		&m.RiskAdjustedEstimate,
		&m.AssignmentCount,
		&m.RiskCount,
		&m.ComputedAt,
	); err != nil {
		return nil, err
	}
	return ToDomainRollup(&m), nil
}

func (g *PgRollupRepository) Get(ctx context.Context, wbsID int64) (*wbs.Rollup, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	r, err := scanRollup(tx.QueryRow(ctx, repo.Join(rollupFindQuery, "WHERE r.wbs_id = $1"), wbsID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRollupNotFound
		}
		return nil, errors.Wrap(err, "failed to query rollup")
	}
	return r, nil
}

func (g *PgRollupRepository) GetMany(ctx context.Context, wbsIDs []int64) ([]*wbs.Rollup, error) {
	if len(wbsIDs) == 0 {
		return nil, nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	rows, err := tx.Query(ctx, repo.Join(rollupFindQuery, "WHERE r.wbs_id = ANY($1)"), wbsIDs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query rollups")
	}
	defer rows.Close()

	var out []*wbs.Rollup
	for rows.Next() {
		r, err := scanRollup(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan rollup")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Recompute re-derives each node's aggregate from the source rows over
// its whole subtree via wbs.ComputeRollup. Summing from source instead of
// applying deltas keeps concurrent sibling edits from losing updates.
func (g *PgRollupRepository) Recompute(ctx context.Context, wbsIDs []int64, zScore float64) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	for _, id := range wbsIDs {
		figures, exposures, err := subtreeFigures(ctx, tx, id)
		if err != nil {
			return errors.Wrapf(err, "failed to collect subtree figures for node %d", id)
		}
		r := wbs.ComputeRollup(id, figures, exposures, zScore)
		if _, err := tx.Exec(
			ctx,
			rollupUpsertQuery,
			r.WBSID,
			r.TotalPert,
			r.CombinedStdDeviation,
			r.ConfidenceLow,
			r.ConfidenceHigh,
			r.TotalRiskExposure,
			r.RiskAdjustedEstimate,
			r.AssignmentCount,
			r.RiskCount,
		); err != nil {
			return errors.Wrapf(err, "failed to upsert rollup for node %d", id)
		}
	}
	return nil
}

func subtreeFigures(ctx context.Context, tx composables.Tx, wbsID int64) ([]wbs.EstimateFigure, []float64, error) {
	rows, err := tx.Query(ctx, rollupAssignmentFiguresQuery, wbsID)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to query assignment figures")
	}
	defer rows.Close()
	var figures []wbs.EstimateFigure
	for rows.Next() {
		var f wbs.EstimateFigure
		if err := rows.Scan(&f.Pert, &f.Std); err != nil {
			return nil, nil, errors.Wrap(err, "failed to scan assignment figure")
		}
		figures = append(figures, f)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	riskRows, err := tx.Query(ctx, rollupRiskFiguresQuery, wbsID)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to query risk exposures")
	}
	defer riskRows.Close()
	var exposures []float64
	for riskRows.Next() {
		var e float64
		if err := riskRows.Scan(&e); err != nil {
			return nil, nil, errors.Wrap(err, "failed to scan risk exposure")
		}
		exposures = append(exposures, e)
	}
	return figures, exposures, riskRows.Err()
}
