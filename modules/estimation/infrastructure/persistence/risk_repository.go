package persistence

import (
	"context"
	"database/sql"

	"github.com/go-faster/errors"

	"github.com/costline/costline/modules/estimation/domain/risk"
	"github.com/costline/costline/modules/estimation/infrastructure/persistence/models"
	"github.com/costline/costline/pkg/composables"
	"github.com/costline/costline/pkg/repo"
)

var (
	ErrRiskNotFound = errors.New("risk not found")
)

const (
	riskFindQuery = `
        SELECT
            r.id,
            r.wbs_id,
            r.risk_category,
            r.risk_cost,
            r.probability_weight,
            r.severity_weight,
            r.risk_exposure,
            r.mitigation_plan,
            r.created_at,
            r.updated_at
        FROM risks r`

	riskInsertQuery = `
        INSERT INTO risks (
            wbs_id, risk_category, risk_cost, probability_weight,
            severity_weight, risk_exposure, mitigation_plan
        ) VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at, updated_at`

	riskUpdateQuery = `
        UPDATE risks
        SET risk_category = $2,
            risk_cost = $3,
            probability_weight = $4,
            severity_weight = $5,
            risk_exposure = $6,
            mitigation_plan = $7,
            updated_at = NOW()
        WHERE id = $1`

	riskDeleteQuery = `DELETE FROM risks WHERE id = $1`
)

type PgRiskRepository struct{}

func NewRiskRepository() risk.Repository {
	return &PgRiskRepository{}
}

func (g *PgRiskRepository) queryRisks(ctx context.Context, query string, args ...interface{}) ([]*risk.Risk, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query risks")
	}
	defer rows.Close()

	var out []*risk.Risk
	for rows.Next() {
		var m models.Risk
		if err := rows.Scan(
			&m.ID,
			&m.WBSID,
			&m.RiskCategory,
			&m.RiskCost,
			&m.ProbabilityWeight,
			&m.SeverityWeight,
			&m.RiskExposure,
			&m.MitigationPlan,
			&m.CreatedAt,
			&m.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan risk")
		}
		r, err := ToDomainRisk(&m)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (g *PgRiskRepository) GetByID(ctx context.Context, id int64) (*risk.Risk, error) {
	out, err := g.queryRisks(ctx, repo.Join(riskFindQuery, "WHERE r.id = $1"), id)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrRiskNotFound
	}
	return out[0], nil
}

func (g *PgRiskRepository) GetByNode(ctx context.Context, wbsID int64) ([]*risk.Risk, error) {
	return g.queryRisks(ctx, repo.Join(riskFindQuery, "WHERE r.wbs_id = $1 ORDER BY r.id"), wbsID)
}

func riskWriteArgs(r *risk.Risk) []interface{} {
	var prob, sev sql.NullString
	if r.ProbabilityWeight != nil {
		prob = sql.NullString{String: r.ProbabilityWeight.String(), Valid: true}
	}
	if r.SeverityWeight != nil {
		sev = sql.NullString{String: r.SeverityWeight.String(), Valid: true}
	}
	var mitigation sql.NullString
	if r.MitigationPlan != nil {
		mitigation = sql.NullString{String: *r.MitigationPlan, Valid: true}
	}
	return []interface{}{r.RiskCategory, r.RiskCost, prob, sev, r.RiskExposure, mitigation}
}

func (g *PgRiskRepository) Create(ctx context.Context, r *risk.Risk) (*risk.Risk, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	out := *r
	args := append([]interface{}{out.WBSID}, riskWriteArgs(&out)...)
	if err := tx.QueryRow(ctx, riskInsertQuery, args...).Scan(&out.ID, &out.CreatedAt, &out.UpdatedAt); err != nil {
		return nil, errors.Wrap(err, "failed to insert risk")
	}
	return &out, nil
}

func (g *PgRiskRepository) Update(ctx context.Context, r *risk.Risk) (*risk.Risk, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	args := append([]interface{}{r.ID}, riskWriteArgs(r)...)
	tag, err := tx.Exec(ctx, riskUpdateQuery, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to update risk")
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrRiskNotFound
	}
	return g.GetByID(ctx, r.ID)
}

func (g *PgRiskRepository) Delete(ctx context.Context, id int64) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	tag, err := tx.Exec(ctx, riskDeleteQuery, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete risk")
	}
	if tag.RowsAffected() == 0 {
		return ErrRiskNotFound
	}
	return nil
}
