package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/costline/costline/modules/estimation/domain/risk"
	"github.com/costline/costline/modules/estimation/domain/wbs"
)

func weight(s string) *decimal.Decimal {
	v := decimal.RequireFromString(s)
	return &v
}

func TestRiskCreate_DerivesExposure(t *testing.T) {
	env := newLeafEnv(t)
	created, err := env.riskSvc.Create(testCtx(), &risk.Risk{
		WBSID:             env.leaf.ID,
		RiskCategory:      "technical",
		RiskCost:          decimal.NewFromInt(1000),
		ProbabilityWeight: weight("0.5"),
		SeverityWeight:    weight("0.8"),
	})
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(400).Equal(created.RiskExposure))
	require.Len(t, env.rollups.recomputed, 1)
}

func TestRiskCreate_UnsetWeightsContributeZero(t *testing.T) {
	env := newLeafEnv(t)
	created, err := env.riskSvc.Create(testCtx(), &risk.Risk{
		WBSID:        env.leaf.ID,
		RiskCategory: "schedule",
		RiskCost:     decimal.NewFromInt(5000),
	})
	require.NoError(t, err)
	require.True(t, created.RiskExposure.IsZero())
}

func TestRiskCreate_NegativeCostRejected(t *testing.T) {
	env := newLeafEnv(t)
	_, err := env.riskSvc.Create(testCtx(), &risk.Risk{
		WBSID:    env.leaf.ID,
		RiskCost: decimal.NewFromInt(-1),
	})
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	require.Equal(t, 400, svcErr.Status)
}

func TestRiskCreate_LockedNodeRejected(t *testing.T) {
	env := newLeafEnv(t)
	env.wbsRepo.nodes[env.leaf.ID].ApprovalStatus = wbs.StatusSubmitted
	_, err := env.riskSvc.Create(testCtx(), &risk.Risk{
		WBSID:    env.leaf.ID,
		RiskCost: decimal.NewFromInt(100),
	})
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	require.Equal(t, "ESTIMATION_LOCKED", svcErr.Code)
}

func TestRiskDelete_NotFound(t *testing.T) {
	env := newLeafEnv(t)
	_, err := env.riskSvc.Delete(testCtx(), 42)
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	require.Equal(t, 404, svcErr.Status)
}
