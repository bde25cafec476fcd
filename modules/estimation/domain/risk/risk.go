package risk

import (
	"time"

	"github.com/shopspring/decimal"
)

type Risk struct {
	ID                int64            `json:"id"`
	WBSID             int64            `json:"wbs_id"`
	RiskCategory      string           `json:"risk_category"`
	RiskCost          decimal.Decimal  `json:"risk_cost"`
	ProbabilityWeight *decimal.Decimal `json:"probability_weight,omitempty"`
	SeverityWeight    *decimal.Decimal `json:"severity_weight,omitempty"`
	RiskExposure      decimal.Decimal  `json:"risk_exposure"`
	MitigationPlan    *string          `json:"mitigation_plan,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// Derive recomputes the exposure from cost and weights. An unset weight
// contributes zero so an unweighted risk never inflates the rollup.
func (r *Risk) Derive() {
	prob := decimal.Zero
	if r.ProbabilityWeight != nil {
		prob = *r.ProbabilityWeight
	}
	sev := decimal.Zero
	if r.SeverityWeight != nil {
		sev = *r.SeverityWeight
	}
	r.RiskExposure = r.RiskCost.Mul(prob).Mul(sev).Round(4)
}
