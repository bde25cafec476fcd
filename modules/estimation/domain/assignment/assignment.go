package assignment

import (
	"time"

	"github.com/shopspring/decimal"
)

var (
	four = decimal.NewFromInt(4)
	six  = decimal.NewFromInt(6)
)

type Assignment struct {
	ID             int64           `json:"id"`
	WBSID          int64           `json:"wbs_id"`
	ResourceCode   string          `json:"resource_code"`
	BestEstimate   decimal.Decimal `json:"best_estimate"`
	LikelyEstimate decimal.Decimal `json:"likely_estimate"`
	WorstEstimate  decimal.Decimal `json:"worst_estimate"`
	PertEstimate   decimal.Decimal `json:"pert_estimate"`
	StdDeviation   decimal.Decimal `json:"std_deviation"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Derive recomputes the PERT estimate and standard deviation from the
// three-point fields. Called on every create and update; the derived
// columns are never written independently.
func (a *Assignment) Derive() {
	a.PertEstimate = a.BestEstimate.
		Add(a.LikelyEstimate.Mul(four)).
		Add(a.WorstEstimate).
		Div(six).
		Round(4)
	a.StdDeviation = a.WorstEstimate.Sub(a.BestEstimate).Div(six).Round(4)
}
