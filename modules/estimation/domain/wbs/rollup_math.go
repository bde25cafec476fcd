package wbs

import (
	"math"
	"time"
)

// EstimateFigure is one assignment's derived pair as a rollup sums it.
type EstimateFigure struct {
	Pert float64
	Std  float64
}

// ComputeRollup derives one node's aggregate row from the source figures
// over its whole subtree. Standard deviations combine as the square root
// of the summed variances, which assumes independent assignments. The
// confidence interval is total_pert plus or minus zScore combined
// deviations; the risk-adjusted estimate adds the summed exposures.
func ComputeRollup(wbsID int64, assignments []EstimateFigure, riskExposures []float64, zScore float64) *Rollup {
	var totalPert, varianceSum float64
	for _, a := range assignments {
		totalPert += a.Pert
		varianceSum += a.Std * a.Std
	}
	var totalExposure float64
	for _, e := range riskExposures {
		totalExposure += e
	}
	combined := math.Sqrt(varianceSum)
	return &Rollup{
		WBSID:                wbsID,
		TotalPert:            totalPert,
		CombinedStdDeviation: combined,
		ConfidenceLow:        totalPert - zScore*combined,
		ConfidenceHigh:       totalPert + zScore*combined,
		TotalRiskExposure:    totalExposure,
		RiskAdjustedEstimate: totalPert + totalExposure,
		AssignmentCount:      len(assignments),
		RiskCount:            len(riskExposures),
		ComputedAt:           time.Now(),
	}
}
