package risk_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/costline/costline/modules/estimation/domain/risk"
)

func w(s string) *decimal.Decimal {
	v := decimal.RequireFromString(s)
	return &v
}

func TestDerive(t *testing.T) {
	cases := []struct {
		name string
		cost string
		prob *decimal.Decimal
		sev  *decimal.Decimal
		want string
	}{
		{"both set", "1000", w("0.5"), w("0.8"), "400"},
		{"prob unset contributes zero", "1000", nil, w("0.8"), "0"},
		{"sev unset contributes zero", "1000", w("0.5"), nil, "0"},
		{"both unset", "1000", nil, nil, "0"},
		{"zero cost", "0", w("1"), w("1"), "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := &risk.Risk{
				RiskCost:          decimal.RequireFromString(tc.cost),
				ProbabilityWeight: tc.prob,
				SeverityWeight:    tc.sev,
			}
			r.Derive()
			require.True(t, decimal.RequireFromString(tc.want).Equal(r.RiskExposure), "got %s", r.RiskExposure)
		})
	}
}
