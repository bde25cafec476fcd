package dtos

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestSaveAssignmentDTO_RequiresResourceCode(t *testing.T) {
	dto := &SaveAssignmentDTO{
		BestEstimate:   decimal.NewFromInt(1),
		LikelyEstimate: decimal.NewFromInt(2),
		WorstEstimate:  decimal.NewFromInt(3),
	}
	msgs, ok := dto.Ok()
	require.False(t, ok)
	require.Contains(t, msgs, "ResourceCode")
}

func TestSaveAssignmentDTO_ToEntityCarriesNode(t *testing.T) {
	dto := &SaveAssignmentDTO{
		ResourceCode:   "DEV",
		BestEstimate:   decimal.NewFromInt(10),
		LikelyEstimate: decimal.NewFromInt(20),
		WorstEstimate:  decimal.NewFromInt(30),
	}
	msgs, ok := dto.Ok()
	require.True(t, ok, "unexpected validation errors: %v", msgs)

	entity := dto.ToEntity(42)
	require.Equal(t, int64(42), entity.WBSID)
	require.Equal(t, "DEV", entity.ResourceCode)
	require.True(t, entity.PertEstimate.IsZero(), "derived fields are the service's job")
}

func TestSaveRiskDTO_WeightsStayOptional(t *testing.T) {
	dto := &SaveRiskDTO{RiskCategory: "technical", RiskCost: decimal.NewFromInt(1000)}
	_, ok := dto.Ok()
	require.True(t, ok)

	entity := dto.ToEntity(7)
	require.Nil(t, entity.ProbabilityWeight)
	require.Nil(t, entity.SeverityWeight)
}

func TestCreateProjectDTO_RequiresName(t *testing.T) {
	msgs, ok := (&CreateProjectDTO{}).Ok()
	require.False(t, ok)
	require.Contains(t, msgs, "Name")
}
