package dtos

import (
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/costline/costline/modules/estimation/domain/assignment"
	"github.com/costline/costline/modules/estimation/domain/risk"
	"github.com/costline/costline/pkg/constants"
)

// APIError standardizes JSON error responses.
type APIError struct {
	Message string            `json:"message"`
	Code    string            `json:"code"`
	Meta    map[string]string `json:"meta,omitempty"`
}

func validationMessages(err error) map[string]string {
	out := map[string]string{}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		out["_"] = err.Error()
		return out
	}
	for _, fe := range errs {
		switch fe.Tag() {
		case "required":
			out[fe.Field()] = "is required"
		default:
			out[fe.Field()] = "failed " + fe.Tag() + " validation"
		}
	}
	return out
}

type CreateProjectDTO struct {
	Name string `json:"name" validate:"required"`
}

func (d *CreateProjectDTO) Ok() (map[string]string, bool) {
	if err := constants.Validate.Struct(d); err != nil {
		return validationMessages(err), false
	}
	return nil, true
}

type SaveAssignmentDTO struct {
	ResourceCode   string          `json:"resource_code" validate:"required"`
	BestEstimate   decimal.Decimal `json:"best_estimate"`
	LikelyEstimate decimal.Decimal `json:"likely_estimate"`
	WorstEstimate  decimal.Decimal `json:"worst_estimate"`
}

func (d *SaveAssignmentDTO) Ok() (map[string]string, bool) {
	if err := constants.Validate.Struct(d); err != nil {
		return validationMessages(err), false
	}
	return nil, true
}

func (d *SaveAssignmentDTO) ToEntity(wbsID int64) *assignment.Assignment {
	return &assignment.Assignment{
		WBSID:          wbsID,
		ResourceCode:   d.ResourceCode,
		BestEstimate:   d.BestEstimate,
		LikelyEstimate: d.LikelyEstimate,
		WorstEstimate:  d.WorstEstimate,
	}
}

type SaveRiskDTO struct {
	RiskCategory      string           `json:"risk_category" validate:"required"`
	RiskCost          decimal.Decimal  `json:"risk_cost"`
	ProbabilityWeight *decimal.Decimal `json:"probability_weight,omitempty"`
	SeverityWeight    *decimal.Decimal `json:"severity_weight,omitempty"`
}

func (d *SaveRiskDTO) Ok() (map[string]string, bool) {
	if err := constants.Validate.Struct(d); err != nil {
		return validationMessages(err), false
	}
	return nil, true
}

func (d *SaveRiskDTO) ToEntity(wbsID int64) *risk.Risk {
	return &risk.Risk{
		WBSID:             wbsID,
		RiskCategory:      d.RiskCategory,
		RiskCost:          d.RiskCost,
		ProbabilityWeight: d.ProbabilityWeight,
		SeverityWeight:    d.SeverityWeight,
	}
}

// TransitionDTO carries the optional reviewer comment on approval actions.
type TransitionDTO struct {
	Comment string `json:"comment"`
}
