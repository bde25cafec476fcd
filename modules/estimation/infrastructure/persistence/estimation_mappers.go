package persistence

import (
	"database/sql"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/costline/costline/modules/estimation/domain/assignment"
	"github.com/costline/costline/modules/estimation/domain/importjob"
	"github.com/costline/costline/modules/estimation/domain/risk"
	"github.com/costline/costline/modules/estimation/domain/wbs"
	"github.com/costline/costline/modules/estimation/infrastructure/persistence/models"
)

func nullTimeToPtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func ptrToNullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *v, Valid: true}
}

func ToDomainProject(m *models.Project) *wbs.Project {
	return &wbs.Project{
		ID:             m.ID,
		Name:           m.Name,
		Status:         m.Status,
		SourceFilename: m.SourceFilename,
		TaskCount:      m.TaskCount,
		ResourceCount:  m.ResourceCount,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func ToDomainWBSNode(m *models.WBSNode) *wbs.Node {
	n := &wbs.Node{
		ID:                m.ID,
		ProjectID:         m.ProjectID,
		ExternalUniqueID:  m.ExternalUniqueID,
		WBSCode:           m.WBSCode,
		Title:             m.Title,
		OutlineLevel:      m.OutlineLevel,
		ScheduleStart:     nullTimeToPtr(m.ScheduleStart),
		ScheduleFinish:    nullTimeToPtr(m.ScheduleFinish),
		BaselineStart:     nullTimeToPtr(m.BaselineStart),
		BaselineFinish:    nullTimeToPtr(m.BaselineFinish),
		LateStart:         nullTimeToPtr(m.LateStart),
		LateFinish:        nullTimeToPtr(m.LateFinish),
		PercentComplete:   m.PercentComplete,
		IsMilestone:       m.IsMilestone,
		IsSummary:         m.IsSummary,
		IsCritical:        m.IsCritical,
		ApprovalStatus:    m.ApprovalStatus,
		EstimateRevision:  m.EstimateRevision,
		LastSubmittedAt:   nullTimeToPtr(m.LastSubmittedAt),
		ApprovalTimestamp: nullTimeToPtr(m.ApprovalTimestamp),
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
	if m.ParentID.Valid {
		v := m.ParentID.Int64
		n.ParentID = &v
	}
	if m.SuppliedOutlineLevel.Valid {
		v := int(m.SuppliedOutlineLevel.Int32)
		n.SuppliedOutlineLevel = &v
	}
	if m.ApproverIdentity.Valid {
		v := m.ApproverIdentity.String
		n.ApproverIdentity = &v
	}
	return n
}

func ToDomainAssignment(m *models.Assignment) (*assignment.Assignment, error) {
	best, err := decimal.NewFromString(m.BestEstimate)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse best_estimate")
	}
	likely, err := decimal.NewFromString(m.LikelyEstimate)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse likely_estimate")
	}
	worst, err := decimal.NewFromString(m.WorstEstimate)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse worst_estimate")
	}
	pert, err := decimal.NewFromString(m.PertEstimate)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse pert_estimate")
	}
	std, err := decimal.NewFromString(m.StdDeviation)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse std_deviation")
	}
	return &assignment.Assignment{
		ID:             m.ID,
		WBSID:          m.WBSID,
		ResourceCode:   m.ResourceCode,
		BestEstimate:   best,
		LikelyEstimate: likely,
		WorstEstimate:  worst,
		PertEstimate:   pert,
		StdDeviation:   std,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}, nil
}

func ToDomainRisk(m *models.Risk) (*risk.Risk, error) {
	cost, err := decimal.NewFromString(m.RiskCost)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse risk_cost")
	}
	exposure, err := decimal.NewFromString(m.RiskExposure)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse risk_exposure")
	}
	r := &risk.Risk{
		ID:           m.ID,
		WBSID:        m.WBSID,
		RiskCategory: m.RiskCategory,
		RiskCost:     cost,
		RiskExposure: exposure,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	if m.ProbabilityWeight.Valid {
		v, err := decimal.NewFromString(m.ProbabilityWeight.String)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse probability_weight")
		}
		r.ProbabilityWeight = &v
	}
	if m.SeverityWeight.Valid {
		v, err := decimal.NewFromString(m.SeverityWeight.String)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse severity_weight")
		}
		r.SeverityWeight = &v
	}
	if m.MitigationPlan.Valid {
		v := m.MitigationPlan.String
		r.MitigationPlan = &v
	}
	return r, nil
}

func ToDomainImportJob(m *models.ImportJob) (*importjob.Job, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse import job id")
	}
	j := &importjob.Job{
		ID:              id,
		ProjectID:       m.ProjectID,
		Status:          m.Status,
		ProgressPercent: m.ProgressPercent,
		TaskCount:       m.TaskCount,
		ResourceCount:   m.ResourceCount,
		AssignmentCount: m.AssignmentCount,
		StoredFilename:  m.StoredFilename,
		CreatedAt:       m.CreatedAt,
		StartedAt:       nullTimeToPtr(m.StartedAt),
		CompletedAt:     nullTimeToPtr(m.CompletedAt),
	}
	if m.ErrorMessage.Valid {
		v := m.ErrorMessage.String
		j.ErrorMessage = &v
	}
	return j, nil
}

func ToDomainRollup(m *models.WBSRollup) *wbs.Rollup {
	return &wbs.Rollup{
		WBSID:                m.WBSID,
		TotalPert:            m.TotalPert,
		CombinedStdDeviation: m.CombinedStdDeviation,
		ConfidenceLow:        m.ConfidenceLow,
		ConfidenceHigh:       m.ConfidenceHigh,
		TotalRiskExposure:    m.TotalRiskExposure,
		RiskAdjustedEstimate: m.RiskAdjustedEstimate,
		AssignmentCount:      m.AssignmentCount,
		RiskCount:            m.RiskCount,
		ComputedAt:           m.ComputedAt,
	}
}

func ToDomainAuditEntry(m *models.ApprovalAudit) *wbs.AuditEntry {
	e := &wbs.AuditEntry{
		ID:         m.ID,
		WBSID:      m.WBSID,
		Action:     m.Action,
		FromStatus: m.FromStatus,
		ToStatus:   m.ToStatus,
		Revision:   m.Revision,
		ActorName:  m.ActorName,
		Comment:    m.Comment,
		CreatedAt:  m.CreatedAt,
	}
	if m.ActorID.Valid {
		v := m.ActorID.String
		e.ActorID = &v
	}
	return e
}
