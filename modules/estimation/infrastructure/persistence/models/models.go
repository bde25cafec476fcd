package models

import (
	"database/sql"
	"time"
)

type Project struct {
	ID             int64
	Name           string
	Status         string
	SourceFilename string
	TaskCount      int
	ResourceCount  int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type WBSNode struct {
	ID                   int64
	ProjectID            int64
	ExternalUniqueID     int64
	ParentID             sql.NullInt64
	WBSCode              string
	Title                string
	OutlineLevel         int
	SuppliedOutlineLevel sql.NullInt32
	ScheduleStart        sql.NullTime
	ScheduleFinish       sql.NullTime
	BaselineStart        sql.NullTime
	BaselineFinish       sql.NullTime
	LateStart            sql.NullTime
	LateFinish           sql.NullTime
	PercentComplete      float64
	IsMilestone          bool
	IsSummary            bool
	IsCritical           bool
	ApprovalStatus       string
	EstimateRevision     int
	LastSubmittedAt      sql.NullTime
	ApproverIdentity     sql.NullString
	ApprovalTimestamp    sql.NullTime
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type Assignment struct {
	ID             int64
	WBSID          int64
	ResourceCode   string
	BestEstimate   string
	LikelyEstimate string
	WorstEstimate  string
	PertEstimate   string
	StdDeviation   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Risk struct {
	ID                int64
	WBSID             int64
	RiskCategory      string
	RiskCost          string
	ProbabilityWeight sql.NullString
	SeverityWeight    sql.NullString
	RiskExposure      string
	MitigationPlan    sql.NullString
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type ImportJob struct {
	ID              string
	ProjectID       int64
	Status          string
	ProgressPercent float64
	ErrorMessage    sql.NullString
	TaskCount       int
	ResourceCount   int
	AssignmentCount int
	StoredFilename  string
	CreatedAt       time.Time
	StartedAt       sql.NullTime
	CompletedAt     sql.NullTime
}

type WBSRollup struct {
	WBSID                int64
	TotalPert            float64
	CombinedStdDeviation float64
	ConfidenceLow        float64
	ConfidenceHigh       float64
	TotalRiskExposure    float64
	RiskAdjustedEstimate float64
	AssignmentCount      int
	RiskCount            int
	ComputedAt           time.Time
}

type ApprovalAudit struct {
	ID         int64
	WBSID      int64
	Action     string
	FromStatus string
	ToStatus   string
	Revision   int
	ActorID    sql.NullString
	ActorName  string
	Comment    string
	CreatedAt  time.Time
}
