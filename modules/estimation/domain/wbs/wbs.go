package wbs

import (
	"time"
)

const (
	StatusDraft     = "draft"
	StatusSubmitted = "submitted"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
)

const (
	ActionSubmit  = "submit"
	ActionApprove = "approve"
	ActionReject  = "reject"
	ActionReset   = "reset"
)

// transitions maps a source status to the actions allowed from it and the
// status each action produces. Approved is terminal; a replacing re-import
// is the only way out.
var transitions = map[string]map[string]string{
	StatusDraft:     {ActionSubmit: StatusSubmitted},
	StatusSubmitted: {ActionApprove: StatusApproved, ActionReject: StatusRejected},
	StatusRejected:  {ActionSubmit: StatusSubmitted, ActionReset: StatusDraft},
}

// NextStatus resolves an approval action against the current status.
// The second return is false when the action is not defined from that status.
func NextStatus(current, action string) (string, bool) {
	next, ok := transitions[current][action]
	return next, ok
}

// RequiresApprover reports whether the action needs the approver capability
// rather than ordinary edit capability.
func RequiresApprover(action string) bool {
	return action == ActionApprove || action == ActionReject
}

// Locked reports whether leaf mutations under the node are rejected.
func Locked(status string) bool {
	return status == StatusSubmitted || status == StatusApproved
}

type Node struct {
	ID                   int64      `json:"id"`
	ProjectID            int64      `json:"project_id"`
	ExternalUniqueID     int64      `json:"external_unique_id"`
	ParentID             *int64     `json:"parent_id,omitempty"`
	WBSCode              string     `json:"wbs_code"`
	Title                string     `json:"title"`
	OutlineLevel         int        `json:"outline_level"`
	SuppliedOutlineLevel *int       `json:"supplied_outline_level,omitempty"`
	ScheduleStart        *time.Time `json:"schedule_start,omitempty"`
	ScheduleFinish       *time.Time `json:"schedule_finish,omitempty"`
	BaselineStart        *time.Time `json:"baseline_start,omitempty"`
	BaselineFinish       *time.Time `json:"baseline_finish,omitempty"`
	LateStart            *time.Time `json:"late_start,omitempty"`
	LateFinish           *time.Time `json:"late_finish,omitempty"`
	PercentComplete      float64    `json:"percent_complete"`
	IsMilestone          bool       `json:"is_milestone"`
	IsSummary            bool       `json:"is_summary"`
	IsCritical           bool       `json:"is_critical"`
	ApprovalStatus       string     `json:"approval_status"`
	EstimateRevision     int        `json:"estimate_revision"`
	LastSubmittedAt      *time.Time `json:"last_submitted_at,omitempty"`
	ApproverIdentity     *string    `json:"approver_identity,omitempty"`
	ApprovalTimestamp    *time.Time `json:"approval_timestamp,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

type Project struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Status         string    `json:"status"`
	SourceFilename string    `json:"source_filename"`
	TaskCount      int       `json:"task_count"`
	ResourceCount  int       `json:"resource_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Rollup is the eagerly maintained aggregate row for one node's subtree.
type Rollup struct {
	WBSID                int64     `json:"wbs_id"`
	TotalPert            float64   `json:"total_pert"`
	CombinedStdDeviation float64   `json:"combined_std_deviation"`
	ConfidenceLow        float64   `json:"confidence_low"`
	ConfidenceHigh       float64   `json:"confidence_high"`
	TotalRiskExposure    float64   `json:"total_risk_exposure"`
	RiskAdjustedEstimate float64   `json:"risk_adjusted_estimate"`
	AssignmentCount      int       `json:"assignment_count"`
	RiskCount            int       `json:"risk_count"`
	ComputedAt           time.Time `json:"computed_at"`
}

// AuditEntry records one approval transition for history.
type AuditEntry struct {
	ID         int64     `json:"id"`
	WBSID      int64     `json:"wbs_id"`
	Action     string    `json:"action"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	Revision   int       `json:"revision"`
	ActorID    *string   `json:"actor_id,omitempty"`
	ActorName  string    `json:"actor_name"`
	Comment    string    `json:"comment"`
	CreatedAt  time.Time `json:"created_at"`
}
