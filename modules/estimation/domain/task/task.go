package task

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Record is one flat task row as surfaced by the external file parser.
// Records arrive in file order but carry no structural guarantees beyond
// a unique external id; the hierarchy package validates the rest.
type Record struct {
	ExternalUniqueID int64      `json:"external_unique_id"`
	ParentExternalID *int64     `json:"parent_external_id,omitempty"`
	OutlineLevel     int        `json:"outline_level"`
	WBSCode          string     `json:"wbs_code,omitempty"`
	Title            string     `json:"title"`
	ScheduleStart    *time.Time `json:"schedule_start,omitempty"`
	ScheduleFinish   *time.Time `json:"schedule_finish,omitempty"`
	BaselineStart    *time.Time `json:"baseline_start,omitempty"`
	BaselineFinish   *time.Time `json:"baseline_finish,omitempty"`
	LateStart        *time.Time `json:"late_start,omitempty"`
	LateFinish       *time.Time `json:"late_finish,omitempty"`
	PercentComplete  float64    `json:"percent_complete"`
	IsMilestone      bool       `json:"is_milestone"`
	IsSummary        bool       `json:"is_summary"`
	IsCritical       bool       `json:"is_critical"`

	Assignments []PreliminaryAssignment `json:"assignments,omitempty"`
}

// PreliminaryAssignment is a resource reference the parser found attached
// to a task. Estimates may be zero when the source file carries only work
// figures.
type PreliminaryAssignment struct {
	ResourceCode   string          `json:"resource_code"`
	BestEstimate   decimal.Decimal `json:"best_estimate"`
	LikelyEstimate decimal.Decimal `json:"likely_estimate"`
	WorstEstimate  decimal.Decimal `json:"worst_estimate"`
}

// ParseResult is everything the parser extracted from one file.
type ParseResult struct {
	Tasks         []Record
	ResourceCount int
}

// Parser is the external file-parsing collaborator. Implementations own
// the format knowledge; callers own validation of the returned records.
type Parser interface {
	Parse(ctx context.Context, data []byte) (*ParseResult, error)
}
