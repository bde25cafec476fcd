package importjob

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusPending         = "pending"
	StatusUploading       = "uploading"
	StatusParsing         = "parsing"
	StatusCreatingRecords = "creating_records"
	StatusCompleted       = "completed"
	StatusFailed          = "failed"
	StatusCancelled       = "cancelled"
)

// Terminal statuses never change again; the partial unique index on
// import_jobs releases the project's active slot when a job enters one.
func Terminal(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Progress bands per processing stage. Within a band the runner reports a
// fraction of the stage done; the stored percent never decreases.
var progressBands = map[string][2]float64{
	StatusPending:         {0, 0},
	StatusUploading:       {0, 10},
	StatusParsing:         {10, 50},
	StatusCreatingRecords: {50, 90},
	StatusCompleted:       {100, 100},
}

// ProgressFor maps a stage and its completion fraction (0..1) onto the
// job-level percentage.
func ProgressFor(status string, fraction float64) float64 {
	band, ok := progressBands[status]
	if !ok {
		return 0
	}
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	return band[0] + (band[1]-band[0])*fraction
}

type Job struct {
	ID              uuid.UUID  `json:"id"`
	ProjectID       int64      `json:"project_id"`
	Status          string     `json:"status"`
	ProgressPercent float64    `json:"progress_percent"`
	ErrorMessage    *string    `json:"error_message,omitempty"`
	TaskCount       int        `json:"task_count"`
	ResourceCount   int        `json:"resource_count"`
	AssignmentCount int        `json:"assignment_count"`
	StoredFilename  string     `json:"stored_filename"`
	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

type CreatedEvent struct{ Result *Job }

type CompletedEvent struct{ Result *Job }

type FailedEvent struct{ Result *Job }

type CancelledEvent struct{ Result *Job }
