package importjob

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Job, error)
	GetByProject(ctx context.Context, projectID int64) ([]*Job, error)
	// Create inserts the job; a unique violation on the active-job index
	// surfaces as a pg error for the service to translate into a conflict.
	Create(ctx context.Context, j *Job) (*Job, error)
	// Advance moves a non-terminal job to the given status and progress.
	// Progress is clamped server-side so it never decreases. Returns the
	// updated job, or ErrJobNotFound if the job is missing or terminal.
	Advance(ctx context.Context, id uuid.UUID, status string, progress float64) (*Job, error)
	// Finish moves a non-terminal job into a terminal status with its
	// summary fields. Same not-found semantics as Advance.
	Finish(ctx context.Context, j *Job) (*Job, error)
}
