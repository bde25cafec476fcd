package persistence

import (
	"context"
	"database/sql"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/costline/costline/modules/estimation/domain/importjob"
	"github.com/costline/costline/modules/estimation/infrastructure/persistence/models"
	"github.com/costline/costline/pkg/composables"
	"github.com/costline/costline/pkg/repo"
)

var (
	ErrImportJobNotFound = errors.New("import job not found")
)

const (
	importJobFindQuery = `
        SELECT
            j.id,
            j.project_id,
            j.status,
            j.progress_percent,
            j.error_message,
            j.task_count,
            j.resource_count,
            j.assignment_count,
            j.stored_filename,
            j.created_at,
            j.started_at,
            j.completed_at
        FROM import_jobs j`

	importJobInsertQuery = `
        INSERT INTO import_jobs (id, project_id, status, stored_filename)
        VALUES ($1, $2, $3, $4)
        RETURNING created_at`

	// Terminal rows never match, so a finished job can never move or lose
	// progress. GREATEST keeps the reported percent monotonic.
	importJobAdvanceQuery = `
        UPDATE import_jobs
        SET status = $2,
            progress_percent = GREATEST(progress_percent, $3),
            started_at = COALESCE(started_at, NOW())
        WHERE id = $1
          AND status NOT IN ('completed', 'failed', 'cancelled')
        RETURNING id, project_id, status, progress_percent, error_message,
                  task_count, resource_count, assignment_count,
                  stored_filename, created_at, started_at, completed_at`

	importJobFinishQuery = `
        UPDATE import_jobs
        SET status = $2,
            progress_percent = GREATEST(progress_percent, $3),
            error_message = $4,
            task_count = $5,
            resource_count = $6,
            assignment_count = $7,
            completed_at = NOW()
        WHERE id = $1
          AND status NOT IN ('completed', 'failed', 'cancelled')
        RETURNING id, project_id, status, progress_percent, error_message,
                  task_count, resource_count, assignment_count,
                  stored_filename, created_at, started_at, completed_at`
)

type PgImportJobRepository struct{}

func NewImportJobRepository() importjob.Repository {
	return &PgImportJobRepository{}
}

func scanImportJob(row interface {
	Scan(dest ...any) error
}) (*importjob.Job, error) {
	var m models.ImportJob
	if err := row.Scan(
		&m.ID,
		&m.ProjectID,
		&m.Status,
		&m.ProgressPercent,
		&m.ErrorMessage,
		&m.TaskCount,
		&m.ResourceCount,
		&m.AssignmentCount,
		&m.StoredFilename,
		&m.CreatedAt,
		&m.StartedAt,
		&m.CompletedAt,
	); err != nil {
		return nil, err
	}
	return ToDomainImportJob(&m)
}

func (g *PgImportJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*importjob.Job, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	j, err := scanImportJob(tx.QueryRow(ctx, repo.Join(importJobFindQuery, "WHERE j.id = $1"), id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrImportJobNotFound
		}
		return nil, errors.Wrap(err, "failed to query import job")
	}
	return j, nil
}

func (g *PgImportJobRepository) GetByProject(ctx context.Context, projectID int64) ([]*importjob.Job, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	rows, err := tx.Query(ctx, repo.Join(importJobFindQuery, "WHERE j.project_id = $1 ORDER BY j.created_at DESC"), projectID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query import jobs")
	}
	defer rows.Close()

	var out []*importjob.Job
	for rows.Next() {
		j, err := scanImportJob(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan import job")
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (g *PgImportJobRepository) Create(ctx context.Context, j *importjob.Job) (*importjob.Job, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	out := *j
	if out.Status == "" {
		out.Status = importjob.StatusPending
	}
	if err := tx.QueryRow(ctx, importJobInsertQuery, out.ID, out.ProjectID, out.Status, out.StoredFilename).Scan(&out.CreatedAt); err != nil {
		return nil, errors.Wrap(err, "failed to insert import job")
	}
	return &out, nil
}

func (g *PgImportJobRepository) Advance(ctx context.Context, id uuid.UUID, status string, progress float64) (*importjob.Job, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	j, err := scanImportJob(tx.QueryRow(ctx, importJobAdvanceQuery, id, status, progress))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrImportJobNotFound
		}
		return nil, errors.Wrap(err, "failed to advance import job")
	}
	return j, nil
}

func (g *PgImportJobRepository) Finish(ctx context.Context, j *importjob.Job) (*importjob.Job, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	var msg sql.NullString
	if j.ErrorMessage != nil {
		msg = sql.NullString{String: *j.ErrorMessage, Valid: true}
	}
	out, err := scanImportJob(tx.QueryRow(ctx, importJobFinishQuery,
		j.ID,
		j.Status,
		j.ProgressPercent,
		msg,
		j.TaskCount,
		j.ResourceCount,
		j.AssignmentCount,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrImportJobNotFound
		}
		return nil, errors.Wrap(err, "failed to finish import job")
	}
	return out, nil
}
