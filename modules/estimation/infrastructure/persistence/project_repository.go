package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/costline/costline/modules/estimation/domain/wbs"
	"github.com/costline/costline/modules/estimation/infrastructure/persistence/models"
	"github.com/costline/costline/pkg/composables"
)

var (
	ErrProjectNotFound = errors.New("project not found")
)

const (
	projectFindQuery = `
        SELECT
            p.id,
            p.name,
            p.status,
            p.source_filename,
            p.task_count,
            p.resource_count,
            p.created_at,
            p.updated_at
        FROM projects p`

	projectInsertQuery = `
        INSERT INTO projects (name, status, source_filename)
        VALUES ($1, $2, $3)
        RETURNING id, created_at, updated_at`

	projectUpdateSummaryQuery = `
        UPDATE projects
        SET source_filename = $2, task_count = $3, resource_count = $4, updated_at = NOW()
        WHERE id = $1`
)

type PgProjectRepository struct{}

func NewProjectRepository() wbs.ProjectRepository {
	return &PgProjectRepository{}
}

func (g *PgProjectRepository) GetByID(ctx context.Context, id int64) (*wbs.Project, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	var m models.Project
	err = tx.QueryRow(ctx, projectFindQuery+" WHERE p.id = $1", id).Scan(
		&m.ID,
		&m.Name,
		&m.Status,
		&m.SourceFilename,
		&m.TaskCount,
		&m.ResourceCount,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, errors.Wrap(err, "failed to query project")
	}
	return ToDomainProject(&m), nil
}

func (g *PgProjectRepository) Create(ctx context.Context, p *wbs.Project) (*wbs.Project, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	out := *p
	if out.Status == "" {
		out.Status = "active"
	}
	err = tx.QueryRow(ctx, projectInsertQuery, out.Name, out.Status, out.SourceFilename).Scan(
		&out.ID, &out.CreatedAt, &out.UpdatedAt,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to insert project")
	}
	return &out, nil
}

func (g *PgProjectRepository) UpdateImportSummary(ctx context.Context, p *wbs.Project) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	if _, err := tx.Exec(ctx, projectUpdateSummaryQuery, p.ID, p.SourceFilename, p.TaskCount, p.ResourceCount); err != nil {
		return errors.Wrap(err, "failed to update project summary")
	}
	return nil
}
