package services

import (
	"context"
	"errors"
	"net/http"

	"github.com/costline/costline/modules/estimation/domain/wbs"
	"github.com/costline/costline/modules/estimation/infrastructure/persistence"
	"github.com/costline/costline/pkg/eventbus"
)

type ProjectService struct {
	repo      wbs.ProjectRepository
	publisher eventbus.EventBus
}

func NewProjectService(repo wbs.ProjectRepository, publisher eventbus.EventBus) *ProjectService {
	return &ProjectService{repo: repo, publisher: publisher}
}

func (s *ProjectService) Create(ctx context.Context, name string) (*wbs.Project, error) {
	if name == "" {
		return nil, newServiceError(http.StatusBadRequest, "INVALID_PROJECT", "project name is required", nil)
	}
	created, err := inTx(ctx, func(txCtx context.Context) (*wbs.Project, error) {
		return s.repo.Create(txCtx, &wbs.Project{Name: name, Status: "active"})
	})
	if err != nil {
		return nil, mapPgErrorToServiceError(err)
	}
	return created, nil
}

func (s *ProjectService) GetByID(ctx context.Context, id int64) (*wbs.Project, error) {
	project, err := inTx(ctx, func(txCtx context.Context) (*wbs.Project, error) {
		return s.repo.GetByID(txCtx, id)
	})
	if err != nil {
		if errors.Is(err, persistence.ErrProjectNotFound) {
			return nil, newServiceError(http.StatusNotFound, "PROJECT_NOT_FOUND", "project not found", err)
		}
		return nil, mapPgErrorToServiceError(err)
	}
	return project, nil
}
