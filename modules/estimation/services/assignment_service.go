package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/costline/costline/modules/estimation/domain/assignment"
	"github.com/costline/costline/modules/estimation/domain/wbs"
	"github.com/costline/costline/modules/estimation/infrastructure/persistence"
	"github.com/costline/costline/pkg/eventbus"
)

type AssignmentService struct {
	repo      assignment.Repository
	wbsRepo   wbs.Repository
	rollups   *RollupService
	publisher eventbus.EventBus
}

func NewAssignmentService(
	repo assignment.Repository,
	wbsRepo wbs.Repository,
	rollups *RollupService,
	publisher eventbus.EventBus,
) *AssignmentService {
	return &AssignmentService{repo: repo, wbsRepo: wbsRepo, rollups: rollups, publisher: publisher}
}

// lockNodeForEdit locks the owning node's row and rejects the edit when
// the node is submitted or approved. Holding the row lock until commit
// is what keeps a concurrent submit from interleaving with this edit.
func lockNodeForEdit(txCtx context.Context, wbsRepo wbs.Repository, wbsID int64) (*wbs.Node, error) {
	node, err := wbsRepo.GetByIDForUpdate(txCtx, wbsID)
	if err != nil {
		if errors.Is(err, persistence.ErrWBSNodeNotFound) {
			return nil, newServiceError(http.StatusNotFound, "WBS_NOT_FOUND", "wbs node not found", err)
		}
		return nil, err
	}
	if wbs.Locked(node.ApprovalStatus) {
		recordWriteConflict("estimation_lock")
		return nil, newServiceError(
			http.StatusConflict,
			"ESTIMATION_LOCKED",
			fmt.Sprintf("node is %s and cannot be edited", node.ApprovalStatus),
			nil,
		)
	}
	return node, nil
}

func validateEstimates(a *assignment.Assignment) error {
	if a.BestEstimate.IsNegative() || a.LikelyEstimate.IsNegative() || a.WorstEstimate.IsNegative() {
		return newServiceError(http.StatusBadRequest, "INVALID_ESTIMATE", "estimates must be non-negative", nil)
	}
	if a.BestEstimate.GreaterThan(a.LikelyEstimate) || a.LikelyEstimate.GreaterThan(a.WorstEstimate) {
		return newServiceError(http.StatusBadRequest, "INVALID_ESTIMATE", "estimates must satisfy best <= likely <= worst", nil)
	}
	return nil
}

func (s *AssignmentService) Create(ctx context.Context, a *assignment.Assignment) (*assignment.Assignment, error) {
	if err := validateEstimates(a); err != nil {
		return nil, err
	}
	created, err := inTx(ctx, func(txCtx context.Context) (*assignment.Assignment, error) {
		if _, err := lockNodeForEdit(txCtx, s.wbsRepo, a.WBSID); err != nil {
			return nil, err
		}
		a.Derive()
		out, err := s.repo.Create(txCtx, a)
		if err != nil {
			return nil, err
		}
		if _, err := s.rollups.RecomputePath(txCtx, out.WBSID); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return nil, mapPgErrorToServiceError(err)
	}
	s.publisher.Publish(&assignment.CreatedEvent{Result: created})
	return created, nil
}

func (s *AssignmentService) Update(ctx context.Context, a *assignment.Assignment) (*assignment.Assignment, error) {
	if err := validateEstimates(a); err != nil {
		return nil, err
	}
	updated, err := inTx(ctx, func(txCtx context.Context) (*assignment.Assignment, error) {
		existing, err := s.repo.GetByID(txCtx, a.ID)
		if err != nil {
			if errors.Is(err, persistence.ErrAssignmentNotFound) {
				return nil, newServiceError(http.StatusNotFound, "ASSIGNMENT_NOT_FOUND", "assignment not found", err)
			}
			return nil, err
		}
		if _, err := lockNodeForEdit(txCtx, s.wbsRepo, existing.WBSID); err != nil {
			return nil, err
		}
		a.WBSID = existing.WBSID
		a.Derive()
		out, err := s.repo.Update(txCtx, a)
		if err != nil {
			return nil, err
		}
		if _, err := s.rollups.RecomputePath(txCtx, out.WBSID); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return nil, mapPgErrorToServiceError(err)
	}
	s.publisher.Publish(&assignment.UpdatedEvent{Result: updated})
	return updated, nil
}

func (s *AssignmentService) Delete(ctx context.Context, id int64) (*assignment.Assignment, error) {
	deleted, err := inTx(ctx, func(txCtx context.Context) (*assignment.Assignment, error) {
		existing, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			if errors.Is(err, persistence.ErrAssignmentNotFound) {
				return nil, newServiceError(http.StatusNotFound, "ASSIGNMENT_NOT_FOUND", "assignment not found", err)
			}
			return nil, err
		}
		if _, err := lockNodeForEdit(txCtx, s.wbsRepo, existing.WBSID); err != nil {
			return nil, err
		}
		if err := s.repo.Delete(txCtx, id); err != nil {
			return nil, err
		}
		if _, err := s.rollups.RecomputePath(txCtx, existing.WBSID); err != nil {
			return nil, err
		}
		return existing, nil
	})
	if err != nil {
		return nil, mapPgErrorToServiceError(err)
	}
	s.publisher.Publish(&assignment.DeletedEvent{Result: deleted})
	return deleted, nil
}

func (s *AssignmentService) GetByNode(ctx context.Context, wbsID int64) ([]*assignment.Assignment, error) {
	out, err := inTx(ctx, func(txCtx context.Context) ([]*assignment.Assignment, error) {
		if _, err := s.wbsRepo.GetByID(txCtx, wbsID); err != nil {
			if errors.Is(err, persistence.ErrWBSNodeNotFound) {
				return nil, newServiceError(http.StatusNotFound, "WBS_NOT_FOUND", "wbs node not found", err)
			}
			return nil, err
		}
		return s.repo.GetByNode(txCtx, wbsID)
	})
	if err != nil {
		return nil, mapPgErrorToServiceError(err)
	}
	return out, nil
}
