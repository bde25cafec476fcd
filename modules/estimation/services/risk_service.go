package services

import (
	"context"
	"errors"
	"net/http"

	"github.com/costline/costline/modules/estimation/domain/risk"
	"github.com/costline/costline/modules/estimation/domain/wbs"
	"github.com/costline/costline/modules/estimation/infrastructure/persistence"
	"github.com/costline/costline/pkg/eventbus"
)

type RiskService struct {
	repo      risk.Repository
	wbsRepo   wbs.Repository
	rollups   *RollupService
	publisher eventbus.EventBus
}

func NewRiskService(
	repo risk.Repository,
	wbsRepo wbs.Repository,
	rollups *RollupService,
	publisher eventbus.EventBus,
) *RiskService {
	return &RiskService{repo: repo, wbsRepo: wbsRepo, rollups: rollups, publisher: publisher}
}

func validateRisk(r *risk.Risk) error {
	if r.RiskCost.IsNegative() {
		return newServiceError(http.StatusBadRequest, "INVALID_RISK", "risk cost must be non-negative", nil)
	}
	if r.ProbabilityWeight != nil && r.ProbabilityWeight.IsNegative() {
		return newServiceError(http.StatusBadRequest, "INVALID_RISK", "probability weight must be non-negative", nil)
	}
	if r.SeverityWeight != nil && r.SeverityWeight.IsNegative() {
		return newServiceError(http.StatusBadRequest, "INVALID_RISK", "severity weight must be non-negative", nil)
	}
	return nil
}

func (s *RiskService) Create(ctx context.Context, r *risk.Risk) (*risk.Risk, error) {
	if err := validateRisk(r); err != nil {
		return nil, err
	}
	created, err := inTx(ctx, func(txCtx context.Context) (*risk.Risk, error) {
		if _, err := lockNodeForEdit(txCtx, s.wbsRepo, r.WBSID); err != nil {
			return nil, err
		}
		r.Derive()
		out, err := s.repo.Create(txCtx, r)
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
	s.publisher.Publish(&risk.CreatedEvent{Result: created})
	return created, nil
}

func (s *RiskService) Update(ctx context.Context, r *risk.Risk) (*risk.Risk, error) {
	if err := validateRisk(r); err != nil {
		return nil, err
	}
	updated, err := inTx(ctx, func(txCtx context.Context) (*risk.Risk, error) {
		existing, err := s.repo.GetByID(txCtx, r.ID)
		if err != nil {
			if errors.Is(err, persistence.ErrRiskNotFound) {
				return nil, newServiceError(http.StatusNotFound, "RISK_NOT_FOUND", "risk not found", err)
			}
			return nil, err
		}
		if _, err := lockNodeForEdit(txCtx, s.wbsRepo, existing.WBSID); err != nil {
			return nil, err
		}
		r.WBSID = existing.WBSID
		r.Derive()
		out, err := s.repo.Update(txCtx, r)
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
	s.publisher.Publish(&risk.UpdatedEvent{Result: updated})
	return updated, nil
}

func (s *RiskService) Delete(ctx context.Context, id int64) (*risk.Risk, error) {
	deleted, err := inTx(ctx, func(txCtx context.Context) (*risk.Risk, error) {
		existing, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			if errors.Is(err, persistence.ErrRiskNotFound) {
				return nil, newServiceError(http.StatusNotFound, "RISK_NOT_FOUND", "risk not found", err)
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
	s.publisher.Publish(&risk.DeletedEvent{Result: deleted})
	return deleted, nil
}

func (s *RiskService) GetByNode(ctx context.Context, wbsID int64) ([]*risk.Risk, error) {
	out, err := inTx(ctx, func(txCtx context.Context) ([]*risk.Risk, error) {
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
