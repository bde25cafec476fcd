package services

import (
	"context"
	"errors"
	"math"
	"net/http"

	"github.com/costline/costline/modules/estimation/domain/assignment"
	"github.com/costline/costline/modules/estimation/domain/risk"
	"github.com/costline/costline/modules/estimation/domain/wbs"
	"github.com/costline/costline/modules/estimation/infrastructure/persistence"
)

// NodeSummary is a node joined with its cached subtree aggregate. Nodes
// that never had an assignment or risk under them carry a zero rollup.
type NodeSummary struct {
	Node   *wbs.Node   `json:"node"`
	Rollup *wbs.Rollup `json:"rollup"`
}

// ProjectEstimate is the project-level view: the per-root aggregates
// summed together plus the per-resource breakdown over the whole tree.
type ProjectEstimate struct {
	Project              *wbs.Project                `json:"project"`
	TotalPert            float64                     `json:"total_pert"`
	CombinedStdDeviation float64                     `json:"combined_std_deviation"`
	ConfidenceLow        float64                     `json:"confidence_low"`
	ConfidenceHigh       float64                     `json:"confidence_high"`
	TotalRiskExposure    float64                     `json:"total_risk_exposure"`
	RiskAdjustedEstimate float64                     `json:"risk_adjusted_estimate"`
	ResourceBreakdown    []*assignment.ResourceTotal `json:"resource_breakdown"`
}

type RollupService struct {
	wbsRepo     wbs.Repository
	projectRepo wbs.ProjectRepository
	rollupRepo  wbs.RollupRepository
	assignments assignment.Repository
	risks       risk.Repository
	zScore      float64
}

func NewRollupService(
	wbsRepo wbs.Repository,
	projectRepo wbs.ProjectRepository,
	rollupRepo wbs.RollupRepository,
	assignments assignment.Repository,
	risks risk.Repository,
	zScore float64,
) *RollupService {
	return &RollupService{
		wbsRepo:     wbsRepo,
		projectRepo: projectRepo,
		rollupRepo:  rollupRepo,
		assignments: assignments,
		risks:       risks,
		zScore:      zScore,
	}
}

// RecomputePath re-derives the aggregates for the node and every
// ancestor up to the root, summing from current source rows. Must be
// called inside the same transaction as the write that changed a leaf.
func (s *RollupService) RecomputePath(txCtx context.Context, wbsID int64) ([]int64, error) {
	ids, err := s.wbsRepo.PathToRoot(txCtx, wbsID)
	if err != nil {
		return nil, err
	}
	if err := s.rollupRepo.Recompute(txCtx, ids, s.zScore); err != nil {
		return nil, err
	}
	rollupRecomputes.Inc()
	return ids, nil
}

// RecomputeAll refreshes every node of a freshly created tree, deepest
// first so parents see settled children. Used by the import path.
func (s *RollupService) RecomputeAll(txCtx context.Context, nodes []*wbs.Node) error {
	ids := make([]int64, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	if err := s.rollupRepo.Recompute(txCtx, ids, s.zScore); err != nil {
		return err
	}
	rollupRecomputes.Inc()
	return nil
}

func (s *RollupService) NodeSummary(ctx context.Context, wbsID int64) (*NodeSummary, error) {
	out, err := inTx(ctx, func(txCtx context.Context) (*NodeSummary, error) {
		node, err := s.wbsRepo.GetByID(txCtx, wbsID)
		if err != nil {
			return nil, err
		}
		rollup, err := s.rollupRepo.Get(txCtx, wbsID)
		if err != nil {
			if errors.Is(err, persistence.ErrRollupNotFound) {
				rollup = &wbs.Rollup{WBSID: wbsID}
			} else {
				return nil, err
			}
		}
		return &NodeSummary{Node: node, Rollup: rollup}, nil
	})
	if err != nil {
		return nil, s.mapError(err)
	}
	return out, nil
}

// Tree returns the project's nodes in stable creation order, each with
// its cached rollup.
func (s *RollupService) Tree(ctx context.Context, projectID int64) ([]*NodeSummary, error) {
	out, err := inTx(ctx, func(txCtx context.Context) ([]*NodeSummary, error) {
		if _, err := s.projectRepo.GetByID(txCtx, projectID); err != nil {
			return nil, err
		}
		nodes, err := s.wbsRepo.GetByProject(txCtx, projectID)
		if err != nil {
			return nil, err
		}
		ids := make([]int64, len(nodes))
		for i, n := range nodes {
			ids[i] = n.ID
		}
		rollups, err := s.rollupRepo.GetMany(txCtx, ids)
		if err != nil {
			return nil, err
		}
		byID := make(map[int64]*wbs.Rollup, len(rollups))
		for _, r := range rollups {
			byID[r.WBSID] = r
		}
		summaries := make([]*NodeSummary, len(nodes))
		for i, n := range nodes {
			r := byID[n.ID]
			if r == nil {
				r = &wbs.Rollup{WBSID: n.ID}
			}
			summaries[i] = &NodeSummary{Node: n, Rollup: r}
		}
		return summaries, nil
	})
	if err != nil {
		return nil, s.mapError(err)
	}
	return out, nil
}

func (s *RollupService) ProjectEstimate(ctx context.Context, projectID int64) (*ProjectEstimate, error) {
	out, err := inTx(ctx, func(txCtx context.Context) (*ProjectEstimate, error) {
		project, err := s.projectRepo.GetByID(txCtx, projectID)
		if err != nil {
			return nil, err
		}
		nodes, err := s.wbsRepo.GetByProject(txCtx, projectID)
		if err != nil {
			return nil, err
		}
		var rootIDs []int64
		for _, n := range nodes {
			if n.ParentID == nil {
				rootIDs = append(rootIDs, n.ID)
			}
		}
		rollups, err := s.rollupRepo.GetMany(txCtx, rootIDs)
		if err != nil {
			return nil, err
		}
		est := &ProjectEstimate{Project: project}
		var varianceSum float64
		for _, r := range rollups {
			est.TotalPert += r.TotalPert
			est.TotalRiskExposure += r.TotalRiskExposure
			varianceSum += r.CombinedStdDeviation * r.CombinedStdDeviation
		}
		est.CombinedStdDeviation = math.Sqrt(varianceSum)
		est.ConfidenceLow = est.TotalPert - s.zScore*est.CombinedStdDeviation
		est.ConfidenceHigh = est.TotalPert + s.zScore*est.CombinedStdDeviation
		est.RiskAdjustedEstimate = est.TotalPert + est.TotalRiskExposure
		breakdown, err := s.assignments.ResourceBreakdownByProject(txCtx, projectID)
		if err != nil {
			return nil, err
		}
		est.ResourceBreakdown = breakdown
		return est, nil
	})
	if err != nil {
		return nil, s.mapError(err)
	}
	return out, nil
}

func (s *RollupService) mapError(err error) error {
	if errors.Is(err, persistence.ErrWBSNodeNotFound) {
		return newServiceError(http.StatusNotFound, "WBS_NOT_FOUND", "wbs node not found", err)
	}
	if errors.Is(err, persistence.ErrProjectNotFound) {
		return newServiceError(http.StatusNotFound, "PROJECT_NOT_FOUND", "project not found", err)
	}
	return mapPgErrorToServiceError(err)
}
