package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/costline/costline/modules/estimation/domain/assignment"
	"github.com/costline/costline/modules/estimation/domain/wbs"
	"github.com/costline/costline/pkg/eventbus"
)

type leafEnv struct {
	assignments *fakeAssignmentRepo
	risks       *fakeRiskRepo
	wbsRepo     *fakeWBSRepo
	rollups     *fakeRollupRepo
	assignSvc   *AssignmentService
	riskSvc     *RiskService
	root        *wbs.Node
	leaf        *wbs.Node
}

func newLeafEnv(t *testing.T) *leafEnv {
	t.Helper()
	wbsRepo := newFakeWBSRepo()
	assignments := newFakeAssignmentRepo()
	risks := newFakeRiskRepo()
	rollups := newFakeRollupRepo(wbsRepo, assignments, risks)
	publisher := eventbus.NewEventPublisher(logrus.New())
	projects := newFakeProjectRepo()

	root := wbsRepo.add(&wbs.Node{ProjectID: 1, Title: "Project", WBSCode: "1"})
	leaf := wbsRepo.add(&wbs.Node{ProjectID: 1, Title: "Task", WBSCode: "1.1"})
	leaf.ParentID = &root.ID

	rollupSvc := NewRollupService(wbsRepo, projects, rollups, assignments, risks, 1.28)
	return &leafEnv{
		assignments: assignments,
		risks:       risks,
		wbsRepo:     wbsRepo,
		rollups:     rollups,
		assignSvc:   NewAssignmentService(assignments, wbsRepo, rollupSvc, publisher),
		riskSvc:     NewRiskService(risks, wbsRepo, rollupSvc, publisher),
		root:        root,
		leaf:        leaf,
	}
}

func TestAssignmentCreate_DerivesAndRecomputesAncestors(t *testing.T) {
	env := newLeafEnv(t)
	created, err := env.assignSvc.Create(testCtx(), &assignment.Assignment{
		WBSID:          env.leaf.ID,
		ResourceCode:   "DEV",
		BestEstimate:   decimal.NewFromInt(100),
		LikelyEstimate: decimal.NewFromInt(150),
		WorstEstimate:  decimal.NewFromInt(200),
	})
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(150).Equal(created.PertEstimate))
	require.True(t, decimal.RequireFromString("16.6667").Equal(created.StdDeviation))

	require.Len(t, env.rollups.recomputed, 1)
	require.Equal(t, []int64{env.leaf.ID, env.root.ID}, env.rollups.recomputed[0])

	// The ancestor aggregate carries the new leaf figures.
	rootRollup := env.rollups.rollups[env.root.ID]
	require.NotNil(t, rootRollup)
	require.InDelta(t, 150, rootRollup.TotalPert, 1e-9)
	require.InDelta(t, 16.6667, rootRollup.CombinedStdDeviation, 1e-4)
	require.Equal(t, 1, rootRollup.AssignmentCount)
}

func TestAssignmentCreate_RejectsBadOrdering(t *testing.T) {
	env := newLeafEnv(t)
	_, err := env.assignSvc.Create(testCtx(), &assignment.Assignment{
		WBSID:          env.leaf.ID,
		ResourceCode:   "DEV",
		BestEstimate:   decimal.NewFromInt(50),
		LikelyEstimate: decimal.NewFromInt(40),
		WorstEstimate:  decimal.NewFromInt(60),
	})
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	require.Equal(t, 400, svcErr.Status)
	require.Equal(t, "INVALID_ESTIMATE", svcErr.Code)
}

func TestAssignmentCreate_LockedNodeRejected(t *testing.T) {
	env := newLeafEnv(t)
	for _, status := range []string{wbs.StatusSubmitted, wbs.StatusApproved} {
		env.wbsRepo.nodes[env.leaf.ID].ApprovalStatus = status
		_, err := env.assignSvc.Create(testCtx(), &assignment.Assignment{
			WBSID:          env.leaf.ID,
			ResourceCode:   "DEV",
			BestEstimate:   decimal.NewFromInt(1),
			LikelyEstimate: decimal.NewFromInt(2),
			WorstEstimate:  decimal.NewFromInt(3),
		})
		var svcErr *ServiceError
		require.ErrorAs(t, err, &svcErr)
		require.Equal(t, 409, svcErr.Status)
		require.Equal(t, "ESTIMATION_LOCKED", svcErr.Code)
	}
}

func TestAssignmentCreate_RejectedNodeEditable(t *testing.T) {
	env := newLeafEnv(t)
	env.wbsRepo.nodes[env.leaf.ID].ApprovalStatus = wbs.StatusRejected
	_, err := env.assignSvc.Create(testCtx(), &assignment.Assignment{
		WBSID:          env.leaf.ID,
		ResourceCode:   "DEV",
		BestEstimate:   decimal.NewFromInt(1),
		LikelyEstimate: decimal.NewFromInt(2),
		WorstEstimate:  decimal.NewFromInt(3),
	})
	require.NoError(t, err)
}

func TestAssignmentUpdate_RederivesEstimates(t *testing.T) {
	env := newLeafEnv(t)
	created, err := env.assignSvc.Create(testCtx(), &assignment.Assignment{
		WBSID:          env.leaf.ID,
		ResourceCode:   "DEV",
		BestEstimate:   decimal.NewFromInt(10),
		LikelyEstimate: decimal.NewFromInt(20),
		WorstEstimate:  decimal.NewFromInt(40),
	})
	require.NoError(t, err)

	created.BestEstimate = decimal.NewFromInt(0)
	created.LikelyEstimate = decimal.NewFromInt(10)
	created.WorstEstimate = decimal.NewFromInt(20)
	updated, err := env.assignSvc.Update(testCtx(), created)
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(10).Equal(updated.PertEstimate))
	require.True(t, decimal.RequireFromString("3.3333").Equal(updated.StdDeviation))
}

func TestAssignmentUpdate_NotFound(t *testing.T) {
	env := newLeafEnv(t)
	_, err := env.assignSvc.Update(testCtx(), &assignment.Assignment{
		ID:             99,
		BestEstimate:   decimal.NewFromInt(1),
		LikelyEstimate: decimal.NewFromInt(2),
		WorstEstimate:  decimal.NewFromInt(3),
	})
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	require.Equal(t, 404, svcErr.Status)
}

func TestAssignmentDelete_RecomputesAncestors(t *testing.T) {
	env := newLeafEnv(t)
	created, err := env.assignSvc.Create(testCtx(), &assignment.Assignment{
		WBSID:          env.leaf.ID,
		ResourceCode:   "DEV",
		BestEstimate:   decimal.NewFromInt(1),
		LikelyEstimate: decimal.NewFromInt(2),
		WorstEstimate:  decimal.NewFromInt(3),
	})
	require.NoError(t, err)

	deleted, err := env.assignSvc.Delete(testCtx(), created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, deleted.ID)
	require.Len(t, env.rollups.recomputed, 2)
}
