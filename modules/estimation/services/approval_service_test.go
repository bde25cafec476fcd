package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/costline/costline/modules/estimation/domain/assignment"
	"github.com/costline/costline/modules/estimation/domain/wbs"
	"github.com/costline/costline/pkg/composables"
	"github.com/costline/costline/pkg/eventbus"
)

type approvalEnv struct {
	svc         *ApprovalService
	wbsRepo     *fakeWBSRepo
	assignments *fakeAssignmentRepo
	audit       *fakeAuditRepo
	node        *wbs.Node
}

func newApprovalEnv(t *testing.T) *approvalEnv {
	t.Helper()
	wbsRepo := newFakeWBSRepo()
	assignments := newFakeAssignmentRepo()
	audit := &fakeAuditRepo{}
	publisher := eventbus.NewEventPublisher(logrus.New())
	node := wbsRepo.add(&wbs.Node{ProjectID: 1, Title: "Build", WBSCode: "1"})
	return &approvalEnv{
		svc:         NewApprovalService(wbsRepo, assignments, audit, publisher),
		wbsRepo:     wbsRepo,
		assignments: assignments,
		audit:       audit,
		node:        node,
	}
}

func (e *approvalEnv) addAssignment(t *testing.T) {
	t.Helper()
	_, err := e.assignments.Create(context.Background(), &assignment.Assignment{
		WBSID:          e.node.ID,
		ResourceCode:   "DEV",
		BestEstimate:   decimal.NewFromInt(10),
		LikelyEstimate: decimal.NewFromInt(20),
		WorstEstimate:  decimal.NewFromInt(40),
	})
	require.NoError(t, err)
}

func editorCtx() context.Context {
	return composables.WithActor(testCtx(), composables.Actor{ID: uuid.New(), Name: "pm"})
}

func approverCtx() context.Context {
	return composables.WithActor(testCtx(), composables.Actor{ID: uuid.New(), Name: "lead", CanApprove: true})
}

func TestTransition_RequiresActor(t *testing.T) {
	env := newApprovalEnv(t)
	_, err := env.svc.Transition(testCtx(), env.node.ID, wbs.ActionSubmit, "")
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	require.Equal(t, 401, svcErr.Status)
	require.Equal(t, "ACTOR_REQUIRED", svcErr.Code)
}

func TestTransition_SubmitRequiresAssignment(t *testing.T) {
	env := newApprovalEnv(t)
	_, err := env.svc.Transition(editorCtx(), env.node.ID, wbs.ActionSubmit, "")
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	require.Equal(t, 422, svcErr.Status)
	require.Equal(t, "SUBMIT_REQUIRES_ASSIGNMENT", svcErr.Code)
}

func TestTransition_FirstSubmitIsRevisionZero(t *testing.T) {
	env := newApprovalEnv(t)
	env.addAssignment(t)
	node, err := env.svc.Transition(editorCtx(), env.node.ID, wbs.ActionSubmit, "")
	require.NoError(t, err)
	require.Equal(t, wbs.StatusSubmitted, node.ApprovalStatus)
	require.Equal(t, 0, node.EstimateRevision)
	require.NotNil(t, node.LastSubmittedAt)
	require.Len(t, env.audit.entries, 1)
	require.Equal(t, wbs.StatusDraft, env.audit.entries[0].FromStatus)
}

func TestTransition_ApproveNeedsCapability(t *testing.T) {
	env := newApprovalEnv(t)
	env.addAssignment(t)
	_, err := env.svc.Transition(editorCtx(), env.node.ID, wbs.ActionSubmit, "")
	require.NoError(t, err)

	_, err = env.svc.Transition(editorCtx(), env.node.ID, wbs.ActionApprove, "")
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	require.Equal(t, 403, svcErr.Status)
	require.Equal(t, "APPROVAL_FORBIDDEN", svcErr.Code)
}

func TestTransition_ApproveStampsApprover(t *testing.T) {
	env := newApprovalEnv(t)
	env.addAssignment(t)
	_, err := env.svc.Transition(editorCtx(), env.node.ID, wbs.ActionSubmit, "")
	require.NoError(t, err)

	node, err := env.svc.Transition(approverCtx(), env.node.ID, wbs.ActionApprove, "")
	require.NoError(t, err)
	require.Equal(t, wbs.StatusApproved, node.ApprovalStatus)
	require.NotNil(t, node.ApproverIdentity)
	require.Equal(t, "lead", *node.ApproverIdentity)
	require.NotNil(t, node.ApprovalTimestamp)
}

func TestTransition_ResubmitAfterRejectIncrementsRevision(t *testing.T) {
	env := newApprovalEnv(t)
	env.addAssignment(t)

	_, err := env.svc.Transition(editorCtx(), env.node.ID, wbs.ActionSubmit, "")
	require.NoError(t, err)
	_, err = env.svc.Transition(approverCtx(), env.node.ID, wbs.ActionReject, "too optimistic")
	require.NoError(t, err)

	node, err := env.svc.Transition(editorCtx(), env.node.ID, wbs.ActionSubmit, "")
	require.NoError(t, err)
	require.Equal(t, 1, node.EstimateRevision)

	_, err = env.svc.Transition(approverCtx(), env.node.ID, wbs.ActionReject, "")
	require.NoError(t, err)
	node, err = env.svc.Transition(editorCtx(), env.node.ID, wbs.ActionSubmit, "")
	require.NoError(t, err)
	require.Equal(t, 2, node.EstimateRevision)
}

func TestTransition_ResetKeepsRevision(t *testing.T) {
	env := newApprovalEnv(t)
	env.addAssignment(t)

	_, err := env.svc.Transition(editorCtx(), env.node.ID, wbs.ActionSubmit, "")
	require.NoError(t, err)
	_, err = env.svc.Transition(approverCtx(), env.node.ID, wbs.ActionReject, "")
	require.NoError(t, err)

	node, err := env.svc.Transition(editorCtx(), env.node.ID, wbs.ActionReset, "")
	require.NoError(t, err)
	require.Equal(t, wbs.StatusDraft, node.ApprovalStatus)
	require.Equal(t, 0, node.EstimateRevision)
}

func TestTransition_InvalidSourceStateConflicts(t *testing.T) {
	env := newApprovalEnv(t)
	env.addAssignment(t)
	_, err := env.svc.Transition(approverCtx(), env.node.ID, wbs.ActionApprove, "")
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	require.Equal(t, 409, svcErr.Status)
	require.Equal(t, "APPROVAL_STATE_CONFLICT", svcErr.Code)
}

func TestTransition_ApprovedIsTerminal(t *testing.T) {
	env := newApprovalEnv(t)
	env.addAssignment(t)
	_, err := env.svc.Transition(editorCtx(), env.node.ID, wbs.ActionSubmit, "")
	require.NoError(t, err)
	_, err = env.svc.Transition(approverCtx(), env.node.ID, wbs.ActionApprove, "")
	require.NoError(t, err)

	for _, action := range []string{wbs.ActionSubmit, wbs.ActionReset} {
		_, err := env.svc.Transition(editorCtx(), env.node.ID, action, "")
		var svcErr *ServiceError
		require.ErrorAs(t, err, &svcErr)
		require.Equal(t, "APPROVAL_STATE_CONFLICT", svcErr.Code)
	}
}

func TestTransition_UnknownNode(t *testing.T) {
	env := newApprovalEnv(t)
	_, err := env.svc.Transition(editorCtx(), 404, wbs.ActionSubmit, "")
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	require.Equal(t, 404, svcErr.Status)
}

func TestAuditLog_RecordsFullHistory(t *testing.T) {
	env := newApprovalEnv(t)
	env.addAssignment(t)
	_, err := env.svc.Transition(editorCtx(), env.node.ID, wbs.ActionSubmit, "")
	require.NoError(t, err)
	_, err = env.svc.Transition(approverCtx(), env.node.ID, wbs.ActionReject, "needs detail")
	require.NoError(t, err)

	entries, err := env.svc.AuditLog(testCtx(), env.node.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, wbs.ActionSubmit, entries[0].Action)
	require.Equal(t, wbs.ActionReject, entries[1].Action)
	require.Equal(t, "needs detail", entries[1].Comment)
}
