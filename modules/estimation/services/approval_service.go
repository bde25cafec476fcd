package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/costline/costline/modules/estimation/domain/assignment"
	"github.com/costline/costline/modules/estimation/domain/wbs"
	"github.com/costline/costline/modules/estimation/infrastructure/persistence"
	"github.com/costline/costline/pkg/composables"
	"github.com/costline/costline/pkg/eventbus"
)

type ApprovalService struct {
	wbsRepo     wbs.Repository
	assignments assignment.Repository
	audit       wbs.AuditRepository
	publisher   eventbus.EventBus
}

func NewApprovalService(
	wbsRepo wbs.Repository,
	assignments assignment.Repository,
	audit wbs.AuditRepository,
	publisher eventbus.EventBus,
) *ApprovalService {
	return &ApprovalService{wbsRepo: wbsRepo, assignments: assignments, audit: audit, publisher: publisher}
}

// Transition applies one approval action to a node. The node row is
// locked for the whole transaction, so a leaf edit either commits before
// the lock status changes or is rejected by the lock check.
func (s *ApprovalService) Transition(ctx context.Context, wbsID int64, action, comment string) (*wbs.Node, error) {
	actor, err := composables.UseActor(ctx)
	if err != nil {
		return nil, newServiceError(http.StatusUnauthorized, "ACTOR_REQUIRED", "acting identity required", err)
	}
	if wbs.RequiresApprover(action) && !actor.CanApprove {
		return nil, newServiceError(http.StatusForbidden, "APPROVAL_FORBIDDEN", "actor lacks the approver capability", nil)
	}

	var fromStatus string
	node, err := inTx(ctx, func(txCtx context.Context) (*wbs.Node, error) {
		node, err := s.wbsRepo.GetByIDForUpdate(txCtx, wbsID)
		if err != nil {
			if errors.Is(err, persistence.ErrWBSNodeNotFound) {
				return nil, newServiceError(http.StatusNotFound, "WBS_NOT_FOUND", "wbs node not found", err)
			}
			return nil, err
		}
		next, ok := wbs.NextStatus(node.ApprovalStatus, action)
		if !ok {
			recordWriteConflict("approval_state")
			return nil, newServiceError(
				http.StatusConflict,
				"APPROVAL_STATE_CONFLICT",
				fmt.Sprintf("cannot %s a %s node", action, node.ApprovalStatus),
				nil,
			)
		}
		fromStatus = node.ApprovalStatus

		now := time.Now().UTC()
		switch action {
		case wbs.ActionSubmit:
			count, err := s.assignments.CountByNode(txCtx, node.ID)
			if err != nil {
				return nil, err
			}
			if count == 0 {
				return nil, newServiceError(
					http.StatusUnprocessableEntity,
					"SUBMIT_REQUIRES_ASSIGNMENT",
					"node has no assignments to submit",
					nil,
				)
			}
			// The first submission is revision 0; every resubmission
			// after a rejection counts up.
			if node.LastSubmittedAt != nil && fromStatus == wbs.StatusRejected {
				node.EstimateRevision++
			}
			node.LastSubmittedAt = &now
		case wbs.ActionApprove, wbs.ActionReject:
			identity := actor.Name
			if identity == "" {
				identity = actor.ID.String()
			}
			node.ApproverIdentity = &identity
			node.ApprovalTimestamp = &now
		}
		node.ApprovalStatus = next

		if err := s.wbsRepo.UpdateApproval(txCtx, node); err != nil {
			return nil, err
		}
		actorID := actor.ID.String()
		if err := s.audit.Append(txCtx, &wbs.AuditEntry{
			WBSID:      node.ID,
			Action:     action,
			FromStatus: fromStatus,
			ToStatus:   next,
			Revision:   node.EstimateRevision,
			ActorID:    &actorID,
			ActorName:  actor.Name,
			Comment:    comment,
		}); err != nil {
			return nil, err
		}
		return node, nil
	})
	if err != nil {
		return nil, mapPgErrorToServiceError(err)
	}
	s.publisher.Publish(&wbs.ApprovalTransitionedEvent{
		Node:       node,
		Action:     action,
		FromStatus: fromStatus,
		ActorName:  actor.Name,
	})
	return node, nil
}

func (s *ApprovalService) AuditLog(ctx context.Context, wbsID int64) ([]*wbs.AuditEntry, error) {
	out, err := inTx(ctx, func(txCtx context.Context) ([]*wbs.AuditEntry, error) {
		if _, err := s.wbsRepo.GetByID(txCtx, wbsID); err != nil {
			if errors.Is(err, persistence.ErrWBSNodeNotFound) {
				return nil, newServiceError(http.StatusNotFound, "WBS_NOT_FOUND", "wbs node not found", err)
			}
			return nil, err
		}
		return s.audit.GetByNode(txCtx, wbsID)
	})
	if err != nil {
		return nil, mapPgErrorToServiceError(err)
	}
	return out, nil
}
