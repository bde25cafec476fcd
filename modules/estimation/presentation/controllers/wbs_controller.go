package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/costline/costline/modules/estimation/domain/wbs"
	"github.com/costline/costline/modules/estimation/presentation/controllers/dtos"
	"github.com/costline/costline/modules/estimation/services"
)

// WBSController serves node-level reads, leaf estimate/risk writes, and
// the approval actions.
type WBSController struct {
	rollupService     *services.RollupService
	assignmentService *services.AssignmentService
	riskService       *services.RiskService
	approvalService   *services.ApprovalService
}

func NewWBSController(
	rollupService *services.RollupService,
	assignmentService *services.AssignmentService,
	riskService *services.RiskService,
	approvalService *services.ApprovalService,
) *WBSController {
	return &WBSController{
		rollupService:     rollupService,
		assignmentService: assignmentService,
		riskService:       riskService,
		approvalService:   approvalService,
	}
}

func (c *WBSController) Key() string {
	return "/wbs"
}

func (c *WBSController) Register(r *mux.Router) {
	r.HandleFunc("/wbs/{wbsID}/summary", c.Summary).Methods(http.MethodGet)
	r.HandleFunc("/wbs/{wbsID}/audit", c.Audit).Methods(http.MethodGet)

	r.HandleFunc("/wbs/{wbsID}/assignments", c.ListAssignments).Methods(http.MethodGet)
	r.HandleFunc("/wbs/{wbsID}/assignments", c.CreateAssignment).Methods(http.MethodPost)
	r.HandleFunc("/wbs/{wbsID}/assignments/{assignmentID}", c.UpdateAssignment).Methods(http.MethodPut)
	r.HandleFunc("/wbs/{wbsID}/assignments/{assignmentID}", c.DeleteAssignment).Methods(http.MethodDelete)

	r.HandleFunc("/wbs/{wbsID}/risks", c.ListRisks).Methods(http.MethodGet)
	r.HandleFunc("/wbs/{wbsID}/risks", c.CreateRisk).Methods(http.MethodPost)
	r.HandleFunc("/wbs/{wbsID}/risks/{riskID}", c.UpdateRisk).Methods(http.MethodPut)
	r.HandleFunc("/wbs/{wbsID}/risks/{riskID}", c.DeleteRisk).Methods(http.MethodDelete)

	for _, action := range []string{wbs.ActionSubmit, wbs.ActionApprove, wbs.ActionReject, wbs.ActionReset} {
		r.HandleFunc("/wbs/{wbsID}/"+action, c.transitionHandler(action)).Methods(http.MethodPost)
	}
}

func (c *WBSController) Summary(w http.ResponseWriter, r *http.Request) {
	wbsID, err := pathID(r, "wbsID")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_WBS_ID", "wbs id must be an integer")
		return
	}
	summary, err := c.rollupService.NodeSummary(r.Context(), wbsID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (c *WBSController) Audit(w http.ResponseWriter, r *http.Request) {
	wbsID, err := pathID(r, "wbsID")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_WBS_ID", "wbs id must be an integer")
		return
	}
	entries, err := c.approvalService.AuditLog(r.Context(), wbsID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (c *WBSController) ListAssignments(w http.ResponseWriter, r *http.Request) {
	wbsID, err := pathID(r, "wbsID")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_WBS_ID", "wbs id must be an integer")
		return
	}
	out, err := c.assignmentService.GetByNode(r.Context(), wbsID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (c *WBSController) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	wbsID, err := pathID(r, "wbsID")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_WBS_ID", "wbs id must be an integer")
		return
	}
	var dto dtos.SaveAssignmentDTO
	if !decodeBody(w, r, &dto) {
		return
	}
	if msgs, ok := dto.Ok(); !ok {
		writeJSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid assignment payload", msgs)
		return
	}
	created, err := c.assignmentService.Create(r.Context(), dto.ToEntity(wbsID))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (c *WBSController) UpdateAssignment(w http.ResponseWriter, r *http.Request) {
	wbsID, err := pathID(r, "wbsID")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_WBS_ID", "wbs id must be an integer")
		return
	}
	assignmentID, err := pathID(r, "assignmentID")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_ASSIGNMENT_ID", "assignment id must be an integer")
		return
	}
	var dto dtos.SaveAssignmentDTO
	if !decodeBody(w, r, &dto) {
		return
	}
	if msgs, ok := dto.Ok(); !ok {
		writeJSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid assignment payload", msgs)
		return
	}
	entity := dto.ToEntity(wbsID)
	entity.ID = assignmentID
	updated, err := c.assignmentService.Update(r.Context(), entity)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (c *WBSController) DeleteAssignment(w http.ResponseWriter, r *http.Request) {
	assignmentID, err := pathID(r, "assignmentID")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_ASSIGNMENT_ID", "assignment id must be an integer")
		return
	}
	deleted, err := c.assignmentService.Delete(r.Context(), assignmentID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deleted)
}

func (c *WBSController) ListRisks(w http.ResponseWriter, r *http.Request) {
	wbsID, err := pathID(r, "wbsID")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_WBS_ID", "wbs id must be an integer")
		return
	}
	out, err := c.riskService.GetByNode(r.Context(), wbsID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (c *WBSController) CreateRisk(w http.ResponseWriter, r *http.Request) {
	wbsID, err := pathID(r, "wbsID")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_WBS_ID", "wbs id must be an integer")
		return
	}
	var dto dtos.SaveRiskDTO
	if !decodeBody(w, r, &dto) {
		return
	}
	if msgs, ok := dto.Ok(); !ok {
		writeJSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid risk payload", msgs)
		return
	}
	created, err := c.riskService.Create(r.Context(), dto.ToEntity(wbsID))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (c *WBSController) UpdateRisk(w http.ResponseWriter, r *http.Request) {
	wbsID, err := pathID(r, "wbsID")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_WBS_ID", "wbs id must be an integer")
		return
	}
	riskID, err := pathID(r, "riskID")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_RISK_ID", "risk id must be an integer")
		return
	}
	var dto dtos.SaveRiskDTO
	if !decodeBody(w, r, &dto) {
		return
	}
	if msgs, ok := dto.Ok(); !ok {
		writeJSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid risk payload", msgs)
		return
	}
	entity := dto.ToEntity(wbsID)
	entity.ID = riskID
	updated, err := c.riskService.Update(r.Context(), entity)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (c *WBSController) DeleteRisk(w http.ResponseWriter, r *http.Request) {
	riskID, err := pathID(r, "riskID")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_RISK_ID", "risk id must be an integer")
		return
	}
	deleted, err := c.riskService.Delete(r.Context(), riskID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deleted)
}

func (c *WBSController) transitionHandler(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wbsID, err := pathID(r, "wbsID")
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "INVALID_WBS_ID", "wbs id must be an integer")
			return
		}
		var dto dtos.TransitionDTO
		if r.ContentLength > 0 && !decodeBody(w, r, &dto) {
			return
		}
		node, err := c.approvalService.Transition(r.Context(), wbsID, action, dto.Comment)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, node)
	}
}
