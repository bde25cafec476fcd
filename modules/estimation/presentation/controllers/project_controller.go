package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/costline/costline/modules/estimation/presentation/controllers/dtos"
	"github.com/costline/costline/modules/estimation/services"
)

// ProjectController covers project bootstrap plus the read-side tree and
// estimate views built from the cached rollups.
type ProjectController struct {
	projectService *services.ProjectService
	rollupService  *services.RollupService
}

func NewProjectController(projectService *services.ProjectService, rollupService *services.RollupService) *ProjectController {
	return &ProjectController{projectService: projectService, rollupService: rollupService}
}

func (c *ProjectController) Key() string {
	return "/projects"
}

func (c *ProjectController) Register(r *mux.Router) {
	r.HandleFunc("/projects", c.Create).Methods(http.MethodPost)
	r.HandleFunc("/projects/{projectID}", c.Get).Methods(http.MethodGet)
	r.HandleFunc("/projects/{projectID}/tree", c.Tree).Methods(http.MethodGet)
	r.HandleFunc("/projects/{projectID}/estimate", c.Estimate).Methods(http.MethodGet)
}

func (c *ProjectController) Create(w http.ResponseWriter, r *http.Request) {
	var dto dtos.CreateProjectDTO
	if !decodeBody(w, r, &dto) {
		return
	}
	if msgs, ok := dto.Ok(); !ok {
		writeJSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid project payload", msgs)
		return
	}
	project, err := c.projectService.Create(r.Context(), dto.Name)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (c *ProjectController) Get(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "projectID")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_PROJECT_ID", "project id must be an integer")
		return
	}
	project, err := c.projectService.GetByID(r.Context(), projectID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (c *ProjectController) Tree(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "projectID")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_PROJECT_ID", "project id must be an integer")
		return
	}
	tree, err := c.rollupService.Tree(r.Context(), projectID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

func (c *ProjectController) Estimate(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "projectID")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_PROJECT_ID", "project id must be an integer")
		return
	}
	estimate, err := c.rollupService.ProjectEstimate(r.Context(), projectID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, estimate)
}
