package controllers

import (
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/costline/costline/modules/estimation/services"
)

// ImportController exposes the upload-and-import surface. The upload is
// accepted, a job handle is returned immediately, and the rest happens
// on a background worker.
type ImportController struct {
	importService *services.ImportService
	maxUploadSize int64
	basePath      string
}

func NewImportController(importService *services.ImportService, maxUploadSize int64) *ImportController {
	return &ImportController{
		importService: importService,
		maxUploadSize: maxUploadSize,
		basePath:      "",
	}
}

func (c *ImportController) Key() string {
	return "/import"
}

func (c *ImportController) Register(r *mux.Router) {
	r.HandleFunc("/projects/{projectID}/import", c.Start).Methods(http.MethodPost)
	r.HandleFunc("/projects/{projectID}/import-jobs", c.History).Methods(http.MethodGet)
	r.HandleFunc("/import-jobs/{jobID}", c.Status).Methods(http.MethodGet)
	r.HandleFunc("/import-jobs/{jobID}/cancel", c.Cancel).Methods(http.MethodPost)
}

func (c *ImportController) Start(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "projectID")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_PROJECT_ID", "project id must be an integer")
		return
	}
	if err := r.ParseMultipartForm(c.maxUploadSize); err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_UPLOAD", "failed to parse multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_UPLOAD", "multipart field \"file\" is required")
		return
	}
	defer func() {
		_ = file.Close()
	}()
	contents, err := io.ReadAll(file)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_UPLOAD", "failed to read uploaded file")
		return
	}

	job, err := c.importService.Start(r.Context(), projectID, header.Filename, contents)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (c *ImportController) Status(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(mux.Vars(r)["jobID"])
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_JOB_ID", "job id must be a uuid")
		return
	}
	job, err := c.importService.Status(r.Context(), jobID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (c *ImportController) Cancel(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(mux.Vars(r)["jobID"])
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_JOB_ID", "job id must be a uuid")
		return
	}
	job, err := c.importService.Cancel(r.Context(), jobID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (c *ImportController) History(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "projectID")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_PROJECT_ID", "project id must be an integer")
		return
	}
	jobs, err := c.importService.History(r.Context(), projectID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}
