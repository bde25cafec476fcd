package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/costline/costline/modules/estimation/domain/assignment"
	"github.com/costline/costline/modules/estimation/domain/importjob"
	"github.com/costline/costline/modules/estimation/domain/task"
	"github.com/costline/costline/modules/estimation/domain/wbs"
	"github.com/costline/costline/modules/estimation/infrastructure/persistence"
	"github.com/costline/costline/pkg/eventbus"
)

var allowedImportExtensions = map[string]bool{
	".mpp":  true,
	".mpx":  true,
	".xml":  true,
	".json": true,
}

type ImportConfig struct {
	UploadsPath   string
	MaxUploadSize int64
	MaxDropRatio  float64
	Workers       int
}

type ImportService struct {
	jobs        importjob.Repository
	projects    wbs.ProjectRepository
	wbsRepo     wbs.Repository
	assignments assignment.Repository
	rollups     *RollupService
	parser      task.Parser
	publisher   eventbus.EventBus
	logger      *logrus.Logger
	conf        ImportConfig

	// baseCtx parents every background worker so jobs survive the
	// request that created them. It must carry the database pool.
	baseCtx context.Context

	mu      sync.Mutex
	cancels map[uuid.UUID]context.CancelFunc
	slots   chan struct{}
	wg      sync.WaitGroup
}

func NewImportService(
	jobs importjob.Repository,
	projects wbs.ProjectRepository,
	wbsRepo wbs.Repository,
	assignments assignment.Repository,
	rollups *RollupService,
	parser task.Parser,
	publisher eventbus.EventBus,
	baseCtx context.Context,
	logger *logrus.Logger,
	conf ImportConfig,
) *ImportService {
	workers := conf.Workers
	if workers <= 0 {
		workers = 1
	}
	return &ImportService{
		jobs:        jobs,
		projects:    projects,
		wbsRepo:     wbsRepo,
		assignments: assignments,
		rollups:     rollups,
		parser:      parser,
		publisher:   publisher,
		baseCtx:     baseCtx,
		logger:      logger,
		conf:        conf,
		cancels:     make(map[uuid.UUID]context.CancelFunc),
		slots:       make(chan struct{}, workers),
	}
}

// Start validates the upload, claims the project's single active-import
// slot by inserting the job row, stores the raw file, and hands the job
// to a background worker. The caller gets the handle back immediately.
func (s *ImportService) Start(ctx context.Context, projectID int64, filename string, contents []byte) (*importjob.Job, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedImportExtensions[ext] {
		return nil, newServiceError(http.StatusBadRequest, "UNSUPPORTED_FILE_TYPE",
			fmt.Sprintf("unsupported file type %q", ext), nil)
	}
	if s.conf.MaxUploadSize > 0 && int64(len(contents)) > s.conf.MaxUploadSize {
		return nil, newServiceError(http.StatusRequestEntityTooLarge, "UPLOAD_TOO_LARGE",
			fmt.Sprintf("file exceeds %d bytes", s.conf.MaxUploadSize), nil)
	}

	jobID := uuid.New()
	storedPath := filepath.Join(s.conf.UploadsPath, jobID.String()+ext)

	job, err := inTx(ctx, func(txCtx context.Context) (*importjob.Job, error) {
		if _, err := s.projects.GetByID(txCtx, projectID); err != nil {
			if errors.Is(err, persistence.ErrProjectNotFound) {
				return nil, newServiceError(http.StatusNotFound, "PROJECT_NOT_FOUND", "project not found", err)
			}
			return nil, err
		}
		return s.jobs.Create(txCtx, &importjob.Job{
			ID:             jobID,
			ProjectID:      projectID,
			Status:         importjob.StatusPending,
			StoredFilename: filename,
		})
	})
	if err != nil {
		return nil, mapPgErrorToServiceError(err)
	}

	if err := os.MkdirAll(s.conf.UploadsPath, 0o755); err != nil {
		return nil, s.failEarly(job, err)
	}
	if err := os.WriteFile(storedPath, contents, 0o644); err != nil {
		return nil, s.failEarly(job, err)
	}

	importsStarted.Inc()
	s.publisher.Publish(&importjob.CreatedEvent{Result: job})

	runCtx, cancel := context.WithCancel(s.baseCtx)
	s.mu.Lock()
	s.cancels[jobID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.cancels, jobID)
			s.mu.Unlock()
			cancel()
		}()
		s.slots <- struct{}{}
		defer func() { <-s.slots }()
		s.run(runCtx, jobID, projectID, storedPath)
	}()
	return job, nil
}

// failEarly marks a just-created job failed when the upload could not be
// stored, so the active-import slot is released.
func (s *ImportService) failEarly(job *importjob.Job, cause error) error {
	msg := cause.Error()
	job.Status = importjob.StatusFailed
	job.ErrorMessage = &msg
	if _, err := inTx(s.baseCtx, func(txCtx context.Context) (*importjob.Job, error) {
		return s.jobs.Finish(txCtx, job)
	}); err != nil {
		s.logger.WithError(err).WithField("job_id", job.ID).Error("failed to mark import job failed")
	}
	return newServiceError(http.StatusInternalServerError, "IMPORT_STORE_FAILED", "failed to store uploaded file", cause)
}

func (s *ImportService) Status(ctx context.Context, jobID uuid.UUID) (*importjob.Job, error) {
	job, err := inTx(ctx, func(txCtx context.Context) (*importjob.Job, error) {
		return s.jobs.GetByID(txCtx, jobID)
	})
	if err != nil {
		if errors.Is(err, persistence.ErrImportJobNotFound) {
			return nil, newServiceError(http.StatusNotFound, "IMPORT_JOB_NOT_FOUND", "import job not found", err)
		}
		return nil, mapPgErrorToServiceError(err)
	}
	return job, nil
}

func (s *ImportService) History(ctx context.Context, projectID int64) ([]*importjob.Job, error) {
	out, err := inTx(ctx, func(txCtx context.Context) ([]*importjob.Job, error) {
		if _, err := s.projects.GetByID(txCtx, projectID); err != nil {
			if errors.Is(err, persistence.ErrProjectNotFound) {
				return nil, newServiceError(http.StatusNotFound, "PROJECT_NOT_FOUND", "project not found", err)
			}
			return nil, err
		}
		return s.jobs.GetByProject(txCtx, projectID)
	})
	if err != nil {
		return nil, mapPgErrorToServiceError(err)
	}
	return out, nil
}

// Cancel stops a running job and moves it to cancelled. Terminal jobs
// are immutable and report a conflict.
func (s *ImportService) Cancel(ctx context.Context, jobID uuid.UUID) (*importjob.Job, error) {
	s.mu.Lock()
	if cancel, ok := s.cancels[jobID]; ok {
		cancel()
	}
	s.mu.Unlock()

	job, err := inTx(ctx, func(txCtx context.Context) (*importjob.Job, error) {
		current, err := s.jobs.GetByID(txCtx, jobID)
		if err != nil {
			return nil, err
		}
		if importjob.Terminal(current.Status) {
			return nil, newServiceError(http.StatusConflict, "IMPORT_JOB_TERMINAL",
				fmt.Sprintf("job is already %s", current.Status), nil)
		}
		current.Status = importjob.StatusCancelled
		return s.jobs.Finish(txCtx, current)
	})
	if err != nil {
		if errors.Is(err, persistence.ErrImportJobNotFound) {
			return nil, newServiceError(http.StatusNotFound, "IMPORT_JOB_NOT_FOUND", "import job not found", err)
		}
		return nil, mapPgErrorToServiceError(err)
	}
	s.publisher.Publish(&importjob.CancelledEvent{Result: job})
	return job, nil
}

// Shutdown waits for in-flight import workers to finish.
func (s *ImportService) Shutdown() {
	s.mu.Lock()
	for _, cancel := range s.cancels {
		cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
}
