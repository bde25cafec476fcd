package services

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/costline/costline/modules/estimation/domain/assignment"
	"github.com/costline/costline/modules/estimation/domain/importjob"
	"github.com/costline/costline/modules/estimation/domain/wbs"
	"github.com/costline/costline/modules/estimation/hierarchy"
	"github.com/costline/costline/modules/estimation/infrastructure/persistence"
	"github.com/costline/costline/pkg/composables"
)

// run executes one import job to a terminal state. Stage errors fail the
// job with the causal message verbatim; the tree transaction is
// all-or-nothing while job bookkeeping commits in its own small
// transactions so the failed record survives the rollback.
func (s *ImportService) run(ctx context.Context, jobID uuid.UUID, projectID int64, storedPath string) {
	started := time.Now()
	log := s.logger.WithFields(logrus.Fields{"job_id": jobID, "project_id": projectID})

	job, err := s.execute(ctx, jobID, projectID, storedPath, log)
	switch {
	case err == nil:
		recordImportFinished(importjob.StatusCompleted, time.Since(started).Seconds())
		log.WithField("tasks", job.TaskCount).Info("import completed")
		s.publisher.Publish(&importjob.CompletedEvent{Result: job})
	case ctx.Err() != nil:
		// Cancellation already moved the job to cancelled; nothing to
		// record beyond the metric.
		recordImportFinished(importjob.StatusCancelled, time.Since(started).Seconds())
		log.Info("import cancelled")
	default:
		recordImportFinished(importjob.StatusFailed, time.Since(started).Seconds())
		log.WithError(err).Error("import failed")
		failed := s.finishFailed(jobID, err)
		if failed != nil {
			s.publisher.Publish(&importjob.FailedEvent{Result: failed})
		}
	}
}

func (s *ImportService) execute(ctx context.Context, jobID uuid.UUID, projectID int64, storedPath string, log *logrus.Entry) (*importjob.Job, error) {
	if _, err := s.advance(ctx, jobID, importjob.StatusUploading, 0); err != nil {
		return nil, err
	}
	contents, err := os.ReadFile(storedPath)
	if err != nil {
		return nil, err
	}
	if _, err := s.advance(ctx, jobID, importjob.StatusUploading, 1); err != nil {
		return nil, err
	}

	if _, err := s.advance(ctx, jobID, importjob.StatusParsing, 0); err != nil {
		return nil, err
	}
	parsed, err := s.parser.Parse(ctx, contents)
	if err != nil {
		return nil, err
	}
	if _, err := s.advance(ctx, jobID, importjob.StatusParsing, 1); err != nil {
		return nil, err
	}

	if _, err := s.advance(ctx, jobID, importjob.StatusCreatingRecords, 0); err != nil {
		return nil, err
	}
	forest, err := hierarchy.Build(parsed.Tasks, hierarchy.Options{MaxDropRatio: s.conf.MaxDropRatio})
	if err != nil {
		return nil, err
	}
	for _, d := range forest.Defects {
		log.WithField("external_id", d.ExternalID).Warn(d.String())
	}

	var assignmentCount int
	err = s.inPoolTx(ctx, func(txCtx context.Context) error {
		// Replacing the tree wholesale: the previous import's nodes go
		// away only inside the same transaction that creates the new
		// ones, so a failure changes nothing.
		if err := s.wbsRepo.DeleteByProject(txCtx, projectID); err != nil {
			return err
		}
		created, err := s.createTree(txCtx, projectID, forest)
		if err != nil {
			return err
		}
		prelim := collectPreliminaryAssignments(forest, created)
		if err := s.assignments.CreateMany(txCtx, prelim); err != nil {
			return err
		}
		assignmentCount = len(prelim)
		if err := s.rollups.RecomputeAll(txCtx, created); err != nil {
			return err
		}
		project, err := s.projects.GetByID(txCtx, projectID)
		if err != nil {
			return err
		}
		job, err := s.jobs.GetByID(txCtx, jobID)
		if err != nil {
			return err
		}
		project.SourceFilename = job.StoredFilename
		project.TaskCount = len(created)
		project.ResourceCount = parsed.ResourceCount
		if err := s.projects.UpdateImportSummary(txCtx, project); err != nil {
			return err
		}
		s.publisher.Publish(&wbs.TreeReplacedEvent{ProjectID: projectID, NodeCount: len(created)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if _, err := s.advance(ctx, jobID, importjob.StatusCreatingRecords, 1); err != nil {
		return nil, err
	}

	return s.finishCompleted(ctx, jobID, len(forest.Nodes), parsed.ResourceCount, assignmentCount)
}

func (s *ImportService) createTree(txCtx context.Context, projectID int64, forest *hierarchy.Forest) ([]*wbs.Node, error) {
	inserts := make([]wbs.TreeInsert, len(forest.Nodes))
	for i, fn := range forest.Nodes {
		rec := fn.Record
		supplied := rec.OutlineLevel
		inserts[i] = wbs.TreeInsert{
			ParentIndex: fn.Parent,
			Node: &wbs.Node{
				ExternalUniqueID:     rec.ExternalUniqueID,
				WBSCode:              fn.WBSCode,
				Title:                rec.Title,
				OutlineLevel:         fn.Depth,
				SuppliedOutlineLevel: &supplied,
				ScheduleStart:        rec.ScheduleStart,
				ScheduleFinish:       rec.ScheduleFinish,
				BaselineStart:        rec.BaselineStart,
				BaselineFinish:       rec.BaselineFinish,
				LateStart:            rec.LateStart,
				LateFinish:           rec.LateFinish,
				PercentComplete:      rec.PercentComplete,
				IsMilestone:          rec.IsMilestone,
				IsSummary:            rec.IsSummary || len(fn.Children) > 0,
				IsCritical:           rec.IsCritical,
			},
		}
	}
	return s.wbsRepo.CreateTree(txCtx, projectID, inserts)
}

func collectPreliminaryAssignments(forest *hierarchy.Forest, created []*wbs.Node) []*assignment.Assignment {
	var out []*assignment.Assignment
	for i, fn := range forest.Nodes {
		for _, pa := range fn.Record.Assignments {
			a := &assignment.Assignment{
				WBSID:          created[i].ID,
				ResourceCode:   pa.ResourceCode,
				BestEstimate:   pa.BestEstimate,
				LikelyEstimate: pa.LikelyEstimate,
				WorstEstimate:  pa.WorstEstimate,
			}
			a.Derive()
			out = append(out, a)
		}
	}
	return out
}

// advance moves the job's status/progress in its own small transaction.
// A missing row means the job went terminal underneath us, which during
// cancellation is expected; the context error takes precedence then.
func (s *ImportService) advance(ctx context.Context, jobID uuid.UUID, status string, fraction float64) (*importjob.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var job *importjob.Job
	err := s.inPoolTx(ctx, func(txCtx context.Context) error {
		var err error
		job, err = s.jobs.Advance(txCtx, jobID, status, importjob.ProgressFor(status, fraction))
		return err
	})
	if err != nil {
		if errors.Is(err, persistence.ErrImportJobNotFound) && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return job, nil
}

func (s *ImportService) finishCompleted(ctx context.Context, jobID uuid.UUID, tasks, resources, assignments int) (*importjob.Job, error) {
	var job *importjob.Job
	err := s.inPoolTx(ctx, func(txCtx context.Context) error {
		var err error
		job, err = s.jobs.Finish(txCtx, &importjob.Job{
			ID:              jobID,
			Status:          importjob.StatusCompleted,
			ProgressPercent: 100,
			TaskCount:       tasks,
			ResourceCount:   resources,
			AssignmentCount: assignments,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// finishFailed records the causal error verbatim. It runs on a fresh
// context so a cancelled or broken stage context cannot block the write.
func (s *ImportService) finishFailed(jobID uuid.UUID, cause error) *importjob.Job {
	msg := cause.Error()
	ctx := s.freshCtx()
	var job *importjob.Job
	err := s.inPoolTx(ctx, func(txCtx context.Context) error {
		var err error
		job, err = s.jobs.Finish(txCtx, &importjob.Job{
			ID:           jobID,
			Status:       importjob.StatusFailed,
			ErrorMessage: &msg,
		})
		return err
	})
	if err != nil {
		s.logger.WithError(err).WithField("job_id", jobID).Error("failed to record import failure")
		return nil
	}
	return job
}

func (s *ImportService) freshCtx() context.Context {
	return s.baseCtx
}

func (s *ImportService) inPoolTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return composables.InTx(ctx, fn)
}
