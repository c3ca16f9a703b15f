package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/edubase/reportcard-api/pkg/errors"
	"github.com/edubase/reportcard-api/pkg/jobs"
)

// Maintenance job types dispatched through the background queue.
const (
	JobTypeTermSync    = "maintenance.term_sync"
	JobTypeExamSync    = "maintenance.exam_sync"
	JobTypeClassRepair = "maintenance.class_repair"
)

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// MaintenanceScheduler enqueues maintenance work for asynchronous
// execution.
type MaintenanceScheduler struct {
	queue  jobDispatcher
	logger *zap.Logger
}

// NewMaintenanceScheduler constructs MaintenanceScheduler.
func NewMaintenanceScheduler(queue jobDispatcher, logger *zap.Logger) *MaintenanceScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MaintenanceScheduler{queue: queue, logger: logger}
}

// ScheduleTermSync queues a term-wide exam score re-sync. An empty
// termID means the current term.
func (s *MaintenanceScheduler) ScheduleTermSync(termID string) (string, error) {
	return s.schedule(JobTypeTermSync, termID)
}

// ScheduleExamSync queues a sync of one exam's results.
func (s *MaintenanceScheduler) ScheduleExamSync(examID string) (string, error) {
	return s.schedule(JobTypeExamSync, examID)
}

// ScheduleClassRepair queues a prune-then-reconcile pass over one
// class's report cards, typically after a subject mapping change.
func (s *MaintenanceScheduler) ScheduleClassRepair(classID string) (string, error) {
	return s.schedule(JobTypeClassRepair, classID)
}

func (s *MaintenanceScheduler) schedule(jobType, payload string) (string, error) {
	jobID := uuid.NewString()
	if err := s.queue.Enqueue(jobs.Job{ID: jobID, Type: jobType, Payload: payload}); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue maintenance job")
	}
	s.logger.Info("maintenance job queued",
		zap.String("job_id", jobID),
		zap.String("type", jobType))
	return jobID, nil
}

// MaintenanceWorker bridges queue jobs to MaintenanceService.
type MaintenanceWorker struct {
	maintenance *MaintenanceService
	logger      *zap.Logger
}

// NewMaintenanceWorker constructs a worker.
func NewMaintenanceWorker(maintenance *MaintenanceService, logger *zap.Logger) *MaintenanceWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MaintenanceWorker{maintenance: maintenance, logger: logger}
}

// Handle processes a queue job.
func (w *MaintenanceWorker) Handle(ctx context.Context, job jobs.Job) error {
	payload := job.Payload
	var (
		result *MaintenanceResult
		err    error
	)
	switch job.Type {
	case JobTypeTermSync:
		result, err = w.maintenance.SyncAllMissingExamScores(ctx, payload)
	case JobTypeExamSync:
		result, err = w.maintenance.SyncExamResultsToReportCards(ctx, payload)
	case JobTypeClassRepair:
		result, err = w.repairClass(ctx, payload)
	default:
		w.logger.Warn("unknown maintenance job type", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}
	if err != nil {
		return fmt.Errorf("maintenance job %s (%s): %w", job.ID, job.Type, err)
	}
	w.logger.Info("maintenance job finished",
		zap.String("job_id", job.ID),
		zap.String("type", job.Type),
		zap.Int("processed", result.Processed),
		zap.Int("added", result.Added),
		zap.Int("removed", result.Removed),
		zap.Int("synced", result.Synced),
		zap.Int("errors", len(result.Errors)))
	return nil
}

func (w *MaintenanceWorker) repairClass(ctx context.Context, classID string) (*MaintenanceResult, error) {
	pruned, err := w.maintenance.CleanupReportCards(ctx, []string{classID})
	if err != nil {
		return nil, err
	}
	added, err := w.maintenance.AddMissingSubjects(ctx, []string{classID})
	if err != nil {
		return nil, err
	}
	combined := &MaintenanceResult{
		Processed: pruned.Processed,
		Added:     added.Added,
		Removed:   pruned.Removed,
		Errors:    append(pruned.Errors, added.Errors...),
	}
	return combined, nil
}
