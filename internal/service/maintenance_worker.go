package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/benglish/academic-core/pkg/jobs"
	appErrors "github.com/benglish/academic-core/pkg/errors"
)

// JobNightlySuite runs every task of NightlySuite in order, then purges expired exports.
const JobNightlySuite = "nightly-suite"

// NightlySuite is the ordered task list run on the maintenance schedule. Catalog fixes come
// first so that progress and tracking are rebuilt on a consistent catalog.
var NightlySuite = []string{
	TaskFixSubjectProgramIDs,
	TaskReconcilePlans,
	TaskBackfillEnrollmentProgress,
	TaskNullZeroGrades,
	TaskRebuildSessionTracking,
	TaskRecomputeProgress,
	TaskCheckCatalog,
}

type maintenanceRunner interface {
	Tasks() []string
	Run(ctx context.Context, task string, opts RepairOptions) (RepairResult, error)
}

type jobQueue interface {
	Register(jobType string, handler jobs.Handler)
	Enqueue(job jobs.Job) (string, error)
}

type exportCleaner interface {
	Cleanup(ttl time.Duration) ([]string, error)
}

// MaintenanceWorker bridges queue jobs and the cron schedule to RepairService.
type MaintenanceWorker struct {
	runner    maintenanceRunner
	queue     jobQueue
	exports   exportCleaner
	batchSize int
	known     map[string]struct{}
	logger    *zap.Logger
}

// NewMaintenanceWorker registers one job type per maintenance task plus the nightly suite.
func NewMaintenanceWorker(runner maintenanceRunner, queue jobQueue, exports exportCleaner, batchSize int, logger *zap.Logger) *MaintenanceWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &MaintenanceWorker{
		runner:    runner,
		queue:     queue,
		exports:   exports,
		batchSize: batchSize,
		known:     make(map[string]struct{}),
		logger:    logger,
	}
	for _, task := range runner.Tasks() {
		w.known[task] = struct{}{}
		queue.Register(task, w.Handle)
	}
	queue.Register(JobNightlySuite, w.handleSuite)
	return w
}

// Tasks lists the tasks that can be queued.
func (w *MaintenanceWorker) Tasks() []string {
	return w.runner.Tasks()
}

// Enqueue schedules task on the job queue and returns the job id.
func (w *MaintenanceWorker) Enqueue(task string, revert bool) (string, error) {
	if _, ok := w.known[task]; !ok && task != JobNightlySuite {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown maintenance task %q", task))
	}
	id, err := w.queue.Enqueue(jobs.Job{Type: task, Payload: map[string]string{"revert": strconv.FormatBool(revert)}})
	if err != nil {
		return "", internalError(err, "failed to queue maintenance task")
	}
	w.logger.Info("maintenance task queued", zap.String("task", task), zap.String("job_id", id))
	return id, nil
}

// Handle runs the task named by the job type.
func (w *MaintenanceWorker) Handle(ctx context.Context, job jobs.Job) error {
	revert, _ := strconv.ParseBool(job.Payload["revert"])
	_, err := w.runner.Run(ctx, job.Type, RepairOptions{BatchSize: w.batchSize, Revert: revert})
	return err
}

func (w *MaintenanceWorker) handleSuite(ctx context.Context, _ jobs.Job) error {
	for _, task := range NightlySuite {
		if _, ok := w.known[task]; !ok {
			continue
		}
		if _, err := w.runner.Run(ctx, task, RepairOptions{BatchSize: w.batchSize}); err != nil {
			return fmt.Errorf("nightly suite %s: %w", task, err)
		}
	}
	if w.exports != nil {
		removed, err := w.exports.Cleanup(0)
		if err != nil {
			w.logger.Warn("export cleanup failed", zap.Error(err))
		} else if len(removed) > 0 {
			w.logger.Info("expired exports removed", zap.Int("count", len(removed)))
		}
	}
	return nil
}

// Schedule returns a cron that queues the nightly suite on spec. An empty spec yields nil.
// The caller starts and stops the cron.
func (w *MaintenanceWorker) Schedule(spec string) (*cron.Cron, error) {
	if spec == "" {
		return nil, nil
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err := c.AddFunc(spec, func() {
		if _, err := w.Enqueue(JobNightlySuite, false); err != nil {
			w.logger.Warn("failed to queue nightly maintenance", zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("parse maintenance schedule %q: %w", spec, err)
	}
	return c, nil
}
