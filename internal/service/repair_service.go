package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/benglish/academic-core/internal/curriculum"
	appErrors "github.com/benglish/academic-core/pkg/errors"
)

// Maintenance task names accepted by RepairService.Run.
const (
	TaskDeactivateSkillsExtras     = "deactivate-skills-extras"
	TaskFixSubjectProgramIDs       = "fix-subject-program-ids"
	TaskRecomputeProgress          = "recompute-progress"
	TaskRebuildSessionTracking     = "rebuild-session-tracking"
	TaskBackfillEnrollmentProgress = "backfill-enrollment-progress"
	TaskReconcilePlans             = "reconcile-plans"
	TaskNullZeroGrades             = "null-zero-grades"
	TaskCheckCatalog               = "check-catalog"
)

const defaultRepairBatch = 500

type catalogMaintenance interface {
	SetExtraBSkillsActive(ctx context.Context, threshold int, active bool, limit int) (int64, error)
	SyncSubjectPrograms(ctx context.Context, limit int) (int64, error)
}

type studentLister interface {
	ListIDs(ctx context.Context, after string, limit int) ([]string, error)
}

type enrollmentBackfiller interface {
	BackfillProgress(ctx context.Context, limit int) (int64, error)
}

type zeroGradeCleaner interface {
	NullZeroGrades(ctx context.Context) (int64, error)
}

type sessionTrackingRebuilder interface {
	BackfillEffectiveSubjects(ctx context.Context, batchSize int) (int, error)
}

type planReconciler interface {
	ReconcileAll(ctx context.Context, batchSize int) (int, error)
}

type catalogChecker interface {
	Check(ctx context.Context) (CatalogReport, error)
}

// RepairOptions tune a maintenance run.
type RepairOptions struct {
	BatchSize int
	// Revert reactivates extra bskills instead of deactivating them.
	Revert bool
}

// RepairResult summarises a maintenance run.
type RepairResult struct {
	Task     string         `json:"task"`
	Affected int64          `json:"affected"`
	Duration time.Duration  `json:"duration"`
	Report   *CatalogReport `json:"report,omitempty"`
}

// RepairDeps groups the collaborators of RepairService.
type RepairDeps struct {
	Catalog     catalogMaintenance
	Checker     catalogChecker
	Students    studentLister
	Progress    progressRecomputer
	Enrollments enrollmentBackfiller
	History     zeroGradeCleaner
	Seats       zeroGradeCleaner
	Sessions    sessionTrackingRebuilder
	Plans       planReconciler
}

// RepairService runs idempotent batch repairs. Every batch commits on its own so an
// interrupted run can simply be started again.
type RepairService struct {
	deps    RepairDeps
	tx      transactor
	metrics *MetricsService
	logger  *zap.Logger
	tasks   map[string]func(context.Context, RepairOptions) (RepairResult, error)
}

// NewRepairService constructs RepairService.
func NewRepairService(deps RepairDeps, tx transactor, metrics *MetricsService, logger *zap.Logger) *RepairService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &RepairService{deps: deps, tx: tx, metrics: metrics, logger: logger}
	s.tasks = map[string]func(context.Context, RepairOptions) (RepairResult, error){
		TaskDeactivateSkillsExtras:     s.deactivateSkillsExtras,
		TaskFixSubjectProgramIDs:       s.fixSubjectProgramIDs,
		TaskRecomputeProgress:          s.recomputeProgress,
		TaskRebuildSessionTracking:     s.rebuildSessionTracking,
		TaskBackfillEnrollmentProgress: s.backfillEnrollmentProgress,
		TaskReconcilePlans:             s.reconcilePlans,
		TaskNullZeroGrades:             s.nullZeroGrades,
		TaskCheckCatalog:               s.checkCatalog,
	}
	return s
}

// Tasks lists the registered task names.
func (s *RepairService) Tasks() []string {
	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes task.
func (s *RepairService) Run(ctx context.Context, task string, opts RepairOptions) (RepairResult, error) {
	fn, ok := s.tasks[task]
	if !ok {
		return RepairResult{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown maintenance task %q", task))
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultRepairBatch
	}
	start := time.Now()
	result, err := fn(ctx, opts)
	result.Task = task
	result.Duration = time.Since(start)
	s.metrics.RecordMaintenance(task, err)
	if err != nil {
		s.logger.Error("maintenance task failed", zap.String("task", task), zap.Int64("affected", result.Affected), zap.Error(err))
		return result, err
	}
	s.logger.Info("maintenance task finished",
		zap.String("task", task),
		zap.Int64("affected", result.Affected),
		zap.Duration("duration", result.Duration))
	return result, nil
}

// batches repeats step, one transaction per call, until it reports no rows.
func (s *RepairService) batches(ctx context.Context, step func(ctx context.Context) (int64, error)) (int64, error) {
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		var n int64
		err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
			var err error
			n, err = step(ctx)
			return err
		})
		if err != nil {
			return total, internalError(err, "maintenance batch failed")
		}
		total += n
		if n == 0 {
			return total, nil
		}
	}
}

func (s *RepairService) deactivateSkillsExtras(ctx context.Context, opts RepairOptions) (RepairResult, error) {
	n, err := s.batches(ctx, func(ctx context.Context) (int64, error) {
		return s.deps.Catalog.SetExtraBSkillsActive(ctx, curriculum.RequiredBSkills, opts.Revert, opts.BatchSize)
	})
	return RepairResult{Affected: n}, err
}

func (s *RepairService) fixSubjectProgramIDs(ctx context.Context, opts RepairOptions) (RepairResult, error) {
	n, err := s.batches(ctx, func(ctx context.Context) (int64, error) {
		return s.deps.Catalog.SyncSubjectPrograms(ctx, opts.BatchSize)
	})
	return RepairResult{Affected: n}, err
}

func (s *RepairService) backfillEnrollmentProgress(ctx context.Context, opts RepairOptions) (RepairResult, error) {
	n, err := s.batches(ctx, func(ctx context.Context) (int64, error) {
		return s.deps.Enrollments.BackfillProgress(ctx, opts.BatchSize)
	})
	return RepairResult{Affected: n}, err
}

func (s *RepairService) recomputeProgress(ctx context.Context, opts RepairOptions) (RepairResult, error) {
	var total int64
	after := ""
	for {
		ids, err := s.deps.Students.ListIDs(ctx, after, opts.BatchSize)
		if err != nil {
			return RepairResult{Affected: total}, internalError(err, "failed to list students")
		}
		if len(ids) == 0 {
			return RepairResult{Affected: total}, nil
		}
		if err := s.deps.Progress.RecomputeMany(ctx, ids); err != nil {
			return RepairResult{Affected: total}, err
		}
		total += int64(len(ids))
		after = ids[len(ids)-1]
	}
}

func (s *RepairService) rebuildSessionTracking(ctx context.Context, opts RepairOptions) (RepairResult, error) {
	n, err := s.deps.Sessions.BackfillEffectiveSubjects(ctx, opts.BatchSize)
	return RepairResult{Affected: int64(n)}, err
}

func (s *RepairService) reconcilePlans(ctx context.Context, opts RepairOptions) (RepairResult, error) {
	n, err := s.deps.Plans.ReconcileAll(ctx, opts.BatchSize)
	return RepairResult{Affected: int64(n)}, err
}

// nullZeroGrades clears grades that were stored as 0 without ever being registered.
// History goes first so a crash between the two steps leaves seats still fixable.
func (s *RepairService) nullZeroGrades(ctx context.Context, _ RepairOptions) (RepairResult, error) {
	var total int64
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		n, err := s.deps.History.NullZeroGrades(ctx)
		if err != nil {
			return err
		}
		total += n
		return nil
	})
	if err != nil {
		return RepairResult{Affected: total}, internalError(err, "failed to clear history grades")
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		n, err := s.deps.Seats.NullZeroGrades(ctx)
		if err != nil {
			return err
		}
		total += n
		return nil
	})
	if err != nil {
		return RepairResult{Affected: total}, internalError(err, "failed to clear seat grades")
	}
	return RepairResult{Affected: total}, nil
}

func (s *RepairService) checkCatalog(ctx context.Context, _ RepairOptions) (RepairResult, error) {
	report, err := s.deps.Checker.Check(ctx)
	if err != nil {
		return RepairResult{}, err
	}
	result := RepairResult{Affected: int64(len(report.Mismatches) + len(report.Problems)), Report: &report}
	if !report.OK() {
		for _, p := range report.Problems {
			s.logger.Warn("catalog problem", zap.String("subject_id", p.SubjectID), zap.String("problem", p.Message))
		}
	}
	return result, nil
}
