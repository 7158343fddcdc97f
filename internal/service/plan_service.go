package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/benglish/academic-core/internal/models"
)

type planStore interface {
	FindByID(ctx context.Context, id string) (*models.Plan, error)
	SubjectIDs(ctx context.Context, planID string) ([]string, error)
	ListIDs(ctx context.Context, after string, limit int) ([]string, error)
	Save(ctx context.Context, plan *models.Plan) error
	ReconcileSubjects(ctx context.Context, planID string) (models.PlanReconciliation, error)
}

type planEnrollmentStore interface {
	ListActiveByPlan(ctx context.Context, planID string) ([]models.Enrollment, error)
	PruneProgressRows(ctx context.Context, planID string) (int64, error)
	InsertProgressRows(ctx context.Context, enrollmentID string, subjectIDs []string) (int64, error)
}

// SavePlanRequest describes a plan and the levels and phases it covers.
type SavePlanRequest struct {
	ID        string   `json:"id"`
	ProgramID string   `json:"program_id" validate:"required"`
	Code      string   `json:"code" validate:"required"`
	Name      string   `json:"name" validate:"required"`
	Active    bool     `json:"active"`
	PhaseIDs  []string `json:"phase_ids"`
	LevelIDs  []string `json:"level_ids"`
}

// PlanService keeps plan subject sets derived from their levels.
type PlanService struct {
	repo        planStore
	enrollments planEnrollmentStore
	progress    progressRecomputer
	tx          transactor
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewPlanService constructs PlanService.
func NewPlanService(repo planStore, enrollments planEnrollmentStore, progress progressRecomputer, tx transactor, validate *validator.Validate, logger *zap.Logger) *PlanService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlanService{repo: repo, enrollments: enrollments, progress: progress, tx: tx, validator: validate, logger: logger}
}

// Get returns a plan with its phases, levels and subjects.
func (s *PlanService) Get(ctx context.Context, id string) (*models.Plan, error) {
	plan, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "plan")
	}
	return plan, nil
}

// Save stores a plan and recomputes its subject set in the same transaction.
func (s *PlanService) Save(ctx context.Context, req SavePlanRequest) (*models.Plan, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid plan payload")
	}
	plan := &models.Plan{
		ID:        req.ID,
		ProgramID: req.ProgramID,
		Code:      req.Code,
		Name:      req.Name,
		Active:    req.Active,
		PhaseIDs:  req.PhaseIDs,
		LevelIDs:  req.LevelIDs,
	}
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Save(ctx, plan); err != nil {
			return internalError(err, "failed to save plan")
		}
		_, err := s.reconcile(ctx, plan.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, plan.ID)
}

// Reconcile recomputes the plan subject set, aligns the progress rows of its open
// enrollments with it and recomputes the affected students.
func (s *PlanService) Reconcile(ctx context.Context, planID string) (models.PlanReconciliation, error) {
	var result models.PlanReconciliation
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.FindByID(ctx, planID); err != nil {
			return lookupError(err, "plan")
		}
		var err error
		result, err = s.reconcile(ctx, planID)
		return err
	})
	return result, err
}

func (s *PlanService) reconcile(ctx context.Context, planID string) (models.PlanReconciliation, error) {
	result, err := s.repo.ReconcileSubjects(ctx, planID)
	if err != nil {
		return result, internalError(err, "failed to reconcile plan subjects")
	}
	pruned, err := s.enrollments.PruneProgressRows(ctx, planID)
	if err != nil {
		return result, internalError(err, "failed to prune enrollment progress")
	}
	subjectIDs, err := s.repo.SubjectIDs(ctx, planID)
	if err != nil {
		return result, internalError(err, "failed to load plan subjects")
	}
	enrollments, err := s.enrollments.ListActiveByPlan(ctx, planID)
	if err != nil {
		return result, internalError(err, "failed to load plan enrollments")
	}

	var added int64
	students := make([]string, 0, len(enrollments))
	for _, enrollment := range enrollments {
		n, err := s.enrollments.InsertProgressRows(ctx, enrollment.ID, subjectIDs)
		if err != nil {
			return result, internalError(err, "failed to add enrollment progress")
		}
		added += n
		students = append(students, enrollment.StudentID)
	}
	if result.Changed() || pruned > 0 || added > 0 {
		s.logger.Info("plan reconciled",
			zap.String("plan_id", planID),
			zap.Int64("subjects_added", result.Added),
			zap.Int64("subjects_removed", result.Removed),
			zap.Int64("progress_added", added),
			zap.Int64("progress_pruned", pruned))
	}
	if err := s.progress.RecomputeMany(ctx, students); err != nil {
		return result, err
	}
	return result, nil
}

// ReconcileAll reconciles every plan, one transaction per plan.
func (s *PlanService) ReconcileAll(ctx context.Context, batchSize int) (int, error) {
	changed := 0
	after := ""
	for {
		ids, err := s.repo.ListIDs(ctx, after, batchSize)
		if err != nil {
			return changed, internalError(err, "failed to list plans")
		}
		if len(ids) == 0 {
			return changed, nil
		}
		for _, id := range ids {
			result, err := s.Reconcile(ctx, id)
			if err != nil {
				return changed, err
			}
			if result.Changed() {
				changed++
			}
		}
		after = ids[len(ids)-1]
	}
}
