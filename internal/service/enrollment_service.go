package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/benglish/academic-core/internal/models"
	appErrors "github.com/benglish/academic-core/pkg/errors"
)

type enrollmentStore interface {
	Create(ctx context.Context, enrollment *models.Enrollment) error
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error)
	FindActiveByStudent(ctx context.Context, studentID string) (*models.Enrollment, error)
	UpdateState(ctx context.Context, id string, from, to models.EnrollmentState) (bool, error)
	InsertProgressRows(ctx context.Context, enrollmentID string, subjectIDs []string) (int64, error)
	ListProgress(ctx context.Context, enrollmentID string) ([]models.EnrollmentProgress, error)
}

type planReader interface {
	FindByID(ctx context.Context, id string) (*models.Plan, error)
}

// CreateEnrollmentRequest describes enrollment creation. Activate moves the new
// enrollment straight to enrolled.
type CreateEnrollmentRequest struct {
	StudentID string     `json:"student_id" validate:"required"`
	PlanID    string     `json:"plan_id" validate:"required"`
	StartDate *time.Time `json:"start_date"`
	Activate  bool       `json:"activate"`
}

// TransitionEnrollmentRequest requests a manual state change.
type TransitionEnrollmentRequest struct {
	State models.EnrollmentState `json:"state" validate:"required,oneof=enrolled in_progress suspended cancelled"`
}

// EnrollmentDetail is an enrollment with its per-subject progress.
type EnrollmentDetail struct {
	models.Enrollment
	Progress []models.EnrollmentProgress `json:"progress"`
}

// EnrollmentService orchestrates enrollment workflows.
type EnrollmentService struct {
	repo      enrollmentStore
	students  studentReader
	plans     planReader
	progress  progressRecomputer
	tx        transactor
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentStore, students studentReader, plans planReader, progress progressRecomputer, tx transactor, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, students: students, plans: plans, progress: progress, tx: tx, validator: validate, logger: logger}
}

// Create enrolls a student in a plan and materialises one pending progress row per plan
// subject.
func (s *EnrollmentService) Create(ctx context.Context, req CreateEnrollmentRequest) (*EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid enrollment payload")
	}
	start := time.Now().UTC()
	if req.StartDate != nil {
		start = req.StartDate.UTC()
	}

	enrollment := &models.Enrollment{
		StudentID: req.StudentID,
		PlanID:    req.PlanID,
		State:     models.EnrollmentDraft,
		StartDate: dateOnly(start),
	}
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
			return lookupError(err, "student")
		}
		plan, err := s.plans.FindByID(ctx, req.PlanID)
		if err != nil {
			return lookupError(err, "plan")
		}
		if !plan.Active {
			return appErrors.Clone(appErrors.ErrValidation, "plan is not active")
		}
		if req.Activate {
			if err := s.ensureNoActive(ctx, req.StudentID, ""); err != nil {
				return err
			}
		}
		if err := s.repo.Create(ctx, enrollment); err != nil {
			return internalError(err, "failed to create enrollment")
		}
		if _, err := s.repo.InsertProgressRows(ctx, enrollment.ID, plan.SubjectIDs); err != nil {
			return internalError(err, "failed to create enrollment progress")
		}
		if req.Activate {
			if _, err := s.repo.UpdateState(ctx, enrollment.ID, models.EnrollmentDraft, models.EnrollmentEnrolled); err != nil {
				return internalError(err, "failed to activate enrollment")
			}
			enrollment.State = models.EnrollmentEnrolled
			return s.progress.RecomputeMany(ctx, []string{req.StudentID})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("enrollment created",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("student_id", enrollment.StudentID),
		zap.String("plan_id", enrollment.PlanID))
	return s.Get(ctx, enrollment.ID)
}

// Transition applies a manual state change. completed is reached only through progress.
func (s *EnrollmentService) Transition(ctx context.Context, id string, req TransitionEnrollmentRequest) (*EnrollmentDetail, error) {
	if req.State == models.EnrollmentCompleted {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "completed is set automatically when every plan subject is completed")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid transition payload")
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return lookupError(err, "enrollment")
		}
		if !current.State.CanTransitionTo(req.State) {
			return appErrors.Clone(appErrors.ErrInvalidTransition,
				fmt.Sprintf("enrollment cannot move from %s to %s", current.State, req.State))
		}
		if req.State.Active() && !current.State.Active() {
			if err := s.ensureNoActive(ctx, current.StudentID, current.ID); err != nil {
				return err
			}
		}
		ok, err := s.repo.UpdateState(ctx, id, current.State, req.State)
		if err != nil {
			return internalError(err, "failed to update enrollment state")
		}
		if !ok {
			return appErrors.Clone(appErrors.ErrConflict, "enrollment state changed concurrently")
		}
		return s.progress.RecomputeMany(ctx, []string{current.StudentID})
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Get returns an enrollment with its progress rows.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*EnrollmentDetail, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "enrollment")
	}
	progress, err := s.repo.ListProgress(ctx, id)
	if err != nil {
		return nil, internalError(err, "failed to load enrollment progress")
	}
	return &EnrollmentDetail{Enrollment: *enrollment, Progress: progress}, nil
}

// ListByStudent returns every enrollment of a student, newest first.
func (s *EnrollmentService) ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	enrollments, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, internalError(err, "failed to list enrollments")
	}
	return enrollments, nil
}

func (s *EnrollmentService) ensureNoActive(ctx context.Context, studentID, excludeID string) error {
	active, err := s.repo.FindActiveByStudent(ctx, studentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return internalError(err, "failed to check active enrollment")
	}
	if active.ID == excludeID {
		return nil
	}
	return appErrors.Clone(appErrors.ErrConflict, "student already has an active enrollment")
}
