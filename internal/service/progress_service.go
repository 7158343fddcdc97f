package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/benglish/academic-core/internal/curriculum"
	"github.com/benglish/academic-core/internal/models"
	"github.com/benglish/academic-core/pkg/database"
)

type studentStore interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByCode(ctx context.Context, code string) (*models.Student, error)
	LockProgress(ctx context.Context, studentID string) error
	UpdateProgress(ctx context.Context, update models.StudentProgressUpdate) error
	FindLevelForUnit(ctx context.Context, programID string, unit int) (*models.Level, error)
}

type ledgerReader interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.AcademicHistory, error)
}

type progressEnrollmentStore interface {
	FindActiveByStudent(ctx context.Context, studentID string) (*models.Enrollment, error)
	UpdateState(ctx context.Context, id string, from, to models.EnrollmentState) (bool, error)
	UpdateProgressStates(ctx context.Context, enrollmentID string, states map[string]models.ProgressState) error
}

type planSubjectReader interface {
	SubjectIDs(ctx context.Context, planID string) ([]string, error)
}

type catalogLoader interface {
	Catalog(ctx context.Context, programID string) (*curriculum.Catalog, error)
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string)
}

// StudentProgress is the derived progress of one student.
type StudentProgress struct {
	StudentID string `json:"student_id"`
	curriculum.Progress
	CurrentPhaseID  *string                         `json:"current_phase_id,omitempty"`
	CurrentLevelID  *string                         `json:"current_level_id,omitempty"`
	EnrollmentID    *string                         `json:"enrollment_id,omitempty"`
	EnrollmentState models.EnrollmentState          `json:"enrollment_state,omitempty"`
	SubjectStates   map[string]models.ProgressState `json:"subject_states,omitempty"`
	ComputedAt      time.Time                       `json:"computed_at"`
}

// ProgressService derives unit, percentage and hours from the history ledger and keeps the
// stored student columns and enrollment progress rows in line with it.
type ProgressService struct {
	students    studentStore
	history     ledgerReader
	enrollments progressEnrollmentStore
	plans       planSubjectReader
	catalog     catalogLoader
	cache       cacheInvalidator
	metrics     *MetricsService
	tx          transactor
	logger      *zap.Logger
	now         func() time.Time
}

// NewProgressService constructs ProgressService.
func NewProgressService(students studentStore, history ledgerReader, enrollments progressEnrollmentStore, plans planSubjectReader, catalog catalogLoader, cache cacheInvalidator, metrics *MetricsService, tx transactor, logger *zap.Logger) *ProgressService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressService{
		students:    students,
		history:     history,
		enrollments: enrollments,
		plans:       plans,
		catalog:     catalog,
		cache:       cache,
		metrics:     metrics,
		tx:          tx,
		logger:      logger,
		now:         time.Now,
	}
}

// Compute derives progress without writing anything.
func (s *ProgressService) Compute(ctx context.Context, studentID string) (*StudentProgress, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		return nil, lookupError(err, "student")
	}
	progress, _, err := s.derive(ctx, student)
	return progress, err
}

// Recompute derives progress under the student's advisory lock and persists it, moving the
// active enrollment to in_progress or completed when its progress rows call for it.
func (s *ProgressService) Recompute(ctx context.Context, studentID string) (*StudentProgress, error) {
	started := time.Now()
	var result *StudentProgress
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.students.LockProgress(ctx, studentID); err != nil {
			return internalError(err, "failed to lock student progress")
		}
		student, err := s.students.FindByID(ctx, studentID)
		if err != nil {
			return lookupError(err, "student")
		}
		progress, enrollment, err := s.derive(ctx, student)
		if err != nil {
			return err
		}
		if err := s.persist(ctx, student, progress, enrollment); err != nil {
			return err
		}
		result = progress
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveProgressRecompute(time.Since(started))
	if s.cache != nil {
		// invalidate only once the outermost transaction is visible to agenda readers
		database.AfterCommit(ctx, func() {
			s.cache.Invalidate(ctx, "agenda:"+studentID+":*")
		})
	}
	return result, nil
}

// RecomputeMany recomputes each distinct student in ascending id order so concurrent
// callers take the advisory locks in the same order.
func (s *ProgressService) RecomputeMany(ctx context.Context, studentIDs []string) error {
	for _, id := range uniqueSorted(studentIDs) {
		if _, err := s.Recompute(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *ProgressService) derive(ctx context.Context, student *models.Student) (*StudentProgress, *models.Enrollment, error) {
	cat, err := s.catalog.Catalog(ctx, derefString(student.ProgramID))
	if err != nil {
		return nil, nil, err
	}
	rows, err := s.history.ListByStudent(ctx, student.ID)
	if err != nil {
		return nil, nil, internalError(err, "failed to load academic history")
	}
	ledger := curriculum.NewLedger(rows)

	enrollment, err := s.enrollments.FindActiveByStudent(ctx, student.ID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, nil, internalError(err, "failed to load active enrollment")
	}
	if errors.Is(err, sql.ErrNoRows) {
		enrollment = nil
	}

	var planSubjects []string
	if enrollment != nil {
		planSubjects, err = s.plans.SubjectIDs(ctx, enrollment.PlanID)
		if err != nil {
			return nil, nil, internalError(err, "failed to load plan subjects")
		}
	}

	result := &StudentProgress{
		StudentID:  student.ID,
		Progress:   curriculum.Compute(cat, planSubjects, ledger),
		ComputedAt: s.now().UTC(),
	}
	if enrollment != nil {
		id := enrollment.ID
		result.EnrollmentID = &id
		result.EnrollmentState = enrollment.State
		result.SubjectStates = curriculum.ProgressStates(planSubjects, ledger)
	}

	if student.ProgramID != nil && result.CurrentUnit > 0 {
		level, err := s.students.FindLevelForUnit(ctx, *student.ProgramID, result.CurrentUnit)
		switch {
		case err == nil:
			levelID, phaseID := level.ID, level.PhaseID
			result.CurrentLevelID = &levelID
			result.CurrentPhaseID = &phaseID
		case errors.Is(err, sql.ErrNoRows):
			// past the last configured level; keep the unit without a level
		default:
			return nil, nil, internalError(err, "failed to resolve current level")
		}
	}
	return result, enrollment, nil
}

func (s *ProgressService) persist(ctx context.Context, student *models.Student, progress *StudentProgress, enrollment *models.Enrollment) error {
	update := models.StudentProgressUpdate{
		StudentID:                  student.ID,
		CurrentPhaseID:             progress.CurrentPhaseID,
		CurrentLevelID:             progress.CurrentLevelID,
		MaxUnitCompleted:           progress.MaxUnitCompleted,
		CurrentUnit:                progress.CurrentUnit,
		AcademicProgressPercentage: progress.Percentage,
		CompletedHours:             progress.CompletedHours,
		ProgressComputedAt:         progress.ComputedAt,
	}
	if err := s.students.UpdateProgress(ctx, update); err != nil {
		return internalError(err, "failed to store student progress")
	}
	if enrollment == nil {
		return nil
	}

	if err := s.enrollments.UpdateProgressStates(ctx, enrollment.ID, progress.SubjectStates); err != nil {
		return internalError(err, "failed to store enrollment progress")
	}

	state := enrollment.State
	if state == models.EnrollmentEnrolled && touched(progress.SubjectStates) {
		if _, err := s.enrollments.UpdateState(ctx, enrollment.ID, state, models.EnrollmentInProgress); err != nil {
			return internalError(err, "failed to start enrollment")
		}
		state = models.EnrollmentInProgress
	}
	if state == models.EnrollmentInProgress && curriculum.AllCompleted(progress.SubjectStates) {
		if _, err := s.enrollments.UpdateState(ctx, enrollment.ID, state, models.EnrollmentCompleted); err != nil {
			return internalError(err, "failed to complete enrollment")
		}
		state = models.EnrollmentCompleted
		s.logger.Info("enrollment completed",
			zap.String("enrollment_id", enrollment.ID),
			zap.String("student_id", student.ID))
	}
	progress.EnrollmentState = state
	return nil
}

func touched(states map[string]models.ProgressState) bool {
	for _, st := range states {
		if st != models.ProgressPending {
			return true
		}
	}
	return false
}
