package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/benglish/academic-core/internal/models"
)

const enrollmentColumns = `id, student_id, plan_id, state, start_date, end_date, created_at, updated_at`

// EnrollmentRepository manages enrollments and their per-subject progress rows.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs a new repository instance.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Create inserts a new enrollment.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	enrollment.CreatedAt = now
	enrollment.UpdatedAt = now
	const query = `INSERT INTO enrollments (id, student_id, plan_id, state, start_date, end_date, created_at, updated_at)
VALUES (:id, :student_id, :plan_id, :state, :start_date, :end_date, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, conn(ctx, r.db), query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// FindByID fetches an enrollment by id.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE id = $1`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := sqlx.GetContext(ctx, conn(ctx, r.db), &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ListByStudent returns every enrollment of a student, newest first.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE student_id = $1 ORDER BY start_date DESC, created_at DESC`, enrollmentColumns)
	var enrollments []models.Enrollment
	if err := sqlx.SelectContext(ctx, conn(ctx, r.db), &enrollments, query, studentID); err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return enrollments, nil
}

// FindActiveByStudent returns the most recent enrolled or in_progress enrollment.
func (r *EnrollmentRepository) FindActiveByStudent(ctx context.Context, studentID string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE student_id = $1 AND state = ANY($2)
ORDER BY start_date DESC, created_at DESC LIMIT 1`, enrollmentColumns)
	states := []string{string(models.EnrollmentEnrolled), string(models.EnrollmentInProgress)}
	var enrollment models.Enrollment
	if err := sqlx.GetContext(ctx, conn(ctx, r.db), &enrollment, query, studentID, pq.Array(states)); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ListActiveByPlan returns enrolled and in_progress enrollments of a plan.
func (r *EnrollmentRepository) ListActiveByPlan(ctx context.Context, planID string) ([]models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE plan_id = $1 AND state IN ('enrolled', 'in_progress') ORDER BY student_id`, enrollmentColumns)
	var enrollments []models.Enrollment
	if err := sqlx.SelectContext(ctx, conn(ctx, r.db), &enrollments, query, planID); err != nil {
		return nil, fmt.Errorf("list plan enrollments: %w", err)
	}
	return enrollments, nil
}

// UpdateState moves an enrollment from one state to another. It reports false when the
// enrollment was no longer in the from state.
func (r *EnrollmentRepository) UpdateState(ctx context.Context, id string, from, to models.EnrollmentState) (bool, error) {
	const query = `UPDATE enrollments SET state = $3,
    end_date = CASE WHEN $3 IN ('completed', 'cancelled') THEN COALESCE(end_date, CURRENT_DATE) ELSE end_date END,
    updated_at = NOW()
WHERE id = $1 AND state = $2`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, id, from, to)
	if err != nil {
		return false, fmt.Errorf("update enrollment state: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// InsertProgressRows creates pending progress rows for subjects missing on the enrollment.
func (r *EnrollmentRepository) InsertProgressRows(ctx context.Context, enrollmentID string, subjectIDs []string) (int64, error) {
	if len(subjectIDs) == 0 {
		return 0, nil
	}
	const query = `INSERT INTO enrollment_progress (id, enrollment_id, subject_id, state)
SELECT gen_random_uuid(), $1, unnest($2::uuid[]), 'pending'
ON CONFLICT (enrollment_id, subject_id) DO NOTHING`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, enrollmentID, pq.Array(subjectIDs))
	if err != nil {
		return 0, fmt.Errorf("insert enrollment progress: %w", err)
	}
	return res.RowsAffected()
}

// PruneProgressRows deletes progress rows of non-terminal enrollments whose subject left
// the plan, keeping one row per plan subject.
func (r *EnrollmentRepository) PruneProgressRows(ctx context.Context, planID string) (int64, error) {
	const query = `DELETE FROM enrollment_progress ep
USING enrollments e
WHERE ep.enrollment_id = e.id AND e.plan_id = $1 AND e.state NOT IN ('completed', 'cancelled')
  AND NOT EXISTS (SELECT 1 FROM plan_subjects ps WHERE ps.plan_id = e.plan_id AND ps.subject_id = ep.subject_id)`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, planID)
	if err != nil {
		return 0, fmt.Errorf("prune enrollment progress: %w", err)
	}
	return res.RowsAffected()
}

// ListProgress returns the progress rows of an enrollment.
func (r *EnrollmentRepository) ListProgress(ctx context.Context, enrollmentID string) ([]models.EnrollmentProgress, error) {
	const query = `SELECT id, enrollment_id, subject_id, state, start_date, end_date, final_grade
FROM enrollment_progress WHERE enrollment_id = $1 ORDER BY subject_id`
	var rows []models.EnrollmentProgress
	if err := sqlx.SelectContext(ctx, conn(ctx, r.db), &rows, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list enrollment progress: %w", err)
	}
	return rows, nil
}

// UpdateProgressStates writes the state of each subject row whose state changed.
func (r *EnrollmentRepository) UpdateProgressStates(ctx context.Context, enrollmentID string, states map[string]models.ProgressState) error {
	const query = `UPDATE enrollment_progress SET state = $3,
    start_date = CASE WHEN $3 = 'pending' THEN NULL ELSE COALESCE(start_date, CURRENT_DATE) END,
    end_date = CASE WHEN $3 = 'completed' THEN COALESCE(end_date, CURRENT_DATE) ELSE NULL END
WHERE enrollment_id = $1 AND subject_id = $2 AND state <> $3`

	subjects := make([]string, 0, len(states))
	for id := range states {
		subjects = append(subjects, id)
	}
	sort.Strings(subjects)

	q := conn(ctx, r.db)
	for _, subjectID := range subjects {
		if _, err := q.ExecContext(ctx, query, enrollmentID, subjectID, states[subjectID]); err != nil {
			return fmt.Errorf("update enrollment progress %s: %w", subjectID, err)
		}
	}
	return nil
}

// BackfillProgress creates missing progress rows for active enrollments from their plan
// subjects, at most limit rows per call.
func (r *EnrollmentRepository) BackfillProgress(ctx context.Context, limit int) (int64, error) {
	const query = `INSERT INTO enrollment_progress (id, enrollment_id, subject_id, state)
SELECT gen_random_uuid(), e.id, ps.subject_id, 'pending'
FROM enrollments e
JOIN plan_subjects ps ON ps.plan_id = e.plan_id
WHERE e.state IN ('enrolled', 'in_progress')
  AND NOT EXISTS (
      SELECT 1 FROM enrollment_progress ep WHERE ep.enrollment_id = e.id AND ep.subject_id = ps.subject_id
  )
LIMIT $1
ON CONFLICT (enrollment_id, subject_id) DO NOTHING`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, batchLimit(limit))
	if err != nil {
		return 0, fmt.Errorf("backfill enrollment progress: %w", err)
	}
	return res.RowsAffected()
}
