package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/benglish/academic-core/internal/models"
)

const studentColumns = `id, code, first_name, last_name, email, program_id, active, current_phase_id, current_level_id,
       max_unit_completed, current_unit, academic_progress_percentage, completed_hours, progress_computed_at,
       created_at, updated_at`

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByID fetches a student by id.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students WHERE id = $1`, studentColumns)
	var student models.Student
	if err := sqlx.GetContext(ctx, conn(ctx, r.db), &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByCode fetches a student by its academic code.
func (r *StudentRepository) FindByCode(ctx context.Context, code string) (*models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students WHERE code = $1`, studentColumns)
	var student models.Student
	if err := sqlx.GetContext(ctx, conn(ctx, r.db), &student, query, code); err != nil {
		return nil, err
	}
	return &student, nil
}

// ListIDs pages through student ids in id order starting after the given id.
func (r *StudentRepository) ListIDs(ctx context.Context, after string, limit int) ([]string, error) {
	const query = `SELECT id FROM students WHERE id::text > $1 ORDER BY id::text LIMIT $2`
	var ids []string
	if err := sqlx.SelectContext(ctx, conn(ctx, r.db), &ids, query, after, batchLimit(limit)); err != nil {
		return nil, fmt.Errorf("list student ids: %w", err)
	}
	return ids, nil
}

// Save inserts or updates the identity columns of a student. Derived progress columns
// are only written through UpdateProgress.
func (r *StudentRepository) Save(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	student.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO students (id, code, first_name, last_name, email, program_id, active, updated_at)
VALUES (:id, :code, :first_name, :last_name, :email, :program_id, :active, :updated_at)
ON CONFLICT (id) DO UPDATE SET code = EXCLUDED.code, first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name,
    email = EXCLUDED.email, program_id = EXCLUDED.program_id, active = EXCLUDED.active, updated_at = EXCLUDED.updated_at`
	if _, err := sqlx.NamedExecContext(ctx, conn(ctx, r.db), query, student); err != nil {
		return fmt.Errorf("save student: %w", err)
	}
	return nil
}

// UpdateProgress writes the derived progress columns.
func (r *StudentRepository) UpdateProgress(ctx context.Context, update models.StudentProgressUpdate) error {
	const query = `UPDATE students SET current_phase_id = :current_phase_id, current_level_id = :current_level_id,
    max_unit_completed = :max_unit_completed, current_unit = :current_unit,
    academic_progress_percentage = :academic_progress_percentage, completed_hours = :completed_hours,
    progress_computed_at = :progress_computed_at, updated_at = NOW()
WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, conn(ctx, r.db), query, update); err != nil {
		return fmt.Errorf("update student progress: %w", err)
	}
	return nil
}

// LockProgress takes a transaction-scoped advisory lock serialising progress writes for
// one student. It must run inside a transaction.
func (r *StudentRepository) LockProgress(ctx context.Context, studentID string) error {
	if _, err := conn(ctx, r.db).ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, studentID); err != nil {
		return fmt.Errorf("lock student progress: %w", err)
	}
	return nil
}

// FindLevelForUnit returns the level and phase of a program that carry unit, used to
// keep current_level_id and current_phase_id aligned with current_unit.
func (r *StudentRepository) FindLevelForUnit(ctx context.Context, programID string, unit int) (*models.Level, error) {
	const query = `SELECT l.id, l.phase_id, l.code, l.name, l.sequence, l.unit_number, l.created_at, l.updated_at
FROM levels l JOIN phases ph ON ph.id = l.phase_id
WHERE ph.program_id = $1 AND l.unit_number = $2
ORDER BY ph.sequence, l.sequence LIMIT 1`
	var level models.Level
	if err := sqlx.GetContext(ctx, conn(ctx, r.db), &level, query, programID, unit); err != nil {
		return nil, err
	}
	return &level, nil
}
