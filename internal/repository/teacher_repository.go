package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/benglish/academic-core/internal/models"
)

const teacherColumns = `id, code, name, email, meeting_url, active, created_at, updated_at`

// TeacherRepository manages persistence for teachers.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs a TeacherRepository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

// FindByID fetches a teacher by id.
func (r *TeacherRepository) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	query := fmt.Sprintf(`SELECT %s FROM teachers WHERE id = $1`, teacherColumns)
	var teacher models.Teacher
	if err := sqlx.GetContext(ctx, conn(ctx, r.db), &teacher, query, id); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// FindByName matches a teacher by display name, ignoring case and surrounding spaces.
func (r *TeacherRepository) FindByName(ctx context.Context, name string) (*models.Teacher, error) {
	query := fmt.Sprintf(`SELECT %s FROM teachers WHERE LOWER(TRIM(name)) = LOWER(TRIM($1)) ORDER BY active DESC, code LIMIT 1`, teacherColumns)
	var teacher models.Teacher
	if err := sqlx.GetContext(ctx, conn(ctx, r.db), &teacher, query, name); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// Save inserts or updates a teacher by id.
func (r *TeacherRepository) Save(ctx context.Context, teacher *models.Teacher) error {
	if teacher.ID == "" {
		teacher.ID = uuid.NewString()
	}
	teacher.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO teachers (id, code, name, email, meeting_url, active, updated_at)
VALUES (:id, :code, :name, :email, :meeting_url, :active, :updated_at)
ON CONFLICT (id) DO UPDATE SET code = EXCLUDED.code, name = EXCLUDED.name, email = EXCLUDED.email,
    meeting_url = EXCLUDED.meeting_url, active = EXCLUDED.active, updated_at = EXCLUDED.updated_at`
	if _, err := sqlx.NamedExecContext(ctx, conn(ctx, r.db), query, teacher); err != nil {
		return fmt.Errorf("save teacher: %w", err)
	}
	return nil
}
