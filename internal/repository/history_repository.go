package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/benglish/academic-core/internal/models"
)

const historyColumns = `h.id, h.student_id, h.subject_id, h.session_id, h.session_date, h.attendance_status, h.grade,
       h.teacher_id, h.notes, h.novedad, h.created_at, h.updated_at`

// HistoryRepository persists the append-only academic history ledger.
type HistoryRepository struct {
	db *sqlx.DB
}

// NewHistoryRepository constructs the repository.
func NewHistoryRepository(db *sqlx.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Insert appends a history row. It reports false when an equivalent row already exists,
// either for the same session or, for session-less rows, the same date.
func (r *HistoryRepository) Insert(ctx context.Context, h *models.AcademicHistory) (bool, error) {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	h.CreatedAt = now
	h.UpdatedAt = now
	const query = `INSERT INTO academic_history (id, student_id, subject_id, session_id, session_date, attendance_status,
    grade, teacher_id, notes, novedad, created_at, updated_at)
VALUES (:id, :student_id, :subject_id, :session_id, :session_date, :attendance_status,
    :grade, :teacher_id, :notes, :novedad, :created_at, :updated_at)
ON CONFLICT DO NOTHING`
	res, err := sqlx.NamedExecContext(ctx, conn(ctx, r.db), query, h)
	if err != nil {
		return false, fmt.Errorf("insert academic history: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// ListByStudent returns every history row of a student ordered by date.
func (r *HistoryRepository) ListByStudent(ctx context.Context, studentID string) ([]models.AcademicHistory, error) {
	query := fmt.Sprintf(`SELECT %s FROM academic_history h WHERE h.student_id = $1 ORDER BY h.session_date, h.created_at`, historyColumns)
	var rows []models.AcademicHistory
	if err := sqlx.SelectContext(ctx, conn(ctx, r.db), &rows, query, studentID); err != nil {
		return nil, fmt.Errorf("list academic history: %w", err)
	}
	return rows, nil
}

// ListDetailed returns history rows joined with display names.
func (r *HistoryRepository) ListDetailed(ctx context.Context, filter models.HistoryFilter) ([]models.HistoryDetail, error) {
	conditions := []string{"1=1"}
	var args []interface{}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("h.student_id = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("h.session_date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("h.session_date <= $%d", len(args)))
	}

	query := fmt.Sprintf(`SELECT %s, st.code AS student_code, TRIM(st.first_name || ' ' || st.last_name) AS student_name,
       s.code AS subject_code, s.name AS subject_name, t.name AS teacher_name
FROM academic_history h
JOIN students st ON st.id = h.student_id
JOIN subjects s ON s.id = h.subject_id
LEFT JOIN teachers t ON t.id = h.teacher_id
WHERE %s
ORDER BY h.session_date DESC, s.code`, historyColumns, strings.Join(conditions, " AND "))

	var rows []models.HistoryDetail
	if err := sqlx.SelectContext(ctx, conn(ctx, r.db), &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list history details: %w", err)
	}
	return rows, nil
}

// FindByID fetches a history row.
func (r *HistoryRepository) FindByID(ctx context.Context, id string) (*models.AcademicHistory, error) {
	query := fmt.Sprintf(`SELECT %s FROM academic_history h WHERE h.id = $1`, historyColumns)
	var row models.AcademicHistory
	if err := sqlx.GetContext(ctx, conn(ctx, r.db), &row, query, id); err != nil {
		return nil, err
	}
	return &row, nil
}

// FindByDate returns the row of a student for subject on date regardless of session,
// preferring session-bound rows.
func (r *HistoryRepository) FindByDate(ctx context.Context, studentID, subjectID string, date time.Time) (*models.AcademicHistory, error) {
	query := fmt.Sprintf(`SELECT %s FROM academic_history h
WHERE h.student_id = $1 AND h.subject_id = $2 AND h.session_date = $3
ORDER BY h.session_id NULLS LAST LIMIT 1`, historyColumns)
	var row models.AcademicHistory
	if err := sqlx.GetContext(ctx, conn(ctx, r.db), &row, query, studentID, subjectID, date); err != nil {
		return nil, err
	}
	return &row, nil
}

// UpdateAnnotations changes the grade, notes or novedad of a row. Nil fields are kept.
func (r *HistoryRepository) UpdateAnnotations(ctx context.Context, id string, ann models.HistoryAnnotations, setGrade bool) error {
	sets := []string{"updated_at = NOW()"}
	args := []interface{}{id}
	if setGrade {
		args = append(args, ann.Grade)
		sets = append(sets, fmt.Sprintf("grade = $%d", len(args)))
	}
	if ann.Notes != nil {
		args = append(args, *ann.Notes)
		sets = append(sets, fmt.Sprintf("notes = $%d", len(args)))
	}
	if ann.Novedad != nil {
		args = append(args, *ann.Novedad)
		sets = append(sets, fmt.Sprintf("novedad = $%d", len(args)))
	}
	query := fmt.Sprintf(`UPDATE academic_history SET %s WHERE id = $1`, strings.Join(sets, ", "))
	if _, err := conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update history annotations: %w", err)
	}
	return nil
}

// UpdateGradeBySession copies a seat grade onto the history row of the same session.
func (r *HistoryRepository) UpdateGradeBySession(ctx context.Context, sessionID, studentID string, grade decimal.NullDecimal) (int64, error) {
	const query = `UPDATE academic_history SET grade = $3, updated_at = NOW() WHERE session_id = $1 AND student_id = $2`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, sessionID, studentID, grade)
	if err != nil {
		return 0, fmt.Errorf("update history grade: %w", err)
	}
	return res.RowsAffected()
}

// NullZeroGrades clears grade 0 on history rows whose seat grade was never registered.
// It must run before the seats themselves are cleared.
func (r *HistoryRepository) NullZeroGrades(ctx context.Context) (int64, error) {
	const query = `UPDATE academic_history h SET grade = NULL, updated_at = NOW()
FROM session_enrollments se
WHERE se.session_id = h.session_id AND se.student_id = h.student_id
  AND se.grade = 0 AND se.grade_registered_at IS NULL AND h.grade = 0`
	res, err := conn(ctx, r.db).ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("null zero history grades: %w", err)
	}
	return res.RowsAffected()
}
