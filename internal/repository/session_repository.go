package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/benglish/academic-core/internal/models"
)

const sessionColumns = `id, program_id, subject_id, elective_pool_id, teacher_id, datetime_start, datetime_end, is_virtual,
       meeting_url, is_published, state, audience_unit_from, audience_unit_to, max_capacity, novelty_type,
       novelty_observation, created_at, updated_at`

const seatColumns = `id, session_id, student_id, state, effective_subject_id, effective_unit_number, grade,
       grade_registered_at, created_at, updated_at`

// SessionRepository persists academic sessions, their seats and novelty attachments.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a session.
func (r *SessionRepository) Create(ctx context.Context, s *models.AcademicSession) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now
	const query = `INSERT INTO academic_sessions (id, program_id, subject_id, elective_pool_id, teacher_id, datetime_start,
    datetime_end, is_virtual, meeting_url, is_published, state, audience_unit_from, audience_unit_to, max_capacity,
    created_at, updated_at)
VALUES (:id, :program_id, :subject_id, :elective_pool_id, :teacher_id, :datetime_start, :datetime_end, :is_virtual,
    :meeting_url, :is_published, :state, :audience_unit_from, :audience_unit_to, :max_capacity, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, conn(ctx, r.db), query, s); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// FindByID fetches a session with its novelty attachments.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.AcademicSession, error) {
	query := fmt.Sprintf(`SELECT %s FROM academic_sessions WHERE id = $1`, sessionColumns)
	var session models.AcademicSession
	if err := sqlx.GetContext(ctx, conn(ctx, r.db), &session, query, id); err != nil {
		return nil, err
	}
	attachments, err := r.ListAttachments(ctx, id)
	if err != nil {
		return nil, err
	}
	session.Attachments = attachments
	return &session, nil
}

// LockByID fetches a session row FOR UPDATE. It must run inside a transaction.
func (r *SessionRepository) LockByID(ctx context.Context, id string) (*models.AcademicSession, error) {
	query := fmt.Sprintf(`SELECT %s FROM academic_sessions WHERE id = $1 FOR UPDATE`, sessionColumns)
	var session models.AcademicSession
	if err := sqlx.GetContext(ctx, conn(ctx, r.db), &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// UpdateState moves a session to state to when it is currently in one of from.
func (r *SessionRepository) UpdateState(ctx context.Context, id string, from []models.SessionState, to models.SessionState) (bool, error) {
	states := make([]string, len(from))
	for i, s := range from {
		states[i] = string(s)
	}
	const query = `UPDATE academic_sessions SET state = $2, updated_at = NOW() WHERE id = $1 AND state = ANY($3)`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, id, to, pq.Array(states))
	if err != nil {
		return false, fmt.Errorf("update session state: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// SetPublished toggles visibility. Publishing a draft also activates it.
func (r *SessionRepository) SetPublished(ctx context.Context, id string, published bool) error {
	const query = `UPDATE academic_sessions SET is_published = $2,
    state = CASE WHEN $2 AND state = 'draft' THEN 'active' ELSE state END,
    updated_at = NOW()
WHERE id = $1`
	if _, err := conn(ctx, r.db).ExecContext(ctx, query, id, published); err != nil {
		return fmt.Errorf("set session published: %w", err)
	}
	return nil
}

// SetNovelty records the novelty type and observation of a session.
func (r *SessionRepository) SetNovelty(ctx context.Context, id string, novelty models.NoveltyType, observation *string) error {
	const query = `UPDATE academic_sessions SET novelty_type = $2, novelty_observation = $3, updated_at = NOW() WHERE id = $1`
	if _, err := conn(ctx, r.db).ExecContext(ctx, query, id, novelty, observation); err != nil {
		return fmt.Errorf("set session novelty: %w", err)
	}
	return nil
}

// AddAttachment stores the metadata of a novelty attachment.
func (r *SessionRepository) AddAttachment(ctx context.Context, a *models.NoveltyAttachment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO session_novelty_attachments (id, session_id, file_name, storage_key, content_type, size_bytes, created_at)
VALUES (:id, :session_id, :file_name, :storage_key, :content_type, :size_bytes, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, conn(ctx, r.db), query, a); err != nil {
		return fmt.Errorf("add novelty attachment: %w", err)
	}
	return nil
}

// ListAttachments returns the novelty attachments of a session.
func (r *SessionRepository) ListAttachments(ctx context.Context, sessionID string) ([]models.NoveltyAttachment, error) {
	const query = `SELECT id, session_id, file_name, storage_key, content_type, size_bytes, created_at
FROM session_novelty_attachments WHERE session_id = $1 ORDER BY created_at`
	var out []models.NoveltyAttachment
	if err := sqlx.SelectContext(ctx, conn(ctx, r.db), &out, query, sessionID); err != nil {
		return nil, fmt.Errorf("list novelty attachments: %w", err)
	}
	return out, nil
}

// ListAgendaCandidates returns published, open sessions of a program starting inside window.
func (r *SessionRepository) ListAgendaCandidates(ctx context.Context, programID string, window models.AgendaWindow) ([]models.AcademicSession, error) {
	query := fmt.Sprintf(`SELECT %s FROM academic_sessions
WHERE program_id = $1 AND is_published AND state IN ('active', 'started')
  AND datetime_start >= $2 AND datetime_start < $3
ORDER BY datetime_start, id`, sessionColumns)
	var out []models.AcademicSession
	if err := sqlx.SelectContext(ctx, conn(ctx, r.db), &out, query, programID, window.From, window.To); err != nil {
		return nil, fmt.Errorf("list agenda sessions: %w", err)
	}
	return out, nil
}

// ListDoneSessionIDs pages through done sessions in id order.
func (r *SessionRepository) ListDoneSessionIDs(ctx context.Context, after string, limit int) ([]string, error) {
	const query = `SELECT id FROM academic_sessions WHERE state = 'done' AND id::text > $1 ORDER BY id::text LIMIT $2`
	var ids []string
	if err := sqlx.SelectContext(ctx, conn(ctx, r.db), &ids, query, after, batchLimit(limit)); err != nil {
		return nil, fmt.Errorf("list done sessions: %w", err)
	}
	return ids, nil
}

// FindSeat fetches the seat of a student in a session.
func (r *SessionRepository) FindSeat(ctx context.Context, sessionID, studentID string) (*models.SessionEnrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM session_enrollments WHERE session_id = $1 AND student_id = $2`, seatColumns)
	var seat models.SessionEnrollment
	if err := sqlx.GetContext(ctx, conn(ctx, r.db), &seat, query, sessionID, studentID); err != nil {
		return nil, err
	}
	return &seat, nil
}

// FindSeatByID fetches a seat by id.
func (r *SessionRepository) FindSeatByID(ctx context.Context, id string) (*models.SessionEnrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM session_enrollments WHERE id = $1`, seatColumns)
	var seat models.SessionEnrollment
	if err := sqlx.GetContext(ctx, conn(ctx, r.db), &seat, query, id); err != nil {
		return nil, err
	}
	return &seat, nil
}

// InsertSeat creates a reservation.
func (r *SessionRepository) InsertSeat(ctx context.Context, seat *models.SessionEnrollment) error {
	if seat.ID == "" {
		seat.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	seat.CreatedAt = now
	seat.UpdatedAt = now
	const query = `INSERT INTO session_enrollments (id, session_id, student_id, state, effective_subject_id,
    effective_unit_number, created_at, updated_at)
VALUES (:id, :session_id, :student_id, :state, :effective_subject_id, :effective_unit_number, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, conn(ctx, r.db), query, seat); err != nil {
		return fmt.Errorf("insert session seat: %w", err)
	}
	return nil
}

// ReactivateSeat turns a cancelled seat back into a reservation with a fresh effective subject.
func (r *SessionRepository) ReactivateSeat(ctx context.Context, seat *models.SessionEnrollment) error {
	const query = `UPDATE session_enrollments SET state = 'reserved', effective_subject_id = :effective_subject_id,
    effective_unit_number = :effective_unit_number, grade = NULL, grade_registered_at = NULL, updated_at = NOW()
WHERE id = :id AND state = 'cancelled'`
	seat.State = models.SeatReserved
	if _, err := sqlx.NamedExecContext(ctx, conn(ctx, r.db), query, seat); err != nil {
		return fmt.Errorf("reactivate session seat: %w", err)
	}
	return nil
}

// CountHolding counts seats that take capacity.
func (r *SessionRepository) CountHolding(ctx context.Context, sessionID string) (int, error) {
	const query = `SELECT COUNT(*) FROM session_enrollments WHERE session_id = $1 AND state IN ('reserved', 'attended', 'absent')`
	var count int
	if err := sqlx.GetContext(ctx, conn(ctx, r.db), &count, query, sessionID); err != nil {
		return 0, fmt.Errorf("count session seats: %w", err)
	}
	return count, nil
}

// ListSeats returns every seat of a session.
func (r *SessionRepository) ListSeats(ctx context.Context, sessionID string) ([]models.SessionEnrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM session_enrollments WHERE session_id = $1 ORDER BY student_id`, seatColumns)
	var out []models.SessionEnrollment
	if err := sqlx.SelectContext(ctx, conn(ctx, r.db), &out, query, sessionID); err != nil {
		return nil, fmt.Errorf("list session seats: %w", err)
	}
	return out, nil
}

// ListSeatsByStudent returns the seats of a student among sessionIDs.
func (r *SessionRepository) ListSeatsByStudent(ctx context.Context, studentID string, sessionIDs []string) ([]models.SessionEnrollment, error) {
	if len(sessionIDs) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM session_enrollments WHERE student_id = $1 AND session_id = ANY($2)`, seatColumns)
	var out []models.SessionEnrollment
	if err := sqlx.SelectContext(ctx, conn(ctx, r.db), &out, query, studentID, pq.Array(sessionIDs)); err != nil {
		return nil, fmt.Errorf("list student seats: %w", err)
	}
	return out, nil
}

// UpdateSeatState sets the state of one seat.
func (r *SessionRepository) UpdateSeatState(ctx context.Context, id string, state models.SessionEnrollmentState) error {
	const query = `UPDATE session_enrollments SET state = $2, updated_at = NOW() WHERE id = $1`
	if _, err := conn(ctx, r.db).ExecContext(ctx, query, id, state); err != nil {
		return fmt.Errorf("update session seat: %w", err)
	}
	return nil
}

// MarkRemaining moves every seat of a session in state from to state to.
func (r *SessionRepository) MarkRemaining(ctx context.Context, sessionID string, from, to models.SessionEnrollmentState) (int64, error) {
	const query = `UPDATE session_enrollments SET state = $3, updated_at = NOW() WHERE session_id = $1 AND state = $2`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, sessionID, from, to)
	if err != nil {
		return 0, fmt.Errorf("mark remaining seats: %w", err)
	}
	return res.RowsAffected()
}

// SetSeatGrade records a grade and its registration time.
func (r *SessionRepository) SetSeatGrade(ctx context.Context, id string, grade decimal.NullDecimal) error {
	const query = `UPDATE session_enrollments SET grade = $2,
    grade_registered_at = CASE WHEN $2::numeric IS NULL THEN NULL ELSE NOW() END,
    updated_at = NOW()
WHERE id = $1`
	if _, err := conn(ctx, r.db).ExecContext(ctx, query, id, grade); err != nil {
		return fmt.Errorf("set seat grade: %w", err)
	}
	return nil
}

// SetSeatEffectiveSubject fills the frozen effective subject of a seat.
func (r *SessionRepository) SetSeatEffectiveSubject(ctx context.Context, id, subjectID string, unit int) error {
	const query = `UPDATE session_enrollments SET effective_subject_id = $2, effective_unit_number = $3, updated_at = NOW()
WHERE id = $1 AND effective_subject_id IS NULL`
	if _, err := conn(ctx, r.db).ExecContext(ctx, query, id, subjectID, unit); err != nil {
		return fmt.Errorf("set seat effective subject: %w", err)
	}
	return nil
}

// NullZeroGrades clears grade 0 on seats whose grade was never registered.
func (r *SessionRepository) NullZeroGrades(ctx context.Context) (int64, error) {
	const query = `UPDATE session_enrollments SET grade = NULL, updated_at = NOW() WHERE grade = 0 AND grade_registered_at IS NULL`
	res, err := conn(ctx, r.db).ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("null zero seat grades: %w", err)
	}
	return res.RowsAffected()
}
