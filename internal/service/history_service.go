package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/benglish/academic-core/internal/curriculum"
	"github.com/benglish/academic-core/internal/models"
	appErrors "github.com/benglish/academic-core/pkg/errors"
)

type historyStore interface {
	Insert(ctx context.Context, h *models.AcademicHistory) (bool, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.AcademicHistory, error)
	ListDetailed(ctx context.Context, filter models.HistoryFilter) ([]models.HistoryDetail, error)
	FindByID(ctx context.Context, id string) (*models.AcademicHistory, error)
	FindByDate(ctx context.Context, studentID, subjectID string, date time.Time) (*models.AcademicHistory, error)
	UpdateAnnotations(ctx context.Context, id string, ann models.HistoryAnnotations, setGrade bool) error
	UpdateGradeBySession(ctx context.Context, sessionID, studentID string, grade decimal.NullDecimal) (int64, error)
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// RecordAttendanceRequest appends one history row.
type RecordAttendanceRequest struct {
	StudentID        string                  `json:"student_id" validate:"required"`
	SubjectID        string                  `json:"subject_id" validate:"required"`
	SessionID        *string                 `json:"session_id"`
	SessionDate      time.Time               `json:"session_date" validate:"required"`
	AttendanceStatus models.AttendanceStatus `json:"attendance_status" validate:"required,oneof=attended absent justified"`
	Grade            *decimal.Decimal        `json:"grade"`
	TeacherID        *string                 `json:"teacher_id"`
	Notes            string                  `json:"notes"`
	Novedad          string                  `json:"novedad"`
}

// RetroactiveHistoryRequest backfills attended rows up to a target unit.
type RetroactiveHistoryRequest struct {
	TargetUnit  int       `json:"target_unit" validate:"required,min=1"`
	SessionDate time.Time `json:"session_date"`
	TeacherID   *string   `json:"teacher_id"`
	Notes       string    `json:"notes"`
}

// UpdateHistoryRequest edits the mutable fields of a history row. ClearGrade sets the
// grade back to ungraded.
type UpdateHistoryRequest struct {
	Grade      *decimal.Decimal `json:"grade"`
	ClearGrade bool             `json:"clear_grade"`
	Notes      *string          `json:"notes"`
	Novedad    *string          `json:"novedad"`
}

// HistoryService maintains the append-only academic history ledger.
type HistoryService struct {
	repo      historyStore
	students  studentReader
	catalog   catalogLoader
	progress  progressRecomputer
	tx        transactor
	validator *validator.Validate
	logger    *zap.Logger
}

// NewHistoryService constructs HistoryService.
func NewHistoryService(repo historyStore, students studentReader, catalog catalogLoader, progress progressRecomputer, tx transactor, validate *validator.Validate, logger *zap.Logger) *HistoryService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryService{repo: repo, students: students, catalog: catalog, progress: progress, tx: tx, validator: validate, logger: logger}
}

// RecordAttendance appends a history row and recomputes the student. Recording the same
// (student, subject, session) twice keeps the first row.
func (s *HistoryService) RecordAttendance(ctx context.Context, req RecordAttendanceRequest) (*models.AcademicHistory, bool, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, false, validationError(err, "invalid attendance payload")
	}
	row := &models.AcademicHistory{
		StudentID:        req.StudentID,
		SubjectID:        req.SubjectID,
		SessionID:        req.SessionID,
		SessionDate:      dateOnly(req.SessionDate),
		AttendanceStatus: req.AttendanceStatus,
		Grade:            nullGrade(req.Grade),
		TeacherID:        req.TeacherID,
		Notes:            req.Notes,
		Novedad:          req.Novedad,
	}

	var inserted bool
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
			return lookupError(err, "student")
		}
		var err error
		inserted, err = s.repo.Insert(ctx, row)
		if err != nil {
			return internalError(err, "failed to record attendance")
		}
		if !inserted {
			return nil
		}
		return s.progress.RecomputeMany(ctx, []string{req.StudentID})
	})
	if err != nil {
		return nil, false, err
	}
	return row, inserted, nil
}

// SyncFromSession appends one row per attended or absent seat of a closed session and
// recomputes the affected students. Novelty closures write nothing. Rows already present
// for a (student, subject, session) are left untouched, so replays are harmless.
func (s *HistoryService) SyncFromSession(ctx context.Context, session *models.AcademicSession, seats []models.SessionEnrollment) (int, error) {
	if IsNoveltyClosure(session, seats) {
		return 0, nil
	}

	written := 0
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var students []string
		for _, seat := range seats {
			status, ok := seatAttendance(seat.State)
			if !ok {
				continue
			}
			subjectID := seat.EffectiveSubjectID
			if subjectID == nil {
				subjectID = session.SubjectID
			}
			if subjectID == nil {
				s.logger.Error("seat without effective subject on pool session",
					zap.String("session_id", session.ID),
					zap.String("seat_id", seat.ID))
				return appErrors.Clone(appErrors.ErrIntegrity, "seat has no effective subject")
			}
			sessionID := session.ID
			teacherID := session.TeacherID
			row := &models.AcademicHistory{
				StudentID:        seat.StudentID,
				SubjectID:        *subjectID,
				SessionID:        &sessionID,
				SessionDate:      dateOnly(session.DatetimeStart),
				AttendanceStatus: status,
				Grade:            seat.Grade,
				TeacherID:        &teacherID,
			}
			inserted, err := s.repo.Insert(ctx, row)
			if err != nil {
				return internalError(err, "failed to write session history")
			}
			if inserted {
				written++
			}
			students = append(students, seat.StudentID)
		}
		return s.progress.RecomputeMany(ctx, students)
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

// GenerateRetroactive appends attended rows for every configured bcheck, bskill and oral
// test up to the target unit that the student has not attended yet.
func (s *HistoryService) GenerateRetroactive(ctx context.Context, studentID string, req RetroactiveHistoryRequest) ([]models.AcademicHistory, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid retroactive history payload")
	}
	date := req.SessionDate
	if date.IsZero() {
		date = time.Now()
	}

	var created []models.AcademicHistory
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		student, err := s.students.FindByID(ctx, studentID)
		if err != nil {
			return lookupError(err, "student")
		}
		cat, err := s.catalog.Catalog(ctx, derefString(student.ProgramID))
		if err != nil {
			return err
		}
		ledger, err := s.Ledger(ctx, studentID)
		if err != nil {
			return err
		}
		for _, subject := range curriculum.RetroactiveSubjects(cat, ledger, req.TargetUnit) {
			row := models.AcademicHistory{
				StudentID:        studentID,
				SubjectID:        subject.ID,
				SessionDate:      dateOnly(date),
				AttendanceStatus: models.AttendanceAttended,
				TeacherID:        req.TeacherID,
				Notes:            req.Notes,
			}
			inserted, err := s.repo.Insert(ctx, &row)
			if err != nil {
				return internalError(err, "failed to write retroactive history")
			}
			if inserted {
				created = append(created, row)
			}
		}
		return s.progress.RecomputeMany(ctx, []string{studentID})
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("retroactive history generated",
		zap.String("student_id", studentID),
		zap.Int("target_unit", req.TargetUnit),
		zap.Int("rows", len(created)))
	return created, nil
}

// UpdateAnnotations edits grade, notes or novedad of a history row.
func (s *HistoryService) UpdateAnnotations(ctx context.Context, id string, req UpdateHistoryRequest) (*models.AcademicHistory, error) {
	if req.Grade != nil && req.ClearGrade {
		return nil, appErrors.Clone(appErrors.ErrValidation, "grade and clear_grade are mutually exclusive")
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, lookupError(err, "history row")
	}
	ann := models.HistoryAnnotations{Grade: nullGrade(req.Grade), Notes: req.Notes, Novedad: req.Novedad}
	if err := s.repo.UpdateAnnotations(ctx, id, ann, req.Grade != nil || req.ClearGrade); err != nil {
		return nil, internalError(err, "failed to update history row")
	}
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "history row")
	}
	return row, nil
}

// FindByDate returns the row of a student for a subject on a date, preferring rows bound to
// a session.
func (s *HistoryService) FindByDate(ctx context.Context, studentID, subjectID string, date time.Time) (*models.AcademicHistory, error) {
	row, err := s.repo.FindByDate(ctx, studentID, subjectID, dateOnly(date))
	if err != nil {
		return nil, lookupError(err, "history row")
	}
	return row, nil
}

// PropagateGrade copies a seat grade onto the history row written for that session.
func (s *HistoryService) PropagateGrade(ctx context.Context, sessionID, studentID string, grade decimal.NullDecimal) error {
	if _, err := s.repo.UpdateGradeBySession(ctx, sessionID, studentID, grade); err != nil {
		return internalError(err, "failed to propagate grade")
	}
	return nil
}

// List returns enriched history rows.
func (s *HistoryService) List(ctx context.Context, filter models.HistoryFilter) ([]models.HistoryDetail, error) {
	rows, err := s.repo.ListDetailed(ctx, filter)
	if err != nil {
		return nil, internalError(err, "failed to list academic history")
	}
	return rows, nil
}

// Ledger returns the attendance view of a student's history.
func (s *HistoryService) Ledger(ctx context.Context, studentID string) (curriculum.Ledger, error) {
	rows, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return curriculum.Ledger{}, internalError(err, "failed to load academic history")
	}
	return curriculum.NewLedger(rows), nil
}

// LedgerExcluding returns the ledger of a student ignoring the rows written by one session.
func (s *HistoryService) LedgerExcluding(ctx context.Context, studentID, sessionID string) (curriculum.Ledger, error) {
	rows, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return curriculum.Ledger{}, internalError(err, "failed to load academic history")
	}
	kept := rows[:0]
	for _, row := range rows {
		if row.SessionID != nil && *row.SessionID == sessionID {
			continue
		}
		kept = append(kept, row)
	}
	return curriculum.NewLedger(kept), nil
}

func seatAttendance(state models.SessionEnrollmentState) (models.AttendanceStatus, bool) {
	switch state {
	case models.SeatAttended:
		return models.AttendanceAttended, true
	case models.SeatAbsent:
		return models.AttendanceAbsent, true
	}
	return "", false
}

func nullGrade(grade *decimal.Decimal) decimal.NullDecimal {
	if grade == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *grade, Valid: true}
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
