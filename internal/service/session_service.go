package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/benglish/academic-core/internal/curriculum"
	"github.com/benglish/academic-core/internal/models"
	"github.com/benglish/academic-core/pkg/database"
	appErrors "github.com/benglish/academic-core/pkg/errors"
)

type sessionStore interface {
	Create(ctx context.Context, s *models.AcademicSession) error
	FindByID(ctx context.Context, id string) (*models.AcademicSession, error)
	LockByID(ctx context.Context, id string) (*models.AcademicSession, error)
	UpdateState(ctx context.Context, id string, from []models.SessionState, to models.SessionState) (bool, error)
	SetPublished(ctx context.Context, id string, published bool) error
	SetNovelty(ctx context.Context, id string, novelty models.NoveltyType, observation *string) error
	AddAttachment(ctx context.Context, a *models.NoveltyAttachment) error
	ListAttachments(ctx context.Context, sessionID string) ([]models.NoveltyAttachment, error)
	ListDoneSessionIDs(ctx context.Context, after string, limit int) ([]string, error)
	FindSeat(ctx context.Context, sessionID, studentID string) (*models.SessionEnrollment, error)
	FindSeatByID(ctx context.Context, id string) (*models.SessionEnrollment, error)
	InsertSeat(ctx context.Context, seat *models.SessionEnrollment) error
	ReactivateSeat(ctx context.Context, seat *models.SessionEnrollment) error
	CountHolding(ctx context.Context, sessionID string) (int, error)
	ListSeats(ctx context.Context, sessionID string) ([]models.SessionEnrollment, error)
	UpdateSeatState(ctx context.Context, id string, state models.SessionEnrollmentState) error
	MarkRemaining(ctx context.Context, sessionID string, from, to models.SessionEnrollmentState) (int64, error)
	SetSeatGrade(ctx context.Context, id string, grade decimal.NullDecimal) error
	SetSeatEffectiveSubject(ctx context.Context, id, subjectID string, unit int) error
}

type teacherReader interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

type activeEnrollmentReader interface {
	FindActiveByStudent(ctx context.Context, studentID string) (*models.Enrollment, error)
}

type sessionCatalogService interface {
	sessionCatalog
	Catalog(ctx context.Context, programID string) (*curriculum.Catalog, error)
	Subject(ctx context.Context, id string) (*models.Subject, error)
	Pool(ctx context.Context, id string) (*models.ElectivePool, error)
}

type sessionHistory interface {
	SyncFromSession(ctx context.Context, session *models.AcademicSession, seats []models.SessionEnrollment) (int, error)
	PropagateGrade(ctx context.Context, sessionID, studentID string, grade decimal.NullDecimal) error
	Ledger(ctx context.Context, studentID string) (curriculum.Ledger, error)
	LedgerExcluding(ctx context.Context, studentID, sessionID string) (curriculum.Ledger, error)
}

type attachmentStorage interface {
	SaveStream(name string, r io.Reader, limit int64) (int64, error)
	Delete(name string) error
}

// CreateSessionRequest describes a new academic session. Exactly one of SubjectID and
// ElectivePoolID is set.
type CreateSessionRequest struct {
	ProgramID        string    `json:"program_id" validate:"required"`
	SubjectID        *string   `json:"subject_id"`
	ElectivePoolID   *string   `json:"elective_pool_id"`
	TeacherID        string    `json:"teacher_id" validate:"required"`
	DatetimeStart    time.Time `json:"datetime_start" validate:"required"`
	DatetimeEnd      time.Time `json:"datetime_end" validate:"required,gtfield=DatetimeStart"`
	IsVirtual        bool      `json:"is_virtual"`
	MeetingURL       *string   `json:"meeting_url" validate:"omitempty,url"`
	AudienceUnitFrom int       `json:"audience_unit_from" validate:"required,min=1"`
	AudienceUnitTo   int       `json:"audience_unit_to" validate:"required,gtefield=AudienceUnitFrom"`
	MaxCapacity      int       `json:"max_capacity" validate:"min=0"`
	Publish          bool      `json:"publish"`
}

// AttendanceEntry marks one student as attended or absent.
type AttendanceEntry struct {
	StudentID string                        `json:"student_id" validate:"required"`
	State     models.SessionEnrollmentState `json:"state" validate:"required,oneof=attended absent"`
	Grade     *decimal.Decimal              `json:"grade"`
}

// MarkAttendanceRequest carries attendance for a started session.
type MarkAttendanceRequest struct {
	Entries []AttendanceEntry `json:"entries" validate:"required,min=1,dive"`
}

// SetGradeRequest sets or clears a seat grade.
type SetGradeRequest struct {
	Grade *decimal.Decimal `json:"grade"`
}

// RecordNoveltyRequest records why a session will close without attendance.
type RecordNoveltyRequest struct {
	NoveltyType models.NoveltyType `json:"novelty_type" validate:"required,oneof=postponed material"`
	Observation *string            `json:"observation"`
}

// SessionDetail is a session with its seats.
type SessionDetail struct {
	models.AcademicSession
	Seats []models.SessionEnrollment `json:"seats"`
}

// Resolution is the concrete subject a session stands for a student.
type Resolution struct {
	SessionID     string          `json:"session_id"`
	StudentID     string          `json:"student_id"`
	Applicable    bool            `json:"applicable"`
	Subject       *models.Subject `json:"subject,omitempty"`
	EffectiveUnit int             `json:"effective_unit,omitempty"`
}

// FinishResult reports how a session closed.
type FinishResult struct {
	Session     *models.AcademicSession `json:"session"`
	Path        ClosurePath             `json:"path"`
	HistoryRows int                     `json:"history_rows"`
}

// SessionConfig tunes locking and uploads.
type SessionConfig struct {
	Retry              database.RetryPolicy
	MaxAttachmentBytes int64
}

// SessionService runs the session lifecycle, reservations and closure.
type SessionService struct {
	repo        sessionStore
	teachers    teacherReader
	students    studentReader
	enrollments activeEnrollmentReader
	catalog     sessionCatalogService
	history     sessionHistory
	storage     attachmentStorage
	cache       cacheInvalidator
	metrics     *MetricsService
	tx          transactor
	guard       NoveltyGuard
	config      SessionConfig
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewSessionService constructs SessionService.
func NewSessionService(repo sessionStore, teachers teacherReader, students studentReader, enrollments activeEnrollmentReader, catalog sessionCatalogService, history sessionHistory, storage attachmentStorage, cache cacheInvalidator, metrics *MetricsService, tx transactor, cfg SessionConfig, validate *validator.Validate, logger *zap.Logger) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Retry.Attempts <= 0 {
		cfg.Retry = database.DefaultRetryPolicy
	}
	return &SessionService{
		repo:        repo,
		teachers:    teachers,
		students:    students,
		enrollments: enrollments,
		catalog:     catalog,
		history:     history,
		storage:     storage,
		cache:       cache,
		metrics:     metrics,
		tx:          tx,
		config:      cfg,
		validator:   validate,
		logger:      logger,
	}
}

// Create validates and stores a session. Virtual sessions without a meeting URL inherit
// the teacher's.
func (s *SessionService) Create(ctx context.Context, req CreateSessionRequest) (*SessionDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid session payload")
	}
	if (req.SubjectID == nil) == (req.ElectivePoolID == nil) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "exactly one of subject_id and elective_pool_id is required")
	}

	teacher, err := s.teachers.FindByID(ctx, req.TeacherID)
	if err != nil {
		return nil, lookupError(err, "teacher")
	}
	if !teacher.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacher is inactive")
	}

	if req.SubjectID != nil {
		subject, err := s.catalog.Subject(ctx, *req.SubjectID)
		if err != nil {
			return nil, err
		}
		if subject.ProgramID == nil || *subject.ProgramID != req.ProgramID {
			return nil, appErrors.Clone(appErrors.ErrCatalogInconsistentProgram, "subject does not belong to the session program")
		}
	} else {
		pool, err := s.catalog.Pool(ctx, *req.ElectivePoolID)
		if err != nil {
			return nil, err
		}
		if pool.ProgramID != req.ProgramID {
			return nil, appErrors.Clone(appErrors.ErrCatalogInconsistentProgram, "elective pool does not belong to the session program")
		}
		if pool.State != models.PoolStateActive {
			return nil, appErrors.Clone(appErrors.ErrValidation, "elective pool is not active")
		}
	}

	meetingURL := req.MeetingURL
	if req.IsVirtual && meetingURL == nil {
		meetingURL = teacher.MeetingURL
	}
	if req.IsVirtual && (meetingURL == nil || *meetingURL == "") {
		return nil, appErrors.Clone(appErrors.ErrValidation, "virtual session requires a meeting url")
	}

	session := &models.AcademicSession{
		ProgramID:        req.ProgramID,
		SubjectID:        req.SubjectID,
		ElectivePoolID:   req.ElectivePoolID,
		TeacherID:        req.TeacherID,
		DatetimeStart:    req.DatetimeStart.UTC(),
		DatetimeEnd:      req.DatetimeEnd.UTC(),
		IsVirtual:        req.IsVirtual,
		MeetingURL:       meetingURL,
		IsPublished:      req.Publish,
		State:            models.SessionDraft,
		AudienceUnitFrom: req.AudienceUnitFrom,
		AudienceUnitTo:   req.AudienceUnitTo,
		MaxCapacity:      req.MaxCapacity,
	}
	if req.Publish {
		session.State = models.SessionActive
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, internalError(err, "failed to create session")
	}
	s.invalidateAgenda(ctx)
	return &SessionDetail{AcademicSession: *session}, nil
}

// Get returns a session with attachments and seats.
func (s *SessionService) Get(ctx context.Context, id string) (*SessionDetail, error) {
	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "session")
	}
	seats, err := s.repo.ListSeats(ctx, id)
	if err != nil {
		return nil, internalError(err, "failed to load session seats")
	}
	return &SessionDetail{AcademicSession: *session, Seats: seats}, nil
}

// Publish makes a session visible; a draft becomes active.
func (s *SessionService) Publish(ctx context.Context, id string) (*SessionDetail, error) {
	return s.setPublished(ctx, id, true)
}

// Unpublish hides an active session from the agenda.
func (s *SessionService) Unpublish(ctx context.Context, id string) (*SessionDetail, error) {
	return s.setPublished(ctx, id, false)
}

func (s *SessionService) setPublished(ctx context.Context, id string, published bool) (*SessionDetail, error) {
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		session, err := s.repo.LockByID(ctx, id)
		if err != nil {
			return lookupError(err, "session")
		}
		if session.State.Terminal() || (!published && session.State == models.SessionStarted) {
			return appErrors.Clone(appErrors.ErrInvalidTransition,
				fmt.Sprintf("cannot change publication of a %s session", session.State))
		}
		if err := s.repo.SetPublished(ctx, id, published); err != nil {
			return internalError(err, "failed to update session publication")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidateAgenda(ctx)
	return s.Get(ctx, id)
}

// Start moves a published active session to started.
func (s *SessionService) Start(ctx context.Context, id string) (*SessionDetail, error) {
	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "session")
	}
	if !session.IsPublished {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "session must be published before it starts")
	}
	ok, err := s.repo.UpdateState(ctx, id, []models.SessionState{models.SessionActive}, models.SessionStarted)
	if err != nil {
		return nil, internalError(err, "failed to start session")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("cannot start a %s session", session.State))
	}
	return s.Get(ctx, id)
}

// Cancel cancels a non-terminal session and releases its reservations.
func (s *SessionService) Cancel(ctx context.Context, id string) (*SessionDetail, error) {
	err := s.lockSession(ctx, id, func(ctx context.Context, session *models.AcademicSession) error {
		if session.State.Terminal() {
			return appErrors.Clone(appErrors.ErrInvalidTransition,
				fmt.Sprintf("cannot cancel a %s session", session.State))
		}
		open := []models.SessionState{models.SessionDraft, models.SessionActive, models.SessionStarted}
		if _, err := s.repo.UpdateState(ctx, id, open, models.SessionCancelled); err != nil {
			return internalError(err, "failed to cancel session")
		}
		if _, err := s.repo.MarkRemaining(ctx, id, models.SeatReserved, models.SeatCancelled); err != nil {
			return internalError(err, "failed to release reservations")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidateAgenda(ctx)
	return s.Get(ctx, id)
}

// Resolve returns the subject a session maps to for a student.
func (s *SessionService) Resolve(ctx context.Context, sessionID, studentID string) (*Resolution, error) {
	session, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, lookupError(err, "session")
	}
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		return nil, lookupError(err, "student")
	}
	ledger, err := s.history.Ledger(ctx, studentID)
	if err != nil {
		return nil, err
	}
	subject, ok, err := resolveSubject(ctx, s.catalog, session, ledger)
	if err != nil {
		return nil, err
	}
	res := &Resolution{SessionID: sessionID, StudentID: studentID, Applicable: ok}
	if ok {
		res.Subject = &subject
		res.EffectiveUnit = curriculum.EffectiveUnit(subject, studentUnit(student))
	}
	return res, nil
}

// Reserve books a seat for a student. Concurrent reservations on the same session
// serialise on the session row; a lock that cannot be obtained in time yields
// ErrSessionBusy after the retry budget is spent.
func (s *SessionService) Reserve(ctx context.Context, sessionID, studentID string) (*models.SessionEnrollment, error) {
	var seat *models.SessionEnrollment
	err := database.Retry(ctx, s.config.Retry, func(ctx context.Context) error {
		return s.lockSession(ctx, sessionID, func(ctx context.Context, session *models.AcademicSession) error {
			var err error
			seat, err = s.reserveLocked(ctx, session, studentID)
			return err
		})
	})

	switch {
	case err == nil:
		s.metrics.RecordReservation("reserved")
		if s.cache != nil {
			s.cache.Invalidate(ctx, "agenda:"+studentID+":*")
		}
		s.logger.Info("seat reserved",
			zap.String("session_id", sessionID),
			zap.String("student_id", studentID),
			zap.String("effective_subject_id", derefString(seat.EffectiveSubjectID)))
		return seat, nil
	case database.IsRetryable(err):
		s.metrics.RecordReservation("busy")
		s.logger.Warn("session busy", zap.String("session_id", sessionID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrSessionBusy.Code, appErrors.ErrSessionBusy.Status, appErrors.ErrSessionBusy.Message)
	case database.IsUniqueViolation(err):
		s.metrics.RecordReservation("conflict")
		return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "student already holds a seat in this session")
	default:
		s.metrics.RecordReservation("rejected")
		return nil, err
	}
}

func (s *SessionService) reserveLocked(ctx context.Context, session *models.AcademicSession, studentID string) (*models.SessionEnrollment, error) {
	if !session.IsPublished {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "session is not published")
	}
	if session.State != models.SessionActive && session.State != models.SessionStarted {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed,
			fmt.Sprintf("session is %s and takes no reservations", session.State))
	}

	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		return nil, lookupError(err, "student")
	}
	if err := s.canSchedule(ctx, student); err != nil {
		return nil, err
	}
	if student.ProgramID == nil || *student.ProgramID != session.ProgramID {
		return nil, appErrors.Clone(appErrors.ErrNotApplicable, "session belongs to another program")
	}
	unit := studentUnit(student)
	if !session.InAudience(unit) {
		return nil, appErrors.Clone(appErrors.ErrOutsideAudience,
			fmt.Sprintf("current unit %d is outside %d-%d", unit, session.AudienceUnitFrom, session.AudienceUnitTo))
	}

	ledger, err := s.history.Ledger(ctx, studentID)
	if err != nil {
		return nil, err
	}
	subject, ok, err := resolveSubject(ctx, s.catalog, session, ledger)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotApplicable, "no pending subject of the elective pool remains for the student")
	}
	cat, err := s.catalog.Catalog(ctx, session.ProgramID)
	if err != nil {
		return nil, err
	}
	eligibility, err := curriculum.IsEligible(subject, cat, ledger)
	if err != nil {
		return nil, err
	}
	if !eligibility.Eligible {
		return nil, appErrors.Clone(appErrors.ErrNotEligible,
			fmt.Sprintf("%s requires %s", subject.Code, strings.Join(subjectCodes(cat, eligibility.Missing), ", ")))
	}

	existing, err := s.repo.FindSeat(ctx, session.ID, studentID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, internalError(err, "failed to load seat")
	}
	if existing != nil && existing.State != models.SeatCancelled {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already holds a seat in this session")
	}

	if session.MaxCapacity > 0 {
		holding, err := s.repo.CountHolding(ctx, session.ID)
		if err != nil {
			return nil, internalError(err, "failed to count seats")
		}
		if holding >= session.MaxCapacity {
			return nil, appErrors.Clone(appErrors.ErrConflict, "session is full")
		}
	}

	subjectID := subject.ID
	effectiveUnit := curriculum.EffectiveUnit(subject, unit)
	if existing != nil {
		existing.EffectiveSubjectID = &subjectID
		existing.EffectiveUnitNumber = &effectiveUnit
		existing.Grade = decimal.NullDecimal{}
		existing.GradeRegisteredAt = nil
		if err := s.repo.ReactivateSeat(ctx, existing); err != nil {
			return nil, internalError(err, "failed to reactivate seat")
		}
		return existing, nil
	}
	seat := &models.SessionEnrollment{
		SessionID:           session.ID,
		StudentID:           studentID,
		State:               models.SeatReserved,
		EffectiveSubjectID:  &subjectID,
		EffectiveUnitNumber: &effectiveUnit,
	}
	if err := s.repo.InsertSeat(ctx, seat); err != nil {
		return nil, err
	}
	return seat, nil
}

// canSchedule requires an active student with an enrolled or in-progress enrollment.
func (s *SessionService) canSchedule(ctx context.Context, student *models.Student) error {
	if !student.Active {
		return appErrors.Clone(appErrors.ErrForbidden, "student is inactive")
	}
	if _, err := s.enrollments.FindActiveByStudent(ctx, student.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrForbidden, "student has no active enrollment")
		}
		return internalError(err, "failed to load active enrollment")
	}
	return nil
}

// CancelReservation releases a reserved seat.
func (s *SessionService) CancelReservation(ctx context.Context, sessionID, studentID string) error {
	err := s.lockSession(ctx, sessionID, func(ctx context.Context, session *models.AcademicSession) error {
		if session.State.Terminal() {
			return appErrors.Clone(appErrors.ErrInvalidTransition, "session is closed")
		}
		seat, err := s.repo.FindSeat(ctx, sessionID, studentID)
		if err != nil {
			return lookupError(err, "seat")
		}
		if seat.State != models.SeatReserved {
			return appErrors.Clone(appErrors.ErrInvalidTransition,
				fmt.Sprintf("cannot cancel a %s seat", seat.State))
		}
		if err := s.repo.UpdateSeatState(ctx, seat.ID, models.SeatCancelled); err != nil {
			return internalError(err, "failed to cancel seat")
		}
		return nil
	})
	if err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, "agenda:"+studentID+":*")
	}
	return nil
}

// MarkAttendance records attended or absent on the seats of a started session.
func (s *SessionService) MarkAttendance(ctx context.Context, sessionID string, req MarkAttendanceRequest) ([]models.SessionEnrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid attendance payload")
	}
	err := s.lockSession(ctx, sessionID, func(ctx context.Context, session *models.AcademicSession) error {
		if session.State != models.SessionStarted {
			return appErrors.Clone(appErrors.ErrInvalidTransition, "attendance is taken on started sessions only")
		}
		for _, entry := range req.Entries {
			seat, err := s.repo.FindSeat(ctx, sessionID, entry.StudentID)
			if err != nil {
				return lookupError(err, "seat")
			}
			if seat.State == models.SeatCancelled {
				return appErrors.Clone(appErrors.ErrInvalidTransition, "cannot mark attendance on a cancelled seat")
			}
			if err := s.repo.UpdateSeatState(ctx, seat.ID, entry.State); err != nil {
				return internalError(err, "failed to mark attendance")
			}
			if entry.Grade != nil {
				if err := s.repo.SetSeatGrade(ctx, seat.ID, nullGrade(entry.Grade)); err != nil {
					return internalError(err, "failed to set grade")
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	seats, err := s.repo.ListSeats(ctx, sessionID)
	if err != nil {
		return nil, internalError(err, "failed to load session seats")
	}
	return seats, nil
}

// SetGrade sets or clears a seat grade. On a closed session the history row follows.
func (s *SessionService) SetGrade(ctx context.Context, seatID string, req SetGradeRequest) (*models.SessionEnrollment, error) {
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		seat, err := s.repo.FindSeatByID(ctx, seatID)
		if err != nil {
			return lookupError(err, "seat")
		}
		if seat.State != models.SeatAttended && seat.State != models.SeatAbsent {
			return appErrors.Clone(appErrors.ErrInvalidTransition, "only attended or absent seats carry a grade")
		}
		grade := nullGrade(req.Grade)
		if err := s.repo.SetSeatGrade(ctx, seat.ID, grade); err != nil {
			return internalError(err, "failed to set grade")
		}
		session, err := s.repo.FindByID(ctx, seat.SessionID)
		if err != nil {
			return lookupError(err, "session")
		}
		if session.State == models.SessionDone {
			return s.history.PropagateGrade(ctx, session.ID, seat.StudentID, grade)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	seat, err := s.repo.FindSeatByID(ctx, seatID)
	if err != nil {
		return nil, lookupError(err, "seat")
	}
	return seat, nil
}

// RecordNovelty stores the novelty type and observation of an open session.
func (s *SessionService) RecordNovelty(ctx context.Context, sessionID string, req RecordNoveltyRequest) (*SessionDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid novelty payload")
	}
	err := s.lockSession(ctx, sessionID, func(ctx context.Context, session *models.AcademicSession) error {
		if session.State.Terminal() {
			return appErrors.Clone(appErrors.ErrInvalidTransition, "session is closed")
		}
		if err := s.repo.SetNovelty(ctx, sessionID, req.NoveltyType, req.Observation); err != nil {
			return internalError(err, "failed to record novelty")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, sessionID)
}

// AddAttachment stores a file supporting a material novelty.
func (s *SessionService) AddAttachment(ctx context.Context, sessionID, fileName, contentType string, r io.Reader) (*models.NoveltyAttachment, error) {
	session, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, lookupError(err, "session")
	}
	if session.State.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "session is closed")
	}
	if s.storage == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "attachment storage not configured")
	}

	key := fmt.Sprintf("sessions/%s/%s%s", sessionID, uuid.NewString(), strings.ToLower(filepath.Ext(fileName)))
	size, err := s.storage.SaveStream(key, r, s.config.MaxAttachmentBytes)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to store attachment")
	}
	attachment := &models.NoveltyAttachment{
		SessionID:   sessionID,
		FileName:    filepath.Base(fileName),
		StorageKey:  key,
		ContentType: contentType,
		SizeBytes:   size,
	}
	if err := s.repo.AddAttachment(ctx, attachment); err != nil {
		if delErr := s.storage.Delete(key); delErr != nil {
			s.logger.Warn("failed to remove orphan attachment", zap.String("key", key), zap.Error(delErr))
		}
		return nil, internalError(err, "failed to record attachment")
	}
	return attachment, nil
}

// Finish closes a started session. With attendance, remaining reservations become absent
// and every attended or absent seat is written to history. Without attendance the novelty
// guard must pass, reservations are cancelled and no history is written. Any failure rolls
// the whole closure back and the session stays started.
func (s *SessionService) Finish(ctx context.Context, sessionID string) (*FinishResult, error) {
	result := &FinishResult{}
	err := database.Retry(ctx, s.config.Retry, func(ctx context.Context) error {
		return s.lockSession(ctx, sessionID, func(ctx context.Context, session *models.AcademicSession) error {
			if session.State != models.SessionStarted {
				return appErrors.Clone(appErrors.ErrInvalidTransition,
					fmt.Sprintf("cannot finish a %s session", session.State))
			}
			attachments, err := s.repo.ListAttachments(ctx, sessionID)
			if err != nil {
				return internalError(err, "failed to load attachments")
			}
			session.Attachments = attachments
			seats, err := s.repo.ListSeats(ctx, sessionID)
			if err != nil {
				return internalError(err, "failed to load session seats")
			}

			path, err := s.guard.Check(session, seats)
			if err != nil {
				return err
			}

			closing := models.SeatAbsent
			if path == ClosureNovelty {
				closing = models.SeatCancelled
			}
			if _, err := s.repo.MarkRemaining(ctx, sessionID, models.SeatReserved, closing); err != nil {
				return internalError(err, "failed to close remaining seats")
			}
			ok, err := s.repo.UpdateState(ctx, sessionID, []models.SessionState{models.SessionStarted}, models.SessionDone)
			if err != nil {
				return internalError(err, "failed to finish session")
			}
			if !ok {
				return appErrors.Clone(appErrors.ErrConflict, "session state changed concurrently")
			}
			session.State = models.SessionDone

			result.Session = session
			result.Path = path
			if path == ClosureNovelty {
				return nil
			}
			seats, err = s.repo.ListSeats(ctx, sessionID)
			if err != nil {
				return internalError(err, "failed to load session seats")
			}
			result.HistoryRows, err = s.history.SyncFromSession(ctx, session, seats)
			return err
		})
	})
	if err != nil {
		if database.IsRetryable(err) {
			s.metrics.RecordSessionFinished("busy")
			return nil, appErrors.Wrap(err, appErrors.ErrSessionBusy.Code, appErrors.ErrSessionBusy.Status, appErrors.ErrSessionBusy.Message)
		}
		s.metrics.RecordSessionFinished("rejected")
		s.logger.Warn("session closure rejected", zap.String("session_id", sessionID), zap.Error(err))
		return nil, err
	}

	s.metrics.RecordSessionFinished(string(result.Path))
	s.invalidateAgenda(ctx)
	s.logger.Info("session finished",
		zap.String("session_id", sessionID),
		zap.String("path", string(result.Path)),
		zap.Int("history_rows", result.HistoryRows))
	return result, nil
}

// BackfillEffectiveSubjects fills missing effective subjects on done sessions and rewrites
// any missing history rows. Pool sessions are resolved against the ledger without the
// session's own rows. Each session commits on its own.
func (s *SessionService) BackfillEffectiveSubjects(ctx context.Context, batchSize int) (int, error) {
	fixed := 0
	after := ""
	for {
		ids, err := s.repo.ListDoneSessionIDs(ctx, after, batchSize)
		if err != nil {
			return fixed, internalError(err, "failed to list done sessions")
		}
		if len(ids) == 0 {
			return fixed, nil
		}
		for _, id := range ids {
			n, err := s.rebuildSession(ctx, id)
			if err != nil {
				return fixed, err
			}
			fixed += n
		}
		after = ids[len(ids)-1]
	}
}

func (s *SessionService) rebuildSession(ctx context.Context, sessionID string) (int, error) {
	fixed := 0
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		session, err := s.repo.FindByID(ctx, sessionID)
		if err != nil {
			return lookupError(err, "session")
		}
		seats, err := s.repo.ListSeats(ctx, sessionID)
		if err != nil {
			return internalError(err, "failed to load session seats")
		}
		for i, seat := range seats {
			if seat.EffectiveSubjectID != nil || !seat.State.Holding() {
				continue
			}
			student, err := s.students.FindByID(ctx, seat.StudentID)
			if err != nil {
				return lookupError(err, "student")
			}
			ledger, err := s.history.LedgerExcluding(ctx, seat.StudentID, sessionID)
			if err != nil {
				return err
			}
			subject, ok, err := resolveSubject(ctx, s.catalog, session, ledger)
			if err != nil {
				return err
			}
			if !ok {
				s.logger.Warn("seat cannot be resolved",
					zap.String("session_id", sessionID),
					zap.String("student_id", seat.StudentID))
				continue
			}
			unit := curriculum.EffectiveUnit(subject, studentUnit(student))
			if err := s.repo.SetSeatEffectiveSubject(ctx, seat.ID, subject.ID, unit); err != nil {
				return internalError(err, "failed to set effective subject")
			}
			subjectID := subject.ID
			seats[i].EffectiveSubjectID = &subjectID
			seats[i].EffectiveUnitNumber = &unit
			fixed++
		}
		_, err = s.history.SyncFromSession(ctx, session, resolvedSeats(seats, session))
		return err
	})
	return fixed, err
}

func (s *SessionService) lockSession(ctx context.Context, id string, fn func(ctx context.Context, session *models.AcademicSession) error) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		session, err := s.repo.LockByID(ctx, id)
		if err != nil {
			if database.IsRetryable(err) {
				return err
			}
			return lookupError(err, "session")
		}
		return fn(ctx, session)
	})
}

func (s *SessionService) invalidateAgenda(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, "agenda:*")
	}
}

// resolvedSeats drops seats of pool sessions that still have no effective subject.
func resolvedSeats(seats []models.SessionEnrollment, session *models.AcademicSession) []models.SessionEnrollment {
	if session.SubjectID != nil {
		return seats
	}
	out := make([]models.SessionEnrollment, 0, len(seats))
	for _, seat := range seats {
		if seat.EffectiveSubjectID != nil {
			out = append(out, seat)
		}
	}
	return out
}

// studentUnit is the unit used for audience checks; a student without progress yet is in unit 1.
func studentUnit(student *models.Student) int {
	if student.CurrentUnit < 1 {
		return 1
	}
	return student.CurrentUnit
}

func subjectCodes(cat *curriculum.Catalog, ids []string) []string {
	codes := make([]string, 0, len(ids))
	for _, id := range ids {
		if subject, ok := cat.Subject(id); ok {
			codes = append(codes, subject.Code)
			continue
		}
		codes = append(codes, id)
	}
	return codes
}
