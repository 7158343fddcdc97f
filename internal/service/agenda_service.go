package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/benglish/academic-core/internal/curriculum"
	"github.com/benglish/academic-core/internal/models"
)

type agendaSessionStore interface {
	FindByID(ctx context.Context, id string) (*models.AcademicSession, error)
	ListAgendaCandidates(ctx context.Context, programID string, window models.AgendaWindow) ([]models.AcademicSession, error)
	ListSeatsByStudent(ctx context.Context, studentID string, sessionIDs []string) ([]models.SessionEnrollment, error)
}

type notificationStore interface {
	MarkViewed(ctx context.Context, userID, sessionID string) error
	ViewedSessionIDs(ctx context.Context, userID string, sessionIDs []string) (map[string]bool, error)
}

type historyLedger interface {
	Ledger(ctx context.Context, studentID string) (curriculum.Ledger, error)
}

type agendaCache interface {
	Get(ctx context.Context, key string, dest interface{}) bool
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration)
}

// AgendaItem is one session the student can take, already resolved for them.
type AgendaItem struct {
	SessionID        string                         `json:"session_id"`
	DatetimeStart    time.Time                      `json:"datetime_start"`
	DatetimeEnd      time.Time                      `json:"datetime_end"`
	State            models.SessionState            `json:"state"`
	TeacherID        string                         `json:"teacher_id"`
	IsVirtual        bool                           `json:"is_virtual"`
	MeetingURL       *string                        `json:"meeting_url,omitempty"`
	ElectivePoolID   *string                        `json:"elective_pool_id,omitempty"`
	SubjectID        string                         `json:"subject_id"`
	SubjectCode      string                         `json:"subject_code"`
	SubjectName      string                         `json:"subject_name"`
	EffectiveUnit    int                            `json:"effective_unit"`
	AudienceUnitFrom int                            `json:"audience_unit_from"`
	AudienceUnitTo   int                            `json:"audience_unit_to"`
	SeatState        *models.SessionEnrollmentState `json:"seat_state,omitempty"`
	Viewed           bool                           `json:"viewed"`
}

// AgendaService projects the sessions visible to a student.
type AgendaService struct {
	sessions      agendaSessionStore
	students      studentReader
	catalog       sessionCatalog
	history       historyLedger
	notifications notificationStore
	cache         agendaCache
	defaultWindow time.Duration
	logger        *zap.Logger
	now           func() time.Time
}

// NewAgendaService constructs AgendaService.
func NewAgendaService(sessions agendaSessionStore, students studentReader, catalog sessionCatalog, history historyLedger, notifications notificationStore, cache agendaCache, defaultWindow time.Duration, logger *zap.Logger) *AgendaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultWindow <= 0 {
		defaultWindow = 7 * 24 * time.Hour
	}
	return &AgendaService{
		sessions:      sessions,
		students:      students,
		catalog:       catalog,
		history:       history,
		notifications: notifications,
		cache:         cache,
		defaultWindow: defaultWindow,
		logger:        logger,
		now:           time.Now,
	}
}

// Window returns [now, now+span); a non-positive span uses the configured default.
func (s *AgendaService) Window(span time.Duration) models.AgendaWindow {
	if span <= 0 {
		span = s.defaultWindow
	}
	from := s.now().UTC()
	return models.AgendaWindow{From: from, To: from.Add(span)}
}

// Agenda lists published, open sessions of the student's program that start inside window,
// whose audience contains the student's current unit and that still resolve to a subject
// for the student, ordered by start. Viewed flags are those of userID.
func (s *AgendaService) Agenda(ctx context.Context, userID, studentID string, window models.AgendaWindow) ([]AgendaItem, error) {
	if window.To.IsZero() || !window.To.After(window.From) {
		window = s.Window(0)
	}
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		return nil, lookupError(err, "student")
	}

	items, err := s.project(ctx, student, window)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 || userID == "" {
		return items, nil
	}

	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.SessionID
	}
	viewed, err := s.notifications.ViewedSessionIDs(ctx, userID, ids)
	if err != nil {
		s.logger.Warn("failed to load notification views", zap.String("user_id", userID), zap.Error(err))
		return items, nil
	}
	for i := range items {
		items[i].Viewed = viewed[items[i].SessionID]
	}
	return items, nil
}

func (s *AgendaService) project(ctx context.Context, student *models.Student, window models.AgendaWindow) ([]AgendaItem, error) {
	key := agendaCacheKey(student.ID, window)
	var cached []AgendaItem
	if s.cache != nil && s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	items := make([]AgendaItem, 0)
	if student.ProgramID == nil {
		return items, nil
	}
	candidates, err := s.sessions.ListAgendaCandidates(ctx, *student.ProgramID, window)
	if err != nil {
		return nil, internalError(err, "failed to load agenda sessions")
	}
	ledger, err := s.history.Ledger(ctx, student.ID)
	if err != nil {
		return nil, err
	}

	unit := studentUnit(student)
	for i := range candidates {
		session := &candidates[i]
		if !session.InAudience(unit) {
			continue
		}
		subject, ok, err := resolveSubject(ctx, s.catalog, session, ledger)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		items = append(items, AgendaItem{
			SessionID:        session.ID,
			DatetimeStart:    session.DatetimeStart,
			DatetimeEnd:      session.DatetimeEnd,
			State:            session.State,
			TeacherID:        session.TeacherID,
			IsVirtual:        session.IsVirtual,
			MeetingURL:       session.MeetingURL,
			ElectivePoolID:   session.ElectivePoolID,
			SubjectID:        subject.ID,
			SubjectCode:      subject.Code,
			SubjectName:      subject.Name,
			EffectiveUnit:    curriculum.EffectiveUnit(subject, unit),
			AudienceUnitFrom: session.AudienceUnitFrom,
			AudienceUnitTo:   session.AudienceUnitTo,
		})
	}

	if len(items) > 0 {
		ids := make([]string, len(items))
		for i, item := range items {
			ids[i] = item.SessionID
		}
		seats, err := s.sessions.ListSeatsByStudent(ctx, student.ID, ids)
		if err != nil {
			return nil, internalError(err, "failed to load student seats")
		}
		states := make(map[string]models.SessionEnrollmentState, len(seats))
		for _, seat := range seats {
			states[seat.SessionID] = seat.State
		}
		for i := range items {
			if st, ok := states[items[i].SessionID]; ok {
				st := st
				items[i].SeatState = &st
			}
		}
	}

	if s.cache != nil {
		s.cache.Set(ctx, key, items, 0)
	}
	return items, nil
}

// MarkViewed records that userID has seen the notification of a session.
func (s *AgendaService) MarkViewed(ctx context.Context, userID, sessionID string) error {
	if _, err := s.sessions.FindByID(ctx, sessionID); err != nil {
		return lookupError(err, "session")
	}
	if err := s.notifications.MarkViewed(ctx, userID, sessionID); err != nil {
		return internalError(err, "failed to record notification view")
	}
	return nil
}

func agendaCacheKey(studentID string, window models.AgendaWindow) string {
	// minute granularity keeps repeated "now"-based windows on the same key
	return fmt.Sprintf("agenda:%s:%d:%d", studentID, window.From.Unix()/60, window.To.Unix()/60)
}
