package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/benglish/academic-core/internal/models"
	"github.com/benglish/academic-core/pkg/database"
)

type stubTx struct {
	calls int
	err   error
}

func (s *stubTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	return fn(ctx)
}

func strPtr(v string) *string { return &v }

func intPtr(v int) *int { return &v }

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

// --- students ---------------------------------------------------------------

type fakeStudents struct {
	items   map[string]*models.Student
	levels  map[string]*models.Level
	locks   []string
	updates []models.StudentProgressUpdate
}

func newFakeStudents(students ...models.Student) *fakeStudents {
	f := &fakeStudents{items: make(map[string]*models.Student), levels: make(map[string]*models.Level)}
	for i := range students {
		st := students[i]
		f.items[st.ID] = &st
	}
	return f
}

func (f *fakeStudents) FindByID(_ context.Context, id string) (*models.Student, error) {
	if st, ok := f.items[id]; ok {
		cp := *st
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeStudents) FindByCode(_ context.Context, code string) (*models.Student, error) {
	for _, st := range f.items {
		if st.Code == code {
			cp := *st
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeStudents) LockProgress(_ context.Context, id string) error {
	f.locks = append(f.locks, id)
	return nil
}

func (f *fakeStudents) UpdateProgress(_ context.Context, u models.StudentProgressUpdate) error {
	f.updates = append(f.updates, u)
	st, ok := f.items[u.StudentID]
	if !ok {
		return sql.ErrNoRows
	}
	st.CurrentPhaseID = u.CurrentPhaseID
	st.CurrentLevelID = u.CurrentLevelID
	st.MaxUnitCompleted = u.MaxUnitCompleted
	st.CurrentUnit = u.CurrentUnit
	st.AcademicProgressPercentage = u.AcademicProgressPercentage
	st.CompletedHours = u.CompletedHours
	at := u.ProgressComputedAt
	st.ProgressComputedAt = &at
	return nil
}

func (f *fakeStudents) FindLevelForUnit(_ context.Context, programID string, unit int) (*models.Level, error) {
	if level, ok := f.levels[fmt.Sprintf("%s:%d", programID, unit)]; ok {
		cp := *level
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeStudents) ListIDs(_ context.Context, after string, limit int) ([]string, error) {
	var ids []string
	for id := range f.items {
		if id > after {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// --- teachers ---------------------------------------------------------------

type fakeTeachers struct {
	items map[string]*models.Teacher
}

func newFakeTeachers(teachers ...models.Teacher) *fakeTeachers {
	f := &fakeTeachers{items: make(map[string]*models.Teacher)}
	for i := range teachers {
		t := teachers[i]
		f.items[t.ID] = &t
	}
	return f
}

func (f *fakeTeachers) FindByID(_ context.Context, id string) (*models.Teacher, error) {
	if t, ok := f.items[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeTeachers) FindByName(_ context.Context, name string) (*models.Teacher, error) {
	for _, t := range f.items {
		if strings.EqualFold(t.Name, name) {
			cp := *t
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

// --- catalog ----------------------------------------------------------------

type fakeCatalogStore struct {
	programs     map[string]*models.Program
	phases       map[string]*models.Phase
	levels       map[string]*models.Level
	subjectTypes map[string]*models.SubjectType
	subjects     map[string]*models.Subject
	pools        map[string]*models.ElectivePool
	seq          int
}

func newFakeCatalogStore() *fakeCatalogStore {
	return &fakeCatalogStore{
		programs:     make(map[string]*models.Program),
		phases:       make(map[string]*models.Phase),
		levels:       make(map[string]*models.Level),
		subjectTypes: make(map[string]*models.SubjectType),
		subjects:     make(map[string]*models.Subject),
		pools:        make(map[string]*models.ElectivePool),
	}
}

func (f *fakeCatalogStore) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *fakeCatalogStore) addSubjects(subjects ...models.Subject) {
	for i := range subjects {
		s := subjects[i]
		f.subjects[s.ID] = &s
	}
}

func (f *fakeCatalogStore) GetSubject(_ context.Context, id string) (*models.Subject, error) {
	if s, ok := f.subjects[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeCatalogStore) ListSubjects(_ context.Context, filter models.SubjectFilter) ([]models.Subject, error) {
	out := make([]models.Subject, 0, len(f.subjects))
	for _, s := range f.subjects {
		if filter.ProgramID != "" && derefString(s.ProgramID) != filter.ProgramID {
			continue
		}
		if filter.Category != "" && s.Category != filter.Category {
			continue
		}
		if filter.Configured && !s.Configured() {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (f *fakeCatalogStore) ListSubjectsByIDs(_ context.Context, ids []string) ([]models.Subject, error) {
	out := make([]models.Subject, 0, len(ids))
	for _, id := range ids {
		if s, ok := f.subjects[id]; ok {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeCatalogStore) GetPool(_ context.Context, id string) (*models.ElectivePool, error) {
	if p, ok := f.pools[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeCatalogStore) FindActivePool(_ context.Context, programID string, phaseID *string) (*models.ElectivePool, error) {
	var fallback *models.ElectivePool
	for _, p := range f.pools {
		if p.ProgramID != programID || p.State != models.PoolStateActive {
			continue
		}
		if phaseID != nil && p.PhaseID != nil && *p.PhaseID == *phaseID {
			cp := *p
			return &cp, nil
		}
		if p.PhaseID == nil {
			cp := *p
			fallback = &cp
		}
	}
	if fallback != nil {
		return fallback, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeCatalogStore) GetLevel(_ context.Context, id string) (*models.Level, error) {
	if l, ok := f.levels[id]; ok {
		cp := *l
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeCatalogStore) DerivedProgramID(_ context.Context, levelID string) (string, error) {
	level, ok := f.levels[levelID]
	if !ok {
		return "", sql.ErrNoRows
	}
	phase, ok := f.phases[level.PhaseID]
	if !ok {
		return "", sql.ErrNoRows
	}
	return phase.ProgramID, nil
}

func (f *fakeCatalogStore) ExistingSubjectIDs(_ context.Context, ids []string) ([]string, error) {
	var out []string
	for _, id := range ids {
		if _, ok := f.subjects[id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *fakeCatalogStore) SaveSubject(_ context.Context, s *models.Subject) error {
	if s.ID == "" {
		s.ID = f.nextID("subject")
	}
	if s.SubjectTypeID != nil {
		if st, ok := f.subjectTypes[*s.SubjectTypeID]; ok {
			s.IsElectivePool = st.IsElectivePool
		}
	}
	cp := *s
	cp.PrerequisiteIDs = nil
	if prev, ok := f.subjects[s.ID]; ok {
		cp.PrerequisiteIDs = prev.PrerequisiteIDs
	}
	f.subjects[s.ID] = &cp
	return nil
}

func (f *fakeCatalogStore) ReplacePrerequisites(_ context.Context, id string, ids []string) error {
	s, ok := f.subjects[id]
	if !ok {
		return sql.ErrNoRows
	}
	s.PrerequisiteIDs = append([]string(nil), ids...)
	return nil
}

func (f *fakeCatalogStore) ListProgramMismatches(ctx context.Context) ([]models.SubjectProgramMismatch, error) {
	var out []models.SubjectProgramMismatch
	for _, s := range f.subjects {
		derived, err := f.DerivedProgramID(ctx, s.LevelID)
		if err != nil {
			continue
		}
		if derefString(s.ProgramID) != derived {
			out = append(out, models.SubjectProgramMismatch{SubjectID: s.ID, SubjectCode: s.Code, StoredProgram: s.ProgramID, DerivedProgram: derived})
		}
	}
	return out, nil
}

func (f *fakeCatalogStore) SaveProgram(_ context.Context, p *models.Program) error {
	if p.ID == "" {
		p.ID = f.nextID("program")
	}
	cp := *p
	f.programs[p.ID] = &cp
	return nil
}

func (f *fakeCatalogStore) SavePhase(_ context.Context, p *models.Phase) error {
	if p.ID == "" {
		p.ID = f.nextID("phase")
	}
	cp := *p
	f.phases[p.ID] = &cp
	return nil
}

func (f *fakeCatalogStore) SaveLevel(_ context.Context, l *models.Level) error {
	if l.ID == "" {
		l.ID = f.nextID("level")
	}
	cp := *l
	f.levels[l.ID] = &cp
	return nil
}

func (f *fakeCatalogStore) SaveSubjectType(_ context.Context, st *models.SubjectType) error {
	if st.ID == "" {
		st.ID = f.nextID("type")
	}
	cp := *st
	f.subjectTypes[st.ID] = &cp
	return nil
}

func (f *fakeCatalogStore) SavePool(_ context.Context, p *models.ElectivePool) error {
	if p.ID == "" {
		p.ID = f.nextID("pool")
	}
	if p.State == "" {
		p.State = models.PoolStateDraft
	}
	cp := *p
	f.pools[p.ID] = &cp
	return nil
}

// --- history ----------------------------------------------------------------

type fakeHistory struct {
	rows     []models.AcademicHistory
	students *fakeStudents
	catalog  *fakeCatalogStore
	teachers *fakeTeachers
	seq      int
}

func (f *fakeHistory) Insert(_ context.Context, h *models.AcademicHistory) (bool, error) {
	for _, row := range f.rows {
		if h.SessionID != nil && row.SessionID != nil && *row.SessionID == *h.SessionID &&
			row.StudentID == h.StudentID && row.SubjectID == h.SubjectID {
			return false, nil
		}
	}
	f.seq++
	h.ID = fmt.Sprintf("history-%d", f.seq)
	h.CreatedAt = time.Now()
	f.rows = append(f.rows, *h)
	return true, nil
}

func (f *fakeHistory) ListByStudent(_ context.Context, studentID string) ([]models.AcademicHistory, error) {
	var out []models.AcademicHistory
	for _, row := range f.rows {
		if row.StudentID == studentID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeHistory) ListDetailed(_ context.Context, filter models.HistoryFilter) ([]models.HistoryDetail, error) {
	var out []models.HistoryDetail
	for _, row := range f.rows {
		if filter.StudentID != "" && row.StudentID != filter.StudentID {
			continue
		}
		detail := models.HistoryDetail{AcademicHistory: row}
		if st, ok := f.students.items[row.StudentID]; ok {
			detail.StudentCode = st.Code
			detail.StudentName = st.FullName()
		}
		if s, ok := f.catalog.subjects[row.SubjectID]; ok {
			detail.SubjectCode = s.Code
			detail.SubjectName = s.Name
		}
		if row.TeacherID != nil && f.teachers != nil {
			if t, ok := f.teachers.items[*row.TeacherID]; ok {
				detail.TeacherName = strPtr(t.Name)
			}
		}
		out = append(out, detail)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SessionDate.Before(out[j].SessionDate) })
	return out, nil
}

func (f *fakeHistory) FindByID(_ context.Context, id string) (*models.AcademicHistory, error) {
	for _, row := range f.rows {
		if row.ID == id {
			cp := row
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeHistory) FindByDate(_ context.Context, studentID, subjectID string, date time.Time) (*models.AcademicHistory, error) {
	for _, row := range f.rows {
		if row.StudentID == studentID && row.SubjectID == subjectID && row.SessionDate.Equal(date) {
			cp := row
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeHistory) UpdateAnnotations(_ context.Context, id string, ann models.HistoryAnnotations, setGrade bool) error {
	for i := range f.rows {
		if f.rows[i].ID != id {
			continue
		}
		if setGrade {
			f.rows[i].Grade = ann.Grade
		}
		if ann.Notes != nil {
			f.rows[i].Notes = *ann.Notes
		}
		if ann.Novedad != nil {
			f.rows[i].Novedad = *ann.Novedad
		}
		return nil
	}
	return sql.ErrNoRows
}

func (f *fakeHistory) UpdateGradeBySession(_ context.Context, sessionID, studentID string, grade decimal.NullDecimal) (int64, error) {
	var n int64
	for i := range f.rows {
		if f.rows[i].SessionID != nil && *f.rows[i].SessionID == sessionID && f.rows[i].StudentID == studentID {
			f.rows[i].Grade = grade
			n++
		}
	}
	return n, nil
}

func (f *fakeHistory) NullZeroGrades(_ context.Context) (int64, error) {
	var n int64
	for i := range f.rows {
		if f.rows[i].Grade.Valid && f.rows[i].Grade.Decimal.IsZero() {
			f.rows[i].Grade = decimal.NullDecimal{}
			n++
		}
	}
	return n, nil
}

// --- enrollments ------------------------------------------------------------

type fakeEnrollments struct {
	items    map[string]*models.Enrollment
	progress map[string]map[string]models.ProgressState
	plans    *fakePlans
	seq      int
}

func newFakeEnrollments(plans *fakePlans, enrollments ...models.Enrollment) *fakeEnrollments {
	f := &fakeEnrollments{items: make(map[string]*models.Enrollment), progress: make(map[string]map[string]models.ProgressState), plans: plans}
	for i := range enrollments {
		e := enrollments[i]
		f.items[e.ID] = &e
		f.progress[e.ID] = make(map[string]models.ProgressState)
	}
	return f
}

func (f *fakeEnrollments) Create(_ context.Context, e *models.Enrollment) error {
	f.seq++
	e.ID = fmt.Sprintf("enrollment-%d", f.seq)
	cp := *e
	f.items[e.ID] = &cp
	f.progress[e.ID] = make(map[string]models.ProgressState)
	return nil
}

func (f *fakeEnrollments) FindByID(_ context.Context, id string) (*models.Enrollment, error) {
	if e, ok := f.items[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeEnrollments) ListByStudent(_ context.Context, studentID string) ([]models.Enrollment, error) {
	var out []models.Enrollment
	for _, e := range f.items {
		if e.StudentID == studentID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeEnrollments) FindActiveByStudent(_ context.Context, studentID string) (*models.Enrollment, error) {
	for _, e := range f.items {
		if e.StudentID == studentID && e.State.Active() {
			cp := *e
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeEnrollments) ListActiveByPlan(_ context.Context, planID string) ([]models.Enrollment, error) {
	var out []models.Enrollment
	for _, e := range f.items {
		if e.PlanID == planID && !e.State.Terminal() {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakeEnrollments) UpdateState(_ context.Context, id string, from, to models.EnrollmentState) (bool, error) {
	e, ok := f.items[id]
	if !ok || e.State != from {
		return false, nil
	}
	e.State = to
	return true, nil
}

func (f *fakeEnrollments) InsertProgressRows(_ context.Context, id string, subjectIDs []string) (int64, error) {
	rows := f.progress[id]
	var n int64
	for _, sid := range subjectIDs {
		if _, ok := rows[sid]; ok {
			continue
		}
		rows[sid] = models.ProgressPending
		n++
	}
	return n, nil
}

func (f *fakeEnrollments) PruneProgressRows(_ context.Context, planID string) (int64, error) {
	keep := make(map[string]struct{})
	for _, id := range f.plans.subjects[planID] {
		keep[id] = struct{}{}
	}
	var n int64
	for id, e := range f.items {
		if e.PlanID != planID || e.State.Terminal() {
			continue
		}
		for sid := range f.progress[id] {
			if _, ok := keep[sid]; !ok {
				delete(f.progress[id], sid)
				n++
			}
		}
	}
	return n, nil
}

func (f *fakeEnrollments) ListProgress(_ context.Context, id string) ([]models.EnrollmentProgress, error) {
	var out []models.EnrollmentProgress
	for sid, st := range f.progress[id] {
		out = append(out, models.EnrollmentProgress{EnrollmentID: id, SubjectID: sid, State: st})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubjectID < out[j].SubjectID })
	return out, nil
}

func (f *fakeEnrollments) UpdateProgressStates(_ context.Context, id string, states map[string]models.ProgressState) error {
	rows := f.progress[id]
	for sid, st := range states {
		if _, ok := rows[sid]; ok {
			rows[sid] = st
		}
	}
	return nil
}

func (f *fakeEnrollments) BackfillProgress(ctx context.Context, limit int) (int64, error) {
	var total int64
	for id, e := range f.items {
		if len(f.progress[id]) > 0 || e.State.Terminal() {
			continue
		}
		n, _ := f.InsertProgressRows(ctx, id, f.plans.subjects[e.PlanID])
		total += n
		if int(total) >= limit {
			break
		}
	}
	return total, nil
}

// --- plans ------------------------------------------------------------------

type fakePlans struct {
	items     map[string]*models.Plan
	subjects  map[string][]string
	reconcile map[string][]string
}

func newFakePlans(plans ...models.Plan) *fakePlans {
	f := &fakePlans{items: make(map[string]*models.Plan), subjects: make(map[string][]string), reconcile: make(map[string][]string)}
	for i := range plans {
		p := plans[i]
		f.items[p.ID] = &p
		f.subjects[p.ID] = p.SubjectIDs
	}
	return f
}

func (f *fakePlans) FindByID(_ context.Context, id string) (*models.Plan, error) {
	if p, ok := f.items[id]; ok {
		cp := *p
		cp.SubjectIDs = f.subjects[id]
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakePlans) SubjectIDs(_ context.Context, id string) ([]string, error) {
	return f.subjects[id], nil
}

func (f *fakePlans) ListIDs(_ context.Context, after string, limit int) ([]string, error) {
	var ids []string
	for id := range f.items {
		if id > after {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (f *fakePlans) Save(_ context.Context, p *models.Plan) error {
	if p.ID == "" {
		p.ID = fmt.Sprintf("plan-%d", len(f.items)+1)
	}
	cp := *p
	f.items[p.ID] = &cp
	return nil
}

// ReconcileSubjects swaps in the subject set staged in reconcile, if any.
func (f *fakePlans) ReconcileSubjects(_ context.Context, id string) (models.PlanReconciliation, error) {
	result := models.PlanReconciliation{PlanID: id}
	next, ok := f.reconcile[id]
	if !ok {
		return result, nil
	}
	delete(f.reconcile, id)
	prev := make(map[string]struct{})
	for _, sid := range f.subjects[id] {
		prev[sid] = struct{}{}
	}
	now := make(map[string]struct{})
	for _, sid := range next {
		now[sid] = struct{}{}
		if _, ok := prev[sid]; !ok {
			result.Added++
		}
	}
	for sid := range prev {
		if _, ok := now[sid]; !ok {
			result.Removed++
		}
	}
	f.subjects[id] = next
	return result, nil
}

// --- sessions ---------------------------------------------------------------

type fakeSessions struct {
	items       map[string]*models.AcademicSession
	seats       map[string]*models.SessionEnrollment
	attachments map[string][]models.NoveltyAttachment
	lockErrs    []error
	locks       int
	seq         int
}

func newFakeSessions(sessions ...models.AcademicSession) *fakeSessions {
	f := &fakeSessions{
		items:       make(map[string]*models.AcademicSession),
		seats:       make(map[string]*models.SessionEnrollment),
		attachments: make(map[string][]models.NoveltyAttachment),
	}
	for i := range sessions {
		s := sessions[i]
		f.items[s.ID] = &s
	}
	return f
}

func (f *fakeSessions) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *fakeSessions) Create(_ context.Context, s *models.AcademicSession) error {
	s.ID = f.nextID("session")
	cp := *s
	f.items[s.ID] = &cp
	return nil
}

func (f *fakeSessions) FindByID(_ context.Context, id string) (*models.AcademicSession, error) {
	if s, ok := f.items[id]; ok {
		cp := *s
		cp.Attachments = f.attachments[id]
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

// LockByID fails with the queued errors first, then behaves like FindByID.
func (f *fakeSessions) LockByID(ctx context.Context, id string) (*models.AcademicSession, error) {
	f.locks++
	if len(f.lockErrs) > 0 {
		err := f.lockErrs[0]
		f.lockErrs = f.lockErrs[1:]
		return nil, err
	}
	s, err := f.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Attachments = nil
	return s, nil
}

func (f *fakeSessions) UpdateState(_ context.Context, id string, from []models.SessionState, to models.SessionState) (bool, error) {
	s, ok := f.items[id]
	if !ok {
		return false, nil
	}
	for _, st := range from {
		if s.State == st {
			s.State = to
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeSessions) SetPublished(_ context.Context, id string, published bool) error {
	s, ok := f.items[id]
	if !ok {
		return sql.ErrNoRows
	}
	s.IsPublished = published
	if published && s.State == models.SessionDraft {
		s.State = models.SessionActive
	}
	return nil
}

func (f *fakeSessions) SetNovelty(_ context.Context, id string, novelty models.NoveltyType, observation *string) error {
	s, ok := f.items[id]
	if !ok {
		return sql.ErrNoRows
	}
	s.NoveltyType = &novelty
	s.NoveltyObservation = observation
	return nil
}

func (f *fakeSessions) AddAttachment(_ context.Context, a *models.NoveltyAttachment) error {
	a.ID = f.nextID("attachment")
	f.attachments[a.SessionID] = append(f.attachments[a.SessionID], *a)
	return nil
}

func (f *fakeSessions) ListAttachments(_ context.Context, sessionID string) ([]models.NoveltyAttachment, error) {
	return f.attachments[sessionID], nil
}

func (f *fakeSessions) ListDoneSessionIDs(_ context.Context, after string, limit int) ([]string, error) {
	var ids []string
	for id, s := range f.items {
		if s.State == models.SessionDone && id > after {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (f *fakeSessions) ListAgendaCandidates(_ context.Context, programID string, window models.AgendaWindow) ([]models.AcademicSession, error) {
	var out []models.AcademicSession
	for _, s := range f.items {
		if s.ProgramID != programID || !s.IsPublished || s.State.Terminal() || s.State == models.SessionDraft {
			continue
		}
		if s.DatetimeStart.Before(window.From) || !s.DatetimeStart.Before(window.To) {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DatetimeStart.Before(out[j].DatetimeStart) })
	return out, nil
}

func (f *fakeSessions) FindSeat(_ context.Context, sessionID, studentID string) (*models.SessionEnrollment, error) {
	for _, seat := range f.seats {
		if seat.SessionID == sessionID && seat.StudentID == studentID {
			cp := *seat
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeSessions) FindSeatByID(_ context.Context, id string) (*models.SessionEnrollment, error) {
	if seat, ok := f.seats[id]; ok {
		cp := *seat
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeSessions) InsertSeat(_ context.Context, seat *models.SessionEnrollment) error {
	seat.ID = f.nextID("seat")
	cp := *seat
	f.seats[seat.ID] = &cp
	return nil
}

func (f *fakeSessions) ReactivateSeat(_ context.Context, seat *models.SessionEnrollment) error {
	stored, ok := f.seats[seat.ID]
	if !ok {
		return sql.ErrNoRows
	}
	seat.State = models.SeatReserved
	*stored = *seat
	return nil
}

func (f *fakeSessions) CountHolding(_ context.Context, sessionID string) (int, error) {
	n := 0
	for _, seat := range f.seats {
		if seat.SessionID == sessionID && seat.State.Holding() {
			n++
		}
	}
	return n, nil
}

func (f *fakeSessions) ListSeats(_ context.Context, sessionID string) ([]models.SessionEnrollment, error) {
	var out []models.SessionEnrollment
	for _, seat := range f.seats {
		if seat.SessionID == sessionID {
			out = append(out, *seat)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeSessions) ListSeatsByStudent(_ context.Context, studentID string, sessionIDs []string) ([]models.SessionEnrollment, error) {
	wanted := make(map[string]struct{}, len(sessionIDs))
	for _, id := range sessionIDs {
		wanted[id] = struct{}{}
	}
	var out []models.SessionEnrollment
	for _, seat := range f.seats {
		if _, ok := wanted[seat.SessionID]; ok && seat.StudentID == studentID {
			out = append(out, *seat)
		}
	}
	return out, nil
}

func (f *fakeSessions) UpdateSeatState(_ context.Context, id string, state models.SessionEnrollmentState) error {
	seat, ok := f.seats[id]
	if !ok {
		return sql.ErrNoRows
	}
	seat.State = state
	return nil
}

func (f *fakeSessions) MarkRemaining(_ context.Context, sessionID string, from, to models.SessionEnrollmentState) (int64, error) {
	var n int64
	for _, seat := range f.seats {
		if seat.SessionID == sessionID && seat.State == from {
			seat.State = to
			n++
		}
	}
	return n, nil
}

func (f *fakeSessions) SetSeatGrade(_ context.Context, id string, grade decimal.NullDecimal) error {
	seat, ok := f.seats[id]
	if !ok {
		return sql.ErrNoRows
	}
	seat.Grade = grade
	if grade.Valid {
		now := time.Now()
		seat.GradeRegisteredAt = &now
	} else {
		seat.GradeRegisteredAt = nil
	}
	return nil
}

func (f *fakeSessions) SetSeatEffectiveSubject(_ context.Context, id, subjectID string, unit int) error {
	seat, ok := f.seats[id]
	if !ok {
		return sql.ErrNoRows
	}
	seat.EffectiveSubjectID = &subjectID
	seat.EffectiveUnitNumber = &unit
	return nil
}

func (f *fakeSessions) NullZeroGrades(_ context.Context) (int64, error) {
	var n int64
	for _, seat := range f.seats {
		if seat.Grade.Valid && seat.Grade.Decimal.IsZero() && seat.GradeRegisteredAt == nil {
			seat.Grade = decimal.NullDecimal{}
			n++
		}
	}
	return n, nil
}

// --- cache, notifications, placement -----------------------------------------

type fakeCache struct {
	values      map[string][]byte
	invalidated []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: make(map[string][]byte)}
}

func (f *fakeCache) Get(_ context.Context, key string, dest interface{}) bool {
	raw, ok := f.values[key]
	if !ok {
		return false
	}
	return json.Unmarshal(raw, dest) == nil
}

func (f *fakeCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) {
	raw, err := json.Marshal(value)
	if err == nil {
		f.values[key] = raw
	}
}

func (f *fakeCache) Invalidate(_ context.Context, pattern string) {
	f.invalidated = append(f.invalidated, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range f.values {
		if strings.HasPrefix(key, prefix) {
			delete(f.values, key)
		}
	}
}

type fakeNotifications struct {
	viewed map[string]bool
	err    error
}

func (f *fakeNotifications) MarkViewed(_ context.Context, userID, sessionID string) error {
	if f.viewed == nil {
		f.viewed = make(map[string]bool)
	}
	f.viewed[userID+"/"+sessionID] = true
	return nil
}

func (f *fakeNotifications) ViewedSessionIDs(_ context.Context, userID string, ids []string) (map[string]bool, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]bool)
	for _, id := range ids {
		if f.viewed[userID+"/"+id] {
			out[id] = true
		}
	}
	return out, nil
}

type fakeCursor struct {
	positions map[string]int64
}

func (f *fakeCursor) Next(_ context.Context, queue string) (int64, error) {
	if f.positions == nil {
		f.positions = make(map[string]int64)
	}
	f.positions[queue]++
	return f.positions[queue], nil
}

type fakePlacements struct {
	items    map[string]*models.PlacementTest
	students map[string]string // student code -> id
	seq      int
}

func (f *fakePlacements) Create(_ context.Context, p *models.PlacementTest) error {
	if f.items == nil {
		f.items = make(map[string]*models.PlacementTest)
	}
	f.seq++
	p.ID = fmt.Sprintf("placement-%d", f.seq)
	cp := *p
	f.items[p.ID] = &cp
	return nil
}

func (f *fakePlacements) FindByID(_ context.Context, id string) (*models.PlacementTest, error) {
	if p, ok := f.items[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakePlacements) LockPendingByStudentCode(_ context.Context, code string) (*models.PlacementTest, error) {
	for _, p := range f.items {
		if p.StudentCode == code && (p.State == models.PlacementPendingOral || p.State == models.PlacementPendingLMS) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakePlacements) RecordLMSScores(_ context.Context, id string, scores models.LMSScores) error {
	p := f.items[id]
	p.LMSScore = scores.LMS
	p.GrammarScore = scores.Grammar
	p.ListeningScore = scores.Listening
	p.ReadingScore = scores.Reading
	p.State = models.PlacementPendingDecision
	now := time.Now()
	p.LMSReceivedAt = &now
	return nil
}

func (f *fakePlacements) Consolidate(_ context.Context, id string, d models.PlacementDecision) error {
	p := f.items[id]
	p.FinalScore = decimal.NullDecimal{Decimal: d.FinalScore, Valid: true}
	unit := d.RecommendedUnit
	p.RecommendedUnit = &unit
	advisor := d.Advisor
	p.Advisor = &advisor
	p.State = models.PlacementConsolidated
	return nil
}

func (f *fakePlacements) LinkStudents(_ context.Context) (int64, error) {
	var n int64
	for _, p := range f.items {
		if id, ok := f.students[p.StudentCode]; ok && p.StudentID == nil {
			id := id
			p.StudentID = &id
			n++
		}
	}
	return n, nil
}

type fakeExternalIDs struct {
	items map[string]models.ExternalID
}

func (f *fakeExternalIDs) Find(_ context.Context, model, xmlID string) (*models.ExternalID, error) {
	if ext, ok := f.items[model+"/"+xmlID]; ok {
		return &ext, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeExternalIDs) Save(_ context.Context, ext *models.ExternalID) error {
	if f.items == nil {
		f.items = make(map[string]models.ExternalID)
	}
	f.items[ext.Model+"/"+ext.XMLID] = *ext
	return nil
}

// --- fixture ----------------------------------------------------------------

const (
	testProgram = "prog-adults"
	testPhase   = "phase-basic"
	testStudent = "stu-1"
	testTeacher = "teacher-1"
	testPlan    = "plan-basic"
)

func unitSubjects(unit int) []models.Subject {
	level := fmt.Sprintf("level-%d", unit)
	out := []models.Subject{{
		ID: fmt.Sprintf("bc-%d", unit), LevelID: level, ProgramID: strPtr(testProgram),
		Code: fmt.Sprintf("U%d-BC", unit), Name: fmt.Sprintf("Unit %d B-check", unit),
		Category: models.CategoryBCheck, UnitNumber: intPtr(unit), Hours: dec("2"),
		Active: true, IsConfiguredForCurriculum: true,
	}}
	for n := 1; n <= 6; n++ {
		out = append(out, models.Subject{
			ID: fmt.Sprintf("bs-%d-%d", unit, n), LevelID: level, ProgramID: strPtr(testProgram),
			Code: fmt.Sprintf("U%d-BS%d", unit, n), Name: fmt.Sprintf("Unit %d B-skill %d", unit, n),
			Category: models.CategoryBSkills, UnitNumber: intPtr(unit), BSkillNumber: intPtr(n), Hours: dec("1"),
			Active: true, IsConfiguredForCurriculum: n <= 4,
		})
	}
	return out
}

// world wires real services over in-memory stores: program prog-adults with units 1-2,
// an active elective pool of two electives, one active student enrolled in plan-basic and
// one teacher.
type world struct {
	tx          *stubTx
	catalogRepo *fakeCatalogStore
	students    *fakeStudents
	teachers    *fakeTeachers
	history     *fakeHistory
	plans       *fakePlans
	enrollments *fakeEnrollments
	sessions    *fakeSessions
	cache       *fakeCache

	catalog     *CatalogService
	progress    *ProgressService
	historySvc  *HistoryService
	sessionSvc  *SessionService
	planSvc     *PlanService
	enrollSvc   *EnrollmentService
	attachments *recordingStorage
}

type recordingStorage struct {
	saved   map[string][]byte
	deleted []string
}

func (r *recordingStorage) SaveStream(name string, body io.Reader, limit int64) (int64, error) {
	buf, err := io.ReadAll(body)
	if err != nil {
		return 0, err
	}
	if limit > 0 && int64(len(buf)) > limit {
		return 0, fmt.Errorf("attachment exceeds %d bytes", limit)
	}
	if r.saved == nil {
		r.saved = make(map[string][]byte)
	}
	r.saved[name] = buf
	return int64(len(buf)), nil
}

func (r *recordingStorage) Delete(name string) error {
	r.deleted = append(r.deleted, name)
	delete(r.saved, name)
	return nil
}

func newWorld(t *testing.T) *world {
	t.Helper()
	w := &world{tx: &stubTx{}, cache: newFakeCache(), attachments: &recordingStorage{}}

	w.catalogRepo = newFakeCatalogStore()
	w.catalogRepo.programs[testProgram] = &models.Program{ID: testProgram, Code: "ADULTS", Name: "Adults", Active: true}
	w.catalogRepo.phases[testPhase] = &models.Phase{ID: testPhase, ProgramID: testProgram, Code: "BASIC", Sequence: 1}
	for unit := 1; unit <= 2; unit++ {
		id := fmt.Sprintf("level-%d", unit)
		w.catalogRepo.levels[id] = &models.Level{ID: id, PhaseID: testPhase, Code: fmt.Sprintf("L%d", unit), Sequence: unit, UnitNumber: intPtr(unit)}
		w.catalogRepo.addSubjects(unitSubjects(unit)...)
	}
	w.catalogRepo.addSubjects(
		models.Subject{ID: "el-a", LevelID: "level-1", ProgramID: strPtr(testProgram), Code: "EL-A", Name: "Elective A",
			Category: models.CategoryElective, Sequence: 1, Hours: dec("1"), Active: true, IsConfiguredForCurriculum: true},
		models.Subject{ID: "el-b", LevelID: "level-1", ProgramID: strPtr(testProgram), Code: "EL-B", Name: "Elective B",
			Category: models.CategoryElective, Sequence: 2, Hours: dec("1"), Active: true, IsConfiguredForCurriculum: true},
		models.Subject{ID: "el-slot", LevelID: "level-1", ProgramID: strPtr(testProgram), Code: "EL-SLOT", Name: "Elective slot",
			Category: models.CategoryElective, Active: true, IsElectivePool: true},
	)
	w.catalogRepo.pools["pool-1"] = &models.ElectivePool{ID: "pool-1", ProgramID: testProgram, PhaseID: strPtr(testPhase),
		Code: "POOL-1", Name: "Basic electives", State: models.PoolStateActive, SubjectIDs: []string{"el-b", "el-a"}}

	w.students = newFakeStudents(models.Student{ID: testStudent, Code: "S-001", FirstName: "Ana", LastName: "Gómez",
		ProgramID: strPtr(testProgram), Active: true, CurrentUnit: 1})
	w.students.levels[testProgram+":1"] = &models.Level{ID: "level-1", PhaseID: testPhase}
	w.students.levels[testProgram+":2"] = &models.Level{ID: "level-2", PhaseID: testPhase}
	w.teachers = newFakeTeachers(models.Teacher{ID: testTeacher, Name: "Laura Pérez", MeetingURL: strPtr("https://meet.example/laura"), Active: true})
	w.history = &fakeHistory{students: w.students, catalog: w.catalogRepo, teachers: w.teachers}

	var planSubjects []string
	for _, s := range unitSubjects(1) {
		if s.Configured() {
			planSubjects = append(planSubjects, s.ID)
		}
	}
	sort.Strings(planSubjects)
	w.plans = newFakePlans(models.Plan{ID: testPlan, ProgramID: testProgram, Code: "BASIC", Name: "Basic", Active: true, SubjectIDs: planSubjects})
	w.enrollments = newFakeEnrollments(w.plans, models.Enrollment{ID: "enrollment-0", StudentID: testStudent, PlanID: testPlan, State: models.EnrollmentEnrolled})
	_, _ = w.enrollments.InsertProgressRows(context.Background(), "enrollment-0", planSubjects)
	w.sessions = newFakeSessions()

	w.catalog = NewCatalogService(w.catalogRepo, w.tx, nil, nil)
	w.progress = NewProgressService(w.students, w.history, w.enrollments, w.plans, w.catalog, w.cache, nil, w.tx, nil)
	w.historySvc = NewHistoryService(w.history, w.students, w.catalog, w.progress, w.tx, nil, nil)
	w.sessionSvc = NewSessionService(w.sessions, w.teachers, w.students, w.enrollments, w.catalog, w.historySvc,
		w.attachments, w.cache, nil, w.tx, SessionConfig{Retry: database.RetryPolicy{Attempts: 2, Backoff: time.Millisecond}, MaxAttachmentBytes: 1024}, nil, nil)
	w.planSvc = NewPlanService(w.plans, w.enrollments, w.progress, w.tx, nil, nil)
	w.enrollSvc = NewEnrollmentService(w.enrollments, w.students, w.plans, w.progress, w.tx, nil, nil)
	return w
}

// attend appends attended history rows for subjectIDs.
func (w *world) attend(studentID string, subjectIDs ...string) {
	for _, id := range subjectIDs {
		w.history.rows = append(w.history.rows, models.AcademicHistory{
			ID: "seed-" + id, StudentID: studentID, SubjectID: id,
			SessionDate: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), AttendanceStatus: models.AttendanceAttended,
		})
	}
}

// session stores an open, published session on subjectID (or pool when poolID is set).
func (w *world) session(id string, subjectID, poolID *string, state models.SessionState) *models.AcademicSession {
	start := time.Now().Add(24 * time.Hour).Truncate(time.Minute)
	s := &models.AcademicSession{
		ID: id, ProgramID: testProgram, SubjectID: subjectID, ElectivePoolID: poolID, TeacherID: testTeacher,
		DatetimeStart: start, DatetimeEnd: start.Add(time.Hour), IsPublished: true, State: state,
		AudienceUnitFrom: 1, AudienceUnitTo: 2,
	}
	cp := *s
	w.sessions.items[id] = &cp
	return s
}
