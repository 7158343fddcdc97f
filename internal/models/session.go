package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SessionState is the lifecycle of an academic session.
type SessionState string

// Session states.
const (
	SessionDraft     SessionState = "draft"
	SessionActive    SessionState = "active"
	SessionStarted   SessionState = "started"
	SessionDone      SessionState = "done"
	SessionCancelled SessionState = "cancelled"
)

// Terminal reports done and cancelled.
func (s SessionState) Terminal() bool {
	return s == SessionDone || s == SessionCancelled
}

// NoveltyType records why a session closed without attendance.
type NoveltyType string

// Novelty types.
const (
	NoveltyPostponed NoveltyType = "postponed"
	NoveltyMaterial  NoveltyType = "material"
)

// Valid reports whether t is a known novelty type.
func (t NoveltyType) Valid() bool {
	return t == NoveltyPostponed || t == NoveltyMaterial
}

// AcademicSession is a published class event bound to a subject or an elective pool.
type AcademicSession struct {
	ID                 string              `db:"id" json:"id"`
	ProgramID          string              `db:"program_id" json:"program_id"`
	SubjectID          *string             `db:"subject_id" json:"subject_id,omitempty"`
	ElectivePoolID     *string             `db:"elective_pool_id" json:"elective_pool_id,omitempty"`
	TeacherID          string              `db:"teacher_id" json:"teacher_id"`
	DatetimeStart      time.Time           `db:"datetime_start" json:"datetime_start"`
	DatetimeEnd        time.Time           `db:"datetime_end" json:"datetime_end"`
	IsVirtual          bool                `db:"is_virtual" json:"is_virtual"`
	MeetingURL         *string             `db:"meeting_url" json:"meeting_url,omitempty"`
	IsPublished        bool                `db:"is_published" json:"is_published"`
	State              SessionState        `db:"state" json:"state"`
	AudienceUnitFrom   int                 `db:"audience_unit_from" json:"audience_unit_from"`
	AudienceUnitTo     int                 `db:"audience_unit_to" json:"audience_unit_to"`
	MaxCapacity        int                 `db:"max_capacity" json:"max_capacity"`
	NoveltyType        *NoveltyType        `db:"novelty_type" json:"novelty_type,omitempty"`
	NoveltyObservation *string             `db:"novelty_observation" json:"novelty_observation,omitempty"`
	Attachments        []NoveltyAttachment `db:"-" json:"novelty_attachments,omitempty"`
	CreatedAt          time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time           `db:"updated_at" json:"updated_at"`
}

// InAudience reports whether unit lies in the session audience range.
func (s AcademicSession) InAudience(unit int) bool {
	return unit >= s.AudienceUnitFrom && unit <= s.AudienceUnitTo
}

// NoveltyAttachment is a file supporting a material novelty.
type NoveltyAttachment struct {
	ID          string    `db:"id" json:"id"`
	SessionID   string    `db:"session_id" json:"session_id"`
	FileName    string    `db:"file_name" json:"file_name"`
	StorageKey  string    `db:"storage_key" json:"-"`
	ContentType string    `db:"content_type" json:"content_type"`
	SizeBytes   int64     `db:"size_bytes" json:"size_bytes"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// SessionEnrollmentState is a student's standing in one session.
type SessionEnrollmentState string

// Session enrollment states.
const (
	SeatReserved  SessionEnrollmentState = "reserved"
	SeatAttended  SessionEnrollmentState = "attended"
	SeatAbsent    SessionEnrollmentState = "absent"
	SeatCancelled SessionEnrollmentState = "cancelled"
)

// Holding reports whether the seat counts toward capacity.
func (s SessionEnrollmentState) Holding() bool {
	return s == SeatReserved || s == SeatAttended || s == SeatAbsent
}

// SessionEnrollment is a student's seat in a session. Effective subject and unit are
// frozen at reservation time.
type SessionEnrollment struct {
	ID                  string                 `db:"id" json:"id"`
	SessionID           string                 `db:"session_id" json:"session_id"`
	StudentID           string                 `db:"student_id" json:"student_id"`
	State               SessionEnrollmentState `db:"state" json:"state"`
	EffectiveSubjectID  *string                `db:"effective_subject_id" json:"effective_subject_id,omitempty"`
	EffectiveUnitNumber *int                   `db:"effective_unit_number" json:"effective_unit_number,omitempty"`
	Grade               decimal.NullDecimal    `db:"grade" json:"grade"`
	GradeRegisteredAt   *time.Time             `db:"grade_registered_at" json:"grade_registered_at,omitempty"`
	CreatedAt           time.Time              `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time              `db:"updated_at" json:"updated_at"`
}

// AgendaWindow bounds agenda queries.
type AgendaWindow struct {
	From time.Time
	To   time.Time
}
