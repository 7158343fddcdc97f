package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AttendanceStatus is the outcome recorded on a history row.
type AttendanceStatus string

// Attendance outcomes.
const (
	AttendanceAttended  AttendanceStatus = "attended"
	AttendanceAbsent    AttendanceStatus = "absent"
	AttendanceJustified AttendanceStatus = "justified"
)

// Valid reports whether s is a known outcome.
func (s AttendanceStatus) Valid() bool {
	return s == AttendanceAttended || s == AttendanceAbsent || s == AttendanceJustified
}

// AcademicHistory is one append-only ledger row. Only Grade, Notes and Novedad change after insert.
// A null Grade means ungraded; zero is a real grade.
type AcademicHistory struct {
	ID               string              `db:"id" json:"id"`
	StudentID        string              `db:"student_id" json:"student_id"`
	SubjectID        string              `db:"subject_id" json:"subject_id"`
	SessionID        *string             `db:"session_id" json:"session_id,omitempty"`
	SessionDate      time.Time           `db:"session_date" json:"session_date"`
	AttendanceStatus AttendanceStatus    `db:"attendance_status" json:"attendance_status"`
	Grade            decimal.NullDecimal `db:"grade" json:"grade"`
	TeacherID        *string             `db:"teacher_id" json:"teacher_id,omitempty"`
	Notes            string              `db:"notes" json:"notes"`
	Novedad          string              `db:"novedad" json:"novedad"`
	CreatedAt        time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time           `db:"updated_at" json:"updated_at"`
}

// HistoryDetail enriches a history row with display names for listings and exports.
type HistoryDetail struct {
	AcademicHistory
	StudentCode string  `db:"student_code" json:"student_code"`
	StudentName string  `db:"student_name" json:"student_name"`
	SubjectCode string  `db:"subject_code" json:"subject_code"`
	SubjectName string  `db:"subject_name" json:"subject_name"`
	TeacherName *string `db:"teacher_name" json:"teacher_name,omitempty"`
}

// HistoryFilter narrows history listings.
type HistoryFilter struct {
	StudentID string
	From      *time.Time
	To        *time.Time
}

// HistoryAnnotations are the mutable fields of a history row.
type HistoryAnnotations struct {
	Grade   decimal.NullDecimal
	Notes   *string
	Novedad *string
}
