package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EnrollmentState represents the lifecycle of an enrollment.
type EnrollmentState string

// Enrollment states.
const (
	EnrollmentDraft      EnrollmentState = "draft"
	EnrollmentEnrolled   EnrollmentState = "enrolled"
	EnrollmentInProgress EnrollmentState = "in_progress"
	EnrollmentSuspended  EnrollmentState = "suspended"
	EnrollmentCompleted  EnrollmentState = "completed"
	EnrollmentCancelled  EnrollmentState = "cancelled"
)

var enrollmentTransitions = map[EnrollmentState][]EnrollmentState{
	EnrollmentDraft:      {EnrollmentEnrolled, EnrollmentCancelled},
	EnrollmentEnrolled:   {EnrollmentInProgress, EnrollmentSuspended, EnrollmentCancelled},
	EnrollmentInProgress: {EnrollmentCompleted, EnrollmentSuspended, EnrollmentCancelled},
	EnrollmentSuspended:  {EnrollmentInProgress, EnrollmentCancelled},
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s EnrollmentState) CanTransitionTo(next EnrollmentState) bool {
	for _, allowed := range enrollmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Active reports whether an enrollment in state s counts as the student's active enrollment.
func (s EnrollmentState) Active() bool {
	return s == EnrollmentEnrolled || s == EnrollmentInProgress
}

// Terminal reports completed and cancelled.
func (s EnrollmentState) Terminal() bool {
	return s == EnrollmentCompleted || s == EnrollmentCancelled
}

// Enrollment binds a student to a plan.
type Enrollment struct {
	ID        string          `db:"id" json:"id"`
	StudentID string          `db:"student_id" json:"student_id"`
	PlanID    string          `db:"plan_id" json:"plan_id"`
	State     EnrollmentState `db:"state" json:"state"`
	StartDate time.Time       `db:"start_date" json:"start_date"`
	EndDate   *time.Time      `db:"end_date" json:"end_date,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// ProgressState is the per-subject state inside an enrollment.
type ProgressState string

// Enrollment progress states.
const (
	ProgressPending    ProgressState = "pending"
	ProgressInProgress ProgressState = "in_progress"
	ProgressCompleted  ProgressState = "completed"
)

// EnrollmentProgress tracks one plan subject for one enrollment.
type EnrollmentProgress struct {
	ID           string              `db:"id" json:"id"`
	EnrollmentID string              `db:"enrollment_id" json:"enrollment_id"`
	SubjectID    string              `db:"subject_id" json:"subject_id"`
	State        ProgressState       `db:"state" json:"state"`
	StartDate    *time.Time          `db:"start_date" json:"start_date,omitempty"`
	EndDate      *time.Time          `db:"end_date" json:"end_date,omitempty"`
	FinalGrade   decimal.NullDecimal `db:"final_grade" json:"final_grade"`
}
