package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Student is a learner with derived progress columns kept current by the progress engine.
type Student struct {
	ID                         string          `db:"id" json:"id"`
	Code                       string          `db:"code" json:"code"`
	FirstName                  string          `db:"first_name" json:"first_name"`
	LastName                   string          `db:"last_name" json:"last_name"`
	Email                      *string         `db:"email" json:"email,omitempty"`
	ProgramID                  *string         `db:"program_id" json:"program_id,omitempty"`
	Active                     bool            `db:"active" json:"active"`
	CurrentPhaseID             *string         `db:"current_phase_id" json:"current_phase_id,omitempty"`
	CurrentLevelID             *string         `db:"current_level_id" json:"current_level_id,omitempty"`
	MaxUnitCompleted           int             `db:"max_unit_completed" json:"max_unit_completed"`
	CurrentUnit                int             `db:"current_unit" json:"current_unit"`
	AcademicProgressPercentage decimal.Decimal `db:"academic_progress_percentage" json:"academic_progress_percentage"`
	CompletedHours             decimal.Decimal `db:"completed_hours" json:"completed_hours"`
	ProgressComputedAt         *time.Time      `db:"progress_computed_at" json:"progress_computed_at,omitempty"`
	CreatedAt                  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt                  time.Time       `db:"updated_at" json:"updated_at"`
}

// FullName joins first and last name.
func (s Student) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// StudentProgressUpdate carries the derived columns written after a recompute.
type StudentProgressUpdate struct {
	StudentID                  string          `db:"id"`
	CurrentPhaseID             *string         `db:"current_phase_id"`
	CurrentLevelID             *string         `db:"current_level_id"`
	MaxUnitCompleted           int             `db:"max_unit_completed"`
	CurrentUnit                int             `db:"current_unit"`
	AcademicProgressPercentage decimal.Decimal `db:"academic_progress_percentage"`
	CompletedHours             decimal.Decimal `db:"completed_hours"`
	ProgressComputedAt         time.Time       `db:"progress_computed_at"`
}
