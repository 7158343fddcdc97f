package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SubjectCategory tags the curriculum role of a subject.
type SubjectCategory string

// Subject categories.
const (
	CategoryBCheck           SubjectCategory = "bcheck"
	CategoryBSkills          SubjectCategory = "bskills"
	CategoryOralTest         SubjectCategory = "oral_test"
	CategoryElective         SubjectCategory = "elective"
	CategoryPlacementTest    SubjectCategory = "placement_test"
	CategoryMasterClass      SubjectCategory = "master_class"
	CategoryConversationClub SubjectCategory = "conversation_club"
)

// Valid reports whether c is a known category.
func (c SubjectCategory) Valid() bool {
	switch c {
	case CategoryBCheck, CategoryBSkills, CategoryOralTest, CategoryElective,
		CategoryPlacementTest, CategoryMasterClass, CategoryConversationClub:
		return true
	}
	return false
}

// Program is an academic offer such as adults or teens.
type Program struct {
	ID          string    `db:"id" json:"id"`
	Code        string    `db:"code" json:"code"`
	Name        string    `db:"name" json:"name"`
	ProgramType string    `db:"program_type" json:"program_type"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Phase is an ordered block of a program (Basic, Intermediate, ...).
type Phase struct {
	ID              string    `db:"id" json:"id"`
	ProgramID       string    `db:"program_id" json:"program_id"`
	Code            string    `db:"code" json:"code"`
	Name            string    `db:"name" json:"name"`
	Sequence        int       `db:"sequence" json:"sequence"`
	IsCourtesyPhase bool      `db:"is_courtesy_phase" json:"is_courtesy_phase"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Level is one unit's worth of coursework inside a phase.
type Level struct {
	ID         string    `db:"id" json:"id"`
	PhaseID    string    `db:"phase_id" json:"phase_id"`
	Code       string    `db:"code" json:"code"`
	Name       string    `db:"name" json:"name"`
	Sequence   int       `db:"sequence" json:"sequence"`
	UnitNumber *int      `db:"unit_number" json:"unit_number,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// SubjectType groups subjects; elective pool placeholders carry IsElectivePool.
type SubjectType struct {
	ID             string `db:"id" json:"id"`
	Code           string `db:"code" json:"code"`
	Name           string `db:"name" json:"name"`
	IsElectivePool bool   `db:"is_elective_pool" json:"is_elective_pool"`
}

// Subject is a catalog entry a student can attend.
type Subject struct {
	ID                        string          `db:"id" json:"id"`
	LevelID                   string          `db:"level_id" json:"level_id"`
	ProgramID                 *string         `db:"program_id" json:"program_id,omitempty"`
	SubjectTypeID             *string         `db:"subject_type_id" json:"subject_type_id,omitempty"`
	Code                      string          `db:"code" json:"code"`
	Name                      string          `db:"name" json:"name"`
	Category                  SubjectCategory `db:"category" json:"category"`
	Sequence                  int             `db:"sequence" json:"sequence"`
	UnitNumber                *int            `db:"unit_number" json:"unit_number,omitempty"`
	UnitBlockStart            *int            `db:"unit_block_start" json:"unit_block_start,omitempty"`
	UnitBlockEnd              *int            `db:"unit_block_end" json:"unit_block_end,omitempty"`
	BSkillNumber              *int            `db:"bskill_number" json:"bskill_number,omitempty"`
	Hours                     decimal.Decimal `db:"hours" json:"hours"`
	IsPrerequisite            bool            `db:"is_prerequisite" json:"is_prerequisite"`
	Active                    bool            `db:"active" json:"active"`
	IsConfiguredForCurriculum bool            `db:"is_configured_for_curriculum" json:"is_configured_for_curriculum"`
	IsElectivePool            bool            `db:"is_elective_pool" json:"is_elective_pool"`
	PrerequisiteIDs           []string        `db:"-" json:"prerequisite_ids,omitempty"`
	CreatedAt                 time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt                 time.Time       `db:"updated_at" json:"updated_at"`
}

// Configured reports whether the subject belongs to the configured curriculum.
// Display visibility (Active) alone is not enough.
func (s Subject) Configured() bool {
	return s.Active && s.IsConfiguredForCurriculum
}

// Unit returns the unit number or 0 when the subject is not bound to a unit.
func (s Subject) Unit() int {
	if s.UnitNumber == nil {
		return 0
	}
	return *s.UnitNumber
}

// SubjectFilter narrows catalog listings.
type SubjectFilter struct {
	ProgramID  string
	Category   SubjectCategory
	UnitNumber *int
	Configured bool
}

// PoolState is the lifecycle of an elective pool.
type PoolState string

// Elective pool states.
const (
	PoolStateDraft    PoolState = "draft"
	PoolStateActive   PoolState = "active"
	PoolStateArchived PoolState = "archived"
)

// ElectivePool enumerates interchangeable subjects fulfilling one elective slot.
type ElectivePool struct {
	ID         string    `db:"id" json:"id"`
	ProgramID  string    `db:"program_id" json:"program_id"`
	PhaseID    *string   `db:"phase_id" json:"phase_id,omitempty"`
	Code       string    `db:"code" json:"code"`
	Name       string    `db:"name" json:"name"`
	State      PoolState `db:"state" json:"state"`
	SubjectIDs []string  `db:"-" json:"subject_ids"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// SubjectProgramMismatch reports a subject whose stored program differs from Level->Phase->Program.
type SubjectProgramMismatch struct {
	SubjectID      string  `db:"subject_id" json:"subject_id"`
	SubjectCode    string  `db:"subject_code" json:"subject_code"`
	StoredProgram  *string `db:"stored_program_id" json:"stored_program_id,omitempty"`
	DerivedProgram string  `db:"derived_program_id" json:"derived_program_id"`
}
