package models

import "time"

// Plan binds a program to the fixed subject set a student must complete.
type Plan struct {
	ID         string    `db:"id" json:"id"`
	ProgramID  string    `db:"program_id" json:"program_id"`
	Code       string    `db:"code" json:"code"`
	Name       string    `db:"name" json:"name"`
	Active     bool      `db:"active" json:"active"`
	PhaseIDs   []string  `db:"-" json:"phase_ids"`
	LevelIDs   []string  `db:"-" json:"level_ids"`
	SubjectIDs []string  `db:"-" json:"subject_ids"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// PlanReconciliation reports the subject set changes applied to a plan.
type PlanReconciliation struct {
	PlanID  string `json:"plan_id"`
	Added   int64  `json:"added"`
	Removed int64  `json:"removed"`
}

// Changed reports whether the plan subject set was modified.
func (r PlanReconciliation) Changed() bool {
	return r.Added > 0 || r.Removed > 0
}
