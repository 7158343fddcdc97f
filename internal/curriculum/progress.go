package curriculum

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/benglish/academic-core/internal/models"
)

// UnitStatus summarises one unit of a student's progress.
type UnitStatus struct {
	Unit     int  `json:"unit"`
	BCheck   bool `json:"bcheck"`
	BSkills  int  `json:"bskills"`
	Complete bool `json:"complete"`
}

// Progress is the derived academic standing of a student.
type Progress struct {
	MaxUnitCompleted  int             `json:"max_unit_completed"`
	CurrentUnit       int             `json:"current_unit"`
	Percentage        decimal.Decimal `json:"academic_progress_percentage"`
	CompletedHours    decimal.Decimal `json:"completed_hours"`
	CompletedSubjects int             `json:"completed_subjects"`
	PlanSubjects      int             `json:"plan_subjects"`
	Units             []UnitStatus    `json:"units"`
}

// Compute derives progress from the catalog, the subject set of the student's active plan
// (nil when the student has no active enrollment) and the attendance ledger.
//
// A unit is complete when its configured bcheck and at least RequiredBSkills configured
// bskills are attended. The current unit is max_unit_completed+1 when the highest unit
// with any attended subject is complete, otherwise that highest unit, and always stays
// within [max_unit_completed, max_unit_completed+1].
func Compute(cat *Catalog, planSubjectIDs []string, ledger Ledger) Progress {
	units := unitStatuses(cat, ledger)

	maxComplete, highest := 0, 0
	complete := make(map[int]bool, len(units))
	for _, u := range units {
		complete[u.Unit] = u.Complete
		if u.Complete && u.Unit > maxComplete {
			maxComplete = u.Unit
		}
	}
	for _, id := range ledger.AttendedIDs() {
		if s, ok := cat.Subject(id); ok && s.Unit() > highest {
			highest = s.Unit()
		}
	}

	current := maxComplete + 1
	if highest > 0 && !complete[highest] {
		current = highest
	}
	if current > maxComplete+1 {
		current = maxComplete + 1
	}
	if current < maxComplete {
		current = maxComplete
	}
	if current < 1 {
		current = 1
	}

	hours := decimal.Zero
	for _, id := range ledger.AttendedIDs() {
		if s, ok := cat.Subject(id); ok {
			hours = hours.Add(s.Hours)
		}
	}

	p := Progress{
		MaxUnitCompleted: maxComplete,
		CurrentUnit:      current,
		CompletedHours:   hours,
		Percentage:       decimal.Zero,
		PlanSubjects:     len(planSubjectIDs),
		Units:            units,
	}
	for _, id := range planSubjectIDs {
		if ledger.Attended(id) {
			p.CompletedSubjects++
		}
	}
	if p.PlanSubjects > 0 {
		p.Percentage = decimal.NewFromInt(int64(p.CompletedSubjects)).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(int64(p.PlanSubjects))).
			Round(2)
	}
	return p
}

func unitStatuses(cat *Catalog, ledger Ledger) []UnitStatus {
	seen := make(map[int]*UnitStatus)
	for _, id := range ledger.AttendedIDs() {
		s, ok := cat.Subject(id)
		if !ok || s.UnitNumber == nil || !s.Configured() {
			continue
		}
		unit := *s.UnitNumber
		st, ok := seen[unit]
		if !ok {
			st = &UnitStatus{Unit: unit}
			seen[unit] = st
		}
		switch s.Category {
		case models.CategoryBCheck:
			st.BCheck = true
		case models.CategoryBSkills:
			st.BSkills++
		}
	}

	out := make([]UnitStatus, 0, len(seen))
	for _, st := range seen {
		st.Complete = st.BCheck && st.BSkills >= RequiredBSkills
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Unit < out[j].Unit })
	return out
}

// ProgressStates maps each plan subject to its enrollment progress state: completed when
// attended, in_progress when any other history row exists, pending otherwise.
func ProgressStates(planSubjectIDs []string, ledger Ledger) map[string]models.ProgressState {
	out := make(map[string]models.ProgressState, len(planSubjectIDs))
	for _, id := range planSubjectIDs {
		switch {
		case ledger.Attended(id):
			out[id] = models.ProgressCompleted
		case ledger.Touched(id):
			out[id] = models.ProgressInProgress
		default:
			out[id] = models.ProgressPending
		}
	}
	return out
}

// AllCompleted reports whether every state is completed. An empty set is not completed.
func AllCompleted(states map[string]models.ProgressState) bool {
	if len(states) == 0 {
		return false
	}
	for _, st := range states {
		if st != models.ProgressCompleted {
			return false
		}
	}
	return true
}

// RetroactiveSubjects lists the configured bchecks and bskills with a unit in
// [1, targetUnit], plus configured oral tests whose block ends at or before targetUnit,
// that the student has not attended, in catalog order.
func RetroactiveSubjects(cat *Catalog, ledger Ledger, targetUnit int) []models.Subject {
	var out []models.Subject
	for _, s := range cat.Subjects() {
		if !s.Configured() || ledger.Attended(s.ID) {
			continue
		}
		switch s.Category {
		case models.CategoryBCheck, models.CategoryBSkills:
			if s.UnitNumber == nil || *s.UnitNumber < 1 || *s.UnitNumber > targetUnit {
				continue
			}
		case models.CategoryOralTest:
			if s.UnitBlockEnd == nil || *s.UnitBlockEnd > targetUnit {
				continue
			}
		default:
			continue
		}
		out = append(out, s)
	}
	return out
}
