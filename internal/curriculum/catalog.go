package curriculum

import (
	"sort"

	"github.com/benglish/academic-core/internal/models"
)

// Catalog is an in-memory, read-only index of subjects.
type Catalog struct {
	byID    map[string]models.Subject
	bchecks map[int]models.Subject
	bskills map[int][]models.Subject
}

// NewCatalog indexes subjects. Unit lookups only consider configured subjects.
func NewCatalog(subjects []models.Subject) *Catalog {
	c := &Catalog{
		byID:    make(map[string]models.Subject, len(subjects)),
		bchecks: make(map[int]models.Subject),
		bskills: make(map[int][]models.Subject),
	}
	for _, s := range subjects {
		c.byID[s.ID] = s
		if !s.Configured() || s.UnitNumber == nil {
			continue
		}
		switch s.Category {
		case models.CategoryBCheck:
			c.bchecks[*s.UnitNumber] = s
		case models.CategoryBSkills:
			c.bskills[*s.UnitNumber] = append(c.bskills[*s.UnitNumber], s)
		}
	}
	for unit := range c.bskills {
		skills := c.bskills[unit]
		sort.SliceStable(skills, func(i, j int) bool {
			return CanonicalSequence(skills[i]) < CanonicalSequence(skills[j])
		})
	}
	return c
}

// Subject returns the subject with id.
func (c *Catalog) Subject(id string) (models.Subject, bool) {
	s, ok := c.byID[id]
	return s, ok
}

// Subjects returns every indexed subject ordered by unit then canonical sequence.
func (c *Catalog) Subjects() []models.Subject {
	out := make([]models.Subject, 0, len(c.byID))
	for _, s := range c.byID {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if a, b := orderUnit(out[i]), orderUnit(out[j]); a != b {
			return a < b
		}
		if a, b := CanonicalSequence(out[i]), CanonicalSequence(out[j]); a != b {
			return a < b
		}
		return out[i].Code < out[j].Code
	})
	return out
}

func orderUnit(s models.Subject) int {
	if s.UnitNumber == nil && s.UnitBlockEnd != nil {
		return *s.UnitBlockEnd
	}
	return s.Unit()
}

// BCheck returns the configured bcheck of unit.
func (c *Catalog) BCheck(unit int) (models.Subject, bool) {
	s, ok := c.bchecks[unit]
	return s, ok
}

// BSkills returns the configured bskills of unit in canonical order.
func (c *Catalog) BSkills(unit int) []models.Subject {
	return c.bskills[unit]
}

// Ledger is the attendance view of a student's history.
type Ledger struct {
	attended map[string]struct{}
	touched  map[string]struct{}
}

// NewLedger builds a ledger from history rows.
func NewLedger(rows []models.AcademicHistory) Ledger {
	l := Ledger{attended: make(map[string]struct{}), touched: make(map[string]struct{})}
	for _, row := range rows {
		l.touched[row.SubjectID] = struct{}{}
		if row.AttendanceStatus == models.AttendanceAttended {
			l.attended[row.SubjectID] = struct{}{}
		}
	}
	return l
}

// Attended reports an attended row for subjectID.
func (l Ledger) Attended(subjectID string) bool {
	_, ok := l.attended[subjectID]
	return ok
}

// Touched reports any history row for subjectID.
func (l Ledger) Touched(subjectID string) bool {
	_, ok := l.touched[subjectID]
	return ok
}

// AttendedIDs returns the attended subject ids.
func (l Ledger) AttendedIDs() []string {
	out := make([]string, 0, len(l.attended))
	for id := range l.attended {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
