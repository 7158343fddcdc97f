package curriculum

import (
	"sort"

	"github.com/benglish/academic-core/internal/models"
)

// Resolve returns the concrete subject a session maps to for a student.
//
// nominal is the session subject (nil for pool-bound sessions). When nominal is a
// concrete subject it is returned as is. Otherwise poolSubjects (the session pool, or the
// active pool standing in for a placeholder subject) are filtered to the active subjects
// the student has not attended and ordered by (sequence, name); the first one wins.
// ok is false when nothing remains, meaning the session does not apply to the student.
func Resolve(nominal *models.Subject, poolSubjects []models.Subject, ledger Ledger) (models.Subject, bool) {
	if nominal != nil && !nominal.IsElectivePool {
		return *nominal, true
	}

	remaining := make([]models.Subject, 0, len(poolSubjects))
	for _, s := range poolSubjects {
		if !s.Active || ledger.Attended(s.ID) {
			continue
		}
		remaining = append(remaining, s)
	}
	if len(remaining) == 0 {
		return models.Subject{}, false
	}

	sort.SliceStable(remaining, func(i, j int) bool {
		if remaining[i].Sequence != remaining[j].Sequence {
			return remaining[i].Sequence < remaining[j].Sequence
		}
		return remaining[i].Name < remaining[j].Name
	})
	return remaining[0], true
}

// EffectiveUnit is the unit frozen on a reservation: the subject unit when set, else the
// student's current unit.
func EffectiveUnit(subject models.Subject, currentUnit int) int {
	if subject.UnitNumber != nil {
		return *subject.UnitNumber
	}
	return currentUnit
}
