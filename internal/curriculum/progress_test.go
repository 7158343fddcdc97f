package curriculum

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benglish/academic-core/internal/models"
)

func TestComputeEmptyHistory(t *testing.T) {
	cat := NewCatalog(units(2))
	p := Compute(cat, nil, NewLedger(nil))

	assert.Equal(t, 0, p.MaxUnitCompleted)
	assert.Equal(t, 1, p.CurrentUnit)
	assert.True(t, p.Percentage.IsZero())
}

func TestComputeStaysInStartedUnitUntilComplete(t *testing.T) {
	cat := NewCatalog(units(2))
	p := Compute(cat, nil, NewLedger(attended("bc-1")))

	assert.Equal(t, 0, p.MaxUnitCompleted)
	assert.Equal(t, 1, p.CurrentUnit)
	require.Len(t, p.Units, 1)
	assert.True(t, p.Units[0].BCheck)
	assert.False(t, p.Units[0].Complete)
}

func TestComputeAdvancesAfterCompleteUnit(t *testing.T) {
	cat := NewCatalog(units(3))
	ledger := NewLedger(attended("bc-1", "bs-1-1", "bs-1-2", "bs-1-3", "bs-1-4"))
	p := Compute(cat, nil, ledger)

	assert.Equal(t, 1, p.MaxUnitCompleted)
	assert.Equal(t, 2, p.CurrentUnit)
	assert.Equal(t, "6", p.CompletedHours.String())
}

func TestComputeIgnoresUnconfiguredBSkills(t *testing.T) {
	cat := NewCatalog(units(1))
	ledger := NewLedger(attended("bc-1", "bs-1-1", "bs-1-2", "bs-1-5", "bs-1-6"))
	p := Compute(cat, nil, ledger)

	assert.Equal(t, 0, p.MaxUnitCompleted)
	assert.Equal(t, 1, p.CurrentUnit)
}

func TestComputeClampsSkippedUnits(t *testing.T) {
	cat := NewCatalog(units(5))
	ledger := NewLedger(attended("bc-1", "bs-1-1", "bs-1-2", "bs-1-3", "bs-1-4", "bc-4"))
	p := Compute(cat, nil, ledger)

	assert.Equal(t, 1, p.MaxUnitCompleted)
	assert.Equal(t, 2, p.CurrentUnit)
	assert.GreaterOrEqual(t, p.CurrentUnit, p.MaxUnitCompleted)
	assert.LessOrEqual(t, p.CurrentUnit, p.MaxUnitCompleted+1)
}

func TestComputePercentageOverPlan(t *testing.T) {
	cat := NewCatalog(units(1))
	plan := []string{"bc-1", "bs-1-1", "bs-1-2", "bs-1-3"}
	p := Compute(cat, plan, NewLedger(attended("bc-1")))

	assert.Equal(t, 1, p.CompletedSubjects)
	assert.Equal(t, "25", p.Percentage.String())
}

func TestProgressStates(t *testing.T) {
	rows := append(attended("bc-1"), models.AcademicHistory{SubjectID: "bs-1-1", AttendanceStatus: models.AttendanceAbsent})
	states := ProgressStates([]string{"bc-1", "bs-1-1", "bs-1-2"}, NewLedger(rows))

	assert.Equal(t, models.ProgressCompleted, states["bc-1"])
	assert.Equal(t, models.ProgressInProgress, states["bs-1-1"])
	assert.Equal(t, models.ProgressPending, states["bs-1-2"])
	assert.False(t, AllCompleted(states))
	assert.False(t, AllCompleted(nil))
	assert.True(t, AllCompleted(map[string]models.ProgressState{"a": models.ProgressCompleted}))
}

func TestRetroactiveSubjectsSkipsDeactivatedExtras(t *testing.T) {
	subjects := units(2)
	for i := range subjects {
		if subjects[i].BSkillNumber != nil && *subjects[i].BSkillNumber > 4 {
			subjects[i].Active = false
			subjects[i].IsConfiguredForCurriculum = true
		}
	}
	subjects = append(subjects, oralTest(1, 2))
	cat := NewCatalog(subjects)

	got := RetroactiveSubjects(cat, NewLedger(attended("bc-1")), 2)

	require.Len(t, got, 1+4+4+1)
	for _, s := range got {
		if s.BSkillNumber != nil {
			assert.LessOrEqual(t, *s.BSkillNumber, 4)
		}
		assert.NotEqual(t, "bc-1", s.ID)
	}
	ids := make([]string, 0, len(got))
	for _, s := range got {
		ids = append(ids, s.ID)
	}
	assert.Contains(t, ids, "ot-1-2")
	assert.NotContains(t, ids, "bs-1-5")
}
