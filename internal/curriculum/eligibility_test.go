package curriculum

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benglish/academic-core/internal/models"
	appErrors "github.com/benglish/academic-core/pkg/errors"
)

func TestBSkillRequiresUnitBCheck(t *testing.T) {
	cat := NewCatalog(units(1))
	skill, _ := cat.Subject("bs-1-2")

	res, err := IsEligible(skill, cat, NewLedger(nil))
	require.NoError(t, err)
	assert.False(t, res.Eligible)
	assert.Equal(t, []string{"bc-1"}, res.Missing)

	res, err = IsEligible(skill, cat, NewLedger(attended("bc-1")))
	require.NoError(t, err)
	assert.True(t, res.Eligible)
}

func TestOralTestRequiresConfiguredBlockBSkills(t *testing.T) {
	cat := NewCatalog(append(units(2), oralTest(1, 2)))
	ot, _ := cat.Subject("ot-1-2")

	done := []string{"bs-1-1", "bs-1-2", "bs-1-3", "bs-1-4", "bs-2-1", "bs-2-2", "bs-2-3"}
	res, err := IsEligible(ot, cat, NewLedger(attended(done...)))
	require.NoError(t, err)
	assert.False(t, res.Eligible)
	assert.Equal(t, []string{"bs-2-4"}, res.Missing)

	res, err = IsEligible(ot, cat, NewLedger(attended(append(done, "bs-2-4")...)))
	require.NoError(t, err)
	assert.True(t, res.Eligible)
}

func TestExplicitPrerequisiteMissingFromCatalog(t *testing.T) {
	subjects := units(1)
	target := elective("E1", 10)
	target.PrerequisiteIDs = []string{"ghost"}
	cat := NewCatalog(append(subjects, target))

	_, err := IsEligible(target, cat, NewLedger(nil))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrCatalogMissingPrerequisite))
	assert.True(t, errors.Is(ValidatePrerequisites(target, cat), appErrors.ErrCatalogMissingPrerequisite))
}

func TestValidatePrerequisitesDetectsCycle(t *testing.T) {
	a := elective("A", 10)
	b := elective("B", 20)
	a.PrerequisiteIDs = []string{"B"}
	b.PrerequisiteIDs = []string{"A"}
	cat := NewCatalog([]models.Subject{a, b})

	err := ValidatePrerequisites(a, cat)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestCanonicalSequence(t *testing.T) {
	assert.Equal(t, 10, CanonicalSequence(bcheck(1)))
	assert.Equal(t, 50, CanonicalSequence(bskill(1, 3)))
	assert.Equal(t, 30, CanonicalSequence(oralTest(1, 2)))
	assert.Equal(t, 70, CanonicalSequence(elective("E", 70)))
}
