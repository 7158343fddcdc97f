// Package curriculum holds the pure rules of the academic core: per-category
// ordering and prerequisite policies, unit completion, progress derivation and
// elective pool resolution. Nothing here touches storage; callers load the
// catalog and ledger and pass them in.
package curriculum

import "github.com/benglish/academic-core/internal/models"

// RequiredBSkills is the number of configured bskills that complete a unit.
const RequiredBSkills = 4

// policy describes how a category is ordered inside a unit and what it requires.
type policy struct {
	sequence func(s models.Subject) int
	requires func(s models.Subject, cat *Catalog) []string
}

var policies = map[models.SubjectCategory]policy{
	models.CategoryBCheck: {
		sequence: func(models.Subject) int { return 10 },
	},
	models.CategoryBSkills: {
		sequence: func(s models.Subject) int {
			n := 0
			if s.BSkillNumber != nil {
				n = *s.BSkillNumber
			}
			return 20 + n*10
		},
		requires: func(s models.Subject, cat *Catalog) []string {
			if s.UnitNumber == nil {
				return nil
			}
			if bcheck, ok := cat.BCheck(*s.UnitNumber); ok {
				return []string{bcheck.ID}
			}
			return nil
		},
	},
	models.CategoryOralTest: {
		sequence: func(models.Subject) int { return 30 },
		requires: func(s models.Subject, cat *Catalog) []string {
			if s.UnitBlockStart == nil || s.UnitBlockEnd == nil {
				return nil
			}
			var ids []string
			for unit := *s.UnitBlockStart; unit <= *s.UnitBlockEnd; unit++ {
				for _, skill := range cat.BSkills(unit) {
					ids = append(ids, skill.ID)
				}
			}
			return ids
		},
	},
}

// CanonicalSequence returns the in-unit ordering for categories with a fixed policy and
// the stored sequence for every other category.
func CanonicalSequence(s models.Subject) int {
	if p, ok := policies[s.Category]; ok && p.sequence != nil {
		return p.sequence(s)
	}
	return s.Sequence
}

// implicitRequirements lists subjects that the category policy adds on top of the
// explicit prerequisite set.
func implicitRequirements(s models.Subject, cat *Catalog) []string {
	if p, ok := policies[s.Category]; ok && p.requires != nil {
		return p.requires(s, cat)
	}
	return nil
}
