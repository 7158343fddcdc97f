package curriculum

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/benglish/academic-core/internal/models"
)

func intPtr(v int) *int { return &v }

func bcheck(unit int) models.Subject {
	return models.Subject{
		ID: fmt.Sprintf("bc-%d", unit), Code: fmt.Sprintf("U%d-BC", unit), Name: fmt.Sprintf("Unit %d B-check", unit),
		Category: models.CategoryBCheck, Sequence: 10, UnitNumber: intPtr(unit),
		Hours: decimal.NewFromInt(2), Active: true, IsConfiguredForCurriculum: true,
	}
}

func bskill(unit, n int) models.Subject {
	return models.Subject{
		ID: fmt.Sprintf("bs-%d-%d", unit, n), Code: fmt.Sprintf("U%d-BS%d", unit, n), Name: fmt.Sprintf("Unit %d B-skill %d", unit, n),
		Category: models.CategoryBSkills, Sequence: 20 + n*10, UnitNumber: intPtr(unit), BSkillNumber: intPtr(n),
		Hours: decimal.NewFromInt(1), Active: true, IsConfiguredForCurriculum: n <= 4,
	}
}

func oralTest(from, to int) models.Subject {
	return models.Subject{
		ID: fmt.Sprintf("ot-%d-%d", from, to), Code: fmt.Sprintf("OT%d-%d", from, to), Name: "Oral test",
		Category: models.CategoryOralTest, Sequence: 30, UnitBlockStart: intPtr(from), UnitBlockEnd: intPtr(to),
		Active: true, IsConfiguredForCurriculum: true,
	}
}

func elective(id string, seq int) models.Subject {
	return models.Subject{
		ID: id, Code: id, Name: "Elective " + id, Category: models.CategoryElective, Sequence: seq,
		Active: true, IsConfiguredForCurriculum: true,
	}
}

// units builds units 1..n, each with a bcheck and six bskills (four configured).
func units(n int) []models.Subject {
	var out []models.Subject
	for u := 1; u <= n; u++ {
		out = append(out, bcheck(u))
		for k := 1; k <= 6; k++ {
			out = append(out, bskill(u, k))
		}
	}
	return out
}

func attended(ids ...string) []models.AcademicHistory {
	rows := make([]models.AcademicHistory, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, models.AcademicHistory{SubjectID: id, AttendanceStatus: models.AttendanceAttended})
	}
	return rows
}
