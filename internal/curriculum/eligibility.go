package curriculum

import (
	"fmt"

	"github.com/benglish/academic-core/internal/models"
	appErrors "github.com/benglish/academic-core/pkg/errors"
)

// Eligibility explains an eligibility decision.
type Eligibility struct {
	Eligible bool     `json:"eligible"`
	Missing  []string `json:"missing,omitempty"`
}

// IsEligible reports whether every prerequisite of subject, explicit or implied by its
// category, has an attended row in ledger. A prerequisite id absent from cat yields
// ErrCatalogMissingPrerequisite.
func IsEligible(subject models.Subject, cat *Catalog, ledger Ledger) (Eligibility, error) {
	seen := make(map[string]struct{})
	var missing []string

	check := func(id string) error {
		if _, dup := seen[id]; dup {
			return nil
		}
		seen[id] = struct{}{}
		if _, ok := cat.Subject(id); !ok {
			return appErrors.Clone(appErrors.ErrCatalogMissingPrerequisite,
				fmt.Sprintf("subject %s requires unknown subject %s", subject.Code, id))
		}
		if !ledger.Attended(id) {
			missing = append(missing, id)
		}
		return nil
	}

	for _, id := range subject.PrerequisiteIDs {
		if err := check(id); err != nil {
			return Eligibility{}, err
		}
	}
	for _, id := range implicitRequirements(subject, cat) {
		if id == subject.ID {
			continue
		}
		if err := check(id); err != nil {
			return Eligibility{}, err
		}
	}

	return Eligibility{Eligible: len(missing) == 0, Missing: missing}, nil
}

// ValidatePrerequisites checks that every explicit prerequisite exists in cat and that the
// prerequisite graph has no cycle through subject.
func ValidatePrerequisites(subject models.Subject, cat *Catalog) error {
	for _, id := range subject.PrerequisiteIDs {
		if _, ok := cat.Subject(id); !ok {
			return appErrors.Clone(appErrors.ErrCatalogMissingPrerequisite,
				fmt.Sprintf("subject %s requires unknown subject %s", subject.Code, id))
		}
	}
	if cycle := findCycle(subject.ID, cat); cycle != "" {
		return appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("prerequisite cycle through subject %s", cycle))
	}
	return nil
}

func findCycle(start string, cat *Catalog) string {
	const (
		visiting = 1
		done     = 2
	)
	marks := make(map[string]int)
	var visit func(id string) string
	visit = func(id string) string {
		switch marks[id] {
		case visiting:
			return id
		case done:
			return ""
		}
		marks[id] = visiting
		s, ok := cat.Subject(id)
		if ok {
			for _, next := range s.PrerequisiteIDs {
				if found := visit(next); found != "" {
					return found
				}
			}
		}
		marks[id] = done
		return ""
	}
	return visit(start)
}
