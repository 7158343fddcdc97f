package service

import (
	"context"

	"github.com/benglish/academic-core/internal/curriculum"
	"github.com/benglish/academic-core/internal/models"
)

type sessionCatalog interface {
	SessionCandidates(ctx context.Context, session *models.AcademicSession) (*models.Subject, []models.Subject, error)
}

// resolveSubject maps a session onto the concrete subject it stands for a student. ok is
// false when the session's pool has nothing left for the student.
func resolveSubject(ctx context.Context, cat sessionCatalog, session *models.AcademicSession, ledger curriculum.Ledger) (models.Subject, bool, error) {
	nominal, pool, err := cat.SessionCandidates(ctx, session)
	if err != nil {
		return models.Subject{}, false, err
	}
	subject, ok := curriculum.Resolve(nominal, pool, ledger)
	return subject, ok, nil
}
