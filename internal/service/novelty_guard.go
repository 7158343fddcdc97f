package service

import (
	"github.com/benglish/academic-core/internal/models"
	appErrors "github.com/benglish/academic-core/pkg/errors"
)

// ClosurePath tells how a session is allowed to close.
type ClosurePath string

// Closure paths.
const (
	ClosureNormal  ClosurePath = "normal"
	ClosureNovelty ClosurePath = "novelty"
)

// NoveltyGuard gates started -> done. A session with at least one attended seat closes
// normally. Without attendance it needs a novelty type, and a material novelty also needs
// an attachment.
type NoveltyGuard struct{}

// Check returns the closure path or the reason the session cannot close yet.
func (NoveltyGuard) Check(session *models.AcademicSession, seats []models.SessionEnrollment) (ClosurePath, error) {
	if attendedCount(seats) > 0 {
		return ClosureNormal, nil
	}
	if session.NoveltyType == nil || !session.NoveltyType.Valid() {
		return "", appErrors.Clone(appErrors.ErrNoveltyRequired, "")
	}
	if *session.NoveltyType == models.NoveltyMaterial && len(session.Attachments) == 0 {
		return "", appErrors.Clone(appErrors.ErrNoveltyAttachmentMissing, "")
	}
	return ClosureNovelty, nil
}

// IsNoveltyClosure reports a session that closed on the novelty path: a novelty is recorded
// and nobody attended. A novelty noted on a session that still had attendance does not
// suppress its history.
func IsNoveltyClosure(session *models.AcademicSession, seats []models.SessionEnrollment) bool {
	return session.NoveltyType != nil && attendedCount(seats) == 0
}

func attendedCount(seats []models.SessionEnrollment) int {
	n := 0
	for _, seat := range seats {
		if seat.State == models.SeatAttended {
			n++
		}
	}
	return n
}
