package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benglish/academic-core/internal/models"
	"github.com/benglish/academic-core/pkg/database"
)

var sessionRowColumns = []string{"id", "program_id", "subject_id", "elective_pool_id", "teacher_id", "datetime_start",
	"datetime_end", "is_virtual", "meeting_url", "is_published", "state", "audience_unit_from", "audience_unit_to",
	"max_capacity", "novelty_type", "novelty_observation", "created_at", "updated_at"}

func TestSessionRepositoryLockRunsInsideTransaction(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)
	tx := database.NewTransactor(db, 0)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM academic_sessions WHERE id = $1 FOR UPDATE")).
		WithArgs("ses-1").
		WillReturnRows(sqlmock.NewRows(sessionRowColumns).
			AddRow("ses-1", "prog-1", "bc-1", nil, "tea-1", nowRow(), nowRow(), false, nil, true, "active", 1, 3, 2, nil, nil, nowRow(), nowRow()))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM session_enrollments")).
		WithArgs("ses-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectCommit()

	err := tx.WithinTx(context.Background(), func(ctx context.Context) error {
		session, err := repo.LockByID(ctx, "ses-1")
		if err != nil {
			return err
		}
		assert.True(t, session.InAudience(2))
		count, err := repo.CountHolding(ctx, session.ID)
		assert.Equal(t, 1, count)
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM academic_sessions WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryUpdateState(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE academic_sessions SET state = $2, updated_at = NOW() WHERE id = $1 AND state = ANY($3)")).
		WithArgs("ses-1", models.SessionDone, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.UpdateState(context.Background(), "ses-1", []models.SessionState{models.SessionActive, models.SessionStarted}, models.SessionDone)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryMarkRemaining(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("WHERE session_id = $1 AND state = $2")).
		WithArgs("ses-1", models.SeatReserved, models.SeatAbsent).
		WillReturnResult(sqlmock.NewResult(0, 2))

	marked, err := repo.MarkRemaining(context.Background(), "ses-1", models.SeatReserved, models.SeatAbsent)
	require.NoError(t, err)
	assert.Equal(t, int64(2), marked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositorySetSeatGrade(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("grade_registered_at = CASE WHEN $2::numeric IS NULL THEN NULL ELSE NOW() END")).
		WithArgs("seat-1", "4.5").
		WillReturnResult(sqlmock.NewResult(0, 1))

	grade := decimal.NewNullDecimal(decimal.RequireFromString("4.5"))
	require.NoError(t, repo.SetSeatGrade(context.Background(), "seat-1", grade))
	assert.NoError(t, mock.ExpectationsWereMet())
}
