package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benglish/academic-core/internal/models"
)

func TestEnrollmentRepositoryUpdateStateReportsStaleFrom(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND state = $2")).
		WithArgs("enr-1", models.EnrollmentInProgress, models.EnrollmentCompleted).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.UpdateState(context.Background(), "enr-1", models.EnrollmentInProgress, models.EnrollmentCompleted)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryFindActiveByStudent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "plan_id", "state", "start_date", "end_date", "created_at", "updated_at"}).
		AddRow("enr-1", "stu-1", "plan-1", "in_progress", nowRow(), nil, nowRow(), nowRow())
	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments WHERE student_id = $1 AND state = ANY($2)")).
		WithArgs("stu-1", sqlmock.AnyArg()).
		WillReturnRows(rows)

	enrollment, err := repo.FindActiveByStudent(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentInProgress, enrollment.State)
	assert.True(t, enrollment.State.Active())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateProgressStatesIsOrdered(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	for _, subject := range []string{"a", "b"} {
		mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollment_progress SET state = $3")).
			WithArgs("enr-1", subject, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}

	err := repo.UpdateProgressStates(context.Background(), "enr-1", map[string]models.ProgressState{
		"b": models.ProgressPending,
		"a": models.ProgressCompleted,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryBackfillProgress(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("WHERE e.state IN ('enrolled', 'in_progress')")).
		WithArgs(250).
		WillReturnResult(sqlmock.NewResult(0, 12))

	inserted, err := repo.BackfillProgress(context.Background(), 250)
	require.NoError(t, err)
	assert.Equal(t, int64(12), inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
