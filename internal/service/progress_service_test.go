package service

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benglish/academic-core/internal/models"
	"github.com/benglish/academic-core/pkg/database"
)

func TestProgressRecomputeCompletesUnitAndEnrollment(t *testing.T) {
	w := newWorld(t)
	w.attend(testStudent, "bc-1", "bs-1-1", "bs-1-2", "bs-1-3", "bs-1-4")

	progress, err := w.progress.Recompute(context.Background(), testStudent)
	require.NoError(t, err)

	assert.Equal(t, 1, progress.MaxUnitCompleted)
	assert.Equal(t, 2, progress.CurrentUnit)
	assert.True(t, dec("100").Equal(progress.Percentage), progress.Percentage.String())
	assert.True(t, dec("6").Equal(progress.CompletedHours), progress.CompletedHours.String())
	require.NotNil(t, progress.CurrentLevelID)
	assert.Equal(t, "level-2", *progress.CurrentLevelID)
	assert.Equal(t, models.EnrollmentCompleted, progress.EnrollmentState)

	assert.Equal(t, []string{testStudent}, w.students.locks)
	stored := w.students.items[testStudent]
	assert.Equal(t, 2, stored.CurrentUnit)
	assert.Equal(t, 1, stored.MaxUnitCompleted)
	assert.Equal(t, models.EnrollmentCompleted, w.enrollments.items["enrollment-0"].State)
	for _, st := range w.enrollments.progress["enrollment-0"] {
		assert.Equal(t, models.ProgressCompleted, st)
	}
	assert.Contains(t, w.cache.invalidated, "agenda:"+testStudent+":*")
}

func TestProgressRecomputePartialUnitStartsEnrollment(t *testing.T) {
	w := newWorld(t)
	w.attend(testStudent, "bc-1", "bs-1-1")
	w.history.rows = append(w.history.rows, models.AcademicHistory{
		ID: "absent-1", StudentID: testStudent, SubjectID: "bs-1-2", AttendanceStatus: models.AttendanceAbsent,
	})

	progress, err := w.progress.Recompute(context.Background(), testStudent)
	require.NoError(t, err)

	assert.Equal(t, 0, progress.MaxUnitCompleted)
	assert.Equal(t, 1, progress.CurrentUnit)
	assert.True(t, dec("40").Equal(progress.Percentage), progress.Percentage.String())
	assert.Equal(t, models.EnrollmentInProgress, progress.EnrollmentState)
	assert.Equal(t, models.ProgressCompleted, progress.SubjectStates["bc-1"])
	assert.Equal(t, models.ProgressInProgress, progress.SubjectStates["bs-1-2"])
	assert.Equal(t, models.ProgressPending, progress.SubjectStates["bs-1-4"])
	assert.Equal(t, models.EnrollmentInProgress, w.enrollments.items["enrollment-0"].State)
}

func TestProgressComputeDoesNotWrite(t *testing.T) {
	w := newWorld(t)
	w.attend(testStudent, "bc-1")

	progress, err := w.progress.Compute(context.Background(), testStudent)
	require.NoError(t, err)
	assert.Equal(t, 1, progress.CurrentUnit)
	assert.Empty(t, w.students.updates)
	assert.Empty(t, w.students.locks)
	assert.Equal(t, models.EnrollmentEnrolled, w.enrollments.items["enrollment-0"].State)
}

func TestProgressWithoutEnrollmentHasZeroPercentage(t *testing.T) {
	w := newWorld(t)
	w.enrollments.items["enrollment-0"].State = models.EnrollmentSuspended
	w.attend(testStudent, "bc-1", "bs-1-1")

	progress, err := w.progress.Recompute(context.Background(), testStudent)
	require.NoError(t, err)
	assert.True(t, progress.Percentage.IsZero())
	assert.Nil(t, progress.EnrollmentID)
	assert.True(t, dec("3").Equal(progress.CompletedHours))
}

func TestProgressRecomputeManyLocksInSortedOrder(t *testing.T) {
	w := newWorld(t)
	w.students.items["stu-0"] = &models.Student{ID: "stu-0", Code: "S-000", ProgramID: strPtr(testProgram), Active: true}

	err := w.progress.RecomputeMany(context.Background(), []string{testStudent, "stu-0", testStudent, ""})
	require.NoError(t, err)
	assert.Equal(t, []string{"stu-0", testStudent}, w.students.locks)
}

func TestProgressRecomputeUnknownStudent(t *testing.T) {
	w := newWorld(t)
	_, err := w.progress.Recompute(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "student not found")
}

func TestProgressInvalidatesAgendaAfterOuterCommit(t *testing.T) {
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	tr := database.NewTransactor(sqlx.NewDb(raw, "sqlmock"), 0)

	w := newWorld(t)
	w.attend(testStudent, "bc-1")
	progress := NewProgressService(w.students, w.history, w.enrollments, w.plans, w.catalog, w.cache, nil, tr, nil)
	pattern := "agenda:" + testStudent + ":*"

	mock.ExpectBegin()
	mock.ExpectCommit()
	err = tr.WithinTx(context.Background(), func(ctx context.Context) error {
		_, err := progress.Recompute(ctx, testStudent)
		require.NoError(t, err)
		assert.NotContains(t, w.cache.invalidated, pattern)
		return nil
	})
	require.NoError(t, err)
	assert.Contains(t, w.cache.invalidated, pattern)

	w.cache.invalidated = nil
	boom := errors.New("boom")
	mock.ExpectBegin()
	mock.ExpectRollback()
	err = tr.WithinTx(context.Background(), func(ctx context.Context) error {
		if _, err := progress.Recompute(ctx, testStudent); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, w.cache.invalidated)
	require.NoError(t, mock.ExpectationsWereMet())
}
