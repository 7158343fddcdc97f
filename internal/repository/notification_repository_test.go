package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationRepositoryViewedSessionIDs(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM notification_views WHERE user_id = $1 AND session_id = ANY($2)")).
		WithArgs("user-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"session_id"}).AddRow("ses-2"))

	viewed, err := repo.ViewedSessionIDs(context.Background(), "user-1", []string{"ses-1", "ses-2"})
	require.NoError(t, err)
	assert.True(t, viewed["ses-2"])
	assert.False(t, viewed["ses-1"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryMarkViewedIsIdempotent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (user_id, session_id) DO NOTHING")).
		WithArgs("user-1", "ses-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.MarkViewed(context.Background(), "user-1", "ses-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
