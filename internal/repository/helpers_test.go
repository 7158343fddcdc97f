package repository

import (
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return sqlxDB, mock, func() {
		sqlxDB.Close()
	}
}

func strPtr(value string) *string { return &value }

func intPtr(value int) *int { return &value }

var subjectRowColumns = []string{"id", "level_id", "program_id", "subject_type_id", "code", "name", "category", "sequence",
	"unit_number", "unit_block_start", "unit_block_end", "bskill_number", "hours", "is_prerequisite", "active",
	"is_configured_for_curriculum", "is_elective_pool", "created_at", "updated_at"}

func subjectRow(rows *sqlmock.Rows, id, code, category string, unit int) *sqlmock.Rows {
	now := time.Now()
	return rows.AddRow(id, "lvl-1", "prog-1", nil, code, code, category, 10, unit, nil, nil, nil, "1.5", false, true, true, false, now, now)
}

func nowRow() time.Time { return time.Now().UTC() }
