package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/benglish/academic-core/pkg/database"
)

// conn returns the transaction bound to ctx or the pool.
func conn(ctx context.Context, db *sqlx.DB) sqlx.ExtContext {
	return database.Executor(ctx, db)
}

func batchLimit(limit int) int {
	if limit <= 0 || limit > 10000 {
		return 500
	}
	return limit
}
