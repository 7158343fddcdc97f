package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// CursorRepository persists round-robin positions for named assignment queues.
type CursorRepository struct {
	db *sqlx.DB
}

// NewCursorRepository constructs the repository.
func NewCursorRepository(db *sqlx.DB) *CursorRepository {
	return &CursorRepository{db: db}
}

// Next atomically advances the cursor of queue and returns the new position (1-based).
func (r *CursorRepository) Next(ctx context.Context, queue string) (int64, error) {
	const query = `INSERT INTO assignment_cursors (queue_name, position, updated_at)
VALUES ($1, 1, NOW())
ON CONFLICT (queue_name)
DO UPDATE SET position = assignment_cursors.position + 1, updated_at = NOW()
RETURNING position`
	var position int64
	if err := sqlx.GetContext(ctx, conn(ctx, r.db), &position, query, queue); err != nil {
		return 0, fmt.Errorf("advance cursor %s: %w", queue, err)
	}
	return position, nil
}
