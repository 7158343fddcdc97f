package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// NotificationRepository tracks which session notifications a user has seen.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// MarkViewed records a view; repeated calls keep the first timestamp.
func (r *NotificationRepository) MarkViewed(ctx context.Context, userID, sessionID string) error {
	const query = `INSERT INTO notification_views (user_id, session_id, viewed_at) VALUES ($1, $2, NOW())
ON CONFLICT (user_id, session_id) DO NOTHING`
	if _, err := conn(ctx, r.db).ExecContext(ctx, query, userID, sessionID); err != nil {
		return fmt.Errorf("mark notification viewed: %w", err)
	}
	return nil
}

// ViewedSessionIDs returns the subset of sessionIDs already seen by userID.
func (r *NotificationRepository) ViewedSessionIDs(ctx context.Context, userID string, sessionIDs []string) (map[string]bool, error) {
	out := make(map[string]bool)
	if len(sessionIDs) == 0 {
		return out, nil
	}
	const query = `SELECT session_id FROM notification_views WHERE user_id = $1 AND session_id = ANY($2)`
	var ids []string
	if err := sqlx.SelectContext(ctx, conn(ctx, r.db), &ids, query, userID, pq.Array(sessionIDs)); err != nil {
		return nil, fmt.Errorf("list notification views: %w", err)
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}
