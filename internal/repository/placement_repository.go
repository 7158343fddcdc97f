package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/benglish/academic-core/internal/models"
)

const placementColumns = `id, student_id, student_code, state, oral_score, lms_score, grammar_score, listening_score,
       reading_score, final_score, recommended_unit, advisor, lms_received_at, consolidated_at, created_at, updated_at`

// PlacementRepository persists placement tests.
type PlacementRepository struct {
	db *sqlx.DB
}

// NewPlacementRepository constructs the repository.
func NewPlacementRepository(db *sqlx.DB) *PlacementRepository {
	return &PlacementRepository{db: db}
}

// Create inserts a placement test.
func (r *PlacementRepository) Create(ctx context.Context, p *models.PlacementTest) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.State == "" {
		p.State = models.PlacementPendingOral
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	const query = `INSERT INTO placement_tests (id, student_id, student_code, state, oral_score, created_at, updated_at)
VALUES (:id, :student_id, :student_code, :state, :oral_score, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, conn(ctx, r.db), query, p); err != nil {
		return fmt.Errorf("create placement test: %w", err)
	}
	return nil
}

// FindByID fetches a placement test.
func (r *PlacementRepository) FindByID(ctx context.Context, id string) (*models.PlacementTest, error) {
	query := fmt.Sprintf(`SELECT %s FROM placement_tests WHERE id = $1`, placementColumns)
	var p models.PlacementTest
	if err := sqlx.GetContext(ctx, conn(ctx, r.db), &p, query, id); err != nil {
		return nil, err
	}
	return &p, nil
}

// LockPendingByStudentCode locks the oldest test of a student still waiting for LMS results.
// It must run inside a transaction.
func (r *PlacementRepository) LockPendingByStudentCode(ctx context.Context, code string) (*models.PlacementTest, error) {
	query := fmt.Sprintf(`SELECT %s FROM placement_tests
WHERE student_code = $1 AND state IN ('pending_oral', 'pending_lms') AND lms_score = 0
ORDER BY created_at LIMIT 1 FOR UPDATE`, placementColumns)
	var p models.PlacementTest
	if err := sqlx.GetContext(ctx, conn(ctx, r.db), &p, query, code); err != nil {
		return nil, err
	}
	return &p, nil
}

// RecordLMSScores stores LMS results and moves the test to pending_decision.
func (r *PlacementRepository) RecordLMSScores(ctx context.Context, id string, scores models.LMSScores) error {
	const query = `UPDATE placement_tests SET lms_score = $2, grammar_score = $3, listening_score = $4, reading_score = $5,
    state = 'pending_decision', lms_received_at = NOW(), updated_at = NOW()
WHERE id = $1`
	if _, err := conn(ctx, r.db).ExecContext(ctx, query, id, scores.LMS, scores.Grammar, scores.Listening, scores.Reading); err != nil {
		return fmt.Errorf("record lms scores: %w", err)
	}
	return nil
}

// Consolidate stores the placement decision.
func (r *PlacementRepository) Consolidate(ctx context.Context, id string, decision models.PlacementDecision) error {
	const query = `UPDATE placement_tests SET final_score = $2, recommended_unit = $3, advisor = NULLIF($4, ''),
    state = 'consolidated', consolidated_at = NOW(), updated_at = NOW()
WHERE id = $1 AND state = 'pending_decision'`
	if _, err := conn(ctx, r.db).ExecContext(ctx, query, id, decision.FinalScore, decision.RecommendedUnit, decision.Advisor); err != nil {
		return fmt.Errorf("consolidate placement test: %w", err)
	}
	return nil
}

// LinkStudents attaches tests created before their student existed, matching on student code.
func (r *PlacementRepository) LinkStudents(ctx context.Context) (int64, error) {
	const query = `UPDATE placement_tests p SET student_id = s.id, updated_at = NOW()
FROM students s
WHERE p.student_id IS NULL AND s.code = p.student_code`
	res, err := conn(ctx, r.db).ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("link placement students: %w", err)
	}
	return res.RowsAffected()
}
