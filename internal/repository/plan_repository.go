package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/benglish/academic-core/internal/models"
)

// planScope selects the configured subjects a plan covers through its levels and phases.
// Elective pool placeholders are resolved per student and never become plan subjects.
const planScope = `SELECT s.id FROM subjects s
JOIN levels l ON l.id = s.level_id
LEFT JOIN subject_types st ON st.id = s.subject_type_id
WHERE s.active AND s.is_configured_for_curriculum AND NOT COALESCE(st.is_elective_pool, FALSE)
  AND (l.id IN (SELECT level_id FROM plan_levels WHERE plan_id = $1)
       OR l.phase_id IN (SELECT phase_id FROM plan_phases WHERE plan_id = $1))`

// PlanRepository persists plans and their subject sets.
type PlanRepository struct {
	db *sqlx.DB
}

// NewPlanRepository constructs the repository.
func NewPlanRepository(db *sqlx.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

// FindByID returns a plan with its phase, level and subject ids.
func (r *PlanRepository) FindByID(ctx context.Context, id string) (*models.Plan, error) {
	const query = `SELECT id, program_id, code, name, active, created_at, updated_at FROM plans WHERE id = $1`
	q := conn(ctx, r.db)
	var plan models.Plan
	if err := sqlx.GetContext(ctx, q, &plan, query, id); err != nil {
		return nil, err
	}
	if err := sqlx.SelectContext(ctx, q, &plan.PhaseIDs, `SELECT phase_id FROM plan_phases WHERE plan_id = $1 ORDER BY phase_id`, id); err != nil {
		return nil, fmt.Errorf("load plan phases: %w", err)
	}
	if err := sqlx.SelectContext(ctx, q, &plan.LevelIDs, `SELECT level_id FROM plan_levels WHERE plan_id = $1 ORDER BY level_id`, id); err != nil {
		return nil, fmt.Errorf("load plan levels: %w", err)
	}
	subjects, err := r.SubjectIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	plan.SubjectIDs = subjects
	return &plan, nil
}

// SubjectIDs returns the subject set of a plan.
func (r *PlanRepository) SubjectIDs(ctx context.Context, planID string) ([]string, error) {
	var ids []string
	if err := sqlx.SelectContext(ctx, conn(ctx, r.db), &ids, `SELECT subject_id FROM plan_subjects WHERE plan_id = $1 ORDER BY subject_id`, planID); err != nil {
		return nil, fmt.Errorf("load plan subjects: %w", err)
	}
	return ids, nil
}

// ListIDs pages through plan ids in id order starting after the given id.
func (r *PlanRepository) ListIDs(ctx context.Context, after string, limit int) ([]string, error) {
	const query = `SELECT id FROM plans WHERE id::text > $1 ORDER BY id::text LIMIT $2`
	var ids []string
	if err := sqlx.SelectContext(ctx, conn(ctx, r.db), &ids, query, after, batchLimit(limit)); err != nil {
		return nil, fmt.Errorf("list plan ids: %w", err)
	}
	return ids, nil
}

// Save inserts or updates a plan and replaces its phase and level scope.
func (r *PlanRepository) Save(ctx context.Context, plan *models.Plan) error {
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	plan.UpdatedAt = time.Now().UTC()
	q := conn(ctx, r.db)
	const query = `INSERT INTO plans (id, program_id, code, name, active, updated_at)
VALUES (:id, :program_id, :code, :name, :active, :updated_at)
ON CONFLICT (id) DO UPDATE SET program_id = EXCLUDED.program_id, code = EXCLUDED.code, name = EXCLUDED.name,
    active = EXCLUDED.active, updated_at = EXCLUDED.updated_at`
	if _, err := sqlx.NamedExecContext(ctx, q, query, plan); err != nil {
		return fmt.Errorf("save plan: %w", err)
	}

	if _, err := q.ExecContext(ctx, `DELETE FROM plan_phases WHERE plan_id = $1`, plan.ID); err != nil {
		return fmt.Errorf("clear plan phases: %w", err)
	}
	if len(plan.PhaseIDs) > 0 {
		if _, err := q.ExecContext(ctx, `INSERT INTO plan_phases (plan_id, phase_id) SELECT $1, unnest($2::uuid[]) ON CONFLICT DO NOTHING`, plan.ID, pq.Array(plan.PhaseIDs)); err != nil {
			return fmt.Errorf("insert plan phases: %w", err)
		}
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM plan_levels WHERE plan_id = $1`, plan.ID); err != nil {
		return fmt.Errorf("clear plan levels: %w", err)
	}
	if len(plan.LevelIDs) > 0 {
		if _, err := q.ExecContext(ctx, `INSERT INTO plan_levels (plan_id, level_id) SELECT $1, unnest($2::uuid[]) ON CONFLICT DO NOTHING`, plan.ID, pq.Array(plan.LevelIDs)); err != nil {
			return fmt.Errorf("insert plan levels: %w", err)
		}
	}
	return nil
}

// ReconcileSubjects aligns plan_subjects with the configured subjects of the plan's
// levels and phases. It never touches enrollment progress.
func (r *PlanRepository) ReconcileSubjects(ctx context.Context, planID string) (models.PlanReconciliation, error) {
	result := models.PlanReconciliation{PlanID: planID}
	q := conn(ctx, r.db)

	insert := `INSERT INTO plan_subjects (plan_id, subject_id)
SELECT $1, d.id FROM (` + planScope + `) d
ON CONFLICT DO NOTHING`
	res, err := q.ExecContext(ctx, insert, planID)
	if err != nil {
		return result, fmt.Errorf("add plan subjects: %w", err)
	}
	if result.Added, err = res.RowsAffected(); err != nil {
		return result, err
	}

	remove := `DELETE FROM plan_subjects WHERE plan_id = $1 AND subject_id NOT IN (` + planScope + `)`
	res, err = q.ExecContext(ctx, remove, planID)
	if err != nil {
		return result, fmt.Errorf("remove plan subjects: %w", err)
	}
	if result.Removed, err = res.RowsAffected(); err != nil {
		return result, err
	}
	return result, nil
}
