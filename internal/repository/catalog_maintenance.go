package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/benglish/academic-core/internal/models"
)

// SetExtraBSkillsActive flips the active flag of up to limit bskills whose number exceeds
// threshold and whose flag differs from active. It returns the rows changed.
func (r *CatalogRepository) SetExtraBSkillsActive(ctx context.Context, threshold int, active bool, limit int) (int64, error) {
	const query = `UPDATE subjects SET active = $2, updated_at = NOW()
WHERE id IN (
    SELECT id FROM subjects
    WHERE category = 'bskills' AND bskill_number > $1 AND active <> $2
    ORDER BY id LIMIT $3
)`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, threshold, active, batchLimit(limit))
	if err != nil {
		return 0, fmt.Errorf("update extra bskills: %w", err)
	}
	return res.RowsAffected()
}

// SyncSubjectPrograms rewrites program_id from Level -> Phase -> Program for up to limit
// subjects where it differs and returns the rows changed.
func (r *CatalogRepository) SyncSubjectPrograms(ctx context.Context, limit int) (int64, error) {
	const query = `UPDATE subjects s SET program_id = d.program_id, updated_at = NOW()
FROM (
    SELECT s2.id, ph.program_id
    FROM subjects s2
    JOIN levels l ON l.id = s2.level_id
    JOIN phases ph ON ph.id = l.phase_id
    WHERE s2.program_id IS DISTINCT FROM ph.program_id
    ORDER BY s2.id LIMIT $1
) d
WHERE s.id = d.id`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, batchLimit(limit))
	if err != nil {
		return 0, fmt.Errorf("sync subject programs: %w", err)
	}
	return res.RowsAffected()
}

// ListProgramMismatches returns subjects whose stored program differs from the derived one.
func (r *CatalogRepository) ListProgramMismatches(ctx context.Context) ([]models.SubjectProgramMismatch, error) {
	const query = `SELECT s.id AS subject_id, s.code AS subject_code, s.program_id AS stored_program_id,
       ph.program_id AS derived_program_id
FROM subjects s
JOIN levels l ON l.id = s.level_id
JOIN phases ph ON ph.id = l.phase_id
WHERE s.program_id IS DISTINCT FROM ph.program_id
ORDER BY s.code`
	var out []models.SubjectProgramMismatch
	if err := sqlx.SelectContext(ctx, conn(ctx, r.db), &out, query); err != nil {
		return nil, fmt.Errorf("list program mismatches: %w", err)
	}
	return out, nil
}
