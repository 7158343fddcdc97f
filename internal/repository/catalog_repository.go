package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/benglish/academic-core/internal/models"
)

const subjectColumns = `s.id, s.level_id, s.program_id, s.subject_type_id, s.code, s.name, s.category, s.sequence,
       s.unit_number, s.unit_block_start, s.unit_block_end, s.bskill_number, s.hours, s.is_prerequisite,
       s.active, s.is_configured_for_curriculum, COALESCE(st.is_elective_pool, FALSE) AS is_elective_pool,
       s.created_at, s.updated_at`

const subjectFrom = `FROM subjects s LEFT JOIN subject_types st ON st.id = s.subject_type_id`

const poolColumns = `id, program_id, phase_id, code, name, state, created_at, updated_at`

// CatalogRepository persists programs, phases, levels, subjects and elective pools.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository constructs the repository.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// GetSubject returns a subject with its prerequisite ids.
func (r *CatalogRepository) GetSubject(ctx context.Context, id string) (*models.Subject, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE s.id = $1`, subjectColumns, subjectFrom)
	var subject models.Subject
	if err := sqlx.GetContext(ctx, conn(ctx, r.db), &subject, query, id); err != nil {
		return nil, err
	}
	subjects := []models.Subject{subject}
	if err := r.loadPrerequisites(ctx, subjects); err != nil {
		return nil, err
	}
	return &subjects[0], nil
}

// ListSubjects returns subjects matching filter ordered by unit and sequence.
func (r *CatalogRepository) ListSubjects(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, error) {
	var conditions []string
	var args []interface{}

	if filter.ProgramID != "" {
		args = append(args, filter.ProgramID)
		conditions = append(conditions, fmt.Sprintf("s.program_id = $%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("s.category = $%d", len(args)))
	}
	if filter.UnitNumber != nil {
		args = append(args, *filter.UnitNumber)
		conditions = append(conditions, fmt.Sprintf("s.unit_number = $%d", len(args)))
	}
	if filter.Configured {
		conditions = append(conditions, "s.active AND s.is_configured_for_curriculum")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}
	query := fmt.Sprintf(`SELECT %s %s%s ORDER BY s.unit_number NULLS LAST, s.sequence, s.code`, subjectColumns, subjectFrom, clause)

	var subjects []models.Subject
	if err := sqlx.SelectContext(ctx, conn(ctx, r.db), &subjects, query, args...); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	if err := r.loadPrerequisites(ctx, subjects); err != nil {
		return nil, err
	}
	return subjects, nil
}

// ListSubjectsByIDs returns the subjects among ids that exist.
func (r *CatalogRepository) ListSubjectsByIDs(ctx context.Context, ids []string) ([]models.Subject, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT %s %s WHERE s.id = ANY($1) ORDER BY s.sequence, s.name`, subjectColumns, subjectFrom)
	var subjects []models.Subject
	if err := sqlx.SelectContext(ctx, conn(ctx, r.db), &subjects, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list subjects by id: %w", err)
	}
	if err := r.loadPrerequisites(ctx, subjects); err != nil {
		return nil, err
	}
	return subjects, nil
}

func (r *CatalogRepository) loadPrerequisites(ctx context.Context, subjects []models.Subject) error {
	if len(subjects) == 0 {
		return nil
	}
	ids := make([]string, len(subjects))
	index := make(map[string]int, len(subjects))
	for i, s := range subjects {
		ids[i] = s.ID
		index[s.ID] = i
	}

	const query = `SELECT subject_id, prerequisite_id FROM subject_prerequisites WHERE subject_id = ANY($1) ORDER BY subject_id, prerequisite_id`
	var edges []struct {
		SubjectID      string `db:"subject_id"`
		PrerequisiteID string `db:"prerequisite_id"`
	}
	if err := sqlx.SelectContext(ctx, conn(ctx, r.db), &edges, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("load prerequisites: %w", err)
	}
	for _, e := range edges {
		if i, ok := index[e.SubjectID]; ok {
			subjects[i].PrerequisiteIDs = append(subjects[i].PrerequisiteIDs, e.PrerequisiteID)
		}
	}
	return nil
}

// GetPool returns an elective pool with its subject ids.
func (r *CatalogRepository) GetPool(ctx context.Context, id string) (*models.ElectivePool, error) {
	query := fmt.Sprintf(`SELECT %s FROM elective_pools WHERE id = $1`, poolColumns)
	var pool models.ElectivePool
	if err := sqlx.GetContext(ctx, conn(ctx, r.db), &pool, query, id); err != nil {
		return nil, err
	}
	if err := r.loadPoolSubjectIDs(ctx, &pool); err != nil {
		return nil, err
	}
	return &pool, nil
}

// FindActivePool returns the active pool of a program, preferring one bound to phaseID.
func (r *CatalogRepository) FindActivePool(ctx context.Context, programID string, phaseID *string) (*models.ElectivePool, error) {
	query := fmt.Sprintf(`SELECT %s FROM elective_pools
WHERE program_id = $1 AND state = 'active' AND (phase_id = $2 OR phase_id IS NULL)
ORDER BY (phase_id IS NULL), code LIMIT 1`, poolColumns)
	var pool models.ElectivePool
	if err := sqlx.GetContext(ctx, conn(ctx, r.db), &pool, query, programID, phaseID); err != nil {
		return nil, err
	}
	if err := r.loadPoolSubjectIDs(ctx, &pool); err != nil {
		return nil, err
	}
	return &pool, nil
}

func (r *CatalogRepository) loadPoolSubjectIDs(ctx context.Context, pool *models.ElectivePool) error {
	const query = `SELECT subject_id FROM elective_pool_subjects WHERE pool_id = $1 ORDER BY subject_id`
	if err := sqlx.SelectContext(ctx, conn(ctx, r.db), &pool.SubjectIDs, query, pool.ID); err != nil {
		return fmt.Errorf("load pool subjects: %w", err)
	}
	return nil
}

// GetLevel returns a level with its phase and program.
func (r *CatalogRepository) GetLevel(ctx context.Context, id string) (*models.Level, error) {
	const query = `SELECT id, phase_id, code, name, sequence, unit_number, created_at, updated_at FROM levels WHERE id = $1`
	var level models.Level
	if err := sqlx.GetContext(ctx, conn(ctx, r.db), &level, query, id); err != nil {
		return nil, err
	}
	return &level, nil
}

// DerivedProgramID returns the program reached through Level -> Phase -> Program.
func (r *CatalogRepository) DerivedProgramID(ctx context.Context, levelID string) (string, error) {
	const query = `SELECT ph.program_id FROM levels l JOIN phases ph ON ph.id = l.phase_id WHERE l.id = $1`
	var programID string
	if err := sqlx.GetContext(ctx, conn(ctx, r.db), &programID, query, levelID); err != nil {
		return "", err
	}
	return programID, nil
}

// ExistingSubjectIDs returns the subset of ids present in the catalog.
func (r *CatalogRepository) ExistingSubjectIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var found []string
	if err := sqlx.SelectContext(ctx, conn(ctx, r.db), &found, `SELECT id FROM subjects WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("check subjects: %w", err)
	}
	return found, nil
}

// SaveProgram inserts or updates a program by id.
func (r *CatalogRepository) SaveProgram(ctx context.Context, p *models.Program) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO programs (id, code, name, program_type, active, updated_at)
VALUES (:id, :code, :name, :program_type, :active, :updated_at)
ON CONFLICT (id) DO UPDATE SET code = EXCLUDED.code, name = EXCLUDED.name, program_type = EXCLUDED.program_type,
    active = EXCLUDED.active, updated_at = EXCLUDED.updated_at`
	if _, err := sqlx.NamedExecContext(ctx, conn(ctx, r.db), query, p); err != nil {
		return fmt.Errorf("save program: %w", err)
	}
	return nil
}

// SavePhase inserts or updates a phase by id.
func (r *CatalogRepository) SavePhase(ctx context.Context, p *models.Phase) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO phases (id, program_id, code, name, sequence, is_courtesy_phase, updated_at)
VALUES (:id, :program_id, :code, :name, :sequence, :is_courtesy_phase, :updated_at)
ON CONFLICT (id) DO UPDATE SET program_id = EXCLUDED.program_id, code = EXCLUDED.code, name = EXCLUDED.name,
    sequence = EXCLUDED.sequence, is_courtesy_phase = EXCLUDED.is_courtesy_phase, updated_at = EXCLUDED.updated_at`
	if _, err := sqlx.NamedExecContext(ctx, conn(ctx, r.db), query, p); err != nil {
		return fmt.Errorf("save phase: %w", err)
	}
	return nil
}

// SaveLevel inserts or updates a level by id.
func (r *CatalogRepository) SaveLevel(ctx context.Context, l *models.Level) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	l.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO levels (id, phase_id, code, name, sequence, unit_number, updated_at)
VALUES (:id, :phase_id, :code, :name, :sequence, :unit_number, :updated_at)
ON CONFLICT (id) DO UPDATE SET phase_id = EXCLUDED.phase_id, code = EXCLUDED.code, name = EXCLUDED.name,
    sequence = EXCLUDED.sequence, unit_number = EXCLUDED.unit_number, updated_at = EXCLUDED.updated_at`
	if _, err := sqlx.NamedExecContext(ctx, conn(ctx, r.db), query, l); err != nil {
		return fmt.Errorf("save level: %w", err)
	}
	return nil
}

// SaveSubjectType inserts or updates a subject type by id.
func (r *CatalogRepository) SaveSubjectType(ctx context.Context, st *models.SubjectType) error {
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	const query = `INSERT INTO subject_types (id, code, name, is_elective_pool)
VALUES (:id, :code, :name, :is_elective_pool)
ON CONFLICT (id) DO UPDATE SET code = EXCLUDED.code, name = EXCLUDED.name, is_elective_pool = EXCLUDED.is_elective_pool`
	if _, err := sqlx.NamedExecContext(ctx, conn(ctx, r.db), query, st); err != nil {
		return fmt.Errorf("save subject type: %w", err)
	}
	return nil
}

// SaveSubject inserts or updates a subject by id. program_id is always derived from
// Level -> Phase -> Program in the same statement.
func (r *CatalogRepository) SaveSubject(ctx context.Context, s *models.Subject) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO subjects (id, level_id, program_id, subject_type_id, code, name, category, sequence,
    unit_number, unit_block_start, unit_block_end, bskill_number, hours, is_prerequisite, active,
    is_configured_for_curriculum, updated_at)
VALUES (:id, :level_id,
    (SELECT ph.program_id FROM levels l JOIN phases ph ON ph.id = l.phase_id WHERE l.id = :level_id),
    :subject_type_id, :code, :name, :category, :sequence, :unit_number, :unit_block_start, :unit_block_end,
    :bskill_number, :hours, :is_prerequisite, :active, :is_configured_for_curriculum, :updated_at)
ON CONFLICT (id) DO UPDATE SET level_id = EXCLUDED.level_id, program_id = EXCLUDED.program_id,
    subject_type_id = EXCLUDED.subject_type_id, code = EXCLUDED.code, name = EXCLUDED.name,
    category = EXCLUDED.category, sequence = EXCLUDED.sequence, unit_number = EXCLUDED.unit_number,
    unit_block_start = EXCLUDED.unit_block_start, unit_block_end = EXCLUDED.unit_block_end,
    bskill_number = EXCLUDED.bskill_number, hours = EXCLUDED.hours, is_prerequisite = EXCLUDED.is_prerequisite,
    active = EXCLUDED.active, is_configured_for_curriculum = EXCLUDED.is_configured_for_curriculum,
    updated_at = EXCLUDED.updated_at`
	if _, err := sqlx.NamedExecContext(ctx, conn(ctx, r.db), query, s); err != nil {
		return fmt.Errorf("save subject: %w", err)
	}
	return nil
}

// ReplacePrerequisites sets the prerequisite set of subjectID.
func (r *CatalogRepository) ReplacePrerequisites(ctx context.Context, subjectID string, prerequisiteIDs []string) error {
	q := conn(ctx, r.db)
	if _, err := q.ExecContext(ctx, `DELETE FROM subject_prerequisites WHERE subject_id = $1`, subjectID); err != nil {
		return fmt.Errorf("clear prerequisites: %w", err)
	}
	if len(prerequisiteIDs) == 0 {
		return nil
	}
	const query = `INSERT INTO subject_prerequisites (subject_id, prerequisite_id)
SELECT $1, unnest($2::uuid[]) ON CONFLICT DO NOTHING`
	if _, err := q.ExecContext(ctx, query, subjectID, pq.Array(prerequisiteIDs)); err != nil {
		return fmt.Errorf("insert prerequisites: %w", err)
	}
	return nil
}

// SavePool inserts or updates an elective pool and replaces its subject set.
func (r *CatalogRepository) SavePool(ctx context.Context, p *models.ElectivePool) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.State == "" {
		p.State = models.PoolStateDraft
	}
	p.UpdatedAt = time.Now().UTC()
	q := conn(ctx, r.db)
	const query = `INSERT INTO elective_pools (id, program_id, phase_id, code, name, state, updated_at)
VALUES (:id, :program_id, :phase_id, :code, :name, :state, :updated_at)
ON CONFLICT (id) DO UPDATE SET program_id = EXCLUDED.program_id, phase_id = EXCLUDED.phase_id, code = EXCLUDED.code,
    name = EXCLUDED.name, state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`
	if _, err := sqlx.NamedExecContext(ctx, q, query, p); err != nil {
		return fmt.Errorf("save elective pool: %w", err)
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM elective_pool_subjects WHERE pool_id = $1`, p.ID); err != nil {
		return fmt.Errorf("clear pool subjects: %w", err)
	}
	if len(p.SubjectIDs) == 0 {
		return nil
	}
	if _, err := q.ExecContext(ctx, `INSERT INTO elective_pool_subjects (pool_id, subject_id)
SELECT $1, unnest($2::uuid[]) ON CONFLICT DO NOTHING`, p.ID, pq.Array(p.SubjectIDs)); err != nil {
		return fmt.Errorf("insert pool subjects: %w", err)
	}
	return nil
}
