package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/benglish/academic-core/internal/curriculum"
	"github.com/benglish/academic-core/internal/models"
	appErrors "github.com/benglish/academic-core/pkg/errors"
)

type catalogStore interface {
	GetSubject(ctx context.Context, id string) (*models.Subject, error)
	ListSubjects(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, error)
	ListSubjectsByIDs(ctx context.Context, ids []string) ([]models.Subject, error)
	GetPool(ctx context.Context, id string) (*models.ElectivePool, error)
	FindActivePool(ctx context.Context, programID string, phaseID *string) (*models.ElectivePool, error)
	GetLevel(ctx context.Context, id string) (*models.Level, error)
	DerivedProgramID(ctx context.Context, levelID string) (string, error)
	ExistingSubjectIDs(ctx context.Context, ids []string) ([]string, error)
	SaveSubject(ctx context.Context, subject *models.Subject) error
	ReplacePrerequisites(ctx context.Context, subjectID string, prerequisiteIDs []string) error
	ListProgramMismatches(ctx context.Context) ([]models.SubjectProgramMismatch, error)
}

// CatalogProblem describes one inconsistency found by Check.
type CatalogProblem struct {
	SubjectID   string `json:"subject_id"`
	SubjectCode string `json:"subject_code"`
	Code        string `json:"code"`
	Message     string `json:"message"`
}

// CatalogReport is the result of a catalog consistency check.
type CatalogReport struct {
	Subjects   int                             `json:"subjects"`
	Mismatches []models.SubjectProgramMismatch `json:"program_mismatches"`
	Problems   []CatalogProblem                `json:"problems"`
}

// OK reports a clean catalog.
func (r CatalogReport) OK() bool {
	return len(r.Mismatches) == 0 && len(r.Problems) == 0
}

// CatalogService loads and validates the curriculum catalog.
type CatalogService struct {
	repo      catalogStore
	tx        transactor
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCatalogService constructs CatalogService.
func NewCatalogService(repo catalogStore, tx transactor, validate *validator.Validate, logger *zap.Logger) *CatalogService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{repo: repo, tx: tx, validator: validate, logger: logger}
}

// Catalog indexes every subject of a program. An empty programID loads the whole catalog.
func (s *CatalogService) Catalog(ctx context.Context, programID string) (*curriculum.Catalog, error) {
	subjects, err := s.repo.ListSubjects(ctx, models.SubjectFilter{ProgramID: programID})
	if err != nil {
		return nil, internalError(err, "failed to load catalog")
	}
	return curriculum.NewCatalog(subjects), nil
}

// Subject returns one subject.
func (s *CatalogService) Subject(ctx context.Context, id string) (*models.Subject, error) {
	subject, err := s.repo.GetSubject(ctx, id)
	if err != nil {
		return nil, lookupError(err, "subject")
	}
	return subject, nil
}

// Pool returns one elective pool with its subject ids.
func (s *CatalogService) Pool(ctx context.Context, id string) (*models.ElectivePool, error) {
	pool, err := s.repo.GetPool(ctx, id)
	if err != nil {
		return nil, lookupError(err, "elective pool")
	}
	return pool, nil
}

// SessionCandidates returns what a session is bound to: a concrete subject (pool nil), or
// the subjects of the pool standing behind it. A pool-placeholder subject is backed by the
// active pool of the session program, preferring the pool of the placeholder's phase.
func (s *CatalogService) SessionCandidates(ctx context.Context, session *models.AcademicSession) (*models.Subject, []models.Subject, error) {
	if session.SubjectID != nil {
		subject, err := s.Subject(ctx, *session.SubjectID)
		if err != nil {
			return nil, nil, err
		}
		if !subject.IsElectivePool {
			return subject, nil, nil
		}
		level, err := s.repo.GetLevel(ctx, subject.LevelID)
		if err != nil {
			return nil, nil, lookupError(err, "level")
		}
		pool, err := s.repo.FindActivePool(ctx, session.ProgramID, &level.PhaseID)
		if errors.Is(err, sql.ErrNoRows) {
			return subject, nil, nil
		}
		if err != nil {
			return nil, nil, internalError(err, "failed to load active elective pool")
		}
		subjects, err := s.poolSubjects(ctx, pool)
		return subject, subjects, err
	}

	if session.ElectivePoolID == nil {
		return nil, nil, appErrors.Clone(appErrors.ErrIntegrity, "session has neither subject nor elective pool")
	}
	pool, err := s.repo.GetPool(ctx, *session.ElectivePoolID)
	if err != nil {
		return nil, nil, lookupError(err, "elective pool")
	}
	subjects, err := s.poolSubjects(ctx, pool)
	return nil, subjects, err
}

func (s *CatalogService) poolSubjects(ctx context.Context, pool *models.ElectivePool) ([]models.Subject, error) {
	subjects, err := s.repo.ListSubjectsByIDs(ctx, pool.SubjectIDs)
	if err != nil {
		return nil, internalError(err, "failed to load pool subjects")
	}
	return subjects, nil
}

// SaveSubject validates and stores a subject with its explicit prerequisites. The subject
// program is always derived from Level -> Phase -> Program.
func (s *CatalogService) SaveSubject(ctx context.Context, subject *models.Subject) error {
	if err := s.ValidateSubject(ctx, subject); err != nil {
		return err
	}
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.SaveSubject(ctx, subject); err != nil {
			return internalError(err, "failed to save subject")
		}
		if err := s.repo.ReplacePrerequisites(ctx, subject.ID, subject.PrerequisiteIDs); err != nil {
			return internalError(err, "failed to save prerequisites")
		}
		return nil
	})
}

// ValidateSubject checks category, program derivation, prerequisite existence and cycles.
func (s *CatalogService) ValidateSubject(ctx context.Context, subject *models.Subject) error {
	if subject.Code == "" || subject.LevelID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "subject code and level are required")
	}
	if !subject.Category.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown subject category %q", subject.Category))
	}

	derived, err := s.repo.DerivedProgramID(ctx, subject.LevelID)
	if err != nil {
		return lookupError(err, "level")
	}
	if subject.ProgramID != nil && *subject.ProgramID != derived {
		return appErrors.Clone(appErrors.ErrCatalogInconsistentProgram,
			fmt.Sprintf("subject %s is bound to program %s but its level belongs to %s", subject.Code, *subject.ProgramID, derived))
	}
	subject.ProgramID = &derived

	if len(subject.PrerequisiteIDs) == 0 {
		return nil
	}
	found, err := s.repo.ExistingSubjectIDs(ctx, subject.PrerequisiteIDs)
	if err != nil {
		return internalError(err, "failed to check prerequisites")
	}
	known := make(map[string]struct{}, len(found))
	for _, id := range found {
		known[id] = struct{}{}
	}
	for _, id := range subject.PrerequisiteIDs {
		if _, ok := known[id]; !ok && id != subject.ID {
			return appErrors.Clone(appErrors.ErrCatalogMissingPrerequisite,
				fmt.Sprintf("subject %s requires unknown subject %s", subject.Code, id))
		}
	}
	if subject.ID == "" {
		return nil
	}

	subjects, err := s.repo.ListSubjects(ctx, models.SubjectFilter{ProgramID: derived})
	if err != nil {
		return internalError(err, "failed to load catalog")
	}
	replaced := false
	for i := range subjects {
		if subjects[i].ID == subject.ID {
			subjects[i] = *subject
			replaced = true
		}
	}
	if !replaced {
		subjects = append(subjects, *subject)
	}
	if err := curriculum.ValidatePrerequisites(*subject, curriculum.NewCatalog(subjects)); err != nil {
		if errors.Is(err, appErrors.ErrCatalogMissingPrerequisite) {
			return appErrors.Clone(appErrors.ErrCatalogInconsistentProgram,
				fmt.Sprintf("subject %s requires a subject of another program", subject.Code))
		}
		return err
	}
	return nil
}

// Check reports subjects whose stored program differs from the derived one, prerequisites
// pointing outside the program catalog, and prerequisite cycles.
func (s *CatalogService) Check(ctx context.Context) (CatalogReport, error) {
	mismatches, err := s.repo.ListProgramMismatches(ctx)
	if err != nil {
		return CatalogReport{}, internalError(err, "failed to check subject programs")
	}
	subjects, err := s.repo.ListSubjects(ctx, models.SubjectFilter{})
	if err != nil {
		return CatalogReport{}, internalError(err, "failed to load catalog")
	}

	byProgram := make(map[string][]models.Subject)
	for _, subject := range subjects {
		key := derefString(subject.ProgramID)
		byProgram[key] = append(byProgram[key], subject)
	}
	programs := make([]string, 0, len(byProgram))
	for program := range byProgram {
		programs = append(programs, program)
	}
	sort.Strings(programs)

	report := CatalogReport{Subjects: len(subjects), Mismatches: mismatches}
	for _, program := range programs {
		cat := curriculum.NewCatalog(byProgram[program])
		for _, subject := range cat.Subjects() {
			if err := curriculum.ValidatePrerequisites(subject, cat); err != nil {
				appErr := appErrors.FromError(err)
				report.Problems = append(report.Problems, CatalogProblem{
					SubjectID:   subject.ID,
					SubjectCode: subject.Code,
					Code:        appErr.Code,
					Message:     appErr.Message,
				})
			}
		}
	}
	if !report.OK() {
		s.logger.Warn("catalog check found problems",
			zap.Int("program_mismatches", len(report.Mismatches)),
			zap.Int("problems", len(report.Problems)))
	}
	return report, nil
}
