package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/benglish/academic-core/internal/models"
	appErrors "github.com/benglish/academic-core/pkg/errors"
)

// Seed record models stored in external_ids.
const (
	seedModelProgram     = "program"
	seedModelPhase       = "phase"
	seedModelLevel       = "level"
	seedModelSubjectType = "subject_type"
	seedModelSubject     = "subject"
	seedModelPool        = "elective_pool"
)

type catalogWriter interface {
	SaveProgram(ctx context.Context, p *models.Program) error
	SavePhase(ctx context.Context, p *models.Phase) error
	SaveLevel(ctx context.Context, l *models.Level) error
	SaveSubjectType(ctx context.Context, st *models.SubjectType) error
	SavePool(ctx context.Context, p *models.ElectivePool) error
}

type subjectSaver interface {
	SaveSubject(ctx context.Context, subject *models.Subject) error
}

type externalIDStore interface {
	Find(ctx context.Context, model, xmlID string) (*models.ExternalID, error)
	Save(ctx context.Context, ext *models.ExternalID) error
}

// SeedDocument is a declarative catalog. References between records use xml ids.
// NoUpdate defaults to true: records are written on first load and left alone afterwards
// so that later edits made by staff survive a reload.
type SeedDocument struct {
	NoUpdate     *bool             `yaml:"noupdate"`
	Programs     []SeedProgram     `yaml:"programs"`
	Phases       []SeedPhase       `yaml:"phases"`
	Levels       []SeedLevel       `yaml:"levels"`
	SubjectTypes []SeedSubjectType `yaml:"subject_types"`
	Subjects     []SeedSubject     `yaml:"subjects"`
	Pools        []SeedPool        `yaml:"elective_pools"`
}

// SeedProgram is a program record.
type SeedProgram struct {
	XMLID       string `yaml:"xml_id"`
	Code        string `yaml:"code"`
	Name        string `yaml:"name"`
	ProgramType string `yaml:"program_type"`
}

// SeedPhase is a phase record.
type SeedPhase struct {
	XMLID    string `yaml:"xml_id"`
	Program  string `yaml:"program"`
	Code     string `yaml:"code"`
	Name     string `yaml:"name"`
	Sequence int    `yaml:"sequence"`
	Courtesy bool   `yaml:"courtesy"`
}

// SeedLevel is a level record.
type SeedLevel struct {
	XMLID      string `yaml:"xml_id"`
	Phase      string `yaml:"phase"`
	Code       string `yaml:"code"`
	Name       string `yaml:"name"`
	Sequence   int    `yaml:"sequence"`
	UnitNumber *int   `yaml:"unit_number"`
}

// SeedSubjectType is a subject type record.
type SeedSubjectType struct {
	XMLID        string `yaml:"xml_id"`
	Code         string `yaml:"code"`
	Name         string `yaml:"name"`
	ElectivePool bool   `yaml:"elective_pool"`
}

// SeedSubject is a subject record.
type SeedSubject struct {
	XMLID          string   `yaml:"xml_id"`
	Level          string   `yaml:"level"`
	SubjectType    string   `yaml:"subject_type"`
	Code           string   `yaml:"code"`
	Name           string   `yaml:"name"`
	Category       string   `yaml:"category"`
	Sequence       int      `yaml:"sequence"`
	UnitNumber     *int     `yaml:"unit_number"`
	UnitBlockStart *int     `yaml:"unit_block_start"`
	UnitBlockEnd   *int     `yaml:"unit_block_end"`
	BSkillNumber   *int     `yaml:"bskill_number"`
	Hours          string   `yaml:"hours"`
	IsPrerequisite bool     `yaml:"is_prerequisite"`
	Active         *bool    `yaml:"active"`
	Configured     *bool    `yaml:"configured"`
	Prerequisites  []string `yaml:"prerequisites"`
}

// SeedPool is an elective pool record.
type SeedPool struct {
	XMLID    string   `yaml:"xml_id"`
	Program  string   `yaml:"program"`
	Phase    string   `yaml:"phase"`
	Code     string   `yaml:"code"`
	Name     string   `yaml:"name"`
	State    string   `yaml:"state"`
	Subjects []string `yaml:"subjects"`
}

// SeedReport counts what a load did.
type SeedReport struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// SeedService loads catalog seed documents.
type SeedService struct {
	catalog     catalogWriter
	subjects    subjectSaver
	externalIDs externalIDStore
	tx          transactor
	logger      *zap.Logger
}

// NewSeedService constructs SeedService.
func NewSeedService(catalog catalogWriter, subjects subjectSaver, externalIDs externalIDStore, tx transactor, logger *zap.Logger) *SeedService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SeedService{catalog: catalog, subjects: subjects, externalIDs: externalIDs, tx: tx, logger: logger}
}

// ParseSeed decodes a YAML seed document.
func ParseSeed(r io.Reader) (*SeedDocument, error) {
	var doc SeedDocument
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid seed document")
	}
	return &doc, nil
}

// seedRun carries per-load state.
type seedRun struct {
	ctx      context.Context
	svc      *SeedService
	noUpdate bool
	report   SeedReport
}

// resolve maps an xml id of model to the record id it was loaded as.
func (r *seedRun) resolve(model, xmlID string) (string, error) {
	ext, err := r.svc.externalIDs.Find(r.ctx, model, xmlID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown %s reference %q", model, xmlID))
	}
	if err != nil {
		return "", internalError(err, "failed to resolve seed reference")
	}
	return ext.RecordID, nil
}

// upsert runs write for a record unless it already exists under noupdate. write receives
// the existing record id, or "" for a new record, and returns the id it stored.
func (r *seedRun) upsert(model, xmlID string, write func(id string) (string, error)) (bool, error) {
	if xmlID == "" {
		return false, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s without xml_id", model))
	}
	ext, err := r.svc.externalIDs.Find(r.ctx, model, xmlID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, internalError(err, "failed to load external id")
	}
	if ext != nil && err == nil && ext.NoUpdate {
		r.report.Skipped++
		return false, nil
	}
	existing := ""
	if ext != nil && err == nil {
		existing = ext.RecordID
	}
	id, err := write(existing)
	if err != nil {
		return false, err
	}
	if existing == "" {
		r.report.Created++
	} else {
		r.report.Updated++
	}
	if err := r.svc.externalIDs.Save(r.ctx, &models.ExternalID{Model: model, XMLID: xmlID, RecordID: id, NoUpdate: r.noUpdate}); err != nil {
		return false, internalError(err, "failed to save external id")
	}
	return true, nil
}

// Load applies a seed document in one transaction.
func (s *SeedService) Load(ctx context.Context, doc *SeedDocument) (SeedReport, error) {
	var report SeedReport
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		run := &seedRun{ctx: ctx, svc: s, noUpdate: doc.NoUpdate == nil || *doc.NoUpdate}
		steps := []func(*seedRun, *SeedDocument) error{
			loadPrograms, loadPhases, loadLevels, loadSubjectTypes, loadSubjects, loadPools,
		}
		for _, step := range steps {
			if err := step(run, doc); err != nil {
				return err
			}
		}
		report = run.report
		return nil
	})
	if err != nil {
		return SeedReport{}, err
	}
	s.logger.Info("catalog seed loaded",
		zap.Int("created", report.Created),
		zap.Int("updated", report.Updated),
		zap.Int("skipped", report.Skipped))
	return report, nil
}

func loadPrograms(run *seedRun, doc *SeedDocument) error {
	for _, rec := range doc.Programs {
		rec := rec
		_, err := run.upsert(seedModelProgram, rec.XMLID, func(id string) (string, error) {
			p := &models.Program{ID: id, Code: rec.Code, Name: rec.Name, ProgramType: rec.ProgramType, Active: true}
			if err := run.svc.catalog.SaveProgram(run.ctx, p); err != nil {
				return "", internalError(err, "failed to save program "+rec.XMLID)
			}
			return p.ID, nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func loadPhases(run *seedRun, doc *SeedDocument) error {
	for _, rec := range doc.Phases {
		rec := rec
		_, err := run.upsert(seedModelPhase, rec.XMLID, func(id string) (string, error) {
			programID, err := run.resolve(seedModelProgram, rec.Program)
			if err != nil {
				return "", err
			}
			p := &models.Phase{ID: id, ProgramID: programID, Code: rec.Code, Name: rec.Name, Sequence: rec.Sequence, IsCourtesyPhase: rec.Courtesy}
			if err := run.svc.catalog.SavePhase(run.ctx, p); err != nil {
				return "", internalError(err, "failed to save phase "+rec.XMLID)
			}
			return p.ID, nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func loadLevels(run *seedRun, doc *SeedDocument) error {
	for _, rec := range doc.Levels {
		rec := rec
		_, err := run.upsert(seedModelLevel, rec.XMLID, func(id string) (string, error) {
			phaseID, err := run.resolve(seedModelPhase, rec.Phase)
			if err != nil {
				return "", err
			}
			l := &models.Level{ID: id, PhaseID: phaseID, Code: rec.Code, Name: rec.Name, Sequence: rec.Sequence, UnitNumber: rec.UnitNumber}
			if err := run.svc.catalog.SaveLevel(run.ctx, l); err != nil {
				return "", internalError(err, "failed to save level "+rec.XMLID)
			}
			return l.ID, nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func loadSubjectTypes(run *seedRun, doc *SeedDocument) error {
	for _, rec := range doc.SubjectTypes {
		rec := rec
		_, err := run.upsert(seedModelSubjectType, rec.XMLID, func(id string) (string, error) {
			st := &models.SubjectType{ID: id, Code: rec.Code, Name: rec.Name, IsElectivePool: rec.ElectivePool}
			if err := run.svc.catalog.SaveSubjectType(run.ctx, st); err != nil {
				return "", internalError(err, "failed to save subject type "+rec.XMLID)
			}
			return st.ID, nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// loadSubjects saves subjects first without prerequisites so that forward references
// resolve, then stores the prerequisite sets of the subjects it wrote.
func loadSubjects(run *seedRun, doc *SeedDocument) error {
	written := make(map[string]*models.Subject)
	for _, rec := range doc.Subjects {
		rec := rec
		_, err := run.upsert(seedModelSubject, rec.XMLID, func(id string) (string, error) {
			subject, err := run.buildSubject(id, rec)
			if err != nil {
				return "", err
			}
			if err := run.svc.subjects.SaveSubject(run.ctx, subject); err != nil {
				return "", err
			}
			written[rec.XMLID] = subject
			return subject.ID, nil
		})
		if err != nil {
			return err
		}
	}

	for _, rec := range doc.Subjects {
		subject, ok := written[rec.XMLID]
		if !ok || len(rec.Prerequisites) == 0 {
			continue
		}
		subject.PrerequisiteIDs = make([]string, 0, len(rec.Prerequisites))
		for _, ref := range rec.Prerequisites {
			id, err := run.resolve(seedModelSubject, ref)
			if err != nil {
				return err
			}
			subject.PrerequisiteIDs = append(subject.PrerequisiteIDs, id)
		}
		if err := run.svc.subjects.SaveSubject(run.ctx, subject); err != nil {
			return err
		}
	}
	return nil
}

func (r *seedRun) buildSubject(id string, rec SeedSubject) (*models.Subject, error) {
	levelID, err := r.resolve(seedModelLevel, rec.Level)
	if err != nil {
		return nil, err
	}
	subject := &models.Subject{
		ID:                        id,
		LevelID:                   levelID,
		Code:                      rec.Code,
		Name:                      rec.Name,
		Category:                  models.SubjectCategory(rec.Category),
		Sequence:                  rec.Sequence,
		UnitNumber:                rec.UnitNumber,
		UnitBlockStart:            rec.UnitBlockStart,
		UnitBlockEnd:              rec.UnitBlockEnd,
		BSkillNumber:              rec.BSkillNumber,
		IsPrerequisite:            rec.IsPrerequisite,
		Active:                    rec.Active == nil || *rec.Active,
		IsConfiguredForCurriculum: rec.Configured == nil || *rec.Configured,
	}
	if rec.SubjectType != "" {
		typeID, err := r.resolve(seedModelSubjectType, rec.SubjectType)
		if err != nil {
			return nil, err
		}
		subject.SubjectTypeID = &typeID
	}
	if rec.Hours != "" {
		hours, err := decimal.NewFromString(rec.Hours)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("subject %s: invalid hours %q", rec.XMLID, rec.Hours))
		}
		subject.Hours = hours
	}
	return subject, nil
}

func loadPools(run *seedRun, doc *SeedDocument) error {
	for _, rec := range doc.Pools {
		rec := rec
		_, err := run.upsert(seedModelPool, rec.XMLID, func(id string) (string, error) {
			programID, err := run.resolve(seedModelProgram, rec.Program)
			if err != nil {
				return "", err
			}
			pool := &models.ElectivePool{ID: id, ProgramID: programID, Code: rec.Code, Name: rec.Name, State: models.PoolState(rec.State)}
			if rec.Phase != "" {
				phaseID, err := run.resolve(seedModelPhase, rec.Phase)
				if err != nil {
					return "", err
				}
				pool.PhaseID = &phaseID
			}
			for _, ref := range rec.Subjects {
				subjectID, err := run.resolve(seedModelSubject, ref)
				if err != nil {
					return "", err
				}
				pool.SubjectIDs = append(pool.SubjectIDs, subjectID)
			}
			if err := run.svc.catalog.SavePool(run.ctx, pool); err != nil {
				return "", internalError(err, "failed to save elective pool "+rec.XMLID)
			}
			return pool.ID, nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}
