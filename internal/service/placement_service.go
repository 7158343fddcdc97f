package service

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/benglish/academic-core/internal/models"
	appErrors "github.com/benglish/academic-core/pkg/errors"
)

// AdvisorQueue is the assignment cursor used to rotate placement advisors.
const AdvisorQueue = "placement_advisors"

type placementStore interface {
	Create(ctx context.Context, p *models.PlacementTest) error
	FindByID(ctx context.Context, id string) (*models.PlacementTest, error)
	LockPendingByStudentCode(ctx context.Context, code string) (*models.PlacementTest, error)
	RecordLMSScores(ctx context.Context, id string, scores models.LMSScores) error
	Consolidate(ctx context.Context, id string, decision models.PlacementDecision) error
	LinkStudents(ctx context.Context) (int64, error)
}

type cursorStore interface {
	Next(ctx context.Context, queue string) (int64, error)
}

type studentCodeReader interface {
	FindByCode(ctx context.Context, code string) (*models.Student, error)
}

// PlacementConfig configures webhook authentication and consolidation.
type PlacementConfig struct {
	WebhookToken string
	Advisors     []string
	MaxUnit      int
}

// LMSResultPayload is the body posted by the LMS.
type LMSResultPayload struct {
	StudentCode    string          `json:"student_code" validate:"required"`
	LMSScore       decimal.Decimal `json:"lms_score"`
	GrammarScore   decimal.Decimal `json:"grammar_score"`
	ListeningScore decimal.Decimal `json:"listening_score"`
	ReadingScore   decimal.Decimal `json:"reading_score"`
	Token          string          `json:"token"`
}

// LMSResultResponse is always returned with HTTP 200.
type LMSResultResponse struct {
	Status          string                `json:"status"`
	Message         string                `json:"message,omitempty"`
	PlacementID     string                `json:"placement_id,omitempty"`
	State           models.PlacementState `json:"state,omitempty"`
	RecommendedUnit *int                  `json:"recommended_unit,omitempty"`
}

// CreatePlacementRequest opens a placement test for an incoming student.
type CreatePlacementRequest struct {
	StudentCode string           `json:"student_code" validate:"required"`
	OralScore   *decimal.Decimal `json:"oral_score"`
}

// PlacementService ingests LMS results and consolidates placement decisions.
type PlacementService struct {
	repo      placementStore
	cursors   cursorStore
	students  studentCodeReader
	metrics   *MetricsService
	tx        transactor
	config    PlacementConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPlacementService constructs PlacementService.
func NewPlacementService(repo placementStore, cursors cursorStore, students studentCodeReader, metrics *MetricsService, tx transactor, cfg PlacementConfig, validate *validator.Validate, logger *zap.Logger) *PlacementService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxUnit <= 0 {
		cfg.MaxUnit = 24
	}
	return &PlacementService{repo: repo, cursors: cursors, students: students, metrics: metrics, tx: tx, config: cfg, validator: validate, logger: logger}
}

// Create opens a placement test. With an oral score it waits for the LMS only.
func (s *PlacementService) Create(ctx context.Context, req CreatePlacementRequest) (*models.PlacementTest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid placement payload")
	}
	test := &models.PlacementTest{
		StudentCode: req.StudentCode,
		State:       models.PlacementPendingOral,
		OralScore:   nullGrade(req.OralScore),
	}
	if req.OralScore != nil {
		test.State = models.PlacementPendingLMS
	}
	student, err := s.students.FindByCode(ctx, req.StudentCode)
	switch {
	case err == nil:
		test.StudentID = &student.ID
	case !errors.Is(err, sql.ErrNoRows):
		return nil, internalError(err, "failed to load student")
	}
	if err := s.repo.Create(ctx, test); err != nil {
		return nil, internalError(err, "failed to create placement test")
	}
	return test, nil
}

// Get returns one placement test.
func (s *PlacementService) Get(ctx context.Context, id string) (*models.PlacementTest, error) {
	test, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "placement test")
	}
	return test, nil
}

// LinkStudents binds placement tests to students registered after the test was created.
func (s *PlacementService) LinkStudents(ctx context.Context) (int64, error) {
	linked, err := s.repo.LinkStudents(ctx)
	if err != nil {
		return 0, internalError(err, "failed to link placement tests")
	}
	if linked > 0 {
		s.logger.Info("placement tests linked to students", zap.Int64("linked", linked))
	}
	return linked, nil
}

// HandleLMSResult records LMS scores on the matching pending test and tries to consolidate
// it. It never returns an error: failures are reported in the response body.
func (s *PlacementService) HandleLMSResult(ctx context.Context, payload LMSResultPayload) LMSResultResponse {
	if !s.tokenMatches(payload.Token) {
		s.metrics.RecordWebhook("unauthorized")
		s.logger.Warn("lms webhook rejected: invalid token", zap.String("student_code", payload.StudentCode))
		return LMSResultResponse{Status: "error", Message: "Token de autenticación inválido"}
	}
	if err := s.validator.Struct(payload); err != nil {
		s.metrics.RecordWebhook("invalid")
		return LMSResultResponse{Status: "error", Message: "Datos incompletos: se requiere student_code"}
	}
	for _, score := range []decimal.Decimal{payload.LMSScore, payload.GrammarScore, payload.ListeningScore, payload.ReadingScore} {
		if score.IsNegative() {
			s.metrics.RecordWebhook("invalid")
			return LMSResultResponse{Status: "error", Message: "Los puntajes no pueden ser negativos"}
		}
	}

	var test *models.PlacementTest
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		test, err = s.repo.LockPendingByStudentCode(ctx, payload.StudentCode)
		if err != nil {
			return err
		}
		scores := models.LMSScores{
			LMS:       payload.LMSScore,
			Grammar:   payload.GrammarScore,
			Listening: payload.ListeningScore,
			Reading:   payload.ReadingScore,
		}
		if err := s.repo.RecordLMSScores(ctx, test.ID, scores); err != nil {
			return err
		}
		test.LMSScore = payload.LMSScore
		test.State = models.PlacementPendingDecision
		return nil
	})
	if errors.Is(err, sql.ErrNoRows) {
		s.metrics.RecordWebhook("not_found")
		return LMSResultResponse{Status: "error", Message: "No existe una prueba de ubicación pendiente para el estudiante " + payload.StudentCode}
	}
	if err != nil {
		s.metrics.RecordWebhook("error")
		s.logger.Error("lms webhook failed", zap.String("student_code", payload.StudentCode), zap.Error(err))
		return LMSResultResponse{Status: "error", Message: "No fue posible registrar el resultado"}
	}

	resp := LMSResultResponse{Status: "success", Message: "Resultado registrado", PlacementID: test.ID, State: test.State}
	if test.OralScore.Valid {
		consolidated, err := s.Consolidate(ctx, test.ID)
		if err != nil {
			s.logger.Warn("placement auto-consolidation failed", zap.String("placement_id", test.ID), zap.Error(err))
		} else {
			resp.State = consolidated.State
			resp.RecommendedUnit = consolidated.RecommendedUnit
		}
	}
	s.metrics.RecordWebhook("success")
	return resp
}

// Consolidate computes the final score as the mean of oral and LMS scores, recommends a
// starting unit and assigns the next advisor of the rotation.
func (s *PlacementService) Consolidate(ctx context.Context, id string) (*models.PlacementTest, error) {
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		test, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return lookupError(err, "placement test")
		}
		if test.State != models.PlacementPendingDecision {
			return appErrors.Clone(appErrors.ErrInvalidTransition,
				fmt.Sprintf("placement test is %s", test.State))
		}
		if !test.OralScore.Valid {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, "oral score missing")
		}
		advisor, err := s.nextAdvisor(ctx)
		if err != nil {
			return err
		}
		final := test.OralScore.Decimal.Add(test.LMSScore).Div(decimal.NewFromInt(2)).Round(2)
		decision := models.PlacementDecision{
			FinalScore:      final,
			RecommendedUnit: RecommendedUnit(final, s.config.MaxUnit),
			Advisor:         advisor,
		}
		if err := s.repo.Consolidate(ctx, id, decision); err != nil {
			return internalError(err, "failed to consolidate placement test")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *PlacementService) nextAdvisor(ctx context.Context) (string, error) {
	if len(s.config.Advisors) == 0 {
		return "", nil
	}
	position, err := s.cursors.Next(ctx, AdvisorQueue)
	if err != nil {
		return "", internalError(err, "failed to advance advisor cursor")
	}
	n := int64(len(s.config.Advisors))
	return s.config.Advisors[((position-1)%n+n)%n], nil
}

func (s *PlacementService) tokenMatches(token string) bool {
	if s.config.WebhookToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.config.WebhookToken)) == 1
}

// RecommendedUnit maps a 0-100 score onto [1, maxUnit].
func RecommendedUnit(score decimal.Decimal, maxUnit int) int {
	unit := score.Div(decimal.NewFromInt(100)).Mul(decimal.NewFromInt(int64(maxUnit))).Ceil().IntPart()
	if unit < 1 {
		return 1
	}
	if unit > int64(maxUnit) {
		return maxUnit
	}
	return int(unit)
}
