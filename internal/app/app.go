// Package app assembles repositories, services and handlers from configuration. The API
// server and the maintenance CLI build the same graph so both run identical business rules.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/benglish/academic-core/internal/handler"
	"github.com/benglish/academic-core/internal/repository"
	"github.com/benglish/academic-core/internal/service"
	"github.com/benglish/academic-core/migrations"
	"github.com/benglish/academic-core/pkg/config"
	"github.com/benglish/academic-core/pkg/database"
	"github.com/benglish/academic-core/pkg/jobs"
	"github.com/benglish/academic-core/pkg/migration"
	"github.com/benglish/academic-core/pkg/storage"
)

const cacheNamespace = "academic"

// Repositories groups the SQL stores.
type Repositories struct {
	Catalog       *repository.CatalogRepository
	Cursors       *repository.CursorRepository
	Enrollments   *repository.EnrollmentRepository
	ExternalIDs   *repository.ExternalIDRepository
	History       *repository.HistoryRepository
	Notifications *repository.NotificationRepository
	Placements    *repository.PlacementRepository
	Plans         *repository.PlanRepository
	Sessions      *repository.SessionRepository
	Students      *repository.StudentRepository
	Teachers      *repository.TeacherRepository
}

// Services groups the business services.
type Services struct {
	Auth        *service.AuthService
	Metrics     *service.MetricsService
	Cache       *service.CacheService
	Catalog     *service.CatalogService
	History     *service.HistoryService
	Progress    *service.ProgressService
	Plans       *service.PlanService
	Enrollments *service.EnrollmentService
	Sessions    *service.SessionService
	Agenda      *service.AgendaService
	Placement   *service.PlacementService
	Exports     *service.ExportService
	Seed        *service.SeedService
	Repair      *service.RepairService
}

// App is the assembled dependency graph.
type App struct {
	Config       *config.Config
	DB           *sqlx.DB
	Logger       *zap.Logger
	Repositories Repositories
	Services     Services
}

// New wires every repository and service. redisClient may be nil, in which case caching
// degrades to misses.
func New(cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := validator.New()
	tx := database.NewTransactor(db, cfg.Database.LockTimeout)

	exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("init export storage: %w", err)
	}
	attachmentStore, err := storage.NewLocalStorage(cfg.Attachments.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("init attachment storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

	repos := Repositories{
		Catalog:       repository.NewCatalogRepository(db),
		Cursors:       repository.NewCursorRepository(db),
		Enrollments:   repository.NewEnrollmentRepository(db),
		ExternalIDs:   repository.NewExternalIDRepository(db),
		History:       repository.NewHistoryRepository(db),
		Notifications: repository.NewNotificationRepository(db),
		Placements:    repository.NewPlacementRepository(db),
		Plans:         repository.NewPlanRepository(db),
		Sessions:      repository.NewSessionRepository(db),
		Students:      repository.NewStudentRepository(db),
		Teachers:      repository.NewTeacherRepository(db),
	}

	var svcs Services
	svcs.Auth = service.NewAuthService(service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		Issuer:            cfg.JWT.Issuer,
	})
	svcs.Metrics = service.NewMetricsService()
	cacheRepo := repository.NewCacheRepository(redisClient, cacheNamespace, logger)
	svcs.Cache = service.NewCacheService(cacheRepo, svcs.Metrics, cfg.Agenda.CacheTTL, logger, cfg.Agenda.CacheEnabled && redisClient != nil)

	svcs.Catalog = service.NewCatalogService(repos.Catalog, tx, validate, logger)
	svcs.Progress = service.NewProgressService(repos.Students, repos.History, repos.Enrollments, repos.Plans, svcs.Catalog, svcs.Cache, svcs.Metrics, tx, logger)
	svcs.History = service.NewHistoryService(repos.History, repos.Students, svcs.Catalog, svcs.Progress, tx, validate, logger)
	svcs.Plans = service.NewPlanService(repos.Plans, repos.Enrollments, svcs.Progress, tx, validate, logger)
	svcs.Enrollments = service.NewEnrollmentService(repos.Enrollments, repos.Students, repos.Plans, svcs.Progress, tx, validate, logger)

	retry := database.DefaultRetryPolicy
	if cfg.Database.RetryAttempts > 0 {
		retry = database.RetryPolicy{Attempts: cfg.Database.RetryAttempts, Backoff: cfg.Database.RetryBackoff}
	}
	svcs.Sessions = service.NewSessionService(
		repos.Sessions, repos.Teachers, repos.Students, repos.Enrollments,
		svcs.Catalog, svcs.History, attachmentStore, svcs.Cache, svcs.Metrics, tx,
		service.SessionConfig{Retry: retry, MaxAttachmentBytes: cfg.Attachments.MaxFileSizeBytes},
		validate, logger,
	)
	svcs.Agenda = service.NewAgendaService(repos.Sessions, repos.Students, svcs.Catalog, svcs.History, repos.Notifications, svcs.Cache, cfg.Agenda.DefaultWindow, logger)
	svcs.Placement = service.NewPlacementService(repos.Placements, repos.Cursors, repos.Students, svcs.Metrics, tx,
		service.PlacementConfig{
			WebhookToken: cfg.Placement.WebhookToken,
			Advisors:     cfg.Placement.Advisors,
			MaxUnit:      cfg.Placement.MaxUnit,
		}, validate, logger)
	svcs.Exports = service.NewExportService(svcs.History, repos.Students, repos.Teachers, svcs.Catalog, exportStore, signer,
		service.ExportConfig{APIPrefix: cfg.APIPrefix, ResultTTL: cfg.Exports.SignedURLTTL}, logger)
	svcs.Seed = service.NewSeedService(repos.Catalog, svcs.Catalog, repos.ExternalIDs, tx, logger)
	svcs.Repair = service.NewRepairService(service.RepairDeps{
		Catalog:     repos.Catalog,
		Checker:     svcs.Catalog,
		Students:    repos.Students,
		Progress:    svcs.Progress,
		Enrollments: repos.Enrollments,
		History:     repos.History,
		Seats:       repos.Sessions,
		Sessions:    svcs.Sessions,
		Plans:       svcs.Plans,
	}, tx, svcs.Metrics, logger)

	return &App{Config: cfg, DB: db, Logger: logger, Repositories: repos, Services: svcs}, nil
}

// MaintenanceQueue builds the background queue and the worker that runs repair tasks on it.
// The caller starts and stops the queue.
func (a *App) MaintenanceQueue() (*jobs.Queue, *service.MaintenanceWorker) {
	queue := jobs.NewQueue("maintenance", jobs.QueueConfig{
		Workers:    a.Config.Maintenance.Workers,
		MaxRetries: 1,
		RetryDelay: 30 * time.Second,
		Logger:     a.Logger,
	})
	worker := service.NewMaintenanceWorker(a.Services.Repair, queue, a.Services.Exports, a.Config.Maintenance.BatchSize, a.Logger)
	return queue, worker
}

// Handlers builds the HTTP handlers. maintenance may be nil when no worker runs.
func (a *App) Handlers(maintenance *service.MaintenanceWorker) handler.Handlers {
	h := handler.Handlers{
		Agenda:      handler.NewAgendaHandler(a.Services.Agenda),
		Sessions:    handler.NewSessionHandler(a.Services.Sessions),
		Enrollments: handler.NewEnrollmentHandler(a.Services.Enrollments),
		Progress:    handler.NewProgressHandler(a.Services.Progress),
		History:     handler.NewHistoryHandler(a.Services.History, a.Services.Exports),
		Plans:       handler.NewPlanHandler(a.Services.Plans),
		Catalog:     handler.NewCatalogHandler(a.Services.Catalog),
		Placement:   handler.NewPlacementHandler(a.Services.Placement),
	}
	if maintenance != nil {
		h.Maintenance = handler.NewMaintenanceHandler(maintenance)
	}
	return h
}

// Migrator returns a migrator over the embedded SQL files with the data backfills attached.
func (a *App) Migrator() (*migration.Migrator, error) {
	return migration.New(a.DB, migrations.FS, migrations.Dir, a.PostMigrateHooks(), a.Logger)
}

// PostMigrateHooks binds each schema version to the data backfill that follows it.
func (a *App) PostMigrateHooks() []migration.PostHook {
	run := func(tasks ...string) func(ctx context.Context) error {
		return func(ctx context.Context) error {
			for _, task := range tasks {
				opts := service.RepairOptions{BatchSize: a.Config.Maintenance.BatchSize}
				if _, err := a.Services.Repair.Run(ctx, task, opts); err != nil {
					return err
				}
			}
			return nil
		}
	}
	return []migration.PostHook{
		{Version: 1, Name: "000001_subject_programs", Run: run(service.TaskFixSubjectProgramIDs)},
		{Version: 2, Name: "000002_plan_subjects", Run: run(service.TaskReconcilePlans)},
		{Version: 3, Name: "000003_enrollment_progress", Run: run(service.TaskBackfillEnrollmentProgress)},
		{Version: 4, Name: "000004_session_tracking", Run: run(service.TaskNullZeroGrades, service.TaskRebuildSessionTracking)},
		{Version: 5, Name: "000005_placement_students", Run: func(ctx context.Context) error {
			_, err := a.Services.Placement.LinkStudents(ctx)
			return err
		}},
	}
}
