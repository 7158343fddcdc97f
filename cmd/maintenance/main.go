// Command maintenance runs the idempotent repair tasks, catalog seeding and schema migrations
// against one database. Every task can be interrupted and started again.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/benglish/academic-core/internal/app"
	"github.com/benglish/academic-core/internal/service"
	"github.com/benglish/academic-core/pkg/config"
	"github.com/benglish/academic-core/pkg/database"
	"github.com/benglish/academic-core/pkg/logger"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	inv, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, err)
		return 2
	}

	if inv.Kind == cmdTasks {
		for _, task := range repairTasks() {
			fmt.Fprintln(stdout, task)
		}
		return 0
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		return 1
	}
	if inv.Database != "" {
		cfg.Database.Name = inv.Database
	}
	if inv.Batch > 0 {
		cfg.Maintenance.BatchSize = inv.Batch
	}

	logr, err := logger.New(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "failed to init logger: %v\n", err)
		return 1
	}
	defer logr.Sync() //nolint:errcheck

	if inv.Kind == cmdToken {
		auth := service.NewAuthService(service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})
		token, expires, err := auth.IssueServiceToken(inv.UserID)
		if err != nil {
			logr.Error("failed to issue token", zap.Error(err))
			return 1
		}
		return emit(stdout, inv.JSON, map[string]interface{}{"token": token, "expires_at": expires}, token)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Error("failed to connect database", zap.String("database", cfg.Database.Name), zap.Error(err))
		return 1
	}
	defer db.Close() //nolint:errcheck

	application, err := app.New(cfg, db, nil, logr)
	if err != nil {
		logr.Error("failed to assemble application", zap.Error(err))
		return 1
	}

	logr.Info("maintenance started",
		zap.String("command", inv.Kind),
		zap.String("task", inv.Task),
		zap.String("database", cfg.Database.Name))

	switch inv.Kind {
	case cmdMigrate:
		return runMigrate(ctx, application, inv, stdout)
	case cmdSeed:
		return runSeed(ctx, application, inv, stdout)
	default:
		return runRepair(ctx, application, inv, stdout)
	}
}

func runRepair(ctx context.Context, a *app.App, inv invocation, stdout io.Writer) int {
	tasks := []string{inv.Task}
	if inv.Task == service.JobNightlySuite {
		tasks = service.NightlySuite
	}
	opts := service.RepairOptions{BatchSize: a.Config.Maintenance.BatchSize, Revert: inv.Revert}

	results := make([]service.RepairResult, 0, len(tasks))
	for _, task := range tasks {
		result, err := a.Services.Repair.Run(ctx, task, opts)
		if err != nil {
			a.Logger.Error("maintenance task failed", zap.String("task", task), zap.Error(err))
			return 1
		}
		results = append(results, result)
		if result.Report != nil && !result.Report.OK() {
			emit(stdout, inv.JSON, results, summarize(results))
			return 3
		}
	}
	return emit(stdout, inv.JSON, results, summarize(results))
}

func summarize(results []service.RepairResult) string {
	out := ""
	for i, r := range results {
		if i > 0 {
			out += "\n"
		}
		out += fmt.Sprintf("%s: %d affected in %s", r.Task, r.Affected, r.Duration.Round(time.Millisecond))
		if r.Report != nil {
			out += fmt.Sprintf(" (%d subjects, %d mismatches, %d problems)", r.Report.Subjects, len(r.Report.Mismatches), len(r.Report.Problems))
		}
	}
	return out
}

func runSeed(ctx context.Context, a *app.App, inv invocation, stdout io.Writer) int {
	f, err := os.Open(inv.SeedFile)
	if err != nil {
		a.Logger.Error("failed to open seed file", zap.String("file", inv.SeedFile), zap.Error(err))
		return 1
	}
	defer f.Close()

	doc, err := service.ParseSeed(f)
	if err != nil {
		a.Logger.Error("invalid seed file", zap.String("file", inv.SeedFile), zap.Error(err))
		return 1
	}
	report, err := a.Services.Seed.Load(ctx, doc)
	if err != nil {
		a.Logger.Error("seed failed", zap.Error(err))
		return 1
	}
	return emit(stdout, inv.JSON, report,
		fmt.Sprintf("created %d, updated %d, skipped %d", report.Created, report.Updated, report.Skipped))
}

func runMigrate(ctx context.Context, a *app.App, inv invocation, stdout io.Writer) int {
	migrator, err := a.Migrator()
	if err != nil {
		a.Logger.Error("failed to init migrations", zap.Error(err))
		return 1
	}
	defer migrator.Close() //nolint:errcheck

	switch inv.Migrate {
	case "up":
		err = migrator.Up(ctx)
	case "down":
		err = migrator.Down(ctx, inv.Steps)
	}
	if err != nil {
		a.Logger.Error("migration failed", zap.String("action", inv.Migrate), zap.Error(err))
		return 1
	}

	version, dirty, err := migrator.Version()
	if err != nil {
		a.Logger.Error("failed to read schema version", zap.Error(err))
		return 1
	}
	return emit(stdout, inv.JSON, map[string]interface{}{"version": version, "dirty": dirty},
		fmt.Sprintf("schema version %d (dirty=%t)", version, dirty))
}

// emit prints value as JSON or text and returns the exit code.
func emit(w io.Writer, asJSON bool, value interface{}, text string) int {
	if !asJSON {
		fmt.Fprintln(w, text)
		return 0
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(value); err != nil {
		return 1
	}
	return 0
}
