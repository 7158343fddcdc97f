// Package migration applies the numbered schema migrations and their data backfills.
//
// Every migration version has two steps. The pre-migrate step is the SQL file pair
// embedded in the migrations package and applied by golang-migrate. The optional
// post-migrate step is a Go hook registered for the same version; hooks run after the
// schema reaches their version and are recorded in schema_post_migrations so a hook
// runs at most once per database.
package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"sort"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// PostHook is a data backfill tied to a schema version. Hooks must be idempotent.
type PostHook struct {
	Version uint
	Name    string
	Run     func(ctx context.Context) error
}

// Migrator wraps golang-migrate with post-migrate hooks.
type Migrator struct {
	migrate *migrate.Migrate
	db      *sqlx.DB
	hooks   []PostHook
	logger  *zap.Logger
}

// New builds a Migrator reading SQL files from source (rooted at dir).
func New(db *sqlx.DB, source fs.FS, dir string, hooks []PostHook, logger *zap.Logger) (*Migrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	src, err := iofs.New(source, dir)
	if err != nil {
		return nil, fmt.Errorf("open migration source: %w", err)
	}
	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("create postgres driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}

	sorted := append([]PostHook(nil), hooks...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })

	return &Migrator{migrate: m, db: db, hooks: sorted, logger: logger}, nil
}

// Up applies pending schema migrations and then any post-migrate hooks not yet recorded.
func (m *Migrator) Up(ctx context.Context) error {
	m.logger.Info("running migrations up")

	err := m.migrate.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		m.logger.Info("schema already up to date")
	case err != nil:
		return fmt.Errorf("migration up failed: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	if dirty {
		return fmt.Errorf("schema version %d is dirty", version)
	}
	m.logger.Info("schema migrated", zap.Uint("version", version))

	return RunHooks(ctx, m.db, m.hooks, version, m.logger)
}

// Down rolls back n schema versions. Post-migrate records above the new version are removed.
func (m *Migrator) Down(ctx context.Context, n int) error {
	if n <= 0 {
		return fmt.Errorf("steps must be positive")
	}
	m.logger.Info("running migrations down", zap.Int("steps", n))

	if err := m.migrate.Steps(-n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed: %w", err)
	}
	version, _, err := m.Version()
	if err != nil {
		return err
	}
	if version == 0 {
		return nil
	}
	if _, err := m.db.ExecContext(ctx, `DELETE FROM schema_post_migrations WHERE version > $1`, version); err != nil {
		return fmt.Errorf("prune post migrations: %w", err)
	}
	return nil
}

// Version returns the current schema version; zero means no migration applied.
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("get migration version: %w", err)
	}
	return version, dirty, nil
}

// Close releases the migration source and driver.
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()
	if sourceErr != nil {
		return fmt.Errorf("close source: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("close database: %w", dbErr)
	}
	return nil
}

// RunHooks executes hooks whose version is <= current and that are not yet recorded.
func RunHooks(ctx context.Context, db *sqlx.DB, hooks []PostHook, current uint, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, hook := range hooks {
		if hook.Version > current {
			continue
		}
		var applied bool
		err := db.GetContext(ctx, &applied, `SELECT EXISTS(SELECT 1 FROM schema_post_migrations WHERE name = $1)`, hook.Name)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check post migration %s: %w", hook.Name, err)
		}
		if applied {
			continue
		}

		logger.Info("running post migration", zap.String("name", hook.Name), zap.Uint("version", hook.Version))
		if err := hook.Run(ctx); err != nil {
			return fmt.Errorf("post migration %s: %w", hook.Name, err)
		}
		if _, err := db.ExecContext(ctx,
			`INSERT INTO schema_post_migrations (name, version) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`,
			hook.Name, hook.Version); err != nil {
			return fmt.Errorf("record post migration %s: %w", hook.Name, err)
		}
	}
	return nil
}
