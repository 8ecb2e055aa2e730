// Package postgres is a labeled-example source backed by the tweets table.
package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/tern/v2/migrate"

	"github.com/crimson-sun/tonal/internal/metrics"
	"github.com/crimson-sun/tonal/internal/model"
	"github.com/crimson-sun/tonal/internal/source"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const (
	// migrationLockID is a PostgreSQL advisory lock ID for coordinating migrations.
	// Value: 0x746f6e616c ("tonal" in ASCII hex)
	migrationLockID             = 0x746f6e616c
	migrationLockReleaseTimeout = 5 * time.Second
)

func init() {
	source.Register("postgres", func(ctx context.Context, cfg source.Config) (source.Source, error) {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("postgres source: database URL is required")
		}
		pool, err := Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := RunMigrationsWithLock(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return New(pool), nil
	})
}

// Source reads and records tweets in Postgres.
type Source struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Source {
	return &Source{pool: pool}
}

// Close releases the connection pool.
func (s *Source) Close() error {
	s.pool.Close()
	return nil
}

// Ping reports whether the database is reachable.
func (s *Source) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Source) ListExamples(ctx context.Context) ([]model.LabeledExample, error) {
	defer observe("list_examples", time.Now())
	rows, err := s.pool.Query(ctx, `SELECT text, positive, negative, created_at FROM tweets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("postgres source: list examples: %w", err)
	}
	return collect(rows)
}

// List returns stored tweets, newest first.
func (s *Source) List(ctx context.Context, limit int) ([]model.LabeledExample, error) {
	defer observe("list", time.Now())
	query := `SELECT text, positive, negative, created_at FROM tweets ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres source: list: %w", err)
	}
	return collect(rows)
}

// Insert stores examples in one batch. A zero CreatedAt defaults to NOW().
func (s *Source) Insert(ctx context.Context, examples []model.LabeledExample) error {
	if len(examples) == 0 {
		return nil
	}
	defer observe("insert", time.Now())

	batch := &pgx.Batch{}
	for _, ex := range examples {
		var createdAt *time.Time
		if !ex.CreatedAt.IsZero() {
			at := ex.CreatedAt
			createdAt = &at
		}
		batch.Queue(
			`INSERT INTO tweets (text, positive, negative, created_at) VALUES ($1, $2, $3, COALESCE($4, NOW()))`,
			ex.Text, ex.Positive, ex.Negative, createdAt,
		)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("postgres source: insert %d examples: %w", len(examples), err)
	}
	return nil
}

func collect(rows pgx.Rows) ([]model.LabeledExample, error) {
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.LabeledExample, error) {
		var ex model.LabeledExample
		err := row.Scan(&ex.Text, &ex.Positive, &ex.Negative, &ex.CreatedAt)
		return ex, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres source: scan: %w", err)
	}
	return out, nil
}

func observe(query string, start time.Time) {
	metrics.SourceQueryDuration.WithLabelValues(query).Observe(time.Since(start).Seconds())
}

// Connect opens and pings a pgx connection pool.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	slog.Info("database SSL mode", "sslmode", extractSSLMode(databaseURL))

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("database connected", "min_conns", poolCfg.MinConns, "max_conns", poolCfg.MaxConns)
	return pool, nil
}

func extractSSLMode(databaseURL string) string {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "unknown"
	}
	mode := strings.ToLower(u.Query().Get("sslmode"))
	if mode == "" {
		return "prefer (default)"
	}
	return mode
}

// RunMigrationsWithLock applies the embedded schema under an advisory lock so
// concurrently starting processes migrate once.
func RunMigrationsWithLock(ctx context.Context, pool *pgxpool.Pool) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection for migration: %w", err)
	}
	defer conn.Release()

	release, err := migrationLock(ctx, conn.Conn(), migrationLockReleaseTimeout)
	if err != nil {
		return err
	}
	defer release()

	slog.Info("running database migrations")
	return runMigrations(ctx, conn.Conn())
}

func runMigrations(ctx context.Context, conn *pgx.Conn) error {
	migrationFS, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	migrator, err := migrate.NewMigrator(ctx, conn, "public.tonal_schema_version")
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	if err := migrator.LoadMigrations(migrationFS); err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	if current, err := migrator.GetCurrentVersion(ctx); err != nil {
		slog.Debug("could not get current DB version (likely fresh DB)", "error", err)
	} else {
		slog.Info("current DB version", "version", current)
	}

	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func migrationLock(ctx context.Context, conn *pgx.Conn, releaseTimeout time.Duration) (release func(), err error) {
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLockID); err != nil {
		return func() {}, fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", migrationLockID); err != nil {
			slog.Error("failed to release migration lock", "error", err)
		}
	}, nil
}
