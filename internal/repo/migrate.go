package repo

import (
	"context"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrations embed.FS

const migrationsDir = "migrations"

type gooseLogger struct{ s *zap.SugaredLogger }

func (g gooseLogger) Printf(format string, v ...interface{}) { g.s.Infof(format, v...) }
func (g gooseLogger) Fatalf(format string, v ...interface{}) { g.s.Fatalf(format, v...) }

// Migrate applies every pending migration.
func Migrate(ctx context.Context, pool *pgxpool.Pool, lg *zap.Logger) error {
	return RunMigrations(ctx, pool, lg, "up")
}

// RunMigrations runs a goose command (up, down, status, version, redo, reset)
// against the embedded migration set.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, lg *zap.Logger, command string, args ...string) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{s: lg.Named("goose").Sugar()})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.RunContext(ctx, command, db, migrationsDir, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}
