package persistence

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

// Schema names one service's migration set under migrations/.
type Schema string

const (
	SchemaIdentity Schema = "identity"
	SchemaContent  Schema = "content"
	SchemaMedia    Schema = "media"
)

//go:embed migrations/*/*.sql
var embedded embed.FS

// RunMigrations applies the embedded goose migrations for schema. Each
// schema keeps its own version table so services may share a database.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, schema Schema, logger *zap.Logger) error {
	if pool == nil {
		logger.Warn("no postgres pool available; skipping migrations")
		return nil
	}

	migrations, err := fs.Sub(embedded, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrations)
	goose.SetTableName(fmt.Sprintf("goose_%s_version", schema))
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, string(schema)); err != nil {
		return fmt.Errorf("apply %s migrations: %w", schema, err)
	}

	logger.Info("migrations applied", zap.String("schema", string(schema)))
	return nil
}
