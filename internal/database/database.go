// Package database wires the embedded SQLite store behind Bun.
//
// The pipeline runs as a single process with one connection; SQLite in WAL
// mode with a busy timeout gives the two long-lived workers (sync and
// processor) write-serialized transactions without a server dependency.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"go.uber.org/fx"

	"github.com/engagic/engagic/internal/config"
	"github.com/engagic/engagic/pkg/logger"
)

var Module = fx.Module("database",
	fx.Provide(
		NewBunDB,
		fx.Annotate(
			func(db *bun.DB) bun.IDB { return db },
			fx.As(new(bun.IDB)),
		),
	),
)

// NewBunDB opens the embedded database at {DataDir}/engagic.db
func NewBunDB(lc fx.Lifecycle, cfg *config.Config, log *slog.Logger) (*bun.DB, error) {
	log = log.With(logger.Scope("database"))

	db, err := Open(cfg.DataDir, log)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info("closing database")
			return db.Close()
		},
	})

	return db, nil
}

// Open opens (creating if necessary) the SQLite database under dataDir.
// Callers outside the fx lifecycle (one-shot CLI commands) use this directly
// and own the Close.
func Open(dataDir string, log *slog.Logger) (*bun.DB, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	path := filepath.Join(dataDir, "engagic.db")
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)

	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// One writer at a time keeps SQLite happy under WAL
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Info("database opened", slog.String("path", path))
	return db, nil
}

// CreateTables creates all pipeline tables if they do not exist yet.
// Models register themselves via Register at package init time.
func CreateTables(ctx context.Context, db *bun.DB) error {
	for _, model := range registeredModels {
		if _, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}
	return nil
}

var registeredModels []any

// Register adds a model to the schema bootstrap list. Call from init().
func Register(model any) {
	registeredModels = append(registeredModels, model)
}
