package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/enrollment-lottery/internal/config"
	"github.com/iliyamo/enrollment-lottery/internal/database"
	"github.com/iliyamo/enrollment-lottery/internal/repository"
	"github.com/iliyamo/enrollment-lottery/internal/repository/memstore"
)

// openStore returns the configured store.  db is nil for the in-memory
// store; otherwise the caller closes it.
func openStore(ctx context.Context, cfg config.Config) (repository.Store, *sqlx.DB, error) {
	if cfg.StoreDriver == config.StoreMemory {
		slog.Default().WarnContext(ctx, "using the in-memory store, data is lost on exit")
		return memstore.New(cfg.Retry), nil, nil
	}
	db, err := openDB(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return repository.NewMySQLStore(db, cfg.Retry), db, nil
}

func openDB(ctx context.Context, cfg config.Config) (*sqlx.DB, error) {
	db, err := database.Open(ctx, database.DSN(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName))
	if err != nil {
		return nil, fmt.Errorf("can't connect to mysql: %w", err)
	}
	return db, nil
}
