package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/quentinrf/smartband-edge/internal/adapters/memory"
	"github.com/quentinrf/smartband-edge/internal/adapters/postgres"
	"github.com/quentinrf/smartband-edge/internal/adapters/sqlite"
	"github.com/quentinrf/smartband-edge/internal/config"
	"github.com/quentinrf/smartband-edge/internal/database"
	"github.com/quentinrf/smartband-edge/internal/domain"
)

// store is a repository that can also be probed
type store interface {
	domain.ReadingRepository
	domain.Pinger
}

// openStore builds the repository selected by DATABASE_URL and bootstraps
// its schema. The returned pool is nil for the in-memory store.
func openStore(ctx context.Context, cfg *config.Config) (store, *database.DB, error) {
	switch cfg.Store {
	case config.StorePostgres:
		db, err := postgres.Open(ctx, cfg.DatabaseURL, cfg.Pool)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
		log.Info().
			Str("topology", string(cfg.Topology)).
			Int("max_open_conns", cfg.Pool.MaxOpenConns).
			Int("max_idle_conns", cfg.Pool.MaxIdleConns).
			Dur("conn_max_lifetime", cfg.Pool.ConnMaxLifetime).
			Msg("initialized PostgreSQL repository")
		return postgres.NewReadingRepository(db), db, nil

	case config.StoreSQLite:
		repo, db, err := sqlite.Open(ctx, cfg.SQLitePath, cfg.Pool)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("db_path", cfg.SQLitePath).Msg("initialized SQLite repository")
		return repo, db, nil

	case config.StoreMemory:
		log.Warn().Msg("initialized in-memory repository; readings are lost on restart")
		return memory.NewReadingRepository(), nil, nil

	default:
		return nil, nil, fmt.Errorf("unsupported store %q", cfg.Store)
	}
}
