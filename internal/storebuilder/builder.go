// Package storebuilder opens the store.Store selected by configuration.
package storebuilder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/park285/tictac-server/internal/config"
	"github.com/park285/tictac-server/internal/store"
	"github.com/park285/tictac-server/internal/store/memstore"
	"github.com/park285/tictac-server/internal/store/redisstore"
	"github.com/park285/tictac-server/internal/store/sqlstore"
)

func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (store.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.StoreBackend {
	case config.BackendMemory:
		logger.Warn("store_memory", zap.String("note", "accounts and history are lost on restart"))
		return memstore.New(), nil

	case config.BackendSQLite:
		if dir := filepath.Dir(cfg.SQLitePath); cfg.SQLitePath != ":memory:" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
		s, err := sqlstore.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("init sqlite store: %w", err)
		}
		logger.Info("store_sqlite", zap.String("path", cfg.SQLitePath))
		return s, nil

	case config.BackendPostgres:
		s, err := sqlstore.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
		logger.Info("store_postgres")
		return s, nil

	case config.BackendRedis:
		s, err := redisstore.Open(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("init redis store: %w", err)
		}
		logger.Info("store_redis")
		return s, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
