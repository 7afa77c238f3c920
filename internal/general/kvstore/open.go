package kvstore

import (
	"context"
	"fmt"

	"pickup-market/internal/general/config"
	"pickup-market/internal/general/logger"
	"pickup-market/internal/general/postgres"
	"pickup-market/internal/general/redis"
	"pickup-market/internal/general/sqlite"
	"pickup-market/internal/ports"
)

// Open builds the store named by cfg.Cart.Store. owner scopes shared stores to one user.
// The returned closer releases the underlying connection.
func Open(ctx context.Context, cfg *config.Config, owner string, log *logger.Logger) (ports.KVStore, func(), error) {
	switch cfg.Cart.Store {
	case "memory":
		return NewMemory(), func() {}, nil

	case "sqlite":
		store, err := sqlite.Open(ctx, cfg.Cart.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		log.Info(ctx, "kvstore_opened", "Using device-local SQLite store", map[string]any{"path": cfg.Cart.SQLitePath})
		return store, func() { _ = store.Close() }, nil

	case "redis":
		rdb, err := redis.Connect(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		log.Info(ctx, "kvstore_opened", "Using Redis session store", map[string]any{
			"host": cfg.Redis.Host,
			"ttl":  cfg.Cart.SessionTTL.String(),
		})
		return redis.NewKVStore(rdb, owner, cfg.Cart.SessionTTL), func() { _ = rdb.Close() }, nil

	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg, log)
		if err != nil {
			return nil, nil, err
		}
		store, err := postgres.NewKVStore(ctx, pool, owner)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown cart store %q", cfg.Cart.Store)
	}
}
