package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/yanizio/bookshelf/internal/config"
	"github.com/yanizio/bookshelf/internal/database"
)

// Open builds the backend named by cfg.Driver.
func Open(ctx context.Context, cfg config.Store) (Backend, error) {
	var (
		b   Backend
		err error
	)
	switch cfg.Driver {
	case "memory":
		b = NewMemory()
	case "file":
		b, err = OpenFile(cfg.Path)
	case "mysql", "sqlite":
		db, derr := database.Open(ctx, cfg.Driver, cfg.DSN)
		if derr != nil {
			return nil, derr
		}
		b, err = NewSQL(ctx, db)
		if err != nil {
			_ = db.Close()
		}
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err = rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			break
		}
		b = NewRedis(rdb, cfg.Prefix, cfg.TTL)
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("store %s: %w", cfg.Driver, err)
	}

	zap.S().Infow("session store ready", "driver", cfg.Driver)
	return b, nil
}
