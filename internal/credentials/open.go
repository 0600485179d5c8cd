package credentials

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"studio/internal/infra"
	"studio/internal/storage"
)

const redisPrefix = "studio"

// Open builds the Store for the backend selected in cfg. The returned close
// func releases any connection the backend holds and is never nil.
func Open(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) (*Store, func(), error) {
	noop := func() {}

	switch cfg.CredentialBackend {
	case infra.BackendMemory:
		return NewStore(NewMemorySlot()), noop, nil

	case infra.BackendFile:
		fs, err := storage.NewFileStore(cfg.CredentialDir)
		if err != nil {
			return nil, noop, fmt.Errorf("credentials: open file store: %w", err)
		}
		logger.Info().Str("dir", fs.BasePath()).Msg("file credential backend")
		return NewStore(NewFileSlot(fs)), noop, nil

	case infra.BackendPostgres:
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return nil, noop, err
		}
		slot := NewPostgresSlot(infra.NewSQLRunner(pool, logger))
		if err := slot.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, noop, fmt.Errorf("credentials: ensure schema: %w", err)
		}
		return NewStore(slot), pool.Close, nil

	case infra.BackendRedis:
		rdb, err := infra.NewRedisClient(ctx, cfg)
		if err != nil {
			return nil, noop, err
		}
		return NewStore(NewRedisSlot(rdb, redisPrefix)), func() { _ = rdb.Close() }, nil
	}

	return nil, noop, fmt.Errorf("credentials: unsupported backend %q", cfg.CredentialBackend)
}
