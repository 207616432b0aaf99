package progress

import (
	"context"

	"igrepost/pkg/config"
	"igrepost/pkg/logger"
)

// Backend names the store chosen at startup
type Backend string

const (
	BackendREST   Backend = "kv-rest"
	BackendRedis  Backend = "redis"
	BackendMemory Backend = "memory"
)

// SelectBackend decides which store to use from the server config. Both KV
// REST credentials must be present for the REST store.
func SelectBackend(cfg config.ServerConfig) Backend {
	switch {
	case cfg.KVRestURL != "" && cfg.KVRestToken != "":
		return BackendREST
	case cfg.RedisURL != "":
		return BackendRedis
	default:
		return BackendMemory
	}
}

// NewStore builds the store once for the lifetime of the server. Persistent
// backends are wrapped in a FallbackStore. An unreachable Redis at startup
// is logged and the server runs degraded until it comes back.
func NewStore(ctx context.Context, cfg config.ServerConfig, log logger.Logger) (Store, Backend, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	backend := SelectBackend(cfg)
	switch backend {
	case BackendREST:
		return NewFallbackStore(NewRESTStore(cfg.KVRestURL, cfg.KVRestToken, cfg.StoreKey), log), backend, nil

	case BackendRedis:
		rs, err := NewRedisStore(ctx, cfg.RedisURL, cfg.StoreKey)
		if rs == nil {
			return nil, backend, err
		}
		if err != nil {
			log.WithError(err).Warn("Redis unreachable at startup, serving from memory until it recovers")
		}
		return NewFallbackStore(rs, log), backend, nil

	default:
		return NewMemoryStore(), BackendMemory, nil
	}
}
