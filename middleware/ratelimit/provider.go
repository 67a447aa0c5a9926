package ratelimit

import (
	"context"
	"fmt"
	"io"

	"github.com/hapogroup/newsletter/config"
	"github.com/hapogroup/newsletter/services/logging"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewStore picks the counter backend named by RATE_LIMIT_STORE.
func NewStore(cfg *config.Config) (Store, error) {
	switch cfg.RateLimit.Store {
	case "redis":
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		return NewRedisStore(redis.NewClient(opts)), nil
	case "memory", "":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported rate limit store: %s", cfg.RateLimit.Store)
	}
}

func ProvideRateLimitStore(lc fx.Lifecycle, cfg *config.Config, logger *logging.Service) (Store, error) {
	store, err := NewStore(cfg)
	if err != nil {
		return nil, err
	}

	logger.Info("rate limit store initialised",
		zap.String("store", cfg.RateLimit.Store),
		zap.Int("rate", cfg.RateLimit.Rate),
		zap.Duration("period", cfg.RateLimit.Period))

	if closer, ok := store.(io.Closer); ok {
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				return closer.Close()
			},
		})
	}

	return store, nil
}

var Module = fx.Options(
	fx.Provide(ProvideRateLimitStore),
)
