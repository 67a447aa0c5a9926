package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/hapogroup/newsletter/config"
	"github.com/hapogroup/newsletter/services/logging"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type Config struct {
	Store          Store
	Rate           int
	Period         time.Duration
	CountMode      config.CountingMode
	KeyGenerator   func(c echo.Context) string
	OnLimitReached func(c echo.Context) error
	Logger         *logging.Service
}

// FromConfig builds a middleware config from the application settings.
// Requests sharing a scope share one window per client address.
func FromConfig(store Store, cfg *config.RateLimitConfig, scope string, logger *logging.Service) *Config {
	return &Config{
		Store:        store,
		Rate:         cfg.Rate,
		Period:       cfg.Period,
		CountMode:    cfg.CountMode,
		KeyGenerator: ScopedKeyGenerator(scope),
		Logger:       logger,
	}
}

func Middleware(cfg *Config) echo.MiddlewareFunc {
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}

	if cfg.Rate <= 0 {
		cfg.Rate = 10
	}

	if cfg.Period <= 0 {
		cfg.Period = time.Minute
	}

	if cfg.KeyGenerator == nil {
		cfg.KeyGenerator = DefaultKeyGenerator
	}

	if cfg.OnLimitReached == nil {
		cfg.OnLimitReached = DefaultOnLimitReached
	}

	if cfg.CountMode == "" {
		cfg.CountMode = config.CountAll
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			key := cfg.KeyGenerator(c)
			resetTime := time.Now().Add(cfg.Period)

			count, existingResetTime, exists, err := cfg.Store.Get(ctx, key)
			if err != nil {
				// A broken counter store must not take the public endpoints down.
				cfg.Logger.Warn("rate limit store unavailable, allowing request",
					zap.String("key", key), zap.Error(err))
				return next(c)
			}
			if exists {
				resetTime = existingResetTime
			}

			if count >= cfg.Rate {
				setHeaders(c, cfg.Rate, 0, resetTime)
				cfg.Logger.Info("rate limit exceeded",
					zap.String("key", key), zap.String("path", c.Path()))
				return cfg.OnLimitReached(c)
			}

			newCount := count + 1
			if cfg.CountMode == config.CountAll {
				if newCount, err = cfg.Store.Increment(ctx, key, resetTime); err != nil {
					cfg.Logger.Warn("failed to increment rate limit counter", zap.String("key", key), zap.Error(err))
				}
			} else if err := cfg.Store.Set(ctx, key, newCount, resetTime); err != nil {
				cfg.Logger.Warn("failed to reserve rate limit slot", zap.String("key", key), zap.Error(err))
			}

			setHeaders(c, cfg.Rate, max(cfg.Rate-newCount, 0), resetTime)

			err = next(c)

			if cfg.CountMode != config.CountAll {
				settle(c, cfg, key, count, resetTime, err)
			}

			return err
		}
	}
}

// settle turns the reserved slot into a counted hit or releases it,
// depending on how the request ended.
func settle(c echo.Context, cfg *Config, key string, previous int, resetTime time.Time, handlerErr error) {
	ctx := c.Request().Context()

	status := c.Response().Status
	if he, ok := handlerErr.(*echo.HTTPError); ok && !c.Response().Committed {
		status = he.Code
	}

	var shouldCount bool
	switch cfg.CountMode {
	case config.CountFailures:
		shouldCount = status >= 400
	case config.CountSuccess:
		shouldCount = status < 400
	}

	var err error
	switch {
	case shouldCount:
		err = cfg.Store.Set(ctx, key, previous+1, resetTime)
	case previous > 0:
		err = cfg.Store.Set(ctx, key, previous, resetTime)
	default:
		err = cfg.Store.Reset(ctx, key)
	}
	if err != nil {
		cfg.Logger.Warn("failed to settle rate limit counter", zap.String("key", key), zap.Error(err))
	}
}

func setHeaders(c echo.Context, limit, remaining int, resetTime time.Time) {
	h := c.Response().Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))
}

func DefaultKeyGenerator(c echo.Context) string {
	return "rate_limit:" + clientIP(c)
}

// ScopedKeyGenerator keeps separate windows per endpoint group.
func ScopedKeyGenerator(scope string) func(c echo.Context) string {
	if scope == "" {
		return DefaultKeyGenerator
	}
	return func(c echo.Context) string {
		return "rate_limit:" + scope + ":" + clientIP(c)
	}
}

func clientIP(c echo.Context) string {
	realIP := c.RealIP()
	if realIP == "" || realIP == "unknown" {
		return "fallback"
	}
	return realIP
}

func DefaultOnLimitReached(c echo.Context) error {
	return echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests, please try again later")
}
