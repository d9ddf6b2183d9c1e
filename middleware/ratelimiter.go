package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/utils"
)

// RateLimiterConfig configures RateLimiter.
type RateLimiterConfig struct {
	Max      int
	Duration time.Duration
	Skip     func(*fiber.Ctx) bool
	Storage  fiber.Storage // nil keeps counters in memory
}

// RateLimiterOption modifies a RateLimiterConfig.
type RateLimiterOption func(*RateLimiterConfig)

// WithMax sets the number of requests allowed per window.
func WithMax(max int) RateLimiterOption {
	return func(cfg *RateLimiterConfig) { cfg.Max = max }
}

// WithDuration sets the window length.
func WithDuration(duration time.Duration) RateLimiterOption {
	return func(cfg *RateLimiterConfig) { cfg.Duration = duration }
}

// WithSkip exempts requests for which skip returns true.
func WithSkip(skip func(*fiber.Ctx) bool) RateLimiterOption {
	return func(cfg *RateLimiterConfig) { cfg.Skip = skip }
}

// WithStorage shares counters between instances.
func WithStorage(storage fiber.Storage) RateLimiterOption {
	return func(cfg *RateLimiterConfig) { cfg.Storage = storage }
}

// RateLimiter limits requests per client IP, 50 per second by default.
// Requests over the limit fail with fiber.ErrTooManyRequests, which an
// "@error/429" route can render.
//
//	RateLimiter(WithMax(100), WithDuration(time.Minute))
func RateLimiter(options ...RateLimiterOption) fiber.Handler {
	cfg := RateLimiterConfig{
		Max:      50,
		Duration: time.Second,
	}
	for _, option := range options {
		option(&cfg)
	}
	if cfg.Max <= 0 {
		cfg.Max = 50
	}
	if cfg.Duration <= 0 {
		cfg.Duration = time.Second
	}

	retryAfter := strconv.Itoa(max(1, int(cfg.Duration.Round(time.Second).Seconds())))
	return limiter.New(limiter.Config{
		Max:        cfg.Max,
		Expiration: cfg.Duration,
		Storage:    cfg.Storage,
		KeyGenerator: func(c *fiber.Ctx) string {
			// the IP string points into the pooled request buffer
			return utils.CopyString(c.IP())
		},
		LimitReached: func(c *fiber.Ctx) error {
			c.Set(fiber.HeaderRetryAfter, retryAfter)
			c.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Max))
			c.Set("X-RateLimit-Remaining", "0")
			return fiber.ErrTooManyRequests
		},
		Next: func(c *fiber.Ctx) bool {
			return cfg.Skip != nil && cfg.Skip(c)
		},
	})
}
