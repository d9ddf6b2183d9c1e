package middleware

import (
	"slices"

	"github.com/gofiber/fiber/v2"
)

// SameOriginConfig configures SameOrigin.
type SameOriginConfig struct {
	// AllowedValues lists the accepted Sec-Fetch-Site values.
	// Default: same-origin and none (direct navigation).
	AllowedValues []string

	// Methods lists the methods that are checked.
	// Default: POST, PUT, DELETE, PATCH.
	Methods []string

	// AllowMissing lets requests without Sec-Fetch-Site through. Browsers
	// from before 2020 and non-browser clients do not send it.
	AllowMissing bool

	// Next skips the check when it returns true.
	Next func(c *fiber.Ctx) bool
}

// DefaultSameOriginConfig returns the default configuration.
func DefaultSameOriginConfig() SameOriginConfig {
	return SameOriginConfig{
		AllowedValues: []string{"same-origin", "none"},
		Methods:       []string{fiber.MethodPost, fiber.MethodPut, fiber.MethodDelete, fiber.MethodPatch},
	}
}

// SameOrigin rejects state-changing requests whose Sec-Fetch-Site header
// shows they were issued by another site. Rejections are returned as 403
// errors, so an "@error/403" route renders them.
func SameOrigin(config ...SameOriginConfig) fiber.Handler {
	cfg := DefaultSameOriginConfig()
	if len(config) > 0 {
		cfg = config[0]
		if cfg.AllowedValues == nil {
			cfg.AllowedValues = DefaultSameOriginConfig().AllowedValues
		}
		if cfg.Methods == nil {
			cfg.Methods = DefaultSameOriginConfig().Methods
		}
	}

	return func(c *fiber.Ctx) error {
		if cfg.Next != nil && cfg.Next(c) {
			return c.Next()
		}
		if !slices.Contains(cfg.Methods, c.Method()) {
			return c.Next()
		}

		site := c.Get("Sec-Fetch-Site")
		if site == "" {
			if cfg.AllowMissing {
				return c.Next()
			}
			return fiber.NewError(fiber.StatusForbidden, "browser requests only")
		}
		if !slices.Contains(cfg.AllowedValues, site) {
			return fiber.NewError(fiber.StatusForbidden, "cross-site request blocked")
		}
		return c.Next()
	}
}
