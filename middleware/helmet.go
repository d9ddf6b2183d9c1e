package middleware

import (
	"cmp"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
)

// HelmetConfig holds the security headers an application usually tunes.
// Zero values keep helmet's defaults.
type HelmetConfig struct {
	// ContentSecurityPolicy is sent as Content-Security-Policy when set.
	ContentSecurityPolicy string
	// ReferrerPolicy defaults to "same-origin".
	ReferrerPolicy string
	// HSTSMaxAge in seconds. Strict-Transport-Security is only sent on
	// HTTPS requests.
	HSTSMaxAge  int
	HSTSPreload bool
}

// Helmet sets the standard security headers on every response.
func Helmet(config ...HelmetConfig) fiber.Handler {
	var cfg HelmetConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	return helmet.New(helmet.Config{
		ContentSecurityPolicy: cfg.ContentSecurityPolicy,
		ReferrerPolicy:        cmp.Or(cfg.ReferrerPolicy, "same-origin"),
		HSTSMaxAge:            cfg.HSTSMaxAge,
		HSTSPreloadEnabled:    cfg.HSTSPreload,
	})
}
