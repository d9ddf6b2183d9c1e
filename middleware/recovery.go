package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gofiber/fiber/v2"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
)

// Recover turns a panicking renderer into a 500 handled by the application's
// error handler, so a "@error/500" route can answer it. The panic and its
// stack are written to logger.
func Recover(logger Logger) fiber.Handler {
	return fiberrecover.New(fiberrecover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e any) {
			logger.Error("panic recovered",
				"method", c.Method(),
				"path", c.Path(),
				"request_id", GetRequestID(c),
				"panic", fmt.Sprint(e),
				"stack", string(debug.Stack()),
			)
		},
	})
}
