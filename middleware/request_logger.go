package middleware

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RequestLogger logs one line per request. Requests under a skipped prefix
// (health checks, metrics scrapes) are not logged.
func RequestLogger(logger Logger, skip ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := c.Path()
		if IsExcludedPath(path, skip) {
			return err
		}

		status := c.Response().StatusCode()
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		args := []any{
			"method", c.Method(),
			"path", path,
			"route", c.Route().Name,
			"status", status,
			"duration", time.Since(start),
			"ip", c.IP(),
		}
		if id := GetRequestID(c); id != "" {
			args = append(args, "request_id", id)
		}

		switch {
		case status >= fiber.StatusInternalServerError:
			logger.Error("http request", args...)
		case status >= fiber.StatusBadRequest:
			logger.Warn("http request", args...)
		default:
			logger.Info("http request", args...)
		}
		return err
	}
}
