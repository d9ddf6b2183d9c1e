package conductor

import (
	"errors"
	"fmt"
	"html"
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

// Startup errors. Every one of them is fatal: callers are expected to abort
// the process rather than continue with a partially activated router.
// Match them with errors.Is; the returned errors carry the offending key or path.
var (
	ErrFileNotFound        = errors.New("file not found")
	ErrInvalidFormat       = errors.New("invalid file format")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrNotAFile            = errors.New("not a file")
	ErrParse               = errors.New("malformed JSON")
	ErrVersionMismatch     = errors.New("version mismatch")
	ErrInvalidRouteData    = errors.New("invalid route data")
	ErrMissingRenderTarget = errors.New("route needs a template or a renderer")
	ErrInvalidMethodList   = errors.New("methods must be a list")
	ErrInvalidMethod       = errors.New("invalid method")
	ErrHandlerNotFound     = errors.New("renderer entry point not found")
	ErrDuplicateEndpoint   = errors.New("endpoint already registered")
	ErrImmutableAttribute  = errors.New("config attributes are immutable once set")
	ErrSchemaViolation     = errors.New("config does not match schema")
	ErrMissingBindAddress  = errors.New("host and port must be set to start application")
	ErrInvalidHookTiming   = errors.New("hook timing must be before or after")
)

// RouteError reports a failure while activating a single route.
type RouteError struct {
	Key string // route key as written in the router file
	Err error
}

func (e *RouteError) Error() string {
	return fmt.Sprintf("conductor: route %q: %v", e.Key, e.Err)
}

func (e *RouteError) Unwrap() error {
	return e.Err
}

func routeErrorf(key string, sentinel error, format string, args ...any) error {
	if format == "" {
		return &RouteError{Key: key, Err: sentinel}
	}
	return &RouteError{Key: key, Err: fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))}
}

// DefaultErrorHandler renders errors that have no error route registered.
// It returns JSON for API requests and a small HTML page otherwise.
func DefaultErrorHandler(logger *slog.Logger, isDev bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := statusCode(err)

		if code >= fiber.StatusInternalServerError {
			logger.Error("request failed",
				slog.Any("error", err),
				slog.String("path", c.Path()),
				slog.String("method", c.Method()),
				slog.Int("status", code),
			)
		}

		if c.Accepts(fiber.MIMETextHTML, fiber.MIMEApplicationJSON) == fiber.MIMEApplicationJSON {
			return c.Status(code).JSON(fiber.Map{
				"error":   ErrorCodeName(code),
				"message": err.Error(),
			})
		}

		detail := ""
		if isDev {
			detail = err.Error()
		}
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.Status(code).SendString(errorHTML(code, ErrorCodeName(code), detail))
	}
}

func statusCode(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return fiber.StatusInternalServerError
}

// ErrorCodeName returns a human-readable name for common HTTP status codes.
func ErrorCodeName(code int) string {
	switch code {
	case fiber.StatusBadRequest:
		return "Bad Request"
	case fiber.StatusUnauthorized:
		return "Unauthorized"
	case fiber.StatusForbidden:
		return "Forbidden"
	case fiber.StatusNotFound:
		return "Not Found"
	case fiber.StatusMethodNotAllowed:
		return "Method Not Allowed"
	case fiber.StatusTooManyRequests:
		return "Too Many Requests"
	case fiber.StatusInternalServerError:
		return "Internal Server Error"
	case fiber.StatusBadGateway:
		return "Bad Gateway"
	case fiber.StatusServiceUnavailable:
		return "Service Unavailable"
	default:
		return "Error"
	}
}

func errorHTML(code int, title, message string) string {
	details := ""
	if message != "" {
		details = fmt.Sprintf(`<pre class="detail">%s</pre>`, html.EscapeString(message))
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>%d - %s</title>
    <style>
        body { font-family: -apple-system, "Segoe UI", Roboto, sans-serif; text-align: center; margin-top: 15vh; color: #333; }
        h1 { font-size: 64px; margin: 0; color: #dc3545; }
        .detail { display: inline-block; text-align: left; background: #f5f5f5; padding: 10px; border-radius: 4px; }
    </style>
</head>
<body>
    <h1>%d</h1>
    <h2>%s</h2>
    %s
</body>
</html>`, code, title, code, title, details)
}
