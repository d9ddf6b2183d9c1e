package conductor

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gofiber/fiber/v2"
)

// lifecycle holds the per-request hooks a Server runs around every request.
type lifecycle struct {
	mu       sync.RWMutex
	first    []func() error
	after    []func(*fiber.Ctx) error
	teardown []func(*fiber.Ctx, error)

	once sync.Once
}

func (l *lifecycle) snapshot() ([]func(*fiber.Ctx) error, []func(*fiber.Ctx, error)) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.after, l.teardown
}

// runFirst runs the before-first-request hooks once. Only the request that
// ran them sees their error.
func (l *lifecycle) runFirst() (err error) {
	l.once.Do(func() {
		l.mu.RLock()
		hooks := l.first
		l.mu.RUnlock()
		for _, fn := range hooks {
			if err = fn(); err != nil {
				return
			}
		}
	})
	return err
}

// handler runs before-first-request hooks once, after-request hooks on
// every response and teardown hooks always. Errors from later handlers are
// rendered here through the application's error handler, so responses from
// "@error/<code>" routes pass through the after-request hooks too. Teardown
// hooks see the original error.
func (l *lifecycle) handler(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		after, teardown := l.snapshot()

		var reqErr error
		defer func() {
			for _, fn := range teardown {
				fn(c, reqErr)
			}
		}()

		if reqErr = l.runFirst(); reqErr != nil {
			logger.Error("before first request hook failed", "error", reqErr)
			return reqErr
		}
		if reqErr = c.Next(); reqErr != nil {
			if err := c.App().ErrorHandler(c, reqErr); err != nil {
				logger.Error("error handler failed", "error", err)
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}
		for _, fn := range after {
			if err := fn(c); err != nil {
				if reqErr == nil {
					reqErr = err
				}
				return err
			}
		}
		return nil
	}
}

// BeforeFirstRequest registers fn to run once, before the first request is
// handled. If it fails, that request fails with its error.
func (s *Server) BeforeFirstRequest(fn func() error) {
	s.hooks.mu.Lock()
	defer s.hooks.mu.Unlock()
	s.hooks.first = append(s.hooks.first, fn)
}

// AfterRequest registers fn to run after each request, including those
// answered by an error route or the default error handler. It may modify the
// response.
func (s *Server) AfterRequest(fn func(*fiber.Ctx) error) {
	s.hooks.mu.Lock()
	defer s.hooks.mu.Unlock()
	s.hooks.after = append(s.hooks.after, fn)
}

// Teardown registers fn to run at the end of every request, with the error
// the request ended with, if any.
func (s *Server) Teardown(fn func(*fiber.Ctx, error)) {
	s.hooks.mu.Lock()
	defer s.hooks.mu.Unlock()
	s.hooks.teardown = append(s.hooks.teardown, fn)
}

// OnShutdown registers fn to run when the server shuts down.
func (s *Server) OnShutdown(fn func() error) {
	s.app.Hooks().OnShutdown(fn)
}

// HookTiming selects when RegisterHook runs its hook.
type HookTiming string

const (
	HookBefore HookTiming = "before"
	HookAfter  HookTiming = "after"
)

// HookFunc is a side effect run around a renderer. It receives the same
// Context as the renderer.
type HookFunc func(*Context) error

// RegisterHook returns a decorator that runs hook immediately before or
// immediately after the renderer it wraps:
//
//	audit, err := conductor.RegisterHook(logVisit, conductor.HookBefore)
//	if err != nil {
//		return err
//	}
//	conductor.RegisterRenderer("renderers/form.go", audit(FruitForm))
//
// A hook error stops the chain and is returned as the request's error.
func RegisterHook(hook HookFunc, when HookTiming) (func(Renderer) Renderer, error) {
	if hook == nil {
		return nil, fmt.Errorf("conductor: nil hook")
	}
	switch when {
	case HookBefore:
		return func(next Renderer) Renderer {
			return func(ctx *Context) error {
				if err := hook(ctx); err != nil {
					return err
				}
				return next(ctx)
			}
		}, nil
	case HookAfter:
		return func(next Renderer) Renderer {
			return func(ctx *Context) error {
				if err := next(ctx); err != nil {
					return err
				}
				return hook(ctx)
			}
		}, nil
	default:
		return nil, fmt.Errorf("conductor: hook timing %q: %w", when, ErrInvalidHookTiming)
	}
}
