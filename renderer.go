package conductor

import (
	"maps"

	"github.com/gofiber/fiber/v2"
)

// RouteHandler pairs a route's computed metadata with the renderer that
// serves it. It is what the router hands to an Application.
type RouteHandler struct {
	Meta     *RouteMeta
	Renderer Renderer
}

// newContext captures the ambient state for one request. The globals are
// snapshotted here, at dispatch time.
func (s *Server) newContext(c *fiber.Ctx, meta *RouteMeta) *Context {
	ctx := &Context{
		Ctx:    c,
		Logger: s.logger,
		Config: s.Config(),
		meta:   meta,
	}
	if meta != nil {
		ctx.globals = s.globals.Snapshot(meta.Globals)
		ctx.route = meta.Data
	} else {
		ctx.globals = map[string]any{}
		ctx.route = map[string]any{}
	}
	c.Locals(contextLocalsKey, ctx)
	return ctx
}

// wrap turns a renderer into a fiber handler that builds a fresh Context
// for every request before invoking it.
func (s *Server) wrap(h RouteHandler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return s.dispatch(c, h, nil)
	}
}

// dispatch runs h for one request. cause is the error an error route is
// answering, nil otherwise.
func (s *Server) dispatch(c *fiber.Ctx, h RouteHandler, cause error) error {
	renderer := h.Renderer
	if renderer == nil {
		renderer = renderTemplateRoute
	}
	ctx := s.newContext(c, h.Meta)
	ctx.err = cause
	return renderer(ctx)
}

// CurrentContext returns the conductor Context attached to a fiber request,
// for middleware running after a route renderer was dispatched.
func CurrentContext(c *fiber.Ctx) (*Context, bool) {
	ctx, ok := c.Locals(contextLocalsKey).(*Context)
	return ctx, ok
}

const contextLocalsKey = "conductor_ctx"

// routeData copies a route definition so renderers
// cannot mutate what later requests see.
func routeData(def map[string]any) map[string]any {
	return maps.Clone(def)
}
