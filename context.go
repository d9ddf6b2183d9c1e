package conductor

import (
	"fmt"
	"log/slog"
	"maps"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Context is the request-scoped view handed to a Renderer. It embeds
// fiber.Ctx for the HTTP request/response and carries the ambient route
// state: the globals snapshot, the route data from the router file and the
// metadata computed when the route was activated.
//
// A Context is built for exactly one request and must not be retained after
// the renderer returns.
type Context struct {
	*fiber.Ctx
	Logger *slog.Logger
	Config *Config

	globals map[string]any
	route   map[string]any
	meta    *RouteMeta
	err     error
}

// Renderer is the handler signature for routes declared in a router file.
type Renderer func(*Context) error

// Global returns the snapshot value of a global listed under "$global".
func (ctx *Context) Global(name string) any {
	return ctx.globals[name]
}

// Globals returns all globals captured for this request.
func (ctx *Context) Globals() map[string]any {
	return maps.Clone(ctx.globals)
}

// RouteVar returns a value from the route's definition in the router file,
// including reserved keys such as "$methods" and "template".
func (ctx *Context) RouteVar(name string) any {
	return ctx.route[name]
}

// RouteVars returns a copy of the route's definition.
func (ctx *Context) RouteVars() map[string]any {
	return maps.Clone(ctx.route)
}

// MetaValue returns one computed metadata field by name (see RouteMeta.Value).
func (ctx *Context) MetaValue(name string) any {
	if ctx.meta == nil {
		return nil
	}
	return ctx.meta.Value(name)
}

// Err returns the error an "@error/<code>" route is answering. It is nil
// for every other route.
func (ctx *Context) Err() error {
	return ctx.err
}

// Meta returns the metadata computed for the route at activation.
func (ctx *Context) Meta() *RouteMeta {
	return ctx.meta
}

// TemplateData is the binding passed to templates rendered for this route.
func (ctx *Context) TemplateData() fiber.Map {
	data := fiber.Map{
		"Globals": ctx.Globals(),
		"Route":   ctx.RouteVars(),
	}
	if ctx.meta != nil {
		data["Meta"] = ctx.meta.Values()
	}
	if ctx.err != nil {
		data["Error"] = ctx.err.Error()
	}
	return data
}

// RenderTemplate renders the route's template. Keys in extra are added to
// TemplateData, replacing entries with the same name.
func (ctx *Context) RenderTemplate(extra fiber.Map) error {
	if ctx.meta == nil || ctx.meta.Template == "" {
		return fmt.Errorf("conductor: route has no template to render")
	}
	return ctx.RenderNamed(ctx.meta.Template, extra)
}

// RenderNamed renders an arbitrary template with the route's TemplateData.
func (ctx *Context) RenderNamed(name string, extra fiber.Map) error {
	data := ctx.TemplateData()
	maps.Copy(data, extra)
	return ctx.Render(viewName(name), data)
}

// URLFor builds the URL of a named endpoint, filling route parameters.
func (ctx *Context) URLFor(endpoint string, params fiber.Map) (string, error) {
	url, err := ctx.GetRouteURL(endpoint, params)
	if err != nil {
		return "", fmt.Errorf("conductor: url for %q: %w", endpoint, err)
	}
	if url == "" {
		return "", fmt.Errorf("conductor: unknown endpoint %q", endpoint)
	}
	return url, nil
}

// viewName maps a router-file template name ("pages/home.html") to the
// engine's template name ("pages/home").
func viewName(template string) string {
	return strings.TrimSuffix(template, templateExt)
}

// renderTemplateRoute is the renderer used by routes that only name a template.
func renderTemplateRoute(ctx *Context) error {
	return ctx.RenderTemplate(nil)
}
