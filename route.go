package conductor

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/gofiber/fiber/v2"
)

// Router file keys understood on a route definition.
const (
	keyMethods      = "$methods"
	keyGlobals      = "$global"
	keyEndpoint     = "$endpointurl"
	keyTemplate     = "template"
	keyRenderer     = "python-renderer"
	keyRendererName = "renderer"
)

const errorRoutePrefix = "@error"

// AllowedMethods lists the HTTP methods a route may declare.
var AllowedMethods = []string{fiber.MethodGet, fiber.MethodPost, fiber.MethodPut, fiber.MethodDelete}

var defaultMethods = []string{fiber.MethodGet}

// RouteDefinition is the typed form of one route entry in the router file.
type RouteDefinition struct {
	Methods  []string `mapstructure:"-"`
	Globals  []string `mapstructure:"$global"`
	Endpoint string   `mapstructure:"$endpointurl"`
	Template string   `mapstructure:"template"`
	Renderer string   `mapstructure:"python-renderer"`
}

// RouteMeta is computed once per route during activation and is read-only
// afterwards. Renderers reach it through Context.Meta.
type RouteMeta struct {
	RawRoute  string
	Data      map[string]any
	Path      string // URL path derived from the route key
	Pattern   string // Path translated to the web framework's syntax
	ErrorCode int    // 200 for normal routes
	Methods   []string
	Globals   []string
	Endpoint  string
	Template  string
	Renderer  string
}

// IsErrorRoute reports whether the route handles an HTTP error status.
func (m *RouteMeta) IsErrorRoute() bool {
	return m.ErrorCode != fiber.StatusOK
}

// Value returns a metadata field by its router-facing name.
func (m *RouteMeta) Value(name string) any {
	switch name {
	case "raw_route":
		return m.RawRoute
	case "route_data":
		return routeData(m.Data)
	case "route":
		return m.Path
	case "pattern":
		return m.Pattern
	case "error_code":
		return m.ErrorCode
	case "methods":
		return slices.Clone(m.Methods)
	case "globals_list":
		return slices.Clone(m.Globals)
	case "endpoint":
		return m.Endpoint
	case "template":
		return m.Template
	case "renderer":
		return m.Renderer
	}
	return nil
}

// Values returns every metadata field keyed by its router-facing name.
func (m *RouteMeta) Values() map[string]any {
	names := []string{"raw_route", "route_data", "route", "pattern", "error_code",
		"methods", "globals_list", "endpoint", "template", "renderer"}
	out := make(map[string]any, len(names))
	for _, name := range names {
		out[name] = m.Value(name)
	}
	return out
}

// isErrorRouteKey reports whether key is meant as an error route. Every key
// starting with "@error" is; parseErrorCode rejects the malformed ones.
func isErrorRouteKey(key string) bool {
	return strings.HasPrefix(key, errorRoutePrefix)
}

// parseErrorCode extracts the status code from "@error/<code>".
func parseErrorCode(key string) (int, error) {
	parts := strings.Split(key, "/")
	if parts[0] != errorRoutePrefix {
		return 0, routeErrorf(key, ErrInvalidRouteData, "error routes are written %s/<code>", errorRoutePrefix)
	}
	if len(parts) < 2 || parts[1] == "" {
		return 0, routeErrorf(key, ErrInvalidRouteData, "error route needs a status code, e.g. %s/404", errorRoutePrefix)
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, routeErrorf(key, ErrInvalidRouteData, "error code %q is not an integer", parts[1])
	}
	if code < 100 || code > 599 {
		return 0, routeErrorf(key, ErrInvalidRouteData, "error code %d is not an HTTP status", code)
	}
	return code, nil
}

// routePath drops the route key's first segment, which tags the route's
// kind for the router file author and is not part of the URL.
func routePath(key string) string {
	parts := strings.Split(key, "/")
	return "/" + strings.Join(parts[1:], "/")
}

// endpointName replaces every character outside [A-Za-z0-9_] with '_'.
func endpointName(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

var placeholder = regexp.MustCompile(`<(?:([A-Za-z_][A-Za-z0-9_]*):)?([A-Za-z_][A-Za-z0-9_]*)>`)

// fiberPattern translates "<name>" and "<converter:name>" placeholders into
// fiber route parameters. "path" converters become a wildcard, reachable
// through Params("*").
func fiberPattern(path string) string {
	return placeholder.ReplaceAllStringFunc(path, func(m string) string {
		sub := placeholder.FindStringSubmatch(m)
		converter, name := sub[1], sub[2]
		switch converter {
		case "int":
			return ":" + name + "<int>"
		case "float":
			return ":" + name + "<float>"
		case "uuid":
			return ":" + name + "<guid>"
		case "path":
			return "*"
		default:
			return ":" + name
		}
	})
}

// parseMethods validates "$methods", defaulting to GET when absent.
func parseMethods(key string, raw map[string]any) ([]string, error) {
	value, ok := raw[keyMethods]
	if !ok {
		return slices.Clone(defaultMethods), nil
	}
	list, ok := value.([]any)
	if !ok {
		return nil, routeErrorf(key, ErrInvalidMethodList, "expected a list, got %s", typeName(value))
	}
	if len(list) == 0 {
		return nil, routeErrorf(key, ErrInvalidMethodList, "at least one method is required")
	}
	methods := make([]string, 0, len(list))
	for _, item := range list {
		method, isString := item.(string)
		if !isString || !slices.Contains(AllowedMethods, method) {
			return nil, routeErrorf(key, ErrInvalidMethod, "%v is not one of %s",
				item, strings.Join(AllowedMethods, ", "))
		}
		if !slices.Contains(methods, method) {
			methods = append(methods, method)
		}
	}
	return methods, nil
}

// parseDefinition decodes and validates one route value from the router file.
func parseDefinition(key string, value any) (*RouteDefinition, map[string]any, error) {
	raw, ok := value.(map[string]any)
	if !ok {
		return nil, nil, routeErrorf(key, ErrInvalidRouteData, "expected an object, got %s", typeName(value))
	}

	var def RouteDefinition
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     &def,
		ZeroFields: true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("conductor: route decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return nil, nil, routeErrorf(key, ErrInvalidRouteData, "%v", err)
	}
	if def.Renderer == "" {
		if alias, isString := raw[keyRendererName].(string); isString {
			def.Renderer = alias
		}
	}

	if def.Template == "" && def.Renderer == "" {
		return nil, nil, routeErrorf(key, ErrMissingRenderTarget,
			"set %q or %q", keyTemplate, keyRenderer)
	}

	methods, err := parseMethods(key, raw)
	if err != nil {
		return nil, nil, err
	}
	def.Methods = methods
	return &def, raw, nil
}

// computeMeta derives the RouteMeta for a validated definition. errorCode
// is zero for normal routes.
func computeMeta(key string, errorCode int, def *RouteDefinition, raw map[string]any) *RouteMeta {
	meta := &RouteMeta{
		RawRoute: key,
		Data:     routeData(raw),
		Methods:  def.Methods,
		Globals:  slices.Clone(def.Globals),
		Endpoint: def.Endpoint,
		Template: def.Template,
		Renderer: def.Renderer,
	}

	if errorCode != 0 {
		meta.ErrorCode = errorCode
		meta.Path = key
		return meta
	}

	meta.ErrorCode = fiber.StatusOK
	meta.Path = routePath(key)
	meta.Pattern = fiberPattern(meta.Path)
	if meta.Endpoint == "" {
		meta.Endpoint = endpointName(key)
	}
	return meta
}
