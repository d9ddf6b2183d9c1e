package conductor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
)

// Application is the web application a Router registers routes on.
// *Server implements it.
type Application interface {
	// AddURLRule registers a normal route under h.Meta.Pattern for every
	// method in h.Meta.Methods, named h.Meta.Endpoint.
	AddURLRule(h RouteHandler) error
	// RegisterErrorHandler makes h the response for status code.
	RegisterErrorHandler(code int, h RouteHandler) error
}

// Router loads a router file and activates its routes on an Application.
//
//	router, err := conductor.NewRouter("router.json")
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := router.Activate(server); err != nil {
//		log.Fatal(err)
//	}
type Router struct {
	path     string
	version  string
	content  map[string]any
	order    []string
	defaults map[string]any

	loader ModuleLoader
	logger *slog.Logger

	routes []*RouteMeta
}

// RouterOption customises a Router.
type RouterOption func(*Router)

// WithLoader sets the loader used for "python-renderer" modules.
func WithLoader(l ModuleLoader) RouterOption {
	return func(r *Router) { r.loader = l }
}

// WithRouterLogger sets the logger used during activation.
func WithRouterLogger(l *slog.Logger) RouterOption {
	return func(r *Router) { r.logger = l }
}

// NewRouter loads and validates the router file at path.
func NewRouter(path string, opts ...RouterOption) (*Router, error) {
	data, err := readDocument("router", path)
	if err != nil {
		return nil, err
	}
	return ParseRouter(path, data, opts...)
}

// ParseRouter builds a router from an in-memory router file; name is used
// in error messages only. Use it for router files embedded in the binary.
func ParseRouter(name string, data []byte, opts ...RouterOption) (*Router, error) {
	doc, err := decodeDocument("router", data)
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", err, name)
	}

	version, err := checkVersion("router", doc, RouterVersion)
	if err != nil {
		return nil, err
	}

	order, err := documentKeys(data)
	if err != nil {
		return nil, fmt.Errorf("conductor: router document: %w: %v", ErrParse, err)
	}

	r := &Router{
		path:     name,
		version:  version,
		content:  doc,
		order:    order,
		defaults: map[string]any{},
		logger:   slog.New(slog.DiscardHandler),
	}
	if defaults, ok := doc["defaults"].(map[string]any); ok {
		r.defaults = defaults
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.loader == nil {
		r.loader = defaultLoader()
	}
	return r, nil
}

// Path returns the router file path.
func (r *Router) Path() string { return r.path }

// Version returns the router file's schema version.
func (r *Router) Version() string { return r.version }

// Defaults returns the router file's "defaults" mapping.
func (r *Router) Defaults() map[string]any { return r.defaults }

// Routes returns the metadata computed by the last successful Activate.
func (r *Router) Routes() []*RouteMeta { return r.routes }

// Activate validates every route and registers it on app, in router file
// order. The first failure aborts activation; the application must then be
// considered unusable. Calling Activate twice registers every route twice.
func (r *Router) Activate(app Application) error {
	routes := make([]*RouteMeta, 0, len(r.order))
	for _, key := range r.order {
		if key == "defaults" || isReservedKey(key) {
			continue
		}

		meta, renderer, err := r.prepare(key, r.content[key])
		if err != nil {
			return err
		}

		h := RouteHandler{Meta: meta, Renderer: renderer}
		if meta.IsErrorRoute() {
			if err := app.RegisterErrorHandler(meta.ErrorCode, h); err != nil {
				return &RouteError{Key: key, Err: err}
			}
			r.logger.Debug("error route registered", "route", key, "status", meta.ErrorCode)
		} else {
			if err := app.AddURLRule(h); err != nil {
				return &RouteError{Key: key, Err: err}
			}
			r.logger.Debug("route registered",
				"route", key,
				"path", meta.Pattern,
				"endpoint", meta.Endpoint,
				"methods", meta.Methods,
			)
		}
		routes = append(routes, meta)
	}

	r.routes = routes
	r.logger.Info("router activated", "file", r.path, "routes", len(routes))
	return nil
}

// prepare validates a single route and resolves its renderer. A nil
// renderer means the route renders its template.
func (r *Router) prepare(key string, value any) (*RouteMeta, Renderer, error) {
	errorCode := 0
	if isErrorRouteKey(key) {
		code, err := parseErrorCode(key)
		if err != nil {
			return nil, nil, err
		}
		errorCode = code
	}

	def, raw, err := parseDefinition(key, value)
	if err != nil {
		return nil, nil, err
	}
	meta := computeMeta(key, errorCode, def, raw)

	if def.Renderer == "" {
		return meta, nil, nil
	}
	renderer, err := loadModule(r.loader, def.Renderer)
	if err != nil {
		return nil, nil, &RouteError{Key: key, Err: err}
	}
	return meta, renderer, nil
}

// documentKeys returns the top-level keys of a JSON object in document order.
func documentKeys(data []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected an object")
	}

	var keys []string
	seen := make(map[string]bool)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
		// a repeated key keeps its first position and its last value,
		// matching encoding/json
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return nil, err
	}
	return keys, nil
}
