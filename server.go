package conductor

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/karloscodes/conductor/cache"
	"github.com/karloscodes/conductor/middleware"
)

// ServerConfig configures the web application routes are registered on.
type ServerConfig struct {
	Logger      *slog.Logger
	Config      *Config
	Globals     *Globals
	Environment string // development, production or test

	// ErrorHandler answers errors with no error route registered.
	// Defaults to DefaultErrorHandler.
	ErrorHandler fiber.ErrorHandler
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Views renders templates. When nil and TemplatesDirectory or
	// TemplatesFS is set, an html engine is created from them.
	Views              fiber.Views
	TemplatesDirectory string
	TemplatesFS        fs.FS

	StaticDirectory string
	StaticFS        fs.FS
	StaticPrefix    string

	EnableRequestID     bool
	EnableRecover       bool
	EnableHelmet        bool
	EnableCompress      bool
	EnableSameOrigin    bool
	EnableRequestLogger bool

	// Helmet tunes the security headers when EnableHelmet is set.
	Helmet middleware.HelmetConfig

	// RateLimitMax enables per-IP rate limiting when positive: at most
	// RateLimitMax requests per RateLimitWindow (default one second).
	// RateLimitClients bounds how many client counters are kept; the oldest
	// are evicted first. Zero keeps every counter until it expires.
	RateLimitMax     int
	RateLimitWindow  time.Duration
	RateLimitClients int64

	// MetricsPath exposes Prometheus metrics when non-empty.
	MetricsPath string
	Registry    *prometheus.Registry
}

// DefaultServerConfig returns a configuration with the standard middleware
// stack enabled.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Environment:         "development",
		ReadTimeout:         30 * time.Second,
		WriteTimeout:        30 * time.Second,
		StaticPrefix:        "/static",
		EnableRequestID:     true,
		EnableRecover:       true,
		EnableHelmet:        true,
		EnableCompress:      true,
		EnableRequestLogger: true,
	}
}

// Server wraps a fiber application with the bookkeeping a router needs:
// named endpoints, per-status error routes, lifecycle hooks and the
// globals exposed to renderers.
type Server struct {
	app     *fiber.App
	cfg     *ServerConfig
	logger  *slog.Logger
	globals *Globals
	hooks   *lifecycle
	metrics *middleware.Metrics

	mu            sync.RWMutex
	config        *Config
	endpoints     map[string]string
	errorHandlers map[int]RouteHandler
}

// NewServer creates a server. A nil cfg uses DefaultServerConfig.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		cfg = DefaultServerConfig()
	}

	s := &Server{
		cfg:           cfg,
		logger:        cfg.Logger,
		globals:       cfg.Globals,
		config:        cfg.Config,
		hooks:         &lifecycle{},
		endpoints:     make(map[string]string),
		errorHandlers: make(map[int]RouteHandler),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.globals == nil {
		s.globals = NewGlobals()
	}

	fallback := cfg.ErrorHandler
	if fallback == nil {
		fallback = DefaultErrorHandler(s.logger, cfg.Environment == "development")
	}

	views := cfg.Views
	if views == nil {
		var err error
		views, err = newViewsFromConfig(cfg)
		if err != nil {
			return nil, err
		}
	}

	fiberCfg := fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		ErrorHandler:          s.errorHandler(fallback),
	}
	if views != nil {
		fiberCfg.Views = views
	}
	s.app = fiber.New(fiberCfg)

	s.setupMiddleware()
	if err := s.setupMetrics(); err != nil {
		return nil, err
	}
	s.setupStatic()
	return s, nil
}

func (s *Server) setupMiddleware() {
	if s.cfg.EnableRequestID {
		s.app.Use(middleware.RequestID())
	}
	if s.cfg.EnableRecover {
		s.app.Use(middleware.Recover(s.logger))
	}
	if s.cfg.EnableRequestLogger {
		s.app.Use(middleware.RequestLogger(s.logger, s.cfg.MetricsPath, "/_health"))
	}
	s.app.Use(s.hooks.handler(s.logger))
	if s.cfg.EnableHelmet {
		s.app.Use(middleware.Helmet(s.cfg.Helmet))
	}
	if s.cfg.EnableCompress {
		s.app.Use(compress.New(compress.Config{Level: compress.LevelDefault}))
	}
	if s.cfg.EnableSameOrigin {
		s.app.Use(middleware.SameOrigin())
	}
	if s.cfg.RateLimitMax > 0 {
		counters := cache.NewMemoryStore(cache.WithMaxEntries(s.cfg.RateLimitClients))
		s.app.Hooks().OnShutdown(counters.Close)
		s.app.Use(middleware.RateLimiter(
			middleware.WithMax(s.cfg.RateLimitMax),
			middleware.WithDuration(s.cfg.RateLimitWindow),
			middleware.WithStorage(counters),
		))
	}
}

func (s *Server) setupMetrics() error {
	if s.cfg.MetricsPath == "" {
		return nil
	}
	reg := s.cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m, err := middleware.NewMetrics(reg)
	if err != nil {
		return fmt.Errorf("conductor: metrics: %w", err)
	}
	s.metrics = m
	s.app.Get(s.cfg.MetricsPath, adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	s.app.Use(m.Handler())
	return nil
}

func (s *Server) setupStatic() {
	prefix := s.cfg.StaticPrefix
	if prefix == "" {
		prefix = "/static"
	}
	switch {
	case s.cfg.StaticFS != nil:
		s.app.Use(prefix, filesystem.New(filesystem.Config{
			Root:   http.FS(s.cfg.StaticFS),
			MaxAge: int((24 * time.Hour).Seconds()),
		}))
	case s.cfg.StaticDirectory != "":
		s.app.Static(prefix, s.cfg.StaticDirectory, fiber.Static{
			Compress:      true,
			ByteRange:     true,
			CacheDuration: 24 * time.Hour,
		})
	}
}

// errorHandler dispatches errors to the error route registered for their
// status code, falling back to fallback.
func (s *Server) errorHandler(fallback fiber.ErrorHandler) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := statusCode(err)

		s.mu.RLock()
		h, ok := s.errorHandlers[code]
		s.mu.RUnlock()
		if !ok {
			return fallback(c, err)
		}

		c.Status(code)
		if herr := s.dispatch(c, h, err); herr != nil {
			s.logger.Error("error route failed",
				"route", h.Meta.RawRoute,
				"status", code,
				"error", herr,
			)
			return fallback(c, err)
		}
		return nil
	}
}

// AddURLRule implements Application.
func (s *Server) AddURLRule(h RouteHandler) error {
	meta := h.Meta
	if meta == nil {
		return fmt.Errorf("conductor: route metadata is required")
	}
	pattern := meta.Pattern
	if pattern == "" {
		pattern = meta.Path
	}

	s.mu.Lock()
	if owner, taken := s.endpoints[meta.Endpoint]; taken {
		s.mu.Unlock()
		return fmt.Errorf("conductor: endpoint %q is used by %q: %w", meta.Endpoint, owner, ErrDuplicateEndpoint)
	}
	s.endpoints[meta.Endpoint] = meta.RawRoute
	s.mu.Unlock()

	handler := s.wrap(h)
	for _, method := range meta.Methods {
		s.app.Add(method, pattern, handler).Name(meta.Endpoint)
	}
	return nil
}

// RegisterErrorHandler implements Application. A later registration for the
// same code replaces the earlier one.
func (s *Server) RegisterErrorHandler(code int, h RouteHandler) error {
	if h.Meta == nil {
		return fmt.Errorf("conductor: route metadata is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorHandlers[code] = h
	return nil
}

// Handle registers a plain renderer outside of any router file.
func (s *Server) Handle(method, path string, r Renderer) {
	s.app.Add(method, path, s.wrap(RouteHandler{
		Meta: &RouteMeta{
			RawRoute:  path,
			Path:      path,
			Pattern:   path,
			ErrorCode: fiber.StatusOK,
			Methods:   []string{method},
			Data:      map[string]any{},
		},
		Renderer: r,
	}))
}

// Endpoints returns the registered endpoint names mapped to their route keys.
func (s *Server) Endpoints() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.endpoints))
	for k, v := range s.endpoints {
		out[k] = v
	}
	return out
}

// HasErrorHandler reports whether an error route handles code.
func (s *Server) HasErrorHandler(code int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.errorHandlers[code]
	return ok
}

// Config returns the application config shared with renderers.
func (s *Server) Config() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// SetConfig replaces the config shared with renderers. Call it before serving.
func (s *Server) SetConfig(cfg *Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = cfg
}

// Globals returns the store snapshotted into each request.
func (s *Server) Globals() *Globals { return s.globals }

// Logger returns the server logger.
func (s *Server) Logger() *slog.Logger { return s.logger }

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App { return s.app }

// Test runs req through the application without a listener.
func (s *Server) Test(req *http.Request, msTimeout ...int) (*http.Response, error) {
	return s.app.Test(req, msTimeout...)
}

// Listen serves on addr until the server is shut down.
func (s *Server) Listen(addr string) error {
	s.logger.Info("server started and ready to accept requests", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server, running OnShutdown hooks.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
