package conductor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/errgroup"
)

// Starter serves an activated server on host:port. It blocks until the
// server stops.
type Starter func(s *Server, host string, port int) error

// DefaultStarter listens on host:port.
func DefaultStarter(s *Server, host string, port int) error {
	return s.Listen(net.JoinHostPort(host, strconv.Itoa(port)))
}

// Conductor composes a Server, a Router and an optional Config into a
// runnable application.
type Conductor struct {
	server  *Server
	router  *Router
	config  *Config
	host    string
	port    int
	starter Starter
	logger  *slog.Logger

	shutdownTimeout time.Duration
}

// Option customises a Conductor.
type Option func(*Conductor)

// WithHost sets the bind host.
func WithHost(host string) Option {
	return func(c *Conductor) { c.host = host }
}

// WithPort sets the bind port.
func WithPort(port int) Option {
	return func(c *Conductor) { c.port = port }
}

// WithStarter replaces DefaultStarter.
func WithStarter(fn Starter) Option {
	return func(c *Conductor) { c.starter = fn }
}

// WithLogger sets the logger. Defaults to the server's.
func WithLogger(l *slog.Logger) Option {
	return func(c *Conductor) { c.logger = l }
}

// WithShutdownTimeout bounds graceful shutdown in Run. Defaults to 10s.
func WithShutdownTimeout(d time.Duration) Option {
	return func(c *Conductor) { c.shutdownTimeout = d }
}

// New creates a Conductor. When cfg is non-nil it becomes the Config
// renderers see through Context.Config.
func New(server *Server, router *Router, cfg *Config, opts ...Option) *Conductor {
	c := &Conductor{
		server:          server,
		router:          router,
		config:          cfg,
		starter:         DefaultStarter,
		shutdownTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = server.Logger()
	}
	if cfg != nil {
		server.SetConfig(cfg)
	}
	return c
}

// Server returns the wrapped server.
func (c *Conductor) Server() *Server { return c.server }

// Router returns the router.
func (c *Conductor) Router() *Router { return c.router }

// Config returns the application config, which may be nil.
func (c *Conductor) Config() *Config { return c.config }

// Addr returns host:port.
func (c *Conductor) Addr() string {
	return net.JoinHostPort(c.host, strconv.Itoa(c.port))
}

func (c *Conductor) activate() error {
	if c.host == "" || c.port == 0 {
		return fmt.Errorf("conductor: start: %w", ErrMissingBindAddress)
	}
	if err := c.router.Activate(c.server); err != nil {
		return fmt.Errorf("conductor: activate router: %w", err)
	}
	return nil
}

// Start activates the router and runs the starter. Host and port must be set.
func (c *Conductor) Start() error {
	if err := c.activate(); err != nil {
		return err
	}
	c.logger.Info("starting", "addr", c.Addr(), "router", c.router.Path())
	return c.starter(c.server, c.host, c.port)
}

// Run is Start with graceful shutdown: the server stops when ctx is
// cancelled or the process receives SIGINT or SIGTERM.
func (c *Conductor) Run(ctx context.Context) error {
	if err := c.activate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		c.logger.Info("starting", "addr", c.Addr(), "router", c.router.Path())
		return c.starter(c.server, c.host, c.port)
	})
	g.Go(func() error {
		<-gctx.Done()
		c.logger.Info("shutting down gracefully")
		shutdownCtx, done := context.WithTimeout(context.Background(), c.shutdownTimeout)
		defer done()
		if err := c.server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Error("graceful shutdown failed", "error", err)
			return err
		}
		c.logger.Info("shutdown complete")
		return nil
	})
	return g.Wait()
}

// BeforeFirstRequest registers fn to run once before the first request.
func (c *Conductor) BeforeFirstRequest(fn func() error) {
	c.server.BeforeFirstRequest(fn)
}

// AfterRequest registers fn to run after every request, error responses
// included.
func (c *Conductor) AfterRequest(fn func(*fiber.Ctx) error) {
	c.server.AfterRequest(fn)
}

// Teardown registers fn to run at the end of every request.
func (c *Conductor) Teardown(fn func(*fiber.Ctx, error)) {
	c.server.Teardown(fn)
}

// OnShutdown registers fn to run when the server shuts down.
func (c *Conductor) OnShutdown(fn func() error) {
	c.server.OnShutdown(fn)
}
