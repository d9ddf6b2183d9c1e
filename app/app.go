// Package app assembles a runnable Conductor from process settings. It is
// shared by the conductor binary and by applications that embed their own
// renderers and call NewRootCommand from their main package.
package app

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/karloscodes/conductor"
	"github.com/karloscodes/conductor/settings"
)

// Options are the application-specific parts Build cannot read from settings.
type Options struct {
	Loader       conductor.ModuleLoader
	Globals      *conductor.Globals
	LogOutput    io.Writer
	TemplatesFS  fs.FS
	StaticFS     fs.FS
	ConfigSchema []byte
	// Setup runs after the Conductor is created and before it starts, to
	// register hooks.
	Setup func(*conductor.Conductor) error
}

// Option customises Build.
type Option func(*Options)

// WithLoader resolves renderer modules with l instead of the default
// registry and plugin chain.
func WithLoader(l conductor.ModuleLoader) Option {
	return func(o *Options) { o.Loader = l }
}

// WithGlobals exposes g to renderers listing its names under "$global".
func WithGlobals(g *conductor.Globals) Option {
	return func(o *Options) { o.Globals = g }
}

// WithLogOutput sends logs to w instead of stdout.
func WithLogOutput(w io.Writer) Option {
	return func(o *Options) { o.LogOutput = w }
}

// WithTemplatesFS loads templates from fsys, usually an embed.FS, instead
// of the templates directory.
func WithTemplatesFS(fsys fs.FS) Option {
	return func(o *Options) { o.TemplatesFS = fsys }
}

// WithStaticFS serves static files from fsys.
func WithStaticFS(fsys fs.FS) Option {
	return func(o *Options) { o.StaticFS = fsys }
}

// WithConfigSchema validates the config file against a JSON Schema.
func WithConfigSchema(schema []byte) Option {
	return func(o *Options) { o.ConfigSchema = schema }
}

// WithSetup registers fn to run on the assembled Conductor.
func WithSetup(fn func(*conductor.Conductor) error) Option {
	return func(o *Options) { o.Setup = fn }
}

// Build creates the logger, config, server and router described by s and
// composes them into a Conductor. The router is loaded but not activated.
func Build(s *settings.Settings, opts ...Option) (*conductor.Conductor, error) {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}

	logger := conductor.NewLogger(s.Environment, s.LogConfig(), o.LogOutput)

	var cfg *conductor.Config
	if s.ConfigFile != "" {
		var configOpts []conductor.ConfigOption
		if o.ConfigSchema != nil {
			configOpts = append(configOpts, conductor.WithSchema(o.ConfigSchema))
		}
		loaded, err := conductor.LoadConfig(s.ConfigFile, configOpts...)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		cfg = loaded
	}

	serverCfg := s.ServerConfig()
	serverCfg.Logger = logger
	serverCfg.Globals = o.Globals
	serverCfg.Config = cfg
	switch {
	case o.TemplatesFS != nil:
		serverCfg.TemplatesFS = o.TemplatesFS
		serverCfg.TemplatesDirectory = ""
	case serverCfg.TemplatesDirectory != "" && !isDir(serverCfg.TemplatesDirectory):
		logger.Warn("templates directory not found, template routes will fail",
			slog.String("templates", serverCfg.TemplatesDirectory))
		serverCfg.TemplatesDirectory = ""
	}
	if o.StaticFS != nil {
		serverCfg.StaticFS = o.StaticFS
	}
	server, err := conductor.NewServer(serverCfg)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	routerOpts := []conductor.RouterOption{conductor.WithRouterLogger(logger)}
	if o.Loader != nil {
		routerOpts = append(routerOpts, conductor.WithLoader(o.Loader))
	}
	router, err := conductor.NewRouter(s.RouterFile, routerOpts...)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	c := conductor.New(server, router, cfg,
		conductor.WithHost(s.Host),
		conductor.WithPort(s.Port),
		conductor.WithLogger(logger),
		conductor.WithShutdownTimeout(s.ShutdownTimeout),
	)
	if o.Setup != nil {
		if err := o.Setup(c); err != nil {
			return nil, fmt.Errorf("app: setup: %w", err)
		}
	}

	logger.Debug("application assembled",
		slog.String("environment", s.Environment),
		slog.String("router", s.RouterFile),
		slog.String("config", s.ConfigFile),
	)
	return c, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
