// Package settings loads the process-level settings of a conductor binary:
// where to listen, which router and config files to load and how to log.
// Values come from defaults, an optional .env file, CONDUCTOR_* environment
// variables and command-line flags, in increasing order of precedence.
package settings

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/karloscodes/conductor"
	"github.com/karloscodes/conductor/middleware"
)

// Environment names.
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// Settings are the process settings of a conductor application.
type Settings struct {
	AppName     string `mapstructure:"appname"`
	Environment string `mapstructure:"environment"`

	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	RouterFile         string `mapstructure:"router"`
	ConfigFile         string `mapstructure:"config"`
	TemplatesDirectory string `mapstructure:"templates"`
	StaticDirectory    string `mapstructure:"static"`

	LogLevel       string `mapstructure:"loglevel"`
	LogsDirectory  string `mapstructure:"logsdirectory"`
	LogsMaxSizeMB  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeDays int    `mapstructure:"logsmaxageindays"`

	MetricsPath      string        `mapstructure:"metricspath"`
	RateLimitMax     int           `mapstructure:"ratelimitmax"`
	RateLimitWindow  time.Duration `mapstructure:"ratelimitwindow"`
	RateLimitClients int64         `mapstructure:"ratelimitclients"`
	SameOrigin       bool          `mapstructure:"sameorigin"`
	ContentSecurity  string        `mapstructure:"contentsecuritypolicy"`
	HSTSMaxAge       int           `mapstructure:"hstsmaxage"`
	ShutdownTimeout  time.Duration `mapstructure:"shutdowntimeout"`
	ReadWriteTimeout time.Duration `mapstructure:"readwritetimeout"`

	envPrefix string
}

// flagKeys maps command-line flag names to setting keys.
var flagKeys = map[string]string{
	"env":       "environment",
	"host":      "host",
	"port":      "port",
	"router":    "router",
	"config":    "config",
	"templates": "templates",
	"static":    "static",
	"log-level": "loglevel",
	"metrics":   "metricspath",
}

type options struct {
	flags    *pflag.FlagSet
	envPaths []string
}

// Option customises Load.
type Option func(*options)

// WithFlags binds the flags in fs that share a name with a setting
// (env, host, port, router, config, templates, static, log-level, metrics).
// A flag overrides the environment only when it was set explicitly.
func WithFlags(fs *pflag.FlagSet) Option {
	return func(o *options) { o.flags = fs }
}

// WithEnvFilePaths sets the directories searched for a .env file.
// Defaults to the working directory.
func WithEnvFilePaths(paths ...string) Option {
	return func(o *options) { o.envPaths = paths }
}

// Load reads the settings for appName. Environment variables are prefixed
// with the upper-cased app name: Load("conductor") reads CONDUCTOR_PORT.
func Load(appName string, opts ...Option) (*Settings, error) {
	o := options{envPaths: []string{"."}}
	for _, opt := range opts {
		opt(&o)
	}

	appName = strings.ToLower(strings.TrimSpace(appName))
	if appName == "" {
		appName = "conductor"
	}
	prefix := strings.ToUpper(appName)

	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	for _, p := range o.envPaths {
		v.AddConfigPath(p)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("settings: read .env: %w", err)
		}
	}

	setDefaults(v, appName)
	applyEnvFile(v, prefix)
	if err := bindEnvVars(v, prefix); err != nil {
		return nil, err
	}
	if o.flags != nil {
		if err := bindFlags(v, o.flags); err != nil {
			return nil, err
		}
	}

	s := &Settings{envPrefix: prefix}
	if err := v.Unmarshal(s); err != nil {
		return nil, fmt.Errorf("settings: unmarshal: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func setDefaults(v *viper.Viper, appName string) {
	v.SetDefault("appname", appName)
	v.SetDefault("environment", Production)
	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("port", 8080)
	v.SetDefault("router", "router.json")
	v.SetDefault("config", "")
	v.SetDefault("templates", "templates")
	v.SetDefault("static", "")

	v.SetDefault("loglevel", "")
	v.SetDefault("logsdirectory", "storage/logs")
	v.SetDefault("logsmaxsizeinmb", 20)
	v.SetDefault("logsmaxbackups", 10)
	v.SetDefault("logsmaxageindays", 30)

	v.SetDefault("metricspath", "")
	v.SetDefault("ratelimitmax", 0)
	v.SetDefault("ratelimitwindow", time.Second)
	v.SetDefault("ratelimitclients", 10000)
	v.SetDefault("sameorigin", false)
	v.SetDefault("contentsecuritypolicy", "")
	v.SetDefault("hstsmaxage", 0)
	v.SetDefault("shutdowntimeout", 10*time.Second)
	v.SetDefault("readwritetimeout", 30*time.Second)
}

// envNames maps setting keys to environment variable names, without the
// app prefix.
var envNames = map[string]string{
	"environment":           "ENV",
	"host":                  "HOST",
	"port":                  "PORT",
	"router":                "ROUTER",
	"config":                "CONFIG",
	"templates":             "TEMPLATES",
	"static":                "STATIC",
	"loglevel":              "LOG_LEVEL",
	"logsdirectory":         "LOGS_DIR",
	"metricspath":           "METRICS_PATH",
	"ratelimitmax":          "RATE_LIMIT_MAX",
	"ratelimitwindow":       "RATE_LIMIT_WINDOW",
	"ratelimitclients":      "RATE_LIMIT_CLIENTS",
	"sameorigin":            "SAME_ORIGIN",
	"contentsecuritypolicy": "CONTENT_SECURITY_POLICY",
	"hstsmaxage":            "HSTS_MAX_AGE",
	"shutdowntimeout":       "SHUTDOWN_TIMEOUT",
	"readwritetimeout":      "READ_WRITE_TIMEOUT",
}

// applyEnvFile makes .env entries (CONDUCTOR_PORT=9000) defaults, so the
// real environment still wins over the file.
func applyEnvFile(v *viper.Viper, prefix string) {
	for key, env := range envNames {
		name := strings.ToLower(prefix + "_" + env)
		if v.InConfig(name) {
			v.SetDefault(key, v.Get(name))
		}
	}
}

func bindEnvVars(v *viper.Viper, prefix string) error {
	for key, env := range envNames {
		if err := v.BindEnv(key, prefix+"_"+env); err != nil {
			return fmt.Errorf("settings: bind %s: %w", env, err)
		}
	}
	return nil
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := fs.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("settings: bind flag --%s: %w", name, err)
		}
	}
	return nil
}

func (s *Settings) validate() error {
	var problems []string

	switch s.Environment {
	case Development, Production, Test:
	default:
		problems = append(problems, fmt.Sprintf("invalid %s_ENV value %q", s.envPrefix, s.Environment))
	}
	if s.Port < 1 || s.Port > 65535 {
		problems = append(problems, fmt.Sprintf("%s_PORT must be between 1 and 65535, got %d", s.envPrefix, s.Port))
	}
	if s.RouterFile == "" {
		problems = append(problems, fmt.Sprintf("%s_ROUTER is required", s.envPrefix))
	}

	if len(problems) > 0 {
		return fmt.Errorf("settings: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (s *Settings) IsDevelopment() bool { return s.Environment == Development }
func (s *Settings) IsProduction() bool  { return s.Environment == Production }
func (s *Settings) IsTest() bool        { return s.Environment == Test }

// Addr returns host:port.
func (s *Settings) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// LogConfig returns the logger settings.
func (s *Settings) LogConfig() conductor.LogConfig {
	return conductor.LogConfig{
		Level:      s.LogLevel,
		Directory:  s.LogsDirectory,
		MaxSizeMB:  s.LogsMaxSizeMB,
		MaxBackups: s.LogsMaxBackups,
		MaxAgeDays: s.LogsMaxAgeDays,
		AppName:    s.AppName,
	}
}

// ServerConfig returns a server configuration for these settings, with the
// standard middleware enabled.
func (s *Settings) ServerConfig() *conductor.ServerConfig {
	cfg := conductor.DefaultServerConfig()
	cfg.Environment = s.Environment
	cfg.TemplatesDirectory = s.TemplatesDirectory
	cfg.StaticDirectory = s.StaticDirectory
	cfg.MetricsPath = s.MetricsPath
	cfg.RateLimitMax = s.RateLimitMax
	cfg.RateLimitWindow = s.RateLimitWindow
	cfg.RateLimitClients = s.RateLimitClients
	cfg.EnableSameOrigin = s.SameOrigin
	cfg.Helmet = middleware.HelmetConfig{
		ContentSecurityPolicy: s.ContentSecurity,
		HSTSMaxAge:            s.HSTSMaxAge,
	}
	if s.ReadWriteTimeout > 0 {
		cfg.ReadTimeout = s.ReadWriteTimeout
		cfg.WriteTimeout = s.ReadWriteTimeout
	}
	return cfg
}
