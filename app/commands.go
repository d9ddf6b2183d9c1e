package app

import (
	"fmt"
	"runtime"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/karloscodes/conductor"
	"github.com/karloscodes/conductor/settings"
)

// NewRootCommand returns the command tree of a conductor application:
//
//	serve     activate the router and serve until interrupted
//	routes    print the routes the router file declares
//	validate  check the router and config files without serving
//	version   print the framework and file format versions
//
// name selects the environment variable prefix (NAME_PORT, NAME_ROUTER...).
func NewRootCommand(name, short string, opts ...Option) *cobra.Command {
	root := &cobra.Command{
		Use:           name,
		Short:         short,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.String("env", settings.Production, "environment: development, production or test")
	pf.String("router", "router.json", "router file")
	pf.String("config", "", "config file")
	pf.String("templates", "templates", "templates directory")
	pf.String("log-level", "", "minimum log level: debug, info, warn or error")

	root.AddCommand(
		serveCmd(name, opts),
		routesCmd(name, opts),
		validateCmd(name, opts),
		versionCmd(),
	)
	return root
}

func load(cmd *cobra.Command, name string, opts []Option) (*conductor.Conductor, *settings.Settings, error) {
	s, err := settings.Load(name, settings.WithFlags(cmd.Flags()))
	if err != nil {
		return nil, nil, err
	}
	c, err := Build(s, append([]Option{WithLogOutput(cmd.ErrOrStderr())}, opts...)...)
	if err != nil {
		return nil, nil, err
	}
	return c, s, nil
}

func serveCmd(name string, opts []Option) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Activate the router and serve HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := load(cmd, name, opts)
			if err != nil {
				return err
			}
			return c.Run(cmd.Context())
		},
	}
	cmd.Flags().String("host", "127.0.0.1", "bind host")
	cmd.Flags().Int("port", 8080, "bind port")
	cmd.Flags().String("static", "", "static files directory, served under /static")
	cmd.Flags().String("metrics", "", "path exposing Prometheus metrics, e.g. /metrics")
	return cmd
}

func routesCmd(name string, opts []Option) *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "Print the routes declared by the router file",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := load(cmd, name, opts)
			if err != nil {
				return err
			}
			if err := c.Router().Activate(c.Server()); err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ROUTE\tMETHODS\tPATH\tENDPOINT\tTARGET")
			for _, meta := range c.Router().Routes() {
				path, endpoint := meta.Pattern, meta.Endpoint
				if meta.IsErrorRoute() {
					path = fmt.Sprintf("(status %d)", meta.ErrorCode)
					endpoint = "-"
				}
				target := meta.Template
				if meta.Renderer != "" {
					target = meta.Renderer
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					meta.RawRoute, strings.Join(meta.Methods, ","), path, endpoint, target)
			}
			return w.Flush()
		},
	}
}

func validateCmd(name string, opts []Option) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the router and config files",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, s, err := load(cmd, name, opts)
			if err != nil {
				return err
			}
			if err := c.Router().Activate(c.Server()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d routes ok\n", s.RouterFile, len(c.Router().Routes()))
			if cfg := c.Config(); cfg != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d attributes ok\n", s.ConfigFile, len(cfg.Keys()))
			}
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "  Version:        %s\n", conductor.Version)
			fmt.Fprintf(out, "  Router format:  %s\n", conductor.RouterVersion)
			fmt.Fprintf(out, "  Config format:  %s\n", conductor.ConfigVersion)
			fmt.Fprintf(out, "  Go version:     %s\n", runtime.Version())
		},
	}
}
