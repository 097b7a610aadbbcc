package main

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"moduletsx/pkg/config"
)

// app carries state shared by all commands
type app struct {
	v       *viper.Viper
	cfg     *config.Config
	cfgFile string
	logger  *log.Logger
	stderr  io.Writer
}

func newApp() *app {
	return &app{v: config.New(), stderr: os.Stderr}
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "moduletsx",
		Short: "Run TypeScript and JSX modules without a build step",
		Long: `moduletsx rewrites TypeScript/JSX modules at load time so that every import
resolves to something a browser can load natively: local files become
generated units, packages resolve through the import map or the CDN.

Examples:
  moduletsx transform ./src/main.tsx       Transform an entry and print its unit id
  moduletsx graph ./src/main.tsx           Print the dependency graph of an entry
  moduletsx bootstrap ./index.html         Run every module-tsx script of a page
  moduletsx serve --root ./site            Serve a directory with rewritten pages`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is ./moduletsx.{yaml,toml,json})")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("cdn", "https://esm.sh/", "CDN base URL for package specifiers")
	flags.String("jsx-runtime", "react", "package providing the JSX runtime")
	flags.StringSlice("importmap", nil, "extra import map files merged after the document's")
	flags.Int("max-fetches", 16, "maximum number of concurrent fetches")
	flags.String("root", ".", "directory local files are read from")
	_ = a.v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = a.v.BindPFlag("cdn.base", flags.Lookup("cdn"))
	_ = a.v.BindPFlag("jsx.runtime", flags.Lookup("jsx-runtime"))
	_ = a.v.BindPFlag("importmap.files", flags.Lookup("importmap"))
	_ = a.v.BindPFlag("fetch.max_concurrency", flags.Lookup("max-fetches"))
	_ = a.v.BindPFlag("server.root", flags.Lookup("root"))

	root.AddCommand(
		newTransformCommand(a),
		newGraphCommand(a),
		newBootstrapCommand(a),
		newServeCommand(a),
	)
	return root
}

// load reads the configuration and sets up logging
func (a *app) load() error {
	cfg, used, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return &ExitError{Code: exitUsage, Err: err}
	}
	a.cfg = cfg

	a.logger = log.NewWithOptions(a.stderr, log.Options{
		Prefix: config.AppName,
		Level:  cfg.LogLevel(),
	})
	if used != "" {
		a.logger.Debug("configuration loaded", "file", used)
	}
	return nil
}
