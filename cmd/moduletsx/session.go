package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"moduletsx/pkg/driver"
	"moduletsx/pkg/modules"
)

// sessionOptions describe where local files come from
type sessionOptions struct {
	root       string // Directory served by the file system fetcher; server.root when empty
	rootURL    string // URL root is mounted at; file:// URL of root when empty
	unitPrefix string // Overrides the configured unit prefix
}

// newSession creates a driver session with a file system fetcher for the
// local tree and an HTTP fetcher for everything else
func (a *app) newSession(opts sessionOptions) (*driver.Session, error) {
	root := opts.root
	if root == "" {
		root = a.cfg.Server.Root
	}
	fsFetcher, err := modules.NewOSFileSystemFetcher(root, opts.rootURL)
	if err != nil {
		return nil, err
	}

	httpFetcher := modules.NewHTTPFetcher(a.cfg.Fetch.Timeout, a.cfg.Fetch.Retries)
	httpFetcher.SetHeader("User-Agent", "moduletsx")

	extra, err := a.cfg.ImportMaps()
	if err != nil {
		return nil, err
	}

	prefix := a.cfg.Units.Prefix
	if opts.unitPrefix != "" {
		prefix = opts.unitPrefix
	}

	logger := a.logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Debug("fetchers ready", "fs", fsFetcher.Name(), "http", httpFetcher.String())

	return driver.NewSession(a.cfg.Modules(),
		driver.WithLogger(logger),
		driver.WithFetchers(fsFetcher, httpFetcher),
		driver.WithUnitPrefix(prefix),
		driver.WithImportMaps(extra...),
		driver.WithImportMapBase(fsFetcher.BaseURL()),
	), nil
}

// entryURL turns a command line argument into an absolute URL. Paths are
// resolved against the working directory and expressed as file:// URLs.
func entryURL(arg string) (string, error) {
	if u, err := url.Parse(arg); err == nil && u.IsAbs() && len(u.Scheme) > 1 {
		return arg, nil
	}
	abs, err := filepath.Abs(arg)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(abs); err != nil {
		return "", fmt.Errorf("entry %s: %w", arg, err)
	}
	return modules.FileURL(abs), nil
}
