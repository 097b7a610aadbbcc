package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"moduletsx/pkg/document"
	"moduletsx/pkg/driver"
	"moduletsx/pkg/modules"
)

// unitsPath is where the server exposes generated units
const unitsPath = "/_units/"

func newServeCommand(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a directory, rewriting module-tsx scripts on the fly",
		Long: `Serve the --root directory over HTTP. HTML pages are rewritten so that their
module-tsx scripts load generated units, which are served under /_units/.
Every other file is served as is.

/_import?url=<specifier>&base=<url> transforms a module on demand and
redirects to its unit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return failure(err)
			}

			rootURL := "http://" + ln.Addr().String() + "/"
			s, err := a.newSession(sessionOptions{rootURL: rootURL, unitPrefix: unitsPath})
			if err != nil {
				ln.Close()
				return failure(err)
			}

			srv := &http.Server{
				Handler:           newServer(s, a.cfg.Server.Root, rootURL),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Serve(ln) }()
			a.logger.Info("serving", "url", rootURL, "root", a.cfg.Server.Root)

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return failure(err)
				}
				return nil
			case <-cmd.Context().Done():
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			a.logger.Info("shutting down")
			return srv.Shutdown(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from server.addr)")
	return cmd
}

// server routes requests to the unit store, the on-demand import endpoint,
// the page rewriter and the static file server
type server struct {
	session *driver.Session
	rootURL string
	files   http.Handler
	logger  *log.Logger
}

func newServer(s *driver.Session, root, rootURL string) http.Handler {
	srv := &server{
		session: s,
		rootURL: rootURL,
		files:   http.FileServer(http.Dir(root)),
		logger:  s.Logger().WithPrefix("server"),
	}

	mux := http.NewServeMux()
	mux.Handle(unitsPath, s.Store().Handler())
	mux.HandleFunc("/_import", srv.handleImport)
	mux.HandleFunc("/", srv.handleFile)
	return mux
}

func (srv *server) handleImport(w http.ResponseWriter, r *http.Request) {
	spec := r.URL.Query().Get("url")
	if spec == "" {
		http.Error(w, "missing url parameter", http.StatusBadRequest)
		return
	}
	base := r.URL.Query().Get("base")
	if base == "" {
		base = srv.rootURL
	}

	t := srv.session.Transformer()
	target, err := t.Locate(spec, base)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id, err := t.TransformURL(r.Context(), modules.KindModule, target)
	if err != nil {
		srv.logger.Error("import failed", "url", target, "error", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	http.Redirect(w, r, id, http.StatusFound)
}

func (srv *server) handleFile(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Path
	if strings.HasSuffix(p, "/") {
		p += "index.html"
	}
	if path.Ext(p) != ".html" || (r.Method != http.MethodGet && r.Method != http.MethodHead) {
		srv.files.ServeHTTP(w, r)
		return
	}

	ctx := r.Context()
	docURL := srv.rootURL + strings.TrimPrefix(p, "/")
	page, err := srv.session.Transformer().Fetch(ctx, docURL)
	if err != nil {
		srv.files.ServeHTTP(w, r)
		return
	}
	if _, err := srv.session.LoadDocument(ctx, strings.NewReader(page), docURL); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if r.Method == http.MethodHead {
		return
	}
	t := srv.session.Transformer()
	err = document.Rewrite(w, strings.NewReader(page), docURL, func(script *document.Script) (string, error) {
		if script.Inline() {
			return t.TransformInline(ctx, script.BaseURL, script.Code)
		}
		return t.TransformURL(ctx, modules.KindModule, script.Src)
	})
	if err != nil {
		srv.logger.Error("rewrite failed", "url", docURL, "error", err)
	}
}
