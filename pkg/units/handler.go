package units

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Handler serves registered units by the last path segment of the request.
// Mount it under the path the store's prefix points at.
func (s *Store) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		unit, ok := s.Lookup(s.idFromPath(r.URL.Path))
		if !ok {
			http.NotFound(w, r)
			return
		}

		etag := `"` + strconv.FormatUint(xxhash.Sum64String(unit.Code), 16) + `"`
		if match := r.Header.Get("If-None-Match"); match != "" && strings.Contains(match, etag) {
			w.WriteHeader(http.StatusNotModified)
			return
		}

		h := w.Header()
		h.Set("Content-Type", "application/javascript; charset=utf-8")
		h.Set("Etag", etag)
		h.Set("Cache-Control", "no-cache")
		h.Set("X-Source-URL", unit.SourceURL)
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write([]byte(unit.Code))
	})
}
