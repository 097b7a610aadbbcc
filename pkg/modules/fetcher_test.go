package modules

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	merrors "moduletsx/pkg/errors"
)

func TestMemoryFetcher(t *testing.T) {
	f := NewMemoryFetcher("")
	f.AddModule("https://site/a.js", "a")
	f.AddModule("https://site/b.js", "b")

	assert.Equal(t, "Memory", f.Name())
	assert.True(t, f.CanFetch("https://site/a.js"))
	assert.False(t, f.CanFetch("https://site/c.js"))
	assert.Equal(t, []string{"https://site/a.js", "https://site/b.js"}, f.ListModules())

	code, err := f.Fetch(context.Background(), "https://site/a.js")
	require.NoError(t, err)
	assert.Equal(t, "a", code)
	assert.Equal(t, 1, f.FetchCount("https://site/a.js"))

	f.RemoveModule("https://site/a.js")
	_, err = f.Fetch(context.Background(), "https://site/a.js")
	var netErr *merrors.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, http.StatusNotFound, netErr.StatusCode)
}

func TestFileSystemFetcher(t *testing.T) {
	fsys := fstest.MapFS{
		"index.ts":     {Data: []byte("export {};")},
		"lib/util.tsx": {Data: []byte("export const x = <b/>;")},
	}
	f, err := NewFileSystemFetcher(fsys, "http://localhost:8808/app")
	require.NoError(t, err)

	tests := []struct {
		url      string
		canFetch bool
	}{
		{"http://localhost:8808/app/index.ts", true},
		{"http://localhost:8808/app/lib/util.tsx", true},
		{"http://localhost:8808/app/missing.ts", true},
		{"http://localhost:8808/other/index.ts", false},
		{"http://localhost:9000/app/index.ts", false},
		{"https://localhost:8808/app/index.ts", false},
		{"http://localhost:8808/app/", false},
	}
	for _, test := range tests {
		if got := f.CanFetch(test.url); got != test.canFetch {
			t.Errorf("CanFetch(%q) = %v, expected %v", test.url, got, test.canFetch)
		}
	}

	code, err := f.Fetch(context.Background(), "http://localhost:8808/app/lib/util.tsx")
	require.NoError(t, err)
	assert.Equal(t, "export const x = <b/>;", code)

	_, err = f.Fetch(context.Background(), "http://localhost:8808/app/missing.ts")
	var netErr *merrors.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, http.StatusNotFound, netErr.StatusCode)
}

func TestFetchChainPriority(t *testing.T) {
	preferred := NewMemoryFetcher("preferred")
	fallback := NewMemoryFetcher("fallback")
	fallback.SetPriority(60)
	preferred.AddModule("https://site/a.js", "preferred")
	fallback.AddModule("https://site/a.js", "fallback")
	fallback.AddModule("https://site/b.js", "fallback")

	chain := newFetchChain(2, fallback, preferred)
	ctx := context.Background()

	a, err := chain.Fetch(ctx, "https://site/a.js")
	require.NoError(t, err)
	assert.Equal(t, "preferred", a)

	b, err := chain.Fetch(ctx, "https://site/b.js")
	require.NoError(t, err)
	assert.Equal(t, "fallback", b)

	_, err = chain.Fetch(ctx, "https://site/c.js")
	assert.Equal(t, "Network", merrors.KindOf(err))
}

func TestHTTPFetcher(t *testing.T) {
	var flaky atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/ok.js", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("Authorization"))
		w.Write([]byte("export default 1;"))
	})
	mux.HandleFunc("/flaky.js", func(w http.ResponseWriter, r *http.Request) {
		if flaky.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("export default 2;"))
	})
	var missing atomic.Int32
	mux.HandleFunc("/missing.js", func(w http.ResponseWriter, r *http.Request) {
		missing.Add(1)
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := NewHTTPFetcher(5*time.Second, 3)
	f.SetHeader("Authorization", "secret")
	ctx := context.Background()

	assert.True(t, f.CanFetch(srv.URL+"/ok.js"))
	assert.False(t, f.CanFetch("file:///ok.js"))

	code, err := f.Fetch(ctx, srv.URL+"/ok.js")
	require.NoError(t, err)
	assert.Equal(t, "export default 1;", code)

	code, err = f.Fetch(ctx, srv.URL+"/flaky.js")
	require.NoError(t, err)
	assert.Equal(t, "export default 2;", code)
	assert.Equal(t, int32(3), flaky.Load())

	_, err = f.Fetch(ctx, srv.URL+"/missing.js")
	var netErr *merrors.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, http.StatusNotFound, netErr.StatusCode)
	assert.Equal(t, int32(1), missing.Load(), "4xx responses are not retried")
}

func TestHTTPFetcherWithClient(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("export default 3;"))
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(5*time.Second, 0).Fetch(context.Background(), srv.URL+"/x.js")
	require.Error(t, err, "the default client does not trust the test certificate")

	f := NewHTTPFetcher(5*time.Second, 0).WithClient(srv.Client())
	code, err := f.Fetch(context.Background(), srv.URL+"/x.js")
	require.NoError(t, err)
	assert.Equal(t, "export default 3;", code)
}
