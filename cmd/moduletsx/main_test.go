package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTree creates files below a fresh directory and makes it the working directory
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	t.Chdir(dir)
	return dir
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	a := newApp()
	a.stderr = &stderr

	cmd := newRootCommand(a)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr), "expected an ExitError, got %v", err)
	return exitErr.Code
}

var sources = map[string]string{
	"src/main.ts": `import { add } from "./util.ts";
console.log(add(1, 2));
`,
	"src/util.ts": `export const add = (a: number, b: number): number => a + b;
`,
	"src/broken.ts": `export const = ;`,
}

func TestTransformCommand(t *testing.T) {
	dir := writeTree(t, sources)

	stdout, _, err := execute(t, "transform", "--all", "src/main.ts")
	require.NoError(t, err)

	lines := strings.Split(stdout, "\n")
	assert.True(t, strings.HasPrefix(lines[0], "blob:moduletsx/"), "first line is the unit id: %q", lines[0])
	assert.Contains(t, stdout, "src/util.ts (module)")
	assert.Contains(t, stdout, "src/main.ts (module)")
	assert.Contains(t, stdout, `import.meta.url="file://`+filepath.ToSlash(dir))
	assert.NotContains(t, stdout, "b: number")
}

func TestTransformCommandErrors(t *testing.T) {
	writeTree(t, sources)

	_, _, err := execute(t, "transform", "src/missing.ts")
	require.Error(t, err)
	assert.Equal(t, exitUsage, exitCode(t, err))

	_, stderr, err := execute(t, "transform", "src/broken.ts")
	require.Error(t, err)
	assert.Equal(t, exitFailure, exitCode(t, err))
	assert.Contains(t, stderr, "export const = ;")
}

func TestGraphCommand(t *testing.T) {
	dir := writeTree(t, sources)
	mainURL := "file://" + filepath.ToSlash(filepath.Join(dir, "src/main.ts"))
	util := "file://" + filepath.ToSlash(filepath.Join(dir, "src/util.ts"))

	stdout, _, err := execute(t, "graph", "src/main.ts")
	require.NoError(t, err)
	assert.Contains(t, stdout, mainURL+" -> "+util)
	assert.Contains(t, stdout, "1. "+util+" (imported by 1, depth 0)")
	assert.Contains(t, stdout, "2. "+mainURL+" (imported by 0, depth 1)")
	assert.NotContains(t, stdout, "cycles:")
}

func TestBootstrapCommand(t *testing.T) {
	writeTree(t, map[string]string{
		"src/main.ts":   sources["src/main.ts"],
		"src/util.ts":   sources["src/util.ts"],
		"src/broken.ts": sources["src/broken.ts"],
		"index.html": `<html><body>
<script type="module-tsx" src="./src/main.ts"></script>
<script type="module-tsx">import { add } from "./src/util.ts"; console.log(add(2, 3));</script>
<script type="module-tsx" src="./src/broken.ts"></script>
</body></html>`,
	})

	stdout, _, err := execute(t, "bootstrap", "index.html")
	require.Error(t, err)
	assert.Equal(t, exitFailure, exitCode(t, err))
	assert.Contains(t, stdout, "ok   file://")
	assert.Contains(t, stdout, "ok   inline script #1")
	assert.Contains(t, stdout, "FAIL file://")
	assert.Contains(t, stdout, "src/broken.ts")
}

func TestInvalidConfig(t *testing.T) {
	writeTree(t, sources)

	_, _, err := execute(t, "--log-level", "loud", "transform", "src/main.ts")
	require.Error(t, err)
	assert.Equal(t, exitUsage, exitCode(t, err))
}

var unitSrc = regexp.MustCompile(`src="(/_units/[^"]+)"`)

func TestServer(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"src/main.ts": sources["src/main.ts"],
		"src/util.ts": sources["src/util.ts"],
		"style.css":   "body { color: red; }",
		"index.html": `<html><head><link rel="stylesheet" href="/style.css"></head><body>
<script type="module-tsx" src="./src/main.ts"></script>
<script type="module-tsx" src="./src/missing.ts"></script>
</body></html>`,
	})

	a := newApp()
	a.stderr = io.Discard
	require.NoError(t, a.load())

	ts := httptest.NewUnstartedServer(nil)
	rootURL := "http://" + ts.Listener.Addr().String() + "/"
	s, err := a.newSession(sessionOptions{root: dir, rootURL: rootURL, unitPrefix: unitsPath})
	require.NoError(t, err)
	ts.Config.Handler = newServer(s, dir, rootURL)
	ts.Start()
	defer ts.Close()

	get := func(path string) (*http.Response, string) {
		t.Helper()
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp, string(body)
	}

	resp, page := get("/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, page, `<link rel="stylesheet" href="/style.css">`)
	assert.NotContains(t, page, "module-tsx")
	assert.Contains(t, page, "console.error(")

	m := unitSrc.FindStringSubmatch(page)
	require.NotNil(t, m, page)
	resp, code := get(m[1])
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/javascript; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Contains(t, code, `import.meta.url="`+rootURL+`src/main.ts";`)
	assert.Contains(t, code, unitsPath)

	resp, code = get("/_import?url=./src/util.ts")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, code, "a + b")

	resp, _ = get("/_import")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, css := get("/style.css")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "body { color: red; }", css)
}
