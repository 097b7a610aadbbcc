package modules

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	merrors "moduletsx/pkg/errors"
)

// FileSystemFetcher serves sources from an fs.FS mounted under a base URL.
// "https://site/app/x.ts" with base "https://site/" reads "app/x.ts".
type FileSystemFetcher struct {
	name     string   // Human-readable name
	fs       fs.FS    // File system to read from
	base     *url.URL // URL the root of fs is served at
	priority int      // Fetch priority
}

// NewFileSystemFetcher creates a fetcher for filesystem mounted at baseURL
func NewFileSystemFetcher(filesystem fs.FS, baseURL string) (*FileSystemFetcher, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	return &FileSystemFetcher{
		name:     "FileSystem",
		fs:       filesystem,
		base:     base,
		priority: 100, // Lower priority than specialized fetchers
	}, nil
}

// NewOSFileSystemFetcher creates a fetcher that reads from the OS file system
// below dir. Without a baseURL, dir is mounted at its file:// URL.
func NewOSFileSystemFetcher(dir, baseURL string) (*FileSystemFetcher, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		absDir = dir
	}
	if baseURL == "" {
		baseURL = FileURL(absDir) + "/"
	}

	f, err := NewFileSystemFetcher(os.DirFS(absDir), baseURL)
	if err != nil {
		return nil, err
	}
	f.name = "OSFileSystem"
	return f, nil
}

// FileURL returns the file:// URL of an absolute path
func FileURL(absPath string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(absPath)}).String()
}

// BaseURL returns the URL the root of the file system is mounted at
func (f *FileSystemFetcher) BaseURL() string {
	return f.base.String()
}

// Name returns the fetcher name
func (f *FileSystemFetcher) Name() string {
	return f.name
}

// Priority returns the fetcher priority
func (f *FileSystemFetcher) Priority() int {
	return f.priority
}

// CanFetch returns true if rawURL lies below the base URL
func (f *FileSystemFetcher) CanFetch(rawURL string) bool {
	_, ok := f.relativePath(rawURL)
	return ok
}

// Fetch reads the file rawURL maps to
func (f *FileSystemFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", (&merrors.NetworkError{URL: rawURL, Msg: "canceled"}).CausedBy(err)
	}

	name, ok := f.relativePath(rawURL)
	if !ok {
		return "", &merrors.NetworkError{URL: rawURL, StatusCode: http.StatusNotFound, Msg: "outside of " + f.base.String()}
	}

	data, err := fs.ReadFile(f.fs, name)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, fs.ErrNotExist) {
			status = http.StatusNotFound
		}
		return "", (&merrors.NetworkError{URL: rawURL, StatusCode: status, Msg: http.StatusText(status)}).CausedBy(err)
	}
	return string(data), nil
}

// relativePath maps rawURL to a path inside the file system
func (f *FileSystemFetcher) relativePath(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme != f.base.Scheme || u.Host != f.base.Host {
		return "", false
	}
	if !strings.HasPrefix(u.Path, f.base.Path) {
		return "", false
	}
	name := path.Clean(strings.TrimPrefix(u.Path, f.base.Path))
	if name == "." || !fs.ValidPath(name) {
		return "", false
	}
	return name, true
}
