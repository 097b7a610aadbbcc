package source

import (
	"net/url"
	"path"
	"strings"
	"unicode/utf8"
)

// File represents a module's source text together with the URL it was loaded from
type File struct {
	Name    string   // Display name (e.g., "main.tsx", "<inline>")
	URL     string   // Absolute source URL; for inline scripts this is the document URL
	Content string   // The source code content
	Inline  bool     // True when the code came from an inline <script> rather than a fetch
	lines   []string // Cached split lines (lazy initialization)
}

// NewFile creates a source file for code fetched from sourceURL
func NewFile(sourceURL, content string) *File {
	return &File{
		Name:    baseName(sourceURL),
		URL:     sourceURL,
		Content: content,
	}
}

// NewInlineSource creates a source file for code embedded in a document at baseURL
func NewInlineSource(baseURL, content string) *File {
	return &File{
		Name:    "<inline>",
		URL:     baseURL,
		Content: content,
		Inline:  true,
	}
}

// Lines returns the source split into lines (cached)
func (f *File) Lines() []string {
	if f.lines == nil {
		f.lines = strings.Split(f.Content, "\n")
	}
	return f.lines
}

// DisplayPath returns the best name for display (prefers URL, falls back to Name)
func (f *File) DisplayPath() string {
	if f.URL != "" && !f.Inline {
		return f.URL
	}
	if f.URL != "" {
		return f.Name + " in " + f.URL
	}
	return f.Name
}

// Ext returns the lower-cased extension of the URL path ("" when there is none).
// Inline sources never report an extension since the document URL says nothing
// about the script's language.
func (f *File) Ext() string {
	if f.Inline {
		return ""
	}
	return PathExt(f.URL)
}

// Location converts a byte offset into a 1-based line and column (rune index within the line)
func (f *File) Location(offset int) (line, column int) {
	if offset < 0 {
		offset = 0
	}
	if offset > len(f.Content) {
		offset = len(f.Content)
	}
	prefix := f.Content[:offset]
	line = strings.Count(prefix, "\n") + 1
	lineStart := strings.LastIndexByte(prefix, '\n') + 1
	column = utf8.RuneCountInString(prefix[lineStart:]) + 1
	return line, column
}

// PathExt returns the lower-cased extension of the path component of rawURL
func PathExt(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	return strings.ToLower(path.Ext(p))
}

func baseName(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		if name := path.Base(u.Path); name != "/" && name != "." {
			return name
		}
	}
	return rawURL
}
