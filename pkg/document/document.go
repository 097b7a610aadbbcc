// Package document discovers import maps and module-tsx scripts in an HTML
// document and rewrites pages so their scripts point at generated units.
package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// ScriptType is the type attribute value that marks scripts handled by moduletsx
const ScriptType = "module-tsx"

// ImportMapType is the type attribute value of declarative import maps
const ImportMapType = "importmap"

// ImportMap is one <script type="importmap"> declaration
type ImportMap struct {
	Index int    // Position among the document's import maps
	Src   string // Absolute URL when the map is external
	JSON  []byte // Inline map text
}

// Script is one <script type="module-tsx"> declaration
type Script struct {
	Index       int
	Src         string // Absolute URL; empty for inline scripts
	Code        string // Inline source
	BaseURL     string // URL inline code is resolved against
	Async       bool
	Defer       bool
	Integrity   string
	CrossOrigin bool
}

// Inline reports whether the script carries its own code
func (s *Script) Inline() bool {
	return s.Src == ""
}

// Unsupported lists the attributes that moduletsx ignores on this script
func (s *Script) Unsupported() []string {
	var attrs []string
	if s.Defer && !s.Async {
		attrs = append(attrs, "defer")
	}
	if s.Integrity != "" {
		attrs = append(attrs, "integrity")
	}
	if s.CrossOrigin {
		attrs = append(attrs, "crossorigin")
	}
	return attrs
}

// String describes the script for logs
func (s *Script) String() string {
	if s.Inline() {
		return fmt.Sprintf("inline script #%d in %s", s.Index, s.BaseURL)
	}
	return s.Src
}

// Document is the result of discovery
type Document struct {
	URL        string
	ImportMaps []ImportMap
	Scripts    []Script
}

// Parse reads an HTML document located at docURL and collects its import
// maps and module-tsx scripts in document order.
func Parse(r io.Reader, docURL string) (*Document, error) {
	base, err := url.Parse(docURL)
	if err != nil {
		return nil, fmt.Errorf("document URL %q: %w", docURL, err)
	}

	doc := &Document{URL: docURL}
	z := html.NewTokenizer(r)
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if z.Err() == io.EOF {
				return doc, nil
			}
			return nil, z.Err()
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}

		name, _ := z.TagName()
		switch string(name) {
		case "base":
			base = baseHref(base, readAttrs(z))
		case "script":
			if tt == html.SelfClosingTagToken {
				continue
			}
			attrs := readAttrs(z)
			switch scriptType(attrs) {
			case ImportMapType:
				m := ImportMap{Index: len(doc.ImportMaps)}
				if src, ok := attrs["src"]; ok {
					m.Src = resolve(base, src)
				}
				m.JSON = []byte(scriptText(z))
				if m.Src == "" && len(bytes.TrimSpace(m.JSON)) == 0 {
					m.JSON = []byte("{}")
				}
				doc.ImportMaps = append(doc.ImportMaps, m)
			case ScriptType:
				s := newScript(base, attrs)
				s.Index = len(doc.Scripts)
				if text := scriptText(z); s.Inline() {
					s.Code = text
				}
				doc.Scripts = append(doc.Scripts, s)
			}
		}
	}
}

// Rewriter maps a discovered script to the URL of the unit that replaces it
type Rewriter func(s *Script) (string, error)

// Rewrite copies the HTML document from r to w, replacing every module-tsx
// script by a native module script whose src is returned by rewrite. All
// other markup is copied byte for byte. When rewrite fails the script is
// replaced by one that reports the error in the console.
func Rewrite(w io.Writer, r io.Reader, docURL string, rewrite Rewriter) error {
	base, err := url.Parse(docURL)
	if err != nil {
		return fmt.Errorf("document URL %q: %w", docURL, err)
	}

	z := html.NewTokenizer(r)
	index := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if z.Err() == io.EOF {
				return nil
			}
			return z.Err()
		}

		if tt == html.StartTagToken {
			raw := bytes.Clone(z.Raw())
			name, _ := z.TagName()
			switch string(name) {
			case "base":
				base = baseHref(base, readAttrs(z))
			case "script":
				attrs := readAttrs(z)
				if scriptType(attrs) != ScriptType {
					break
				}
				s := newScript(base, attrs)
				s.Index = index
				index++
				if text := scriptText(z); s.Inline() {
					s.Code = text
				}
				if err := writeScript(w, &s, rewrite); err != nil {
					return err
				}
				continue
			}
			if _, err := w.Write(raw); err != nil {
				return err
			}
			continue
		}

		if tt == html.SelfClosingTagToken {
			if name, _ := z.TagName(); string(name) == "base" {
				base = baseHref(base, readAttrs(z))
			}
		}
		if _, err := w.Write(z.Raw()); err != nil {
			return err
		}
	}
}

func writeScript(w io.Writer, s *Script, rewrite Rewriter) error {
	target, err := rewrite(s)
	if err != nil {
		_, werr := fmt.Fprintf(w, "<script type=\"module\">console.error(%s)</script>", jsString(err.Error()))
		return werr
	}

	var b strings.Builder
	b.WriteString(`<script type="module" src="`)
	b.WriteString(html.EscapeString(target))
	b.WriteByte('"')
	if s.Async {
		b.WriteString(" async")
	}
	b.WriteString("></script>")
	_, err = io.WriteString(w, b.String())
	return err
}

func scriptType(attrs map[string]string) string {
	return strings.ToLower(strings.TrimSpace(attrs["type"]))
}

// baseHref applies a <base href> element to the current base URL
func baseHref(base *url.URL, attrs map[string]string) *url.URL {
	href, ok := attrs["href"]
	if !ok {
		return base
	}
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return base
	}
	return base.ResolveReference(u)
}

// readAttrs returns the attributes of the current tag. Keys are lower case.
func readAttrs(z *html.Tokenizer) map[string]string {
	attrs := map[string]string{}
	for {
		key, val, more := z.TagAttr()
		if len(key) > 0 {
			attrs[string(key)] = string(val)
		}
		if !more {
			return attrs
		}
	}
}

// scriptText consumes the body of the current <script> element up to and
// including its end tag, and returns the text.
func scriptText(z *html.Tokenizer) string {
	var b strings.Builder
	for {
		switch z.Next() {
		case html.TextToken:
			b.Write(z.Text())
		case html.EndTagToken:
			if name, _ := z.TagName(); string(name) == "script" {
				return b.String()
			}
		case html.ErrorToken:
			return b.String()
		}
	}
}

func newScript(base *url.URL, attrs map[string]string) Script {
	s := Script{BaseURL: base.String()}
	if src, ok := attrs["src"]; ok && strings.TrimSpace(src) != "" {
		s.Src = resolve(base, strings.TrimSpace(src))
	}
	_, s.Async = attrs["async"]
	_, s.Defer = attrs["defer"]
	s.Integrity = attrs["integrity"]
	_, s.CrossOrigin = attrs["crossorigin"]
	return s
}

func resolve(base *url.URL, ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
