package document

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<!doctype html>
<html>
<head>
  <script type="importmap">{"imports": {"react": "https://esm.sh/react@19"}}</script>
  <script type="importmap" src="maps/extra.json"></script>
  <script type="module" src="/native.js"></script>
</head>
<body>
  <div id="root"></div>
  <script type="module-tsx" src="./src/main.tsx"></script>
  <script type="module-tsx" async>
    import { render } from "./src/render.tsx";
    render(document.getElementById("root"), "a < b && c");
  </script>
  <script type="MODULE-TSX" src="/widgets.tsx" defer integrity="sha384-x" crossorigin></script>
</body>
</html>
`

func TestParse(t *testing.T) {
	doc, err := Parse(strings.NewReader(page), "https://site/app/index.html")
	require.NoError(t, err)

	require.Len(t, doc.ImportMaps, 2)
	assert.JSONEq(t, `{"imports": {"react": "https://esm.sh/react@19"}}`, string(doc.ImportMaps[0].JSON))
	assert.Empty(t, doc.ImportMaps[0].Src)
	assert.Equal(t, "https://site/app/maps/extra.json", doc.ImportMaps[1].Src)
	assert.Equal(t, 1, doc.ImportMaps[1].Index)

	require.Len(t, doc.Scripts, 3)

	main := doc.Scripts[0]
	assert.Equal(t, "https://site/app/src/main.tsx", main.Src)
	assert.False(t, main.Inline())
	assert.False(t, main.Async)

	inline := doc.Scripts[1]
	assert.True(t, inline.Inline())
	assert.True(t, inline.Async)
	assert.Equal(t, "https://site/app/index.html", inline.BaseURL)
	assert.Contains(t, inline.Code, `import { render } from "./src/render.tsx";`)
	assert.Contains(t, inline.Code, `"a < b && c"`)
	assert.Empty(t, inline.Unsupported())

	widgets := doc.Scripts[2]
	assert.Equal(t, "https://site/widgets.tsx", widgets.Src)
	assert.Equal(t, []string{"defer", "integrity", "crossorigin"}, widgets.Unsupported())
	assert.Equal(t, 2, widgets.Index)
}

func TestEmptyInlineImportMap(t *testing.T) {
	doc, err := Parse(strings.NewReader(`<script type="importmap">
	</script><script type="importmap"></script>`), "https://site/")
	require.NoError(t, err)

	require.Len(t, doc.ImportMaps, 2)
	for _, m := range doc.ImportMaps {
		assert.Equal(t, "{}", string(m.JSON))
	}
}

func TestParseHonoursBaseElement(t *testing.T) {
	html := `<head><base href="/static/"></head><body><script type="module-tsx" src="app.tsx"></script></body>`

	doc, err := Parse(strings.NewReader(html), "https://site/pages/index.html")
	require.NoError(t, err)
	require.Len(t, doc.Scripts, 1)
	assert.Equal(t, "https://site/static/app.tsx", doc.Scripts[0].Src)
	assert.Equal(t, "https://site/static/", doc.Scripts[0].BaseURL)
}

func TestUnsupportedAttributes(t *testing.T) {
	tests := []struct {
		script   Script
		expected []string
	}{
		{Script{}, nil},
		{Script{Async: true, Defer: true}, nil},
		{Script{Defer: true}, []string{"defer"}},
		{Script{Integrity: "sha256-abc"}, []string{"integrity"}},
		{Script{CrossOrigin: true, Async: true}, []string{"crossorigin"}},
	}
	for i, test := range tests {
		got := test.script.Unsupported()
		if strings.Join(got, ",") != strings.Join(test.expected, ",") {
			t.Errorf("case %d: got %v, expected %v", i, got, test.expected)
		}
	}
}

func TestRewrite(t *testing.T) {
	var seen []Script
	var out strings.Builder
	err := Rewrite(&out, strings.NewReader(page), "https://site/app/index.html", func(s *Script) (string, error) {
		seen = append(seen, *s)
		if s.Index == 2 {
			return "", errors.New(`cannot load "widgets"`)
		}
		return "/_units/" + string(rune('a'+s.Index)) + ".js", nil
	})
	require.NoError(t, err)

	require.Len(t, seen, 3)
	assert.Equal(t, "https://site/app/src/main.tsx", seen[0].Src)
	assert.True(t, seen[1].Inline())

	html := out.String()
	assert.Contains(t, html, `<script type="module" src="/_units/a.js"></script>`)
	assert.Contains(t, html, `<script type="module" src="/_units/b.js" async></script>`)
	assert.Contains(t, html, `console.error("cannot load \"widgets\"")`)
	assert.NotContains(t, html, "module-tsx")
	assert.NotContains(t, html, "render.tsx")

	// everything else is copied unchanged
	assert.Contains(t, html, `<script type="importmap">{"imports": {"react": "https://esm.sh/react@19"}}</script>`)
	assert.Contains(t, html, `<script type="module" src="/native.js"></script>`)
	assert.Contains(t, html, `<div id="root"></div>`)
	assert.True(t, strings.HasPrefix(html, "<!doctype html>"))
}

func TestRewriteWithoutScripts(t *testing.T) {
	const plain = "<html><body><p class=\"x\">Hello &amp; welcome</p></body></html>"
	var out strings.Builder
	err := Rewrite(&out, strings.NewReader(plain), "https://site/", func(*Script) (string, error) {
		t.Fatal("no script to rewrite")
		return "", nil
	})
	require.NoError(t, err)
	assert.Equal(t, plain, out.String())
}
