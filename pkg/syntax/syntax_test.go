package syntax

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	merrors "moduletsx/pkg/errors"
	"moduletsx/pkg/source"
)

func mustParse(t *testing.T, url, code string) *Tree {
	t.Helper()
	tree, err := Parse(source.NewFile(url, code))
	require.NoError(t, err)
	return tree
}

func TestCollectSpecifiers(t *testing.T) {
	code := `import a from "./a.ts";
import * as b from './b.ts';
import "./side-effect.css";
import type { T } from "./types.ts";
export { c } from "./c.ts";
export * from "lodash";
const d = await import("./d.ts");
const e = import(someVariable);
function nested() {
	return import("npm:nested@1");
}
import again from "./a.ts";
`
	tree := mustParse(t, "https://site/main.ts", code)

	assert.Equal(t, []string{
		"./a.ts",
		"./b.ts",
		"./side-effect.css",
		"./types.ts",
		"./c.ts",
		"lodash",
		"./d.ts",
		"npm:nested@1",
	}, CollectSpecifiers(tree))
}

func TestImportBindings(t *testing.T) {
	tree := mustParse(t, "https://site/main.tsx", `import React, { useState } from "react";
import * as Lib from "lib";
import type Only from "types";
`)

	var decls []*ImportDecl
	Walk(tree, func(n Node) bool {
		if d, ok := n.(*ImportDecl); ok {
			decls = append(decls, d)
		}
		return true
	})
	require.Len(t, decls, 3)
	assert.Equal(t, "React", decls[0].DefaultBinding)
	assert.Equal(t, "Lib", decls[1].NamespaceBinding)
	assert.True(t, decls[2].TypeOnly)
}

func TestRewritePreservesSurroundingText(t *testing.T) {
	code := `import { a, type B } from "./b.ts";
export * as ns from './ns.js';
const lazy = () => import("pkg");
`
	tree := mustParse(t, "https://site/x.js", code)
	rewritten := Rewrite(tree, map[string]string{
		"./b.ts":  "blob:u/1.js",
		"./ns.js": "blob:u/2.js",
		"pkg":     "https://esm.sh/pkg",
		"unused":  "https://nowhere",
	})

	expected := `import { a, type B } from "blob:u/1.js";
export * as ns from 'blob:u/2.js';
const lazy = () => import("https://esm.sh/pkg");
`
	assert.Equal(t, expected, Splice(rewritten))
	// the input tree is untouched
	assert.Equal(t, code, Splice(tree))
}

func TestRoundTripPlainJavaScript(t *testing.T) {
	code := "const x = 1;\nexport default function f() { return x * 2 }\n"
	tree := mustParse(t, "https://site/plain.js", code)

	require.Empty(t, CollectSpecifiers(tree))
	out, err := Print(Rewrite(tree, nil), PrintOptions{})
	require.NoError(t, err)
	assert.Equal(t, code, out)
}

func TestUnmappedSpecifierKeepsOriginalEscapes(t *testing.T) {
	code := `import x from "./a.js";` + "\n"
	tree := mustParse(t, "https://site/m.js", code)
	assert.Equal(t, []string{"./a.js"}, CollectSpecifiers(tree))

	out, err := Print(Rewrite(tree, map[string]string{}), PrintOptions{})
	require.NoError(t, err)
	assert.Equal(t, code, out)
}

func TestInjectRuntimeImport(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		inject   bool
		expected string
	}{
		{"no jsx", `export const x = 1;`, false, ""},
		{"jsx without runtime", `export const A = () => <div />;`, true, "react"},
		{"fragment", `export const A = () => <><span /></>;`, true, "react"},
		{"reuses existing specifier", `import { useState } from "https://esm.sh/react@18.2.0";
export const A = () => <div />;`, true, "https://esm.sh/react@18.2.0"},
		{"react-dom is not the runtime", `import { render } from "react-dom";
export const A = () => <div />;`, true, "react"},
		{"default import in scope", `import React from "preact/compat";
export const A = () => <div />;`, false, ""},
		{"namespace import in scope", `import * as React from "react";
export const A = () => <div />;`, false, ""},
		{"declared binding", `const React = globalThis.React;
export const A = () => <div />;`, false, ""},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			tree := mustParse(t, "https://site/c.tsx", test.code)
			injected, ok := InjectRuntimeImport(tree, DefaultRuntime)
			assert.Equal(t, test.inject, ok)
			if !ok {
				assert.Same(t, tree, injected)
				return
			}
			decl, isDecl := injected.Nodes[0].(*ImportDecl)
			require.True(t, isDecl)
			assert.True(t, decl.Synthetic)
			assert.Equal(t, "React", decl.DefaultBinding)
			assert.Equal(t, test.expected, decl.Source.Value)
			assert.Contains(t, CollectSpecifiers(injected), test.expected)
		})
	}
}

func TestInjectedImportIsRewritten(t *testing.T) {
	tree := mustParse(t, "https://site/c.tsx", `export const A = () => <b>hi</b>;`)
	tree, _ = InjectRuntimeImport(tree, DefaultRuntime)
	tree = Rewrite(tree, map[string]string{"react": "https://esm.sh/react"})

	assert.Contains(t, Splice(tree), `import React from "https://esm.sh/react";`)

	out, err := Print(tree, PrintOptions{})
	require.NoError(t, err)
	assert.Contains(t, out, `"https://esm.sh/react"`)
	assert.Contains(t, out, `React.createElement("b"`)
	assert.NotContains(t, out, "<b>")
}

func TestLowerTypeScript(t *testing.T) {
	tree := mustParse(t, "https://site/typed.ts", `import { helper } from "./helper.ts";
const n: number = helper(<number>1);
export default n;
`)
	assert.Equal(t, TypeScript, tree.Grammar)

	out, err := Print(Rewrite(tree, map[string]string{"./helper.ts": "blob:u/h.js"}), PrintOptions{})
	require.NoError(t, err)
	assert.Contains(t, out, `"blob:u/h.js"`)
	assert.NotContains(t, out, ": number")
}

func TestInlineSourceUsesTSX(t *testing.T) {
	tree, err := Parse(source.NewInlineSource("https://site/index.html", `const el: JSX.Element = <p />;`))
	require.NoError(t, err)
	assert.Equal(t, TSX, tree.Grammar)
	assert.True(t, NeedsLowering(tree))
}

func TestParseError(t *testing.T) {
	_, err := Parse(source.NewFile("https://site/bad.ts", "const ok = 1;\nimport { a from \"./a.ts\";\n"))
	require.Error(t, err)

	var parseErr *merrors.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "Parse", parseErr.Kind())
	assert.Equal(t, 2, parseErr.Line)
}

func TestQuoteAndUnescape(t *testing.T) {
	tests := []struct {
		value string
		quote byte
		want  string
	}{
		{"plain", '"', `"plain"`},
		{`it's`, '\'', `'it\'s'`},
		{`say "hi"`, '"', `"say \"hi\""`},
		{"a\\b", '"', `"a\\b"`},
		{"line\nbreak", '"', `"line\nbreak"`},
	}
	for _, test := range tests {
		got := quote(test.value, test.quote)
		if got != test.want {
			t.Errorf("quote(%q) = %s, expected %s", test.value, got, test.want)
		}
		if back := unescape(got[1 : len(got)-1]); back != test.value {
			t.Errorf("unescape(%s) = %q, expected %q", got, back, test.value)
		}
	}

	if got := unescape(`\x41B\u{43}`); got != "ABC" {
		t.Errorf("unescape of hex escapes = %q, expected ABC", got)
	}
}

func TestJSONString(t *testing.T) {
	tests := []struct {
		value string
		want  string
	}{
		{"https://x/?a=1&b=2", `"https://x/?a=1&b=2"`},
		{"<style>", `"<style>"`},
		{"tab\there", `"tab\there"`},
		{`quote"`, `"quote\""`},
	}
	for _, test := range tests {
		if got := JSONString(test.value); got != test.want {
			t.Errorf("JSONString(%q) = %s, expected %s", test.value, got, test.want)
		}
	}
}
