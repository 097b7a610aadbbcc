package modules

import (
	"context"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"

	"moduletsx/pkg/specifier"
)

// resolveAll resolves every specifier concurrently. Specifiers that resolve to
// themselves are left out of the result. When any resolution fails, the first
// error is returned once all of them have settled.
func (t *Transformer) resolveAll(ctx context.Context, specs []string, requester, baseURL string) (map[string]string, error) {
	targets := make([]string, len(specs))

	var g errgroup.Group
	for i, spec := range specs {
		g.Go(func() error {
			target, err := t.resolveOne(ctx, spec, requester, baseURL)
			if err != nil {
				return err
			}
			targets[i] = target
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	resolved := make(map[string]string, len(specs))
	for i, spec := range specs {
		if targets[i] != spec {
			resolved[spec] = targets[i]
		}
	}
	return resolved, nil
}

// resolveOne applies the resolution policy to a single specifier. requester
// is the cache key of the transform asking, baseURL the URL relative
// specifiers are resolved against.
func (t *Transformer) resolveOne(ctx context.Context, spec, requester, baseURL string) (string, error) {
	if target, ok := t.ImportMap().Resolve(spec, baseURL); ok {
		return target, nil
	}

	c := specifier.Classify(spec)
	switch c.Class {
	case specifier.Relative:
		target, err := resolveURL(baseURL, spec)
		if err != nil {
			return "", err
		}
		return t.resolveLocal(ctx, target, requester)

	case specifier.Prefixed:
		switch c.Prefix {
		case specifier.PrefixNPM:
			return t.resolvePackage(ctx, t.config.CDNBase+c.Remainder, c.Remainder, requester)
		case specifier.PrefixNode:
			return t.config.NodeLibsBase + c.Remainder + ".js", nil
		}
		return spec, nil

	case specifier.Bare:
		target, err := resolveURL(t.config.CDNBase, spec)
		if err != nil {
			return "", err
		}
		return t.resolvePackage(ctx, target, spec, requester)

	default:
		return spec, nil
	}
}

// resolveLocal handles an absolute target reached through a relative specifier
func (t *Transformer) resolveLocal(ctx context.Context, target, requester string) (string, error) {
	switch p := urlPath(target); {
	case strings.HasSuffix(p, ".module.css"):
		t.deps.AddDependency(requester, target)
		return t.transform(ctx, request{kind: KindStylesheetModule, key: target, baseURL: target, load: t.loader(target), parent: requester})

	case strings.HasSuffix(p, ".css"):
		t.deps.AddDependency(requester, target)
		return t.transform(ctx, request{kind: KindStylesheet, key: target, baseURL: target, parent: requester})

	case strings.HasSuffix(p, ".wasm"):
		return target, nil

	default:
		t.deps.AddDependency(requester, target)
		return t.transform(ctx, request{kind: KindModule, key: target, baseURL: target, load: t.loader(target), parent: requester})
	}
}

// resolvePackage routes a package stylesheet subpath to the stylesheet loader.
// Only the part after the package name is checked, so a package named like
// a stylesheet ("normalize.css") still resolves as code.
func (t *Transformer) resolvePackage(ctx context.Context, target, pkgSpec, requester string) (string, error) {
	_, subpath := specifier.SplitPackage(pkgSpec)
	if !strings.HasSuffix(urlPath(subpath), ".css") {
		return target, nil
	}
	t.deps.AddDependency(requester, target)
	return t.transform(ctx, request{kind: KindStylesheet, key: target, baseURL: target, parent: requester})
}

// Locate maps spec to the absolute URL it names, without fetching or
// transforming anything: import map first, then relative resolution against
// baseURL, then the CDN for package specifiers.
func (t *Transformer) Locate(spec, baseURL string) (string, error) {
	if target, ok := t.ImportMap().Resolve(spec, baseURL); ok {
		return target, nil
	}

	c := specifier.Classify(spec)
	switch c.Class {
	case specifier.Relative:
		return resolveURL(baseURL, spec)
	case specifier.Prefixed:
		if c.Prefix == specifier.PrefixNode {
			return t.config.NodeLibsBase + c.Remainder + ".js", nil
		}
		return t.config.CDNBase + c.Remainder, nil
	case specifier.Bare:
		return resolveURL(t.config.CDNBase, spec)
	default:
		return spec, nil
	}
}

func resolveURL(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}

// urlPath returns the path of rawURL without query or fragment
func urlPath(rawURL string) string {
	if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		rawURL = rawURL[:i]
	}
	return strings.ToLower(rawURL)
}
