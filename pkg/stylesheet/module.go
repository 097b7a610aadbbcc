package stylesheet

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"unicode"

	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
	"github.com/dlclark/regexp2"
	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	merrors "moduletsx/pkg/errors"
	"moduletsx/pkg/source"
	"moduletsx/pkg/syntax"
)

var classPattern = regexp2.MustCompile(`\.(-?[_a-zA-Z][\w-]*)`, regexp2.None)

// Module is a stylesheet whose class names have been replaced by aliases
type Module struct {
	CSS     string            // Rewritten stylesheet text
	Classes map[string]string // Original class name -> alias
}

// RewriteClasses parses cssText and replaces every class selector with an
// alias of the form <file prefix>_<class>_<random suffix>. Each class name
// gets exactly one alias per call.
func RewriteClasses(sourceURL, cssText string) (*Module, error) {
	var structErr *syntaxError
	if err := checkStructure(cssText); errors.As(err, &structErr) {
		return nil, &merrors.ParseError{
			Position: merrors.Position{Line: structErr.Line, Column: structErr.Column, Source: source.NewFile(sourceURL, cssText)},
			Msg:      "invalid stylesheet: " + structErr.Msg,
		}
	}

	sheet, err := parser.Parse(cssText)
	if err != nil {
		return nil, (&merrors.ParseError{
			Position: merrors.PositionAt(source.NewFile(sourceURL, cssText), 0, 0),
			Msg:      "invalid stylesheet: " + err.Error(),
		}).CausedBy(err)
	}

	r := &renamer{prefix: aliasPrefix(sourceURL), classes: make(map[string]string)}
	if err := r.rules(sheet.Rules); err != nil {
		return nil, (&merrors.TransformError{URL: sourceURL, Msg: "rewriting class selectors"}).CausedBy(err)
	}
	return &Module{CSS: sheet.String(), Classes: r.classes}, nil
}

// CSSModule returns code that injects the rewritten stylesheet in a <style>
// element and default-exports the class name mapping.
func CSSModule(sourceURL, cssText string) (string, error) {
	mod, err := RewriteClasses(sourceURL, cssText)
	if err != nil {
		return "", err
	}
	classes, err := json.Marshal(mod.Classes)
	if err != nil {
		return "", (&merrors.TransformError{URL: sourceURL, Msg: "encoding class map"}).CausedBy(err)
	}
	return fmt.Sprintf(`const style = document.createElement("style");
style.textContent = %s;
document.head.appendChild(style);
export default %s;
`, syntax.JSONString(mod.CSS), classes), nil
}

type renamer struct {
	prefix  string
	classes map[string]string
}

func (r *renamer) rules(rules []*css.Rule) error {
	for _, rule := range rules {
		if rule.Kind == css.QualifiedRule {
			for i, sel := range rule.Selectors {
				rewritten, err := r.selector(sel)
				if err != nil {
					return err
				}
				rule.Selectors[i] = rewritten
			}
			rule.Prelude = strings.Join(rule.Selectors, ", ")
		}
		if err := r.rules(rule.Rules); err != nil {
			return err
		}
	}
	return nil
}

// selector renames the classes of sel. Attribute selectors and quoted
// strings are copied unchanged.
func (r *renamer) selector(sel string) (string, error) {
	var b strings.Builder
	start := 0
	flush := func(end int) error {
		if start >= end {
			return nil
		}
		out, err := classPattern.ReplaceFunc(sel[start:end], r.replace, -1, -1)
		if err != nil {
			return err
		}
		b.WriteString(out)
		return nil
	}

	for i := 0; i < len(sel); i++ {
		var end int
		switch sel[i] {
		case '[':
			end = skipBracket(sel, i)
		case '"', '\'':
			end = skipString(sel, i)
		default:
			continue
		}
		if err := flush(i); err != nil {
			return "", err
		}
		b.WriteString(sel[i:end])
		start = end
		i = end - 1
	}
	if err := flush(len(sel)); err != nil {
		return "", err
	}
	return b.String(), nil
}

// skipBracket returns the offset just past the ']' closing the '[' at i
func skipBracket(sel string, i int) int {
	for j := i + 1; j < len(sel); j++ {
		switch sel[j] {
		case ']':
			return j + 1
		case '"', '\'':
			j = skipString(sel, j) - 1
		}
	}
	return len(sel)
}

// skipString returns the offset just past the quote closing the one at i
func skipString(sel string, i int) int {
	for j := i + 1; j < len(sel); j++ {
		switch sel[j] {
		case '\\':
			j++
		case sel[i]:
			return j + 1
		}
	}
	return len(sel)
}

func (r *renamer) replace(m regexp2.Match) string {
	name := m.GroupByNumber(1).String()
	alias, ok := r.classes[name]
	if !ok {
		alias = r.prefix + "_" + name + "_" + randomSuffix()
		r.classes[name] = alias
	}
	return "." + alias
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:5]
}

// aliasPrefix derives the alias prefix from the file name up to its first dot,
// with accents removed and anything outside [A-Za-z0-9] replaced by '_'.
func aliasPrefix(sourceURL string) string {
	name := path.Base(sourceURL)
	if i := strings.IndexByte(sourceURL, '?'); i >= 0 {
		name = path.Base(sourceURL[:i])
	}
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[:i]
	}
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if plain, _, err := transform.String(stripMarks, name); err == nil {
		name = plain
	}
	prefix := strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return r
		}
		return '_'
	}, name)
	if prefix == "" {
		return "css"
	}
	return prefix
}
