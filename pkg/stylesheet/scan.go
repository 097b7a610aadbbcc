package stylesheet

import (
	"fmt"

	"github.com/aymerick/douceur/css"
	"github.com/gorilla/css/scanner"
)

// syntaxError is a problem found by checkStructure
type syntaxError struct {
	Line   int
	Column int
	Msg    string
}

func (e *syntaxError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Msg)
}

// checkStructure rejects rule lists that the rule parser cannot make
// progress on: a block without a selector, and a selector ended by ';'.
// Blocks that hold declarations are not inspected further.
func checkStructure(cssText string) error {
	s := scanner.New(cssText)
	rules := []bool{true} // per open block: does it hold rules?
	prelude := ""         // "" outside a prelude, "qualified" or the at-rule name

	for {
		tok := s.Next()
		switch tok.Type {
		case scanner.TokenEOF:
			return nil
		case scanner.TokenError:
			return &syntaxError{tok.Line, tok.Column, tok.Value}
		case scanner.TokenS, scanner.TokenComment, scanner.TokenCDO, scanner.TokenCDC, scanner.TokenBOM:
			continue
		}

		inRules := rules[len(rules)-1]
		switch {
		case tok.Type == scanner.TokenChar && tok.Value == "{":
			switch {
			case !inRules:
				rules = append(rules, false)
			case prelude == "":
				return &syntaxError{tok.Line, tok.Column, "rule without selector"}
			case prelude == "qualified":
				rules = append(rules, false)
			default:
				at := css.Rule{Kind: css.AtRule, Name: prelude}
				rules = append(rules, at.EmbedsRules())
			}
			prelude = ""

		case tok.Type == scanner.TokenChar && tok.Value == "}":
			if len(rules) == 1 {
				return &syntaxError{tok.Line, tok.Column, "unexpected '}'"}
			}
			rules = rules[:len(rules)-1]
			prelude = ""

		case tok.Type == scanner.TokenChar && tok.Value == ";":
			if inRules && prelude == "" {
				return &syntaxError{tok.Line, tok.Column, "unexpected ';'"}
			}
			if inRules && prelude == "qualified" {
				return &syntaxError{tok.Line, tok.Column, "selector without a block"}
			}
			prelude = ""

		case inRules && prelude == "":
			if tok.Type == scanner.TokenAtKeyword {
				prelude = tok.Value
			} else {
				prelude = "qualified"
			}
		}
	}
}
