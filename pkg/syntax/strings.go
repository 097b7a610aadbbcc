package syntax

import (
	"encoding/json"
	"strconv"
	"strings"
	"unicode/utf8"
)

// unescape decodes the escape sequences of a string literal body
func unescape(body string) string {
	if !strings.Contains(body, `\`) {
		return body
	}

	var sb strings.Builder
	sb.Grow(len(body))
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' || i+1 >= len(body) {
			sb.WriteByte(c)
			continue
		}
		i++
		switch esc := body[i]; esc {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case 'v':
			sb.WriteByte('\v')
		case '0':
			sb.WriteByte(0)
		case '\n':
			// line continuation
		case '\r':
			if i+1 < len(body) && body[i+1] == '\n' {
				i++
			}
		case 'x':
			if r, ok := hexRune(body, i+1, 2); ok {
				sb.WriteRune(r)
				i += 2
			} else {
				sb.WriteByte(esc)
			}
		case 'u':
			if i+1 < len(body) && body[i+1] == '{' {
				if closeIdx := strings.IndexByte(body[i+2:], '}'); closeIdx > 0 {
					if r, ok := hexRune(body, i+2, closeIdx); ok {
						sb.WriteRune(r)
						i += closeIdx + 2
						continue
					}
				}
				sb.WriteByte(esc)
			} else if r, ok := hexRune(body, i+1, 4); ok {
				sb.WriteRune(r)
				i += 4
			} else {
				sb.WriteByte(esc)
			}
		default:
			sb.WriteByte(esc)
		}
	}
	return sb.String()
}

func hexRune(s string, start, n int) (rune, bool) {
	if start+n > len(s) {
		return 0, false
	}
	v, err := strconv.ParseUint(s[start:start+n], 16, 32)
	if err != nil || v > utf8.MaxRune {
		return 0, false
	}
	return rune(v), true
}

// quote renders value as a string literal delimited by q
func quote(value string, q byte) string {
	var sb strings.Builder
	sb.Grow(len(value) + 2)
	sb.WriteByte(q)
	for _, r := range value {
		switch r {
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\u2028':
			sb.WriteString(`\u2028`)
		case '\u2029':
			sb.WriteString(`\u2029`)
		case rune(q):
			sb.WriteByte('\\')
			sb.WriteByte(q)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte(q)
	return sb.String()
}

// JSONString quotes s the way JSON.stringify does. Unlike json.Marshal it
// leaves <, > and & alone.
func JSONString(s string) string {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimSuffix(b.String(), "\n")
}
