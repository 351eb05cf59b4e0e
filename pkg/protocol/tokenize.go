package protocol

import (
	"errors"
	"strings"
	"unicode"
)

var (
	errUnterminatedQuote = errors.New("unterminated quote")
	errDanglingEscape    = errors.New("dangling escape")
)

var escapes = map[rune]rune{'n': '\n', 'r': '\r', 't': '\t'}

// Tokenize splits s into whitespace separated arguments. Double quotes group
// words and may produce an empty argument; a backslash escapes the next rune
// both inside and outside quotes.
func Tokenize(s string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inToken bool
		quoted  bool
		escaped bool
	)

	for _, r := range s {
		switch {
		case escaped:
			if mapped, ok := escapes[r]; ok {
				r = mapped
			}
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
			inToken = true
		case r == '"':
			quoted = !quoted
			inToken = true
		case unicode.IsSpace(r) && !quoted:
			if inToken {
				args = append(args, cur.String())
				cur.Reset()
				inToken = false
			}
		default:
			cur.WriteRune(r)
			inToken = true
		}
	}

	if escaped {
		return nil, errDanglingEscape
	}
	if quoted {
		return nil, errUnterminatedQuote
	}
	if inToken {
		args = append(args, cur.String())
	}
	return args, nil
}

// Quote renders one argument so that Tokenize returns it unchanged.
func Quote(arg string) string {
	if arg != "" && !strings.ContainsFunc(arg, needsQuoting) {
		return arg
	}

	var sb strings.Builder
	sb.Grow(len(arg) + 2)
	sb.WriteByte('"')
	for _, r := range arg {
		switch r {
		case '"', '\\':
			sb.WriteByte('\\')
			sb.WriteRune(r)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

func needsQuoting(r rune) bool {
	return unicode.IsSpace(r) || r == '"' || r == '\\'
}
