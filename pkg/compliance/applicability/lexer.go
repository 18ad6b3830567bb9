package applicability

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokBool
	tokAnd
	tokOr
	tokNot
	tokCompare
	tokMinus
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	num  float64
	pos  int
}

var keywords = map[string]tokenKind{
	"and":   tokAnd,
	"or":    tokOr,
	"not":   tokNot,
	"true":  tokBool,
	"false": tokBool,
}

func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++
		case c == '-':
			toks = append(toks, token{kind: tokMinus, text: "-", pos: i})
			i++
		case c == '&' || c == '|':
			if i+1 >= len(src) || src[i+1] != c {
				return nil, syntaxError(i, "expected %q", string([]byte{c, c}))
			}
			kind := tokAnd
			if c == '|' {
				kind = tokOr
			}
			toks = append(toks, token{kind: kind, text: src[i : i+2], pos: i})
			i += 2
		case c == '<' || c == '>' || c == '=' || c == '!':
			op := string(c)
			if i+1 < len(src) && src[i+1] == '=' {
				op += "="
			}
			switch op {
			case "=":
				return nil, syntaxError(i, "assignment is not allowed, use ==")
			case "!":
				toks = append(toks, token{kind: tokNot, text: op, pos: i})
			default:
				toks = append(toks, token{kind: tokCompare, text: op, pos: i})
			}
			i += len(op)
		case c == '#':
			// Comment runs to the end of the line.
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case isDigit(c) || (c == '.' && i+1 < len(src) && isDigit(src[i+1])):
			start := i
			i = scanDigits(src, i)
			if i < len(src) && src[i] == '.' {
				i = scanDigits(src, i+1)
			}
			if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
				j := i + 1
				if j < len(src) && (src[j] == '+' || src[j] == '-') {
					j++
				}
				if j < len(src) && isDigit(src[j]) {
					i = scanDigits(src, j)
				}
			}
			text := src[start:i]
			if i < len(src) && (src[i] == '_' || src[i] == '.') {
				return nil, syntaxError(start, "bad number %q", src[start:i+1])
			}
			n, err := strconv.ParseFloat(strings.ReplaceAll(text, "_", ""), 64)
			if err != nil {
				return nil, syntaxError(start, "bad number %q", text)
			}
			toks = append(toks, token{kind: tokNumber, text: text, num: n, pos: start})
		case c == '_' || unicode.IsLetter(rune(c)):
			start := i
			for i < len(src) && (src[i] == '_' || isDigit(src[i]) || unicode.IsLetter(rune(src[i]))) {
				i++
			}
			text := src[start:i]
			if kind, ok := keywords[strings.ToLower(text)]; ok {
				toks = append(toks, token{kind: kind, text: strings.ToLower(text), pos: start})
				continue
			}
			toks = append(toks, token{kind: tokIdent, text: text, pos: start})
		default:
			return nil, syntaxError(i, "unexpected character %q", rune(c))
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(src)}), nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// scanDigits consumes a digit run starting at i. A single underscore is
// allowed between two digits.
func scanDigits(src string, i int) int {
	for i < len(src) {
		switch {
		case isDigit(src[i]):
			i++
		case src[i] == '_' && i > 0 && isDigit(src[i-1]) && i+1 < len(src) && isDigit(src[i+1]):
			i++
		default:
			return i
		}
	}
	return i
}

func syntaxError(pos int, format string, args ...any) error {
	return fmt.Errorf("%w at offset %d: %s", ErrSyntax, pos, fmt.Sprintf(format, args...))
}
