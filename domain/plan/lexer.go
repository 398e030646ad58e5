package plan

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokName
	tokInt
	tokFloat
	tokString
	tokPunct // one of { } ( ) [ ] : = @ ! $ &
	tokSpread
)

type token struct {
	kind  tokenKind
	text  string
	pos   int
}

type lexer struct {
	src    []rune
	pos    int
	tokens []token
}

func lex(src string) ([]token, error) {
	l := &lexer{src: []rune(src)}
	for {
		l.skipIgnored()
		if l.pos >= len(l.src) {
			l.tokens = append(l.tokens, token{kind: tokEOF, pos: l.pos})
			break
		}

		c := l.src[l.pos]
		switch {
		case c == '.' && l.peekN(3) == "...":
			l.tokens = append(l.tokens, token{kind: tokSpread, text: "...", pos: l.pos})
			l.pos += 3
		case strings.ContainsRune("{}()[]:=@!$&", c):
			l.tokens = append(l.tokens, token{kind: tokPunct, text: string(c), pos: l.pos})
			l.pos++
		case c == '"':
			s, err := l.readString()
			if err != nil {
				return nil, err
			}
			l.tokens = append(l.tokens, token{kind: tokString, text: s, pos: l.pos})
		case unicode.IsLetter(c) || c == '_':
			start := l.pos
			for l.pos < len(l.src) && (unicode.IsLetter(l.src[l.pos]) || unicode.IsDigit(l.src[l.pos]) || l.src[l.pos] == '_') {
				l.pos++
			}
			l.tokens = append(l.tokens, token{kind: tokName, text: string(l.src[start:l.pos]), pos: start})
		case unicode.IsDigit(c) || (c == '-' && l.pos+1 < len(l.src) && unicode.IsDigit(l.src[l.pos+1])):
			start := l.pos
			isFloat := false
			if c == '-' {
				l.pos++
			}
			for l.pos < len(l.src) && unicode.IsDigit(l.src[l.pos]) {
				l.pos++
			}
			if l.pos < len(l.src) && l.src[l.pos] == '.' {
				isFloat = true
				l.pos++
				for l.pos < len(l.src) && unicode.IsDigit(l.src[l.pos]) {
					l.pos++
				}
			}
			if l.pos < len(l.src) && (l.src[l.pos] == 'e' || l.src[l.pos] == 'E') {
				isFloat = true
				l.pos++
				if l.pos < len(l.src) && (l.src[l.pos] == '+' || l.src[l.pos] == '-') {
					l.pos++
				}
				for l.pos < len(l.src) && unicode.IsDigit(l.src[l.pos]) {
					l.pos++
				}
			}
			kind := tokInt
			if isFloat {
				kind = tokFloat
			}
			l.tokens = append(l.tokens, token{kind: kind, text: string(l.src[start:l.pos]), pos: start})
		default:
			return nil, fmt.Errorf("plan: unexpected character %q at %d", c, l.pos)
		}
	}
	return l.tokens, nil
}

func (l *lexer) peekN(n int) string {
	end := l.pos + n
	if end > len(l.src) {
		end = len(l.src)
	}
	return string(l.src[l.pos:end])
}

func (l *lexer) skipIgnored() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == ',':
			l.pos++
		case c == '#':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		default:
			return
		}
	}
}

func (l *lexer) readString() (string, error) {
	l.pos++ // opening quote
	var sb strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == '"' {
			l.pos++
			return sb.String(), nil
		}
		if c == '\\' && l.pos+1 < len(l.src) {
			l.pos++
			switch l.src[l.pos] {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			case '"':
				sb.WriteRune('"')
			case '\\':
				sb.WriteRune('\\')
			default:
				sb.WriteRune(l.src[l.pos])
			}
			l.pos++
			continue
		}
		sb.WriteRune(c)
		l.pos++
	}
	return "", fmt.Errorf("plan: unterminated string literal")
}
