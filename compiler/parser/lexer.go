package parser

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

type tokenType int

const (
	tokEOF tokenType = iota
	tokIdent
	tokString
	tokNumber
	tokTime
	tokAnnotation
	tokPunct
)

func (t tokenType) String() string {
	switch t {
	case tokEOF:
		return "end of input"
	case tokIdent:
		return "identifier"
	case tokString:
		return "string"
	case tokNumber:
		return "number"
	case tokTime:
		return "time literal"
	case tokAnnotation:
		return "annotation"
	}
	return "punctuation"
}

type token struct {
	typ tokenType
	// text is the identifier name, the unquoted string, or the literal
	// spelling of anything else.
	text string
	// quoted is true for a back-quoted identifier, which is never a
	// keyword.
	quoted bool
	pos    int
	end    int
}

func (t token) is(punct string) bool {
	return t.typ == tokPunct && t.text == punct
}

func (t token) isKeyword(kw string) bool {
	return t.typ == tokIdent && !t.quoted && t.text == kw
}

func (t token) describe() string {
	switch t.typ {
	case tokEOF:
		return "end of input"
	case tokString:
		return fmt.Sprintf("string %q", t.text)
	}
	return fmt.Sprintf("'%s'", t.text)
}

// puncts is ordered so that longer operators match first.
var puncts = []string{"->", "!=", "<=", ">=", ".*", "{", "}", "(", ")", ",", ":", ";", ".", "+", "-", "*", "/", "%", "=", "<", ">", "~"}

type lexError struct {
	msg string
	pos int
	end int
}

func lex(text string) ([]token, *lexError) {
	var toks []token
	i := 0
	for {
		i = skipSpace(text, i)
		if i >= len(text) {
			toks = append(toks, token{typ: tokEOF, pos: len(text), end: len(text)})
			return toks, nil
		}
		c := text[i]
		switch {
		case c == '#':
			j := lineEnd(text, i)
			toks = append(toks, token{typ: tokAnnotation, text: strings.TrimRight(text[i:j], " \t\r"), pos: i, end: j})
			i = j
		case c == '\'' || c == '"':
			s, j, err := lexString(text, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{typ: tokString, text: s, pos: i, end: j})
			i = j
		case c == '`':
			j := strings.IndexByte(text[i+1:], '`')
			if j < 0 {
				return nil, &lexError{"unterminated quoted identifier", i, len(text)}
			}
			name := norm.NFC.String(text[i+1 : i+1+j])
			toks = append(toks, token{typ: tokIdent, text: name, quoted: true, pos: i, end: i + j + 2})
			i += j + 2
		case c == '@':
			j := lexTime(text, i+1)
			if j == i+1 {
				return nil, &lexError{"illegal time literal", i, i + 1}
			}
			toks = append(toks, token{typ: tokTime, text: text[i+1 : j], pos: i, end: j})
			i = j
		case isDigit(c):
			j := i
			for j < len(text) && isDigit(text[j]) {
				j++
			}
			if j+1 < len(text) && text[j] == '.' && isDigit(text[j+1]) {
				j++
				for j < len(text) && isDigit(text[j]) {
					j++
				}
			}
			toks = append(toks, token{typ: tokNumber, text: text[i:j], pos: i, end: j})
			i = j
		default:
			r, size := utf8.DecodeRuneInString(text[i:])
			if r == '_' || unicode.IsLetter(r) {
				j := i + size
				for j < len(text) {
					r, size := utf8.DecodeRuneInString(text[j:])
					if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
						break
					}
					j += size
				}
				toks = append(toks, token{typ: tokIdent, text: text[i:j], pos: i, end: j})
				i = j
				continue
			}
			p := matchPunct(text[i:])
			if p == "" {
				return nil, &lexError{fmt.Sprintf("illegal character %q", r), i, i + size}
			}
			toks = append(toks, token{typ: tokPunct, text: p, pos: i, end: i + len(p)})
			i += len(p)
		}
	}
}

func matchPunct(s string) string {
	for _, p := range puncts {
		if strings.HasPrefix(s, p) {
			return p
		}
	}
	return ""
}

// skipSpace skips white space and comments, which are "//" or "--" to the
// end of the line.
func skipSpace(text string, i int) int {
	for i < len(text) {
		switch {
		case text[i] == ' ' || text[i] == '\t' || text[i] == '\n' || text[i] == '\r':
			i++
		case strings.HasPrefix(text[i:], "//") || strings.HasPrefix(text[i:], "--"):
			i = lineEnd(text, i)
		default:
			return i
		}
	}
	return i
}

func lineEnd(text string, i int) int {
	if j := strings.IndexByte(text[i:], '\n'); j >= 0 {
		return i + j
	}
	return len(text)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func lexString(text string, i int) (string, int, *lexError) {
	quote := text[i]
	var b strings.Builder
	for j := i + 1; j < len(text); j++ {
		c := text[j]
		switch {
		case c == quote:
			return b.String(), j + 1, nil
		case c == '\n':
			return "", 0, &lexError{"unterminated string", i, j}
		case c == '\\' && j+1 < len(text):
			j++
			switch text[j] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			default:
				b.WriteByte(text[j])
			}
		default:
			b.WriteByte(c)
		}
	}
	return "", 0, &lexError{"unterminated string", i, len(text)}
}

// lexTime scans the body of a time literal such as "@2024-01-02" or
// "@2024-01-02 10:00:00".
func lexTime(text string, i int) int {
	j := i
	for j < len(text) && (isDigit(text[j]) || text[j] == '-') {
		j++
	}
	if j == i {
		return i
	}
	if j+1 < len(text) && (text[j] == ' ' || text[j] == 'T') && isDigit(text[j+1]) {
		k := j + 1
		for k < len(text) && (isDigit(text[k]) || text[k] == ':' || text[k] == '.') {
			k++
		}
		if strings.IndexByte(text[j+1:k], ':') >= 0 {
			j = k
		}
	}
	return j
}
