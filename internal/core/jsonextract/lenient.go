package jsonextract

import (
	"errors"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

var errSyntax = errors.New("invalid json")

const (
	litTrue  = "true"
	litFalse = "false"
	litNull  = "null"
)

// parser reads one JSON value starting at pos. Input that ends in the middle
// of a value is accepted: whatever was read so far is returned and truncated
// is set. Tokens that carry no usable value yet (a half-written key, a dangling
// colon, a cut literal) are dropped.
type parser struct {
	s         string
	pos       int
	truncated bool
}

// parseLenient parses the value at s[start:]. It returns the value, the
// offset right after it and whether anything was parsed.
func parseLenient(s string, start int) (any, int, bool) {
	p := &parser{s: s, pos: start}

	v, ok, err := p.value()
	if err != nil || !ok {
		return nil, start, false
	}

	return v, p.pos, true
}

func (p *parser) eof() bool {
	return p.pos >= len(p.s)
}

func (p *parser) skipWS() {
	for !p.eof() {
		switch p.s[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

// value returns ok=false when input ended before a value could start.
func (p *parser) value() (any, bool, error) {
	p.skipWS()

	if p.eof() {
		p.truncated = true

		return nil, false, nil
	}

	switch c := p.s[p.pos]; {
	case c == '{':
		v, err := p.object()

		return v, err == nil, err
	case c == '[':
		v, err := p.array()

		return v, err == nil, err
	case c == '"':
		v, err := p.str()

		return v, err == nil, err
	case c == '-' || (c >= '0' && c <= '9'):
		return p.number()
	case c == 't':
		return p.literal(litTrue, true)
	case c == 'f':
		return p.literal(litFalse, false)
	case c == 'n':
		return p.literal(litNull, nil)
	default:
		return nil, false, errSyntax
	}
}

func (p *parser) object() (map[string]any, error) {
	p.pos++ // {

	obj := make(map[string]any)

	for {
		p.skipWS()

		if p.eof() {
			p.truncated = true

			return obj, nil
		}

		if p.s[p.pos] == '}' {
			p.pos++

			return obj, nil
		}

		if p.s[p.pos] != '"' {
			return nil, errSyntax
		}

		key, err := p.str()
		if err != nil {
			return nil, err
		}

		if p.truncated {
			return obj, nil
		}

		p.skipWS()

		if p.eof() {
			p.truncated = true

			return obj, nil
		}

		if p.s[p.pos] != ':' {
			return nil, errSyntax
		}

		p.pos++

		v, ok, err := p.value()
		if err != nil {
			return nil, err
		}

		if ok {
			obj[key] = v
		}

		if p.truncated {
			return obj, nil
		}

		p.skipWS()

		if p.eof() {
			p.truncated = true

			return obj, nil
		}

		switch p.s[p.pos] {
		case ',':
			p.pos++
		case '}':
			p.pos++

			return obj, nil
		default:
			return nil, errSyntax
		}
	}
}

func (p *parser) array() ([]any, error) {
	p.pos++ // [

	arr := make([]any, 0)

	for {
		p.skipWS()

		if p.eof() {
			p.truncated = true

			return arr, nil
		}

		if p.s[p.pos] == ']' {
			p.pos++

			return arr, nil
		}

		v, ok, err := p.value()
		if err != nil {
			return nil, err
		}

		if ok {
			arr = append(arr, v)
		}

		if p.truncated {
			return arr, nil
		}

		p.skipWS()

		if p.eof() {
			p.truncated = true

			return arr, nil
		}

		switch p.s[p.pos] {
		case ',':
			p.pos++
		case ']':
			p.pos++

			return arr, nil
		default:
			return nil, errSyntax
		}
	}
}

// str reads a quoted string. An unterminated string keeps the text read so far.
func (p *parser) str() (string, error) {
	p.pos++ // opening quote

	var sb strings.Builder

	for {
		if p.eof() {
			p.truncated = true

			return sb.String(), nil
		}

		c := p.s[p.pos]

		switch {
		case c == '"':
			p.pos++

			return sb.String(), nil
		case c == '\\':
			r, done, err := p.escape()
			if err != nil {
				return "", err
			}

			if !done {
				p.truncated = true

				return sb.String(), nil
			}

			sb.WriteRune(r)
		default:
			r, size := utf8.DecodeRuneInString(p.s[p.pos:])
			sb.WriteRune(r)
			p.pos += size
		}
	}
}

// escape decodes the escape sequence at pos. done is false when the input
// ends inside the sequence.
func (p *parser) escape() (rune, bool, error) {
	if p.pos+1 >= len(p.s) {
		p.pos = len(p.s)

		return 0, false, nil
	}

	c := p.s[p.pos+1]
	p.pos += 2

	switch c {
	case '"', '\\', '/':
		return rune(c), true, nil
	case 'b':
		return '\b', true, nil
	case 'f':
		return '\f', true, nil
	case 'n':
		return '\n', true, nil
	case 'r':
		return '\r', true, nil
	case 't':
		return '\t', true, nil
	case 'u':
		r, ok, err := p.hex4()
		if err != nil || !ok {
			return 0, ok, err
		}

		if utf16.IsSurrogate(r) && strings.HasPrefix(p.s[p.pos:], `\u`) {
			save := p.pos
			p.pos += 2

			r2, ok2, err2 := p.hex4()
			if err2 == nil && ok2 {
				if dec := utf16.DecodeRune(r, r2); dec != utf8.RuneError {
					return dec, true, nil
				}
			}

			p.pos = save
		}

		return r, true, nil
	default:
		return 0, false, errSyntax
	}
}

func (p *parser) hex4() (rune, bool, error) {
	if p.pos+4 > len(p.s) {
		p.pos = len(p.s)

		return 0, false, nil
	}

	n, err := strconv.ParseUint(p.s[p.pos:p.pos+4], 16, 32)
	if err != nil {
		return 0, false, errSyntax
	}

	p.pos += 4

	return rune(n), true, nil
}

// number reads a JSON number. A number cut at end of input is kept only if
// what remains still parses.
func (p *parser) number() (any, bool, error) {
	start := p.pos

	for !p.eof() {
		c := p.s[p.pos]
		if (c >= '0' && c <= '9') || c == '-' || c == '+' || c == '.' || c == 'e' || c == 'E' {
			p.pos++

			continue
		}

		break
	}

	f, err := strconv.ParseFloat(p.s[start:p.pos], 64)
	if err != nil {
		if p.eof() {
			p.truncated = true

			return nil, false, nil
		}

		return nil, false, errSyntax
	}

	if p.eof() {
		p.truncated = true
	}

	return f, true, nil
}

func (p *parser) literal(word string, v any) (any, bool, error) {
	rest := p.s[p.pos:]

	if strings.HasPrefix(rest, word) {
		p.pos += len(word)

		return v, true, nil
	}

	if len(rest) < len(word) && strings.HasPrefix(word, rest) {
		p.pos = len(p.s)
		p.truncated = true

		return nil, false, nil
	}

	return nil, false, errSyntax
}
