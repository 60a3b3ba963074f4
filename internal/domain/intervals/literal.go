package intervals

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// The model is asked for a Python-style literal but often answers in JSON, so
// the parser accepts both spellings.

type kind int

const (
	kindNull kind = iota
	kindBool
	kindNumber
	kindString
	kindList
	kindObject
)

type value struct {
	kind kind
	num  decimal.Decimal
	str  string
	list []value
	obj  map[string]value
}

type parser struct {
	s   string
	pos int
}

func parseLiteral(s string) (value, error) {
	p := &parser{s: s}
	v, err := p.value()
	if err != nil {
		return value{}, err
	}
	p.skipSpace()
	if p.pos != len(p.s) {
		return value{}, p.errorf("trailing data")
	}
	return v, nil
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("literal at offset %d: %s", p.pos, fmt.Sprintf(format, args...))
}

func (p *parser) skipSpace() {
	for p.pos < len(p.s) {
		switch p.s[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) value() (value, error) {
	p.skipSpace()
	if p.pos >= len(p.s) {
		return value{}, p.errorf("unexpected end")
	}
	c := p.s[p.pos]
	switch {
	case c == '[':
		return p.list()
	case c == '{':
		return p.object()
	case c == '"' || c == '\'':
		s, err := p.quoted()
		if err != nil {
			return value{}, err
		}
		return value{kind: kindString, str: s}, nil
	case c == '-' || c == '+' || c == '.' || isDigit(c):
		return p.number()
	case isIdentStart(c):
		switch p.ident() {
		case "true", "True", "false", "False":
			return value{kind: kindBool}, nil
		default:
			// None, null, NaN, Infinity and anything else non-numeric.
			return value{kind: kindNull}, nil
		}
	}
	return value{}, p.errorf("unexpected %q", c)
}

func (p *parser) list() (value, error) {
	p.pos++
	v := value{kind: kindList}
	for {
		p.skipSpace()
		if p.pos >= len(p.s) {
			return value{}, p.errorf("unterminated list")
		}
		if p.s[p.pos] == ']' {
			p.pos++
			return v, nil
		}
		el, err := p.value()
		if err != nil {
			return value{}, err
		}
		v.list = append(v.list, el)

		p.skipSpace()
		if p.pos >= len(p.s) {
			return value{}, p.errorf("unterminated list")
		}
		switch p.s[p.pos] {
		case ',':
			p.pos++
		case ']':
			p.pos++
			return v, nil
		default:
			return value{}, p.errorf("expected ',' or ']', got %q", p.s[p.pos])
		}
	}
}

func (p *parser) object() (value, error) {
	p.pos++
	v := value{kind: kindObject, obj: map[string]value{}}
	for {
		p.skipSpace()
		if p.pos >= len(p.s) {
			return value{}, p.errorf("unterminated object")
		}
		if p.s[p.pos] == '}' {
			p.pos++
			return v, nil
		}

		var key string
		switch c := p.s[p.pos]; {
		case c == '"' || c == '\'':
			k, err := p.quoted()
			if err != nil {
				return value{}, err
			}
			key = k
		case isIdentStart(c):
			key = p.ident()
		default:
			return value{}, p.errorf("expected key, got %q", c)
		}

		p.skipSpace()
		if p.pos >= len(p.s) || p.s[p.pos] != ':' {
			return value{}, p.errorf("expected ':' after key %q", key)
		}
		p.pos++

		el, err := p.value()
		if err != nil {
			return value{}, err
		}
		v.obj[strings.ToLower(strings.TrimSpace(key))] = el

		p.skipSpace()
		if p.pos >= len(p.s) {
			return value{}, p.errorf("unterminated object")
		}
		switch p.s[p.pos] {
		case ',':
			p.pos++
		case '}':
			p.pos++
			return v, nil
		default:
			return value{}, p.errorf("expected ',' or '}', got %q", p.s[p.pos])
		}
	}
}

func (p *parser) quoted() (string, error) {
	q := p.s[p.pos]
	p.pos++
	var b strings.Builder
	for p.pos < len(p.s) {
		c := p.s[p.pos]
		p.pos++
		switch c {
		case q:
			return b.String(), nil
		case '\\':
			if p.pos >= len(p.s) {
				return "", p.errorf("unterminated escape")
			}
			e := p.s[p.pos]
			p.pos++
			switch e {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			default:
				b.WriteByte(e)
			}
		default:
			b.WriteByte(c)
		}
	}
	return "", p.errorf("unterminated string")
}

func (p *parser) number() (value, error) {
	start := p.pos
	for p.pos < len(p.s) && isNumberByte(p.s[p.pos]) {
		p.pos++
	}
	d, err := parseDecimal(p.s[start:p.pos])
	switch {
	case errors.Is(err, errNumberRange):
		// Unusable as a timestamp; the entry holding it is dropped.
		return value{kind: kindNull}, nil
	case err != nil:
		return value{}, p.errorf("bad number %q", p.s[start:p.pos])
	}
	return value{kind: kindNumber, num: d}, nil
}

func (p *parser) ident() string {
	start := p.pos
	for p.pos < len(p.s) && (isIdentStart(p.s[p.pos]) || isDigit(p.s[p.pos])) {
		p.pos++
	}
	return p.s[start:p.pos]
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNumberByte(c byte) bool {
	return isDigit(c) || c == '.' || c == '-' || c == '+' || c == 'e' || c == 'E'
}
