package dri

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedIdentifier is returned (wrapped) when a serialized DRI cannot be
// parsed.
var ErrMalformedIdentifier = errors.New("malformed declaration identifier")

// MalformedIdentifierError describes why a serialized DRI was rejected.
type MalformedIdentifierError struct {
	Input  string
	Reason string
}

func (e *MalformedIdentifierError) Error() string {
	return fmt.Sprintf("malformed declaration identifier %q: %s", e.Input, e.Reason)
}

func (e *MalformedIdentifierError) Unwrap() error {
	return ErrMalformedIdentifier
}

const (
	fieldSep    = "/"
	nullField   = "~"
	targetDecl  = "decl"
	targetParam = "param:"
	targetGen   = "generic:"

	// structural bytes of the serialized form; always percent-encoded in names
	reservedBytes = "%/~#()[]<>,?*^=;"
)

func isReserved(c byte) bool {
	return c <= ' ' || c == 0x7f || strings.IndexByte(reservedBytes, c) >= 0
}

func escape(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isReserved(c) {
			fmt.Fprintf(&b, "%%%02X", c)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func unescape(s string) (string, error) {
	if !strings.ContainsAny(s, reservedBytes) {
		for i := 0; i < len(s); i++ {
			if isReserved(s[i]) {
				return "", fmt.Errorf("unescaped byte %q", s[i])
			}
		}
		return s, nil
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '%' {
			if i+2 >= len(s) {
				return "", errors.New("truncated escape")
			}
			v, err := strconv.ParseUint(s[i+1:i+3], 16, 8)
			if err != nil {
				return "", fmt.Errorf("bad escape %q", s[i:i+3])
			}
			b.WriteByte(byte(v))
			i += 2
			continue
		}
		if isReserved(c) {
			return "", fmt.Errorf("unescaped byte %q", c)
		}
		b.WriteByte(c)
	}
	return b.String(), nil
}

// String serializes d. The result never contains '#' and parses back to an
// Equal DRI.
func (d DRI) String() string {
	var b strings.Builder
	b.WriteString(escape(d.PackageName))
	b.WriteString(fieldSep)
	if d.ClassNames == "" {
		b.WriteString(nullField)
	} else {
		b.WriteString(escape(d.ClassNames))
	}
	b.WriteString(fieldSep)
	if d.Callable == nil {
		b.WriteString(nullField)
	} else {
		writeCallable(&b, d.Callable)
	}
	b.WriteString(fieldSep)
	switch t := d.Target.normalized(); t.Kind {
	case CallableParameter:
		b.WriteString(targetParam + strconv.Itoa(t.Index))
	case GenericParameter:
		b.WriteString(targetGen + strconv.Itoa(t.Index))
	default:
		b.WriteString(targetDecl)
	}
	b.WriteString(fieldSep)
	for i, e := range d.Extra {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(escape(e.Key))
		b.WriteByte('=')
		b.WriteString(escape(e.Value))
	}
	return b.String()
}

// MarshalText implements encoding.TextMarshaler.
func (d DRI) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *DRI) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func writeCallable(b *strings.Builder, c *Callable) {
	b.WriteString(escape(c.Name))
	if c.Receiver != nil {
		b.WriteByte('[')
		writeTypeRef(b, *c.Receiver)
		b.WriteByte(']')
	}
	b.WriteByte('(')
	for i, p := range c.Params {
		if i > 0 {
			b.WriteByte(',')
		}
		writeTypeRef(b, p)
	}
	b.WriteByte(')')
}

func writeTypeRef(b *strings.Builder, t TypeRef) {
	switch t.Kind {
	case Star:
		b.WriteByte('*')
	case Param:
		b.WriteByte('^')
		b.WriteString(escape(t.Name))
	default:
		b.WriteString(escape(t.Name))
		if len(t.Args) > 0 {
			b.WriteByte('<')
			for i, a := range t.Args {
				if i > 0 {
					b.WriteByte(',')
				}
				writeTypeRef(b, a)
			}
			b.WriteByte('>')
		}
	}
	if t.Nullable {
		b.WriteByte('?')
	}
}

// Parse is the inverse of DRI.String. Any malformed input yields a
// *MalformedIdentifierError and a zero DRI.
func Parse(s string) (DRI, error) {
	d, err := parse(s)
	if err != nil {
		return DRI{}, &MalformedIdentifierError{Input: s, Reason: err.Error()}
	}
	return d, nil
}

// MustParse is Parse for identifiers known to be valid, such as literals in
// tests and fixtures.
func MustParse(s string) DRI {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

func parse(s string) (DRI, error) {
	fields := strings.Split(s, fieldSep)
	if len(fields) != 5 {
		return DRI{}, fmt.Errorf("expected 5 fields, got %d", len(fields))
	}

	var d DRI
	var err error
	if d.PackageName, err = unescape(fields[0]); err != nil {
		return DRI{}, fmt.Errorf("package: %w", err)
	}

	switch fields[1] {
	case nullField:
	case "":
		return DRI{}, errors.New("class field is empty")
	default:
		if d.ClassNames, err = unescape(fields[1]); err != nil {
			return DRI{}, fmt.Errorf("classes: %w", err)
		}
	}

	if fields[2] != nullField {
		p := &refParser{s: fields[2]}
		c, err := p.callable()
		if err != nil {
			return DRI{}, fmt.Errorf("callable: %w", err)
		}
		d.Callable = c
	}

	if d.Target, err = parseTarget(fields[3]); err != nil {
		return DRI{}, fmt.Errorf("target: %w", err)
	}

	if d.Extra, err = parseExtra(fields[4]); err != nil {
		return DRI{}, fmt.Errorf("extra: %w", err)
	}
	return d, nil
}

func parseTarget(s string) (Target, error) {
	var kind TargetKind
	var num string
	switch {
	case s == targetDecl:
		return Target{}, nil
	case strings.HasPrefix(s, targetParam):
		kind, num = CallableParameter, s[len(targetParam):]
	case strings.HasPrefix(s, targetGen):
		kind, num = GenericParameter, s[len(targetGen):]
	default:
		return Target{}, fmt.Errorf("unknown target %q", s)
	}
	n, err := strconv.Atoi(num)
	if err != nil || strconv.Itoa(n) != num {
		return Target{}, fmt.Errorf("bad index %q", num)
	}
	return Target{Kind: kind, Index: n}, nil
}

func parseExtra(s string) (Extra, error) {
	if s == "" {
		return nil, nil
	}
	var out Extra
	for _, pair := range strings.Split(s, ";") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("entry %q has no '='", pair)
		}
		key, err := unescape(k)
		if err != nil {
			return nil, err
		}
		value, err := unescape(v)
		if err != nil {
			return nil, err
		}
		out = append(out, ExtraEntry{Key: key, Value: value})
	}
	return out, nil
}

// refParser is a recursive descent parser over the callable field.
type refParser struct {
	s   string
	pos int
}

func (p *refParser) peek() byte {
	if p.pos >= len(p.s) {
		return 0
	}
	return p.s[p.pos]
}

func (p *refParser) expect(c byte) error {
	if p.peek() != c {
		return fmt.Errorf("expected %q at offset %d", c, p.pos)
	}
	p.pos++
	return nil
}

// name reads an escaped name up to the next structural byte.
func (p *refParser) name() (string, error) {
	start := p.pos
	for p.pos < len(p.s) {
		c := p.s[p.pos]
		if c != '%' && isReserved(c) {
			break
		}
		p.pos++
	}
	return unescape(p.s[start:p.pos])
}

func (p *refParser) callable() (*Callable, error) {
	name, err := p.name()
	if err != nil {
		return nil, err
	}
	c := &Callable{Name: name}
	if p.peek() == '[' {
		p.pos++
		recv, err := p.typeRef()
		if err != nil {
			return nil, err
		}
		if err := p.expect(']'); err != nil {
			return nil, err
		}
		c.Receiver = &recv
	}
	if err := p.expect('('); err != nil {
		return nil, err
	}
	if p.peek() == ')' {
		p.pos++
	} else {
		for {
			t, err := p.typeRef()
			if err != nil {
				return nil, err
			}
			c.Params = append(c.Params, t)
			if p.peek() == ',' {
				p.pos++
				continue
			}
			if err := p.expect(')'); err != nil {
				return nil, err
			}
			break
		}
	}
	if p.pos != len(p.s) {
		return nil, fmt.Errorf("trailing input at offset %d", p.pos)
	}
	return c, nil
}

func (p *refParser) typeRef() (TypeRef, error) {
	var t TypeRef
	switch p.peek() {
	case '*':
		p.pos++
		t.Kind = Star
	case '^':
		p.pos++
		name, err := p.name()
		if err != nil {
			return TypeRef{}, err
		}
		if name == "" {
			return TypeRef{}, fmt.Errorf("empty type parameter name at offset %d", p.pos)
		}
		t = TypeRef{Kind: Param, Name: name}
	default:
		name, err := p.name()
		if err != nil {
			return TypeRef{}, err
		}
		if name == "" {
			return TypeRef{}, fmt.Errorf("empty type name at offset %d", p.pos)
		}
		t = TypeRef{Kind: Constructor, Name: name}
		if p.peek() == '<' {
			p.pos++
			for {
				a, err := p.typeRef()
				if err != nil {
					return TypeRef{}, err
				}
				t.Args = append(t.Args, a)
				if p.peek() == ',' {
					p.pos++
					continue
				}
				if err := p.expect('>'); err != nil {
					return TypeRef{}, err
				}
				break
			}
		}
	}
	if p.peek() == '?' {
		p.pos++
		t.Nullable = true
	}
	return t, nil
}
