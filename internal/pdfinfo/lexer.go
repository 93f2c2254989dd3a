package pdfinfo

import (
	"bytes"
	"fmt"
	"strconv"
)

// Object values produced by the lexer. Plain Go types are used where they
// fit: nil, bool, int64, float64 and string (for PDF strings).
type (
	name  string
	dict  map[string]any
	array []any

	ref struct {
		num int
		gen int
	}

	stream struct {
		dict dict
		raw  []byte
	}
)

const maxDepth = 64

// lexer is a recursive-descent reader for PDF object syntax.
type lexer struct {
	data  []byte
	pos   int
	depth int
}

func newLexer(data []byte, pos int) *lexer {
	return &lexer{data: data, pos: pos}
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\r', '\n', '\f', 0:
		return true
	}
	return false
}

func isDelim(b byte) bool {
	switch b {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func (l *lexer) eof() bool { return l.pos >= len(l.data) }

// skipSpace skips whitespace and comments.
func (l *lexer) skipSpace() {
	for !l.eof() {
		c := l.data[l.pos]
		switch {
		case c == '%':
			for !l.eof() && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
		case isSpace(c):
			l.pos++
		default:
			return
		}
	}
}

// token reads a run of regular characters.
func (l *lexer) token() string {
	l.skipSpace()
	start := l.pos
	for !l.eof() && !isSpace(l.data[l.pos]) && !isDelim(l.data[l.pos]) {
		l.pos++
	}
	return string(l.data[start:l.pos])
}

// keyword consumes kw if it is next in the input.
func (l *lexer) keyword(kw string) bool {
	l.skipSpace()
	if bytes.HasPrefix(l.data[l.pos:], []byte(kw)) {
		l.pos += len(kw)
		return true
	}
	return false
}

// intToken reads a token and parses it as an integer.
func (l *lexer) intToken() (int64, bool) {
	n, err := strconv.ParseInt(l.token(), 10, 64)
	return n, err == nil
}

// object reads the next object. Unknown tokens are consumed and yield nil.
func (l *lexer) object() (any, error) {
	if l.depth >= maxDepth {
		return nil, fmt.Errorf("objects nested deeper than %d", maxDepth)
	}
	l.depth++
	defer func() { l.depth-- }()

	l.skipSpace()
	if l.eof() {
		return nil, nil
	}

	switch c := l.data[l.pos]; {
	case c == '/':
		l.pos++
		return name(decodeName(l.rawToken())), nil
	case c == '<' && l.pos+1 < len(l.data) && l.data[l.pos+1] == '<':
		return l.dictOrStream()
	case c == '<':
		return l.hexString(), nil
	case c == '(':
		return l.literalString(), nil
	case c == '[':
		return l.array()
	case c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9'):
		return l.numberOrRef(), nil
	case isDelim(c):
		l.pos++
		return nil, nil
	}

	switch tok := l.token(); tok {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return nil, nil
	}
}

// rawToken reads regular characters without skipping leading space.
func (l *lexer) rawToken() string {
	start := l.pos
	for !l.eof() && !isSpace(l.data[l.pos]) && !isDelim(l.data[l.pos]) {
		l.pos++
	}
	return string(l.data[start:l.pos])
}

func (l *lexer) array() (array, error) {
	l.pos++
	var out array
	for {
		l.skipSpace()
		if l.eof() {
			return out, nil
		}
		if l.data[l.pos] == ']' {
			l.pos++
			return out, nil
		}
		v, err := l.object()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
}

func (l *lexer) dictOrStream() (any, error) {
	l.pos += 2
	d := dict{}
	for {
		l.skipSpace()
		if l.eof() {
			break
		}
		if l.keyword(">>") {
			break
		}
		if l.data[l.pos] != '/' {
			l.pos++
			continue
		}
		l.pos++
		key := decodeName(l.rawToken())
		v, err := l.object()
		if err != nil {
			return nil, err
		}
		d[key] = v
	}

	save := l.pos
	if !l.keyword("stream") {
		l.pos = save
		return d, nil
	}
	if !l.eof() && l.data[l.pos] == '\r' {
		l.pos++
	}
	if !l.eof() && l.data[l.pos] == '\n' {
		l.pos++
	}

	start := l.pos
	end := -1
	if n, ok := d["Length"].(int64); ok && n >= 0 && start+int(n) <= len(l.data) {
		end = start + int(n)
	}
	if end < 0 {
		i := bytes.Index(l.data[start:], []byte("endstream"))
		if i < 0 {
			i = len(l.data) - start
		}
		end = start + i
	}
	l.pos = end
	l.keyword("endstream")
	return &stream{dict: d, raw: l.data[start:end]}, nil
}

func (l *lexer) literalString() string {
	l.pos++
	var buf bytes.Buffer
	depth := 1
	for !l.eof() {
		c := l.data[l.pos]
		l.pos++
		switch c {
		case '\\':
			if l.eof() {
				return buf.String()
			}
			esc := l.data[l.pos]
			l.pos++
			switch esc {
			case 'n':
				buf.WriteByte('\n')
			case 'r':
				buf.WriteByte('\r')
			case 't':
				buf.WriteByte('\t')
			case '\n', '\r':
			default:
				buf.WriteByte(esc)
			}
		case '(':
			depth++
			buf.WriteByte(c)
		case ')':
			depth--
			if depth == 0 {
				return buf.String()
			}
			buf.WriteByte(c)
		default:
			buf.WriteByte(c)
		}
	}
	return buf.String()
}

func (l *lexer) hexString() string {
	l.pos++
	var digits []byte
	for !l.eof() && l.data[l.pos] != '>' {
		if !isSpace(l.data[l.pos]) {
			digits = append(digits, l.data[l.pos])
		}
		l.pos++
	}
	l.pos++
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, len(digits)/2)
	for i := range out {
		out[i] = nibble(digits[2*i])<<4 | nibble(digits[2*i+1])
	}
	return string(out)
}

func nibble(b byte) byte {
	switch {
	case b >= '0' && b <= '9':
		return b - '0'
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10
	}
	return 0
}

// decodeName expands #XX escapes.
func decodeName(s string) string {
	if !bytes.ContainsRune([]byte(s), '#') {
		return s
	}
	var buf bytes.Buffer
	for i := 0; i < len(s); i++ {
		if s[i] == '#' && i+2 < len(s) {
			buf.WriteByte(nibble(s[i+1])<<4 | nibble(s[i+2]))
			i += 2
			continue
		}
		buf.WriteByte(s[i])
	}
	return buf.String()
}

// numberOrRef reads a number, or an indirect reference "N G R".
func (l *lexer) numberOrRef() any {
	tok := l.rawToken()
	n, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(tok, 64)
		if ferr != nil {
			return nil
		}
		return f
	}

	after := l.pos
	if g, ok := l.intToken(); ok {
		l.skipSpace()
		if !l.eof() && l.data[l.pos] == 'R' &&
			(l.pos+1 == len(l.data) || isSpace(l.data[l.pos+1]) || isDelim(l.data[l.pos+1])) {
			l.pos++
			return ref{num: int(n), gen: int(g)}
		}
	}
	l.pos = after
	return n
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case float64:
		return int64(n), true
	}
	return 0, false
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int64:
		return float64(n)
	case float64:
		return n
	}
	return 0
}
