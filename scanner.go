package tardi

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"
)

// Scanner streams Values from a source string. Tokens are whitespace
// separated except for string and character literals; every emitted value
// carries its lexeme and position, and EndOfInput is emitted exactly once.
type Scanner struct {
	source string
	chars  []rune
	index  int

	line   int
	column int
	offset int

	endOfInput bool
}

// NewScanner makes a scanner over the given source text.
func NewScanner(source string) *Scanner {
	return &Scanner{
		source: source,
		chars:  []rune(source),
		line:   1,
		column: 1,
	}
}

func (s *Scanner) errAt(kind ScanErrKind, msg string) error {
	return &ScannerError{Kind: kind, Msg: msg, Line: s.line, Col: s.column}
}

func (s *Scanner) peek() (rune, bool) {
	if s.index >= len(s.chars) {
		return 0, false
	}
	return s.chars[s.index], true
}

func (s *Scanner) peekAt(ahead int) (rune, bool) {
	if s.index+ahead >= len(s.chars) {
		return 0, false
	}
	return s.chars[s.index+ahead], true
}

func (s *Scanner) next() (rune, bool) {
	c, ok := s.peek()
	if !ok {
		return 0, false
	}
	s.index++
	s.offset += utf8.RuneLen(c)
	if c == '\n' {
		s.line++
		s.column = 1
	} else {
		s.column++
	}
	return c, true
}

func (s *Scanner) skipWhitespace() {
	for {
		c, ok := s.peek()
		if !ok || !unicode.IsSpace(c) {
			return
		}
		s.next()
	}
}

func (s *Scanner) skipLine() {
	for {
		c, ok := s.next()
		if !ok || c == '\n' {
			return
		}
	}
}

// Next scans the next value. After EndOfInput has been emitted it returns
// (nil, nil).
func (s *Scanner) Next() (*Value, error) {
	if s.endOfInput {
		return nil, nil
	}

	s.skipWhitespace()

	startLine, startColumn, startOffset := s.line, s.column, s.offset

	c, ok := s.next()
	if !ok {
		s.endOfInput = true
		return &Value{
			Data: EndOfInput{},
			Pos:  &Position{Line: s.line, Column: s.column, Offset: s.offset},
		}, nil
	}

	var data Data
	var err error
	switch {
	case c == '"':
		if a, okA := s.peek(); okA && a == '"' {
			if b, okB := s.peekAt(1); okB && b == '"' {
				data, err = s.scanLongString()
				break
			}
		}
		data, err = s.scanString()
	case c == '\'':
		data, err = s.scanChar()
	default:
		data, err = s.scanWord(c)
	}
	if err != nil {
		return nil, err
	}
	if data == nil {
		// a skipped line comment
		return s.Next()
	}

	v := &Value{
		Data:   data,
		Lexeme: s.source[startOffset:s.offset],
		Pos: &Position{
			Line:   startLine,
			Column: startColumn,
			Offset: startOffset,
			Length: s.offset - startOffset,
		},
	}
	log.Tracef("scanned %v %q", v.Data.Kind(), v.Lexeme)
	return v, nil
}

// ScanValueList drains raw values until one equals the delimiter, failing
// with UnexpectedEndOfInput if the source runs out first. This is the
// scanner-level primitive behind scan-value-list and the uses:/exports: name
// lists.
func (s *Scanner) ScanValueList(delimiter Data) ([]*Value, error) {
	var buffer []*Value
	for {
		v, err := s.Next()
		if err != nil {
			return nil, err
		}
		if v == nil || v.Data.Kind() == KindEndOfInput {
			return nil, s.errAt(ErrUnexpectedEndOfInput, "")
		}
		if Equal(v.Data, delimiter) {
			return buffer, nil
		}
		buffer = append(buffer, v)
	}
}

func (s *Scanner) scanEscape() (rune, error) {
	c, ok := s.next()
	if !ok {
		return 0, s.errAt(ErrUnterminatedChar, "")
	}
	switch c {
	case 'n':
		return '\n', nil
	case 'r':
		return '\r', nil
	case 't':
		return '\t', nil
	case '\\':
		return '\\', nil
	case '\'':
		return '\'', nil
	case '"':
		return '"', nil
	case 'u':
		return s.scanUnicodeEscape()
	}
	return 0, s.errAt(ErrInvalidEscape, `\`+string(c))
}

func (s *Scanner) scanUnicodeEscape() (rune, error) {
	if c, ok := s.peek(); ok && c == '{' {
		s.next()
		value, err := s.scanHexDigits(6)
		if err != nil {
			return 0, err
		}
		if c, ok := s.next(); !ok || c != '}' {
			return 0, s.errAt(ErrInvalidEscape, "expected closing '}'")
		}
		if !utf8.ValidRune(rune(value)) {
			return 0, s.errAt(ErrInvalidEscape, "invalid Unicode codepoint "+strconv.Itoa(int(value)))
		}
		return rune(value), nil
	}

	value, err := s.scanHexDigits(2)
	if err != nil {
		return 0, err
	}
	if value > 0x7F {
		return 0, s.errAt(ErrInvalidEscape, "ASCII value out of range "+strconv.Itoa(int(value)))
	}
	return rune(value), nil
}

func (s *Scanner) scanHexDigits(maxLen int) (uint32, error) {
	var value uint32
	count := 0
	for count < maxLen {
		c, ok := s.peek()
		if !ok {
			break
		}
		digit := uint32(0)
		switch {
		case c >= '0' && c <= '9':
			digit = uint32(c - '0')
		case c >= 'a' && c <= 'f':
			digit = uint32(c-'a') + 10
		case c >= 'A' && c <= 'F':
			digit = uint32(c-'A') + 10
		default:
			if count == 0 {
				return 0, s.errAt(ErrInvalidEscape, "expected hexadecimal digits")
			}
			return value, nil
		}
		value = value*16 + digit
		s.next()
		count++
	}
	if count == 0 {
		return 0, s.errAt(ErrInvalidEscape, "expected hexadecimal digits")
	}
	return value, nil
}

func (s *Scanner) scanChar() (Data, error) {
	c, ok := s.next()
	if !ok {
		return nil, s.errAt(ErrUnterminatedChar, "")
	}
	var out rune
	switch c {
	case '\\':
		esc, err := s.scanEscape()
		if err != nil {
			return nil, err
		}
		out = esc
	case '\'':
		return nil, s.errAt(ErrInvalidLiteral, "empty character literal")
	default:
		out = c
	}
	if closing, ok := s.next(); !ok || closing != '\'' {
		return nil, s.errAt(ErrUnterminatedChar, "")
	}
	return Char(out), nil
}

func (s *Scanner) scanString() (Data, error) {
	var sb strings.Builder
	for {
		c, ok := s.next()
		if !ok {
			return nil, s.errAt(ErrUnterminatedString, "")
		}
		switch c {
		case '"':
			return String(sb.String()), nil
		case '\\':
			esc, err := s.scanEscape()
			if err != nil {
				return nil, err
			}
			sb.WriteRune(esc)
		default:
			sb.WriteRune(c)
		}
	}
}

// scanLongString handles """…""": quotes and newlines are ordinary
// characters until three consecutive quotes close the literal.
func (s *Scanner) scanLongString() (Data, error) {
	s.next()
	s.next()

	var sb strings.Builder
	quotes := 0
	for {
		c, ok := s.next()
		if !ok {
			return nil, s.errAt(ErrUnterminatedString, "")
		}
		if c == '"' {
			quotes++
			if quotes == 3 {
				return String(sb.String()), nil
			}
			continue
		}
		for quotes > 0 {
			sb.WriteByte('"')
			quotes--
		}
		sb.WriteRune(c)
	}
}

func (s *Scanner) scanWord(first rune) (Data, error) {
	var sb strings.Builder
	sb.WriteRune(first)
	for {
		c, ok := s.peek()
		if !ok || unicode.IsSpace(c) {
			break
		}
		sb.WriteRune(c)
		s.next()
	}
	word := sb.String()

	switch {
	case strings.HasPrefix(word, "##"):
		return s.scanDocComment(word)
	case strings.HasPrefix(word, "//"):
		s.skipLine()
		return nil, nil
	case word == "MACRO:":
		return Macro{}, nil
	case strings.HasPrefix(word, "#"):
		if word == "#t" {
			return Boolean(true), nil
		}
		if word == "#f" {
			return Boolean(false), nil
		}
		return nil, s.errAt(ErrInvalidLiteral, word)
	}
	return parseWord(word), nil
}

func (s *Scanner) scanDocComment(prefix string) (Data, error) {
	var sb strings.Builder
	sb.WriteString(strings.TrimPrefix(prefix, "##"))
	for {
		c, ok := s.peek()
		if !ok || c == '\n' {
			break
		}
		sb.WriteRune(c)
		s.next()
	}
	return Comment(strings.TrimSpace(sb.String())), nil
}

var (
	intPattern      = regexp.MustCompile(`^[+-]?[0-9]+$`)
	radixPattern    = regexp.MustCompile(`^[+-]?0([xX][0-9a-fA-F]+|[oO][0-7]+|[bB][01]+)$`)
	floatPattern    = regexp.MustCompile(`^[+-]?[0-9]+\.[0-9]+$`)
	rationalPattern = regexp.MustCompile(`^([+-]?[0-9]+)(?:([+-][0-9]+))?/([0-9]+)$`)
)

// parseWord classifies a whitespace-delimited token: integers (decimal or
// radix-prefixed), floats, rationals (reduced to floats in this runtime),
// and everything else as a bare Word.
func parseWord(word string) Data {
	if intPattern.MatchString(word) {
		if n, err := strconv.ParseInt(word, 10, 64); err == nil {
			return Integer(n)
		}
		if f, err := strconv.ParseFloat(word, 64); err == nil {
			return Float(f)
		}
	}
	if radixPattern.MatchString(word) {
		text := word
		neg := false
		if text[0] == '+' || text[0] == '-' {
			neg = text[0] == '-'
			text = text[1:]
		}
		if n, err := strconv.ParseInt(strings.ToLower(text), 0, 64); err == nil {
			if neg {
				n = -n
			}
			return Integer(n)
		}
	}
	if floatPattern.MatchString(word) {
		if f, err := strconv.ParseFloat(word, 64); err == nil {
			return Float(f)
		}
	}
	if m := rationalPattern.FindStringSubmatch(word); m != nil {
		whole, _ := strconv.ParseFloat(m[1], 64)
		den, err := strconv.ParseFloat(m[3], 64)
		if err == nil && den != 0 {
			if m[2] == "" {
				return Float(whole / den)
			}
			num, _ := strconv.ParseFloat(m[2], 64)
			return Float(whole + num/den)
		}
	}
	return Word(word)
}
