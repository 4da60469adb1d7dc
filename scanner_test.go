package tardi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scanAll(t *testing.T, source string) []*Value {
	t.Helper()
	s := NewScanner(source)
	var values []*Value
	for {
		v, err := s.Next()
		require.NoError(t, err)
		if v == nil {
			return values
		}
		values = append(values, v)
	}
}

// scanOne scans a source expected to hold exactly one value before
// EndOfInput.
func scanOne(t *testing.T, source string) *Value {
	t.Helper()
	values := scanAll(t, source)
	require.Len(t, values, 2, "expected one value plus EndOfInput in %q", source)
	require.Equal(t, KindEndOfInput, values[1].Data.Kind())
	return values[0]
}

func TestScanValues(t *testing.T) {
	for _, tc := range []struct {
		source string
		want   Data
	}{
		{"42", Integer(42)},
		{"-17", Integer(-17)},
		{"+8", Integer(8)},
		{"0x1A", Integer(26)},
		{"0o17", Integer(15)},
		{"0b101", Integer(5)},
		{"-0x10", Integer(-16)},
		{"3.25", Float(3.25)},
		{"-0.5", Float(-0.5)},
		{"3/4", Float(0.75)},
		{"1+1/2", Float(1.5)},
		{"#t", Boolean(true)},
		{"#f", Boolean(false)},
		{"'a'", Char('a')},
		{`'\n'`, Char('\n')},
		{`'\u41'`, Char('A')},
		{`'\u{1F600}'`, Char('😀')},
		{`"hi"`, String("hi")},
		{`"a\tb"`, String("a\tb")},
		{`"say \"hi\""`, String(`say "hi"`)},
		{`"""keep "quotes" and \n raw"""`, String(`keep "quotes" and \n raw`)},
		{"MACRO:", Macro{}},
		{"dup", Word("dup")},
		{"+", Word("+")},
		{"12abc", Word("12abc")},
		{"1.2.3", Word("1.2.3")},
		{"a/b", Word("a/b")},
	} {
		t.Run(tc.source, func(t *testing.T) {
			v := scanOne(t, tc.source)
			assert.True(t, Equal(tc.want, v.Data),
				"scanned %v (%v), want %v", v.Data, v.Data.Kind(), tc.want)
		})
	}
}

func TestScanHugeIntegerFallsBackToFloat(t *testing.T) {
	v := scanOne(t, "99999999999999999999")
	assert.Equal(t, KindFloat, v.Data.Kind())
}

func TestScanComments(t *testing.T) {
	values := scanAll(t, "1 // this is gone\n2")
	require.Len(t, values, 3)
	assert.True(t, Equal(Integer(1), values[0].Data))
	assert.True(t, Equal(Integer(2), values[1].Data))
	assert.Equal(t, KindEndOfInput, values[2].Data.Kind())
}

func TestScanDocComments(t *testing.T) {
	values := scanAll(t, "## doc text here\n7")
	require.Len(t, values, 3)
	comment, ok := values[0].Data.(Comment)
	require.True(t, ok, "expected a doc comment, got %v", values[0].Data.Kind())
	assert.Equal(t, "doc text here", string(comment))
	assert.Equal(t, 1, values[0].Pos.Line)
	assert.True(t, Equal(Integer(7), values[1].Data))
}

func TestScanPositionsMatchLexemes(t *testing.T) {
	source := "1 2.5 'x'\n  \"héllo\" dup\n// gone\n#t word-with-dashes"
	s := NewScanner(source)
	count := 0
	for {
		v, err := s.Next()
		require.NoError(t, err)
		if v == nil {
			break
		}
		require.NotNil(t, v.Pos)
		end := v.Pos.Offset + v.Pos.Length
		require.LessOrEqual(t, end, len(source))
		assert.Equal(t, source[v.Pos.Offset:end], v.Lexeme,
			"lexeme mismatch for %v at line %d", v.Data, v.Pos.Line)
		count++
	}
	assert.Equal(t, 8, count, "7 values plus EndOfInput; the line comment yields nothing")
}

func TestScanLineAndColumn(t *testing.T) {
	values := scanAll(t, "1\n  2")
	require.Len(t, values, 3)
	assert.Equal(t, 1, values[0].Pos.Line)
	assert.Equal(t, 1, values[0].Pos.Column)
	assert.Equal(t, 2, values[1].Pos.Line)
	assert.Equal(t, 3, values[1].Pos.Column)
}

func TestEndOfInputEmittedOnce(t *testing.T) {
	s := NewScanner("1")
	v, err := s.Next()
	require.NoError(t, err)
	require.True(t, Equal(Integer(1), v.Data))

	v, err = s.Next()
	require.NoError(t, err)
	require.Equal(t, KindEndOfInput, v.Data.Kind())
	assert.Equal(t, 0, v.Pos.Length)

	v, err = s.Next()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestScanErrors(t *testing.T) {
	for _, tc := range []struct {
		name   string
		source string
		want   ScanErrKind
	}{
		{"bad hash literal", "#x", ErrInvalidLiteral},
		{"bare hash", "#", ErrInvalidLiteral},
		{"unterminated string", `"abc`, ErrUnterminatedString},
		{"unterminated long string", `"""abc"`, ErrUnterminatedString},
		{"unterminated char", "'a", ErrUnterminatedChar},
		{"overlong char", "'ab'", ErrUnterminatedChar},
		{"empty char", "''", ErrInvalidLiteral},
		{"bad escape", `'\q'`, ErrInvalidEscape},
		{"ascii escape out of range", `'\uFF'`, ErrInvalidEscape},
		{"unicode escape needs digits", `"\u{}"`, ErrInvalidEscape},
		{"invalid codepoint", `'\u{D800}'`, ErrInvalidEscape},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := NewScanner(tc.source)
			var err error
			var v *Value
			for err == nil {
				v, err = s.Next()
				if v == nil && err == nil {
					break
				}
			}
			require.Error(t, err, "expected a scan error for %q", tc.source)
			var se *ScannerError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tc.want, se.Kind, "got %v", err)
		})
	}
}

func TestScanValueListPrimitive(t *testing.T) {
	s := NewScanner("a b c ; d")
	values, err := s.ScanValueList(Word(";"))
	require.NoError(t, err)
	require.Len(t, values, 3)
	assert.True(t, Equal(Word("c"), values[2].Data))

	// the delimiter was consumed; the rest still scans
	v, err := s.Next()
	require.NoError(t, err)
	assert.True(t, Equal(Word("d"), v.Data))
}

func TestScanValueListRunsOut(t *testing.T) {
	s := NewScanner("a b")
	_, err := s.ScanValueList(Word(";"))
	var se *ScannerError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ErrUnexpectedEndOfInput, se.Kind)
}
