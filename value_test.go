package tardi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueEquality(t *testing.T) {
	for _, tc := range []struct {
		name string
		a, b Data
		want bool
	}{
		{"integers", Integer(3), Integer(3), true},
		{"integers differ", Integer(3), Integer(4), false},
		{"integer and float coerce", Integer(3), Float(3.0), true},
		{"float and integer coerce", Float(2.5), Integer(2), false},
		{"booleans", Boolean(true), Boolean(true), true},
		{"chars", Char('a'), Char('a'), true},
		{"strings", String("x"), String("x"), true},
		{"string is not a word", String("x"), Word("x"), false},
		{"word matches symbol by name", Word("w"), Symbol{Module: "m", Word: "w"}, true},
		{"symbols need module and word", Symbol{Module: "m", Word: "w"}, Symbol{Module: "n", Word: "w"}, false},
		{"addresses", Address(3), Address(3), true},
		{"end of input", EndOfInput{}, EndOfInput{}, true},
		{"macro sentinel", Macro{}, Macro{}, true},
		{
			"lists deep",
			NewList(NewValue(Integer(1)), NewValue(Float(2.0))),
			NewList(NewValue(Float(1.0)), NewValue(Integer(2))),
			true,
		},
		{
			"lists by length",
			NewList(NewValue(Integer(1))),
			NewList(),
			false,
		},
		{
			"literals by boxed value",
			Literal{Boxed: NewValue(Word("w"))},
			Literal{Boxed: NewValue(Word("w"))},
			true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Equal(tc.a, tc.b))
			assert.Equal(t, tc.want, Equal(tc.b, tc.a), "equality should be symmetric")
		})
	}
}

func TestHashMapEqualityIgnoresOrder(t *testing.T) {
	build := func(keys ...string) *HashMap {
		hm := NewHashMap()
		for i, k := range keys {
			key, err := Freeze(String(k))
			require.NoError(t, err)
			hm.Entries[key] = NewValue(Integer(int64(i)))
		}
		return hm
	}
	a := build("a", "b")
	b := NewHashMap()
	for k, v := range a.Entries {
		b.Entries[k] = NewValue(v.Data)
	}
	assert.True(t, Equal(a, b))

	b.Entries[mustFreeze(t, String("c"))] = NewValue(Integer(9))
	assert.False(t, Equal(a, b))
}

func mustFreeze(t *testing.T, d Data) Frozen {
	t.Helper()
	f, err := Freeze(d)
	require.NoError(t, err)
	return f
}

func TestCompareMatchesEquality(t *testing.T) {
	// for comparable scalars, a == b exactly when Compare says 0
	scalars := []Data{
		Integer(1), Integer(2), Float(1.0), Float(2.5),
		Char('a'), Char('b'),
		String("a"), String("b"),
		Boolean(false), Boolean(true),
	}
	for _, a := range scalars {
		for _, b := range scalars {
			if c, ok := Compare(a, b); ok {
				assert.Equal(t, Equal(a, b), c == 0,
					"Compare and Equal disagree on %v vs %v", a, b)
			}
		}
	}
}

func TestCompareUndefinedPairs(t *testing.T) {
	_, ok := Compare(Integer(1), String("one"))
	assert.False(t, ok)
	_, ok = Compare(NewList(), Integer(1))
	assert.False(t, ok)
	_, ok = Compare(NewBuiltin("x", opNop), NewBuiltin("x", opNop))
	assert.False(t, ok)
}

func TestDisplayForms(t *testing.T) {
	for _, tc := range []struct {
		name string
		data Data
		want string
	}{
		{"integer", Integer(-7), "-7"},
		{"float keeps a decimal", Float(3), "3.0"},
		{"float", Float(2.5), "2.5"},
		{"large float", Float(1e10), "10000000000.0"},
		{"true", Boolean(true), "#t"},
		{"false", Boolean(false), "#f"},
		{"char", Char('a'), "'a'"},
		{"newline char", Char('\n'), `'\n'`},
		{"quote char", Char('\''), `'\''`},
		{"string displays raw", String("hi"), "hi"},
		{"empty list", NewList(), "{ }"},
		{
			"list uses reprs",
			NewList(NewValue(String("a")), NewValue(Integer(1))),
			`{ "a" 1 }`,
		},
		{"address", Address(12), "<@12>"},
		{"word", Word("dup"), "dup"},
		{"symbol", Symbol{Module: "std/kernel", Word: "apply"}, "std/kernel::apply"},
		{"macro", Macro{}, "MACRO:"},
		{"literal", Literal{Boxed: NewValue(Word("w"))}, `\ w`},
		{"return record", ReturnRecord{Address: 4, IsLoopBreakpoint: true}, "<@4 - true>"},
		{"end of input", EndOfInput{}, "<EOI>"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.data.String())
		})
	}
}

func TestStringRepr(t *testing.T) {
	v := NewValue(String(`say "hi"\now`))
	assert.Equal(t, `"say \"hi\"\\now"`, v.Repr())
	assert.Equal(t, "42", NewValue(Integer(42)).Repr())
}

func TestArithmeticDispatch(t *testing.T) {
	sum, err := Add(Integer(2), Float(0.5))
	require.NoError(t, err)
	assert.Equal(t, Float(2.5), sum)

	diff, err := Sub(Float(2.5), Integer(1))
	require.NoError(t, err)
	assert.Equal(t, Float(1.5), diff)

	prod, err := Mul(Integer(6), Integer(7))
	require.NoError(t, err)
	assert.Equal(t, Integer(42), prod)

	quot, err := Div(Integer(7), Integer(2))
	require.NoError(t, err)
	assert.Equal(t, Integer(3), quot)

	_, err = Div(Integer(1), Integer(0))
	assert.ErrorIs(t, err, vmErr(ErrDivisionByZero))

	_, err = Add(String("a"), Integer(1))
	assert.ErrorIs(t, err, vmErr(ErrTypeMismatch))

	wrapped, err := Add(Integer(9223372036854775807), Integer(1))
	require.NoError(t, err)
	assert.Equal(t, Integer(-9223372036854775808), wrapped)
}

func TestFreeze(t *testing.T) {
	for _, d := range []Data{
		Integer(1), Boolean(true), Char('x'), String("s"),
		Address(9), Word("w"), Symbol{Module: "m", Word: "w"},
		ReturnRecord{Address: 2, IsLoopBreakpoint: true},
	} {
		f, err := Freeze(d)
		require.NoError(t, err, "freezing %v", d)
		assert.True(t, Equal(d, f.Thaw()), "thaw should round-trip %v", d)
	}

	for _, d := range []Data{
		Float(1.5), NewList(), NewHashMap(),
		NewBuiltin("x", opNop), Macro{}, EndOfInput{},
		Literal{Boxed: NewValue(Integer(1))},
	} {
		_, err := Freeze(d)
		assert.ErrorIs(t, err, vmErr(ErrUnfreezableValue), "freezing %v", d)
	}
}

func TestHash64(t *testing.T) {
	assert.Equal(t, Hash64(Integer(42)), Hash64(Integer(42)))
	assert.NotEqual(t, Hash64(Integer(42)), Hash64(Integer(43)))

	// floats hash by bit pattern
	assert.Equal(t, Hash64(Float(1.5)), Hash64(Float(1.5)))
	assert.NotEqual(t, Hash64(Float(0.0)), Hash64(Float(1.0)))

	a := NewList(NewValue(Integer(1)), NewValue(String("x")))
	b := NewList(NewValue(Integer(1)), NewValue(String("x")))
	assert.Equal(t, Hash64(a), Hash64(b))
}

func TestCloneSharesElements(t *testing.T) {
	inner := NewValue(Integer(1))
	list := NewValue(NewList(inner))
	clone := list.Clone()

	cloneList, ok := clone.AsList()
	require.True(t, ok)
	origList, _ := list.AsList()

	// the spine is fresh but the cells are shared
	cloneList.Items = append(cloneList.Items, NewValue(Integer(2)))
	assert.Len(t, origList.Items, 1)
	assert.Same(t, origList.Items[0], cloneList.Items[0])
}
