package tardi

// Frozen is the subset of payloads with well-defined identity, packed into a
// comparable struct so it can key a Go map directly: Integer, Boolean, Char,
// String, Address, Word, Symbol, and ReturnRecord.
type Frozen struct {
	K  Kind
	I  int64
	B  bool
	S  string
	S2 string
}

// Freeze converts data into its frozen form, or fails with UnfreezableValue
// for variants whose identity is not well-defined (Float, collections,
// functions, handles, sentinels).
func Freeze(d Data) (Frozen, error) {
	switch x := d.(type) {
	case Integer:
		return Frozen{K: KindInteger, I: int64(x)}, nil
	case Boolean:
		return Frozen{K: KindBoolean, B: bool(x)}, nil
	case Char:
		return Frozen{K: KindChar, I: int64(x)}, nil
	case String:
		return Frozen{K: KindString, S: string(x)}, nil
	case Address:
		return Frozen{K: KindAddress, I: int64(x)}, nil
	case Word:
		return Frozen{K: KindWord, S: string(x)}, nil
	case Symbol:
		return Frozen{K: KindSymbol, S: x.Word, S2: x.Module}, nil
	case ReturnRecord:
		return Frozen{K: KindReturn, I: int64(x.Address), B: x.IsLoopBreakpoint}, nil
	}
	return Frozen{}, vmErrf(ErrUnfreezableValue, "%v", DataRepr(d))
}

// Thaw converts a frozen key back into ordinary data.
func (f Frozen) Thaw() Data {
	switch f.K {
	case KindInteger:
		return Integer(f.I)
	case KindBoolean:
		return Boolean(f.B)
	case KindChar:
		return Char(rune(f.I))
	case KindString:
		return String(f.S)
	case KindAddress:
		return Address(int(f.I))
	case KindWord:
		return Word(f.S)
	case KindSymbol:
		return Symbol{Module: f.S2, Word: f.S}
	case KindReturn:
		return ReturnRecord{Address: int(f.I), IsLoopBreakpoint: f.B}
	}
	return EndOfInput{}
}

// frozenLess gives hashmap display and hashing a deterministic key order.
func frozenLess(a, b Frozen) bool {
	if a.K != b.K {
		return a.K < b.K
	}
	if a.S != b.S {
		return a.S < b.S
	}
	if a.S2 != b.S2 {
		return a.S2 < b.S2
	}
	if a.I != b.I {
		return a.I < b.I
	}
	return !a.B && b.B
}
