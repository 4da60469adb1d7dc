package tardi

import (
	"strings"
	"unicode/utf8"
)

// buildStringsModule registers the string words.
func buildStringsModule(env *Environment) *Module {
	m := NewModule(ModStrings)

	pushOp(env, m, "<string>", strCreate)
	pushOp(env, m, ">string", strToString)
	pushOp(env, m, "utf8>string", strFromUTF8)
	pushOp(env, m, ">utf8", strToUTF8)
	pushOp(env, m, "concat", strConcat)
	pushOp(env, m, "nth", strNth)
	pushOp(env, m, "empty?", strIsEmpty)
	pushOp(env, m, "in?", strIsIn)
	pushOp(env, m, "starts-with?", strStartsWith)
	pushOp(env, m, "ends-with?", strEndsWith)
	pushOp(env, m, "index-of?", strIndexOf)
	pushOp(env, m, "length", strLength)
	pushOp(env, m, "replace-all", strReplaceAll)
	pushOp(env, m, "split-at", strSplitAt)
	pushOp(env, m, "split-whitespace", strSplitWhitespace)
	pushOp(env, m, "lines", strLines)
	pushOp(env, m, "strip-start", strStripStart)
	pushOp(env, m, "strip-end", strStripEnd)
	pushOp(env, m, "substring", strSubstring)
	pushOp(env, m, ">lowercase", strToLower)
	pushOp(env, m, ">uppercase", strToUpper)

	return m
}

func popString(vm *VM, who string) (string, error) {
	v, err := vm.pop()
	if err != nil {
		return "", err
	}
	s, ok := v.AsString()
	if !ok {
		return "", typeMismatch("%v expects a string, got %v", who, v.Data.Kind())
	}
	return s, nil
}

func popInteger(vm *VM, who string) (int64, error) {
	v, err := vm.pop()
	if err != nil {
		return 0, err
	}
	i, ok := v.AsInteger()
	if !ok {
		return 0, typeMismatch("%v expects an integer, got %v", who, v.Data.Kind())
	}
	return i, nil
}

func pushString(vm *VM, s string) error { return vm.push(NewValue(String(s))) }
func pushBool(vm *VM, b bool) error     { return vm.push(NewValue(Boolean(b))) }

// <string> ( -- string )
func strCreate(vm *VM, _ *Compiler) error { return pushString(vm, "") }

// >string ( obj -- string )
func strToString(vm *VM, _ *Compiler) error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	return pushString(vm, v.String())
}

// utf8>string ( vec -- string )
func strFromUTF8(vm *VM, _ *Compiler) error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	list, ok := v.AsList()
	if !ok {
		return typeMismatch("utf8>string expects a vector, got %v", v.Data.Kind())
	}
	bytes := make([]byte, 0, len(list.Items))
	for _, item := range list.Items {
		n, ok := item.AsInteger()
		if !ok || n < 0 || n > 255 {
			return typeMismatch("utf8>string expects byte values, got %v", item.Repr())
		}
		bytes = append(bytes, byte(n))
	}
	if !utf8.Valid(bytes) {
		return typeMismatch("invalid UTF-8 sequence")
	}
	return pushString(vm, string(bytes))
}

// >utf8 ( string -- vec )
func strToUTF8(vm *VM, _ *Compiler) error {
	s, err := popString(vm, ">utf8")
	if err != nil {
		return err
	}
	items := make([]*Value, len(s))
	for i := 0; i < len(s); i++ {
		items[i] = NewValue(Integer(s[i]))
	}
	return vm.push(NewValue(NewList(items...)))
}

// concat ( str1 str2 -- str1-2 )
func strConcat(vm *VM, _ *Compiler) error {
	b, err := popString(vm, "concat")
	if err != nil {
		return err
	}
	a, err := popString(vm, "concat")
	if err != nil {
		return err
	}
	return pushString(vm, a+b)
}

// nth ( s i -- c )
func strNth(vm *VM, _ *Compiler) error {
	i, err := popInteger(vm, "nth")
	if err != nil {
		return err
	}
	s, err := popString(vm, "nth")
	if err != nil {
		return err
	}
	runes := []rune(s)
	if i < 0 || int(i) >= len(runes) {
		return typeMismatch("nth index %d out of range for %q", i, s)
	}
	return vm.push(NewValue(Char(runes[i])))
}

// empty? ( s -- ? )
func strIsEmpty(vm *VM, _ *Compiler) error {
	s, err := popString(vm, "empty?")
	if err != nil {
		return err
	}
	return pushBool(vm, s == "")
}

// in? ( sub s -- ? )
func strIsIn(vm *VM, _ *Compiler) error {
	s, err := popString(vm, "in?")
	if err != nil {
		return err
	}
	sub, err := popString(vm, "in?")
	if err != nil {
		return err
	}
	return pushBool(vm, strings.Contains(s, sub))
}

// starts-with? ( prefix s -- ? )
func strStartsWith(vm *VM, _ *Compiler) error {
	s, err := popString(vm, "starts-with?")
	if err != nil {
		return err
	}
	prefix, err := popString(vm, "starts-with?")
	if err != nil {
		return err
	}
	return pushBool(vm, strings.HasPrefix(s, prefix))
}

// ends-with? ( suffix s -- ? )
func strEndsWith(vm *VM, _ *Compiler) error {
	s, err := popString(vm, "ends-with?")
	if err != nil {
		return err
	}
	suffix, err := popString(vm, "ends-with?")
	if err != nil {
		return err
	}
	return pushBool(vm, strings.HasSuffix(s, suffix))
}

// index-of? ( sub s -- i|#f )
func strIndexOf(vm *VM, _ *Compiler) error {
	s, err := popString(vm, "index-of?")
	if err != nil {
		return err
	}
	sub, err := popString(vm, "index-of?")
	if err != nil {
		return err
	}
	byteIndex := strings.Index(s, sub)
	if byteIndex < 0 {
		return pushBool(vm, false)
	}
	return vm.push(NewValue(Integer(utf8.RuneCountInString(s[:byteIndex]))))
}

// length ( s -- n )
func strLength(vm *VM, _ *Compiler) error {
	s, err := popString(vm, "length")
	if err != nil {
		return err
	}
	return vm.push(NewValue(Integer(utf8.RuneCountInString(s))))
}

// replace-all ( s old new -- s' )
func strReplaceAll(vm *VM, _ *Compiler) error {
	newStr, err := popString(vm, "replace-all")
	if err != nil {
		return err
	}
	oldStr, err := popString(vm, "replace-all")
	if err != nil {
		return err
	}
	s, err := popString(vm, "replace-all")
	if err != nil {
		return err
	}
	return pushString(vm, strings.ReplaceAll(s, oldStr, newStr))
}

// split-at ( s i -- before after )
func strSplitAt(vm *VM, _ *Compiler) error {
	i, err := popInteger(vm, "split-at")
	if err != nil {
		return err
	}
	s, err := popString(vm, "split-at")
	if err != nil {
		return err
	}
	runes := []rune(s)
	at := int(i)
	if at < 0 {
		at = 0
	}
	if at > len(runes) {
		at = len(runes)
	}
	if err := pushString(vm, string(runes[:at])); err != nil {
		return err
	}
	return pushString(vm, string(runes[at:]))
}

// split-whitespace ( s -- vec )
func strSplitWhitespace(vm *VM, _ *Compiler) error {
	s, err := popString(vm, "split-whitespace")
	if err != nil {
		return err
	}
	fields := strings.Fields(s)
	items := make([]*Value, len(fields))
	for i, field := range fields {
		items[i] = NewValue(String(field))
	}
	return vm.push(NewValue(NewList(items...)))
}

// lines ( s -- vec )
func strLines(vm *VM, _ *Compiler) error {
	s, err := popString(vm, "lines")
	if err != nil {
		return err
	}
	var items []*Value
	if s != "" {
		for _, line := range strings.Split(strings.TrimRight(s, "\n"), "\n") {
			items = append(items, NewValue(String(strings.TrimRight(line, "\r"))))
		}
	}
	return vm.push(NewValue(NewList(items...)))
}

// strip-start ( s -- s' )
func strStripStart(vm *VM, _ *Compiler) error {
	s, err := popString(vm, "strip-start")
	if err != nil {
		return err
	}
	return pushString(vm, strings.TrimLeft(s, " \t\r\n"))
}

// strip-end ( s -- s' )
func strStripEnd(vm *VM, _ *Compiler) error {
	s, err := popString(vm, "strip-end")
	if err != nil {
		return err
	}
	return pushString(vm, strings.TrimRight(s, " \t\r\n"))
}

// substring ( s start end -- sub )
func strSubstring(vm *VM, _ *Compiler) error {
	end, err := popInteger(vm, "substring")
	if err != nil {
		return err
	}
	start, err := popInteger(vm, "substring")
	if err != nil {
		return err
	}
	s, err := popString(vm, "substring")
	if err != nil {
		return err
	}
	runes := []rune(s)
	lo, hi := int(start), int(end)
	if lo < 0 {
		lo = 0
	}
	if hi > len(runes) {
		hi = len(runes)
	}
	if lo > hi {
		lo = hi
	}
	return pushString(vm, string(runes[lo:hi]))
}

// >lowercase ( s -- s' )
func strToLower(vm *VM, _ *Compiler) error {
	s, err := popString(vm, ">lowercase")
	if err != nil {
		return err
	}
	return pushString(vm, strings.ToLower(s))
}

// >uppercase ( s -- s' )
func strToUpper(vm *VM, _ *Compiler) error {
	s, err := popString(vm, ">uppercase")
	if err != nil {
		return err
	}
	return pushString(vm, strings.ToUpper(s))
}
