package tardi

import "sort"

// buildVectorsModule registers the low-level vector words. All mutating
// words operate in place through the shared cell.
func buildVectorsModule(env *Environment) *Module {
	m := NewModule(ModVectors)

	pushOp(env, m, "<vector>", vecCreate)
	pushOp(env, m, "push!", vecPush)
	pushOp(env, m, "push-left!", vecPushLeft)
	pushOp(env, m, "concat", vecConcat)
	pushOp(env, m, "pop!", vecPop)
	pushOp(env, m, "pop-left!", vecPopLeft)
	pushOp(env, m, "nth", vecNth)
	pushOp(env, m, "set-nth!", vecSetNth)
	pushOp(env, m, "length", vecLength)
	pushOp(env, m, "in?", vecIsIn)
	pushOp(env, m, "index-of?", vecIndexOf)
	pushOp(env, m, "subvector", vecSubvector)
	pushOp(env, m, "join", vecJoin)
	pushOp(env, m, "sort!", vecSort)

	return m
}

func popList(vm *VM, who string) (*List, error) {
	v, err := vm.pop()
	if err != nil {
		return nil, err
	}
	list, ok := v.AsList()
	if !ok {
		return nil, typeMismatch("%v expects a vector, got %v", who, v.Data.Kind())
	}
	return list, nil
}

// <vector> ( -- vec )
func vecCreate(vm *VM, _ *Compiler) error {
	return vm.push(NewValue(NewList()))
}

// push! ( value vec -- )
func vecPush(vm *VM, _ *Compiler) error {
	list, err := popList(vm, "push!")
	if err != nil {
		return err
	}
	v, err := vm.pop()
	if err != nil {
		return err
	}
	list.Items = append(list.Items, v)
	return nil
}

// push-left! ( value vec -- )
func vecPushLeft(vm *VM, _ *Compiler) error {
	list, err := popList(vm, "push-left!")
	if err != nil {
		return err
	}
	v, err := vm.pop()
	if err != nil {
		return err
	}
	list.Items = append([]*Value{v}, list.Items...)
	return nil
}

// concat ( vec1 vec2 -- vec1+2 )
func vecConcat(vm *VM, _ *Compiler) error {
	b, err := popList(vm, "concat")
	if err != nil {
		return err
	}
	a, err := popList(vm, "concat")
	if err != nil {
		return err
	}
	items := make([]*Value, 0, len(a.Items)+len(b.Items))
	items = append(items, a.Items...)
	items = append(items, b.Items...)
	return vm.push(NewValue(NewList(items...)))
}

// pop! ( vec -- item )
func vecPop(vm *VM, _ *Compiler) error {
	list, err := popList(vm, "pop!")
	if err != nil {
		return err
	}
	if len(list.Items) == 0 {
		return vmErr(ErrEmptyList)
	}
	item := list.Items[len(list.Items)-1]
	list.Items = list.Items[:len(list.Items)-1]
	return vm.push(item)
}

// pop-left! ( vec -- item )
func vecPopLeft(vm *VM, _ *Compiler) error {
	list, err := popList(vm, "pop-left!")
	if err != nil {
		return err
	}
	if len(list.Items) == 0 {
		return vmErr(ErrEmptyList)
	}
	item := list.Items[0]
	list.Items = list.Items[1:]
	return vm.push(item)
}

// nth ( vec i -- item )
func vecNth(vm *VM, _ *Compiler) error {
	i, err := popInteger(vm, "nth")
	if err != nil {
		return err
	}
	list, err := popList(vm, "nth")
	if err != nil {
		return err
	}
	if i < 0 || int(i) >= len(list.Items) {
		return typeMismatch("nth index %d out of range for %d items", i, len(list.Items))
	}
	return vm.push(list.Items[i])
}

// set-nth! ( value vec i -- )
func vecSetNth(vm *VM, _ *Compiler) error {
	i, err := popInteger(vm, "set-nth!")
	if err != nil {
		return err
	}
	list, err := popList(vm, "set-nth!")
	if err != nil {
		return err
	}
	v, err := vm.pop()
	if err != nil {
		return err
	}
	if i < 0 || int(i) >= len(list.Items) {
		return typeMismatch("set-nth! index %d out of range for %d items", i, len(list.Items))
	}
	list.Items[i] = v
	return nil
}

// length ( vec -- n )
func vecLength(vm *VM, _ *Compiler) error {
	list, err := popList(vm, "length")
	if err != nil {
		return err
	}
	return vm.push(NewValue(Integer(len(list.Items))))
}

// in? ( item vec -- ? )
func vecIsIn(vm *VM, _ *Compiler) error {
	list, err := popList(vm, "in?")
	if err != nil {
		return err
	}
	item, err := vm.pop()
	if err != nil {
		return err
	}
	for _, candidate := range list.Items {
		if Equal(candidate.Data, item.Data) {
			return pushBool(vm, true)
		}
	}
	return pushBool(vm, false)
}

// index-of? ( item vec -- i|#f )
func vecIndexOf(vm *VM, _ *Compiler) error {
	list, err := popList(vm, "index-of?")
	if err != nil {
		return err
	}
	item, err := vm.pop()
	if err != nil {
		return err
	}
	for i, candidate := range list.Items {
		if Equal(candidate.Data, item.Data) {
			return vm.push(NewValue(Integer(i)))
		}
	}
	return pushBool(vm, false)
}

// subvector ( vec start end -- vec' )
func vecSubvector(vm *VM, _ *Compiler) error {
	end, err := popInteger(vm, "subvector")
	if err != nil {
		return err
	}
	start, err := popInteger(vm, "subvector")
	if err != nil {
		return err
	}
	list, err := popList(vm, "subvector")
	if err != nil {
		return err
	}
	lo, hi := int(start), int(end)
	if lo < 0 {
		lo = 0
	}
	if hi > len(list.Items) {
		hi = len(list.Items)
	}
	if lo > hi {
		lo = hi
	}
	items := make([]*Value, hi-lo)
	copy(items, list.Items[lo:hi])
	return vm.push(NewValue(NewList(items...)))
}

// join ( vec sep -- string )
func vecJoin(vm *VM, _ *Compiler) error {
	sep, err := popString(vm, "join")
	if err != nil {
		return err
	}
	list, err := popList(vm, "join")
	if err != nil {
		return err
	}
	out := ""
	for i, item := range list.Items {
		if i > 0 {
			out += sep
		}
		out += item.String()
	}
	return pushString(vm, out)
}

// sort! ( vec -- )
func vecSort(vm *VM, _ *Compiler) error {
	list, err := popList(vm, "sort!")
	if err != nil {
		return err
	}
	var sortErr error
	sort.SliceStable(list.Items, func(i, j int) bool {
		c, ok := Compare(list.Items[i].Data, list.Items[j].Data)
		if !ok && sortErr == nil {
			sortErr = typeMismatch("sort! over incomparable values")
		}
		return c < 0
	})
	return sortErr
}
