package tardi

// buildHashMapsModule registers the low-level hashmap words. Keys are
// restricted to freezable values; anything else fails with
// UnfreezableValue at the operation boundary.
func buildHashMapsModule(env *Environment) *Module {
	m := NewModule(ModHashMaps)

	pushOp(env, m, "<hashmap>", hmCreate)
	pushOp(env, m, ">hashmap", hmFromVector)
	pushOp(env, m, ">vector", hmToVector)
	pushOp(env, m, "is-hashmap?", hmIsHashMap)
	pushOp(env, m, "length", hmLength)
	pushOp(env, m, "get", hmGet)
	pushOp(env, m, "set!", hmSet)
	pushOp(env, m, "remove!", hmRemove)
	pushOp(env, m, "contains-key?", hmContainsKey)
	pushOp(env, m, "keys", hmKeys)

	return m
}

func popHashMap(vm *VM, who string) (*HashMap, error) {
	v, err := vm.pop()
	if err != nil {
		return nil, err
	}
	hm, ok := v.AsHashMap()
	if !ok {
		return nil, typeMismatch("%v expects a hashmap, got %v", who, v.Data.Kind())
	}
	return hm, nil
}

func popKey(vm *VM) (Frozen, error) {
	v, err := vm.pop()
	if err != nil {
		return Frozen{}, err
	}
	return Freeze(v.Data)
}

// <hashmap> ( -- hashmap )
func hmCreate(vm *VM, _ *Compiler) error {
	return vm.push(NewValue(NewHashMap()))
}

// >hashmap ( vec-of-pairs -- hashmap )
func hmFromVector(vm *VM, _ *Compiler) error {
	list, err := popList(vm, ">hashmap")
	if err != nil {
		return err
	}
	hm := NewHashMap()
	for _, pairV := range list.Items {
		pair, ok := pairV.AsList()
		if !ok || len(pair.Items) < 2 {
			return typeMismatch(">hashmap expects a vector of key-value pairs")
		}
		key, err := Freeze(pair.Items[0].Data)
		if err != nil {
			return err
		}
		hm.Entries[key] = pair.Items[1]
	}
	return vm.push(NewValue(hm))
}

// >vector ( hashmap -- vec-of-pairs )
func hmToVector(vm *VM, _ *Compiler) error {
	hm, err := popHashMap(vm, ">vector")
	if err != nil {
		return err
	}
	items := make([]*Value, 0, len(hm.Entries))
	for key, v := range hm.Entries {
		pair := NewList(NewValue(key.Thaw()), v)
		items = append(items, NewValue(pair))
	}
	return vm.push(NewValue(NewList(items...)))
}

// is-hashmap? ( obj -- ? )
func hmIsHashMap(vm *VM, _ *Compiler) error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	_, ok := v.AsHashMap()
	return pushBool(vm, ok)
}

// length ( hashmap -- n )
func hmLength(vm *VM, _ *Compiler) error {
	hm, err := popHashMap(vm, "length")
	if err != nil {
		return err
	}
	return vm.push(NewValue(Integer(len(hm.Entries))))
}

// get ( key hashmap -- value|#f )
func hmGet(vm *VM, _ *Compiler) error {
	hm, err := popHashMap(vm, "get")
	if err != nil {
		return err
	}
	key, err := popKey(vm)
	if err != nil {
		return err
	}
	if v, ok := hm.Entries[key]; ok {
		return vm.push(v)
	}
	return pushBool(vm, false)
}

// set! ( value key hashmap -- )
func hmSet(vm *VM, _ *Compiler) error {
	hm, err := popHashMap(vm, "set!")
	if err != nil {
		return err
	}
	key, err := popKey(vm)
	if err != nil {
		return err
	}
	v, err := vm.pop()
	if err != nil {
		return err
	}
	hm.Entries[key] = v
	return nil
}

// remove! ( key hashmap -- )
func hmRemove(vm *VM, _ *Compiler) error {
	hm, err := popHashMap(vm, "remove!")
	if err != nil {
		return err
	}
	key, err := popKey(vm)
	if err != nil {
		return err
	}
	delete(hm.Entries, key)
	return nil
}

// contains-key? ( key hashmap -- ? )
func hmContainsKey(vm *VM, _ *Compiler) error {
	hm, err := popHashMap(vm, "contains-key?")
	if err != nil {
		return err
	}
	key, err := popKey(vm)
	if err != nil {
		return err
	}
	_, ok := hm.Entries[key]
	return pushBool(vm, ok)
}

// keys ( hashmap -- vec )
func hmKeys(vm *VM, _ *Compiler) error {
	hm, err := popHashMap(vm, "keys")
	if err != nil {
		return err
	}
	items := make([]*Value, 0, len(hm.Entries))
	for key := range hm.Entries {
		items = append(items, NewValue(key.Thaw()))
	}
	return vm.push(NewValue(NewList(items...)))
}
