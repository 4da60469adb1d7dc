package tardi

// buildScanningModule registers the scanner words macros drive the reader
// with.
func buildScanningModule(env *Environment) *Module {
	m := NewModule(ModScanning)

	pushOp(env, m, "scan-value", opScanValue)
	pushOp(env, m, "scan-value-list", opScanValueList)
	pushOp(env, m, "scan-object-list", opScanObjectList)

	return m
}

// opScanValue pushes the next raw value from the source being compiled.
func opScanValue(vm *VM, c *Compiler) error {
	v, err := c.mustScanValue()
	if err != nil {
		return err
	}
	return vm.push(v)
}

// opScanValueList pops a delimiter and pushes the vector of raw values up
// to it, without expanding macros: delim -- vec.
func opScanValueList(vm *VM, c *Compiler) error {
	delimiter, err := vm.pop()
	if err != nil {
		return err
	}
	values, err := c.scanValueList(delimiter.Data)
	if err != nil {
		return err
	}
	return vm.push(NewValue(NewList(values...)))
}

// opScanObjectList pops a delimiter and pushes the vector of values up to
// it with macros expanded along the way: delim -- vec.
func opScanObjectList(vm *VM, c *Compiler) error {
	delimiter, err := vm.pop()
	if err != nil {
		return err
	}
	accum, err := c.collectObjects(vm, delimiter.Data)
	if err != nil {
		return err
	}
	return vm.push(accum)
}
