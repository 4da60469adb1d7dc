package tardi

// buildInternalsModule registers the definition plumbing that the bootstrap
// macros are written in terms of.
func buildInternalsModule(env *Environment) *Module {
	m := NewModule(ModInternals)

	pushOp(env, m, "<function>", func(vm *VM, c *Compiler) error {
		return vm.opFunction(c)
	})
	pushOp(env, m, "<predeclare-function>", func(vm *VM, c *Compiler) error {
		return vm.opPredeclareFunction(c)
	})
	pushOp(env, m, "<compile-lambda>", opCompileLambda)

	return m
}

// opCompileLambda compiles a collected value vector into an anonymous
// quotation: vec -- lambda.
func opCompileLambda(vm *VM, c *Compiler) error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	list, ok := v.AsList()
	if !ok {
		return typeMismatch("<compile-lambda> expects a vector, got %v", v.Data.Kind())
	}
	lambda, err := c.compileList(list.Items)
	if err != nil {
		return err
	}
	return vm.push(NewValue(lambda))
}
