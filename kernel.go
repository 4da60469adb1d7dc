package tardi

// Internal module names. These are synthesized from native code rather than
// loaded from disk.
const (
	ModKernel    = "std/kernel"
	ModSandbox   = "std/sandbox"
	ModInternals = "std/_internals"
	ModScanning  = "std/scanning"
	ModStrings   = "std/strings"
	ModVectors   = "std/_vectors"
	ModHashMaps  = "std/_hashmaps"
	ModIO        = "std/io"
	ModFS        = "std/fs"
)

// internalModules maps internal module names to their builders. A builder
// registers the module's lambdas in the environment's op table and returns
// the module's namespace.
var internalModules = map[string]func(env *Environment) *Module{
	ModKernel:    buildKernelModule,
	ModSandbox:   buildSandboxModule,
	ModInternals: buildInternalsModule,
	ModScanning:  buildScanningModule,
	ModStrings:   buildStringsModule,
	ModVectors:   buildVectorsModule,
	ModHashMaps:  buildHashMapsModule,
	ModIO:        buildIOModule,
	ModFS:        buildFSModule,
}

func pushOp(env *Environment, m *Module, name string, fn OpFn) int {
	index := env.AddToOpTable(NewBuiltin(name, fn))
	m.Defined[name] = index
	return index
}

func pushMacro(env *Environment, m *Module, name string, fn OpFn) int {
	index := env.AddToOpTable(NewBuiltinMacro(name, fn))
	m.Defined[name] = index
	return index
}

// buildKernelModule registers the kernel words. The first block must land at
// the indices named by the OpCode constants: the compiler and the loop
// rewriter address these slots numerically.
func buildKernelModule(env *Environment) *Module {
	m := NewModule(ModKernel)

	ordered := []struct {
		op OpCode
		fn OpFn
	}{
		{OpNop, opNop},
		{OpLit, opLit},
		{OpDup, opDup},
		{OpSwap, opSwap},
		{OpRot, opRot},
		{OpDrop, opDrop},
		{OpClear, opClear},
		{OpStackSize, opStackSize},
		{OpAdd, opAdd},
		{OpSubtract, opSubtract},
		{OpMultiply, opMultiply},
		{OpDivide, opDivide},
		{OpEqual, opEqual},
		{OpLess, opLess},
		{OpGreater, opGreater},
		{OpNot, opNot},
		{OpChoose, opChoose},
		{OpToR, opToR},
		{OpRFrom, opRFrom},
		{OpRFetch, opRFetch},
		{OpApply, opApply},
		{OpReturn, opReturn},
		{OpStop, opStop},
		{OpBye, opBye},
		{OpJump, opJump},
		{OpJumpStack, opJumpStack},
		{OpCall, opCallWord},
		{OpLitStack, opLitStack},
		{OpCompile, opCompileWord},
		{OpBreak, opBreakWord},
		{OpContinue, opContinueWord},
	}
	for _, entry := range ordered {
		index := pushOp(env, m, entry.op.String(), entry.fn)
		if index != int(entry.op) {
			panic("kernel op table out of alignment with OpCode constants")
		}
	}

	pushMacro(env, m, "loop", opLoopMacro)
	pushMacro(env, m, "uses:", opUsesMacro)
	pushMacro(env, m, "exports:", opExportsMacro)
	pushMacro(env, m, `\`, opQuoteMacro)

	return m
}

// buildSandboxModule makes the default compilation target: no definitions of
// its own, with every kernel word imported. It must be built after the
// bootstrap so bootstrap definitions are visible to user code.
func buildSandboxModule(env *Environment) *Module {
	m := NewModule(ModSandbox)
	if kernel := env.Module(ModKernel); kernel != nil {
		for name, index := range kernel.Defined {
			m.Imported[name] = index
		}
	}
	return m
}

func opNop(*VM, *Compiler) error      { return nil }
func opLit(vm *VM, _ *Compiler) error { return vm.opLit() }

func opDup(vm *VM, _ *Compiler) error       { return vm.opDup() }
func opSwap(vm *VM, _ *Compiler) error      { return vm.opSwap() }
func opRot(vm *VM, _ *Compiler) error       { return vm.opRot() }
func opDrop(vm *VM, _ *Compiler) error      { return vm.opDrop() }
func opClear(vm *VM, _ *Compiler) error     { return vm.opClear() }
func opStackSize(vm *VM, _ *Compiler) error { return vm.opStackSize() }

func opAdd(vm *VM, _ *Compiler) error      { return vm.binaryOp(Add) }
func opSubtract(vm *VM, _ *Compiler) error { return vm.binaryOp(Sub) }
func opMultiply(vm *VM, _ *Compiler) error { return vm.binaryOp(Mul) }
func opDivide(vm *VM, _ *Compiler) error   { return vm.binaryOp(Div) }

func opEqual(vm *VM, _ *Compiler) error   { return vm.opEqual() }
func opLess(vm *VM, _ *Compiler) error    { return vm.compareOp(-1) }
func opGreater(vm *VM, _ *Compiler) error { return vm.compareOp(1) }
func opNot(vm *VM, _ *Compiler) error     { return vm.opNot() }
func opChoose(vm *VM, _ *Compiler) error  { return vm.opChoose() }

func opToR(vm *VM, _ *Compiler) error    { return vm.opToR() }
func opRFrom(vm *VM, _ *Compiler) error  { return vm.opRFrom() }
func opRFetch(vm *VM, _ *Compiler) error { return vm.opRFetch() }

func opApply(vm *VM, c *Compiler) error  { return vm.opApply(c) }
func opReturn(vm *VM, _ *Compiler) error { return vm.opReturn() }
func opStop(*VM, *Compiler) error        { return errHalted }
func opBye(*VM, *Compiler) error         { return ErrBye }

func opJump(vm *VM, _ *Compiler) error      { return vm.opJump() }
func opJumpStack(vm *VM, _ *Compiler) error { return vm.opJumpStack() }
func opCallWord(vm *VM, c *Compiler) error  { return vm.opCall(c) }

func opLitStack(vm *VM, _ *Compiler) error    { return vm.opLitStack() }
func opCompileWord(vm *VM, c *Compiler) error { return vm.opCompile(c) }

func opBreakWord(vm *VM, _ *Compiler) error    { return vm.opBranch("break") }
func opContinueWord(vm *VM, _ *Compiler) error { return vm.opBranch("continue") }

// opUsesMacro takes the accumulator off the stack while modules load, so
// values a module's top level pushes stay beneath it.
func opUsesMacro(vm *VM, c *Compiler) error {
	accum, err := vm.pop()
	if err != nil {
		return err
	}
	if err := c.useModule(vm); err != nil {
		return err
	}
	return vm.push(accum)
}

func opExportsMacro(_ *VM, c *Compiler) error { return c.exportList() }

// opQuoteMacro is `\`: append the next scanned value to the accumulator
// wrapped in Literal, so it compiles as data rather than resolving as code.
func opQuoteMacro(vm *VM, c *Compiler) error {
	quoted, err := c.mustScanValue()
	if err != nil {
		return err
	}
	accum, err := vm.peek()
	if err != nil {
		return err
	}
	list, ok := accum.AsList()
	if !ok {
		return typeMismatch(`\ expects the accumulator, got %v`, accum.Data.Kind())
	}
	list.Items = append(list.Items, &Value{
		Data:   Literal{Boxed: quoted},
		Lexeme: quoted.Lexeme,
		Pos:    quoted.Pos,
	})
	return nil
}
