package tardi

import (
	"errors"
	"io"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/tardi-lang/tardi/internal/flushio"
)

// stackLimit caps both the data stack and the return stack.
const stackLimit = 1024

// VM executes the shared environment's instruction stream. Each fetched
// instruction is an op-table index; Lit, Jump, Call, break, and continue
// consume one inline argument slot. The instruction pointer doubles as the
// resume cursor between inputs: it is left at the end of everything already
// executed, so freshly compiled code runs on the next call.
type VM struct {
	env *Environment
	ip  int

	stack       []*Value
	returnStack []*Value

	// haltDepth is the return-stack depth of the current run's entry point.
	// A `return` at this depth halts the run instead of underflowing, which
	// is how synchronous macro execution and top-level returns terminate.
	haltDepth int

	in     io.Reader
	out    flushio.WriteFlusher
	errOut flushio.WriteFlusher
}

// NewVM makes a VM over the environment with standard I/O attached.
func NewVM(env *Environment) *VM {
	return &VM{
		env:    env,
		in:     os.Stdin,
		out:    flushio.NewWriteFlusher(os.Stdout),
		errOut: flushio.NewWriteFlusher(os.Stderr),
	}
}

// Stack snapshots the data stack bottom to top.
func (vm *VM) Stack() []*Value {
	out := make([]*Value, len(vm.stack))
	copy(out, vm.stack)
	return out
}

// StackDepth is the current data-stack depth.
func (vm *VM) StackDepth() int { return len(vm.stack) }

func (vm *VM) push(v *Value) error {
	if len(vm.stack) >= stackLimit {
		return vmErr(ErrStackOverflow)
	}
	vm.stack = append(vm.stack, v)
	return nil
}

func (vm *VM) pop() (*Value, error) {
	if len(vm.stack) == 0 {
		return nil, vmErr(ErrStackUnderflow)
	}
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v, nil
}

func (vm *VM) peek() (*Value, error) {
	if len(vm.stack) == 0 {
		return nil, vmErr(ErrStackUnderflow)
	}
	return vm.stack[len(vm.stack)-1], nil
}

func (vm *VM) pushReturn(v *Value) error {
	if len(vm.returnStack) >= stackLimit {
		return vmErr(ErrReturnStackOverflow)
	}
	vm.returnStack = append(vm.returnStack, v)
	return nil
}

func (vm *VM) popReturn() (*Value, error) {
	if len(vm.returnStack) == 0 {
		return nil, vmErr(ErrReturnStackUnderflow)
	}
	v := vm.returnStack[len(vm.returnStack)-1]
	vm.returnStack = vm.returnStack[:len(vm.returnStack)-1]
	return v, nil
}

// fetch reads the instruction word at ip and advances past it.
func (vm *VM) fetch() (int, error) {
	instr, ok := vm.env.Instruction(vm.ip)
	if !ok {
		return 0, vmErrf(ErrInvalidAddress, "%d", vm.ip)
	}
	vm.ip++
	return instr, nil
}

// Run executes from the resume cursor to the end of the instruction buffer.
// On an error other than a clean halt, the cursor is moved past the end and
// the return stack cleared so the same instance accepts further input; the
// data stack is left for inspection.
func (vm *VM) Run(c *Compiler) error {
	return vm.run(c)
}

func (vm *VM) run(c *Compiler) error {
	for vm.ip < vm.env.InstructionsLen() {
		pos := vm.ip
		op, err := vm.fetch()
		if err != nil {
			return vm.fail(err)
		}
		lambda := vm.env.Op(op)
		if lambda == nil {
			return vm.fail(vmErrf(ErrInvalidOpCode, "%d at %d", op, pos))
		}
		if err := lambda.Call(vm, c); err != nil {
			if errors.Is(err, errHalted) {
				return nil
			}
			if errors.Is(err, ErrBye) {
				return err
			}
			return vm.fail(err)
		}
	}
	return nil
}

func (vm *VM) fail(err error) error {
	vm.ip = vm.env.InstructionsLen()
	vm.returnStack = vm.returnStack[:0]
	vm.haltDepth = 0
	return err
}

// runLambda executes a lambda synchronously: builtins run in place, and
// compiled lambdas run until their trailing return is reached at entry
// depth. This is the macro protocol's execution engine.
func (vm *VM) runLambda(l *Lambda, c *Compiler) error {
	if !l.Defined {
		name := l.Name
		if name == "" {
			name = "<lambda>"
		}
		return vmErrf(ErrInvalidWordCall, "%v", name)
	}
	if builtin, ok := l.Callable.(BuiltIn); ok {
		return builtin.Fn(vm, c)
	}
	comp := l.CompiledCallable()
	savedIP, savedDepth := vm.ip, vm.haltDepth
	vm.ip = comp.IP
	vm.haltDepth = len(vm.returnStack)
	err := vm.run(c)
	if err == nil {
		vm.ip, vm.haltDepth = savedIP, savedDepth
	}
	return err
}

// Stack and arithmetic operations.

func (vm *VM) opDup() error {
	v, err := vm.peek()
	if err != nil {
		return err
	}
	return vm.push(v)
}

func (vm *VM) opSwap() error {
	b, err := vm.pop()
	if err != nil {
		return err
	}
	a, err := vm.pop()
	if err != nil {
		return err
	}
	if err := vm.push(b); err != nil {
		return err
	}
	return vm.push(a)
}

func (vm *VM) opRot() error {
	c, err := vm.pop()
	if err != nil {
		return err
	}
	b, err := vm.pop()
	if err != nil {
		return err
	}
	a, err := vm.pop()
	if err != nil {
		return err
	}
	for _, v := range []*Value{b, c, a} {
		if err := vm.push(v); err != nil {
			return err
		}
	}
	return nil
}

func (vm *VM) opDrop() error {
	_, err := vm.pop()
	return err
}

func (vm *VM) opClear() error {
	vm.stack = vm.stack[:0]
	return nil
}

func (vm *VM) opStackSize() error {
	return vm.push(NewValue(Integer(len(vm.stack))))
}

func (vm *VM) opToR() error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	return vm.pushReturn(v)
}

func (vm *VM) opRFrom() error {
	v, err := vm.popReturn()
	if err != nil {
		return err
	}
	return vm.push(v)
}

func (vm *VM) opRFetch() error {
	if len(vm.returnStack) == 0 {
		return vmErr(ErrReturnStackUnderflow)
	}
	return vm.push(vm.returnStack[len(vm.returnStack)-1])
}

func (vm *VM) binaryOp(op func(a, b Data) (Data, error)) error {
	b, err := vm.pop()
	if err != nil {
		return err
	}
	a, err := vm.pop()
	if err != nil {
		return err
	}
	result, err := op(a.Data, b.Data)
	if err != nil {
		return err
	}
	return vm.push(NewValue(result))
}

func (vm *VM) opEqual() error {
	b, err := vm.pop()
	if err != nil {
		return err
	}
	a, err := vm.pop()
	if err != nil {
		return err
	}
	if _, ok := Compare(a.Data, b.Data); !ok {
		return typeMismatch("equality of %v and %v", a.Data.Kind(), b.Data.Kind())
	}
	return vm.push(NewValue(Boolean(Equal(a.Data, b.Data))))
}

func (vm *VM) compareOp(want int) error {
	b, err := vm.pop()
	if err != nil {
		return err
	}
	a, err := vm.pop()
	if err != nil {
		return err
	}
	c, ok := Compare(a.Data, b.Data)
	if !ok {
		return typeMismatch("ordering of %v and %v", a.Data.Kind(), b.Data.Kind())
	}
	return vm.push(NewValue(Boolean(c == want)))
}

func (vm *VM) opNot() error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	b, ok := v.AsBoolean()
	if !ok {
		return typeMismatch("logical not of %v", v.Data.Kind())
	}
	return vm.push(NewValue(Boolean(!b)))
}

// opChoose is `?`: cond then else -- then-or-else.
func (vm *VM) opChoose() error {
	elseV, err := vm.pop()
	if err != nil {
		return err
	}
	thenV, err := vm.pop()
	if err != nil {
		return err
	}
	cond, err := vm.pop()
	if err != nil {
		return err
	}
	b, ok := cond.AsBoolean()
	if !ok {
		return typeMismatch("? condition must be boolean, got %v", cond.Data.Kind())
	}
	if b {
		return vm.push(thenV)
	}
	return vm.push(elseV)
}

// Control flow.

func (vm *VM) opLit() error {
	index, err := vm.fetch()
	if err != nil {
		return err
	}
	constant := vm.env.Constant(index)
	if constant == nil {
		return vmErrf(ErrInvalidConstantIndex, "%d", index)
	}
	return vm.push(constant.Clone())
}

func (vm *VM) opLitStack() error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	return vm.push(NewValue(Literal{Boxed: v}))
}

func (vm *VM) opJump() error {
	target, err := vm.fetch()
	if err != nil {
		return err
	}
	vm.ip = target
	return nil
}

func (vm *VM) opJumpStack() error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	addr, ok := v.AsAddress()
	if !ok {
		return typeMismatch("jump address, got %v", v.Data.Kind())
	}
	if addr < 0 {
		return vmErrf(ErrInvalidAddress, "%d", addr)
	}
	vm.ip = addr
	return nil
}

func (vm *VM) opCall(c *Compiler) error {
	pos := vm.ip
	index, err := vm.fetch()
	if err != nil {
		return err
	}
	lambda := vm.env.Op(index)
	if lambda == nil {
		return vmErrf(ErrInvalidOpCode, "%d at %d", index, pos)
	}
	return lambda.Call(vm, c)
}

func (vm *VM) opApply(c *Compiler) error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	lambda, ok := v.AsFunction()
	if !ok {
		return typeMismatch("apply of %v", v.Data.Kind())
	}
	return lambda.Call(vm, c)
}

func (vm *VM) opReturn() error {
	if len(vm.returnStack) <= vm.haltDepth {
		return errHalted
	}
	v, err := vm.popReturn()
	if err != nil {
		return err
	}
	record, ok := v.Data.(ReturnRecord)
	if !ok {
		return typeMismatch("return address, got %v", v.Data.Kind())
	}
	vm.ip = record.Address
	return nil
}

// opBranch handles the patched forms of break and continue: the argument
// slot holds the jump target once a loop has claimed the quotation.
func (vm *VM) opBranch(name string) error {
	target, err := vm.fetch()
	if err != nil {
		return err
	}
	if target == placeholderTarget {
		return vmErrf(ErrInvalidAddress, "%v outside of a loop", name)
	}
	vm.ip = target
	return nil
}

// Definition support used by std/_internals.

// opFunction defines a named word: name lambda -- . A predeclared word in
// the current module is finalized in place so references compiled against
// its slot resolve; otherwise a fresh op-table entry is registered.
func (vm *VM) opFunction(c *Compiler) error {
	lambdaV, err := vm.pop()
	if err != nil {
		return err
	}
	nameV, err := vm.pop()
	if err != nil {
		return err
	}
	name, ok := nameV.AsString()
	if !ok {
		return typeMismatch("function name must be a string, got %v", nameV.Data.Kind())
	}
	lambda, ok := lambdaV.AsFunction()
	if !ok {
		return typeMismatch("function body must be a lambda, got %v", lambdaV.Data.Kind())
	}
	comp := lambda.CompiledCallable()
	if comp == nil {
		return typeMismatch("defining %q from a builtin", name)
	}

	module, err := c.currentModule()
	if err != nil {
		return err
	}
	if index, ok := module.Defined[name]; ok {
		if existing := vm.env.Op(index); existing != nil && !existing.Defined {
			log.Tracef("defining predeclared word %q at op %d", name, index)
			return existing.Define(comp.IP, comp.Length, comp.Words)
		}
	}
	defined := NewCompiledLambda(comp.Words, comp.IP, comp.Length)
	defined.Name = name
	module.Defined[name] = vm.env.AddToOpTable(defined)
	return nil
}

// opPredeclareFunction reserves an op-table slot for a name: name -- .
// Calling the word before opFunction fills it in raises InvalidWordCall.
func (vm *VM) opPredeclareFunction(c *Compiler) error {
	nameV, err := vm.pop()
	if err != nil {
		return err
	}
	name, ok := nameV.AsString()
	if !ok {
		return typeMismatch("predeclared name must be a string, got %v", nameV.Data.Kind())
	}
	module, err := c.currentModule()
	if err != nil {
		return err
	}
	if index, ok := module.Defined[name]; ok {
		if existing := vm.env.Op(index); existing != nil && !existing.Defined {
			return nil
		}
	}
	module.Defined[name] = vm.env.AddToOpTable(NewUndefined(name))
	return nil
}

func (vm *VM) opCompile(c *Compiler) error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	return c.compileValue(v)
}
