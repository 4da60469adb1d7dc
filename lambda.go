package tardi

import (
	"reflect"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// OpFn is the signature of a native operation. Builtins get both the VM and
// the compiler because macros and the scanning words re-enter compilation
// mid-run.
type OpFn func(vm *VM, c *Compiler) error

// Lambda is an op-table entry: a named word, an anonymous quotation, or a
// macro (immediate lambda run by the compiler during pass 1).
type Lambda struct {
	// Name is empty for anonymous quotations.
	Name string

	// Immediate marks a macro: the compiler executes it during pass 1.
	Immediate bool

	// Defined is false for predeclared words; calling one is an error.
	Defined bool

	Callable Callable
}

// Callable is either a native function or a compiled instruction window.
type Callable interface{ callable() }

// BuiltIn wraps a native operation.
type BuiltIn struct {
	Fn OpFn
}

func (BuiltIn) callable() {}

// Compiled points at an instruction window in the shared environment.
type Compiled struct {
	Words  []string
	IP     int
	Length int
	IsLoop bool
}

func (*Compiled) callable() {}

// NewBuiltin makes a defined native word.
func NewBuiltin(name string, fn OpFn) *Lambda {
	return &Lambda{Name: name, Defined: true, Callable: BuiltIn{Fn: fn}}
}

// NewBuiltinMacro makes a native immediate word.
func NewBuiltinMacro(name string, fn OpFn) *Lambda {
	return &Lambda{Name: name, Immediate: true, Defined: true, Callable: BuiltIn{Fn: fn}}
}

// NewCompiledLambda makes an anonymous quotation over an instruction window.
func NewCompiledLambda(words []string, ip, length int) *Lambda {
	return &Lambda{Defined: true, Callable: &Compiled{Words: words, IP: ip, Length: length}}
}

// NewUndefined predeclares a word. It occupies an op-table slot so that
// references resolve, but calling it before definition fails.
func NewUndefined(name string) *Lambda {
	return &Lambda{Name: name, Callable: &Compiled{}}
}

func (l *Lambda) Kind() Kind { return KindFunction }

func (l *Lambda) String() string {
	if l.Name != "" {
		return l.Name
	}
	if c, ok := l.Callable.(*Compiled); ok {
		return "[ " + strings.Join(c.Words, " ") + " ]@" + strconv.Itoa(c.IP)
	}
	return "fn"
}

// IsBuiltin reports whether the lambda runs native code.
func (l *Lambda) IsBuiltin() bool {
	_, ok := l.Callable.(BuiltIn)
	return ok
}

// CompiledCallable returns the compiled window, or nil for builtins.
func (l *Lambda) CompiledCallable() *Compiled {
	c, _ := l.Callable.(*Compiled)
	return c
}

// IP is the start address of a compiled lambda, -1 for builtins.
func (l *Lambda) IP() int {
	if c := l.CompiledCallable(); c != nil {
		return c.IP
	}
	return -1
}

// IsLoop reports whether the loop macro has claimed this lambda.
func (l *Lambda) IsLoop() bool {
	c := l.CompiledCallable()
	return c != nil && c.IsLoop
}

// SetLoop marks a compiled lambda as a loop body.
func (l *Lambda) SetLoop(isLoop bool) {
	if c := l.CompiledCallable(); c != nil {
		c.IsLoop = isLoop
	}
}

// Define fills in a predeclared word with its compiled window.
func (l *Lambda) Define(ip, length int, words []string) error {
	c := l.CompiledCallable()
	if c == nil {
		return typeMismatch("defining the builtin %q", l.Name)
	}
	c.IP = ip
	c.Length = length
	c.Words = words
	l.Defined = true
	return nil
}

// Call invokes the lambda on the VM: native functions run directly; compiled
// lambdas push a return record and move the instruction pointer.
func (l *Lambda) Call(vm *VM, c *Compiler) error {
	if !l.Defined {
		name := l.Name
		if name == "" {
			name = "<lambda>"
		}
		return vmErrf(ErrInvalidWordCall, "%v", name)
	}
	switch impl := l.Callable.(type) {
	case BuiltIn:
		return impl.Fn(vm, c)
	case *Compiled:
		log.Tracef("calling %v @%d", l, impl.IP)
		if err := vm.pushReturn(NewValue(ReturnRecord{Address: vm.ip, IsLoopBreakpoint: impl.IsLoop})); err != nil {
			return err
		}
		vm.ip = impl.IP
		return nil
	}
	return vmErrf(ErrTypeMismatch, "uncallable lambda %v", l)
}

// sameCallable is lambda equality: builtins by function identity, compiled
// lambdas by start address.
func (l *Lambda) sameCallable(other *Lambda) bool {
	switch a := l.Callable.(type) {
	case BuiltIn:
		if b, ok := other.Callable.(BuiltIn); ok {
			return reflect.ValueOf(a.Fn).Pointer() == reflect.ValueOf(b.Fn).Pointer()
		}
	case *Compiled:
		if b, ok := other.Callable.(*Compiled); ok {
			return a.IP == b.IP
		}
	}
	return false
}
