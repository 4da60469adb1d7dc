package tardi

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// compileClosure collects the words and instructions of a quotation being
// assembled. Closures nest through the closure stack; the innermost one
// receives all emission until it closes.
type compileClosure struct {
	words        []string
	instructions []int
}

// compileUnit is one source being compiled: its scanner, the module its
// definitions land in, and the file path (empty for strings) that anchors
// relative imports.
type compileUnit struct {
	scanner *Scanner
	module  string
	path    string
}

// Compiler drives the two-pass pipeline. Pass 1 scans values and runs
// macros, which may re-enter the VM, the compiler, and the scanner; pass 2
// emits instructions into the shared environment.
type Compiler struct {
	env      *Environment
	closures []*compileClosure
	units    []*compileUnit
}

// NewCompiler makes a compiler over the environment.
func NewCompiler(env *Environment) *Compiler {
	return &Compiler{env: env}
}

func (c *Compiler) currentUnit() (*compileUnit, error) {
	if len(c.units) == 0 {
		return nil, compileErrf(ErrInvalidCompilerState, "no source is being compiled")
	}
	return c.units[len(c.units)-1], nil
}

func (c *Compiler) currentModule() (*Module, error) {
	unit, err := c.currentUnit()
	if err != nil {
		return nil, err
	}
	module := c.env.Module(unit.module)
	if module == nil {
		return nil, vmErrf(ErrMissingModule, "%v", unit.module)
	}
	return module, nil
}

// Compile runs both passes over input, binding definitions into moduleName.
// path anchors relative imports and is empty for string sources.
func (c *Compiler) Compile(vm *VM, moduleName, path, input string) error {
	log.Debugf("compiling %d bytes into %v", len(input), moduleName)
	unit := &compileUnit{scanner: NewScanner(input), module: moduleName, path: path}
	c.units = append(c.units, unit)
	defer func() { c.units = c.units[:len(c.units)-1] }()

	accum, err := c.pass1(vm)
	if err != nil {
		return err
	}
	if err := c.pass2(accum); err != nil {
		return err
	}
	if len(c.closures) > 0 {
		c.closures = c.closures[:0]
		return compileErrf(ErrUnmatchedBrace, "quotation still open at end of input")
	}
	return nil
}

// scanValue reads the next raw value from the current unit, dropping doc
// comments. It returns nil once the unit's EndOfInput has been consumed.
func (c *Compiler) scanValue() (*Value, error) {
	unit, err := c.currentUnit()
	if err != nil {
		return nil, err
	}
	for {
		v, err := unit.scanner.Next()
		if err != nil || v == nil {
			return v, err
		}
		if v.Data.Kind() == KindComment {
			continue
		}
		return v, nil
	}
}

// mustScanValue is scanValue for contexts where input running out is an
// error, such as reading a macro trigger.
func (c *Compiler) mustScanValue() (*Value, error) {
	v, err := c.scanValue()
	if err != nil {
		return nil, err
	}
	if v == nil || v.Data.Kind() == KindEndOfInput {
		return nil, &ScannerError{Kind: ErrUnexpectedEndOfInput}
	}
	return v, nil
}

// scanValueList drains raw values until the delimiter without expanding
// macros. Literal-wrapped delimiters compare by their boxed value.
func (c *Compiler) scanValueList(delimiter Data) ([]*Value, error) {
	unit, err := c.currentUnit()
	if err != nil {
		return nil, err
	}
	return unit.scanner.ScanValueList(unwrapLiteral(delimiter))
}

func unwrapLiteral(d Data) Data {
	if lit, ok := d.(Literal); ok {
		return lit.Boxed.Data
	}
	return d
}

// pass1 expands macros over the scanned stream, producing the final value
// buffer. The accumulator is a List value so macros can observe and mutate
// it in place through the data stack.
func (c *Compiler) pass1(vm *VM) (*Value, error) {
	accum := NewValue(NewList())
	for {
		v, err := c.scanValue()
		if err != nil {
			return nil, err
		}
		if v == nil {
			return accum, nil
		}

		switch {
		case v.Data.Kind() == KindMacro:
			if err := c.compileMacroDefinition(vm); err != nil {
				return nil, err
			}
		default:
			if macro := c.findMacro(v.Data); macro != nil {
				accum, err = c.executeMacro(vm, macro, accum)
				if err != nil {
					return nil, err
				}
				continue
			}
			list, _ := accum.AsList()
			list.Items = append(list.Items, v)
		}
	}
}

// findMacro resolves a value to an immediate lambda visible from the
// current module, or nil.
func (c *Compiler) findMacro(d Data) *Lambda {
	module, err := c.currentModule()
	if err != nil {
		return nil
	}
	var index int
	var ok bool
	switch trigger := d.(type) {
	case Word:
		index, ok = module.Get(string(trigger))
	case Symbol:
		if target := c.env.Module(trigger.Module); target != nil {
			index, ok = target.Get(trigger.Word)
		}
	}
	if !ok {
		return nil
	}
	if lambda := c.env.Op(index); lambda != nil && lambda.Immediate {
		return lambda
	}
	return nil
}

// executeMacro runs the macro protocol: the accumulator is pushed on the
// data stack, the macro runs synchronously, and the value left on top
// becomes the new accumulator.
func (c *Compiler) executeMacro(vm *VM, macro *Lambda, accum *Value) (*Value, error) {
	log.Tracef("executing macro %v", macro)
	if err := vm.push(accum); err != nil {
		return nil, err
	}
	if err := vm.runLambda(macro, c); err != nil {
		// don't leave the accumulator stranded for the user to find
		if top, perr := vm.peek(); perr == nil && top == accum {
			vm.pop()
		}
		return nil, err
	}
	result, err := vm.pop()
	if err != nil {
		return nil, err
	}
	if _, ok := result.AsList(); !ok {
		return nil, typeMismatch("macro %v left %v instead of the accumulator",
			macro, result.Data.Kind())
	}
	return result, nil
}

// compileMacroDefinition handles the MACRO: sentinel: one value names the
// trigger, the body runs to `;` with macros expanding (so quote forms can
// mention the delimiter), and the compiled lambda is registered immediate
// in the current module.
func (c *Compiler) compileMacroDefinition(vm *VM) error {
	trigger, err := c.mustScanValue()
	if err != nil {
		return err
	}
	name := trigger.Lexeme
	if name == "" {
		name = trigger.Data.String()
	}
	log.Tracef("defining macro %q", name)

	bodyAccum, err := c.collectObjects(vm, Word(";"))
	if err != nil {
		return err
	}
	body, _ := bodyAccum.AsList()
	lambda, err := c.compileList(body.Items)
	if err != nil {
		return err
	}
	lambda.Name = name
	lambda.Immediate = true

	module, err := c.currentModule()
	if err != nil {
		return err
	}
	module.Defined[name] = c.env.AddToOpTable(lambda)
	return nil
}

// collectObjects scans values until the delimiter, expanding macros as it
// goes; the partial collection is the accumulator those macros see.
func (c *Compiler) collectObjects(vm *VM, delimiter Data) (*Value, error) {
	delimiter = unwrapLiteral(delimiter)
	accum := NewValue(NewList())
	for {
		v, err := c.scanValue()
		if err != nil {
			return nil, err
		}
		if v == nil || v.Data.Kind() == KindEndOfInput {
			return nil, &ScannerError{Kind: ErrUnexpectedEndOfInput}
		}
		if Equal(v.Data, delimiter) {
			return accum, nil
		}
		if macro := c.findMacro(v.Data); macro != nil {
			accum, err = c.executeMacro(vm, macro, accum)
			if err != nil {
				return nil, err
			}
			continue
		}
		list, _ := accum.AsList()
		list.Items = append(list.Items, v)
	}
}

// pass2 emits instructions for each accumulated value.
func (c *Compiler) pass2(accum *Value) error {
	list, ok := accum.AsList()
	if !ok {
		return compileErrf(ErrInvalidCompilerState, "accumulator is %v", accum.Data.Kind())
	}
	for _, v := range list.Items {
		if err := c.compileValue(v); err != nil {
			return err
		}
	}
	return nil
}

// compileValue emits one value. This is also the implementation of the
// `compile` word, so macros can feed synthetic values through pass 2.
func (c *Compiler) compileValue(v *Value) error {
	if len(c.closures) > 0 && v.Lexeme != "" {
		top := c.closures[len(c.closures)-1]
		top.words = append(top.words, v.Lexeme)
	}

	switch d := v.Data.(type) {
	case Integer, Float, Boolean, Char, String, *List, *HashMap, Address:
		return c.compileConstant(v)
	case Literal:
		// quoted forms push their boxed value as data
		return c.compileConstant(d.Boxed)
	case *Lambda:
		if d.Name == "" {
			return c.compileConstant(v)
		}
		module, err := c.currentModule()
		if err != nil {
			return err
		}
		module.Defined[d.Name] = c.env.AddToOpTable(d)
		return nil
	case Word:
		return c.compileWord(v, string(d))
	case Symbol:
		target := c.env.Module(d.Module)
		if target == nil {
			return vmErrf(ErrMissingModule, "%v", d.Module)
		}
		index, ok := target.Get(d.Word)
		if !ok {
			return compileErrf(ErrUndefinedWord, "%v", d)
		}
		c.compileOpArg(OpCall, index)
		return nil
	case Comment:
		return nil
	case EndOfInput:
		c.compileOp(OpReturn)
		return nil
	case Macro:
		return compileErrf(ErrInvalidCompilerState, "MACRO: reached pass 2")
	}
	return compileErrf(ErrUnsupportedToken, "%v value %v", v.Data.Kind(), v.Repr())
}

// compileWord resolves a word: quotation braces and the loop placeholders
// are structural, known words thread a call, and unknown words defer to a
// runtime literal.
func (c *Compiler) compileWord(v *Value, word string) error {
	switch word {
	case "{":
		c.startFunction()
		return nil
	case "}":
		if len(c.closures) == 0 {
			return &CompilerError{Kind: ErrUnmatchedBrace}
		}
		lambda, err := c.closeQuotation()
		if err != nil {
			return err
		}
		return c.compileConstant(NewValue(lambda))
	case "break", "continue":
		// placeholders only make sense inside a quotation a loop can claim
		if len(c.closures) == 0 {
			return compileErrf(ErrBreakOutsideLoop, "%v", word)
		}
		if word == "break" {
			c.compileOp(OpBreak)
		} else {
			c.compileOp(OpContinue)
		}
		c.compileInstruction(placeholderTarget)
		return nil
	}

	module, err := c.currentModule()
	if err != nil {
		return err
	}
	if index, ok := module.Get(word); ok {
		c.compileOpArg(OpCall, index)
		return nil
	}

	// deferred binding: push the bare word and let the runtime complain if
	// it never resolves
	log.Tracef("deferring unresolved word %q", word)
	return c.compileConstant(v)
}

func (c *Compiler) compileConstant(v *Value) error {
	index := c.env.AddConstant(v)
	c.compileOpArg(OpLit, index)
	return nil
}

func (c *Compiler) compileOp(op OpCode) {
	c.compileInstruction(int(op))
}

func (c *Compiler) compileOpArg(op OpCode, arg int) {
	c.compileInstruction(int(op))
	c.compileInstruction(arg)
}

// compileInstruction routes emission to the innermost open quotation, or to
// the main buffer when none is open.
func (c *Compiler) compileInstruction(instr int) {
	if len(c.closures) > 0 {
		top := c.closures[len(c.closures)-1]
		top.instructions = append(top.instructions, instr)
		return
	}
	c.env.AddInstruction(instr)
}

// startFunction opens a quotation scope.
func (c *Compiler) startFunction() {
	c.closures = append(c.closures, &compileClosure{})
}

// closeQuotation seals the innermost quotation: it appends the rewritable
// tail, splices the body into the main buffer behind a jump over it, and
// returns the lambda addressing the spliced window.
func (c *Compiler) closeQuotation() (*Lambda, error) {
	if len(c.closures) == 0 {
		return nil, compileErrf(ErrInvalidCompilerState, "no open quotation")
	}
	// the Nop Nop Return tail gives the loop macro room to rewrite the exit
	// into a backward jump in place
	c.compileOp(OpNop)
	c.compileOp(OpNop)
	c.compileOp(OpReturn)

	closure := c.closures[len(c.closures)-1]
	c.closures = c.closures[:len(c.closures)-1]

	words := closure.words
	for len(words) > 0 && words[len(words)-1] == "}" {
		words = words[:len(words)-1]
	}

	body := closure.instructions
	c.env.AddInstruction(int(OpJump))
	c.env.AddInstruction(c.env.InstructionsLen() + 1 + len(body))
	ip := c.env.ExtendInstructions(body)

	log.Tracef("compiled quotation [%d, %d)", ip, ip+len(body))
	return NewCompiledLambda(words, ip, len(body)), nil
}

// compileList compiles a collected value list into an anonymous lambda.
// Macros in the list have already been expanded by collection.
func (c *Compiler) compileList(values []*Value) (*Lambda, error) {
	c.startFunction()
	for _, v := range values {
		if err := c.compileValue(v); err != nil {
			c.closures = c.closures[:len(c.closures)-1]
			return nil, err
		}
	}
	return c.closeQuotation()
}

// useModule implements the uses: macro: read module names to `;`, load each,
// and merge its exports into the current module's imports.
func (c *Compiler) useModule(vm *VM) error {
	names, err := c.scanValueList(Word(";"))
	if err != nil {
		return err
	}
	module, err := c.currentModule()
	if err != nil {
		return err
	}
	for _, nameV := range names {
		name, ok := nameV.AsWordName()
		if !ok {
			if name, ok = nameV.AsString(); !ok {
				return compileErrf(ErrUnsupportedToken, "module name %v", nameV.Repr())
			}
		}
		loaded, err := c.loadModule(vm, name)
		if err != nil {
			return err
		}
		for word, index := range loaded.GetExports() {
			module.Imported[word] = index
		}
	}
	return nil
}

// loadModule resolves and loads a module: internal modules are synthesized
// from native code, file modules are compiled and executed in their own
// namespace before their exports become available.
func (c *Compiler) loadModule(vm *VM, name string) (*Module, error) {
	if builder, ok := internalModules[name]; ok {
		if !c.env.HasModule(name) {
			log.Debugf("loading internal module %v", name)
			c.env.AddModule(builder(c.env))
		}
		return c.env.Module(name), nil
	}

	unit, err := c.currentUnit()
	if err != nil {
		return nil, err
	}
	canonical, path, err := c.env.Manager().Find(name, unit.path)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, compileErrf(ErrModuleNotFound, "%v", name)
	}
	// a module seen again while its own load is still on the stack is a
	// cycle; one that finished loading is just shared
	if err := c.env.Manager().BeginLoad(canonical); err != nil {
		return nil, err
	}
	if c.env.HasModule(canonical) {
		c.env.Manager().EndLoad(canonical)
		return c.env.Module(canonical), nil
	}
	defer c.env.Manager().EndLoad(canonical)

	source, err := os.ReadFile(path)
	if err != nil {
		return nil, ioErr(err)
	}

	log.Debugf("loading module %v from %v", canonical, path)
	module := NewModuleWithPath(canonical, path)
	if kernel := c.env.Module(ModKernel); kernel != nil {
		for word, index := range kernel.Defined {
			module.Imported[word] = index
		}
	}
	c.env.AddModule(module)

	if err := c.Compile(vm, canonical, path, string(source)); err != nil {
		return nil, err
	}
	// run the module's top level now so its definitions exist before the
	// importer's code compiles against them
	if err := vm.run(c); err != nil {
		return nil, err
	}
	return module, nil
}

// exportList implements the exports: macro: read words to `;` into the
// current module's explicit export set.
func (c *Compiler) exportList() error {
	names, err := c.scanValueList(Word(";"))
	if err != nil {
		return err
	}
	module, err := c.currentModule()
	if err != nil {
		return err
	}
	for _, nameV := range names {
		name, ok := nameV.AsWordName()
		if !ok {
			return compileErrf(ErrUnsupportedToken, "export name %v", nameV.Repr())
		}
		module.Exported.Add(name)
	}
	return nil
}
