package tardi

import (
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/tardi-lang/tardi/internal/flushio"
	"github.com/tardi-lang/tardi/internal/panicerr"
)

// Tardi is the interpreter aggregate: one environment shared by reference
// between a compiler and a VM, with the internal modules and bootstrap
// loaded. One instance serves many inputs; state accumulates across them.
type Tardi struct {
	env      *Environment
	compiler *Compiler
	vm       *VM
}

// Option configures a new interpreter.
type Option func(*Tardi)

// WithModulePaths sets the module search paths.
func WithModulePaths(paths []string) Option {
	return func(t *Tardi) {
		t.env.manager = NewModuleManager(paths)
	}
}

// WithStdin redirects the reader behind <stdin>.
func WithStdin(r io.Reader) Option {
	return func(t *Tardi) { t.vm.in = r }
}

// WithStdout redirects print and <stdout> output.
func WithStdout(w io.Writer) Option {
	return func(t *Tardi) { t.vm.out = flushio.NewWriteFlusher(w) }
}

// WithStderr redirects eprint and <stderr> output.
func WithStderr(w io.Writer) Option {
	return func(t *Tardi) { t.vm.errOut = flushio.NewWriteFlusher(w) }
}

// New builds an interpreter: internal modules are synthesized, the
// bootstrap fragments run in the kernel, and the sandbox is created over
// the resulting kernel namespace.
func New(opts ...Option) (*Tardi, error) {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	env := NewEnvironment([]string{cwd})
	t := &Tardi{
		env:      env,
		compiler: NewCompiler(env),
		vm:       NewVM(env),
	}
	for _, opt := range opts {
		opt(t)
	}

	for _, name := range []string{
		ModKernel, ModInternals, ModScanning, ModStrings,
		ModVectors, ModHashMaps, ModIO, ModFS,
	} {
		env.AddModule(internalModules[name](env))
	}
	if err := t.runBootstrap(); err != nil {
		return nil, err
	}
	env.AddModule(buildSandboxModule(env))

	return t, nil
}

// Env exposes the shared environment.
func (t *Tardi) Env() *Environment { return t.env }

// Stack snapshots the data stack bottom to top.
func (t *Tardi) Stack() []*Value { return t.vm.Stack() }

// ExecuteString compiles and runs input in the sandbox module.
func (t *Tardi) ExecuteString(input string) error {
	return t.execute(ModSandbox, "", input)
}

// ExecuteModuleString compiles and runs input in the named module.
func (t *Tardi) ExecuteModuleString(module, input string) error {
	return t.execute(module, "", input)
}

// ExecuteFile runs a script in the sandbox, with the file's location
// anchoring its relative imports.
func (t *Tardi) ExecuteFile(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return ioErr(err)
	}
	source, err := os.ReadFile(abs)
	if err != nil {
		return ioErr(err)
	}
	return t.execute(ModSandbox, abs, string(source))
}

func (t *Tardi) execute(module, path, input string) error {
	return panicerr.Recover("tardi", func() error {
		if err := t.compiler.Compile(t.vm, module, path, input); err != nil {
			// poison the freshly compiled region so the next input starts
			// clean, mirroring the VM's own error recovery
			t.vm.fail(nil)
			return err
		}
		log.Tracef("environment after compile:\n%v", t.env.Dump())
		// code running after compilation still defines words into this module
		t.compiler.units = append(t.compiler.units, &compileUnit{scanner: NewScanner(""), module: module, path: path})
		defer func() { t.compiler.units = t.compiler.units[:len(t.compiler.units)-1] }()
		return t.vm.Run(t.compiler)
	})
}
