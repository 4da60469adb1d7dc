/*
Package tardi implements Tardi, a stack-based concatenative programming
language: source text is scanned into values, compiled to a linear stream of
integer instructions referencing an operation table, and executed by a
virtual machine over an explicit data stack and return stack.

The unusual part of the design is that compilation and execution interleave.
Macros are immediate words: when the compiler's first pass recognizes one,
it hands the in-flight value accumulator to the VM and runs the macro right
then, and the macro may scan further input, compile code, define words, or
rewrite already-emitted instructions before compilation resumes. That
re-entrancy is why the scanner, compiler, and VM all live in this one
package, sharing a single Environment by reference.

Construction loads the native std/* modules, runs the embedded bootstrap
fragments (which define the colon-definition, comment, and quotation macros
in Tardi itself) into std/kernel, and opens a std/sandbox namespace that
user input compiles into:

	interp, err := tardi.New()
	if err != nil { ... }
	if err := interp.ExecuteString("2 3 +"); err != nil { ... }
	fmt.Println(interp.Stack()) // [5]

One interpreter accepts any number of inputs; definitions, modules, and the
data stack persist between them, and execution errors leave the data stack
in place for inspection.
*/
package tardi
