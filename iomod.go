package tardi

import (
	"fmt"
	"os"
)

// buildIOModule registers the reader/writer and console words. Console
// output goes through the VM's attached streams so drivers and tests can
// redirect it.
func buildIOModule(env *Environment) *Module {
	m := NewModule(ModIO)

	pushOp(env, m, "write-file", ioWriteFile)
	pushOp(env, m, "read-file", ioReadFile)
	pushOp(env, m, "<writer>", ioNewWriter)
	pushOp(env, m, "<reader>", ioNewReader)
	pushOp(env, m, "file-path>>", ioFilePath)
	pushOp(env, m, "close", ioClose)
	pushOp(env, m, "write", ioWrite)
	pushOp(env, m, "write-line", ioWriteLine)
	pushOp(env, m, "write-lines", ioWriteLines)
	pushOp(env, m, "flush", ioFlush)
	pushOp(env, m, "read", ioRead)
	pushOp(env, m, "read-line", ioReadLine)
	pushOp(env, m, "read-lines", ioReadLines)

	pushOp(env, m, "<stdin>", ioStdin)
	pushOp(env, m, "<stdout>", ioStdout)
	pushOp(env, m, "<stderr>", ioStderr)

	pushOp(env, m, "print", ioPrint)
	pushOp(env, m, "println", ioPrintln)
	pushOp(env, m, "nl", ioNl)
	pushOp(env, m, "eprint", ioEprint)
	pushOp(env, m, "eprintln", ioEprintln)
	pushOp(env, m, "enl", ioEnl)

	pushOp(env, m, ".", ioDot)
	pushOp(env, m, ".s", ioDotStack)

	return m
}

func popWriter(vm *VM, who string) (*Writer, error) {
	v, err := vm.pop()
	if err != nil {
		return nil, err
	}
	w, ok := v.Data.(*Writer)
	if !ok {
		return nil, typeMismatch("%v expects a writer, got %v", who, v.Data.Kind())
	}
	return w, nil
}

func popReader(vm *VM, who string) (*Reader, error) {
	v, err := vm.pop()
	if err != nil {
		return nil, err
	}
	r, ok := v.Data.(*Reader)
	if !ok {
		return nil, typeMismatch("%v expects a reader, got %v", who, v.Data.Kind())
	}
	return r, nil
}

// write-file ( contents path -- ? )
func ioWriteFile(vm *VM, _ *Compiler) error {
	path, err := popString(vm, "write-file")
	if err != nil {
		return err
	}
	contents, err := popString(vm, "write-file")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		return ioErr(err)
	}
	return pushBool(vm, true)
}

// read-file ( path -- contents ? )
func ioReadFile(vm *VM, _ *Compiler) error {
	path, err := popString(vm, "read-file")
	if err != nil {
		return err
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		return ioErr(err)
	}
	if err := pushString(vm, string(contents)); err != nil {
		return err
	}
	return pushBool(vm, true)
}

// <writer> ( path -- writer )
func ioNewWriter(vm *VM, _ *Compiler) error {
	path, err := popString(vm, "<writer>")
	if err != nil {
		return err
	}
	w, err := NewFileWriter(path)
	if err != nil {
		return err
	}
	return vm.push(NewValue(w))
}

// <reader> ( path -- reader )
func ioNewReader(vm *VM, _ *Compiler) error {
	path, err := popString(vm, "<reader>")
	if err != nil {
		return err
	}
	r, err := NewFileReader(path)
	if err != nil {
		return err
	}
	return vm.push(NewValue(r))
}

// file-path>> ( handle -- path )
func ioFilePath(vm *VM, _ *Compiler) error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	switch h := v.Data.(type) {
	case *Writer:
		if path, ok := h.Path(); ok {
			return pushString(vm, path)
		}
	case *Reader:
		if path, ok := h.Path(); ok {
			return pushString(vm, path)
		}
	}
	return typeMismatch("file-path>> expects a file handle, got %v", v.Repr())
}

// close ( handle -- ? )
func ioClose(vm *VM, _ *Compiler) error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	switch h := v.Data.(type) {
	case *Writer:
		if err := h.Close(); err != nil {
			return ioErr(err)
		}
	case *Reader:
		if err := h.Close(); err != nil {
			return ioErr(err)
		}
	default:
		return typeMismatch("close expects a reader or writer, got %v", v.Data.Kind())
	}
	return pushBool(vm, true)
}

// write ( contents writer -- ? )
func ioWrite(vm *VM, _ *Compiler) error {
	w, err := popWriter(vm, "write")
	if err != nil {
		return err
	}
	contents, err := popString(vm, "write")
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte(contents)); err != nil {
		return ioErr(err)
	}
	return pushBool(vm, true)
}

// write-line ( line writer -- ? )
func ioWriteLine(vm *VM, _ *Compiler) error {
	w, err := popWriter(vm, "write-line")
	if err != nil {
		return err
	}
	line, err := popString(vm, "write-line")
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, line); err != nil {
		return ioErr(err)
	}
	return pushBool(vm, true)
}

// write-lines ( line-vec writer -- ? )
func ioWriteLines(vm *VM, _ *Compiler) error {
	w, err := popWriter(vm, "write-lines")
	if err != nil {
		return err
	}
	lines, err := popList(vm, "write-lines")
	if err != nil {
		return err
	}
	for _, line := range lines.Items {
		if _, err := fmt.Fprintln(w, line.String()); err != nil {
			return ioErr(err)
		}
	}
	return pushBool(vm, true)
}

// flush ( writer -- ? )
func ioFlush(vm *VM, _ *Compiler) error {
	w, err := popWriter(vm, "flush")
	if err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return ioErr(err)
	}
	return pushBool(vm, true)
}

// read ( reader -- contents ? )
func ioRead(vm *VM, _ *Compiler) error {
	r, err := popReader(vm, "read")
	if err != nil {
		return err
	}
	contents, err := r.ReadAll()
	if err != nil {
		return err
	}
	if err := pushString(vm, contents); err != nil {
		return err
	}
	return pushBool(vm, true)
}

// read-line ( reader -- line ? )
func ioReadLine(vm *VM, _ *Compiler) error {
	r, err := popReader(vm, "read-line")
	if err != nil {
		return err
	}
	line, ok, err := r.ReadLine()
	if err != nil {
		return err
	}
	if !ok {
		if err := pushBool(vm, false); err != nil {
			return err
		}
		return pushBool(vm, false)
	}
	if err := pushString(vm, line); err != nil {
		return err
	}
	return pushBool(vm, true)
}

// read-lines ( reader -- line-vec ? ), answering #f #f once the stream has
// been drained.
func ioReadLines(vm *VM, _ *Compiler) error {
	r, err := popReader(vm, "read-lines")
	if err != nil {
		return err
	}
	if r.Consumed() {
		if err := pushBool(vm, false); err != nil {
			return err
		}
		return pushBool(vm, false)
	}
	lines, err := r.ReadLines()
	if err != nil {
		return err
	}
	items := make([]*Value, len(lines))
	for i, line := range lines {
		items[i] = NewValue(String(line))
	}
	if err := vm.push(NewValue(NewList(items...))); err != nil {
		return err
	}
	return pushBool(vm, true)
}

// <stdin> ( -- reader )
func ioStdin(vm *VM, _ *Compiler) error {
	return vm.push(NewValue(newStdReader(vm.in)))
}

// <stdout> ( -- writer )
func ioStdout(vm *VM, _ *Compiler) error {
	return vm.push(NewValue(newStdWriter(handleStd, vm.out)))
}

// <stderr> ( -- writer )
func ioStderr(vm *VM, _ *Compiler) error {
	return vm.push(NewValue(newStdWriter(handleErr, vm.errOut)))
}

func (vm *VM) printTo(out *Writer, text string) error {
	if _, err := out.Write([]byte(text)); err != nil {
		return ioErr(err)
	}
	return ioErr(out.Flush())
}

// print ( obj -- )
func ioPrint(vm *VM, _ *Compiler) error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	return vm.printTo(newStdWriter(handleStd, vm.out), v.String())
}

// println ( obj -- )
func ioPrintln(vm *VM, _ *Compiler) error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	return vm.printTo(newStdWriter(handleStd, vm.out), v.String()+"\n")
}

// nl ( -- )
func ioNl(vm *VM, _ *Compiler) error {
	return vm.printTo(newStdWriter(handleStd, vm.out), "\n")
}

// eprint ( obj -- )
func ioEprint(vm *VM, _ *Compiler) error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	return vm.printTo(newStdWriter(handleErr, vm.errOut), v.String())
}

// eprintln ( obj -- )
func ioEprintln(vm *VM, _ *Compiler) error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	return vm.printTo(newStdWriter(handleErr, vm.errOut), v.String()+"\n")
}

// enl ( -- )
func ioEnl(vm *VM, _ *Compiler) error {
	return vm.printTo(newStdWriter(handleErr, vm.errOut), "\n")
}

// . ( obj -- )
func ioDot(vm *VM, _ *Compiler) error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	return vm.printTo(newStdWriter(handleStd, vm.out), v.Repr()+"\n")
}

// .s ( ...s -- ...s )
func ioDotStack(vm *VM, _ *Compiler) error {
	for _, v := range vm.stack {
		if err := vm.printTo(newStdWriter(handleStd, vm.out), v.Repr()+"\n"); err != nil {
			return err
		}
	}
	return nil
}
