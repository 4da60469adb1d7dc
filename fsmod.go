package tardi

import "os"

// buildFSModule registers the filesystem words.
func buildFSModule(env *Environment) *Module {
	m := NewModule(ModFS)

	pushOp(env, m, "rm", fsRm)
	pushOp(env, m, "truncate", fsTruncate)
	pushOp(env, m, "exists?", fsExists)
	pushOp(env, m, "rmdir", fsRmdir)
	pushOp(env, m, "ensure-dir", fsEnsureDir)
	pushOp(env, m, "touch", fsTouch)
	pushOp(env, m, "ls", fsLs)

	return m
}

// rm ( path -- ? )
func fsRm(vm *VM, _ *Compiler) error {
	path, err := popString(vm, "rm")
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return ioErr(err)
	}
	return pushBool(vm, true)
}

// truncate ( path -- ? )
func fsTruncate(vm *VM, _ *Compiler) error {
	path, err := popString(vm, "truncate")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		return ioErr(err)
	}
	return pushBool(vm, true)
}

// exists? ( path -- ? )
func fsExists(vm *VM, _ *Compiler) error {
	path, err := popString(vm, "exists?")
	if err != nil {
		return err
	}
	_, statErr := os.Stat(path)
	return pushBool(vm, statErr == nil)
}

// rmdir ( path -- ? ), #t only if the directory was removed.
func fsRmdir(vm *VM, _ *Compiler) error {
	path, err := popString(vm, "rmdir")
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(path); statErr != nil {
		return pushBool(vm, false)
	}
	if err := os.Remove(path); err != nil {
		return ioErr(err)
	}
	return pushBool(vm, true)
}

// ensure-dir ( path -- ? ), #t only if the directory was created.
func fsEnsureDir(vm *VM, _ *Compiler) error {
	path, err := popString(vm, "ensure-dir")
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(path); statErr == nil {
		return pushBool(vm, false)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return ioErr(err)
	}
	return pushBool(vm, true)
}

// touch ( path -- ? )
func fsTouch(vm *VM, _ *Compiler) error {
	path, err := popString(vm, "touch")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		return ioErr(err)
	}
	return pushBool(vm, true)
}

// ls ( dir-path -- vec )
func fsLs(vm *VM, _ *Compiler) error {
	path, err := popString(vm, "ls")
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return ioErr(err)
	}
	items := make([]*Value, len(entries))
	for i, entry := range entries {
		items[i] = NewValue(String(entry.Name()))
	}
	return vm.push(NewValue(NewList(items...)))
}
