package tardi

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeModule(t *testing.T, dir, name, source string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name)+ModuleExt)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(source), 0o644))
	return path
}

func TestModuleGetPrecedence(t *testing.T) {
	m := NewModule("m")
	m.Defined["w"] = 3
	m.Imported["w"] = 9
	m.Imported["x"] = 5

	index, ok := m.Get("w")
	require.True(t, ok)
	assert.Equal(t, 3, index, "defined wins over imported")

	index, ok = m.Get("x")
	require.True(t, ok)
	assert.Equal(t, 5, index)

	_, ok = m.Get("missing")
	assert.False(t, ok)
}

func TestModuleExports(t *testing.T) {
	m := NewModule("m")
	m.Defined["a"] = 1
	m.Defined["b"] = 2
	m.Imported["c"] = 3

	// no explicit list: everything defined
	assert.Equal(t, map[string]int{"a": 1, "b": 2}, m.GetExports())

	// explicit list resolves against defined then imported
	m.Exported.Add("b")
	m.Exported.Add("c")
	m.Exported.Add("ghost")
	assert.Equal(t, map[string]int{"b": 2, "c": 3}, m.GetExports())
}

func TestManagerFind(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "util/math", ": sq dup * ;")
	mm := NewModuleManager([]string{dir})

	name, path, err := mm.Find("util/math", "")
	require.NoError(t, err)
	assert.Equal(t, "util/math", name)
	assert.Equal(t, filepath.Join(dir, "util", "math"+ModuleExt), path)

	_, path, err = mm.Find("missing", "")
	require.NoError(t, err)
	assert.Empty(t, path, "missing modules resolve to nothing, not an error")
}

func TestManagerFindRelative(t *testing.T) {
	dir := t.TempDir()
	main := writeModule(t, dir, "app/main", "uses: ./helper ;")
	writeModule(t, dir, "app/helper", ": help 1 ;")
	mm := NewModuleManager([]string{dir})

	name, path, err := mm.Find("./helper", main)
	require.NoError(t, err)
	assert.Equal(t, "app/helper", name, "relative modules get search-root names")
	assert.Equal(t, filepath.Join(dir, "app", "helper"+ModuleExt), path)

	_, _, err = mm.Find("./helper", "")
	assert.ErrorIs(t, err, &CompilerError{Kind: ErrModuleNotFound},
		"a relative module with no context has nowhere to resolve from")
}

func TestManagerRejectsEscapingModules(t *testing.T) {
	inside := t.TempDir()
	outside := t.TempDir()
	source := writeModule(t, inside, "main", "")
	writeModule(t, outside, "rogue", "")
	mm := NewModuleManager([]string{inside})

	_, _, err := mm.FindAbsModule(source, "../"+filepath.Base(outside)+"/rogue")
	assert.ErrorIs(t, err, &CompilerError{Kind: ErrInvalidModulePath})
}

func TestManagerCycleMarks(t *testing.T) {
	mm := NewModuleManager(nil)
	require.NoError(t, mm.BeginLoad("a"))
	assert.ErrorIs(t, mm.BeginLoad("a"), &CompilerError{Kind: ErrImportCycle})
	mm.EndLoad("a")
	assert.NoError(t, mm.BeginLoad("a"))
}

func TestUsesLoadsFileModules(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "mathmod", ": sq dup * ;  : cube dup sq * ;  exports: sq ;")

	interp, err := New(WithModulePaths([]string{dir}))
	require.NoError(t, err)

	require.NoError(t, interp.ExecuteString("uses: mathmod ;  3 sq"))
	requireStack(t, interp, "9")

	// cube was not exported, so it stays a deferred literal
	require.NoError(t, interp.ExecuteString("clear 4 cube"))
	requireStack(t, interp, "4", "cube")
}

func TestUsesModuleNotFound(t *testing.T) {
	interp, err := New(WithModulePaths([]string{t.TempDir()}))
	require.NoError(t, err)
	err = interp.ExecuteString("uses: no-such-module ;")
	assert.ErrorIs(t, err, &CompilerError{Kind: ErrModuleNotFound})
}

func TestUsesRelativeImports(t *testing.T) {
	dir := t.TempDir()
	main := writeModule(t, dir, "app/main", "uses: ./helper ;  5 help")
	writeModule(t, dir, "app/helper", ": help 10 * ;")

	interp, err := New(WithModulePaths([]string{dir}))
	require.NoError(t, err)
	require.NoError(t, interp.ExecuteFile(main))
	requireStack(t, interp, "50")
}

func TestUsesImportCycle(t *testing.T) {
	dir := t.TempDir()
	a := writeModule(t, dir, "a", "uses: ./b ;")
	writeModule(t, dir, "b", "uses: ./a ;")

	interp, err := New(WithModulePaths([]string{dir}))
	require.NoError(t, err)
	assert.ErrorIs(t, interp.ExecuteFile(a), &CompilerError{Kind: ErrImportCycle})
}

func TestModuleTopLevelRunsOnce(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "noisy", "11")

	interp, err := New(WithModulePaths([]string{dir}))
	require.NoError(t, err)

	// the module's top level pushed 11 during the load, and only once
	require.NoError(t, interp.ExecuteString("uses: noisy ;  22"))
	requireStack(t, interp, "11", "22")

	require.NoError(t, interp.ExecuteString("clear uses: noisy ;"))
	requireStack(t, interp)
}

func requireStack(t *testing.T, interp *Tardi, reprs ...string) {
	t.Helper()
	stack := interp.Stack()
	got := make([]string, len(stack))
	for i, v := range stack {
		got[i] = v.Repr()
	}
	if reprs == nil {
		reprs = []string{}
	}
	require.Equal(t, reprs, got)
}
