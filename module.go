package tardi

import (
	"os"
	"path/filepath"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	log "github.com/sirupsen/logrus"
)

// ModuleExt is the extension module files are discovered by.
const ModuleExt = ".tardi"

// Module is a namespace binding word names to op-table indices.
type Module struct {
	Name string
	// Path is empty for internal modules and the sandbox.
	Path string

	// Defined maps words declared in this module to op-table indices.
	Defined map[string]int

	// Imported maps words merged in by uses: to op-table indices.
	Imported map[string]int

	// Exported lists the explicit export names; when empty, Defined is the
	// export set.
	Exported mapset.Set[string]
}

// NewModule makes an empty module.
func NewModule(name string) *Module {
	return &Module{
		Name:     name,
		Defined:  make(map[string]int),
		Imported: make(map[string]int),
		Exported: mapset.NewThreadUnsafeSet[string](),
	}
}

// NewModuleWithPath makes an empty module backed by a source file.
func NewModuleWithPath(name, path string) *Module {
	m := NewModule(name)
	m.Path = path
	return m
}

// Get resolves a word, checking defined names before imports.
func (m *Module) Get(word string) (int, bool) {
	if index, ok := m.Defined[word]; ok {
		return index, true
	}
	index, ok := m.Imported[word]
	return index, ok
}

// GetExports is the export map: all of Defined when no explicit list was
// given, otherwise the listed subset resolved against defined then imported.
func (m *Module) GetExports() map[string]int {
	exports := make(map[string]int)
	if m.Exported.Cardinality() == 0 {
		for name, index := range m.Defined {
			exports[name] = index
		}
		return exports
	}
	for name := range m.Exported.Iter() {
		if index, ok := m.Get(name); ok {
			exports[name] = index
		}
	}
	return exports
}

// ModuleManager resolves module names to files under the configured search
// paths and tracks in-flight loads to reject import cycles.
type ModuleManager struct {
	Paths []string

	loading mapset.Set[string]
}

// NewModuleManager canonicalizes the given search paths, dropping any that
// do not exist.
func NewModuleManager(paths []string) *ModuleManager {
	resolved := make([]string, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		if _, err := os.Stat(abs); err != nil {
			continue
		}
		resolved = append(resolved, abs)
	}
	return &ModuleManager{
		Paths:   resolved,
		loading: mapset.NewThreadUnsafeSet[string](),
	}
}

// Find resolves a module name to (canonical name, path). Relative names
// (./ or ../) resolve against the context file and must land under a search
// path; absolute names are tried against each search path in order. A nil
// error with empty path means the module was not found anywhere.
func (mm *ModuleManager) Find(module, context string) (string, string, error) {
	log.Debugf("finding module %q in context %q", module, context)
	if strings.HasPrefix(module, "./") || strings.HasPrefix(module, "../") {
		if context == "" {
			return "", "", compileErrf(ErrModuleNotFound, "relative module %q with no context", module)
		}
		return mm.FindAbsModule(context, module)
	}

	for _, root := range mm.Paths {
		target := filepath.Join(root, filepath.FromSlash(module)) + ModuleExt
		if _, err := os.Stat(target); err == nil {
			abs, err := filepath.Abs(target)
			if err != nil {
				return "", "", ioErr(err)
			}
			return module, abs, nil
		}
	}
	return "", "", nil
}

// FindAbsModule resolves target relative to the directory of sourcePath and
// names it by its position under a search root. A target outside every
// search path is an InvalidModulePath error; a target that does not exist
// resolves to an empty path.
func (mm *ModuleManager) FindAbsModule(sourcePath, target string) (string, string, error) {
	dir := filepath.Dir(sourcePath)
	candidate := filepath.Join(dir, filepath.FromSlash(target)) + ModuleExt
	abs, err := filepath.Abs(candidate)
	if err != nil {
		return "", "", ioErr(err)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", "", nil
	}

	for _, root := range mm.Paths {
		rel, err := filepath.Rel(root, abs)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		name := strings.TrimSuffix(rel, ModuleExt)
		name = filepath.ToSlash(name)
		return name, abs, nil
	}
	return "", "", compileErrf(ErrInvalidModulePath, "%v", abs)
}

// BeginLoad marks a module as loading, failing on a cycle.
func (mm *ModuleManager) BeginLoad(name string) error {
	if mm.loading.Contains(name) {
		return compileErrf(ErrImportCycle, "%v", name)
	}
	mm.loading.Add(name)
	return nil
}

// EndLoad clears the loading mark.
func (mm *ModuleManager) EndLoad(name string) {
	mm.loading.Remove(name)
}

// IsInternal reports whether name is one of the native modules.
func (mm *ModuleManager) IsInternal(name string) bool {
	_, ok := internalModules[name]
	return ok
}
