package tardi

import (
	"embed"
	"sort"

	log "github.com/sirupsen/logrus"
)

//go:embed bootstrap/*.tardi
var bootstrapFS embed.FS

// runBootstrap compiles and executes the embedded bootstrap fragments in
// lexicographic order, in the kernel module, so their definitions become
// kernel words.
func (t *Tardi) runBootstrap() error {
	entries, err := bootstrapFS.ReadDir("bootstrap")
	if err != nil {
		return ioErr(err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		source, err := bootstrapFS.ReadFile("bootstrap/" + name)
		if err != nil {
			return ioErr(err)
		}
		log.Debugf("bootstrapping from %v", name)
		if err := t.ExecuteModuleString(ModKernel, string(source)); err != nil {
			return err
		}
	}
	return nil
}
