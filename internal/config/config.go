// Package config loads interpreter configuration: built-in defaults, then a
// TOML file from a platform-appropriate location, then TARDI_-prefixed
// environment variables, each layer overriding the last.
package config

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/naoina/toml"
	log "github.com/sirupsen/logrus"
)

// Edit modes the REPL recognizes.
const (
	EditModeEmacs = "Emacs"
	EditModeVi    = "Vi"
)

// Config is the interpreter configuration.
type Config struct {
	REPL       ReplConfig `toml:"repl"`
	ModulePath []string   `toml:"module_path"`
}

// ReplConfig configures the read-eval-print loop.
type ReplConfig struct {
	EditMode    string `toml:"edit_mode"`
	HistoryFile string `toml:"history_file"`
}

// Default is the configuration before any file or environment overlay: a
// modules directory under the user config dir and the working directory on
// the module path, Emacs editing, and a history file under the user config dir.
func Default() Config {
	cfg := Config{
		REPL: ReplConfig{EditMode: EditModeEmacs},
	}
	if dir, err := configDir(); err == nil {
		cfg.ModulePath = append(cfg.ModulePath, filepath.Join(dir, "modules"))
		cfg.REPL.HistoryFile = filepath.Join(dir, "repl-history.txt")
	}
	if cwd, err := os.Getwd(); err == nil {
		cfg.ModulePath = append(cfg.ModulePath, cwd)
	}
	return cfg
}

func configDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "tardi"), nil
}

// DefaultFile is the platform-appropriate configuration file path.
func DefaultFile() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "tardi.toml"), nil
}

// Load reads configuration from file (the platform default when empty) and
// applies the environment overlay. A missing default file is not an error.
func Load(file string) (Config, error) {
	cfg := Default()

	explicit := file != ""
	if !explicit {
		var err error
		if file, err = DefaultFile(); err != nil {
			file = ""
		}
	}
	if file != "" {
		if err := loadFile(file, &cfg); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return cfg, err
			}
			log.Debugf("no config file at %v", file)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func loadFile(file string, cfg *Config) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()
	log.Debugf("config location: %v", file)
	return toml.NewDecoder(bufio.NewReader(f)).Decode(cfg)
}

// applyEnv overlays TARDI_MODULE_PATH (list-separated),
// TARDI_REPL_EDIT_MODE, and TARDI_REPL_HISTORY_FILE.
func applyEnv(cfg *Config) {
	if v := os.Getenv("TARDI_MODULE_PATH"); v != "" {
		cfg.ModulePath = filepath.SplitList(v)
	}
	if v := os.Getenv("TARDI_REPL_EDIT_MODE"); v != "" {
		switch strings.ToLower(v) {
		case "emacs":
			cfg.REPL.EditMode = EditModeEmacs
		case "vi":
			cfg.REPL.EditMode = EditModeVi
		default:
			log.Warnf("unrecognized TARDI_REPL_EDIT_MODE %q", v)
		}
	}
	if v := os.Getenv("TARDI_REPL_HISTORY_FILE"); v != "" {
		cfg.REPL.HistoryFile = v
	}
}

const defaultConfigText = `# Tardi configuration.

[repl]
# edit_mode = "Emacs"  # or "Vi"
# history_file = ""

# module_path = []
`

// InitDefault writes the default configuration file if it does not already
// exist, returning its path.
func InitDefault() (string, error) {
	file, err := DefaultFile()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(file); err == nil {
		log.Warnf("%v exists, not overwriting", file)
		return file, nil
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(file, []byte(defaultConfigText), 0o644); err != nil {
		return "", err
	}
	return file, nil
}
