// Package replconfig decodes .scriptlangrc.toml, the optional per-project
// or per-user file that sets defaults for the CLI/REPL driver.
package replconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

const fileName = ".scriptlangrc.toml"

// Config holds every value .scriptlangrc.toml may set. Load decodes the
// file on top of Default(), so fields the file leaves out keep their
// default values and a missing or partially-filled file is never an error.
type Config struct {
	Prompt       string `toml:"prompt"`
	DumpAST      bool   `toml:"dump_ast"`
	DumpBytecode bool   `toml:"dump_bytecode"`
	CacheDir     string `toml:"cache_dir"`
	Color        bool   `toml:"color"`
}

// Default returns the driver's built-in configuration, used when no rc
// file is found anywhere.
func Default() Config {
	return Config{
		Prompt: "scriptlang >> ",
		Color:  true,
	}
}

// Load looks for .scriptlangrc.toml first in dir, then in the user's home
// directory, and decodes the first one found on top of Default(). A
// missing file at either location is not an error; a malformed file that
// does exist is.
func Load(dir string) (Config, error) {
	cfg := Default()

	path, err := find(dir)
	if err != nil {
		return cfg, err
	}
	if path == "" {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("replconfig: parsing %s: %w", path, err)
	}
	return cfg, nil
}

func find(dir string) (string, error) {
	candidate := filepath.Join(dir, fileName)
	if _, err := os.Stat(candidate); err == nil {
		return candidate, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", nil
	}
	candidate = filepath.Join(home, fileName)
	if _, err := os.Stat(candidate); err == nil {
		return candidate, nil
	}
	return "", nil
}

// Merge overrides every field in base that override sets to a non-zero
// value, implementing the driver's "CLI flags override config file values
// field-by-field" rule. A caller only sets the fields corresponding to
// flags the user actually passed. Color is the exception: since "disabled"
// is itself override's zero value, the driver always passes its fully
// resolved color decision (isatty detection plus --no-color) rather than
// relying on a non-zero check.
func Merge(base Config, override Config) Config {
	merged := base
	if override.Prompt != "" {
		merged.Prompt = override.Prompt
	}
	if override.DumpAST {
		merged.DumpAST = true
	}
	if override.DumpBytecode {
		merged.DumpBytecode = true
	}
	if override.CacheDir != "" {
		merged.CacheDir = override.CacheDir
	}
	merged.Color = override.Color
	return merged
}
