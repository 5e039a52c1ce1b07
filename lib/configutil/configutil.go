package configutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

func splitExt(name string) (prefix, ext string) {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[:i], name[i+1:]
		}
	}
	return name, ""
}

// ReadConfig loads a json5 config file together with its optional local
// sibling: given "config.json5" it also looks for "config.local.json5" and
// merges that on top, which keeps credentials and per-machine settings out
// of the checked in file. Returns os.ErrNotExist when neither file exists.
func ReadConfig[T any](name string) (T, error) {
	var cfg T

	prefix, ext := splitExt(filepath.Base(name))
	localName := filepath.Join(
		filepath.Dir(name),
		fmt.Sprintf("%s.local.%s", prefix, ext),
	)

	base, err := os.ReadFile(name)
	if err != nil && !os.IsNotExist(err) {
		return cfg, err
	}
	local, err := os.ReadFile(localName)
	if err != nil && !os.IsNotExist(err) {
		return cfg, err
	}
	if len(base) == 0 && len(local) == 0 {
		return cfg, os.ErrNotExist
	}

	if len(base) > 0 {
		if err := json5.Unmarshal(base, &cfg); err != nil {
			return cfg, err
		}
	}
	if len(local) > 0 {
		var override T
		if err := json5.Unmarshal(local, &override); err != nil {
			return cfg, err
		}
		if err := mergo.Merge(&cfg, override, mergo.WithOverride); err != nil {
			return cfg, err
		}
		slog.Info("applying local config overrides", "path", localName)
	}

	return cfg, nil
}

// ReadRecursively walks from the working directory up to the filesystem root
// and reads the first config matching name, so binaries find telemetry.json5
// no matter where inside the checkout they run.
func ReadRecursively[T any](name string) (T, error) {
	var zero T

	root, err := filepath.Abs("/")
	if err != nil {
		return zero, err
	}
	dir, err := os.Getwd()
	if err != nil {
		return zero, err
	}

	for dir != root {
		cfg, err := ReadConfig[T](filepath.Join(dir, name))
		if os.IsNotExist(err) {
			dir = filepath.Join(dir, "..")
			continue
		}
		if err != nil {
			return zero, err
		}
		return cfg, nil
	}

	return zero, os.ErrNotExist
}
