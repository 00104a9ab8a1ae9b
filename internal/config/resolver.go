package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// FileName is the config file looked up by Locate.
const FileName = "crongen.yaml"

// Candidates returns the config locations in search order:
// $XDG_CONFIG_HOME/crongen/crongen.yaml (or ~/.config when unset), then
// ./crongen.yaml.
func Candidates() []string {
	var paths []string
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		}
	}
	if dir != "" {
		paths = append(paths, filepath.Join(dir, "crongen", FileName))
	}
	return append(paths, FileName)
}

// Locate returns the first existing candidate, or "" when none exists.
func Locate() (string, error) {
	for _, p := range Candidates() {
		_, err := os.Stat(p)
		switch {
		case err == nil:
			return p, nil
		case errors.Is(err, fs.ErrNotExist):
			continue
		default:
			return "", err
		}
	}
	return "", nil
}

// Resolve loads the explicit path when set, otherwise the first located
// file, otherwise the defaults.
func Resolve(explicit string) (*Config, error) {
	path := explicit
	if path == "" {
		found, err := Locate()
		if err != nil {
			return nil, err
		}
		if found == "" {
			return Default(), nil
		}
		path = found
	}
	return Load(path)
}
