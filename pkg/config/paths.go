package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// ConfigDir returns the path to the scenestream config directory (~/.scenestream).
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return filepath.Join(home, ".scenestream"), nil
}

// DefaultPath returns the config file path used when --config is not given.
// It returns "" when no file exists so callers fall back to DefaultConfig.
// An absolute name is returned as-is.
func DefaultPath(name string) (string, error) {
	if filepath.IsAbs(name) {
		return name, nil
	}

	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return path, nil
}
