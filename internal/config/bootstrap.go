package config

import (
	"errors"
	"io"
	"os"
	"path/filepath"
)

// EnsureUserConfig makes sure dataDir has a config.yml: it copies the shipped
// default file if present, otherwise writes the built-in defaults.
func EnsureUserConfig(dataDir string, defaultPath string) (string, error) {
	userPath := filepath.Join(dataDir, "config.yml")

	_, err := os.Stat(userPath)
	if err == nil {
		return userPath, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	src, err := os.Open(defaultPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if err := SaveAtomic(userPath, Default()); err != nil {
				return "", err
			}
			return userPath, nil
		}
		return "", err
	}
	defer src.Close()

	dst, err := os.Create(userPath)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", err
	}
	return userPath, nil
}
