// Package launcher ships the helper script that runs a command inside a
// terminal and reports its progress through a signal file.
package launcher

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
)

// Name is the installed file name of the helper script
const Name = "launch.sh"

//go:embed launch.sh
var script []byte

// Script returns the canonical helper script content
func Script() []byte {
	return bytes.Clone(script)
}

// Install writes the helper script into dir and returns its path. An
// existing file with the canonical content is left untouched; anything else
// is replaced atomically.
func Install(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create launcher directory: %w", err)
	}

	path := filepath.Join(dir, Name)
	if current, err := os.ReadFile(path); err == nil && bytes.Equal(current, script) {
		return path, nil
	}

	tmp, err := os.CreateTemp(dir, "."+Name+".*")
	if err != nil {
		return "", fmt.Errorf("create launcher: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(script); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write launcher: %w", err)
	}
	if err := tmp.Chmod(0o755); err != nil {
		tmp.Close()
		return "", fmt.Errorf("chmod launcher: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close launcher: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("install launcher: %w", err)
	}
	return path, nil
}

// DefaultDir is where Install places the script when no directory is
// configured.
func DefaultDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "termsync")
	}
	return filepath.Join(os.TempDir(), "termsync")
}
