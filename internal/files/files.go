// Package files holds the filesystem checks shared by the commands writing output.
package files

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/engr-lynx/cicd/internal/perms"
)

// EnsureDir creates path and its parents with regular directory permissions when missing.
// An existing path must be a directory, symlinked directories are rejected.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, perms.RegularDir); err != nil {
		return fmt.Errorf("could not ensure directory exists for '%s': %w", path, err)
	}

	info, err := os.Lstat(path)
	if err != nil {
		return fmt.Errorf("could not stat directory '%s': %w", path, err)
	}

	if info.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("path '%s' is a symlink, not a directory", path)
	}

	if !info.IsDir() {
		return fmt.Errorf("path '%s' is not a directory", path)
	}

	return nil
}

// IsBaseName reports whether name names an entry directly inside a directory.
func IsBaseName(name string) bool {
	return name != "." && name != ".." && filepath.Base(name) == name && filepath.IsLocal(name)
}
