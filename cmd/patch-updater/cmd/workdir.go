package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// enterWorkDir turns every non-empty path into an absolute one, then changes
// into dir. An empty dir means the folder of the executable, so settings and
// the data folder are found even when an image is dropped onto the program.
func enterWorkDir(dir string, paths ...*string) error {
	if dir == "" {
		executable, err := os.Executable()
		if err != nil {
			return fmt.Errorf("locate executable: %w", err)
		}

		if resolved, err := filepath.EvalSymlinks(executable); err == nil {
			executable = resolved
		}

		dir = executableDir(executable, os.TempDir())
	}

	for _, path := range paths {
		if *path == "" {
			continue
		}

		absolute, err := filepath.Abs(*path)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", *path, err)
		}

		*path = absolute
	}

	if dir == "" {
		return nil
	}

	if err := os.Chdir(dir); err != nil {
		return fmt.Errorf("change working directory: %w", err)
	}

	return nil
}

// executableDir returns the folder of executable, or "" for binaries built by
// go run inside the temporary folder.
func executableDir(executable, tempDir string) string {
	dir := filepath.Dir(executable)

	rel, err := filepath.Rel(tempDir, dir)
	if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ""
	}

	return dir
}
