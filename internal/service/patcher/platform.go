package patcher

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/oshokin/patch-updater/internal/domain/update"
)

const (
	// windowsTool is shipped inside the data folder on Windows.
	windowsTool = "xdelta3.exe"
	// darwinTool is the Homebrew name of the tool.
	darwinTool = "xdelta"
	// defaultTool is the name used by Linux distributions.
	defaultTool = "xdelta3"
)

// DefaultTool returns the diff tool for an operating system.
// On Windows it is a path inside dataDir, elsewhere a bare command name.
func DefaultTool(goos, dataDir string) string {
	switch goos {
	case "windows":
		return filepath.Join(dataDir, windowsTool)
	case "darwin":
		return darwinTool
	default:
		return defaultTool
	}
}

// ResolveTool finds an executable for tool, which is either a path or a command name.
func ResolveTool(tool string) (string, error) {
	if filepath.Base(tool) != tool {
		info, err := os.Stat(tool)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return "", fmt.Errorf("unable to find %s, reinstall the updater or check your antivirus: %w",
					tool, update.ErrEnvironment)
			}

			return "", fmt.Errorf("stat %s: %w", tool, err)
		}

		if info.IsDir() {
			return "", fmt.Errorf("%s is a directory: %w", tool, update.ErrEnvironment)
		}

		return tool, nil
	}

	path, err := exec.LookPath(tool)
	if err != nil {
		return "", fmt.Errorf("unable to find %s, please install it: %w", tool, update.ErrEnvironment)
	}

	return path, nil
}
