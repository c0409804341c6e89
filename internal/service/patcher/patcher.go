package patcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/oshokin/patch-updater/internal/domain/update"
	"github.com/oshokin/patch-updater/internal/logger"
)

// Applier turns an image and a delta into an output image.
type Applier interface {
	Apply(ctx context.Context, imagePath, deltaPath, outputPath string) error
}

// XDelta runs an xdelta3 compatible executable.
type XDelta struct {
	// tool is the executable path or command name.
	tool string
	// stdout receives whatever the tool prints, nil discards it.
	stdout io.Writer
}

// NewXDelta creates an applier invoking tool. Tool output is copied to stdout when set.
func NewXDelta(tool string, stdout io.Writer) *XDelta {
	return &XDelta{
		tool:   tool,
		stdout: stdout,
	}
}

// Args returns the command line passed to the tool.
func Args(imagePath, deltaPath, outputPath string) []string {
	return []string{"-f", "-d", "-s", imagePath, deltaPath, outputPath}
}

// Apply decodes deltaPath against imagePath into outputPath.
// Any failure removes what the tool may have left at outputPath.
func (x *XDelta) Apply(ctx context.Context, imagePath, deltaPath, outputPath string) error {
	// A leftover from an older run must not pass the postcondition.
	if err := os.Remove(outputPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove previous output %s: %w", outputPath, err)
	}

	var (
		stdout bytes.Buffer
		stderr bytes.Buffer
	)

	cmd := exec.CommandContext(ctx, x.tool, Args(imagePath, deltaPath, outputPath)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.DebugKV(ctx, "Running diff tool", "command", cmd.String())

	runErr := cmd.Run()

	if stdout.Len() > 0 {
		logger.InfoKV(ctx, "Diff tool output", "stdout", strings.TrimSpace(stdout.String()))

		if x.stdout != nil {
			_, _ = x.stdout.Write(stdout.Bytes())
		}
	}

	if runErr != nil {
		_ = os.Remove(outputPath)

		return fmt.Errorf("%s: %w: %s: %w",
			x.tool, runErr, strings.TrimSpace(stderr.String()), update.ErrPatchFailed)
	}

	size, err := outputSize(outputPath)
	if err != nil {
		_ = os.Remove(outputPath)
		return err
	}

	logger.InfoKV(ctx, "Patched image written", "path", outputPath, "size", humanize.Bytes(uint64(size)))

	return nil
}

// outputSize checks that the patched image exists and is not empty.
func outputSize(outputPath string) (int64, error) {
	info, err := os.Stat(outputPath)
	if err != nil {
		return 0, fmt.Errorf("output %s: %w: %w", outputPath, err, update.ErrPatchFailed)
	}

	if info.IsDir() || info.Size() == 0 {
		return 0, fmt.Errorf("output %s is empty: %w", outputPath, update.ErrPatchFailed)
	}

	return info.Size(), nil
}
