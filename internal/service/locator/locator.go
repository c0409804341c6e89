package locator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/oshokin/patch-updater/internal/domain/update"
	"github.com/oshokin/patch-updater/internal/logger"
	"github.com/oshokin/patch-updater/internal/repository/state"
)

// Verifier tells whether a file is a valid unmodified image.
type Verifier interface {
	IsValidImage(ctx context.Context, path string) bool
}

// Downloader fetches a URL into a local file.
type Downloader interface {
	Download(ctx context.Context, url, dst string) error
}

// Prompter supplies user answers in the AwaitingUserInput step.
// Returning an error, io.EOF included, ends the step without a result.
type Prompter interface {
	Prompt(ctx context.Context) (string, error)
}

// Step is a state of the locate state machine.
type Step int

// Locate steps in the order they are tried.
const (
	StepArgument Step = iota
	StepRemembered
	StepScan
	StepAwaitingUserInput
)

// String returns a stable identifier used in logs.
func (s Step) String() string {
	switch s {
	case StepArgument:
		return "argument"
	case StepRemembered:
		return "remembered"
	case StepScan:
		return "scan"
	case StepAwaitingUserInput:
		return "awaiting_user_input"
	default:
		return "unknown"
	}
}

// Options configures a Locator.
type Options struct {
	// Verifier validates candidates.
	Verifier Verifier
	// Store remembers the accepted path.
	Store state.Store
	// Downloader fetches images from URLs typed by the user.
	Downloader Downloader
	// Prompter asks the user, nil skips the AwaitingUserInput step.
	Prompter Prompter
	// ScanRoot is the directory searched recursively, "." when empty.
	ScanRoot string
	// DownloadPath is where images downloaded from a URL are stored.
	DownloadPath string
}

// Locator resolves the image path.
type Locator struct {
	opts Options
}

// New creates a locator.
func New(opts Options) *Locator {
	if opts.ScanRoot == "" {
		opts.ScanRoot = "."
	}

	return &Locator{opts: opts}
}

// Locate returns the path of a valid image. candidate may be empty.
func (l *Locator) Locate(ctx context.Context, candidate string) (string, error) {
	ctx = logger.WithName(ctx, "locator")

	for step := StepArgument; step <= StepAwaitingUserInput; step++ {
		path, err := l.run(ctx, step, candidate)
		if err != nil {
			return "", err
		}

		if path != "" {
			logger.InfoKV(ctx, "Found unmodified image", "path", path, "step", step.String())
			return path, nil
		}
	}

	return "", update.ErrImageNotFound
}

// run executes one step and returns the accepted path, or "" to fall through.
func (l *Locator) run(ctx context.Context, step Step, candidate string) (string, error) {
	switch step {
	case StepArgument:
		return l.fromArgument(ctx, candidate)
	case StepRemembered:
		return l.fromRemembered(ctx)
	case StepScan:
		return l.fromScan(ctx)
	case StepAwaitingUserInput:
		return l.fromUser(ctx)
	default:
		return "", nil
	}
}

func (l *Locator) fromArgument(ctx context.Context, candidate string) (string, error) {
	if candidate == "" {
		return "", nil
	}

	if !exists(candidate) {
		logger.WarnKV(ctx, "Provided path does not exist", "path", candidate)
		return "", nil
	}

	if !l.opts.Verifier.IsValidImage(ctx, candidate) {
		logger.WarnKV(ctx, "Provided file is not a valid unmodified image", "path", candidate)
		return "", nil
	}

	return l.accept(ctx, candidate)
}

func (l *Locator) fromRemembered(ctx context.Context) (string, error) {
	remembered, ok, err := l.opts.Store.Get(ctx, state.KeyImagePath)
	if err != nil {
		return "", fmt.Errorf("read remembered image path: %w", err)
	}

	if !ok || remembered == "" || !exists(remembered) {
		return "", nil
	}

	if !l.opts.Verifier.IsValidImage(ctx, remembered) {
		logger.WarnKV(ctx, "Remembered image is no longer a valid unmodified image", "path", remembered)
		return "", nil
	}

	return remembered, nil
}

// fromScan walks ScanRoot and accepts the first valid file. Walk order is lexical
// per directory, but no preference between several valid images is implied.
func (l *Locator) fromScan(ctx context.Context) (string, error) {
	var found string

	err := filepath.WalkDir(l.opts.ScanRoot, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			logger.DebugKV(ctx, "Skipping unreadable path", "path", path, "error", err)

			if entry != nil && entry.IsDir() {
				return fs.SkipDir
			}

			return nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if !entry.Type().IsRegular() {
			return nil
		}

		if l.opts.Verifier.IsValidImage(ctx, path) {
			found = path
			return fs.SkipAll
		}

		return nil
	})
	if err != nil {
		return "", fmt.Errorf("scan %s: %w", l.opts.ScanRoot, err)
	}

	if found == "" {
		return "", nil
	}

	absolute, err := filepath.Abs(found)
	if err != nil {
		absolute = found
	}

	return l.accept(ctx, absolute)
}

// fromUser is the AwaitingUserInput step. It re-enters after every rejected answer
// and leaves only with a valid image or a prompter error.
func (l *Locator) fromUser(ctx context.Context) (string, error) {
	if l.opts.Prompter == nil {
		return "", nil
	}

	for {
		answer, err := l.opts.Prompter.Prompt(ctx)
		if err != nil {
			return "", fmt.Errorf("awaiting user input: %w: %w", err, update.ErrImageNotFound)
		}

		answer = strings.TrimSpace(answer)
		if answer == "" {
			continue
		}

		if exists(answer) {
			if l.opts.Verifier.IsValidImage(ctx, answer) {
				return l.accept(ctx, answer)
			}

			logger.WarnKV(ctx, "Not a clean unmodified image", "path", answer)

			continue
		}

		if path := l.download(ctx, answer); path != "" {
			return l.accept(ctx, path)
		}
	}
}

// download fetches a user supplied URL and returns the path if the result is valid.
// Anything else is removed so no orphaned download survives.
func (l *Locator) download(ctx context.Context, url string) string {
	if l.opts.Downloader == nil || l.opts.DownloadPath == "" {
		logger.WarnKV(ctx, "Input is neither an existing file nor downloadable", "input", url)
		return ""
	}

	if err := l.opts.Downloader.Download(ctx, url, l.opts.DownloadPath); err != nil {
		logger.WarnKV(ctx, "Failed to download image", "url", url, "error", err)
		removeIfExists(ctx, l.opts.DownloadPath)

		return ""
	}

	if !exists(l.opts.DownloadPath) || !l.opts.Verifier.IsValidImage(ctx, l.opts.DownloadPath) {
		logger.WarnKV(ctx, "Downloaded file is not a valid unmodified image", "url", url)
		removeIfExists(ctx, l.opts.DownloadPath)

		return ""
	}

	return l.opts.DownloadPath
}

// accept remembers path for the next runs.
func (l *Locator) accept(ctx context.Context, path string) (string, error) {
	if err := l.opts.Store.Set(ctx, state.KeyImagePath, path); err != nil {
		return "", fmt.Errorf("remember image path: %w", err)
	}

	return path, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func removeIfExists(ctx context.Context, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.WarnKV(ctx, "Unable to remove file", "path", path, "error", err)
	}
}
