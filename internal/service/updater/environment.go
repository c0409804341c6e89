package updater

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/oshokin/patch-updater/internal/config"
	"github.com/oshokin/patch-updater/internal/domain/update"
	"github.com/oshokin/patch-updater/internal/logger"
	"github.com/oshokin/patch-updater/internal/repository/state"
	"github.com/oshokin/patch-updater/internal/service/fetcher"
	"github.com/oshokin/patch-updater/internal/service/patcher"
	"github.com/oshokin/patch-updater/internal/version"
)

var errUpdaterAlreadyRunning = errors.New("the updater is already running")

// prepare creates the data directory, resolves the diff tool, selects the
// release feed and removes a stale delta left by an interrupted run.
func (u *runner) prepare(ctx context.Context) error {
	if err := os.MkdirAll(u.cfg.DataDir, config.DefaultDirPermissions); err != nil {
		return fmt.Errorf("%w: create data directory: %w", update.ErrEnvironment, err)
	}

	if u.applier == nil {
		tool := u.cfg.ToolPath
		if tool == "" {
			tool = patcher.DefaultTool(runtime.GOOS, u.cfg.DataDir)
		}

		resolved, err := patcher.ResolveTool(tool)
		if err != nil {
			return err
		}

		logger.DebugKV(ctx, "Using diff tool", "path", resolved)

		u.applier = patcher.NewXDelta(resolved, u.output)
	}

	values, err := state.Load(ctx, u.store)
	if err != nil {
		return fmt.Errorf("%w: %w", update.ErrEnvironment, err)
	}

	u.values = values

	if err = u.selectRepository(ctx); err != nil {
		return err
	}

	return u.removeDelta(ctx)
}

// removeDelta deletes the delta and a leftover archive it was unpacked from.
func (u *runner) removeDelta(ctx context.Context) error {
	return errors.Join(
		removeIfExists(ctx, u.deltaPath),
		removeIfExists(ctx, fetcher.ArchivePath(u.deltaPath)),
	)
}

// selectRepository stores the --repository override, or seeds the feed from
// settings when nothing is stored yet.
func (u *runner) selectRepository(ctx context.Context) error {
	repository := strings.TrimSpace(u.opts.Repository)

	switch {
	case repository != "":
		if err := config.ValidateRepository(repository); err != nil {
			return fmt.Errorf("%w: %w", update.ErrEnvironment, err)
		}
	case u.values.RepositoryURL == "":
		repository = u.cfg.DefaultRepository
	default:
		return nil
	}

	if err := u.store.Set(ctx, state.KeyRepositoryURL, repository); err != nil {
		return fmt.Errorf("%w: %w", update.ErrEnvironment, err)
	}

	u.values.RepositoryURL = repository

	logger.InfoKV(ctx, "Release feed selected", "repository", repository)

	return nil
}

// ensureSingleInstance fails when another updater process is running.
// It runs before anything is touched, the other process owns the data folder.
func (u *runner) ensureSingleInstance(ctx context.Context) error {
	processList, err := u.processes()
	if err != nil {
		return fmt.Errorf("%w: list processes: %w", update.ErrEnvironment, err)
	}

	var (
		names         = sliceToSet(updaterExecutables())
		thisProcessID = os.Getpid()
	)

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if _, found := names[process.Executable()]; !found {
			continue
		}

		logger.WarnKV(ctx, "Another updater is running", "pid", process.Pid())

		return fmt.Errorf("%w: %w", update.ErrEnvironment, errUpdaterAlreadyRunning)
	}

	return nil
}

// removeIfExists deletes path, ignoring a missing file.
func removeIfExists(ctx context.Context, path string) error {
	err := os.Remove(path)

	switch {
	case err == nil:
		logger.DebugKV(ctx, "Removed file", "path", path)
		return nil
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return fmt.Errorf("%w: remove %s: %w", update.ErrEnvironment, path, err)
	}
}

// updaterExecutables lists the process names of this program.
func updaterExecutables() []string {
	return []string{version.Name + getExecutableExtension()}
}

// getExecutableExtension returns ".exe" on Windows and "" elsewhere.
func getExecutableExtension() string {
	if strings.Contains(strings.ToLower(runtime.GOOS), "windows") {
		return ".exe"
	}

	return ""
}

// sliceToSet converts a slice to a set for quick lookups.
func sliceToSet[T comparable](elements []T) map[T]struct{} {
	result := make(map[T]struct{}, len(elements))
	for _, value := range elements {
		result[value] = struct{}{}
	}

	return result
}
