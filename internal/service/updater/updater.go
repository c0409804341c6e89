package updater

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/patch-updater/internal/config"
	"github.com/oshokin/patch-updater/internal/domain/update"
	"github.com/oshokin/patch-updater/internal/logger"
	"github.com/oshokin/patch-updater/internal/repository/state"
	"github.com/oshokin/patch-updater/internal/service/fetcher"
	"github.com/oshokin/patch-updater/internal/service/locator"
	"github.com/oshokin/patch-updater/internal/service/patcher"
	"github.com/oshokin/patch-updater/internal/service/resolver"
	"github.com/oshokin/patch-updater/internal/service/verifier"
	"github.com/oshokin/patch-updater/internal/version"
)

// DeltaFilename is the transient delta file inside the data directory.
const DeltaFilename = "patch"

// Options are inputs accepted by the updater entry point.
type Options struct {
	// ConfigPath is the optional path to settings YAML file.
	ConfigPath string
	// ImagePath is a candidate image given on the command line.
	ImagePath string
	// Repository replaces the stored release feed when set.
	Repository string
	// LogLevel overrides log_level from the settings when set.
	LogLevel string
	// Specific lets the user choose the release instead of taking the newest one.
	Specific bool
	// Output receives progress bars and diff tool output, os.Stdout when nil.
	Output io.Writer
	// Prompter asks for an image when none is found, nil disables asking.
	Prompter locator.Prompter
	// Chooser picks the release in specific mode, the newest one when nil.
	Chooser resolver.Chooser
}

type (
	imageLocator interface {
		Locate(ctx context.Context, candidate string) (string, error)
	}

	releaseResolver interface {
		ResolveLatest(ctx context.Context, repositoryURL, currentVersion string) (update.Target, error)
		ResolveSpecific(ctx context.Context, repositoryURL string, choose resolver.Chooser) (update.Target, error)
	}

	deltaFetcher interface {
		FetchDelta(ctx context.Context, assetURL, deltaPath string) error
	}
)

// runner holds the collaborators and state of a single update execution.
// Call Run(ctx, Options) from callers.
type runner struct {
	cfg       *config.Config               // Settings loaded from YAML.
	opts      *Options                     // Command line inputs.
	output    io.Writer                    // Progress and tool output.
	store     state.Store                  // Persisted values.
	values    *state.Values                // Snapshot taken while preparing.
	locator   imageLocator                 // Finds the unmodified image.
	resolver  releaseResolver              // Reads the release feed.
	fetcher   deltaFetcher                 // Downloads the delta.
	applier   patcher.Applier              // Runs the diff tool, resolved while preparing when nil.
	processes func() ([]ps.Process, error) // Lists running processes.
	deltaPath string                       // Transient delta file.
	outputDir string                       // Directory of the patched image, the working directory when empty.
}

// Run executes the updater lifecycle and is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, version.Name)

	if opts == nil {
		opts = new(Options)
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		err = fmt.Errorf("%w: %w", update.ErrEnvironment, err)
		logFailure(ctx, err)

		return err
	}

	applyLogLevel(ctx, opts.LogLevel, cfg.LogLevel)

	u, err := newRunner(cfg, opts)
	if err != nil {
		logFailure(ctx, err)
		return err
	}

	if err = u.run(ctx); err != nil {
		logFailure(ctx, err)
		return err
	}

	logger.Info(ctx, "Updater completed")

	return nil
}

// newRunner wires the production collaborators.
func newRunner(cfg *config.Config, opts *Options) (*runner, error) {
	signature, err := cfg.Signature()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", update.ErrEnvironment, err)
	}

	output := opts.Output
	if output == nil {
		output = os.Stdout
	}

	var (
		store = state.NewFileStore(cfg.DataDir)
		fetch = fetcher.New(
			fetcher.WithProgressBar(output),
			fetcher.WithMinSize(cfg.MinDeltaSize),
		)
		locate = locator.New(locator.Options{
			Verifier:     verifier.New(signature, verifier.WithProgress(output)),
			Store:        store,
			Downloader:   fetch,
			Prompter:     opts.Prompter,
			DownloadPath: cfg.DataPath(cfg.DownloadImageName),
		})
	)

	return &runner{
		cfg:       cfg,
		opts:      opts,
		output:    output,
		store:     store,
		locator:   locate,
		resolver:  resolver.New(nil),
		fetcher:   fetch,
		processes: ps.Processes,
		deltaPath: cfg.DataPath(DeltaFilename),
	}, nil
}

// run walks the steps in order. Once this process owns the data folder the
// delta file is removed whatever the outcome.
func (u *runner) run(ctx context.Context) error {
	logger.Info(ctx, "Verifying the environment")

	if err := u.ensureSingleInstance(ctx); err != nil {
		return fmt.Errorf("verify environment: %w", err)
	}

	defer u.cleanup(ctx)

	if err := u.prepare(ctx); err != nil {
		return fmt.Errorf("verify environment: %w", err)
	}

	logger.Info(ctx, "Looking for an unmodified image")

	imagePath, err := u.locator.Locate(ctx, u.opts.ImagePath)
	if err != nil {
		return fmt.Errorf("locate image: %w", err)
	}

	logger.InfoKV(ctx, "Checking for updates", "repository", u.values.RepositoryURL)

	target, err := u.resolve(ctx)
	if err != nil {
		return fmt.Errorf("resolve release: %w", err)
	}

	outputName, err := u.cfg.OutputName(target.Version)
	if err != nil {
		return fmt.Errorf("release name: %w", err)
	}

	outputPath, err := filepath.Abs(filepath.Join(u.outputDir, outputName))
	if err != nil {
		return fmt.Errorf("%w: %w", update.ErrEnvironment, err)
	}

	logger.InfoKV(ctx, "Downloading patch", "version", target.Version, "url", target.AssetURL)

	if err = u.fetcher.FetchDelta(ctx, target.AssetURL, u.deltaPath); err != nil {
		return fmt.Errorf("download delta: %w", err)
	}

	logger.InfoKV(ctx, "Patching image", "image", imagePath, "output", outputPath)

	if err = u.applier.Apply(ctx, imagePath, u.deltaPath, outputPath); err != nil {
		return fmt.Errorf("apply patch: %w", err)
	}

	if err = u.store.Set(ctx, state.KeyCurrentVersion, target.Version); err != nil {
		return fmt.Errorf("persist version: %w", err)
	}

	logger.InfoKV(ctx, "Patched image is ready", "path", outputPath, "version", target.Version)

	return nil
}

// resolve picks the newest release, or lets the user choose one in specific mode.
func (u *runner) resolve(ctx context.Context) (update.Target, error) {
	if !u.opts.Specific {
		return u.resolver.ResolveLatest(ctx, u.values.RepositoryURL, u.values.CurrentVersion)
	}

	choose := u.opts.Chooser
	if choose == nil {
		choose = func(context.Context, []update.Release) (int, error) { return 0, nil }
	}

	return u.resolver.ResolveSpecific(ctx, u.values.RepositoryURL, choose)
}

// cleanup removes the transient delta file.
func (u *runner) cleanup(ctx context.Context) {
	if err := u.removeDelta(ctx); err != nil {
		logger.WarnKV(ctx, "Unable to remove the delta file", "error", err)
	}

	logger.Debug(ctx, "The updater has been stopped")
}

// applyLogLevel sets the global level from the flag, falling back to the settings.
func applyLogLevel(ctx context.Context, flagLevel, configLevel string) {
	level := flagLevel
	if level == "" {
		level = configLevel
	}

	parsed, ok := logger.ParseLogLevel(level)
	if !ok {
		logger.WarnKV(ctx, "Unknown log level, using info", "level", level)
	}

	logger.SetLevel(parsed)
}

// logFailure reports why the run stopped. Being up to date is not a failure
// from the user's point of view, so it is reported at info level.
func logFailure(ctx context.Context, err error) {
	if errors.Is(err, update.ErrAlreadyUpToDate) {
		logger.InfoKV(ctx, "Already up to date",
			"hint", "delete "+string(state.KeyCurrentVersion)+" in the data folder to patch again")

		return
	}

	logger.ErrorKV(ctx, "Updater run failed", "kind", update.KindOf(err).String(), "error", err)
}
