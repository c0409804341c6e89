package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/patch-updater/internal/config"
	"github.com/oshokin/patch-updater/internal/logger"
	"github.com/oshokin/patch-updater/internal/service/console"
	"github.com/oshokin/patch-updater/internal/service/updater"
	"github.com/oshokin/patch-updater/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string

	// imagePath is the candidate unmodified image.
	imagePath string

	// repository replaces the stored release feed.
	repository string

	// specific lets the user pick the release to apply.
	specific bool

	// logLevel overrides log_level from the settings.
	logLevel string

	// workDir is where settings and the data folder live.
	workDir string

	// pause waits for Enter before exiting when run from a terminal.
	pause bool

	// rootCmd represents the base command for patching the image to the latest release.
	rootCmd = &cobra.Command{
		Use:   "patch-updater [image]",
		Short: "Patch an unmodified image to the latest published release",
		Long: "Finds an unmodified image, checks the release feed for a newer version, " +
			"downloads its delta and applies it with xdelta3.",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Pause is deferred first so it runs after signal handling is restored.
			term := console.New(cmd.InOrStdin(), cmd.OutOrStdout(), version.Name)
			if pause && term.IsTerminal() {
				defer term.Pause()
			}

			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			logger.SetLogger(logger.New(cmd.ErrOrStderr(), nil))

			candidate := imagePath
			if len(args) > 0 {
				candidate = args[0]
			}

			settings := ""
			if cmd.Flags().Changed("config") {
				settings = configPath
			}

			if err := enterWorkDir(workDir, &candidate, &settings); err != nil {
				return err
			}

			options := &updater.Options{
				ConfigPath: settings,
				ImagePath:  candidate,
				Repository: repository,
				LogLevel:   logLevel,
				Specific:   specific,
				Output:     cmd.OutOrStdout(),
				Prompter:   term,
				Chooser:    term.ChooseRelease,
			}

			return updater.Run(ctx, options)
		},
	}
)

// Execute runs the patch-updater CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&imagePath, "image", "p", "", "path to the unmodified image")
	rootCmd.Flags().StringVarP(&repository, "repository", "r", "", "release feed URL, remembered for later runs")
	rootCmd.Flags().BoolVar(&specific, "specific", false, "choose the release to apply")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
	rootCmd.Flags().StringVarP(&workDir, "workdir", "w", "", "working directory, the executable's folder when empty")
	rootCmd.Flags().BoolVar(&pause, "pause", true, "wait for Enter before exiting when run from a terminal")
}
