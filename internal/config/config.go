package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/patch-updater/internal/domain/update"
)

// Config holds the settings of the patch updater.
type Config struct {
	// DataDir is where persisted values, the delta and the diff tool live.
	DataDir string `yaml:"data_dir"`
	// DefaultRepository is the release feed URL used until another one is stored.
	DefaultRepository string `yaml:"default_repository"`
	// Image describes the unmodified input image.
	Image ImageConfig `yaml:"image"`
	// OutputPattern is a fmt pattern receiving the applied version.
	OutputPattern string `yaml:"output_pattern"`
	// DownloadImageName is the file name inside DataDir for images fetched from a URL.
	DownloadImageName string `yaml:"download_image_name"`
	// ToolPath overrides the platform default of the diff tool binary.
	ToolPath string `yaml:"tool_path,omitempty"`
	// MinDeltaSize is the smallest delta accepted when the server omits its length.
	// Zero is read as unset and replaced by the default, so the check is never off.
	MinDeltaSize int64 `yaml:"min_delta_size"`
	// LogLevel is the minimum level of log messages.
	LogLevel string `yaml:"log_level"`
}

// ImageConfig is the textual form of the image signature.
type ImageConfig struct {
	// Magic is the expected 6-byte header.
	Magic string `yaml:"magic"`
	// Checksum is the expected CRC-32 of the whole image, in hex.
	Checksum string `yaml:"crc32"`
}

const (
	// DefaultConfigFilename is the default filename for updater settings.
	DefaultConfigFilename = "patch-updater-settings.yaml"

	// DefaultDataDir is the default folder for data files.
	DefaultDataDir = "data"

	// DefaultRepository is the release feed queried when nothing else is configured.
	DefaultRepository = "https://api.github.com/repos/NicholasMoser/SCON4-Releases/releases"

	// DefaultImageMagic is the game ID found at the start of a vanilla image.
	DefaultImageMagic = "G4NJDA"

	// DefaultImageChecksum is the CRC-32 of the vanilla image.
	DefaultImageChecksum = "55EE8B1A"

	// DefaultOutputPattern names the patched image after the applied version.
	DefaultOutputPattern = "SCON4-%s.iso"

	// DefaultDownloadImageName is used when the user supplies an image URL.
	DefaultDownloadImageName = "GNT4.iso"

	// DefaultMinDeltaSize rejects empty bodies from servers that omit Content-Length.
	DefaultMinDeltaSize = 1

	// DefaultLogLevel is used when no level is configured.
	DefaultLogLevel = "info"

	// DefaultFilePermissions is the default file permission for written files.
	DefaultFilePermissions = 0o600

	// DefaultDirPermissions is the permission of the data directory.
	DefaultDirPermissions = 0o755
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errBadOutputPattern is returned when the output pattern cannot hold a version.
	errBadOutputPattern = errors.New("output pattern must contain exactly one %s")
	// errUnsafeVersion is returned for a version that cannot be part of a file name.
	errUnsafeVersion = errors.New("version is not a safe file name")
	// errNegativeMinSize is returned for a negative minimal delta size.
	errNegativeMinSize = errors.New("min_delta_size must not be negative")
)

// Default returns settings with every field set to its default.
func Default() *Config {
	cfg := new(Config)

	// Defaults never fail validation.
	_ = Validate(cfg)

	return cfg
}

// Load reads configuration from the provided path and validates it.
// A missing file is not an error: defaults are returned instead.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}

		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults and checks the provided settings.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if settings.DataDir == "" {
		settings.DataDir = DefaultDataDir
	}

	if settings.DefaultRepository == "" {
		settings.DefaultRepository = DefaultRepository
	}

	if settings.Image.Magic == "" {
		settings.Image.Magic = DefaultImageMagic
	}

	if settings.Image.Checksum == "" {
		settings.Image.Checksum = DefaultImageChecksum
	}

	if settings.OutputPattern == "" {
		settings.OutputPattern = DefaultOutputPattern
	}

	if settings.DownloadImageName == "" {
		settings.DownloadImageName = DefaultDownloadImageName
	}

	if settings.MinDeltaSize == 0 {
		settings.MinDeltaSize = DefaultMinDeltaSize
	}

	if settings.LogLevel == "" {
		settings.LogLevel = DefaultLogLevel
	}

	if err := ValidateRepository(settings.DefaultRepository); err != nil {
		return err
	}

	if _, err := settings.Signature(); err != nil {
		return fmt.Errorf("invalid image signature: %w", err)
	}

	if strings.Count(settings.OutputPattern, "%s") != 1 || strings.Count(settings.OutputPattern, "%") != 1 {
		return fmt.Errorf("%q: %w", settings.OutputPattern, errBadOutputPattern)
	}

	if settings.MinDeltaSize < 0 {
		return errNegativeMinSize
	}

	return nil
}

// ValidateRepository checks that a release feed URL is absolute.
func ValidateRepository(repository string) error {
	if _, err := url.ParseRequestURI(repository); err != nil {
		return fmt.Errorf("invalid repository URI: %w", err)
	}

	return nil
}

// Signature converts the image settings into a domain signature.
func (c *Config) Signature() (update.Signature, error) {
	return update.NewSignature(c.Image.Magic, c.Image.Checksum)
}

// OutputName returns the patched image file name for a version.
// The version comes from the release feed, so it must not leave the output folder.
func (c *Config) OutputName(version string) (string, error) {
	if version == "" || version == "." || version == ".." || strings.ContainsAny(version, `/\:`+"\x00") {
		return "", fmt.Errorf("%q: %w", version, errUnsafeVersion)
	}

	return fmt.Sprintf(c.OutputPattern, version), nil
}

// DataPath joins name onto the data directory.
func (c *Config) DataPath(name string) string {
	return filepath.Join(c.DataDir, name)
}
