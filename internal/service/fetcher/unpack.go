package fetcher

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/oshokin/patch-updater/internal/config"
	"github.com/oshokin/patch-updater/internal/domain/update"
	"github.com/oshokin/patch-updater/internal/logger"
)

// DeltaMember is the archive entry holding the delta for an unmodified image.
const DeltaMember = "vanilla.xdelta"

// ArchivePath is where an archive asset is kept while the delta is unpacked from it.
func ArchivePath(deltaPath string) string {
	return deltaPath + ".download"
}

// Format is the packaging of a release asset.
type Format int

// Supported asset formats.
const (
	FormatRaw Format = iota
	FormatZip
	FormatXZ
)

// DetectFormat guesses the asset format from the URL path extension.
func DetectFormat(assetURL string) Format {
	name := assetURL
	if parsed, err := url.Parse(assetURL); err == nil {
		name = parsed.Path
	}

	switch strings.ToLower(path.Ext(name)) {
	case ".zip":
		return FormatZip
	case ".xz":
		return FormatXZ
	default:
		return FormatRaw
	}
}

// FetchDelta downloads a release asset and leaves the delta at deltaPath.
// Archive assets are downloaded next to deltaPath and removed once unpacked,
// whatever the outcome.
func (f *Fetcher) FetchDelta(ctx context.Context, assetURL, deltaPath string) error {
	format := DetectFormat(assetURL)
	if format == FormatRaw {
		return f.Download(ctx, assetURL, deltaPath)
	}

	archivePath := ArchivePath(deltaPath)

	defer func() {
		_ = os.Remove(archivePath)
	}()

	if err := f.Download(ctx, assetURL, archivePath); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Unpacking delta", "archive", archivePath)

	var err error

	switch format {
	case FormatZip:
		err = unzipMember(archivePath, DeltaMember, deltaPath)
	case FormatXZ:
		err = unxz(archivePath, deltaPath)
	}

	if err != nil {
		_ = os.Remove(deltaPath)
		return err
	}

	return nil
}

// unzipMember extracts the entry called member from a zip archive.
func unzipMember(archivePath, member, dst string) error {
	archive, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}

	defer func() {
		_ = archive.Close()
	}()

	for _, file := range archive.File {
		if path.Base(file.Name) != member || file.FileInfo().IsDir() {
			continue
		}

		src, err := file.Open()
		if err != nil {
			return fmt.Errorf("open %s: %w", file.Name, err)
		}

		defer func() {
			_ = src.Close()
		}()

		return writeFile(dst, src)
	}

	return fmt.Errorf("%s not found in archive: %w", member, update.ErrNoAssets)
}

// unxz decompresses an xz stream.
func unxz(archivePath, dst string) error {
	in, err := os.Open(filepath.Clean(archivePath))
	if err != nil {
		return fmt.Errorf("open xz: %w", err)
	}

	defer func() {
		_ = in.Close()
	}()

	reader, err := xz.NewReader(in)
	if err != nil {
		return fmt.Errorf("read xz header: %w", err)
	}

	return writeFile(dst, reader)
}

// writeFile copies src into a freshly created dst.
func writeFile(dst string, src io.Reader) (err error) {
	out, err := os.OpenFile(filepath.Clean(dst), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, config.DefaultFilePermissions)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}

	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", dst, closeErr)
		}
	}()

	if _, err = io.Copy(out, src); err != nil {
		return fmt.Errorf("unpack into %s: %w", dst, err)
	}

	return nil
}
