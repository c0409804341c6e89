package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/cheggaaa/pb/v3"
	"github.com/dustin/go-humanize"

	"github.com/oshokin/patch-updater/internal/config"
	"github.com/oshokin/patch-updater/internal/domain/update"
	"github.com/oshokin/patch-updater/internal/logger"
	"github.com/oshokin/patch-updater/internal/version"
)

// errBadHTTPStatus is returned for any non-200 response.
var errBadHTTPStatus = errors.New("unexpected http status")

// ProgressFunc receives the running byte count and the declared total (0 when unknown).
type ProgressFunc func(done, total int64)

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithProgressBar draws a progress bar on w during downloads.
func WithProgressBar(w io.Writer) Option {
	return func(f *Fetcher) {
		f.bar = w
	}
}

// WithProgressFunc reports progress to fn after every chunk.
func WithProgressFunc(fn ProgressFunc) Option {
	return func(f *Fetcher) {
		f.progress = fn
	}
}

// WithMinSize sets the smallest body accepted when the length is undeclared.
func WithMinSize(size int64) Option {
	return func(f *Fetcher) {
		f.minSize = size
	}
}

// Fetcher downloads URLs to files.
type Fetcher struct {
	// client performs the requests.
	client *http.Client
	// bar receives a progress bar, nil disables it.
	bar io.Writer
	// progress is called after every written chunk.
	progress ProgressFunc
	// minSize guards downloads without a declared length.
	minSize int64
}

// New creates a fetcher.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:  http.DefaultClient,
		minSize: config.DefaultMinDeltaSize,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Download writes the body of url into dst.
// A body that does not match a nonzero Content-Length is ErrDownloadIncomplete.
// The partial file is removed on every failure.
func (f *Fetcher) Download(ctx context.Context, url, dst string) (err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("User-Agent", version.UserAgent())

	response, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", url, err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("%s, %s: %w", url, response.Status, errBadHTTPStatus)
	}

	total := max(response.ContentLength, 0)

	if err = os.MkdirAll(filepath.Dir(dst), config.DefaultDirPermissions); err != nil {
		return fmt.Errorf("create folder for %s: %w", dst, err)
	}

	out, err := os.Create(filepath.Clean(dst))
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}

	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", dst, closeErr)
		}

		if err != nil {
			_ = os.Remove(dst)
		}
	}()

	written, err := f.copy(out, response.Body, total)

	switch {
	case errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("%s: received %d of %d bytes: %w", url, written, total, update.ErrDownloadIncomplete)
	case err != nil:
		return fmt.Errorf("download %s: %w", url, err)
	case total > 0 && written != total:
		return fmt.Errorf("%s: received %d of %d bytes: %w", url, written, total, update.ErrDownloadIncomplete)
	case total == 0 && written < f.minSize:
		return fmt.Errorf("%s: received %d bytes without a declared length: %w",
			url, written, update.ErrDownloadIncomplete)
	}

	logger.InfoKV(ctx, "Downloaded file", "path", dst, "size", humanize.Bytes(uint64(written)))

	return nil
}

// copy streams src into dst while accounting progress.
func (f *Fetcher) copy(dst io.Writer, src io.Reader, total int64) (int64, error) {
	if f.bar != nil {
		bar := pb.New64(total).
			SetTemplate(pb.Full).
			SetWriter(f.bar).
			Set(pb.Bytes, true).
			Set(pb.SIBytesPrefix, true).
			Start()

		defer bar.Finish()

		src = bar.NewProxyReader(src)
	}

	counter := &progressWriter{
		total:    total,
		progress: f.progress,
	}

	return io.Copy(io.MultiWriter(dst, counter), src)
}

// progressWriter counts bytes and forwards the running total.
type progressWriter struct {
	done     int64
	total    int64
	progress ProgressFunc
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.done += int64(len(p))

	if w.progress != nil {
		w.progress(w.done, w.total)
	}

	return len(p), nil
}
