package verifier

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"

	"github.com/cheggaaa/pb/v3"

	"github.com/oshokin/patch-updater/internal/domain/update"
	"github.com/oshokin/patch-updater/internal/logger"
)

// BufferSize is the read size used while hashing.
const BufferSize = 64 * 1024

// Checksum computes the CRC-32 (IEEE) of everything read from r.
// Memory use does not depend on the stream length.
func Checksum(r io.Reader) (uint32, error) {
	var (
		sum uint32
		buf = make([]byte, BufferSize)
	)

	for {
		n, err := r.Read(buf)
		if n > 0 {
			sum = crc32.Update(sum, crc32.IEEETable, buf[:n])
		}

		if errors.Is(err, io.EOF) {
			return sum, nil
		}

		if err != nil {
			return sum, err
		}
	}
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithProgress draws a progress bar on w while hashing a file.
func WithProgress(w io.Writer) Option {
	return func(v *Verifier) {
		v.progress = w
	}
}

// Verifier validates candidate files against a known-good signature.
type Verifier struct {
	// signature is the expected magic and checksum.
	signature update.Signature
	// progress receives the hashing progress bar, nil disables it.
	progress io.Writer
}

// New creates a verifier for signature.
func New(signature update.Signature, opts ...Option) *Verifier {
	v := &Verifier{signature: signature}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

// IsValidImage reports whether path holds an unmodified image.
// Unreadable files and directories are reported as invalid.
func (v *Verifier) IsValidImage(ctx context.Context, path string) bool {
	valid, err := v.Verify(ctx, path)
	if err != nil {
		logger.DebugKV(ctx, "Unable to verify file", "path", path, "error", err)
		return false
	}

	return valid
}

// Verify is IsValidImage with the I/O error exposed.
func (v *Verifier) Verify(ctx context.Context, path string) (bool, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return false, err
	}

	defer func() {
		_ = file.Close()
	}()

	info, err := file.Stat()
	if err != nil {
		return false, err
	}

	if info.IsDir() {
		return false, nil
	}

	return v.check(ctx, path, file, info.Size())
}

// check validates an opened image of the given size.
func (v *Verifier) check(ctx context.Context, path string, file io.ReadSeeker, size int64) (bool, error) {
	header := make([]byte, len(v.signature.Magic))
	if _, err := io.ReadFull(file, header); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return false, nil
		}

		return false, fmt.Errorf("read header: %w", err)
	}

	if !v.signature.MatchesMagic(header) {
		return false, nil
	}

	logger.InfoKV(ctx, "Validating image is not modified", "path", path)

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return false, fmt.Errorf("rewind: %w", err)
	}

	var reader io.Reader = file

	if v.progress != nil {
		bar := pb.New64(size).
			SetTemplate(pb.Full).
			SetWriter(v.progress).
			Set(pb.Bytes, true).
			Set(pb.SIBytesPrefix, true).
			Start()

		defer bar.Finish()

		reader = bar.NewProxyReader(file)
	}

	sum, err := Checksum(reader)
	if err != nil {
		return false, fmt.Errorf("hash: %w", err)
	}

	if sum != v.signature.Checksum {
		logger.InfoKV(ctx, "Image checksum mismatch",
			"path", path,
			"expected", update.FormatChecksum(v.signature.Checksum),
			"actual", update.FormatChecksum(sum))

		return false, nil
	}

	return true, nil
}
