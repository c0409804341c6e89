package fetcher

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"

	"github.com/oshokin/patch-updater/internal/domain/update"
)

// roundTripFunc lets tests fabricate responses with arbitrary declared lengths.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// clientWith returns a client answering every request with body and declared length.
func clientWith(body []byte, declared int64) *http.Client {
	return &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode:    http.StatusOK,
				Status:        "200 OK",
				Body:          io.NopCloser(bytes.NewReader(body)),
				ContentLength: declared,
				Header:        make(http.Header),
				Request:       r,
			}, nil
		}),
	}
}

// serve starts a server returning body with a proper Content-Length.
func serve(t *testing.T, body []byte) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		_, _ = w.Write(body)
	}))
	t.Cleanup(server.Close)

	return server
}

// TestDownload_Success checks content, progress accounting and the matching length.
func TestDownload_Success(t *testing.T) {
	t.Parallel()

	var (
		body   = bytes.Repeat([]byte("delta"), 10_000)
		server = serve(t, body)
		dst    = filepath.Join(t.TempDir(), "nested", "patch")
		last   int64
		total  int64
	)

	f := New(
		WithProgressBar(io.Discard),
		WithProgressFunc(func(done, declared int64) {
			last, total = done, declared
		}),
	)

	require.NoError(t, f.Download(context.Background(), server.URL, dst))

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, body, got)
	require.Equal(t, int64(len(body)), last)
	require.Equal(t, int64(len(body)), total)
}

// TestDownload_LengthMismatch fails when fewer bytes than declared arrive.
func TestDownload_LengthMismatch(t *testing.T) {
	t.Parallel()

	dst := filepath.Join(t.TempDir(), "patch")
	f := New(WithHTTPClient(clientWith([]byte("short"), 100)))

	err := f.Download(context.Background(), "http://x/d.patch", dst)
	require.ErrorIs(t, err, update.ErrDownloadIncomplete)

	_, statErr := os.Stat(dst)
	require.ErrorIs(t, statErr, os.ErrNotExist)
}

// TestDownload_TruncatedConnection maps a body cut short by the server to ErrDownloadIncomplete.
func TestDownload_TruncatedConnection(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Length", "1000")
		_, _ = w.Write([]byte("only a few bytes"))
	}))
	defer server.Close()

	err := New().Download(context.Background(), server.URL, filepath.Join(t.TempDir(), "patch"))
	require.ErrorIs(t, err, update.ErrDownloadIncomplete)
}

// TestDownload_UnknownLength accepts any non-empty body when no length is declared.
func TestDownload_UnknownLength(t *testing.T) {
	t.Parallel()

	dst := filepath.Join(t.TempDir(), "patch")

	f := New(WithHTTPClient(clientWith([]byte("whatever"), -1)))
	require.NoError(t, f.Download(context.Background(), "http://x/d.patch", dst))

	f = New(WithHTTPClient(clientWith([]byte("whatever"), 0)))
	require.NoError(t, f.Download(context.Background(), "http://x/d.patch", dst))

	// An empty body is still rejected by the minimal size guard.
	f = New(WithHTTPClient(clientWith(nil, -1)))
	require.ErrorIs(t, f.Download(context.Background(), "http://x/d.patch", dst), update.ErrDownloadIncomplete)

	// Disabling the guard restores unconditional acceptance.
	f = New(WithHTTPClient(clientWith(nil, -1)), WithMinSize(0))
	require.NoError(t, f.Download(context.Background(), "http://x/d.patch", dst))
}

// TestDownload_HTTPError fails on non-200 responses without creating the file.
func TestDownload_HTTPError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	dst := filepath.Join(t.TempDir(), "patch")

	err := New().Download(context.Background(), server.URL, dst)
	require.ErrorIs(t, err, errBadHTTPStatus)

	_, statErr := os.Stat(dst)
	require.ErrorIs(t, statErr, os.ErrNotExist)
}

// TestDetectFormat recognises archive extensions regardless of query strings.
func TestDetectFormat(t *testing.T) {
	t.Parallel()

	require.Equal(t, FormatRaw, DetectFormat("http://x/patch.xdelta"))
	require.Equal(t, FormatZip, DetectFormat("http://x/patches.ZIP?token=1"))
	require.Equal(t, FormatXZ, DetectFormat("http://x/patch.xdelta.xz"))
}

// TestFetchDelta_Zip extracts the vanilla delta and removes the archive.
func TestFetchDelta_Zip(t *testing.T) {
	t.Parallel()

	var archive bytes.Buffer

	zw := zip.NewWriter(&archive)

	w, err := zw.Create("readme.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("ignore me"))
	require.NoError(t, err)

	w, err = zw.Create("patches/" + DeltaMember)
	require.NoError(t, err)
	_, err = w.Write([]byte("vanilla-delta"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	server := serve(t, archive.Bytes())
	dir := t.TempDir()
	deltaPath := filepath.Join(dir, "patch")

	require.NoError(t, New().FetchDelta(context.Background(), server.URL+"/patches.zip", deltaPath))

	got, err := os.ReadFile(deltaPath)
	require.NoError(t, err)
	require.Equal(t, "vanilla-delta", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

// TestFetchDelta_ZipWithoutMember reports a release without a usable delta.
func TestFetchDelta_ZipWithoutMember(t *testing.T) {
	t.Parallel()

	var archive bytes.Buffer

	zw := zip.NewWriter(&archive)
	_, err := zw.Create("other.xdelta")
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	server := serve(t, archive.Bytes())
	deltaPath := filepath.Join(t.TempDir(), "patch")

	err = New().FetchDelta(context.Background(), server.URL+"/patches.zip", deltaPath)
	require.ErrorIs(t, err, update.ErrNoAssets)

	_, statErr := os.Stat(deltaPath)
	require.ErrorIs(t, statErr, os.ErrNotExist)
}

// TestFetchDelta_XZ decompresses an xz asset.
func TestFetchDelta_XZ(t *testing.T) {
	t.Parallel()

	var compressed bytes.Buffer

	xw, err := xz.NewWriter(&compressed)
	require.NoError(t, err)
	_, err = xw.Write(bytes.Repeat([]byte("xz-delta"), 1000))
	require.NoError(t, err)
	require.NoError(t, xw.Close())

	server := serve(t, compressed.Bytes())
	deltaPath := filepath.Join(t.TempDir(), "patch")

	require.NoError(t, New().FetchDelta(context.Background(), server.URL+"/patch.xdelta.xz", deltaPath))

	got, err := os.ReadFile(deltaPath)
	require.NoError(t, err)
	require.Equal(t, bytes.Repeat([]byte("xz-delta"), 1000), got)

	_, statErr := os.Stat(deltaPath + ".download")
	require.ErrorIs(t, statErr, os.ErrNotExist)
}
