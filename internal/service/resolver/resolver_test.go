package resolver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/patch-updater/internal/domain/update"
)

// feed starts a server answering every request with status and body.
func feed(t *testing.T, status int, body string) string {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	return server.URL
}

// TestResolveLatest_NewVersion returns the first release and its only asset.
func TestResolveLatest_NewVersion(t *testing.T) {
	t.Parallel()

	url := feed(t, http.StatusOK,
		`[{"name":"1.2","assets":[{"browser_download_url":"http://x/d.patch"}]},
		  {"name":"1.1","assets":[{"browser_download_url":"http://x/c.patch"}]}]`)

	target, err := New(nil).ResolveLatest(context.Background(), url, "1.1")
	require.NoError(t, err)
	require.Equal(t, update.Target{Version: "1.2", AssetURL: "http://x/d.patch"}, target)

	// Nothing applied yet.
	target, err = New(nil).ResolveLatest(context.Background(), url, "")
	require.NoError(t, err)
	require.Equal(t, "1.2", target.Version)
}

// TestResolveLatest_AlreadyUpToDate uses exact, case-sensitive comparison.
func TestResolveLatest_AlreadyUpToDate(t *testing.T) {
	t.Parallel()

	url := feed(t, http.StatusOK, `[{"name":"v1.2-Final","assets":[]}]`)

	_, err := New(nil).ResolveLatest(context.Background(), url, "v1.2-Final")
	require.ErrorIs(t, err, update.ErrAlreadyUpToDate)

	// Case or whitespace differences are different versions; the empty asset list then fails.
	for _, current := range []string{"v1.2-final", "v1.2-Final ", "1.2-Final"} {
		_, err = New(nil).ResolveLatest(context.Background(), url, current)
		require.False(t, errors.Is(err, update.ErrAlreadyUpToDate), current)
		require.ErrorIs(t, err, update.ErrNoAssets)
	}
}

// TestResolveLatest_AssetPolicy rejects zero and multiple assets.
func TestResolveLatest_AssetPolicy(t *testing.T) {
	t.Parallel()

	url := feed(t, http.StatusOK, `[{"name":"1.2","assets":[]}]`)
	_, err := New(nil).ResolveLatest(context.Background(), url, "1.1")
	require.ErrorIs(t, err, update.ErrNoReleases)
	require.ErrorIs(t, err, update.ErrNoAssets)

	url = feed(t, http.StatusOK,
		`[{"name":"1.2","assets":[{"browser_download_url":"http://x/a"},{"browser_download_url":"http://x/b"}]}]`)
	_, err = New(nil).ResolveLatest(context.Background(), url, "1.1")
	require.ErrorIs(t, err, update.ErrTooManyAssets)
}

// TestResolveLatest_FeedErrors covers empty feeds, bad statuses and bad JSON.
func TestResolveLatest_FeedErrors(t *testing.T) {
	t.Parallel()

	_, err := New(nil).ResolveLatest(context.Background(), feed(t, http.StatusOK, `[]`), "")
	require.ErrorIs(t, err, update.ErrNoReleases)
	require.False(t, errors.Is(err, update.ErrNoAssets))

	_, err = New(nil).ResolveLatest(context.Background(), feed(t, http.StatusNotFound, `{}`), "")
	require.ErrorIs(t, err, update.ErrRepoUnreachable)

	_, err = New(nil).ResolveLatest(context.Background(), feed(t, http.StatusOK, `not json`), "")
	require.ErrorIs(t, err, update.ErrRepoUnreachable)

	_, err = New(nil).ResolveLatest(context.Background(), "http://127.0.0.1:0/releases", "")
	require.ErrorIs(t, err, update.ErrRepoUnreachable)
}

// TestReleases_SingleObject accepts the ".../releases/latest" form.
func TestReleases_SingleObject(t *testing.T) {
	t.Parallel()

	url := feed(t, http.StatusOK, `{"name":"2.0","assets":[{"name":"patch.xdelta","browser_download_url":"http://x/p"}]}`)

	releases, err := New(nil).Releases(context.Background(), url)
	require.NoError(t, err)
	require.Equal(t, []update.Release{{
		Version: "2.0",
		Assets:  []update.Asset{{Name: "patch.xdelta", DownloadURL: "http://x/p"}},
	}}, releases)
}

// TestResolveSpecific lets the chooser pick and clamps out of range answers.
func TestResolveSpecific(t *testing.T) {
	t.Parallel()

	url := feed(t, http.StatusOK,
		`[{"name":"1.2","assets":[{"browser_download_url":"http://x/d"}]},
		  {"name":"1.1","assets":[{"browser_download_url":"http://x/c"}]}]`)

	pick := func(index int) Chooser {
		return func(_ context.Context, releases []update.Release) (int, error) {
			require.Len(t, releases, 2)
			return index, nil
		}
	}

	target, err := New(nil).ResolveSpecific(context.Background(), url, pick(1))
	require.NoError(t, err)
	require.Equal(t, update.Target{Version: "1.1", AssetURL: "http://x/c"}, target)

	target, err = New(nil).ResolveSpecific(context.Background(), url, pick(10))
	require.NoError(t, err)
	require.Equal(t, "1.1", target.Version)

	target, err = New(nil).ResolveSpecific(context.Background(), url, pick(-4))
	require.NoError(t, err)
	require.Equal(t, "1.2", target.Version)

	failing := func(context.Context, []update.Release) (int, error) {
		return 0, errors.New("stdin closed")
	}
	_, err = New(nil).ResolveSpecific(context.Background(), url, failing)
	require.Error(t, err)
}
