package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/oshokin/patch-updater/internal/domain/update"
	"github.com/oshokin/patch-updater/internal/logger"
	"github.com/oshokin/patch-updater/internal/version"
)

// maxFeedSize bounds the feed body read into memory.
const maxFeedSize = 16 << 20

// Chooser picks one of the listed releases by index.
type Chooser func(ctx context.Context, releases []update.Release) (int, error)

// Resolver queries release feeds.
type Resolver struct {
	// client performs the requests.
	client *http.Client
}

// New creates a resolver using client, or http.DefaultClient when nil.
func New(client *http.Client) *Resolver {
	if client == nil {
		client = http.DefaultClient
	}

	return &Resolver{client: client}
}

// ResolveLatest returns the version and asset URL of the newest release.
// currentVersion is the last applied version, empty when nothing was applied yet.
func (r *Resolver) ResolveLatest(ctx context.Context, repositoryURL, currentVersion string) (update.Target, error) {
	releases, err := r.Releases(ctx, repositoryURL)
	if err != nil {
		return update.Target{}, err
	}

	if len(releases) == 0 {
		return update.Target{}, fmt.Errorf("%s: %w", repositoryURL, update.ErrNoReleases)
	}

	latest := releases[0]

	if currentVersion != "" && latest.Version == currentVersion {
		return update.Target{}, fmt.Errorf("%s: %w", latest.Version, update.ErrAlreadyUpToDate)
	}

	asset, err := latest.PatchAsset()
	if err != nil {
		return update.Target{}, fmt.Errorf("latest release for %s: %w", repositoryURL, err)
	}

	logger.InfoKV(ctx, "New version available", "version", latest.Version, "current", currentVersion)

	return update.Target{
		Version:  latest.Version,
		AssetURL: asset.DownloadURL,
	}, nil
}

// ResolveSpecific lets choose pick any release of the feed.
// Out of range choices are clamped to the first or last release.
func (r *Resolver) ResolveSpecific(ctx context.Context, repositoryURL string, choose Chooser) (update.Target, error) {
	releases, err := r.Releases(ctx, repositoryURL)
	if err != nil {
		return update.Target{}, err
	}

	if len(releases) == 0 {
		return update.Target{}, fmt.Errorf("%s: %w", repositoryURL, update.ErrNoReleases)
	}

	index, err := choose(ctx, releases)
	if err != nil {
		return update.Target{}, fmt.Errorf("choose release: %w", err)
	}

	index = min(max(index, 0), len(releases)-1)
	release := releases[index]

	asset, err := release.PatchAsset()
	if err != nil {
		return update.Target{}, fmt.Errorf("release for %s: %w", repositoryURL, err)
	}

	logger.InfoKV(ctx, "Selected version", "version", release.Version)

	return update.Target{
		Version:  release.Version,
		AssetURL: asset.DownloadURL,
	}, nil
}

// Releases fetches and decodes the feed at repositoryURL.
// A single release object, as served by ".../releases/latest", is accepted too.
func (r *Resolver) Releases(ctx context.Context, repositoryURL string) ([]update.Release, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, repositoryURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", repositoryURL, err, update.ErrRepoUnreachable)
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", version.UserAgent())

	response, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", repositoryURL, err, update.ErrRepoUnreachable)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%s, status %s: %w", repositoryURL, response.Status, update.ErrRepoUnreachable)
	}

	body, err := io.ReadAll(io.LimitReader(response.Body, maxFeedSize))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w: %w", repositoryURL, err, update.ErrRepoUnreachable)
	}

	releases, err := decodeFeed(body)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w: %w", repositoryURL, err, update.ErrRepoUnreachable)
	}

	logger.DebugKV(ctx, "Release feed fetched", "url", repositoryURL, "releases", len(releases))

	return releases, nil
}

// decodeFeed parses either an array of releases or a single release object.
func decodeFeed(body []byte) ([]update.Release, error) {
	trimmed := bytes.TrimSpace(body)

	if len(trimmed) > 0 && trimmed[0] == '{' {
		var release update.Release
		if err := json.Unmarshal(trimmed, &release); err != nil {
			return nil, err
		}

		return []update.Release{release}, nil
	}

	var releases []update.Release
	if err := json.Unmarshal(trimmed, &releases); err != nil {
		return nil, err
	}

	return releases, nil
}
