package update

import "fmt"

// Asset is a single downloadable file attached to a release.
type Asset struct {
	// Name is the file name shown by the feed, may be empty.
	Name string `json:"name"`
	// DownloadURL is where the asset body is fetched from.
	DownloadURL string `json:"browser_download_url"`
}

// Release describes one published version in the release feed.
type Release struct {
	// Version is the release name and is compared verbatim with the stored version.
	Version string `json:"name"`
	// Assets lists the downloadable files in feed order.
	Assets []Asset `json:"assets"`
}

// PatchAsset returns the only asset of the release.
// Releases without assets or with more than one asset cannot be patched from.
func (r *Release) PatchAsset() (Asset, error) {
	switch len(r.Assets) {
	case 0:
		return Asset{}, fmt.Errorf("release %q: %w", r.Version, ErrNoAssets)
	case 1:
		return r.Assets[0], nil
	default:
		return Asset{}, fmt.Errorf("release %q has %d assets: %w", r.Version, len(r.Assets), ErrTooManyAssets)
	}
}

// Target is a resolved release ready to be downloaded.
type Target struct {
	// Version is the version that will be recorded after a successful patch.
	Version string
	// AssetURL is the download URL of the delta.
	AssetURL string
}
