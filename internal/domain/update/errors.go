package update

import "errors"

// Kind classifies a failure of the update workflow.
type Kind int

// Failure kinds, one per terminal failure of a run.
const (
	KindUnknown Kind = iota
	KindEnvironment
	KindImageNotFound
	KindRepoUnreachable
	KindNoReleases
	KindTooManyAssets
	KindAlreadyUpToDate
	KindDownloadIncomplete
	KindPatchFailed
)

var (
	// ErrEnvironment means the host cannot run an update (missing tool, another instance).
	ErrEnvironment = errors.New("environment is not ready")
	// ErrImageNotFound means no valid unmodified image could be located.
	ErrImageNotFound = errors.New("unable to find a valid unmodified image")
	// ErrRepoUnreachable means the release feed could not be fetched or decoded.
	ErrRepoUnreachable = errors.New("unable to access releases")
	// ErrNoReleases means the release feed is empty.
	ErrNoReleases = errors.New("no releases found")
	// ErrNoAssets means the selected release has nothing to download.
	ErrNoAssets error = &kindError{msg: "no assets found in release", parent: ErrNoReleases}
	// ErrTooManyAssets means the selected release has more than one asset.
	ErrTooManyAssets = errors.New("too many assets found in release")
	// ErrAlreadyUpToDate means the latest release is the one already applied.
	ErrAlreadyUpToDate = errors.New("already on latest version")
	// ErrDownloadIncomplete means the received body does not match the declared size.
	ErrDownloadIncomplete = errors.New("download incomplete")
	// ErrPatchFailed means the diff tool did not produce a usable output image.
	ErrPatchFailed = errors.New("failed to patch image")
)

// kindError is a sentinel that also matches a broader parent sentinel.
type kindError struct {
	msg    string
	parent error
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.parent }

// KindOf maps err to the kind of the first taxonomy sentinel it wraps.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrEnvironment):
		return KindEnvironment
	case errors.Is(err, ErrImageNotFound):
		return KindImageNotFound
	case errors.Is(err, ErrRepoUnreachable):
		return KindRepoUnreachable
	case errors.Is(err, ErrNoReleases):
		return KindNoReleases
	case errors.Is(err, ErrTooManyAssets):
		return KindTooManyAssets
	case errors.Is(err, ErrAlreadyUpToDate):
		return KindAlreadyUpToDate
	case errors.Is(err, ErrDownloadIncomplete):
		return KindDownloadIncomplete
	case errors.Is(err, ErrPatchFailed):
		return KindPatchFailed
	default:
		return KindUnknown
	}
}

// String returns a stable identifier used in logs.
func (k Kind) String() string {
	switch k {
	case KindEnvironment:
		return "environment"
	case KindImageNotFound:
		return "image_not_found"
	case KindRepoUnreachable:
		return "repo_unreachable"
	case KindNoReleases:
		return "no_releases"
	case KindTooManyAssets:
		return "too_many_assets"
	case KindAlreadyUpToDate:
		return "already_up_to_date"
	case KindDownloadIncomplete:
		return "download_incomplete"
	case KindPatchFailed:
		return "patch_failed"
	default:
		return "unknown"
	}
}
