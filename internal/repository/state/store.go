package state

import (
	"context"
	"fmt"
)

// Key names a persisted value.
type Key string

// Persisted keys.
const (
	// KeyRepositoryURL is the release feed queried for new versions.
	KeyRepositoryURL Key = "repository_url"
	// KeyCurrentVersion is the version of the last successfully applied release.
	KeyCurrentVersion Key = "current_version"
	// KeyImagePath is the last image path that passed verification.
	KeyImagePath Key = "image_path"
)

// Store persists independent string values.
type Store interface {
	// Get returns the value of key and whether it is set.
	// An unset key is never an error.
	Get(ctx context.Context, key Key) (string, bool, error)
	// Set replaces the value of key.
	Set(ctx context.Context, key Key, value string) error
}

// Values is a snapshot of every persisted key, taken once at the start of a run.
type Values struct {
	// RepositoryURL is the stored release feed, empty when unset.
	RepositoryURL string
	// CurrentVersion is the stored applied version, empty when unset.
	CurrentVersion string
	// ImagePath is the stored image path, empty when unset.
	ImagePath string
}

// Load reads every known key from store.
func Load(ctx context.Context, store Store) (*Values, error) {
	var (
		values = new(Values)
		fields = map[Key]*string{
			KeyRepositoryURL:  &values.RepositoryURL,
			KeyCurrentVersion: &values.CurrentVersion,
			KeyImagePath:      &values.ImagePath,
		}
	)

	for key, field := range fields {
		value, ok, err := store.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", key, err)
		}

		if ok {
			*field = value
		}
	}

	return values, nil
}
