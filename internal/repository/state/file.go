package state

import (
	"bytes"
	"context"
	"crypto"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/patch-updater/internal/config"
)

// FileStore keeps every key in its own file inside a directory.
type FileStore struct {
	// dir is the folder holding one file per key.
	dir string
}

// NewFileStore creates a store rooted at dir. The directory must exist before Set.
func NewFileStore(dir string) *FileStore {
	return &FileStore{
		dir: filepath.Clean(dir),
	}
}

// Path returns the file backing key.
func (s *FileStore) Path(key Key) string {
	return filepath.Join(s.dir, string(key))
}

// Get reads the whole file of key.
func (s *FileStore) Get(_ context.Context, key Key) (string, bool, error) {
	contents, err := os.ReadFile(s.Path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}

		return "", false, fmt.Errorf("read %s: %w", key, err)
	}

	return string(contents), true, nil
}

// Set replaces the file of key with value.
// The new content is staged next to the target and renamed over it,
// so readers see either the old or the new value.
func (s *FileStore) Set(_ context.Context, key Key, value string) error {
	path := s.Path(key)

	// go-update renames the existing target away, so it has to exist first.
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err = os.WriteFile(path, nil, config.DefaultFilePermissions); err != nil {
			return fmt.Errorf("create %s: %w", key, err)
		}
	}

	checksum := sha256.Sum256([]byte(value))
	options := goupdate.Options{
		TargetPath: path,
		TargetMode: config.DefaultFilePermissions,
		Checksum:   checksum[:],
		Hash:       crypto.SHA256,
	}

	if err := goupdate.Apply(bytes.NewReader([]byte(value)), options); err != nil {
		if rerr := goupdate.RollbackError(err); rerr != nil {
			return fmt.Errorf("write %s: %w (rollback failed: %v)", key, err, rerr)
		}

		return fmt.Errorf("write %s: %w", key, err)
	}

	return nil
}
