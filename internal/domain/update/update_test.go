package update

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestNewSignature verifies parsing of the textual image signature.
func TestNewSignature(t *testing.T) {
	t.Parallel()

	sig, err := NewSignature("G4NJDA", "55EE8B1A")
	require.NoError(t, err)
	require.Equal(t, []byte("G4NJDA"), sig.Magic)
	require.Equal(t, uint32(0x55EE8B1A), sig.Checksum)

	sig, err = NewSignature("G4NJDA", "0x55ee8b1a")
	require.NoError(t, err)
	require.Equal(t, uint32(0x55EE8B1A), sig.Checksum)

	_, err = NewSignature("G4NJ", "55EE8B1A")
	require.Error(t, err)

	_, err = NewSignature("G4NJDA", "not-hex")
	require.Error(t, err)

	_, err = NewSignature("G4NJDA", "155EE8B1A")
	require.Error(t, err)
}

// TestSignatureMatchesMagic checks header comparison including short headers.
func TestSignatureMatchesMagic(t *testing.T) {
	t.Parallel()

	sig := Signature{Magic: []byte("G4NJDA")}

	require.True(t, sig.MatchesMagic([]byte("G4NJDA")))
	require.True(t, sig.MatchesMagic([]byte("G4NJDAxyz")))
	require.False(t, sig.MatchesMagic([]byte("G4NJD")))
	require.False(t, sig.MatchesMagic([]byte("g4njda")))
}

// TestFormatChecksum ensures checksums are rendered as zero-padded upper-case hex.
func TestFormatChecksum(t *testing.T) {
	t.Parallel()

	require.Equal(t, "55EE8B1A", FormatChecksum(0x55EE8B1A))
	require.Equal(t, "0000000F", FormatChecksum(0xF))
}

// TestReleasePatchAsset enforces the single-asset policy.
func TestReleasePatchAsset(t *testing.T) {
	t.Parallel()

	release := &Release{Version: "1.2"}
	_, err := release.PatchAsset()
	require.ErrorIs(t, err, ErrNoAssets)
	require.ErrorIs(t, err, ErrNoReleases)

	release.Assets = []Asset{{DownloadURL: "http://x/d.patch"}}
	asset, err := release.PatchAsset()
	require.NoError(t, err)
	require.Equal(t, "http://x/d.patch", asset.DownloadURL)

	release.Assets = append(release.Assets, Asset{DownloadURL: "http://x/e.patch"})
	_, err = release.PatchAsset()
	require.ErrorIs(t, err, ErrTooManyAssets)
}

// TestKindOf maps wrapped sentinels back to their kinds.
func TestKindOf(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want Kind
	}{
		{nil, KindUnknown},
		{errors.New("x"), KindUnknown},
		{fmt.Errorf("a: %w", ErrEnvironment), KindEnvironment},
		{fmt.Errorf("a: %w", ErrImageNotFound), KindImageNotFound},
		{fmt.Errorf("a: %w", ErrRepoUnreachable), KindRepoUnreachable},
		{fmt.Errorf("a: %w", ErrNoAssets), KindNoReleases},
		{fmt.Errorf("a: %w", ErrTooManyAssets), KindTooManyAssets},
		{fmt.Errorf("a: %w", ErrAlreadyUpToDate), KindAlreadyUpToDate},
		{fmt.Errorf("a: %w", ErrDownloadIncomplete), KindDownloadIncomplete},
		{fmt.Errorf("a: %w", ErrPatchFailed), KindPatchFailed},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, KindOf(tc.err), "error: %v", tc.err)
	}

	require.Equal(t, "already_up_to_date", KindAlreadyUpToDate.String())
}
