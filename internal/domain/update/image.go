package update

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MagicSize is the length of the magic signature at the start of an image.
const MagicSize = 6

var (
	errBadMagicSize = errors.New("magic signature must be exactly 6 bytes")
	errBadChecksum  = errors.New("checksum must be a 32-bit hexadecimal value")
)

// Signature identifies a known-good unmodified image.
type Signature struct {
	// Magic is the expected value of the first MagicSize bytes.
	Magic []byte
	// Checksum is the expected CRC-32 (IEEE) of the whole file.
	Checksum uint32
}

// NewSignature builds a signature from its textual configuration form.
func NewSignature(magic, checksum string) (Signature, error) {
	if len(magic) != MagicSize {
		return Signature{}, fmt.Errorf("%q: %w", magic, errBadMagicSize)
	}

	value, err := ParseChecksum(checksum)
	if err != nil {
		return Signature{}, err
	}

	return Signature{
		Magic:    []byte(magic),
		Checksum: value,
	}, nil
}

// ParseChecksum parses an 8-digit hexadecimal checksum with an optional 0x prefix.
func ParseChecksum(s string) (uint32, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	if len(s) == 0 || len(s) > hex.EncodedLen(4) {
		return 0, fmt.Errorf("%q: %w", s, errBadChecksum)
	}

	value, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", s, errBadChecksum)
	}

	return uint32(value), nil
}

// FormatChecksum renders a checksum the way it is written in settings and logs.
func FormatChecksum(sum uint32) string {
	return fmt.Sprintf("%08X", sum)
}

// MatchesMagic reports whether header starts with the signature magic.
func (s Signature) MatchesMagic(header []byte) bool {
	return len(header) >= len(s.Magic) && bytes.Equal(header[:len(s.Magic)], s.Magic)
}
