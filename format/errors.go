package format

import (
	"errors"
	"fmt"
)

// Sentinel errors corresponding to the error kinds in the PuzzleFS error
// handling design. Callers use errors.Is/errors.As against these; the codec
// never panics on malformed input, it always returns one of these instead.
var (
	// ErrNotFound is returned when a referenced blob or inode is absent.
	ErrNotFound = errors.New("puzzlefs: not found")

	// ErrInvalidFormat is returned on any malformed encoding or broken
	// on-disk invariant: bad tags, truncated records, non-monotone
	// inode ordering, and similar structural violations.
	ErrInvalidFormat = errors.New("puzzlefs: invalid format")

	// ErrMissingBlob is returned when a manifest or inode references a
	// digest that does not resolve to a blob in the store.
	ErrMissingBlob = errors.New("puzzlefs: missing blob")

	// ErrInvalidInode is returned for a dangling directory-entry
	// reference or a non-monotone inode vector.
	ErrInvalidInode = errors.New("puzzlefs: invalid inode")

	// ErrIntegrityFailed is returned when a measured digest does not
	// match its recorded fs-verity value.
	ErrIntegrityFailed = errors.New("puzzlefs: integrity check failed")

	// ErrFeatureUnsupported is returned when the underlying filesystem
	// lacks a required capability (e.g. fs-verity).
	ErrFeatureUnsupported = errors.New("puzzlefs: feature unsupported")

	// ErrWhiteoutMisuse is returned when a whiteout entry is used in a
	// position the format does not allow.
	ErrWhiteoutMisuse = errors.New("puzzlefs: whiteout misuse")

	// ErrCompressionError is returned when compression or decompression
	// of a chunk fails.
	ErrCompressionError = errors.New("puzzlefs: compression error")
)

// UnsupportedVersionError is returned when a manifest's version does not
// match any version this implementation understands.
type UnsupportedVersionError struct {
	Version uint64
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("puzzlefs: unsupported manifest version %d", e.Version)
}

func (e *UnsupportedVersionError) Is(target error) bool {
	_, ok := target.(*UnsupportedVersionError)
	return ok
}
