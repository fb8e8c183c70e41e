package vfs

import (
	"errors"

	"golang.org/x/sys/unix"

	"github.com/puzzlefs/puzzlefs/format"
)

// Errno maps a package-level sentinel error (or nil) to the POSIX errno a
// VFS host should surface for it, per the reader's error propagation
// policy: NotFound -> ENOENT, InvalidFormat/IntegrityFailed -> EIO,
// FeatureUnsupported -> ENOTSUP. Errors not recognized as one of the
// PuzzleFS sentinel kinds also map to EIO, since every operation that
// reaches this boundary has already failed for some reason.
func Errno(err error) unix.Errno {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, format.ErrNotFound):
		return unix.ENOENT
	case errors.Is(err, format.ErrFeatureUnsupported):
		return unix.ENOTSUP
	case errors.Is(err, format.ErrIntegrityFailed):
		return unix.EIO
	case errors.Is(err, format.ErrInvalidFormat):
		return unix.EIO
	case errors.Is(err, format.ErrInvalidInode):
		return unix.EIO
	case errors.Is(err, format.ErrMissingBlob):
		return unix.EIO
	case errors.Is(err, format.ErrWhiteoutMisuse):
		return unix.EIO
	case errors.Is(err, format.ErrCompressionError):
		return unix.EIO
	default:
		var uv *format.UnsupportedVersionError
		if errors.As(err, &uv) {
			return unix.ENOTSUP
		}
		return unix.EIO
	}
}
