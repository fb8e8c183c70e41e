//go:build linux

package integrity

import (
	"encoding/binary"
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/puzzlefs/puzzlefs/digest"
	"github.com/puzzlefs/puzzlefs/format"
)

// fsVerityBlockSize is the Merkle tree block size used when arming a blob.
// 4096 matches the page size on every architecture this format targets and
// is what the reference implementation uses.
const fsVerityBlockSize = 4096

// digestHeaderSize is sizeof(struct fsverity_digest) without its trailing
// flexible array member: two little-endian uint16 fields, digest_algorithm
// and digest_size. x/sys/unix has no Go type for this struct since Go
// cannot represent a flexible array member, so FS_IOC_MEASURE_VERITY's
// buffer is built and parsed by hand here.
const digestHeaderSize = 4

// enableFile turns on fs-verity for the already-written, read-only file at
// path. EOPNOTSUPP/ENOTTY mean the backing filesystem does not implement
// fs-verity; EEXIST means it is already enabled (fine, another build or a
// previous run got there first).
//
// x/sys/unix does not export an IoctlFsverityEnable helper, so the
// FS_IOC_ENABLE_VERITY ioctl is issued directly against the raw syscall
// number, the same way callers reach for unix.Syscall(SYS_IOCTL, ...) for
// any ioctl the package hasn't wrapped.
func enableFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return fmt.Errorf("integrity: open %s: %w", path, err)
	}
	defer f.Close()

	arg := &unix.FsverityEnableArg{
		Version:        1,
		Hash_algorithm: unix.FS_VERITY_HASH_ALG_SHA256,
		Block_size:     fsVerityBlockSize,
	}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), uintptr(unix.FS_IOC_ENABLE_VERITY), uintptr(unsafe.Pointer(arg)))
	switch {
	case errno == 0, errno == unix.EEXIST:
		return nil
	case errno == unix.ENOTTY, errno == unix.EOPNOTSUPP:
		return fmt.Errorf("%w: fs-verity not supported on %s", format.ErrFeatureUnsupported, path)
	default:
		return fmt.Errorf("integrity: enable fs-verity on %s: %w", path, errno)
	}
}

// measureFile reads back the kernel-computed fs-verity digest for path,
// which must already have fs-verity enabled.
//
// FS_IOC_MEASURE_VERITY takes a caller-allocated buffer that starts with
// the fsverity_digest header (digest_algorithm, digest_size) followed by
// room for the digest bytes. digest_size must be set to the buffer's
// available room before the call; the kernel overwrites both header fields
// with the algorithm and length it actually used and copies the digest in
// after the header.
func measureFile(path string) ([digest.Size]byte, error) {
	var out [digest.Size]byte

	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return out, fmt.Errorf("integrity: open %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, digestHeaderSize+digest.Size)
	binary.LittleEndian.PutUint16(buf[2:4], uint16(digest.Size))

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), uintptr(unix.FS_IOC_MEASURE_VERITY), uintptr(unsafe.Pointer(&buf[0])))
	switch {
	case errno == unix.ENOTTY, errno == unix.EOPNOTSUPP:
		return out, fmt.Errorf("%w: fs-verity not supported on %s", format.ErrFeatureUnsupported, path)
	case errno != 0:
		return out, fmt.Errorf("integrity: measure fs-verity on %s: %w", path, errno)
	}

	algorithm := binary.LittleEndian.Uint16(buf[0:2])
	size := binary.LittleEndian.Uint16(buf[2:4])
	if algorithm != unix.FS_VERITY_HASH_ALG_SHA256 || int(size) != digest.Size {
		return out, fmt.Errorf("%w: unexpected fs-verity digest shape for %s", format.ErrIntegrityFailed, path)
	}
	copy(out[:], buf[digestHeaderSize:digestHeaderSize+digest.Size])
	return out, nil
}
