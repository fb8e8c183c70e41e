//go:build unix

package builder

import (
	"io/fs"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/puzzlefs/puzzlefs/format"
)

// fileIdentity extracts a host inode number and hard-link count from info,
// used to detect files that are hard links of one another.
func fileIdentity(info fs.FileInfo) (hostIno uint64, nlink uint64, ok bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, 0, false
	}
	return st.Ino, uint64(st.Nlink), true
}

func fileOwner(info fs.FileInfo) (uid, gid uint32) {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return st.Uid, st.Gid
	}
	return 0, 0
}

// deviceNumbers returns a character or block special file's major/minor
// device numbers.
func deviceNumbers(info fs.FileInfo) (major, minor uint64) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, 0
	}
	dev := uint64(st.Rdev) //nolint:unconvert // Rdev's width varies by GOARCH
	return uint64(unix.Major(dev)), uint64(unix.Minor(dev))
}

// readXattrs lists and reads every extended attribute set on path, without
// following a trailing symlink.
func readXattrs(path string) ([]format.Xattr, error) {
	size, err := unix.Llistxattr(path, nil)
	if err != nil {
		if err == unix.ENOTSUP || err == unix.EOPNOTSUPP {
			return nil, nil
		}
		return nil, err
	}
	if size == 0 {
		return nil, nil
	}

	namesBuf := make([]byte, size)
	n, err := unix.Llistxattr(path, namesBuf)
	if err != nil {
		return nil, err
	}

	var xattrs []format.Xattr
	for _, name := range strings.Split(strings.TrimRight(string(namesBuf[:n]), "\x00"), "\x00") {
		if name == "" {
			continue
		}
		vsize, err := unix.Lgetxattr(path, name, nil)
		if err != nil {
			continue
		}
		val := make([]byte, vsize)
		if vsize > 0 {
			if _, err := unix.Lgetxattr(path, name, val); err != nil {
				continue
			}
		}
		xattrs = append(xattrs, format.Xattr{Key: []byte(name), Value: val})
	}
	return xattrs, nil
}
