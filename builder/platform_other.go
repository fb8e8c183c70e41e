//go:build !unix

package builder

import (
	"io/fs"

	"github.com/puzzlefs/puzzlefs/format"
)

func fileIdentity(fs.FileInfo) (hostIno uint64, nlink uint64, ok bool) { return 0, 0, false }

func fileOwner(fs.FileInfo) (uid, gid uint32) { return 0, 0 }

func deviceNumbers(fs.FileInfo) (major, minor uint64) { return 0, 0 }

func readXattrs(string) ([]format.Xattr, error) { return nil, nil }
