// Package vfs adapts a read-only reader.Image to the shape a VFS host
// expects: attribute records instead of raw wire structs, and POSIX errno
// instead of Go sentinel errors. It stops at that boundary; binding to a
// specific kernel filesystem interface (FUSE, virtiofs, or otherwise) is
// left to the host process that embeds this package.
package vfs

import (
	"errors"
	"fmt"
	"io"

	"github.com/puzzlefs/puzzlefs/format"
	"github.com/puzzlefs/puzzlefs/reader"
)

// RootIno is the inode number a VFS host should treat as the mount root.
const RootIno = reader.RootIno

// Attr is the subset of inode metadata a VFS host needs to answer getattr:
// enough to build a stat(2) result without exposing wire-format details
// like payload offsets.
type Attr struct {
	Ino          format.Ino
	Kind         format.ModeKind
	Size         uint64
	Permissions  uint16
	UID, GID     uint32
	Major, Minor uint64
}

// Entry is one directory entry as seen by a VFS host: a name and the
// inode it resolves to.
type Entry struct {
	Name string
	Ino  format.Ino
}

// FS wraps an open image with the VFS-shaped surface a mount host drives:
// lookup, getattr, readdir, read, readlink, and xattrs. There is no open
// step or file handle; Read takes an inode number directly.
type FS struct {
	img *reader.Image
}

// New wraps img for VFS-style access.
func New(img *reader.Image) *FS { return &FS{img: img} }

// Close releases the underlying image's blob handles.
func (fs *FS) Close() error { return fs.img.Close() }

// Lookup resolves an absolute path to its inode number and attributes.
func (fs *FS) Lookup(path string) (Attr, error) {
	inode, _, err := fs.img.Lookup(path)
	if err != nil {
		return Attr{}, err
	}
	return fs.attrOf(inode)
}

// GetAttr returns the attributes of an already-known inode.
func (fs *FS) GetAttr(ino format.Ino) (Attr, error) {
	inode, err := fs.img.Getattr(ino)
	if err != nil {
		return Attr{}, err
	}
	return fs.attrOf(inode)
}

func (fs *FS) attrOf(inode format.Inode) (Attr, error) {
	a := Attr{
		Ino:         inode.Ino,
		Kind:        inode.Mode.Kind,
		Permissions: inode.Permissions,
		UID:         inode.UID,
		GID:         inode.GID,
		Major:       inode.Mode.Major,
		Minor:       inode.Mode.Minor,
	}
	if inode.Mode.Kind == format.ModeFile {
		size, err := fs.img.Size(inode.Ino)
		if err != nil {
			return Attr{}, err
		}
		a.Size = size
	}
	return a, nil
}

// ReadDir lists a directory's merged, whiteout-filtered entries.
func (fs *FS) ReadDir(ino format.Ino) ([]Entry, error) {
	dirents, err := fs.img.Readdir(ino)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, len(dirents))
	for i, e := range dirents {
		out[i] = Entry{Name: string(e.Name), Ino: e.Ino}
	}
	return out, nil
}

// Size returns a regular file's length in bytes.
func (fs *FS) Size(ino format.Ino) (uint64, error) {
	return fs.img.Size(ino)
}

// Read fills buf with the file's bytes starting at off, per pread(2)
// semantics: a short read at end-of-file is not an error.
func (fs *FS) Read(ino format.Ino, buf []byte, off int64) (int, error) {
	n, err := fs.img.ReadAt(ino, buf, off)
	if errors.Is(err, io.EOF) {
		return n, nil
	}
	return n, err
}

// Readlink returns a symlink's target.
func (fs *FS) Readlink(ino format.Ino) (string, error) {
	return fs.img.Readlink(ino)
}

// GetXattr returns the value of a named extended attribute.
func (fs *FS) GetXattr(ino format.Ino, name string) ([]byte, error) {
	val, ok, err := fs.img.GetXattr(ino, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: xattr %q on ino %d", format.ErrNotFound, name, ino)
	}
	return val, nil
}

// ListXattr returns the names of every extended attribute set on ino.
func (fs *FS) ListXattr(ino format.Ino) ([]string, error) {
	return fs.img.ListXattr(ino)
}
