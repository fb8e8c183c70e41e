package reader

import (
	"fmt"
	"path"
	"strings"

	"github.com/puzzlefs/puzzlefs/format"
)

// RootIno is the inode number of the filesystem root in the top metadata
// layer.
const RootIno format.Ino = 1

// FindInode resolves ino to the first layer (topmost first) that has it.
func (img *Image) FindInode(ino format.Ino) (format.Inode, error) {
	inode, _, ok, err := img.findInodeFrom(ino, 0)
	if err != nil {
		return format.Inode{}, err
	}
	if !ok {
		return format.Inode{}, fmt.Errorf("%w: ino %d", format.ErrNotFound, ino)
	}
	return inode, nil
}

// findInodeFrom scans layers[from:] in order, returning the first layer
// that contains ino, its inode record, and that layer's index.
func (img *Image) findInodeFrom(ino format.Ino, from int) (format.Inode, int, bool, error) {
	for i := from; i < len(img.layers); i++ {
		inode, ok, err := img.layers[i].FindInode(ino)
		if err != nil {
			return format.Inode{}, 0, false, err
		}
		if ok {
			return inode, i, true, nil
		}
	}
	return format.Inode{}, 0, false, nil
}

// Lookup resolves an absolute, slash-separated path to its inode. "/"
// resolves to the filesystem root.
func (img *Image) Lookup(p string) (format.Inode, format.Ino, error) {
	p = path.Clean("/" + p)
	if p == "/" {
		inode, err := img.FindInode(RootIno)
		return inode, RootIno, err
	}

	ino := RootIno
	var inode format.Inode
	for _, name := range strings.Split(strings.TrimPrefix(p, "/"), "/") {
		entries, err := img.Readdir(ino)
		if err != nil {
			return format.Inode{}, 0, err
		}
		next, ok := findEntry(entries, name)
		if !ok {
			return format.Inode{}, 0, fmt.Errorf("%w: %s", format.ErrNotFound, p)
		}
		ino = next.Ino
		inode, err = img.FindInode(ino)
		if err != nil {
			return format.Inode{}, 0, err
		}
	}
	return inode, ino, nil
}

func findEntry(entries []format.DirEnt, name string) (format.DirEnt, bool) {
	for _, e := range entries {
		if string(e.Name) == name {
			return e, true
		}
	}
	return format.DirEnt{}, false
}
