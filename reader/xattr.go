package reader

import (
	"fmt"

	"github.com/puzzlefs/puzzlefs/format"
)

func (img *Image) additionalFor(ino format.Ino) (format.InodeAdditional, bool, error) {
	inode, layerIdx, ok, err := img.findInodeFrom(ino, 0)
	if err != nil {
		return format.InodeAdditional{}, false, err
	}
	if !ok {
		return format.InodeAdditional{}, false, fmt.Errorf("%w: ino %d", format.ErrNotFound, ino)
	}
	if inode.Additional == nil {
		return format.InodeAdditional{}, false, nil
	}
	add, err := img.layers[layerIdx].ReadInodeAdditional(*inode.Additional)
	if err != nil {
		return format.InodeAdditional{}, false, err
	}
	return add, true, nil
}

// GetXattr returns the value of the named extended attribute on ino.
func (img *Image) GetXattr(ino format.Ino, name string) ([]byte, bool, error) {
	add, ok, err := img.additionalFor(ino)
	if err != nil || !ok {
		return nil, false, err
	}
	for _, x := range add.Xattrs {
		if string(x.Key) == name {
			return x.Value, true, nil
		}
	}
	return nil, false, nil
}

// ListXattr returns the names of every extended attribute set on ino.
func (img *Image) ListXattr(ino format.Ino) ([]string, error) {
	add, ok, err := img.additionalFor(ino)
	if err != nil || !ok {
		return nil, err
	}
	names := make([]string, len(add.Xattrs))
	for i, x := range add.Xattrs {
		names[i] = string(x.Key)
	}
	return names, nil
}
