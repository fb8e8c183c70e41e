package reader

import (
	"fmt"
	"io"

	"github.com/puzzlefs/puzzlefs/format"
)

// Getattr resolves ino to its inode record.
func (img *Image) Getattr(ino format.Ino) (format.Inode, error) {
	return img.FindInode(ino)
}

func (img *Image) fileChunks(ino format.Ino) ([]format.FileChunk, error) {
	inode, layerIdx, ok, err := img.findInodeFrom(ino, 0)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: ino %d", format.ErrNotFound, ino)
	}
	if inode.Mode.Kind != format.ModeFile {
		return nil, fmt.Errorf("%w: ino %d is not a regular file", format.ErrInvalidInode, ino)
	}
	return img.layers[layerIdx].ReadFileChunks(inode.Mode.Offset)
}

// Size returns a regular file's total length in bytes: the sum of its
// chunk lengths.
func (img *Image) Size(ino format.Ino) (uint64, error) {
	chunks, err := img.fileChunks(ino)
	if err != nil {
		return 0, err
	}
	var n uint64
	for _, c := range chunks {
		n += c.Len
	}
	return n, nil
}

// ReadAt fills buf with the file's bytes starting at off, per the
// byte-range resolution algorithm of §4.5: walk the chunk list with a
// running cursor, and for each chunk that intersects [off, off+len(buf)),
// copy the intersecting slice out of that chunk's backing blob.
func (img *Image) ReadAt(ino format.Ino, buf []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("%w: negative offset %d", format.ErrInvalidFormat, off)
	}
	chunks, err := img.fileChunks(ino)
	if err != nil {
		return 0, err
	}

	reqOff := uint64(off)
	want := uint64(len(buf))
	reqEnd := reqOff + want

	var cur uint64
	var n int
	for _, c := range chunks {
		chunkStart, chunkEnd := cur, cur+c.Len
		cur = chunkEnd
		if chunkEnd <= reqOff {
			continue
		}
		if chunkStart >= reqEnd {
			break
		}

		lo := max(chunkStart, reqOff)
		hi := min(chunkEnd, reqEnd)

		data, err := img.resolveBlobRef(c.Blob)
		if err != nil {
			return n, err
		}
		srcStart := c.Blob.Offset + (lo - chunkStart)
		srcEnd := srcStart + (hi - lo)
		if srcEnd > uint64(len(data)) {
			return n, fmt.Errorf("%w: chunk range [%d,%d) exceeds blob of length %d", format.ErrInvalidFormat, srcStart, srcEnd, len(data))
		}

		copy(buf[lo-reqOff:hi-reqOff], data[srcStart:srcEnd])
		n += int(hi - lo)
	}

	if uint64(n) < want {
		return n, io.EOF
	}
	return n, nil
}

// Readlink resolves ino's symlink target. ino must be a symlink inode.
func (img *Image) Readlink(ino format.Ino) (string, error) {
	inode, layerIdx, ok, err := img.findInodeFrom(ino, 0)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: ino %d", format.ErrNotFound, ino)
	}
	if inode.Mode.Kind != format.ModeSymlink {
		return "", fmt.Errorf("%w: ino %d is not a symlink", format.ErrInvalidInode, ino)
	}
	if inode.Additional == nil {
		return "", fmt.Errorf("%w: symlink ino %d has no target", format.ErrInvalidFormat, ino)
	}
	add, err := img.layers[layerIdx].ReadInodeAdditional(*inode.Additional)
	if err != nil {
		return "", err
	}
	return string(add.SymlinkTarget), nil
}
