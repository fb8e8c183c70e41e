//go:build !unix

package store

import (
	"io"
	"os"
)

// mmapFile falls back to a plain read on platforms without a Unix mmap. The
// blob is still returned as a single byte slice, so callers on any
// platform see the same Blob interface.
func mmapFile(f *os.File, size int64) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func munmapFile([]byte) error { return nil }
