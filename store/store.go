package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/puzzlefs/puzzlefs/digest"
)

// Store is a content-addressed directory of blobs: every file in it is
// named by the hex SHA-256 digest of its own contents and is never
// modified after being written.
type Store struct {
	dir string
}

// Open returns a Store rooted at dir, creating it if necessary.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the store's root directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) path(d digest.Digest) string {
	return filepath.Join(s.dir, d.String())
}

// Path returns the on-disk path of the blob named by d, without checking
// that it exists. Used by the integrity package, which needs an open file
// descriptor of its own to make fs-verity ioctls on.
func (s *Store) Path(d digest.Digest) string {
	return s.path(d)
}

// Has reports whether a blob with digest d already exists in the store.
func (s *Store) Has(d digest.Digest) bool {
	_, err := os.Stat(s.path(d))
	return err == nil
}

// Writer streams a new blob into the store. Its digest is not known until
// Finish is called, so it is buffered under a temporary name and renamed
// into place atomically once its content (and therefore its final name)
// is known.
type Writer struct {
	store  *Store
	tmp    *os.File
	hasher *digest.Hasher
	n      uint64
	done   bool
}

// NewWriter opens a Writer for a new blob.
func (s *Store) NewWriter() (*Writer, error) {
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("store: create temp file: %w", err)
	}
	return &Writer{store: s, tmp: tmp, hasher: digest.NewHasher()}, nil
}

// Write implements io.Writer, hashing as it spools to the temp file.
func (w *Writer) Write(p []byte) (int, error) {
	n, err := w.tmp.Write(p)
	if n > 0 {
		w.hasher.Write(p[:n])
		w.n += uint64(n)
	}
	return n, err
}

// Size returns the number of bytes written so far.
func (w *Writer) Size() uint64 { return w.n }

// Abort discards the writer's temp file without finalizing a blob. It is
// safe to call after Finish; it is then a no-op.
func (w *Writer) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	name := w.tmp.Name()
	w.tmp.Close()
	return os.Remove(name)
}

// Finish computes the written blob's digest, renames its temp file into
// the store under that digest, and returns it. If a blob with the same
// digest already exists, the temp file is discarded instead of
// overwriting it: two writers racing to write identical content both
// succeed, and the store never has to rewrite a blob it already has.
func (w *Writer) Finish() (digest.Digest, error) {
	if w.done {
		return digest.Digest{}, errors.New("store: writer already finished")
	}
	w.done = true

	if err := w.tmp.Close(); err != nil {
		os.Remove(w.tmp.Name())
		return digest.Digest{}, fmt.Errorf("store: close temp file: %w", err)
	}

	d := w.hasher.Sum()
	target := w.store.path(d)

	if w.store.Has(d) {
		os.Remove(w.tmp.Name())
		return d, nil
	}
	if err := os.Rename(w.tmp.Name(), target); err != nil {
		os.Remove(w.tmp.Name())
		return digest.Digest{}, fmt.Errorf("store: rename into place: %w", err)
	}
	return d, nil
}

// Put writes buf as a single blob and returns its digest.
func (s *Store) Put(buf []byte) (digest.Digest, error) {
	w, err := s.NewWriter()
	if err != nil {
		return digest.Digest{}, err
	}
	if _, err := w.Write(buf); err != nil {
		w.Abort()
		return digest.Digest{}, err
	}
	return w.Finish()
}

// Copy streams r into the store as a single blob and returns its digest.
func (s *Store) Copy(r io.Reader) (digest.Digest, error) {
	w, err := s.NewWriter()
	if err != nil {
		return digest.Digest{}, err
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Abort()
		return digest.Digest{}, err
	}
	return w.Finish()
}

// Blob is an open, memory-mapped view of one stored blob.
type Blob struct {
	f    *os.File
	data []byte
}

// Open memory-maps the blob named by d for reading.
func (s *Store) Open(d digest.Digest) (*Blob, error) {
	f, err := os.Open(s.path(d))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBlobNotFound(d), err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	data, err := mmapFile(f, info.Size())
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Blob{f: f, data: data}, nil
}

// Bytes returns the blob's full contents. The returned slice is only
// valid until Close.
func (b *Blob) Bytes() []byte { return b.data }

// ReadRange returns the len bytes starting at off. The returned slice is
// only valid until Close.
func (b *Blob) ReadRange(off, length uint64) ([]byte, error) {
	end := off + length
	if end < off || end > uint64(len(b.data)) {
		return nil, fmt.Errorf("store: range [%d,%d) out of bounds for blob of length %d", off, end, len(b.data))
	}
	return b.data[off:end], nil
}

// Close unmaps the blob and closes its file handle.
func (b *Blob) Close() error {
	err := munmapFile(b.data)
	if cerr := b.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// ErrBlobNotFound wraps a missing-blob digest for use with %w.
func ErrBlobNotFound(d digest.Digest) error {
	return fmt.Errorf("blob %s not found in store", d)
}
