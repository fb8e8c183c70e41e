package reader

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/puzzlefs/puzzlefs/digest"
	"github.com/puzzlefs/puzzlefs/format"
	"github.com/puzzlefs/puzzlefs/store"
)

// Image is an open, read-only PuzzleFS image: a manifest and the stack of
// metadata layers it names, backed by a content-addressed blob store.
// Layers[0] is the topmost (most recently written) layer.
type Image struct {
	st       *store.Store
	manifest format.Manifest
	layers   []*format.MetadataBlob

	mu     sync.Mutex
	blobs  map[digest.Digest]*store.Blob
	decomp map[digest.Digest][]byte
}

// Open loads the manifest at manifestDigest from st and every metadata
// layer it references.
func Open(st *store.Store, manifestDigest digest.Digest) (*Image, error) {
	img := &Image{
		st:     st,
		blobs:  make(map[digest.Digest]*store.Blob),
		decomp: make(map[digest.Digest][]byte),
	}

	manifestBuf, err := img.rawBlob(manifestDigest)
	if err != nil {
		return nil, fmt.Errorf("reader: load manifest: %w", err)
	}
	m, err := format.DecodeManifest(manifestBuf)
	if err != nil {
		return nil, fmt.Errorf("reader: decode manifest: %w", err)
	}
	img.manifest = m

	for i, ref := range m.Metadatas {
		buf, err := img.resolveBlobRef(ref)
		if err != nil {
			return nil, fmt.Errorf("reader: load metadata layer %d: %w", i, err)
		}
		layer, err := format.OpenMetadataBlob(buf)
		if err != nil {
			return nil, fmt.Errorf("reader: parse metadata layer %d: %w", i, err)
		}
		img.layers = append(img.layers, layer)
	}

	return img, nil
}

// Manifest returns the image's decoded manifest.
func (img *Image) Manifest() format.Manifest { return img.manifest }

// LayerCount returns the number of stacked metadata layers.
func (img *Image) LayerCount() int { return len(img.layers) }

// MaxInoOverall returns the highest inode number used anywhere in the
// image, across every layer. A delta build starting from this image must
// allocate new inodes above this value to avoid colliding with an inode
// number still resolvable through a lower layer.
func (img *Image) MaxInoOverall() (format.Ino, error) {
	var highest format.Ino
	for i, layer := range img.layers {
		m, err := layer.MaxIno()
		if err != nil {
			return 0, fmt.Errorf("reader: max inode of layer %d: %w", i, err)
		}
		if m > highest {
			highest = m
		}
	}
	return highest, nil
}

// Close releases every blob handle the image opened.
func (img *Image) Close() error {
	img.mu.Lock()
	defer img.mu.Unlock()

	var first error
	for _, b := range img.blobs {
		if err := b.Close(); err != nil && first == nil {
			first = err
		}
	}
	img.blobs = nil
	return first
}

// rawBlob returns a blob's raw (possibly compressed) bytes, opening and
// caching the underlying store handle on first use.
func (img *Image) rawBlob(d digest.Digest) ([]byte, error) {
	img.mu.Lock()
	defer img.mu.Unlock()

	if b, ok := img.blobs[d]; ok {
		return b.Bytes(), nil
	}
	b, err := img.st.Open(d)
	if err != nil {
		return nil, err
	}
	img.blobs[d] = b
	return b.Bytes(), nil
}

// resolveBlobRef returns a blob reference's bytes, decompressing (and
// caching the decompressed form) if the reference is marked compressed.
// BlobRef.Offset for compressed refs indexes into the decompressed bytes:
// compression is applied once, atomically, to a whole chunk before it is
// sliced across the files that share it.
func (img *Image) resolveBlobRef(ref format.BlobRef) ([]byte, error) {
	raw, err := img.rawBlob(ref.Digest)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", format.ErrMissingBlob, err)
	}
	if !ref.Compressed {
		return raw, nil
	}

	img.mu.Lock()
	if cached, ok := img.decomp[ref.Digest]; ok {
		img.mu.Unlock()
		return cached, nil
	}
	img.mu.Unlock()

	zr, err := zstd.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", format.ErrCompressionError, err)
	}
	defer zr.Close()

	decoded, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", format.ErrCompressionError, err)
	}

	img.mu.Lock()
	img.decomp[ref.Digest] = decoded
	img.mu.Unlock()
	return decoded, nil
}
