// Package format implements the on-disk PuzzleFS schema: the manifest, the
// per-layer inode vector, directory listings, file chunk lists, and the
// fixed-width Inode/BlobRef records that make the inode vector
// binary-searchable. Unions carry an explicit tag and every list carries an
// explicit length. Integers in the fixed-stride Inode records are
// little-endian; everything CBOR-encoded (the inode-vector headers, the
// payloads below, and the manifest) uses CBOR's big-endian integers.
//
// Two encodings coexist deliberately. Inode is hand-encoded to a fixed byte
// stride (see wire.go) so a layer's inode vector supports O(log n) lookup
// by ino without an auxiliary index. Everything an Inode points to
// (directory listings, file chunk lists, extended attributes) is normal
// variable-length data, encoded with github.com/fxamacker/cbor/v2 in
// canonical mode so two builds of the same tree produce byte-identical
// output.
package format

import (
	"bytes"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/puzzlefs/puzzlefs/digest"
)

// CurrentManifestVersion is the only manifest_version this implementation
// will build or mount.
const CurrentManifestVersion uint64 = 3

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	// Canonical encoding: fixed map key order, definite-length
	// containers, shortest-form integers. This is what makes two builds
	// of the same tree byte-identical.
	encMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{
		// Reject indefinite-length input defensively; PuzzleFS only ever
		// writes definite-length values.
		IndefLength: cbor.IndefLengthForbidden,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// marshalOne encodes v as a single canonical CBOR value.
func marshalOne(v interface{}) ([]byte, error) {
	buf, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding %T: %v", ErrInvalidFormat, v, err)
	}
	return buf, nil
}

// unmarshalOneAt decodes exactly one CBOR value starting at buf[offset:],
// ignoring any trailing bytes that follow it in buf. This mirrors reading a
// single value from a stream positioned mid-blob: several independent CBOR
// values are concatenated back to back in one metadata blob, addressed by
// byte offset.
func unmarshalOneAt(buf []byte, offset uint64, v interface{}) error {
	if offset > uint64(len(buf)) {
		return fmt.Errorf("%w: offset %d beyond blob of length %d", ErrInvalidFormat, offset, len(buf))
	}
	dec := decMode.NewDecoder(bytes.NewReader(buf[offset:]))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: decoding %T at offset %d: %v", ErrInvalidFormat, v, offset, err)
	}
	return nil
}

// BlobRef points at length-bearing content inside a specific, independently
// addressed blob: Digest names the blob, Offset is the byte offset of the
// referenced content within it, and Compressed reports whether the blob
// holds a compressed representation. BlobRef is only used to reference
// separately stored blobs (file-data chunks, other metadata layers);
// pointers within the current metadata blob use LocalOffset instead.
type BlobRef struct {
	_         struct{} `cbor:",toarray"`
	Digest    digest.Digest
	Offset    uint64
	Compressed bool
}

// LocalOffset is a byte offset into the metadata blob currently being read
// or written, used by Inode to point at its DirList, FileChunkList, or
// InodeAdditional payload without another blob-store lookup.
type LocalOffset uint64

// Xattr is one extended attribute key/value pair.
type Xattr struct {
	_     struct{} `cbor:",toarray"`
	Key   []byte
	Value []byte
}

// InodeAdditional carries the parts of an inode that do not fit in the fixed
// Inode record: extended attributes and, for symlinks, the raw target bytes.
type InodeAdditional struct {
	_             struct{} `cbor:",toarray"`
	Xattrs        []Xattr
	SymlinkTarget []byte // nil unless the inode is a symlink
}

// DirEnt is one directory entry: a name (raw bytes, not required to be
// UTF-8) and the inode number it resolves to.
type DirEnt struct {
	_    struct{} `cbor:",toarray"`
	Ino  uint64
	Name []byte
}

// DirList is a directory's own entry list plus the look-below flag
// controlling whether lower metadata layers contribute additional entries.
type DirList struct {
	_         struct{} `cbor:",toarray"`
	LookBelow bool
	Entries   []DirEnt
}

// FileChunk is one slice of a regular file's content: Len bytes read from
// Blob starting at Blob.Offset.
type FileChunk struct {
	_    struct{} `cbor:",toarray"`
	Blob BlobRef
	Len  uint64
}

// FileChunkList is the ordered list of chunks making up a regular file's
// content; concatenating Chunks in order reproduces the file bytes.
type FileChunkList struct {
	_      struct{} `cbor:",toarray"`
	Chunks []FileChunk
}

// EncodeDirList returns the canonical CBOR encoding of d.
func EncodeDirList(d DirList) ([]byte, error) { return marshalOne(d) }

// EncodeFileChunkList returns the canonical CBOR encoding of f.
func EncodeFileChunkList(f FileChunkList) ([]byte, error) { return marshalOne(f) }

// EncodeInodeAdditional returns the canonical CBOR encoding of a.
func EncodeInodeAdditional(a InodeAdditional) ([]byte, error) { return marshalOne(a) }
