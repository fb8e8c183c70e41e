package format

import (
	"bytes"
	"fmt"
	"io"
)

// MetadataBlob is a read-only view over one decoded metadata layer: the
// inode vector at the start of the blob, plus whatever DirList,
// FileChunkList, and InodeAdditional payloads were appended after it.
// Methods take a byte offset and return exactly one decoded value, mirroring
// how the builder addressed them while writing.
type MetadataBlob struct {
	buf []byte
	// count and headerLen cache the parsed inode-vector header so
	// FindInode can compute record i's offset without rereading it.
	count     uint64
	headerLen int
}

// OpenMetadataBlob parses the inode-vector header at the start of buf. The
// blob itself is not otherwise validated; callers detect corruption lazily,
// one accessed record at a time.
func OpenMetadataBlob(buf []byte) (*MetadataBlob, error) {
	r := bytes.NewReader(buf)
	n, err := readArrayHeader(r)
	if err != nil {
		return nil, err
	}
	return &MetadataBlob{buf: buf, count: n, headerLen: headerSize(n)}, nil
}

// Len returns the number of inodes in this layer's vector.
func (m *MetadataBlob) Len() int { return int(m.count) }

func (m *MetadataBlob) recordAt(i uint64) (Inode, error) {
	start := m.headerLen + int(i)*InodeWireSize
	end := start + InodeWireSize
	if end > len(m.buf) {
		return Inode{}, fmt.Errorf("%w: inode record %d out of range", ErrInvalidFormat, i)
	}
	r := bytes.NewReader(m.buf[start:end])
	n, err := readBytesHeader(r)
	if err != nil {
		return Inode{}, err
	}
	if n != inodeFixedSize {
		return Inode{}, fmt.Errorf("%w: inode record has length %d, want %d", ErrInvalidFormat, n, inodeFixedSize)
	}
	rest := m.buf[start+headerSize(n) : end]
	return decodeInodeFixed(rest)
}

// FindInode performs a binary search for ino over the inode vector,
// exploiting its fixed record stride and ino-ascending sort order (format
// invariant §3.2). It returns (Inode{}, false, nil) if ino is absent.
func (m *MetadataBlob) FindInode(ino Ino) (Inode, bool, error) {
	left, right := uint64(0), m.count
	for left < right {
		mid := left + (right-left)/2
		rec, err := m.recordAt(mid)
		if err != nil {
			return Inode{}, false, err
		}
		switch {
		case rec.Ino == ino:
			return rec, true, nil
		case rec.Ino < ino:
			left = mid + 1
		default:
			right = mid
		}
	}
	return Inode{}, false, nil
}

// AllInodes decodes and returns every inode in ino order.
func (m *MetadataBlob) AllInodes() ([]Inode, error) {
	out := make([]Inode, m.count)
	for i := uint64(0); i < m.count; i++ {
		rec, err := m.recordAt(i)
		if err != nil {
			return nil, err
		}
		out[i] = rec
	}
	return out, nil
}

// MaxIno returns the largest ino in this layer, or 0 if the layer is empty.
// Invariant §3.2 (strictly increasing ino) means this is the last record.
func (m *MetadataBlob) MaxIno() (Ino, error) {
	if m.count == 0 {
		return 0, nil
	}
	rec, err := m.recordAt(m.count - 1)
	if err != nil {
		return 0, err
	}
	return rec.Ino, nil
}

// ReadDirList decodes the DirList payload at the given local offset.
func (m *MetadataBlob) ReadDirList(off LocalOffset) (DirList, error) {
	var d DirList
	err := unmarshalOneAt(m.buf, uint64(off), &d)
	return d, err
}

// ReadFileChunks decodes the FileChunkList payload at the given local
// offset and returns its chunks.
func (m *MetadataBlob) ReadFileChunks(off LocalOffset) ([]FileChunk, error) {
	var f FileChunkList
	if err := unmarshalOneAt(m.buf, uint64(off), &f); err != nil {
		return nil, err
	}
	return f.Chunks, nil
}

// ReadInodeAdditional decodes the InodeAdditional payload at the given
// local offset.
func (m *MetadataBlob) ReadInodeAdditional(off LocalOffset) (InodeAdditional, error) {
	var a InodeAdditional
	err := unmarshalOneAt(m.buf, uint64(off), &a)
	return a, err
}

// MetadataWriter assembles a metadata blob: a fixed-stride inode vector
// followed by the variable-length payloads (DirLists, FileChunkLists,
// InodeAdditionals) those inodes point to by local offset.
//
// Usage: append payloads first via AppendDirList/AppendFileChunkList/
// AppendInodeAdditional (each returns the LocalOffset to store in the
// corresponding Inode field), add the finished inodes in ino order via
// AddInode, then call Finish.
type MetadataWriter struct {
	payloads bytes.Buffer
	inodes   []Inode
}

// NewMetadataWriter returns an empty MetadataWriter.
func NewMetadataWriter() *MetadataWriter {
	return &MetadataWriter{}
}

func (w *MetadataWriter) appendPayload(encoded []byte, baseOffset int) LocalOffset {
	off := LocalOffset(baseOffset + w.payloads.Len())
	w.payloads.Write(encoded)
	return off
}

// AddInode appends one finished inode. Callers must add inodes in
// ascending ino order (format invariant §3.2); Finish does not re-sort.
func (w *MetadataWriter) AddInode(i Inode) {
	w.inodes = append(w.inodes, i)
}

// baseOffset is the byte offset where payloads begin: the header plus the
// fixed-stride inode records that will precede them once Finish assembles
// the blob. It only depends on len(w.inodes), which is why callers append
// payloads (learning their offsets) before or interleaved with AddInode, as
// long as they know the final inode count up front.
func (w *MetadataWriter) baseOffset(inodeCount int) int {
	return headerSize(uint64(inodeCount)) + inodeCount*InodeWireSize
}

// AppendDirList encodes d and appends it to the payload area, returning the
// offset to store in the owning Inode's Mode.Offset. finalInodeCount must be
// the total number of inodes that will be in the finished vector.
func (w *MetadataWriter) AppendDirList(d DirList, finalInodeCount int) (LocalOffset, error) {
	buf, err := EncodeDirList(d)
	if err != nil {
		return 0, err
	}
	return w.appendPayload(buf, w.baseOffset(finalInodeCount)), nil
}

// AppendFileChunkList encodes f and appends it to the payload area.
func (w *MetadataWriter) AppendFileChunkList(f FileChunkList, finalInodeCount int) (LocalOffset, error) {
	buf, err := EncodeFileChunkList(f)
	if err != nil {
		return 0, err
	}
	return w.appendPayload(buf, w.baseOffset(finalInodeCount)), nil
}

// AppendInodeAdditional encodes a and appends it to the payload area.
func (w *MetadataWriter) AppendInodeAdditional(a InodeAdditional, finalInodeCount int) (LocalOffset, error) {
	buf, err := EncodeInodeAdditional(a)
	if err != nil {
		return 0, err
	}
	return w.appendPayload(buf, w.baseOffset(finalInodeCount)), nil
}

// Finish writes the finished metadata blob to w: the inode-vector header,
// each inode's fixed-stride record in the order added, then the payload
// area. Inodes must already be in ino-ascending order.
func (w *MetadataWriter) Finish(dst io.Writer) error {
	if err := writeArrayHeader(dst, uint64(len(w.inodes))); err != nil {
		return err
	}
	for idx, inode := range w.inodes {
		if idx > 0 && inode.Ino <= w.inodes[idx-1].Ino {
			return fmt.Errorf("%w: inode vector not strictly increasing at index %d", ErrInvalidInode, idx)
		}
		fixed := encodeInodeFixed(inode)
		if err := writeBytesHeader(dst, uint64(len(fixed))); err != nil {
			return err
		}
		if _, err := dst.Write(fixed); err != nil {
			return err
		}
	}
	_, err := dst.Write(w.payloads.Bytes())
	return err
}
