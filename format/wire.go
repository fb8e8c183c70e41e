package format

import (
	"encoding/binary"
	"fmt"
)

// ModeKind is the InodeMode union discriminant.
type ModeKind uint8

// Inode mode kinds. Values are part of the wire format; do not renumber.
const (
	ModeUnknown ModeKind = iota
	ModeFifo
	ModeChr
	ModeDir
	ModeBlk
	ModeFile
	ModeSymlink
	ModeSock
	ModeWhiteout
)

func (k ModeKind) String() string {
	switch k {
	case ModeUnknown:
		return "unknown"
	case ModeFifo:
		return "fifo"
	case ModeChr:
		return "chr"
	case ModeDir:
		return "dir"
	case ModeBlk:
		return "blk"
	case ModeFile:
		return "file"
	case ModeSymlink:
		return "symlink"
	case ModeSock:
		return "sock"
	case ModeWhiteout:
		return "whiteout"
	default:
		return fmt.Sprintf("mode(%d)", uint8(k))
	}
}

// InodeMode is the tagged union carried by every Inode. Only the fields
// relevant to Kind are meaningful:
//
//   - Chr, Blk:  Major, Minor
//   - Dir:       Offset addresses a DirList payload in the metadata blob
//   - File:      Offset addresses a FileChunkList payload in the metadata blob
//   - all others carry no payload
type InodeMode struct {
	Kind   ModeKind
	Major  uint64
	Minor  uint64
	Offset LocalOffset
}

// DefaultFilePermissions and DefaultDirectoryPermissions are used when
// building synthetic inodes (e.g. whiteouts) that have no source file to
// copy permissions from.
const (
	DefaultFilePermissions      = 0o644
	DefaultDirectoryPermissions = 0o755
)

// Ino is a PuzzleFS inode number. Inode 1 is always the filesystem root of
// the top metadata layer.
type Ino = uint64

// Inode is one fixed-shape record in a metadata layer's inode vector.
type Inode struct {
	Ino         Ino
	Mode        InodeMode
	UID         uint32
	GID         uint32
	Permissions uint16
	// Additional, if non-nil, is the local offset of an InodeAdditional
	// payload (extended attributes and/or symlink target) in the
	// metadata blob.
	Additional *LocalOffset
}

// NewWhiteout builds the inode recorded for a whiteout dirent: a
// placeholder inode whose only role is to be pointed at by a DirEnt tagged
// as masking a lower layer's entry of the same name.
func NewWhiteout(ino Ino) Inode {
	return Inode{
		Ino:         ino,
		Mode:        InodeMode{Kind: ModeWhiteout},
		Permissions: DefaultFilePermissions,
	}
}

// inodeFixedSize is the number of bytes in the hand-encoded, fixed-stride
// portion of one Inode record: ino(8) + kind(1) + modeA(8) + modeB(8) +
// uid(4) + gid(4) + permissions(2) + has_additional(1) + additional(8).
const inodeFixedSize = 8 + 1 + 8 + 8 + 4 + 4 + 2 + 1 + 8

// InodeWireSize is the total number of bytes one Inode occupies in a
// metadata blob's inode vector, including its CBOR byte-string framing.
// Because it is constant, the inode at index i in a vector of n inodes
// begins at byte offset headerSize(n) + i*InodeWireSize.
var InodeWireSize = headerSize(inodeFixedSize) + inodeFixedSize

func encodeInodeFixed(i Inode) []byte {
	buf := make([]byte, inodeFixedSize)
	binary.LittleEndian.PutUint64(buf[0:8], i.Ino)
	buf[8] = byte(i.Mode.Kind)
	modeA := i.Mode.Major
	modeB := i.Mode.Minor
	if i.Mode.Kind == ModeDir || i.Mode.Kind == ModeFile {
		modeA = uint64(i.Mode.Offset)
		modeB = 0
	}
	binary.LittleEndian.PutUint64(buf[9:17], modeA)
	binary.LittleEndian.PutUint64(buf[17:25], modeB)
	binary.LittleEndian.PutUint32(buf[25:29], i.UID)
	binary.LittleEndian.PutUint32(buf[29:33], i.GID)
	binary.LittleEndian.PutUint16(buf[33:35], i.Permissions)
	if i.Additional != nil {
		buf[35] = 1
		binary.LittleEndian.PutUint64(buf[36:44], uint64(*i.Additional))
	}
	return buf
}

func decodeInodeFixed(buf []byte) (Inode, error) {
	if len(buf) != inodeFixedSize {
		return Inode{}, fmt.Errorf("%w: inode record is %d bytes, want %d", ErrInvalidFormat, len(buf), inodeFixedSize)
	}
	kind := ModeKind(buf[8])
	if kind > ModeWhiteout {
		return Inode{}, fmt.Errorf("%w: bad inode mode kind %d", ErrInvalidFormat, buf[8])
	}
	modeA := binary.LittleEndian.Uint64(buf[9:17])
	modeB := binary.LittleEndian.Uint64(buf[17:25])
	mode := InodeMode{Kind: kind}
	switch kind {
	case ModeChr, ModeBlk:
		mode.Major, mode.Minor = modeA, modeB
	case ModeDir, ModeFile:
		mode.Offset = LocalOffset(modeA)
	}

	i := Inode{
		Ino:         binary.LittleEndian.Uint64(buf[0:8]),
		Mode:        mode,
		UID:         binary.LittleEndian.Uint32(buf[25:29]),
		GID:         binary.LittleEndian.Uint32(buf[29:33]),
		Permissions: binary.LittleEndian.Uint16(buf[33:35]),
	}
	if buf[35] != 0 {
		off := LocalOffset(binary.LittleEndian.Uint64(buf[36:44]))
		i.Additional = &off
	}
	return i, nil
}
