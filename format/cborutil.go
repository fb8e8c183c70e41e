package format

import (
	"encoding/binary"
	"fmt"
	"io"
)

// This file implements the minimal raw CBOR header framing PuzzleFS relies on
// to make the inode vector binary-searchable: the vector is a CBOR array
// whose header gives the element count, immediately followed by N
// fixed-stride CBOR byte strings, each holding one hand-encoded Inode
// record. Because every record has the same length, record i begins at a
// byte offset computable from i alone, without decoding records 0..i-1
// first. This mirrors the header arithmetic of the original PuzzleFS wire
// format (major type 4 for the array, major type 2 for each byte string;
// both use the same additional-info length encoding).

const (
	cborMajorArray = 0x80
	cborMajorBytes = 0x40
)

// headerSize returns the number of bytes a CBOR major-type header occupies
// for an item count/length of n, for either an array or byte-string header
// (they share the same additional-info encoding).
func headerSize(n uint64) int {
	switch {
	case n <= 23:
		return 1
	case n <= 0xff:
		return 2
	case n <= 0xffff:
		return 3
	case n <= 0xffffffff:
		return 5
	default:
		return 9
	}
}

func writeHeader(w io.Writer, major byte, n uint64) error {
	switch {
	case n <= 23:
		_, err := w.Write([]byte{major | byte(n)})
		return err
	case n <= 0xff:
		_, err := w.Write([]byte{major | 24, byte(n)})
		return err
	case n <= 0xffff:
		buf := make([]byte, 3)
		buf[0] = major | 25
		binary.BigEndian.PutUint16(buf[1:], uint16(n))
		_, err := w.Write(buf)
		return err
	case n <= 0xffffffff:
		buf := make([]byte, 5)
		buf[0] = major | 26
		binary.BigEndian.PutUint32(buf[1:], uint32(n))
		_, err := w.Write(buf)
		return err
	default:
		buf := make([]byte, 9)
		buf[0] = major | 27
		binary.BigEndian.PutUint64(buf[1:], n)
		_, err := w.Write(buf)
		return err
	}
}

func writeArrayHeader(w io.Writer, n uint64) error { return writeHeader(w, cborMajorArray, n) }
func writeBytesHeader(w io.Writer, n uint64) error { return writeHeader(w, cborMajorBytes, n) }

// readHeader reads a CBOR major-type header and returns its embedded count,
// verifying the top 3 bits match wantMajor. It returns ErrInvalidFormat
// rather than panicking on any malformed input.
func readHeader(r io.Reader, wantMajor byte) (uint64, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("%w: reading cbor header: %v", ErrInvalidFormat, err)
	}
	if b[0]&0xe0 != wantMajor {
		return 0, fmt.Errorf("%w: unexpected cbor major type %#x", ErrInvalidFormat, b[0])
	}
	info := b[0] & 0x1f
	switch {
	case info <= 23:
		return uint64(info), nil
	case info == 24:
		var v [1]byte
		if _, err := io.ReadFull(r, v[:]); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
		}
		return uint64(v[0]), nil
	case info == 25:
		var v [2]byte
		if _, err := io.ReadFull(r, v[:]); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
		}
		return uint64(binary.BigEndian.Uint16(v[:])), nil
	case info == 26:
		var v [4]byte
		if _, err := io.ReadFull(r, v[:]); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
		}
		return uint64(binary.BigEndian.Uint32(v[:])), nil
	case info == 27:
		var v [8]byte
		if _, err := io.ReadFull(r, v[:]); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
		}
		return binary.BigEndian.Uint64(v[:]), nil
	default:
		return 0, fmt.Errorf("%w: unsupported cbor length encoding", ErrInvalidFormat)
	}
}

func readArrayHeader(r io.Reader) (uint64, error) { return readHeader(r, cborMajorArray) }
func readBytesHeader(r io.Reader) (uint64, error) { return readHeader(r, cborMajorBytes) }
