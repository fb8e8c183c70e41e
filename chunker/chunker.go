// Package chunker implements content-defined chunking over a byte stream
// using a GearHash rolling hash, so that inserting or removing bytes
// anywhere in the stream only perturbs the chunks adjacent to the edit.
package chunker

import (
	"errors"
	"io"
)

// Chunking parameters. These are wire-format constants: the manifest and
// metadata written by one builder must be readable by any other, so
// changing them changes what chunk boundaries a fresh build produces.
const (
	// MinChunkSize is the fewest bytes a chunk may contain. No boundary is
	// considered before this many bytes have accumulated, which keeps
	// repetitive input from producing pathologically small chunks.
	MinChunkSize = 16 * 1024

	// AvgChunkSize is the target mean chunk size the boundary mask is
	// calibrated for. It is not itself used in the boundary test; it
	// documents what gearBoundaryMask was chosen to produce.
	AvgChunkSize = 64 * 1024

	// MaxChunkSize is the most bytes a chunk may contain; a boundary is
	// forced here regardless of hash state, bounding the worst case for
	// any input pattern (e.g. an already-chunk-sized run of zeroes).
	MaxChunkSize = 256 * 1024
)

// gearBoundaryMask is the GearHash boundary condition: a chunk boundary is
// declared when (hash & gearBoundaryMask) == 0. Sixteen one-bits in the
// high positions give a boundary probability of 1/65536 per byte examined,
// i.e. an expected chunk size of ~64KiB (AvgChunkSize).
const gearBoundaryMask uint64 = 0xFFFF000000000000

// gearSkipBytes is how many bytes of a new chunk are skipped before
// boundary detection begins. No boundary can occur before MinChunkSize,
// and GearHash's effective window is 64 bytes, so the skipped bytes could
// not have influenced a boundary decision at MinChunkSize anyway.
const gearSkipBytes = MinChunkSize - 64 - 1

// Chunker splits a byte stream into content-defined chunks. It buffers at
// most MaxChunkSize bytes of input at a time regardless of stream length,
// so it is suitable for chunking arbitrarily large files or the
// concatenated byte stream a builder assembles from many files.
type Chunker struct {
	r   io.Reader
	buf []byte
	eof bool
}

// New returns a Chunker reading from r.
func New(r io.Reader) *Chunker {
	return &Chunker{r: r, buf: make([]byte, 0, MaxChunkSize)}
}

// Next returns the next chunk's bytes, or io.EOF once the stream is
// exhausted. The returned slice is only valid until the next call to Next;
// callers that retain chunk data past that point must copy it.
func (c *Chunker) Next() ([]byte, error) {
	if err := c.fill(); err != nil {
		return nil, err
	}
	if len(c.buf) == 0 {
		return nil, io.EOF
	}

	boundary := findBoundary(c.buf)
	chunk := make([]byte, boundary)
	copy(chunk, c.buf[:boundary])

	remaining := copy(c.buf, c.buf[boundary:])
	c.buf = c.buf[:remaining]
	return chunk, nil
}

// fill tops up c.buf to MaxChunkSize bytes, or as many as remain before
// the underlying reader is exhausted.
func (c *Chunker) fill() error {
	for len(c.buf) < cap(c.buf) && !c.eof {
		n, err := c.r.Read(c.buf[len(c.buf):cap(c.buf)])
		if n > 0 {
			c.buf = c.buf[:len(c.buf)+n]
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				c.eof = true
				return nil
			}
			return err
		}
	}
	return nil
}

// findBoundary returns the offset of the first chunk boundary in data,
// which must be no longer than MaxChunkSize. If data represents the tail
// of the stream (shorter than MaxChunkSize because the reader is
// exhausted) and no boundary triggers before the end, the whole slice is
// returned as the final chunk; if data is a full MaxChunkSize buffer with
// no triggered boundary, the boundary is forced at MaxChunkSize. Both
// cases fall out of the same loop bound, len(data).
func findBoundary(data []byte) int {
	length := len(data)
	if length <= gearSkipBytes {
		return length
	}

	var hash uint64
	position := gearSkipBytes

	for position < length {
		hash = (hash << 1) + gearTable[data[position]]
		position++

		if position >= MinChunkSize && (hash&gearBoundaryMask) == 0 {
			return position
		}
	}

	return length
}
