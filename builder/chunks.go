package builder

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/puzzlefs/puzzlefs/chunker"
	"github.com/puzzlefs/puzzlefs/format"
)

// multiFileReader concatenates the content of a sequence of files into one
// byte stream, opening each in turn and never holding more than one file
// descriptor open at a time. It is what feeds the chunker: a single content
// chunk's boundary does not respect file boundaries, so file content is
// chunked as one continuous stream and later sliced back apart.
type multiFileReader struct {
	files []*fileBuilder
	idx   int
	cur   *os.File
}

func newMultiFileReader(files []*fileBuilder) *multiFileReader {
	return &multiFileReader{files: files}
}

func (m *multiFileReader) Read(p []byte) (int, error) {
	for {
		if m.cur == nil {
			if m.idx >= len(m.files) {
				return 0, io.EOF
			}
			f, err := os.Open(m.files[m.idx].hostPath)
			if err != nil {
				return 0, fmt.Errorf("builder: open %s: %w", m.files[m.idx].hostPath, err)
			}
			m.cur = f
		}

		n, err := m.cur.Read(p)
		if n > 0 {
			return n, nil
		}
		if err == nil {
			continue
		}
		if !errors.Is(err, io.EOF) {
			return 0, err
		}
		m.cur.Close()
		m.cur = nil
		m.idx++
	}
}

func (m *multiFileReader) Close() error {
	if m.cur != nil {
		err := m.cur.Close()
		m.cur = nil
		return err
	}
	return nil
}

// maybeCompress zstd-compresses data when enabled, returning the bytes that
// should actually be written to the blob store and whether they are
// compressed. A FileChunk's BlobRef.Offset always indexes into the
// decompressed bytes regardless: compression is applied once, atomically,
// to a whole chunk before that chunk's bytes are distributed across the
// files that share it.
func maybeCompress(enabled bool, data []byte) ([]byte, bool, error) {
	if !enabled {
		return data, false, nil
	}
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %s", format.ErrCompressionError, err)
	}
	if _, err := zw.Write(data); err != nil {
		zw.Close()
		return nil, false, fmt.Errorf("%w: %s", format.ErrCompressionError, err)
	}
	if err := zw.Close(); err != nil {
		return nil, false, fmt.Errorf("%w: %s", format.ErrCompressionError, err)
	}
	return buf.Bytes(), true, nil
}

// distributeChunks streams every queued file's content through the content
// defined chunker exactly once, writes each resulting chunk to the blob
// store, and slices each chunk's bytes across the (possibly several) files
// it spans, appending the resulting FileChunk to each file's chunk list in
// order. This is what lets one chunk of identical content, shared by
// several small files, be stored and hashed only once.
func distributeChunks(s *buildState) error {
	files := s.files
	if len(files) == 0 {
		return nil
	}

	fileIdx := 0
	var fileOffset uint64
	skipEmpty := func() {
		for fileIdx < len(files) && files[fileIdx].size == 0 {
			fileIdx++
			fileOffset = 0
		}
	}
	skipEmpty()

	mr := newMultiFileReader(files)
	defer mr.Close()
	ck := chunker.New(mr)

	for {
		chunk, err := ck.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("builder: chunking file data: %w", err)
		}

		blobBytes, compressed, err := maybeCompress(s.cfg.compress, chunk)
		if err != nil {
			return err
		}
		d, err := s.st.Put(blobBytes)
		if err != nil {
			return fmt.Errorf("builder: writing chunk blob: %w", err)
		}

		pos := uint64(0)
		for pos < uint64(len(chunk)) {
			if fileIdx >= len(files) {
				return fmt.Errorf("builder: chunk data remains with no file left to assign it to")
			}
			f := files[fileIdx]
			room := f.size - fileOffset
			avail := uint64(len(chunk)) - pos
			n := room
			if avail < n {
				n = avail
			}
			f.chunks = append(f.chunks, format.FileChunk{
				Blob: format.BlobRef{Digest: d, Offset: pos, Compressed: compressed},
				Len:  n,
			})
			pos += n
			fileOffset += n
			if fileOffset == f.size {
				fileIdx++
				fileOffset = 0
				skipEmpty()
			}
		}
	}

	if fileIdx != len(files) {
		return fmt.Errorf("builder: %d queued files were never filled by chunk data", len(files)-fileIdx)
	}
	return nil
}
