package chunker

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func chunkAll(t *testing.T, data []byte) [][]byte {
	t.Helper()
	c := New(bytes.NewReader(data))
	var chunks [][]byte
	for {
		chunk, err := c.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		chunks = append(chunks, chunk)
	}
	return chunks
}

func TestChunkerEmptyInput(t *testing.T) {
	chunks := chunkAll(t, nil)
	require.Empty(t, chunks)
}

func TestChunkerSmallInput(t *testing.T) {
	input := make([]byte, 1024)
	for i := range input {
		input[i] = byte(i)
	}

	chunks := chunkAll(t, input)
	require.Len(t, chunks, 1)
	require.Equal(t, input, chunks[0])
}

func TestChunkerAtMinChunkSize(t *testing.T) {
	// Boundary detection cannot fire before MinChunkSize, so input of
	// exactly that size must come back as a single chunk.
	input := make([]byte, MinChunkSize)
	for i := range input {
		input[i] = byte(i)
	}

	chunks := chunkAll(t, input)
	require.Len(t, chunks, 1)
}

func TestChunkerRespectsMaxChunkSize(t *testing.T) {
	// All-zero input never triggers a GearHash boundary: the hash settles
	// at 2^64 - gearTable[0], whose high bits are all set, so every chunk
	// should be forced at exactly MaxChunkSize except a possible short
	// final one.
	input := make([]byte, MaxChunkSize*3)

	chunks := chunkAll(t, input)
	require.NotEmpty(t, chunks)
	for i, chunk := range chunks {
		require.LessOrEqualf(t, len(chunk), MaxChunkSize, "chunk %d exceeds MaxChunkSize", i)
		if i < len(chunks)-1 {
			require.Equal(t, MaxChunkSize, len(chunk))
		}
	}
}

func TestChunkerReassembly(t *testing.T) {
	input := make([]byte, 5*MaxChunkSize+12345)
	for i := range input {
		input[i] = byte(i * 37)
	}

	chunks := chunkAll(t, input)
	require.NotEmpty(t, chunks)

	var reassembled []byte
	for _, c := range chunks {
		reassembled = append(reassembled, c...)
	}
	require.Equal(t, input, reassembled)
}

func TestChunkerIsContentDefined(t *testing.T) {
	// Inserting bytes near the start of the input should leave later
	// chunk boundaries unaffected, unlike fixed-size chunking.
	// The input must not be periodic: a short repeating pattern never
	// triggers a boundary, so every chunk would be forced at MaxChunkSize.
	base := make([]byte, 4*MaxChunkSize)
	x := uint64(0x9E3779B97F4A7C15)
	for i := range base {
		x ^= x << 13
		x ^= x >> 7
		x ^= x << 17
		base[i] = byte(x >> 56)
	}

	edited := make([]byte, 0, len(base)+37)
	edited = append(edited, base[:1000]...)
	edited = append(edited, make([]byte, 37)...)
	edited = append(edited, base[1000:]...)

	baseChunks := chunkAll(t, base)
	editedChunks := chunkAll(t, edited)

	require.NotEmpty(t, baseChunks)
	require.NotEmpty(t, editedChunks)

	tailBase := baseChunks[len(baseChunks)-1]
	tailEdited := editedChunks[len(editedChunks)-1]
	require.Equal(t, tailBase, tailEdited)
}

func TestChunkerPropagatesReaderError(t *testing.T) {
	c := New(iotest{err: io.ErrUnexpectedEOF})
	_, err := c.Next()
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

type iotest struct {
	err error
}

func (r iotest) Read([]byte) (int, error) { return 0, r.err }
