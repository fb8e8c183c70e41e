package format

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/puzzlefs/puzzlefs/digest"
)

func buildTestLayer(t *testing.T) []byte {
	t.Helper()
	w := NewMetadataWriter()

	root := Inode{Ino: 1, Mode: InodeMode{Kind: ModeDir}, Permissions: DefaultDirectoryPermissions}
	fileInode := Inode{Ino: 2, Mode: InodeMode{Kind: ModeFile}, Permissions: DefaultFilePermissions}
	symInode := Inode{Ino: 3, Mode: InodeMode{Kind: ModeSymlink}, Permissions: 0o777}

	const finalCount = 3
	dirOff, err := w.AppendDirList(DirList{
		Entries: []DirEnt{
			{Ino: 2, Name: []byte("hello.txt")},
			{Ino: 3, Name: []byte("link")},
		},
	}, finalCount)
	require.NoError(t, err)
	root.Mode.Offset = dirOff

	chunkOff, err := w.AppendFileChunkList(FileChunkList{
		Chunks: []FileChunk{
			{Blob: BlobRef{Digest: digest.Of([]byte("hello\n")), Offset: 0}, Len: 6},
		},
	}, finalCount)
	require.NoError(t, err)
	fileInode.Mode.Offset = chunkOff

	symOff, err := w.AppendInodeAdditional(InodeAdditional{SymlinkTarget: []byte("hello.txt")}, finalCount)
	require.NoError(t, err)
	symInode.Additional = &symOff

	w.AddInode(root)
	w.AddInode(fileInode)
	w.AddInode(symInode)

	var buf bytes.Buffer
	require.NoError(t, w.Finish(&buf))
	return buf.Bytes()
}

func TestMetadataBlobRoundTrip(t *testing.T) {
	buf := buildTestLayer(t)
	m, err := OpenMetadataBlob(buf)
	require.NoError(t, err)
	require.Equal(t, 3, m.Len())

	root, ok, err := m.FindInode(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, ModeDir, root.Mode.Kind)

	dl, err := m.ReadDirList(root.Mode.Offset)
	require.NoError(t, err)
	require.Len(t, dl.Entries, 2)
	require.Equal(t, "hello.txt", string(dl.Entries[0].Name))

	file, ok, err := m.FindInode(2)
	require.NoError(t, err)
	require.True(t, ok)
	chunks, err := m.ReadFileChunks(file.Mode.Offset)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	require.Equal(t, uint64(6), chunks[0].Len)

	sym, ok, err := m.FindInode(3)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, sym.Additional)
	add, err := m.ReadInodeAdditional(*sym.Additional)
	require.NoError(t, err)
	require.Equal(t, "hello.txt", string(add.SymlinkTarget))

	_, ok, err = m.FindInode(99)
	require.NoError(t, err)
	require.False(t, ok)

	max, err := m.MaxIno()
	require.NoError(t, err)
	require.Equal(t, Ino(3), max)

	all, err := m.AllInodes()
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestMetadataWriterRejectsNonIncreasingIno(t *testing.T) {
	w := NewMetadataWriter()
	w.AddInode(Inode{Ino: 2, Mode: InodeMode{Kind: ModeDir}})
	w.AddInode(Inode{Ino: 1, Mode: InodeMode{Kind: ModeDir}})
	var buf bytes.Buffer
	err := w.Finish(&buf)
	require.ErrorIs(t, err, ErrInvalidInode)
}
