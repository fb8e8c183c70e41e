package reader

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/puzzlefs/puzzlefs/digest"
	"github.com/puzzlefs/puzzlefs/format"
	"github.com/puzzlefs/puzzlefs/store"
)

// layerInode is a small builder helper mirroring format's own test helper,
// used here to assemble whole images (metadata layers + manifest) for
// reader-level tests.
type layerInode struct {
	ino  format.Ino
	mode format.InodeMode
	perm uint16
	add  *format.InodeAdditional
}

func buildLayer(t *testing.T, st *store.Store, inodes []layerInode, dirLists map[format.Ino]format.DirList, chunkLists map[format.Ino]format.FileChunkList) digest.Digest {
	t.Helper()
	w := format.NewMetadataWriter()
	finalCount := len(inodes)

	resolved := make([]format.Inode, len(inodes))
	for i, li := range inodes {
		resolved[i] = format.Inode{Ino: li.ino, Mode: li.mode, Permissions: li.perm}
	}
	for i, li := range inodes {
		if dl, ok := dirLists[li.ino]; ok {
			off, err := w.AppendDirList(dl, finalCount)
			require.NoError(t, err)
			resolved[i].Mode.Offset = off
		}
		if cl, ok := chunkLists[li.ino]; ok {
			off, err := w.AppendFileChunkList(cl, finalCount)
			require.NoError(t, err)
			resolved[i].Mode.Offset = off
		}
		if li.add != nil {
			off, err := w.AppendInodeAdditional(*li.add, finalCount)
			require.NoError(t, err)
			resolved[i].Additional = &off
		}
	}
	for _, inode := range resolved {
		w.AddInode(inode)
	}

	var buf []byte
	pw := &sliceWriter{buf: &buf}
	require.NoError(t, w.Finish(pw))

	d, err := st.Put(buf)
	require.NoError(t, err)
	return d
}

type sliceWriter struct{ buf *[]byte }

func (s *sliceWriter) Write(p []byte) (int, error) {
	*s.buf = append(*s.buf, p...)
	return len(p), nil
}

func buildManifest(t *testing.T, st *store.Store, layers ...digest.Digest) digest.Digest {
	t.Helper()
	refs := make([]format.BlobRef, len(layers))
	for i, d := range layers {
		refs[i] = format.BlobRef{Digest: d}
	}
	m := format.Manifest{Metadatas: refs, ManifestVersion: format.CurrentManifestVersion}
	buf, err := format.EncodeManifest(m)
	require.NoError(t, err)
	d, err := st.Put(buf)
	require.NoError(t, err)
	return d
}

func TestLookupAndReadFileAcrossChunks(t *testing.T) {
	st, err := store.Open(t.TempDir())
	require.NoError(t, err)

	d1, err := st.Put([]byte("hello "))
	require.NoError(t, err)
	d2, err := st.Put([]byte("world!!"))
	require.NoError(t, err)

	root := layerInode{ino: 1, mode: format.InodeMode{Kind: format.ModeDir}, perm: format.DefaultDirectoryPermissions}
	file := layerInode{ino: 2, mode: format.InodeMode{Kind: format.ModeFile}, perm: format.DefaultFilePermissions}

	dirLists := map[format.Ino]format.DirList{
		1: {Entries: []format.DirEnt{{Ino: 2, Name: []byte("greeting.txt")}}},
	}
	chunkLists := map[format.Ino]format.FileChunkList{
		2: {Chunks: []format.FileChunk{
			{Blob: format.BlobRef{Digest: d1}, Len: 6},
			{Blob: format.BlobRef{Digest: d2}, Len: 7},
		}},
	}

	layerDigest := buildLayer(t, st, []layerInode{root, file}, dirLists, chunkLists)
	manifestDigest := buildManifest(t, st, layerDigest)

	img, err := Open(st, manifestDigest)
	require.NoError(t, err)
	defer img.Close()

	inode, ino, err := img.Lookup("/greeting.txt")
	require.NoError(t, err)
	require.Equal(t, format.Ino(2), ino)
	require.Equal(t, format.ModeFile, inode.Mode.Kind)

	size, err := img.Size(ino)
	require.NoError(t, err)
	require.Equal(t, uint64(13), size)

	full := make([]byte, size)
	n, err := img.ReadAt(ino, full, 0)
	require.NoError(t, err)
	require.Equal(t, 13, n)
	require.Equal(t, "hello world!!", string(full))

	mid := make([]byte, 7)
	n, err = img.ReadAt(ino, mid, 3)
	require.NoError(t, err)
	require.Equal(t, 7, n)
	require.Equal(t, "lo worl", string(mid))

	past := make([]byte, 4)
	_, err = img.ReadAt(ino, past, 12)
	require.ErrorIs(t, err, io.EOF)
}

func TestDirectoryMergeWithWhiteout(t *testing.T) {
	st, err := store.Open(t.TempDir())
	require.NoError(t, err)

	// Bottom layer: / -> etc (ino 2); etc -> {foo: ino3, bar: ino4}.
	bottomRoot := layerInode{ino: 1, mode: format.InodeMode{Kind: format.ModeDir}, perm: format.DefaultDirectoryPermissions}
	bottomEtc := layerInode{ino: 2, mode: format.InodeMode{Kind: format.ModeDir}, perm: format.DefaultDirectoryPermissions}
	bottomFoo := layerInode{ino: 3, mode: format.InodeMode{Kind: format.ModeFile}, perm: format.DefaultFilePermissions}
	bottomBar := layerInode{ino: 4, mode: format.InodeMode{Kind: format.ModeFile}, perm: format.DefaultFilePermissions}
	bottomDirLists := map[format.Ino]format.DirList{
		1: {Entries: []format.DirEnt{{Ino: 2, Name: []byte("etc")}}},
		2: {Entries: []format.DirEnt{{Ino: 3, Name: []byte("foo")}, {Ino: 4, Name: []byte("bar")}}},
	}
	bottomDigest := buildLayer(t, st, []layerInode{bottomRoot, bottomEtc, bottomFoo, bottomBar}, bottomDirLists, nil)

	// Top layer: etc re-emitted with look_below=true and a whiteout for foo.
	topEtc := layerInode{ino: 2, mode: format.InodeMode{Kind: format.ModeDir}, perm: format.DefaultDirectoryPermissions}
	topWhiteout := layerInode{ino: 5, mode: format.InodeMode{Kind: format.ModeWhiteout}, perm: format.DefaultFilePermissions}
	topDirLists := map[format.Ino]format.DirList{
		2: {LookBelow: true, Entries: []format.DirEnt{{Ino: 5, Name: []byte("foo")}}},
	}
	topDigest := buildLayer(t, st, []layerInode{topEtc, topWhiteout}, topDirLists, nil)

	manifestDigest := buildManifest(t, st, topDigest, bottomDigest)

	img, err := Open(st, manifestDigest)
	require.NoError(t, err)
	defer img.Close()
	require.Equal(t, 2, img.LayerCount())

	entries, err := img.Readdir(2)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "bar", string(entries[0].Name))
	require.Equal(t, format.Ino(4), entries[0].Ino)

	// The root itself was never re-emitted in the top layer, so it
	// resolves straight through to the bottom layer's record.
	rootEntries, err := img.Readdir(1)
	require.NoError(t, err)
	require.Len(t, rootEntries, 1)
	require.Equal(t, "etc", string(rootEntries[0].Name))
}

func TestWalkBreadthFirst(t *testing.T) {
	st, err := store.Open(t.TempDir())
	require.NoError(t, err)

	root := layerInode{ino: 1, mode: format.InodeMode{Kind: format.ModeDir}, perm: format.DefaultDirectoryPermissions}
	dir := layerInode{ino: 2, mode: format.InodeMode{Kind: format.ModeDir}, perm: format.DefaultDirectoryPermissions}
	file := layerInode{ino: 3, mode: format.InodeMode{Kind: format.ModeFile}, perm: format.DefaultFilePermissions}
	dirLists := map[format.Ino]format.DirList{
		1: {Entries: []format.DirEnt{{Ino: 3, Name: []byte("a.txt")}, {Ino: 2, Name: []byte("sub")}}},
		2: {},
	}
	layerDigest := buildLayer(t, st, []layerInode{root, dir, file}, dirLists, nil)
	manifestDigest := buildManifest(t, st, layerDigest)

	img, err := Open(st, manifestDigest)
	require.NoError(t, err)
	defer img.Close()

	w, err := Walk(img)
	require.NoError(t, err)

	var paths []string
	for {
		de, ok, err := w.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		paths = append(paths, de.Path)
	}
	require.Equal(t, []string{"/", "/a.txt", "/sub"}, paths)
}

func TestXattrAndSymlink(t *testing.T) {
	st, err := store.Open(t.TempDir())
	require.NoError(t, err)

	root := layerInode{ino: 1, mode: format.InodeMode{Kind: format.ModeDir}, perm: format.DefaultDirectoryPermissions}
	link := layerInode{
		ino:  2,
		mode: format.InodeMode{Kind: format.ModeSymlink},
		perm: 0o777,
		add: &format.InodeAdditional{
			SymlinkTarget: []byte("a.txt"),
			Xattrs:        []format.Xattr{{Key: []byte("user.note"), Value: []byte("hi")}},
		},
	}
	dirLists := map[format.Ino]format.DirList{
		1: {Entries: []format.DirEnt{{Ino: 2, Name: []byte("link")}}},
	}
	layerDigest := buildLayer(t, st, []layerInode{root, link}, dirLists, nil)
	manifestDigest := buildManifest(t, st, layerDigest)

	img, err := Open(st, manifestDigest)
	require.NoError(t, err)
	defer img.Close()

	target, err := img.Readlink(2)
	require.NoError(t, err)
	require.Equal(t, "a.txt", target)

	val, ok, err := img.GetXattr(2, "user.note")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "hi", string(val))

	names, err := img.ListXattr(2)
	require.NoError(t, err)
	require.Equal(t, []string{"user.note"}, names)
}
