package vfs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/puzzlefs/puzzlefs/builder"
	"github.com/puzzlefs/puzzlefs/format"
	"github.com/puzzlefs/puzzlefs/reader"
	"github.com/puzzlefs/puzzlefs/store"
)

func openFS(t *testing.T, root string) *FS {
	t.Helper()
	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	res, err := builder.Build(context.Background(), st, root)
	require.NoError(t, err)
	img, err := reader.Open(st, res.ManifestDigest)
	require.NoError(t, err)
	t.Cleanup(func() { img.Close() })
	return New(img)
}

func TestLookupAndReadFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "greeting.txt"), []byte("hello vfs"), 0o644))

	fs := openFS(t, root)

	attr, err := fs.Lookup("/greeting.txt")
	require.NoError(t, err)
	require.Equal(t, format.ModeFile, attr.Kind)
	require.EqualValues(t, len("hello vfs"), attr.Size)

	buf := make([]byte, attr.Size)
	n, err := fs.Read(attr.Ino, buf, 0)
	require.NoError(t, err)
	require.Equal(t, "hello vfs", string(buf[:n]))
}

func TestReadDirRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "top.txt"), []byte("x"), 0o644))

	fs := openFS(t, root)
	entries, err := fs.ReadDir(RootIno)
	require.NoError(t, err)
	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name] = true
	}
	require.True(t, names["sub"])
	require.True(t, names["top.txt"])
}

func TestLookupMissingMapsToENOENT(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a"), []byte("a"), 0o644))

	fs := openFS(t, root)
	_, err := fs.Lookup("/does-not-exist")
	require.Error(t, err)
	require.Equal(t, unix.ENOENT, Errno(err))
}

func TestGetXattrMissingMapsToENOENT(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a"), []byte("a"), 0o644))

	fs := openFS(t, root)
	attr, err := fs.Lookup("/a")
	require.NoError(t, err)

	_, err = fs.GetXattr(attr.Ino, "user.nonexistent")
	require.Error(t, err)
	require.Equal(t, unix.ENOENT, Errno(err))
}

func TestErrnoNilIsZero(t *testing.T) {
	require.EqualValues(t, 0, Errno(nil))
}
