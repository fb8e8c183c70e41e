package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/puzzlefs/puzzlefs/builder"
	"github.com/puzzlefs/puzzlefs/reader"
	"github.com/puzzlefs/puzzlefs/store"
)

func TestTreeRoundTrip(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "hello.txt"), []byte("hello, extract"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "nested.txt"), []byte("nested"), 0o644))
	require.NoError(t, os.Symlink("hello.txt", filepath.Join(root, "link")))

	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	res, err := builder.Build(context.Background(), st, root)
	require.NoError(t, err)

	img, err := reader.Open(st, res.ManifestDigest)
	require.NoError(t, err)
	defer img.Close()

	dest := t.TempDir()
	require.NoError(t, Tree(img, dest))

	got, err := os.ReadFile(filepath.Join(dest, "hello.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello, extract", string(got))

	gotNested, err := os.ReadFile(filepath.Join(dest, "sub", "nested.txt"))
	require.NoError(t, err)
	require.Equal(t, "nested", string(gotNested))

	target, err := os.Readlink(filepath.Join(dest, "link"))
	require.NoError(t, err)
	require.Equal(t, "hello.txt", target)
}

func TestTreePreservesHardlinks(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(target, []byte("shared"), 0o644))
	require.NoError(t, os.Link(target, filepath.Join(root, "b.txt")))

	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	res, err := builder.Build(context.Background(), st, root)
	require.NoError(t, err)

	img, err := reader.Open(st, res.ManifestDigest)
	require.NoError(t, err)
	defer img.Close()

	dest := t.TempDir()
	require.NoError(t, Tree(img, dest))

	infoA, err := os.Stat(filepath.Join(dest, "a.txt"))
	require.NoError(t, err)
	infoB, err := os.Stat(filepath.Join(dest, "b.txt"))
	require.NoError(t, err)
	require.True(t, os.SameFile(infoA, infoB), "extracted hardlinked names must share one inode")
}
