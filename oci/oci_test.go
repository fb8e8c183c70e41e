package oci

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/puzzlefs/puzzlefs/builder"
	"github.com/puzzlefs/puzzlefs/digest"
	"github.com/puzzlefs/puzzlefs/store"
)

func TestPutRootfsAndReadVerityDigest(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "f"), []byte("contents"), 0o644))

	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	res, err := builder.Build(context.Background(), st, root)
	require.NoError(t, err)

	var fakeRoot [digest.Size]byte
	for i := range fakeRoot {
		fakeRoot[i] = byte(i)
	}

	ociDir := t.TempDir()
	require.NoError(t, PutRootfs(ociDir, st, res.ManifestDigest, fakeRoot, "latest"))

	require.FileExists(t, filepath.Join(ociDir, "oci-layout"))
	require.FileExists(t, filepath.Join(ociDir, "index.json"))

	got, err := RootfsVerityDigest(ociDir, "latest")
	require.NoError(t, err)
	require.Equal(t, fakeRoot, got)

	_, err = RootfsVerityDigest(ociDir, "no-such-tag")
	require.Error(t, err)
}

func TestPutRootfsReplacesExistingTag(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "f"), []byte("v1"), 0o644))
	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	res1, err := builder.Build(context.Background(), st, root)
	require.NoError(t, err)

	ociDir := t.TempDir()
	var root1, root2 [digest.Size]byte
	root1[0] = 1
	root2[0] = 2
	require.NoError(t, PutRootfs(ociDir, st, res1.ManifestDigest, root1, "latest"))

	root2Tree := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root2Tree, "f"), []byte("v2, different length"), 0o644))
	res2, err := builder.Build(context.Background(), st, root2Tree)
	require.NoError(t, err)
	require.NoError(t, PutRootfs(ociDir, st, res2.ManifestDigest, root2, "latest"))

	idx, err := readIndex(ociDir)
	require.NoError(t, err)
	count := 0
	for _, m := range idx.Manifests {
		if m.Annotations[RefNameAnnotation] == "latest" {
			count++
		}
	}
	require.Equal(t, 1, count, "re-tagging must replace, not duplicate, the index entry")

	got, err := RootfsVerityDigest(ociDir, "latest")
	require.NoError(t, err)
	require.Equal(t, root2, got)
}
