package integrity

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/puzzlefs/puzzlefs/builder"
	"github.com/puzzlefs/puzzlefs/format"
	"github.com/puzzlefs/puzzlefs/store"
)

// buildImage produces a real, small image and returns its store and
// manifest digest, for exercising the collection and encoding logic that
// does not itself require a fs-verity-capable filesystem.
func buildImage(t *testing.T) (*store.Store, format.Manifest, string) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("alpha"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), []byte("beta"), 0o644))

	storeDir := t.TempDir()
	st, err := store.Open(storeDir)
	require.NoError(t, err)

	res, err := builder.Build(context.Background(), st, root)
	require.NoError(t, err)

	manifest, err := readManifest(st, res.ManifestDigest)
	require.NoError(t, err)
	return st, manifest, storeDir
}

func TestCollectFileDigestsDeduplicates(t *testing.T) {
	root := t.TempDir()
	// Two files with identical content chunk to the same blob digest.
	require.NoError(t, os.WriteFile(filepath.Join(root, "one"), []byte("same bytes"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "two"), []byte("same bytes"), 0o644))

	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	res, err := builder.Build(context.Background(), st, root)
	require.NoError(t, err)

	manifest, err := readManifest(st, res.ManifestDigest)
	require.NoError(t, err)

	digests, err := collectFileDigests(st, manifest)
	require.NoError(t, err)
	require.Len(t, digests, 1, "identical file content must collapse to one blob digest")
}

func TestVerifyRejectsUnarmedManifest(t *testing.T) {
	st, _, _ := buildImage(t)

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "c.txt"), []byte("gamma"), 0o644))
	res, err := builder.Build(context.Background(), st, root)
	require.NoError(t, err)

	err = Verify(st, res.ManifestDigest, [32]byte{})
	require.Error(t, err, "verifying an unmeasured blob must fail, not silently succeed")
}

// TestEnableAndVerifyRoundTrip exercises the real ioctl path. It skips
// itself when Enable reports format.ErrFeatureUnsupported (non-linux, or a
// filesystem without fs-verity) rather than failing the suite; any other
// Enable error fails the test.
func TestEnableAndVerifyRoundTrip(t *testing.T) {
	st, _, storeDir := buildImage(t)
	_ = storeDir

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "z.txt"), []byte("zeta"), 0o644))
	res, err := builder.Build(context.Background(), st, root)
	require.NoError(t, err)

	result, err := Enable(st, res.ManifestDigest)
	if err != nil {
		if errors.Is(err, format.ErrFeatureUnsupported) {
			t.Skipf("fs-verity not available in this environment: %v", err)
		}
		require.NoError(t, err)
	}

	require.NoError(t, Verify(st, result.ManifestDigest, result.RootDigest))

	var wrongRoot [32]byte
	copy(wrongRoot[:], result.RootDigest[:])
	wrongRoot[0] ^= 0xff
	require.ErrorIs(t, Verify(st, result.ManifestDigest, wrongRoot), format.ErrIntegrityFailed)
}
