package store

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/puzzlefs/puzzlefs/digest"
)

func TestPutAndOpenRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	want := []byte("hello, puzzlefs")
	d, err := s.Put(want)
	require.NoError(t, err)
	require.Equal(t, digest.Of(want), d)
	require.True(t, s.Has(d))

	blob, err := s.Open(d)
	require.NoError(t, err)
	defer blob.Close()
	require.Equal(t, want, blob.Bytes())

	rng, err := blob.ReadRange(7, 8)
	require.NoError(t, err)
	require.Equal(t, []byte("puzzlefs"), rng)

	_, err = blob.ReadRange(0, uint64(len(want)+1))
	require.Error(t, err)
}

func TestPutDeduplicatesIdenticalContent(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	content := bytes.Repeat([]byte("a"), 4096)
	d1, err := s.Put(content)
	require.NoError(t, err)
	d2, err := s.Put(content)
	require.NoError(t, err)
	require.Equal(t, d1, d2)

	entries, err := filepathGlob(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestWriterAbortLeavesNoBlob(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	w, err := s.NewWriter()
	require.NoError(t, err)
	_, err = w.Write([]byte("partial"))
	require.NoError(t, err)
	require.NoError(t, w.Abort())

	entries, err := filepathGlob(s.Dir())
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestOpenMissingBlob(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	_, err = s.Open(digest.Of([]byte("nope")))
	require.Error(t, err)
}

func filepathGlob(dir string) ([]string, error) {
	return filepath.Glob(filepath.Join(dir, "*"))
}
