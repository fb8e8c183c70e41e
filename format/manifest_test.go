package format

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/puzzlefs/puzzlefs/digest"
)

func TestManifestRoundTrip(t *testing.T) {
	m := Manifest{
		Metadatas: []BlobRef{
			{Digest: digest.Of([]byte("layer-top")), Offset: 0},
			{Digest: digest.Of([]byte("layer-base")), Offset: 0},
		},
		FSVerityData: []VerityMeasurement{
			{Digest: digest.Of([]byte("layer-top")), Measurement: [digest.Size]byte{1, 2, 3}},
		},
		ManifestVersion: CurrentManifestVersion,
	}

	buf, err := EncodeManifest(m)
	require.NoError(t, err)

	got, err := DecodeManifest(buf)
	require.NoError(t, err)
	require.Equal(t, m, got)

	meas, ok := got.VerityFor(digest.Of([]byte("layer-top")))
	require.True(t, ok)
	require.Equal(t, [digest.Size]byte{1, 2, 3}, meas)

	_, ok = got.VerityFor(digest.Of([]byte("unknown")))
	require.False(t, ok)
}

func TestDecodeManifestRejectsUnsupportedVersion(t *testing.T) {
	m := Manifest{
		Metadatas:       []BlobRef{{Digest: digest.Of([]byte("x"))}},
		ManifestVersion: CurrentManifestVersion + 1,
	}
	buf, err := EncodeManifest(m)
	require.NoError(t, err)

	_, err = DecodeManifest(buf)
	require.Error(t, err)
	var uv *UnsupportedVersionError
	require.ErrorAs(t, err, &uv)
	require.Equal(t, CurrentManifestVersion+1, uv.Version)
}

func TestDecodeManifestRejectsEmptyMetadatas(t *testing.T) {
	m := Manifest{ManifestVersion: CurrentManifestVersion}
	buf, err := EncodeManifest(m)
	require.NoError(t, err)

	_, err = DecodeManifest(buf)
	require.ErrorIs(t, err, ErrInvalidFormat)
}
