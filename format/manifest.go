package format

import (
	"fmt"

	"github.com/puzzlefs/puzzlefs/digest"
)

// VerityMeasurement records one recorded fs-verity Merkle root and the
// digest of the blob it was measured over.
type VerityMeasurement struct {
	_           struct{} `cbor:",toarray"`
	Digest      digest.Digest
	Measurement [digest.Size]byte
}

// Manifest is the root blob: the ordered stack of metadata layers (topmost
// first) plus recorded fs-verity measurements for armed images.
type Manifest struct {
	_              struct{} `cbor:",toarray"`
	Metadatas      []BlobRef
	FSVerityData   []VerityMeasurement
	ManifestVersion uint64
}

// EncodeManifest returns the canonical CBOR encoding of m.
func EncodeManifest(m Manifest) ([]byte, error) {
	return marshalOne(m)
}

// DecodeManifest decodes and version-checks a manifest blob.
func DecodeManifest(buf []byte) (Manifest, error) {
	var m Manifest
	if err := unmarshalOneAt(buf, 0, &m); err != nil {
		return Manifest{}, err
	}
	if m.ManifestVersion != CurrentManifestVersion {
		return Manifest{}, &UnsupportedVersionError{Version: m.ManifestVersion}
	}
	if len(m.Metadatas) == 0 {
		return Manifest{}, fmt.Errorf("%w: manifest has no metadata layers", ErrInvalidFormat)
	}
	return m, nil
}

// VerityFor returns the recorded measurement for d, if any.
func (m Manifest) VerityFor(d digest.Digest) ([digest.Size]byte, bool) {
	for _, v := range m.FSVerityData {
		if v.Digest == d {
			return v.Measurement, true
		}
	}
	return [digest.Size]byte{}, false
}
