// Package oci writes and reads the OCI image-layout bookkeeping that wraps
// a PuzzleFS manifest for distribution: the blobs directory, the image
// manifest that points at the PuzzleFS rootfs blob, and the top-level
// index.json that gives it a human-chosen tag. The PuzzleFS content itself
// is untouched CBOR; this package only ever adds JSON alongside it.
package oci

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/opencontainers/image-spec/specs-go"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/puzzlefs/puzzlefs/digest"
	"github.com/puzzlefs/puzzlefs/format"
	"github.com/puzzlefs/puzzlefs/store"
)

const layoutVersion = "1.0.0"

// emptyConfig is the minimal image config blob every OCI image manifest is
// required to reference. PuzzleFS images carry no runtime config of their
// own, so this is the same empty object for every image.
var emptyConfig = []byte("{}")

// blobsDir returns ociDir's blob directory, matching the standard
// "blobs/<algorithm>" layout so any OCI-aware tool can walk it.
func blobsDir(ociDir string) string {
	return filepath.Join(ociDir, "blobs", "sha256")
}

func writeBlob(ociDir string, buf []byte) (digest.Digest, error) {
	dir := blobsDir(ociDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return digest.Digest{}, fmt.Errorf("oci: create %s: %w", dir, err)
	}
	d := digest.Of(buf)
	path := filepath.Join(dir, d.String())
	if _, err := os.Stat(path); err == nil {
		return d, nil
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return digest.Digest{}, fmt.Errorf("oci: create temp blob: %w", err)
	}
	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return digest.Digest{}, fmt.Errorf("oci: write temp blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return digest.Digest{}, fmt.Errorf("oci: close temp blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return digest.Digest{}, fmt.Errorf("oci: rename blob into place: %w", err)
	}
	return d, nil
}

func ensureLayout(ociDir string) error {
	if err := os.MkdirAll(ociDir, 0o755); err != nil {
		return fmt.Errorf("oci: create %s: %w", ociDir, err)
	}
	layout := ocispec.ImageLayout{Version: layoutVersion}
	buf, err := json.Marshal(layout)
	if err != nil {
		return fmt.Errorf("oci: encode oci-layout: %w", err)
	}
	return os.WriteFile(filepath.Join(ociDir, "oci-layout"), buf, 0o644)
}

func readIndex(ociDir string) (ocispec.Index, error) {
	buf, err := os.ReadFile(filepath.Join(ociDir, "index.json"))
	if os.IsNotExist(err) {
		return ocispec.Index{Versioned: specs.Versioned{SchemaVersion: 2}}, nil
	}
	if err != nil {
		return ocispec.Index{}, fmt.Errorf("oci: read index.json: %w", err)
	}
	var idx ocispec.Index
	if err := json.Unmarshal(buf, &idx); err != nil {
		return ocispec.Index{}, fmt.Errorf("oci: decode index.json: %w", err)
	}
	return idx, nil
}

func writeIndex(ociDir string, idx ocispec.Index) error {
	buf, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("oci: encode index.json: %w", err)
	}
	return os.WriteFile(filepath.Join(ociDir, "index.json"), buf, 0o644)
}

// PutRootfs writes a PuzzleFS manifest (already stored under manifestDigest
// in st) into an OCI image layout at ociDir, tagged as tag. rootDigest is
// the fs-verity measurement produced by integrity.Enable for the manifest
// blob; it is recorded as an annotation on the rootfs descriptor since a
// blob cannot carry a measurement of itself. A zero rootDigest (an image
// that has not been armed) records no annotation.
//
// Any prior index.json entry with the same tag is replaced, matching how a
// container registry moves a tag to point at a new manifest.
func PutRootfs(ociDir string, st *store.Store, manifestDigest digest.Digest, rootDigest [digest.Size]byte, tag string) error {
	if err := ensureLayout(ociDir); err != nil {
		return err
	}

	blob, err := st.Open(manifestDigest)
	if err != nil {
		return fmt.Errorf("oci: open manifest %s: %w", manifestDigest, err)
	}
	rootfsBuf := append([]byte(nil), blob.Bytes()...)
	blob.Close()

	if _, err := writeBlob(ociDir, rootfsBuf); err != nil {
		return err
	}
	rootfsDesc := descriptorFor(rootfsBuf, MediaTypeRootfs)
	if rootDigest != ([digest.Size]byte{}) {
		rootfsDesc.Annotations = rootfsVerityAnnotation(rootDigest)
	}

	if _, err := writeBlob(ociDir, emptyConfig); err != nil {
		return err
	}
	configDesc := descriptorFor(emptyConfig, ocispec.MediaTypeImageConfig)

	manifest := ocispec.Manifest{
		Versioned: specs.Versioned{SchemaVersion: 2},
		MediaType: ocispec.MediaTypeImageManifest,
		Config:    configDesc,
		Layers:    []ocispec.Descriptor{rootfsDesc},
	}
	manifestBuf, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("oci: encode image manifest: %w", err)
	}
	if _, err := writeBlob(ociDir, manifestBuf); err != nil {
		return err
	}
	manifestDesc := descriptorFor(manifestBuf, ocispec.MediaTypeImageManifest)
	manifestDesc.Annotations = map[string]string{RefNameAnnotation: tag}

	idx, err := readIndex(ociDir)
	if err != nil {
		return err
	}
	kept := idx.Manifests[:0]
	for _, m := range idx.Manifests {
		if m.Annotations[RefNameAnnotation] != tag {
			kept = append(kept, m)
		}
	}
	idx.Manifests = append(kept, manifestDesc)
	idx.MediaType = ocispec.MediaTypeImageIndex

	return writeIndex(ociDir, idx)
}

// ManifestDigestForTag resolves tag to the content digest of the PuzzleFS
// manifest blob it points at, so a delta build can re-open that image as
// its base without needing the caller to already know the digest.
func ManifestDigestForTag(ociDir string, tag string) (digest.Digest, error) {
	rootfsDesc, err := rootfsDescriptorForTag(ociDir, tag)
	if err != nil {
		return digest.Digest{}, err
	}
	return digest.FromOCI(rootfsDesc.Digest)
}

// rootfsDescriptorForTag resolves tag to the OCI descriptor of the
// PuzzleFS rootfs layer inside the image manifest that tag points at.
func rootfsDescriptorForTag(ociDir string, tag string) (ocispec.Descriptor, error) {
	idx, err := readIndex(ociDir)
	if err != nil {
		return ocispec.Descriptor{}, err
	}
	var manifestDesc *ocispec.Descriptor
	for i := range idx.Manifests {
		if idx.Manifests[i].Annotations[RefNameAnnotation] == tag {
			manifestDesc = &idx.Manifests[i]
			break
		}
	}
	if manifestDesc == nil {
		return ocispec.Descriptor{}, fmt.Errorf("oci: %w: no manifest tagged %q in %s", format.ErrNotFound, tag, ociDir)
	}

	buf, err := os.ReadFile(filepath.Join(blobsDir(ociDir), manifestDesc.Digest.Encoded()))
	if err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("oci: read image manifest for tag %q: %w", tag, err)
	}
	var manifest ocispec.Manifest
	if err := json.Unmarshal(buf, &manifest); err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("oci: decode image manifest for tag %q: %w", tag, err)
	}

	for i := range manifest.Layers {
		if manifest.Layers[i].MediaType == MediaTypeRootfs {
			return manifest.Layers[i], nil
		}
	}
	return ocispec.Descriptor{}, fmt.Errorf("oci: image manifest for tag %q has no puzzlefs rootfs layer", tag)
}

// RootfsVerityDigest reads the fs-verity root digest recorded by PutRootfs
// (via integrity.Enable's result) for the image tagged tag.
func RootfsVerityDigest(ociDir string, tag string) ([digest.Size]byte, error) {
	var out [digest.Size]byte

	rootfsDesc, err := rootfsDescriptorForTag(ociDir, tag)
	if err != nil {
		return out, err
	}
	hexDigest, ok := rootfsDesc.Annotations[VerityRootHashAnnotation]
	if !ok {
		return out, fmt.Errorf("oci: rootfs layer for tag %q has no verity annotation", tag)
	}
	d, err := digest.Parse(hexDigest)
	if err != nil {
		return out, fmt.Errorf("oci: bad verity annotation for tag %q: %w", tag, err)
	}
	return [digest.Size]byte(d), nil
}
