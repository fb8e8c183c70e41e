package integrity

import (
	"fmt"

	"github.com/puzzlefs/puzzlefs/digest"
	"github.com/puzzlefs/puzzlefs/format"
	"github.com/puzzlefs/puzzlefs/store"
)

// Result carries the measurements produced by Enable: the digest of the new,
// verity-annotated manifest, and the measurement of that manifest blob
// itself, which becomes the image's root digest.
type Result struct {
	ManifestDigest digest.Digest
	RootDigest     [digest.Size]byte
}

// Enable arms fs-verity on every blob a manifest references: each metadata
// layer, every distinct file-data chunk any layer's inodes point at, and
// finally the manifest blob rewritten to record those measurements. The
// measurement of that rewritten manifest blob is the image's root digest,
// the value a mount must be told to expect.
func Enable(st *store.Store, manifestDigest digest.Digest) (Result, error) {
	manifest, err := readManifest(st, manifestDigest)
	if err != nil {
		return Result{}, err
	}

	fileDigests, err := collectFileDigests(st, manifest)
	if err != nil {
		return Result{}, err
	}

	var measurements []format.VerityMeasurement
	arm := func(d digest.Digest) error {
		m, err := armBlob(st, d)
		if err != nil {
			return err
		}
		measurements = append(measurements, format.VerityMeasurement{Digest: d, Measurement: m})
		return nil
	}

	for _, layer := range manifest.Metadatas {
		if err := arm(layer.Digest); err != nil {
			return Result{}, err
		}
	}
	for _, d := range fileDigests {
		if err := arm(d); err != nil {
			return Result{}, err
		}
	}

	armed := format.Manifest{
		ManifestVersion: manifest.ManifestVersion,
		Metadatas:       manifest.Metadatas,
		FSVerityData:    measurements,
	}
	buf, err := format.EncodeManifest(armed)
	if err != nil {
		return Result{}, fmt.Errorf("integrity: encode armed manifest: %w", err)
	}
	armedDigest, err := st.Put(buf)
	if err != nil {
		return Result{}, fmt.Errorf("integrity: store armed manifest: %w", err)
	}

	rootDigest, err := armBlob(st, armedDigest)
	if err != nil {
		return Result{}, fmt.Errorf("integrity: enable fs-verity on manifest blob: %w", err)
	}

	return Result{ManifestDigest: armedDigest, RootDigest: rootDigest}, nil
}

// Verify checks a manifest's own fs-verity measurement against expectedRoot,
// then re-measures every blob it recorded in fs_verity_data and compares
// against the value recorded at Enable time. Any mismatch or missing
// measurement is reported as format.ErrIntegrityFailed.
func Verify(st *store.Store, manifestDigest digest.Digest, expectedRoot [digest.Size]byte) error {
	got, err := measureFile(st.Path(manifestDigest))
	if err != nil {
		return err
	}
	if got != expectedRoot {
		return fmt.Errorf("%w: manifest %s measured %x, expected root %x", format.ErrIntegrityFailed, manifestDigest, got, expectedRoot)
	}

	manifest, err := readManifest(st, manifestDigest)
	if err != nil {
		return err
	}
	if len(manifest.FSVerityData) == 0 {
		return fmt.Errorf("%w: manifest %s carries no fs-verity data to verify against", format.ErrIntegrityFailed, manifestDigest)
	}

	for _, want := range manifest.FSVerityData {
		got, err := measureFile(st.Path(want.Digest))
		if err != nil {
			return err
		}
		if got != want.Measurement {
			return fmt.Errorf("%w: blob %s measured %x, expected %x", format.ErrIntegrityFailed, want.Digest, got, want.Measurement)
		}
	}
	return nil
}

func armBlob(st *store.Store, d digest.Digest) ([digest.Size]byte, error) {
	path := st.Path(d)
	if err := enableFile(path); err != nil {
		return [digest.Size]byte{}, fmt.Errorf("integrity: %s: %w", d, err)
	}
	m, err := measureFile(path)
	if err != nil {
		return [digest.Size]byte{}, fmt.Errorf("integrity: %s: %w", d, err)
	}
	return m, nil
}

func readManifest(st *store.Store, d digest.Digest) (format.Manifest, error) {
	blob, err := st.Open(d)
	if err != nil {
		return format.Manifest{}, fmt.Errorf("integrity: open manifest %s: %w", d, err)
	}
	defer blob.Close()
	return format.DecodeManifest(blob.Bytes())
}

// collectFileDigests returns the distinct blob digests referenced by
// file-data chunks across every layer of manifest, in first-seen order.
func collectFileDigests(st *store.Store, manifest format.Manifest) ([]digest.Digest, error) {
	seen := make(map[digest.Digest]bool)
	var out []digest.Digest

	for _, layer := range manifest.Metadatas {
		blob, err := st.Open(layer.Digest)
		if err != nil {
			return nil, fmt.Errorf("integrity: open metadata layer %s: %w", layer.Digest, err)
		}
		mb, err := format.OpenMetadataBlob(blob.Bytes())
		if err != nil {
			blob.Close()
			return nil, fmt.Errorf("integrity: parse metadata layer %s: %w", layer.Digest, err)
		}
		inodes, err := mb.AllInodes()
		if err != nil {
			blob.Close()
			return nil, fmt.Errorf("integrity: read inodes of %s: %w", layer.Digest, err)
		}
		for _, inode := range inodes {
			if inode.Mode.Kind != format.ModeFile {
				continue
			}
			chunks, err := mb.ReadFileChunks(inode.Mode.Offset)
			if err != nil {
				blob.Close()
				return nil, fmt.Errorf("integrity: read chunks of inode %d in %s: %w", inode.Ino, layer.Digest, err)
			}
			for _, c := range chunks {
				if !seen[c.Blob.Digest] {
					seen[c.Blob.Digest] = true
					out = append(out, c.Blob.Digest)
				}
			}
		}
		blob.Close()
	}
	return out, nil
}
