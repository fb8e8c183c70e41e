package oci

// MediaType identifiers for the two kinds of blob a PuzzleFS image
// contributes to an OCI image layout. Everything else in the layout (the
// image manifest, the index) uses the standard OCI media types.
const (
	// MediaTypeRootfs names the manifest blob: the PuzzleFS Manifest CBOR
	// value that roots a layer stack.
	MediaTypeRootfs = "application/vnd.puzzlefs.image.rootfs.v1"

	// MediaTypeFileData names a content-defined chunk blob referenced from
	// a metadata layer's file chunk lists.
	MediaTypeFileData = "application/vnd.puzzlefs.image.filedata.v1"
)

// VerityRootHashAnnotation is the OCI descriptor annotation key under which
// the fs-verity measurement of the rootfs manifest blob is recorded, since
// the measurement cannot be stored inside the blob it measures.
const VerityRootHashAnnotation = "io.puzzlefsoci.puzzlefs.puzzlefs_verity_root_hash"

// RefNameAnnotation is the standard OCI annotation used to tag an entry in
// index.json with a human-chosen name.
const RefNameAnnotation = "org.opencontainers.image.ref.name"
