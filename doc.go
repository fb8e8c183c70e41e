// Command puzzlefs and its supporting packages implement PuzzleFS: a
// content-addressed container image format built around chunk-level
// deduplication, canonical encoding, and OS-enforceable Merkle integrity.
//
// A wire-format package (format) sits underneath a chunking layer
// (chunker), a blob store (store), a reader that presents a merged
// read-only tree (reader), and a builder that produces new images
// (builder). On top of those sit integrity enforcement (integrity), OCI
// distribution bookkeeping (oci), a VFS-shaped view for a filesystem host
// (vfs), tree materialization (extract), and a CLI (cmd/puzzlefs). See
// DESIGN.md for how each package is grounded.
package puzzlefs
