// Package integrity binds the blobs of a PuzzleFS image to a Merkle
// measurement computed by the underlying filesystem's own read-only
// integrity feature (Linux fs-verity), rather than reimplementing a Merkle
// tree in userspace. Enable arms every blob a manifest references and
// records the kernel-reported measurements in a new manifest; Verify checks
// a manifest's own measurement against an expected root digest.
package integrity
