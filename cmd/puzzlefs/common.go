package main

import "path/filepath"

// blobStoreDir returns the content-addressed blob directory inside an
// image directory, matching the on-disk layout in spec.md §6:
// <image_dir>/blobs/sha256/<hex>. The store and the oci package both write
// into this same directory, so a blob is stored exactly once regardless of
// whether it is addressed as a PuzzleFS digest or an OCI descriptor.
func blobStoreDir(imageDir string) string {
	return filepath.Join(imageDir, "blobs", "sha256")
}
