// Package store implements the content-addressed blob store: every blob is
// named by the SHA-256 digest of its bytes, written once via a temp file
// plus atomic rename, and never modified afterward. Readers memory-map
// blobs for random access rather than paying a read syscall per access.
package store
