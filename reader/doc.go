// Package reader implements read-only access to a PuzzleFS image: loading
// a manifest and its stacked metadata layers, resolving inodes and
// directory listings across that stack with whiteout and look-below
// semantics, and answering byte-range reads against a file's chunk list.
package reader
