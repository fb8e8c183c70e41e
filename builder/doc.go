// Package builder walks a filesystem tree and turns it into a PuzzleFS
// image: chunked file data written to a content-addressed blob store,
// canonical metadata layers describing the tree, and a manifest tying
// them together. It can build a fresh image or a delta against an
// existing one, in which case removed entries are recorded as whiteouts;
// file content is chunked again in a delta build rather than reusing the
// base layer's chunk lists.
package builder
