// Package extract materializes a mounted PuzzleFS image onto a real
// filesystem: it walks the merged directory tree and writes an equivalent
// set of regular files, directories, symlinks, device nodes, and extended
// attributes to a destination directory, reproducing the hard-link
// structure encoded by shared inode numbers.
package extract
