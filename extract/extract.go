package extract

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/puzzlefs/puzzlefs/format"
	"github.com/puzzlefs/puzzlefs/reader"
)

// Tree walks img's merged directory tree starting at reader.RootIno and
// writes an equivalent tree under destDir, following the same shape the
// builder consumed: regular files copied byte for byte, directories
// created recursively, symlinks recreated with their original target,
// device/fifo/socket nodes recreated via mknod, and every inode's xattrs,
// permissions, and (when running privileged) ownership restored. Multiple
// directory entries sharing one inode are extracted once and hard-linked
// together, mirroring the builder's own hard-link detection.
func Tree(img *reader.Image, destDir string) error {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("extract: create %s: %w", destDir, err)
	}
	seen := make(map[format.Ino]string)
	return walk(img, reader.RootIno, "/", destDir, seen)
}

// walk extracts the inode at pfsPath (image-relative) into destDir/<pfsPath>,
// recursing into directories. seen maps an inode
// already extracted once to the host path it was written to, so later
// directory entries pointing at the same inode become hard links instead
// of being written out again.
func walk(img *reader.Image, ino format.Ino, pfsPath, destDir string, seen map[format.Ino]string) error {
	hostPath, err := safePath(destDir, pfsPath)
	if err != nil {
		return err
	}

	if existing, ok := seen[ino]; ok && ino != reader.RootIno {
		return os.Link(existing, hostPath)
	}

	inode, err := img.FindInode(ino)
	if err != nil {
		return err
	}

	switch inode.Mode.Kind {
	case format.ModeDir:
		if err := os.MkdirAll(hostPath, 0o755); err != nil {
			return fmt.Errorf("extract: mkdir %s: %w", hostPath, err)
		}
		seen[ino] = hostPath
		entries, err := img.Readdir(ino)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err := walk(img, e.Ino, path.Join(pfsPath, string(e.Name)), destDir, seen); err != nil {
				return err
			}
		}
		return finishInode(img, inode, hostPath, false)

	case format.ModeFile:
		if err := extractFile(img, ino, hostPath); err != nil {
			return err
		}
		seen[ino] = hostPath
		return finishInode(img, inode, hostPath, false)

	case format.ModeSymlink:
		target, err := img.Readlink(ino)
		if err != nil {
			return err
		}
		if err := os.Symlink(target, hostPath); err != nil {
			return fmt.Errorf("extract: symlink %s: %w", hostPath, err)
		}
		seen[ino] = hostPath
		// Permissions on a symlink are not meaningful on Linux and
		// setting them would follow the link, so only xattrs/ownership
		// are restored for it.
		return finishInode(img, inode, hostPath, true)

	case format.ModeFifo, format.ModeChr, format.ModeBlk, format.ModeSock:
		if err := makeSpecial(inode, hostPath); err != nil {
			return err
		}
		seen[ino] = hostPath
		return finishInode(img, inode, hostPath, false)

	case format.ModeWhiteout:
		return fmt.Errorf("%w: whiteout inode %d reached extraction, merge left a masked entry visible", format.ErrWhiteoutMisuse, ino)

	default:
		return fmt.Errorf("%w: inode %d has unextractable mode %s", format.ErrInvalidFormat, ino, inode.Mode.Kind)
	}
}

func extractFile(img *reader.Image, ino format.Ino, hostPath string) error {
	size, err := img.Size(ino)
	if err != nil {
		return err
	}
	f, err := os.Create(hostPath)
	if err != nil {
		return fmt.Errorf("extract: create %s: %w", hostPath, err)
	}
	defer f.Close()

	const bufSize = 1 << 20
	buf := make([]byte, bufSize)
	var off int64
	for uint64(off) < size {
		n, err := img.ReadAt(ino, buf[:min64(bufSize, int64(size)-off)], off)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				return fmt.Errorf("extract: write %s: %w", hostPath, werr)
			}
			off += int64(n)
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("extract: read ino %d: %w", ino, err)
		}
		if n == 0 {
			break
		}
	}
	return nil
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// finishInode applies xattrs, permissions, and (if privileged) ownership
// from inode to the already-created file at hostPath.
func finishInode(img *reader.Image, inode format.Inode, hostPath string, isSymlink bool) error {
	names, err := img.ListXattr(inode.Ino)
	if err != nil {
		return err
	}
	for _, name := range names {
		val, ok, err := img.GetXattr(inode.Ino, name)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := setXattr(hostPath, name, val); err != nil {
			return fmt.Errorf("extract: set xattr %s on %s: %w", name, hostPath, err)
		}
	}

	if !isSymlink {
		if err := os.Chmod(hostPath, os.FileMode(inode.Permissions)); err != nil {
			return fmt.Errorf("extract: chmod %s: %w", hostPath, err)
		}
	}

	if runningPrivileged() {
		if err := lchown(hostPath, int(inode.UID), int(inode.GID)); err != nil {
			return fmt.Errorf("extract: chown %s: %w", hostPath, err)
		}
	}
	return nil
}

// safePath joins pfsPath onto destDir, rejecting any intermediate
// component that already exists as a symlink so a malicious image cannot
// escape destDir by pointing a path prefix outside it.
func safePath(destDir, pfsPath string) (string, error) {
	clean := path.Clean("/" + pfsPath)
	full := destDir
	for _, part := range splitPath(clean) {
		full = filepath.Join(full, part)
		info, err := os.Lstat(full)
		if err != nil {
			if os.IsNotExist(err) {
				break
			}
			return "", fmt.Errorf("extract: stat %s: %w", full, err)
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return "", fmt.Errorf("extract: refusing to extract through symlink %s", full)
		}
	}
	return filepath.Join(destDir, filepath.FromSlash(clean)), nil
}

// splitPath breaks a cleaned, slash-separated absolute path into its
// components ("/a/b" -> ["a", "b"]).
func splitPath(clean string) []string {
	if clean == "/" {
		return nil
	}
	var parts []string
	rest := clean[1:]
	for rest != "" {
		i := 0
		for i < len(rest) && rest[i] != '/' {
			i++
		}
		parts = append(parts, rest[:i])
		if i == len(rest) {
			break
		}
		rest = rest[i+1:]
	}
	return parts
}
