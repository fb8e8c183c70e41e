package builder

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/puzzlefs/puzzlefs/format"
)

// walkRoot walks hostRoot, populating s.dirs/files/others. It mirrors the
// original builder's directory-diff-against-base approach: for a delta
// build, a directory's entries are only re-emitted when something under it
// was added or removed, and removed names become whiteout entries; unchanged
// names are left to resolve through the base layer via look_below.
//
// Directories are drained one tree level at a time through s.pending, a
// FIFO queue, rather than recursed into depth-first: build(T) is defined
// over a breadth-first, lexicographic traversal (spec.md §4.3/§4.4), which
// is also what the original builder does (breadth first search for
// sharing, original_source/builder/src/lib.rs) so that sibling directories'
// regions land next to each other in the chunked stream instead of being
// interleaved with their descendants'.
func walkRoot(s *buildState, hostRoot string) error {
	info, err := os.Lstat(hostRoot)
	if err != nil {
		return fmt.Errorf("builder: stat root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("builder: root %s is not a directory", hostRoot)
	}

	s.pending = append(s.pending, pendingDir{hostPath: hostRoot, pfsPath: "/", ino: format.Ino(1)})
	for len(s.pending) > 0 {
		next := s.pending[0]
		s.pending = s.pending[1:]
		if _, err := processDir(s, next.hostPath, next.pfsPath, next.ino); err != nil {
			return err
		}
	}
	return nil
}

// processDir renders one directory's own entry list and inode, queuing any
// subdirectories it finds onto s.pending instead of descending into them
// immediately. It returns the dirBuilder created for it (nil if the
// directory's own listing is unchanged from the base and so needed no new
// record).
func processDir(s *buildState, hostPath, pfsPath string, ino format.Ino) (*dirBuilder, error) {
	if err := s.ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Lstat(hostPath)
	if err != nil {
		return nil, fmt.Errorf("builder: stat %s: %w", hostPath, err)
	}

	baseEntries, hadBase := s.baseDirEntries(pfsPath)

	children, err := os.ReadDir(hostPath)
	if err != nil {
		return nil, fmt.Errorf("builder: read dir %s: %w", hostPath, err)
	}
	sort.Slice(children, func(i, j int) bool { return children[i].Name() < children[j].Name() })

	newNames := make(map[string]bool, len(children))
	for _, c := range children {
		newNames[c.Name()] = true
	}

	var delta []format.DirEnt
	var full []format.DirEnt

	if hadBase {
		baseNames := make([]string, 0, len(baseEntries))
		for name := range baseEntries {
			baseNames = append(baseNames, name)
		}
		sort.Strings(baseNames)
		for _, name := range baseNames {
			if newNames[name] {
				continue
			}
			woIno := baseEntries[name].Ino
			s.whiteouts = append(s.whiteouts, woIno)
			delta = append(delta, format.DirEnt{Ino: woIno, Name: []byte(name)})
		}
	}

	for _, c := range children {
		name := c.Name()
		childHostPath := filepath.Join(hostPath, name)
		childPfsPath := path.Join(pfsPath, name)

		childInfo, err := c.Info()
		if err != nil {
			return nil, fmt.Errorf("builder: stat %s: %w", childHostPath, err)
		}

		baseEnt, isKnown := baseEntries[name]
		var assignIno format.Ino
		if isKnown {
			assignIno = baseEnt.Ino
		} else {
			assignIno = s.allocateIno()
		}

		// finalIno may differ from assignIno: renderEntry redirects
		// additional hard links to the inode already assigned to their
		// host inode, discarding assignIno for anything but the first
		// link. The entry recorded below must point at whichever inode
		// actually ended up rendered.
		finalIno, _, err := renderEntry(s, childHostPath, childPfsPath, assignIno, childInfo)
		if err != nil {
			return nil, err
		}
		full = append(full, format.DirEnt{Ino: finalIno, Name: []byte(name)})
		if !isKnown {
			delta = append(delta, format.DirEnt{Ino: finalIno, Name: []byte(name)})
		}
	}

	uid, gid := fileOwner(info)
	xattrs, err := readXattrs(hostPath)
	if err != nil {
		return nil, fmt.Errorf("builder: xattrs of %s: %w", hostPath, err)
	}

	db := &dirBuilder{
		ino:    ino,
		perm:   uint16(info.Mode().Perm()),
		uid:    uid,
		gid:    gid,
		xattrs: xattrs,
	}

	switch {
	case s.cfg.base == nil:
		db.lookBelow = false
		db.entries = full
	case !hadBase:
		db.lookBelow = false
		db.entries = full
	case len(delta) == 0:
		// Nothing added or removed directly in this directory; let it
		// resolve entirely through the base layer.
		return nil, nil
	default:
		db.lookBelow = true
		db.entries = delta
	}

	s.dirs = append(s.dirs, db)
	return db, nil
}

// renderEntry classifies one directory child, records its inode in the
// appropriate builder slice (queuing subdirectories onto s.pending rather
// than descending into them), and returns the inode number the entry
// resolves to: the one it was given, or for an additional hard link the
// inode already assigned to its host inode. alreadyRendered is true when
// the entry is an
// additional hard link to an inode rendered earlier, in which case the
// caller must not process it again.
func renderEntry(s *buildState, hostPath, pfsPath string, ino format.Ino, info fs.FileInfo) (format.Ino, bool, error) {
	hostIno, nlink, hasIdentity := fileIdentity(info)
	if hasIdentity && nlink > 1 {
		if mapped, seen := s.hostToPfs[hostIno]; seen {
			return mapped, true, nil
		}
		s.hostToPfs[hostIno] = ino
	}

	uid, gid := fileOwner(info)
	perm := uint16(info.Mode().Perm())
	xattrs, err := readXattrs(hostPath)
	if err != nil {
		return 0, false, fmt.Errorf("builder: xattrs of %s: %w", hostPath, err)
	}

	mode := info.Mode()
	switch {
	case mode&fs.ModeSymlink != 0:
		target, err := os.Readlink(hostPath)
		if err != nil {
			return 0, false, fmt.Errorf("builder: readlink %s: %w", hostPath, err)
		}
		s.others = append(s.others, &otherBuilder{
			ino: ino, kind: format.ModeSymlink, perm: perm, uid: uid, gid: gid,
			xattrs: xattrs, symlinkTarget: []byte(target),
		})

	case mode.IsDir():
		s.pending = append(s.pending, pendingDir{hostPath: hostPath, pfsPath: pfsPath, ino: ino})

	case mode.IsRegular():
		s.files = append(s.files, &fileBuilder{
			ino: ino, hostPath: hostPath, size: uint64(info.Size()),
			perm: perm, uid: uid, gid: gid, xattrs: xattrs,
		})

	case mode&fs.ModeNamedPipe != 0:
		s.others = append(s.others, &otherBuilder{ino: ino, kind: format.ModeFifo, perm: perm, uid: uid, gid: gid, xattrs: xattrs})

	case mode&fs.ModeSocket != 0:
		s.others = append(s.others, &otherBuilder{ino: ino, kind: format.ModeSock, perm: perm, uid: uid, gid: gid, xattrs: xattrs})

	case mode&fs.ModeDevice != 0:
		kind := format.ModeBlk
		if mode&fs.ModeCharDevice != 0 {
			kind = format.ModeChr
		}
		major, minor := deviceNumbers(info)
		s.others = append(s.others, &otherBuilder{
			ino: ino, kind: kind, major: major, minor: minor,
			perm: perm, uid: uid, gid: gid, xattrs: xattrs,
		})

	default:
		return 0, false, fmt.Errorf("builder: %s has unsupported file type %v", hostPath, mode)
	}

	return ino, false, nil
}
