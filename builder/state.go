package builder

import (
	"context"

	"github.com/puzzlefs/puzzlefs/format"
	"github.com/puzzlefs/puzzlefs/store"
)

// dirBuilder accumulates one directory's rendered inode: its own entry list
// (either the full listing, for a fresh build, or a delta against the base
// layer's merged view) plus the permission/ownership/xattr bits every inode
// carries.
type dirBuilder struct {
	ino       format.Ino
	perm      uint16
	uid, gid  uint32
	xattrs    []format.Xattr
	lookBelow bool
	entries   []format.DirEnt
}

// fileBuilder accumulates one regular file's inode. chunks is filled in by
// distributeChunks once the file's data has been streamed through the
// chunker; until then it is nil.
type fileBuilder struct {
	ino      format.Ino
	hostPath string
	size     uint64
	perm     uint16
	uid, gid uint32
	xattrs   []format.Xattr
	chunks   []format.FileChunk
}

// otherBuilder accumulates every inode kind that isn't a directory or a
// regular file: symlinks, fifos, sockets, and character/block devices.
type otherBuilder struct {
	ino           format.Ino
	kind          format.ModeKind
	major, minor  uint64
	perm          uint16
	uid, gid      uint32
	xattrs        []format.Xattr
	symlinkTarget []byte
}

// buildState is the mutable accumulator threaded through a single Build
// call's tree walk. Nothing here is written to the metadata blob until the
// walk and chunk distribution have both finished, since payload offsets
// depend on the final, only-then-known, total inode count.
type buildState struct {
	cfg *config
	st  *store.Store
	ctx context.Context

	dirs   []*dirBuilder
	files  []*fileBuilder
	others []*otherBuilder

	// whiteouts holds the inode numbers of removed base entries; each gets
	// a format.NewWhiteout record in the rendered inode vector.
	whiteouts []format.Ino

	// hostToPfs maps a host inode number to the PuzzleFS inode already
	// assigned to it, so additional hard links reuse one inode and one
	// set of chunks instead of duplicating the file.
	hostToPfs map[uint64]format.Ino

	nextIno format.Ino

	// pending holds directories discovered but not yet processed, so
	// walkRoot can drain one tree level before starting the next: inode
	// allocation and the file-content stream both follow breadth-first,
	// lexicographic order, matching build(T)'s definition.
	pending []pendingDir
}

// pendingDir is one directory queued for processing: a subdirectory found
// while processing its parent, waiting its turn behind every directory
// already queued at or above its own depth.
type pendingDir struct {
	hostPath string
	pfsPath  string
	ino      format.Ino
}

func newBuildState(cfg *config, st *store.Store) (*buildState, error) {
	s := &buildState{
		cfg:       cfg,
		st:        st,
		ctx:       context.Background(),
		hostToPfs: make(map[uint64]format.Ino),
		nextIno:   2,
	}
	if cfg.base != nil {
		max, err := cfg.base.MaxInoOverall()
		if err != nil {
			return nil, err
		}
		s.nextIno = max + 1
	}
	return s, nil
}

func (s *buildState) allocateIno() format.Ino {
	ino := s.nextIno
	s.nextIno++
	return ino
}

// baseDirEntries returns the base image's merged, whiteout-filtered entry
// list for the directory at pfsPath, keyed by name, and whether that
// directory exists in the base at all.
func (s *buildState) baseDirEntries(pfsPath string) (map[string]format.DirEnt, bool) {
	if s.cfg.base == nil {
		return nil, false
	}
	inode, ino, err := s.cfg.base.Lookup(pfsPath)
	if err != nil || inode.Mode.Kind != format.ModeDir {
		return nil, false
	}
	entries, err := s.cfg.base.Readdir(ino)
	if err != nil {
		return nil, false
	}
	byName := make(map[string]format.DirEnt, len(entries))
	for _, e := range entries {
		byName[string(e.Name)] = e
	}
	return byName, true
}
