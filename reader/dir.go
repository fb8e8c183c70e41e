package reader

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/puzzlefs/puzzlefs/format"
)

// Readdir returns the merged, whiteout-filtered, lexicographically ordered
// entry list for directory inode ino.
func (img *Image) Readdir(ino format.Ino) ([]format.DirEnt, error) {
	entries, err := img.mergedDirEntries(ino, 0)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].Name, entries[j].Name) < 0
	})
	return entries, nil
}

// mergedDirEntries implements the layered directory merge (§4.5): resolve
// the directory's own record starting at fromLayer, and if its look_below
// flag is set, recursively merge with the same ino's record in a deeper
// layer. Upper-layer entries shadow lower-layer entries of the same name;
// an upper-layer entry naming a whiteout inode removes that name instead
// of shadowing it.
func (img *Image) mergedDirEntries(ino format.Ino, fromLayer int) ([]format.DirEnt, error) {
	inode, layerIdx, ok, err := img.findInodeFrom(ino, fromLayer)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: ino %d", format.ErrNotFound, ino)
	}
	if inode.Mode.Kind != format.ModeDir {
		return nil, fmt.Errorf("%w: ino %d is not a directory", format.ErrInvalidInode, ino)
	}

	dl, err := img.layers[layerIdx].ReadDirList(inode.Mode.Offset)
	if err != nil {
		return nil, err
	}

	if !dl.LookBelow || layerIdx+1 >= len(img.layers) {
		return img.excludeWhiteouts(dl.Entries)
	}

	lower, err := img.mergedDirEntries(ino, layerIdx+1)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]format.DirEnt, len(lower)+len(dl.Entries))
	for _, e := range lower {
		byName[string(e.Name)] = e
	}
	for _, e := range dl.Entries {
		target, err := img.FindInode(e.Ino)
		if err != nil {
			return nil, err
		}
		if target.Mode.Kind == format.ModeWhiteout {
			delete(byName, string(e.Name))
			continue
		}
		byName[string(e.Name)] = e
	}

	merged := make([]format.DirEnt, 0, len(byName))
	for _, e := range byName {
		merged = append(merged, e)
	}
	return merged, nil
}

// excludeWhiteouts drops entries that point at a whiteout inode. A
// whiteout with no lower layer left to mask is invisible rather than an
// error (§3 edge case: "a whiteout at the bottom layer has no effect").
func (img *Image) excludeWhiteouts(entries []format.DirEnt) ([]format.DirEnt, error) {
	out := make([]format.DirEnt, 0, len(entries))
	for _, e := range entries {
		target, err := img.FindInode(e.Ino)
		if err != nil {
			return nil, err
		}
		if target.Mode.Kind == format.ModeWhiteout {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
