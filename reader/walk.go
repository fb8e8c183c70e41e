package reader

import (
	"path"

	"github.com/puzzlefs/puzzlefs/format"
)

// DirEntry is one node visited by Walk: its resolved path and inode.
type DirEntry struct {
	Path  string
	Ino   format.Ino
	Inode format.Inode
}

// Walker iterates a PuzzleFS image breadth-first, matching the order file
// content chunks are laid out in during a build, so sequential consumption
// of Walk's output tends to read the chunk store sequentially too.
type Walker struct {
	img   *Image
	queue []DirEntry
}

// Walk starts a breadth-first traversal of img from its root.
func Walk(img *Image) (*Walker, error) {
	root, err := img.FindInode(RootIno)
	if err != nil {
		return nil, err
	}
	return &Walker{img: img, queue: []DirEntry{{Path: "/", Ino: RootIno, Inode: root}}}, nil
}

// Next returns the next entry in breadth-first order, or (DirEntry{},
// false, nil) once the traversal is complete.
func (w *Walker) Next() (DirEntry, bool, error) {
	if len(w.queue) == 0 {
		return DirEntry{}, false, nil
	}
	de := w.queue[0]
	w.queue = w.queue[1:]

	if de.Inode.Mode.Kind == format.ModeDir {
		entries, err := w.img.Readdir(de.Ino)
		if err != nil {
			return DirEntry{}, false, err
		}
		for _, e := range entries {
			inode, err := w.img.FindInode(e.Ino)
			if err != nil {
				return DirEntry{}, false, err
			}
			w.queue = append(w.queue, DirEntry{
				Path:  path.Join(de.Path, string(e.Name)),
				Ino:   e.Ino,
				Inode: inode,
			})
		}
	}

	return de, true, nil
}
