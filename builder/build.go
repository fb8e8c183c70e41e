package builder

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/puzzlefs/puzzlefs/digest"
	"github.com/puzzlefs/puzzlefs/format"
	"github.com/puzzlefs/puzzlefs/store"
)

// Result is what a successful Build produces: the manifest naming the new
// layer (and, for a delta build, every layer beneath it) plus the new
// layer's own digest.
type Result struct {
	ManifestDigest digest.Digest
	LayerDigest    digest.Digest
}

// Build walks rootDir and writes a PuzzleFS image to st: chunked file data,
// a canonical metadata layer describing the tree, and a manifest. With
// WithBase, it instead builds a delta against an existing image: names
// already in the base keep their base inode numbers, and entries present
// in the base but absent from rootDir are recorded as whiteouts. Every
// regular file in rootDir is still chunked again and gets a record in the
// new layer; the base layer's chunk lists are not reused, and only the
// store's content addressing avoids writing identical chunk blobs twice.
func Build(ctx context.Context, st *store.Store, rootDir string, opts ...Option) (Result, error) {
	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}
	log := cfg.log()

	s, err := newBuildState(cfg, st)
	if err != nil {
		return Result{}, fmt.Errorf("builder: %w", err)
	}
	s.ctx = ctx

	log.Info("walking source tree", "root", rootDir, "delta", cfg.base != nil)
	if err := walkRoot(s, rootDir); err != nil {
		return Result{}, err
	}

	log.Info("chunking file data", "files", len(s.files), "compress", cfg.compress)
	if err := distributeChunks(s); err != nil {
		return Result{}, err
	}

	layerDigest, err := renderLayer(s)
	if err != nil {
		return Result{}, err
	}
	log.Info("wrote metadata layer", "digest", layerDigest.String(),
		"dirs", len(s.dirs), "files", len(s.files), "others", len(s.others))

	manifest := format.Manifest{ManifestVersion: format.CurrentManifestVersion}
	manifest.Metadatas = append(manifest.Metadatas, format.BlobRef{Digest: layerDigest})
	if cfg.base != nil {
		manifest.Metadatas = append(manifest.Metadatas, cfg.base.Manifest().Metadatas...)
	}

	buf, err := format.EncodeManifest(manifest)
	if err != nil {
		return Result{}, fmt.Errorf("builder: encode manifest: %w", err)
	}
	manifestDigest, err := st.Put(buf)
	if err != nil {
		return Result{}, fmt.Errorf("builder: write manifest: %w", err)
	}

	log.Info("build complete", "manifest", manifestDigest.String())
	return Result{ManifestDigest: manifestDigest, LayerDigest: layerDigest}, nil
}

// renderLayer assembles every inode accumulated by the walk into one
// metadata blob and writes it to the store. Payload offsets are only
// meaningful once the total inode count is fixed, which is why nothing is
// appended to the MetadataWriter until the walk and chunking are both done.
func renderLayer(s *buildState) (digest.Digest, error) {
	whiteoutInos := dedupeWhiteouts(s.whiteouts)
	finalCount := len(s.dirs) + len(s.files) + len(s.others) + len(whiteoutInos)

	w := format.NewMetadataWriter()
	inodes := make([]format.Inode, 0, finalCount)

	for _, d := range s.dirs {
		off, err := w.AppendDirList(format.DirList{LookBelow: d.lookBelow, Entries: d.entries}, finalCount)
		if err != nil {
			return digest.Digest{}, fmt.Errorf("builder: encode directory %d: %w", d.ino, err)
		}
		inode := format.Inode{
			Ino:         d.ino,
			Mode:        format.InodeMode{Kind: format.ModeDir, Offset: off},
			UID:         d.uid,
			GID:         d.gid,
			Permissions: d.perm,
		}
		if len(d.xattrs) > 0 {
			aoff, err := w.AppendInodeAdditional(format.InodeAdditional{Xattrs: d.xattrs}, finalCount)
			if err != nil {
				return digest.Digest{}, err
			}
			inode.Additional = &aoff
		}
		inodes = append(inodes, inode)
	}

	for _, f := range s.files {
		off, err := w.AppendFileChunkList(format.FileChunkList{Chunks: f.chunks}, finalCount)
		if err != nil {
			return digest.Digest{}, fmt.Errorf("builder: encode file %d: %w", f.ino, err)
		}
		inode := format.Inode{
			Ino:         f.ino,
			Mode:        format.InodeMode{Kind: format.ModeFile, Offset: off},
			UID:         f.uid,
			GID:         f.gid,
			Permissions: f.perm,
		}
		if len(f.xattrs) > 0 {
			aoff, err := w.AppendInodeAdditional(format.InodeAdditional{Xattrs: f.xattrs}, finalCount)
			if err != nil {
				return digest.Digest{}, err
			}
			inode.Additional = &aoff
		}
		inodes = append(inodes, inode)
	}

	for _, o := range s.others {
		inode := format.Inode{
			Ino:         o.ino,
			Mode:        format.InodeMode{Kind: o.kind, Major: o.major, Minor: o.minor},
			UID:         o.uid,
			GID:         o.gid,
			Permissions: o.perm,
		}
		if len(o.xattrs) > 0 || len(o.symlinkTarget) > 0 {
			aoff, err := w.AppendInodeAdditional(format.InodeAdditional{Xattrs: o.xattrs, SymlinkTarget: o.symlinkTarget}, finalCount)
			if err != nil {
				return digest.Digest{}, err
			}
			inode.Additional = &aoff
		}
		inodes = append(inodes, inode)
	}

	for _, ino := range whiteoutInos {
		inodes = append(inodes, format.NewWhiteout(ino))
	}

	sort.Slice(inodes, func(i, j int) bool { return inodes[i].Ino < inodes[j].Ino })
	for _, inode := range inodes {
		w.AddInode(inode)
	}

	var buf bytes.Buffer
	if err := w.Finish(&buf); err != nil {
		return digest.Digest{}, fmt.Errorf("builder: finish metadata layer: %w", err)
	}
	d, err := s.st.Put(buf.Bytes())
	if err != nil {
		return digest.Digest{}, fmt.Errorf("builder: write metadata layer: %w", err)
	}
	return d, nil
}

func dedupeWhiteouts(inos []format.Ino) []format.Ino {
	if len(inos) == 0 {
		return nil
	}
	seen := make(map[format.Ino]bool, len(inos))
	out := make([]format.Ino, 0, len(inos))
	for _, ino := range inos {
		if !seen[ino] {
			seen[ino] = true
			out = append(out, ino)
		}
	}
	return out
}
