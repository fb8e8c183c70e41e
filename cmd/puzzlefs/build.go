package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/puzzlefs/puzzlefs/builder"
	"github.com/puzzlefs/puzzlefs/digest"
	"github.com/puzzlefs/puzzlefs/oci"
	"github.com/puzzlefs/puzzlefs/reader"
	"github.com/puzzlefs/puzzlefs/store"
)

var (
	buildBaseTag  string
	buildCompress bool
)

var buildCmd = &cobra.Command{
	Use:   "build <source_dir> <image_dir> <tag>",
	Short: "Build a PuzzleFS image from a source directory",
	Args:  exactArgs(3, "build <source_dir> <image_dir> <tag> [--base <tag>] [--compress]"),
	RunE:  runBuild,
}

func init() {
	buildCmd.Flags().StringVar(&buildBaseTag, "base", "", "tag of a previously built image to use as the delta base")
	buildCmd.Flags().BoolVar(&buildCompress, "compress", false, "zstd-compress file-data chunk blobs")
}

func runBuild(cmd *cobra.Command, args []string) error {
	sourceDir, imageDir, tag := args[0], args[1], args[2]

	st, err := store.Open(blobStoreDir(imageDir))
	if err != nil {
		return err
	}

	opts := []builder.Option{
		builder.WithLogger(newLogger()),
		builder.WithCompression(buildCompress),
	}

	if buildBaseTag != "" {
		baseManifest, err := oci.ManifestDigestForTag(imageDir, buildBaseTag)
		if err != nil {
			return fmt.Errorf("resolve base tag %q: %w", buildBaseTag, err)
		}
		baseImg, err := reader.Open(st, baseManifest)
		if err != nil {
			return fmt.Errorf("open base image %q: %w", buildBaseTag, err)
		}
		defer baseImg.Close()
		opts = append(opts, builder.WithBase(baseImg))
	}

	res, err := builder.Build(context.Background(), st, sourceDir, opts...)
	if err != nil {
		return err
	}

	var zero [digest.Size]byte
	if err := oci.PutRootfs(imageDir, st, res.ManifestDigest, zero, tag); err != nil {
		return err
	}

	fmt.Println(res.ManifestDigest.String())
	return nil
}
