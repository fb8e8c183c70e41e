package main

import (
	"github.com/spf13/cobra"

	"github.com/puzzlefs/puzzlefs/extract"
	"github.com/puzzlefs/puzzlefs/oci"
	"github.com/puzzlefs/puzzlefs/reader"
	"github.com/puzzlefs/puzzlefs/store"
)

var extractCmd = &cobra.Command{
	Use:   "extract <image_dir> <tag> <dest_dir>",
	Short: "Write a PuzzleFS image's tree to a destination directory",
	Args:  exactArgs(3, "extract <image_dir> <tag> <dest_dir>"),
	RunE:  runExtract,
}

func runExtract(cmd *cobra.Command, args []string) error {
	imageDir, tag, destDir := args[0], args[1], args[2]

	st, err := store.Open(blobStoreDir(imageDir))
	if err != nil {
		return err
	}
	manifestDigest, err := oci.ManifestDigestForTag(imageDir, tag)
	if err != nil {
		return err
	}
	img, err := reader.Open(st, manifestDigest)
	if err != nil {
		return err
	}
	defer img.Close()

	return extract.Tree(img, destDir)
}
