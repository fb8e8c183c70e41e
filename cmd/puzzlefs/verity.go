package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/puzzlefs/puzzlefs/digest"
	"github.com/puzzlefs/puzzlefs/format"
	"github.com/puzzlefs/puzzlefs/integrity"
	"github.com/puzzlefs/puzzlefs/oci"
	"github.com/puzzlefs/puzzlefs/store"
)

var verityCmd = &cobra.Command{
	Use:   "enable-fs-verity <image_dir> <tag> <root_digest>",
	Short: "Arm fs-verity on every blob an image references",
	Long: `enable-fs-verity enables the underlying filesystem's read-only integrity
mode on every blob a tagged image references, records the kernel-reported
measurements as the image's fs_verity_data, and checks the resulting root
digest against the one the caller expected.`,
	Args: exactArgs(3, "enable-fs-verity <image_dir> <tag> <root_digest>"),
	RunE: runVerity,
}

func runVerity(cmd *cobra.Command, args []string) error {
	imageDir, tag, wantHex := args[0], args[1], args[2]

	want, err := digest.Parse(wantHex)
	if err != nil {
		return usagef("bad root_digest %q: %v", wantHex, err)
	}

	st, err := store.Open(blobStoreDir(imageDir))
	if err != nil {
		return err
	}
	manifestDigest, err := oci.ManifestDigestForTag(imageDir, tag)
	if err != nil {
		return err
	}

	result, err := integrity.Enable(st, manifestDigest)
	if err != nil {
		return err
	}
	if result.RootDigest != [digest.Size]byte(want) {
		return fmt.Errorf("%w: computed root digest %x does not match expected %x", format.ErrIntegrityFailed, result.RootDigest, want)
	}

	if err := oci.PutRootfs(imageDir, st, result.ManifestDigest, result.RootDigest, tag); err != nil {
		return err
	}

	fmt.Printf("%x\n", result.RootDigest)
	return nil
}
