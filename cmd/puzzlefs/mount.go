package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/puzzlefs/puzzlefs/digest"
	"github.com/puzzlefs/puzzlefs/integrity"
	"github.com/puzzlefs/puzzlefs/oci"
	"github.com/puzzlefs/puzzlefs/reader"
	"github.com/puzzlefs/puzzlefs/store"
	"github.com/puzzlefs/puzzlefs/vfs"
)

var (
	mountForeground bool
	mountReadyPipe  string
	mountDigest     string
)

var mountCmd = &cobra.Command{
	Use:   "mount <image_dir> <tag> <mountpoint>",
	Short: "Validate and open a PuzzleFS image, ready for a VFS host to bind",
	Long: `mount opens an image, optionally verifies its fs-verity root digest,
and signals readiness on the pipe named by -i. It does not itself dispatch
FUSE or in-kernel VFS callbacks: binding vfs.FS to a live mountpoint is the
job of the external filesystem host this command hands off to.`,
	Args: exactArgs(3, "mount [-f] [-i <pipe>] [--digest <hex>] <image_dir> <tag> <mountpoint>"),
	RunE: runMount,
}

func init() {
	mountCmd.Flags().BoolVarP(&mountForeground, "foreground", "f", false, "run in the foreground instead of returning once ready")
	mountCmd.Flags().StringVarP(&mountReadyPipe, "ready-pipe", "i", "", "path of a pipe to signal readiness on ('s' or 'f')")
	mountCmd.Flags().StringVar(&mountDigest, "digest", "", "expected fs-verity root digest (hex); arms integrity verification")
}

func runMount(cmd *cobra.Command, args []string) error {
	imageDir, tag, mountpoint := args[0], args[1], args[2]
	log := newLogger()

	fs, err := openAndVerify(imageDir, tag)
	signalReady(mountReadyPipe, err)
	if err != nil {
		return err
	}
	defer fs.Close()

	log.Info("image ready to mount", "tag", tag, "mountpoint", mountpoint)
	fmt.Printf("puzzlefs image %q validated; bind vfs.FS to %s via a VFS host to complete the mount\n", tag, mountpoint)

	if !mountForeground {
		return nil
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	return nil
}

// openAndVerify resolves tag to its manifest, opens the image, and if
// --digest was given, verifies the manifest's own fs-verity measurement
// against it before returning.
func openAndVerify(imageDir, tag string) (*vfs.FS, error) {
	st, err := store.Open(blobStoreDir(imageDir))
	if err != nil {
		return nil, err
	}
	manifestDigest, err := oci.ManifestDigestForTag(imageDir, tag)
	if err != nil {
		return nil, err
	}

	if mountDigest != "" {
		expected, err := digest.Parse(mountDigest)
		if err != nil {
			return nil, usagef("bad --digest value %q: %v", mountDigest, err)
		}
		if err := integrity.Verify(st, manifestDigest, [digest.Size]byte(expected)); err != nil {
			return nil, err
		}
	}

	img, err := reader.Open(st, manifestDigest)
	if err != nil {
		return nil, err
	}
	return vfs.New(img), nil
}

// signalReady writes the one-shot ready signal ('s' success, 'f' failure)
// to the named pipe, per the host handshake in spec.md §5. It is a no-op
// if no pipe was named.
func signalReady(pipePath string, mountErr error) {
	if pipePath == "" {
		return
	}
	f, err := os.OpenFile(pipePath, os.O_WRONLY, 0)
	if err != nil {
		return
	}
	defer f.Close()
	if mountErr == nil {
		f.WriteString("s")
	} else {
		f.WriteString("f")
	}
}
