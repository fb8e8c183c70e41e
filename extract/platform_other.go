//go:build !unix

package extract

import (
	"fmt"

	"github.com/puzzlefs/puzzlefs/format"
)

func runningPrivileged() bool { return false }

func lchown(string, int, int) error { return nil }

func setXattr(string, string, []byte) error { return nil }

func makeSpecial(inode format.Inode, hostPath string) error {
	return fmt.Errorf("%w: special files are not supported on this platform (%s at %s)", format.ErrFeatureUnsupported, inode.Mode.Kind, hostPath)
}
