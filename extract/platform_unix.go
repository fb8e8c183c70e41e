//go:build unix

package extract

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/puzzlefs/puzzlefs/format"
)

func runningPrivileged() bool {
	return unix.Geteuid() == 0
}

func lchown(path string, uid, gid int) error {
	return unix.Lchown(path, uid, gid)
}

func setXattr(path, name string, value []byte) error {
	return unix.Lsetxattr(path, name, value, 0)
}

// makeSpecial recreates a fifo, character device, block device, or socket
// inode via mknod. Sockets are represented but mknod(2) cannot recreate a
// bound listening socket from a mode bit alone; the node is created with
// S_IFSOCK so its type round-trips even though it is never actually bound.
func makeSpecial(inode format.Inode, hostPath string) error {
	perm := uint32(inode.Permissions)
	switch inode.Mode.Kind {
	case format.ModeFifo:
		return unix.Mkfifo(hostPath, perm)
	case format.ModeChr:
		dev := unix.Mkdev(uint32(inode.Mode.Major), uint32(inode.Mode.Minor))
		return unix.Mknod(hostPath, unix.S_IFCHR|perm, int(dev))
	case format.ModeBlk:
		dev := unix.Mkdev(uint32(inode.Mode.Major), uint32(inode.Mode.Minor))
		return unix.Mknod(hostPath, unix.S_IFBLK|perm, int(dev))
	case format.ModeSock:
		return unix.Mknod(hostPath, unix.S_IFSOCK|perm, 0)
	default:
		return fmt.Errorf("%w: %s is not a special file kind", format.ErrInvalidFormat, inode.Mode.Kind)
	}
}
