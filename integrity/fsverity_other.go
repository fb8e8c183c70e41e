//go:build !linux

package integrity

import (
	"fmt"

	"github.com/puzzlefs/puzzlefs/digest"
	"github.com/puzzlefs/puzzlefs/format"
)

func enableFile(path string) error {
	return fmt.Errorf("%w: fs-verity is only supported on linux, cannot enable on %s", format.ErrFeatureUnsupported, path)
}

func measureFile(path string) ([digest.Size]byte, error) {
	var out [digest.Size]byte
	return out, fmt.Errorf("%w: fs-verity is only supported on linux, cannot measure %s", format.ErrFeatureUnsupported, path)
}
