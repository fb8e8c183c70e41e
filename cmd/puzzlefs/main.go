// Command puzzlefs is a thin driver over the build/reader/vfs/integrity
// packages: enough of a CLI to build, mount-handshake, extract, and arm
// integrity on an image from a shell, standing in for the production CLI
// and FUSE host that this repository does not implement.
package main

import "os"

func main() {
	os.Exit(Execute())
}
