// Command dofdump prints the contents of DTrace Object Format images: raw
// files, the DOF sections of Mach-O and ELF binaries, or a live process.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
