// Command fabricnode is a demonstration harness for the participant driver:
// genkey provisions a node's key pair, run wires a node's capabilities
// together and services incoming pushes over transport. Neither protocol
// nor participant depends on this package; it exists to show the library
// running end to end, the same role the teacher's cmd/blow and cmd/safe
// binaries play for the underlying consensus library.
package main

import (
	"fmt"
	"os"
)

const usage = `usage:

	fabricnode genkey <path-to-key-file>
	fabricnode run <path-to-config-file>
	fabricnode tail-invalid <storage-dir> [transaction-hash]
`

func main() {
	if len(os.Args) < 3 {
		fmt.Print(usage)
		os.Exit(1)
	}
	var err error
	switch os.Args[1] {
	case "genkey":
		err = genKey(os.Args[2])
	case "run":
		err = run(os.Args[2])
	case "tail-invalid":
		err = tailInvalid(os.Args[2])
	default:
		fmt.Print(usage)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "fabricnode: %v\n", err)
		os.Exit(1)
	}
}
