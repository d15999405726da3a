// Command oidcmeta prints an identity provider's discovery document and key
// set, or serves them from a local caching mirror.
package main

import (
	"os"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	root := newRootCommand(os.Stdout)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		return 1
	}
	return 0
}
