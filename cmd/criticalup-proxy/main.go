// Command criticalup-proxy is the payload every entry in proxy/bin/ is a
// copy (or hardlink) of. It dispatches purely on the name it was invoked
// as (spec §4.7): every "rustc", "cargo", etc. in proxy/bin/ is this same
// binary, and os.Args[0] is all it needs to find the real toolchain.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/criticalup/criticalup/internal/proxy"
	"github.com/criticalup/criticalup/internal/state"
)

func main() {
	root, err := state.DefaultRoot()
	if err != nil {
		fail(err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		fail(err)
	}

	d := proxy.New(root)
	name := proxy.InvokedName(os.Args[0])

	code, err := d.Run(context.Background(), proxy.RunOptions{
		Cwd:  cwd,
		Name: name,
		Args: os.Args[1:],
	})
	if err != nil {
		fail(err)
	}
	os.Exit(code)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
