package main

import "fmt"

// runDoc prints the project manifest schema (spec §6 "doc"), since
// criticalup.toml has no other discoverable reference once a project has
// none yet.
func runDoc(args []string, globals globalFlags) error {
	fmt.Println(`criticalup.toml schema:

manifest-version = 1

[products.<product-name>]
release  = "<release-label>"           # e.g. "stable-25.02.0", "nightly-2026-01-15"
packages = ["<package>-${host-triple}"] # e.g. "rustc-${host-triple}", "cargo-${host-triple}"

Exactly one [products.*] table is supported per manifest. ${host-triple}
is substituted with the detected host's target triple at install time.`)
	return nil
}
