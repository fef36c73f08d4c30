package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/criticalup/criticalup/internal/errs"
	"github.com/criticalup/criticalup/internal/proxy"
	"github.com/criticalup/criticalup/internal/state"
)

// runWhich resolves a dispatch target without running it. Like run, this
// is a purely local lookup over already-installed state (spec §5's shared-
// lock read-only operations) and must not require network access or a
// signed keys document, so it builds a Dispatcher directly rather than
// going through newOps's trust bootstrap.
func runWhich(args []string, globals globalFlags) error {
	fs := flag.NewFlagSet("which", flag.ContinueOnError)
	project := fs.String("project", "", "path to the project manifest")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) != 1 {
		return errs.New(errs.Configuration, "invalid-usage", "usage: criticalup which [--project <p>] <name>")
	}

	root, err := state.DefaultRoot()
	if err != nil {
		return err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	d := proxy.New(root)
	path, err := d.WhichFrom(cwd, *project, rest[0])
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}
