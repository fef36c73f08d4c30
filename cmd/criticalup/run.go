package main

import (
	"context"
	"os"

	"github.com/criticalup/criticalup/internal/errs"
	"github.com/criticalup/criticalup/internal/proxy"
	"github.com/criticalup/criticalup/internal/state"
)

// runRun implements the `run` subcommand's own flag handling rather than
// package flag, since everything after `--` belongs to the invoked command
// and must not be touched by our parser (spec §6 "run [--strict]
// [--project <p>] -- <cmd> [args...]"). Dispatch is a purely local lookup
// over already-installed state (spec §5's shared-lock read-only
// operations, scenario 7's dispatch from a project subdirectory), so it
// builds a Dispatcher directly over the state root rather than going
// through newOps's trust bootstrap, which would require network access and
// a valid signed keys document just to run an already-installed binary.
func runRun(ctx context.Context, args []string, globals globalFlags) error {
	var strict bool
	var project string
	i := 0
	for i < len(args) {
		switch args[i] {
		case "--strict":
			strict = true
			i++
		case "--project":
			if i+1 >= len(args) {
				return errs.New(errs.Configuration, "invalid-usage", "--project requires a value")
			}
			project = args[i+1]
			i += 2
		case "--":
			i++
			goto parsed
		default:
			goto parsed
		}
	}
parsed:
	rest := args[i:]
	if len(rest) == 0 {
		return errs.New(errs.Configuration, "invalid-usage", "usage: criticalup run [--strict] [--project <p>] -- <cmd> [args...]")
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
	code, err := d.Run(ctx, proxy.RunOptions{
		Cwd:          cwd,
		ManifestPath: project,
		Name:         rest[0],
		Args:         rest[1:],
		Strict:       strict,
	})
	if err != nil {
		return err
	}
	if code != 0 {
		os.Exit(code)
	}
	return nil
}
