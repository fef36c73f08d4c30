package main

import (
	"context"
	"flag"
	"os"
)

func runArchive(ctx context.Context, args []string, globals globalFlags) error {
	fs := flag.NewFlagSet("archive", flag.ContinueOnError)
	project := fs.String("project", "", "path to the project manifest")
	offline := fs.Bool("offline", false, "resolve entirely from cache, no network I/O")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()

	path, err := resolveProjectPath(project)
	if err != nil {
		return err
	}

	ops, err := newOps(ctx, globals, *offline, false)
	if err != nil {
		return err
	}

	out := os.Stdout
	if len(rest) > 0 {
		f, err := os.Create(rest[0])
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	return ops.Archive(path, out)
}
