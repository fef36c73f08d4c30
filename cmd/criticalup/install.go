package main

import (
	"context"
	"flag"
	"fmt"
)

func runInstall(ctx context.Context, args []string, globals globalFlags) error {
	fs := flag.NewFlagSet("install", flag.ContinueOnError)
	project := fs.String("project", "", "path to the project manifest")
	reinstall := fs.Bool("reinstall", false, "reinstall even if already bound")
	offline := fs.Bool("offline", false, "resolve entirely from cache, no network I/O")
	if err := fs.Parse(args); err != nil {
		return err
	}

	path, err := resolveProjectPath(project)
	if err != nil {
		return err
	}

	ops, err := newOps(ctx, globals, *offline, *reinstall)
	if err != nil {
		return err
	}

	id, err := ops.Install(ctx, path)
	if err != nil {
		return err
	}
	fmt.Printf("installed %s\n", id)
	return nil
}
