package main

import (
	"context"
	"flag"
	"fmt"
)

func runRemove(args []string, globals globalFlags) error {
	fs := flag.NewFlagSet("remove", flag.ContinueOnError)
	project := fs.String("project", "", "path to the project manifest")
	if err := fs.Parse(args); err != nil {
		return err
	}

	path, err := resolveProjectPath(project)
	if err != nil {
		return err
	}

	ops, err := newOps(context.Background(), globals, false, false)
	if err != nil {
		return err
	}

	if err := ops.Remove(path); err != nil {
		return err
	}
	fmt.Println("removed")
	return nil
}
