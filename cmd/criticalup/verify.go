package main

import (
	"context"
	"flag"
	"fmt"
)

func runVerify(args []string, globals globalFlags) error {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
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

	mismatches, err := ops.Verify(path)
	if err != nil {
		return err
	}
	if len(mismatches) == 0 {
		fmt.Println("ok")
		return nil
	}
	for _, m := range mismatches {
		fmt.Printf("mismatch %s: want %s got %s\n", m.Path, m.Want, m.Got)
	}
	return fmt.Errorf("%d file(s) failed verification", len(mismatches))
}
