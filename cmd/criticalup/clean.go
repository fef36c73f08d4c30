package main

import (
	"context"
	"flag"
	"fmt"
)

func runClean(args []string, globals globalFlags) error {
	fs := flag.NewFlagSet("clean", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ops, err := newOps(context.Background(), globals, false, false)
	if err != nil {
		return err
	}

	result, err := ops.Clean()
	if err != nil {
		return err
	}
	for _, id := range result.RemovedInstallations {
		fmt.Printf("removed %s\n", id)
	}
	if len(result.RemovedInstallations) == 0 {
		fmt.Println("nothing to clean")
	}
	return nil
}
