package main

import (
	"flag"
	"os"

	"github.com/criticalup/criticalup/internal/errs"
	"github.com/criticalup/criticalup/internal/lifecycle"
)

func runInit(args []string, globals globalFlags) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	product := fs.String("product", "rustc", "product to scaffold a manifest for")
	release := fs.String("release", "", "release label, e.g. stable-25.02.0")
	print := fs.Bool("print", false, "write to stdout instead of criticalup.toml")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *release == "" {
		return errs.New(errs.Configuration, "invalid-usage", "usage: criticalup init --release <label> [--print]")
	}

	dir, err := os.Getwd()
	if err != nil {
		return err
	}

	return lifecycle.Init(dir, *product, *release, *print, os.Stdout)
}
