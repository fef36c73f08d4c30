package main

import (
	"fmt"

	"github.com/criticalup/criticalup/internal/errs"
	"github.com/criticalup/criticalup/internal/lifecycle"
	"github.com/criticalup/criticalup/internal/state"
)

func runAuth(args []string, globals globalFlags) error {
	if len(args) == 0 {
		return errs.New(errs.Configuration, "invalid-usage", "auth requires a subcommand: set, remove")
	}

	root, err := state.DefaultRoot()
	if err != nil {
		return err
	}

	switch args[0] {
	case "set":
		if len(args) < 2 {
			return errs.New(errs.Configuration, "invalid-usage", "usage: criticalup auth set <token>")
		}
		if err := lifecycle.AuthSet(root, args[1]); err != nil {
			return err
		}
		fmt.Println("token stored")
		return nil
	case "remove":
		if err := lifecycle.AuthRemove(root); err != nil {
			return err
		}
		fmt.Println("token removed")
		return nil
	default:
		return errs.Newf(errs.Configuration, "invalid-usage", "unknown auth subcommand: %s", args[0])
	}
}
