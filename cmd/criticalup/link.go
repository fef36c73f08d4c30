package main

import (
	"context"
	"fmt"

	"github.com/criticalup/criticalup/internal/errs"
	"github.com/criticalup/criticalup/internal/proxy"
)

func runLink(args []string, globals globalFlags) error {
	if len(args) != 1 {
		return errs.New(errs.Configuration, "invalid-usage", "usage: criticalup link {create|remove|show}")
	}

	ops, err := newOps(context.Background(), globals, false, false)
	if err != nil {
		return err
	}
	d := proxy.New(ops.Root)

	switch args[0] {
	case "create":
		if err := d.LinkCreate("criticalup"); err != nil {
			return err
		}
		fmt.Println("link created")
		return nil
	case "remove":
		if err := d.LinkRemove(); err != nil {
			return err
		}
		fmt.Println("link removed")
		return nil
	case "show":
		rec, err := d.LinkShow()
		if err != nil {
			return err
		}
		if rec == nil {
			fmt.Println("no link registered")
			return nil
		}
		fmt.Printf("%s -> %s\n", rec.Name, rec.ProxyPath)
		return nil
	default:
		return errs.Newf(errs.Configuration, "invalid-usage", "unknown link subcommand: %s", args[0])
	}
}
