package main

import (
	"context"
	"fmt"
	"os"
)

// version is set at build time via -ldflags, matching the teacher's cmd/zerb
// convention.
var version = "v0.0.1-alpha"

func main() {
	args := os.Args[1:]
	globals, rest := parseGlobals(args)

	if globals.version {
		fmt.Printf("criticalup %s\n", version)
		return
	}
	if globals.help || len(rest) == 0 {
		printUsage()
		if len(rest) == 0 && !globals.help {
			os.Exit(1)
		}
		return
	}

	ctx := context.Background()
	cmd, cmdArgs := rest[0], rest[1:]

	var err error
	switch cmd {
	case "auth":
		err = runAuth(cmdArgs, globals)
	case "install":
		err = runInstall(ctx, cmdArgs, globals)
	case "remove":
		err = runRemove(cmdArgs, globals)
	case "clean":
		err = runClean(cmdArgs, globals)
	case "verify":
		err = runVerify(cmdArgs, globals)
	case "archive":
		err = runArchive(ctx, cmdArgs, globals)
	case "run":
		err = runRun(ctx, cmdArgs, globals)
	case "which":
		err = runWhich(cmdArgs, globals)
	case "link":
		err = runLink(cmdArgs, globals)
	case "init":
		err = runInit(cmdArgs, globals)
	case "doc":
		err = runDoc(cmdArgs, globals)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func printUsage() {
	fmt.Println("╔══════════════════════════════════════════════════════════╗")
	fmt.Println("║  criticalup - per-project toolchain manager               ║")
	fmt.Println("╚══════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  criticalup auth set                       Store a download-server token")
	fmt.Println("  criticalup auth remove                    Remove the stored token")
	fmt.Println("  criticalup install [--project <p>] [--reinstall] [--offline]")
	fmt.Println("  criticalup remove [--project <p>]         Unbind the current project")
	fmt.Println("  criticalup clean                          Sweep unbound installations")
	fmt.Println("  criticalup verify [--project <p>]         Recheck installed file digests")
	fmt.Println("  criticalup archive [<out>] [--offline]    Write a tar of the installation")
	fmt.Println("  criticalup run [--strict] [--project <p>] -- <cmd> [args...]")
	fmt.Println("  criticalup which [--project <p>] <name>   Resolve a binary without running it")
	fmt.Println("  criticalup link {create|remove|show}      Register the proxy bin directory")
	fmt.Println("  criticalup init --release <label> [--print]")
	fmt.Println("  criticalup doc                             Print the project manifest schema")
	fmt.Println()
	fmt.Println("Global options:")
	fmt.Println("  -v, --verbose              Raise log level to debug")
	fmt.Println("  --log-level <directive>    Accepted; has no effect on logging")
	fmt.Println("  --log-format <format>      default, pretty, tree, or json")
	fmt.Println("  -V, --version              Show version information")
	fmt.Println("  -h, --help                 Show this help")
}
