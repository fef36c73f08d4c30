package main

import (
	"net/url"
	"os"
	"strings"

	"github.com/criticalup/criticalup/internal/corelog"
	"github.com/criticalup/criticalup/internal/env"
	"github.com/criticalup/criticalup/internal/errs"
)

// globalFlags holds the options valid before any subcommand (spec §6
// "Global options"). They're parsed by hand, in the teacher's stdlib-flag
// style, rather than through a flag-parsing library (see DESIGN.md for why
// cobra/pflag were dropped).
type globalFlags struct {
	verbose   bool
	logLevel  string
	logFormat string
	version   bool
	help      bool
}

// parseGlobals strips any recognized global flag from the front of args,
// returning the remaining command + its own arguments untouched.
func parseGlobals(args []string) (globalFlags, []string) {
	var g globalFlags
	i := 0
	for i < len(args) {
		switch args[i] {
		case "-v", "--verbose":
			g.verbose = true
			i++
		case "--log-level":
			if i+1 < len(args) {
				g.logLevel = args[i+1]
				i += 2
			} else {
				i++
			}
		case "--log-format":
			if i+1 < len(args) {
				g.logFormat = args[i+1]
				i += 2
			} else {
				i++
			}
		case "-V", "--version":
			g.version = true
			i++
		case "-h", "--help":
			g.help = true
			i++
		default:
			return g, args[i:]
		}
	}
	return g, nil
}

func (g globalFlags) logger() corelog.Logger {
	formatName := g.logFormat
	if formatName == "" {
		formatName, _ = os.LookupEnv(env.LogFormat)
	}

	format := corelog.FormatDefault
	switch strings.ToLower(formatName) {
	case "pretty":
		format = corelog.FormatPretty
	case "tree":
		format = corelog.FormatTree
	case "json":
		format = corelog.FormatJSON
	}

	verbose := g.verbose
	if v, ok := os.LookupEnv(env.LogVerbose); ok && v != "" {
		verbose = true
	}

	return corelog.New(corelog.Options{Format: format, Verbose: verbose})
}

// defaultManifestURL builds the signed release-manifest URL for product,
// pointed at the well-known download server host (spec §6 "Release manifest
// format ... at a well-known URL parameterized by product and release").
// Operators pointing at a private mirror override it with
// CRITICALUP_MANIFEST_BASE_URL.
func defaultManifestURL(product string) string {
	base := manifestBaseURL()
	u := &url.URL{
		Scheme: base.Scheme,
		Host:   base.Host,
		Path:   strings.TrimRight(base.Path, "/") + "/manifests/" + product + ".json",
	}
	return u.String()
}

// defaultKeysURL builds the signed keys-document URL (spec §6 "Keys
// document ... JSON signed envelope enumerating non-root trusted keys").
func defaultKeysURL() string {
	base := manifestBaseURL()
	u := &url.URL{
		Scheme: base.Scheme,
		Host:   base.Host,
		Path:   strings.TrimRight(base.Path, "/") + "/keys.json",
	}
	return u.String()
}

func manifestBaseURL() *url.URL {
	if raw, ok := os.LookupEnv("CRITICALUP_MANIFEST_BASE_URL"); ok && raw != "" {
		if u, err := url.Parse(raw); err == nil {
			return u
		}
	}
	return &url.URL{Scheme: "https", Host: "criticalup-downloads.rust-lang.org"}
}

// exitCode maps an operation's error kind to a process exit status. A single
// non-zero code is spec-permissible; distinct codes per taxonomy category
// are offered here since the taxonomy already exists (spec §6).
func exitCode(err error) int {
	switch errs.KindOf(err) {
	case errs.Configuration:
		return 2
	case errs.Authentication:
		return 3
	case errs.Trust:
		return 4
	case errs.Transport:
		return 5
	case errs.Integrity:
		return 6
	case errs.State:
		return 7
	case errs.Dispatch:
		return 8
	default:
		return 1
	}
}
