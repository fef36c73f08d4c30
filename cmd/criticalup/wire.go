package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/criticalup/criticalup/internal/errs"
	"github.com/criticalup/criticalup/internal/hostinfo"
	"github.com/criticalup/criticalup/internal/lifecycle"
	"github.com/criticalup/criticalup/internal/manifest"
	"github.com/criticalup/criticalup/internal/state"
	"github.com/criticalup/criticalup/internal/transport"
	"github.com/criticalup/criticalup/internal/trust"
)

// newOps wires up the shared dependency graph every subcommand needs: the
// state root, a trust keychain anchored at the compiled-in root key, a
// caching HTTP client carrying whatever bearer token is in scope, and the
// detected host triple. This mirrors the teacher's Manager construction in
// cmd/zerb, collapsed into one place since criticalup has no long-lived
// daemon process to amortize it across.
func newOps(ctx context.Context, globals globalFlags, offline, reinstall bool) (*lifecycle.Ops, error) {
	root, err := state.DefaultRoot()
	if err != nil {
		return nil, err
	}

	rootKey, err := trust.LoadRootKey()
	if err != nil {
		return nil, err
	}
	keychain, err := trust.NewKeychain(rootKey, offline)
	if err != nil {
		return nil, err
	}

	log := globals.logger()

	token, err := lifecycle.ResolveToken(root)
	if err != nil {
		return nil, err
	}

	cache := transport.NewCache(root.Path)
	client := transport.NewClient(cache,
		transport.WithToken(token),
		transport.WithOffline(offline),
		transport.WithLogger(log),
	)

	if err := loadKeysDocument(ctx, client, keychain); err != nil {
		return nil, err
	}

	host, err := hostinfo.NewDetector().Detect(ctx)
	if err != nil {
		return nil, err
	}

	return &lifecycle.Ops{
		Root:        root,
		Client:      client,
		Keychain:    keychain,
		Host:        host,
		Log:         log,
		ManifestURL: defaultManifestURL,
		Reinstall:   reinstall,
	}, nil
}

// loadKeysDocument fetches and merges the signed keys document into
// keychain, completing the trust bootstrap phase before any release
// manifest or package is fetched (spec §4.1 "built up in phases").
func loadKeysDocument(ctx context.Context, client *transport.Client, keychain *trust.Keychain) error {
	raw, err := client.Fetch(ctx, transport.CategoryKeys, defaultKeysURL())
	if err != nil {
		return err
	}
	var env trust.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return errs.Wrap(errs.Configuration, "malformed-envelope", "decode keys document envelope", err)
	}
	return keychain.LoadAll(&env)
}

// resolveProjectPath honors --project when given, otherwise discovers the
// controlling manifest by walking up from the current directory (spec §4.6
// "Discover").
func resolveProjectPath(projectFlag *string) (string, error) {
	if *projectFlag != "" {
		return *projectFlag, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return manifest.Discover(cwd)
}
