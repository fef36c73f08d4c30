// Package lifecycle orchestrates the install/remove/clean/verify/archive/
// link operations the CLI surface exposes, wiring together trust, catalog,
// transport, state, installer, manifest, and proxy. It plays the same role
// the teacher's internal/binary.Manager plays for a fixed two-binary
// catalog, generalized to manifest-driven installations.
package lifecycle

import (
	"context"
	"io"
	"os"

	"github.com/criticalup/criticalup/internal/corelog"
	"github.com/criticalup/criticalup/internal/env"
	"github.com/criticalup/criticalup/internal/errs"
	"github.com/criticalup/criticalup/internal/hostinfo"
	"github.com/criticalup/criticalup/internal/installer"
	"github.com/criticalup/criticalup/internal/manifest"
	"github.com/criticalup/criticalup/internal/proxy"
	"github.com/criticalup/criticalup/internal/state"
	"github.com/criticalup/criticalup/internal/transport"
	"github.com/criticalup/criticalup/internal/trust"
)

// ResolveToken returns the bearer token to use for upstream requests:
// CRITICALUP_TOKEN when set, otherwise the stored credential, otherwise ""
// (spec §6 "Environment variables").
func ResolveToken(root *state.Root) (string, error) {
	if tok, ok := env.LookupToken(); ok && tok != "" {
		return tok, nil
	}
	return root.LoadToken()
}

// AuthSet stores token as the credential used when CRITICALUP_TOKEN isn't
// set (spec §6 "auth set").
func AuthSet(root *state.Root, token string) error {
	return root.SaveToken(token)
}

// AuthRemove clears the stored credential (spec §6 "auth remove").
func AuthRemove(root *state.Root) error {
	return root.RemoveToken()
}

// ManifestURL resolves the signed release-manifest document URL for a
// product. The external collaborator (CLI wiring) supplies this since the
// download server's URL scheme is outside the core's concern (spec §1).
type ManifestURL func(product string) string

// Ops bundles everything an operation needs.
type Ops struct {
	Root        *state.Root
	Client      *transport.Client
	Keychain    *trust.Keychain
	Host        *hostinfo.Info
	Log         corelog.Logger
	ManifestURL ManifestURL
	Reinstall   bool
}

func (o *Ops) logger() corelog.Logger {
	if o.Log == nil {
		return corelog.Noop()
	}
	return o.Log
}

// Install resolves projectManifestPath's product/release/packages and
// installs it, returning the installation id now bound to it.
func (o *Ops) Install(ctx context.Context, projectManifestPath string) (string, error) {
	m, productName, canon, err := manifest.Load(projectManifestPath)
	if err != nil {
		return "", err
	}
	product := m.Products[productName]

	ins := installer.New(o.Root, o.Client, o.Keychain, o.Host, o.logger())
	ins.Reinstall = o.Reinstall

	return ins.Install(ctx, installer.Request{
		Product:         productName,
		Release:         product.Release,
		Packages:        product.Packages,
		ManifestCatalog: o.ManifestURL(productName),
		ProjectManifest: canon,
	})
}

// Remove unbinds projectManifestPath, leaving its installation on disk with
// a zero refcount until Clean sweeps it (spec §4.4 "Unbind").
func (o *Ops) Remove(projectManifestPath string) error {
	canon, err := manifest.Canonicalize(projectManifestPath)
	if err != nil {
		return err
	}

	lock, err := state.AcquireExclusive(o.Root.Path, 0)
	if err != nil {
		return err
	}
	defer lock.Release()

	doc, err := o.Root.Load()
	if err != nil {
		return err
	}
	doc.Unbind(canon)
	if err := o.Root.Save(doc); err != nil {
		return err
	}

	ins := installer.New(o.Root, o.Client, o.Keychain, o.Host, o.logger())
	return ins.RegenerateProxies(doc)
}

// CleanResult reports what Clean removed.
type CleanResult struct {
	RemovedInstallations []string
}

// Clean sweeps every installation with zero bindings, removing its
// directory and state entry, then regenerates the proxy directory from the
// installations that remain (spec §4.4 "Collect"). It is idempotent: a
// second run with no new orphans removes nothing.
func (o *Ops) Clean() (*CleanResult, error) {
	lock, err := state.AcquireExclusive(o.Root.Path, 0)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	doc, err := o.Root.Load()
	if err != nil {
		return nil, err
	}

	orphans := doc.OrphanedInstallations()
	for _, id := range orphans {
		if err := os.RemoveAll(o.Root.InstallationDir(id)); err != nil {
			return nil, errs.Wrap(errs.State, "state-write-failed", "remove orphaned installation directory", err)
		}
		delete(doc.Installations, id)
	}
	if err := o.Root.Save(doc); err != nil {
		return nil, err
	}

	ins := installer.New(o.Root, o.Client, o.Keychain, o.Host, o.logger())
	if err := ins.RegenerateProxies(doc); err != nil {
		return nil, err
	}

	return &CleanResult{RemovedInstallations: orphans}, nil
}

// Verify resolves projectManifestPath's bound installation and recomputes
// every recorded file's digest against it (spec §4.5 "Verify").
func (o *Ops) Verify(projectManifestPath string) ([]installer.Mismatch, error) {
	canon, err := manifest.Canonicalize(projectManifestPath)
	if err != nil {
		return nil, err
	}

	lock, err := state.AcquireShared(o.Root.Path, 0)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	doc, err := o.Root.Load()
	if err != nil {
		return nil, err
	}
	id, ok := doc.Bindings[canon]
	if !ok {
		return nil, errs.New(errs.State, "missing-binding", "no installation bound to "+canon)
	}

	ins := installer.New(o.Root, o.Client, o.Keychain, o.Host, o.logger())
	return ins.Verify(id)
}

// Archive resolves projectManifestPath's bound installation and streams it
// to out (spec §4.5 "Archive").
func (o *Ops) Archive(projectManifestPath string, out io.Writer) error {
	canon, err := manifest.Canonicalize(projectManifestPath)
	if err != nil {
		return err
	}

	lock, err := state.AcquireShared(o.Root.Path, 0)
	if err != nil {
		return err
	}
	defer lock.Release()

	doc, err := o.Root.Load()
	if err != nil {
		return err
	}
	id, ok := doc.Bindings[canon]
	if !ok {
		return errs.New(errs.State, "missing-binding", "no installation bound to "+canon)
	}

	ins := installer.New(o.Root, o.Client, o.Keychain, o.Host, o.logger())
	return ins.Archive(id, out)
}

// Dispatcher returns a proxy.Dispatcher over the same state root, for the
// run/which/link operations.
func (o *Ops) Dispatcher() *proxy.Dispatcher {
	return proxy.New(o.Root)
}

// Init synthesizes a default project manifest for release, writing it to
// dir/criticalup.toml unless print is true, in which case it is written to
// w instead (spec §4.6 "init").
func Init(dir, product, release string, print bool, w io.Writer) error {
	data, err := manifest.Synthesize(product, release)
	if err != nil {
		return err
	}
	if print {
		_, err := w.Write(data)
		return err
	}
	path := dir + string(os.PathSeparator) + manifest.FileName
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errs.Wrap(errs.Configuration, "invalid-project-manifest", "write synthesized manifest", err)
	}
	return nil
}
