// Package installer implements the Resolve/Plan/Acquire/Stage/Commit/Proxies
// pipeline that turns a resolved project manifest into a materialized,
// verified installation on disk (spec §4.5). It is grounded on the
// teacher's internal/binary Manager (download/verify/extract orchestration),
// generalized from a fixed two-binary catalog to an arbitrary signed release
// manifest, and on criticaltrust's integrity verifier for the file-manifest
// semantics.
package installer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/criticalup/criticalup/internal/catalog"
	"github.com/criticalup/criticalup/internal/corelog"
	"github.com/criticalup/criticalup/internal/errs"
	"github.com/criticalup/criticalup/internal/hostinfo"
	"github.com/criticalup/criticalup/internal/state"
	"github.com/criticalup/criticalup/internal/transport"
	"github.com/criticalup/criticalup/internal/trust"
)

// maxConcurrentAcquires bounds how many package archives are fetched and
// staged at once, per spec §5 "one logical task per package download".
const maxConcurrentAcquires = 4

// Installer owns the trust keychain, cache/transport client, and state root
// needed to carry a project manifest through to a committed installation.
type Installer struct {
	Root      *state.Root
	Client    *transport.Client
	Keychain  *trust.Keychain
	Host      *hostinfo.Info
	Log       corelog.Logger
	Reinstall bool
}

// New builds an Installer. log defaults to a no-op logger if nil.
func New(root *state.Root, client *transport.Client, keychain *trust.Keychain, host *hostinfo.Info, log corelog.Logger) *Installer {
	if log == nil {
		log = corelog.Noop()
	}
	return &Installer{Root: root, Client: client, Keychain: keychain, Host: host, Log: log}
}

// Request names what a single install pass is being asked to materialize.
type Request struct {
	Product          string
	Release          string
	Packages         []string // raw names, possibly containing ${host-triple}
	ManifestCatalog  string   // URL of the signed release manifest document
	ProjectManifest  string   // canonicalized path, used as the binding key
}

// Plan is the outcome of Resolve+Plan: everything needed to Acquire/Stage/
// Commit, without having touched the network for package bytes yet.
type Plan struct {
	InstallationID string
	Packages       []catalog.ResolvedPackage
	AlreadyExists  bool
}

// Resolve fetches and verifies the release manifest, then expands and looks
// up the requested packages (spec §4.5 step 1).
func (ins *Installer) Resolve(ctx context.Context, req Request) ([]catalog.ResolvedPackage, error) {
	raw, err := ins.Client.Fetch(ctx, transport.CategoryManifests, req.ManifestCatalog)
	if err != nil {
		return nil, err
	}

	var env trust.Envelope
	if err := unmarshalEnvelope(raw, &env); err != nil {
		return nil, err
	}

	manifest, err := catalog.DecodeVerified(&env, ins.Keychain)
	if err != nil {
		return nil, err
	}
	if manifest.Product != req.Product {
		return nil, errs.Newf(errs.Configuration, "package-not-in-release", "release manifest is for product %q, not %q", manifest.Product, req.Product)
	}

	return manifest.Resolve(req.Release, req.Packages, ins.Host)
}

// Plan derives the installation id from (product, release, sorted package
// digests) and checks whether it already exists on disk (spec §4.5 step 2).
func (ins *Installer) Plan(product, release string, packages []catalog.ResolvedPackage) (*Plan, error) {
	digests := make([]string, len(packages))
	for i, p := range packages {
		digests[i] = strings.ToLower(p.Entry.SHA256)
	}
	sort.Strings(digests)

	h := sha256.New()
	h.Write([]byte(product))
	h.Write([]byte{0})
	h.Write([]byte(release))
	for _, d := range digests {
		h.Write([]byte{0})
		h.Write([]byte(d))
	}
	id := hex.EncodeToString(h.Sum(nil))

	doc, err := ins.Root.Load()
	if err != nil {
		return nil, err
	}
	_, exists := doc.Installations[id]
	existsOnDisk := exists && dirExists(ins.Root.InstallationDir(id))

	return &Plan{InstallationID: id, Packages: packages, AlreadyExists: existsOnDisk}, nil
}

// Install runs the full pipeline for req, binding the result to
// req.ProjectManifest. If the plan's installation already exists and
// ins.Reinstall is false, only the binding is updated (spec §4.5 step 2:
// "reuse it; only update the binding").
func (ins *Installer) Install(ctx context.Context, req Request) (string, error) {
	packages, err := ins.Resolve(ctx, req)
	if err != nil {
		return "", err
	}

	plan, err := ins.Plan(req.Product, req.Release, packages)
	if err != nil {
		return "", err
	}

	lock, err := state.AcquireExclusive(ins.Root.Path, 0)
	if err != nil {
		return "", err
	}
	defer lock.Release()

	if !plan.AlreadyExists || ins.Reinstall {
		staged, fileRecords, execNames, err := ins.acquireAndStage(ctx, plan)
		if err != nil {
			return "", err
		}
		if err := ins.commit(plan.InstallationID, req, staged, fileRecords); err != nil {
			return "", err
		}
		ins.Log.Info("installation committed", "id", plan.InstallationID, "executables", fmt.Sprint(execNames))
	}

	doc, err := ins.Root.Load()
	if err != nil {
		return "", err
	}
	doc.Bind(req.ProjectManifest, plan.InstallationID)
	if err := ins.Root.Save(doc); err != nil {
		return "", err
	}

	if err := ins.RegenerateProxies(doc); err != nil {
		return "", err
	}

	return plan.InstallationID, nil
}

func dirExists(path string) bool {
	info, err := statDir(path)
	return err == nil && info
}

// acquireAll fetches every package's archive bytes concurrently, bounded by
// maxConcurrentAcquires (spec §5's "small worker pool" for I/O tasks).
func (ins *Installer) acquireAll(ctx context.Context, packages []catalog.ResolvedPackage) ([][]byte, error) {
	out := make([][]byte, len(packages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentAcquires)

	for i, pkg := range packages {
		i, pkg := i, pkg
		g.Go(func() error {
			data, err := ins.acquireOne(gctx, pkg)
			if err != nil {
				return err
			}
			out[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// acquireOne fetches and verifies a single package archive against its
// release-manifest digest and the revocation ledger (spec §4.5 step 3).
func (ins *Installer) acquireOne(ctx context.Context, pkg catalog.ResolvedPackage) ([]byte, error) {
	data, err := ins.Client.Fetch(ctx, transport.CategoryPackages, pkg.Entry.URL)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(data)
	got := hex.EncodeToString(sum[:])
	if !strings.EqualFold(got, pkg.Entry.SHA256) {
		return nil, errs.Newf(errs.Integrity, "digest-mismatch", "package %q: digest mismatch: got %s want %s", pkg.Name, got, pkg.Entry.SHA256)
	}
	if ins.Keychain.IsRevoked(sum[:]) {
		return nil, errs.Newf(errs.Trust, "revoked-artifact", "package %q: artifact %s is revoked", pkg.Name, got)
	}
	return data, nil
}

func unmarshalEnvelope(raw []byte, env *trust.Envelope) error {
	if err := jsonUnmarshal(raw, env); err != nil {
		return errs.Wrap(errs.Configuration, "malformed-envelope", "decode signed envelope", err)
	}
	return nil
}
