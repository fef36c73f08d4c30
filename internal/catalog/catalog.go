// Package catalog provides a typed representation of release manifests: the
// signed document that binds product/release/package names to the archives
// that implement them. It is grounded on criticaltrust's v2/manifests.rs
// Package/PackageManifest types, adapted to the release-manifest shape
// described in spec §4.2 (product -> release label -> packages).
package catalog

import (
	"sort"

	"github.com/criticalup/criticalup/internal/errs"
	"github.com/criticalup/criticalup/internal/hostinfo"
	"github.com/criticalup/criticalup/internal/trust"
)

// SupportedManifestVersion is the only release-manifest schema version this
// build understands (spec §4.2 "Manifest format versioning is explicit").
const SupportedManifestVersion = 1

// PackageEntry is one package's description within a release, as carried in
// the release manifest's packages map.
type PackageEntry struct {
	URL    string `json:"url"`
	SHA256 string `json:"sha256"`
	Format string `json:"format"` // "tar" or "tar.zst"
	Size   int64  `json:"size,omitempty"`
}

// Release is the set of packages available under one release label of one
// product.
type Release struct {
	Packages map[string]PackageEntry `json:"packages"`
}

// ReleaseManifest is the authoritative description of a release, signed by a
// key with RoleReleases.
type ReleaseManifest struct {
	Version  int                 `json:"manifest-version"`
	Product  string              `json:"product"`
	Releases map[string]Release  `json:"releases"`
}

func (ReleaseManifest) SignedByRole() trust.Role { return trust.RoleReleases }

// DecodeVerified verifies env under src and decodes it into a ReleaseManifest,
// rejecting any manifest whose version this build doesn't recognize.
func DecodeVerified(env *trust.Envelope, src trust.KeySource) (*ReleaseManifest, error) {
	var manifest ReleaseManifest
	if err := env.Verify(src, trust.RoleReleases, &manifest); err != nil {
		return nil, err
	}
	if manifest.Version != SupportedManifestVersion {
		return nil, errs.Newf(errs.Configuration, "unsupported-manifest-version", "unsupported manifest version %d", manifest.Version)
	}
	return &manifest, nil
}

// Resolve expands ${host-triple} in each requested package name against
// host, then looks each one up in the named release. Unknown packages fail
// with the Configuration kind per spec §4.2.
func (m *ReleaseManifest) Resolve(releaseLabel string, packageNames []string, host *hostinfo.Info) ([]ResolvedPackage, error) {
	release, ok := m.Releases[releaseLabel]
	if !ok {
		return nil, errs.Newf(errs.Configuration, "unknown-release", "release %q not found for product %q", releaseLabel, m.Product)
	}

	out := make([]ResolvedPackage, 0, len(packageNames))
	for _, name := range packageNames {
		resolvedName := host.Substitute(name)
		entry, ok := release.Packages[resolvedName]
		if !ok {
			return nil, errs.Newf(errs.Configuration, "package-not-in-release", "package %q not in release %q", resolvedName, releaseLabel)
		}
		out = append(out, ResolvedPackage{Name: resolvedName, Entry: entry})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ResolvedPackage is a package name paired with its catalog entry, after
// ${host-triple} substitution and lookup.
type ResolvedPackage struct {
	Name  string
	Entry PackageEntry
}
