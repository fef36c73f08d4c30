package catalog

import (
	"github.com/criticalup/criticalup/internal/errs"
	"github.com/criticalup/criticalup/internal/trust"
)

// PackageFile describes one file inside an installed package, as recorded
// in that package's manifest (original_source/crates/criticaltrust/src/v2/
// manifests.rs Package/PackageFile).
type PackageFile struct {
	Path       string `json:"path"`
	PosixMode  uint32 `json:"posix_mode"`
	SHA256     string `json:"sha256"`
	NeedsProxy bool   `json:"needs_proxy"`
}

// PackageManifest enumerates the files a package installs, their digests,
// and which files need a binary proxy registered for them. It is signed by
// a key with RolePackages and carried inside the archive itself.
type PackageManifest struct {
	Version         int           `json:"manifest-version"`
	Product         string        `json:"product"`
	Package         string        `json:"package"`
	Files           []PackageFile `json:"files"`
	ManagedPrefixes []string      `json:"managed_prefixes,omitempty"`
}

func (PackageManifest) SignedByRole() trust.Role { return trust.RolePackages }

// DecodePackageManifest verifies env under src and decodes it into a
// PackageManifest, rejecting unrecognized schema versions.
func DecodePackageManifest(env *trust.Envelope, src trust.KeySource) (*PackageManifest, error) {
	var manifest PackageManifest
	if err := env.Verify(src, trust.RolePackages, &manifest); err != nil {
		return nil, err
	}
	if manifest.Version != SupportedManifestVersion {
		return nil, errs.Newf(errs.Configuration, "unsupported-manifest-version", "unsupported package manifest version %d", manifest.Version)
	}
	return &manifest, nil
}
