// Package manifest parses and validates the per-project declaration file,
// criticalup.toml (spec §4.6). Decoding uses github.com/pelletier/go-toml/v2,
// promoted from a transitive (viper) dependency of the teacher to a direct
// one, since the project manifest format is fixed to TOML rather than the
// teacher's own Lua-based config.
package manifest

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/criticalup/criticalup/internal/errs"
)

// SupportedVersion is the only manifest-version this build accepts.
const SupportedVersion = 1

// FileName is the conventional name of the project manifest file.
const FileName = "criticalup.toml"

// Product is one `[products.<name>]` table.
type Product struct {
	Release  string   `toml:"release"`
	Packages []string `toml:"packages"`
}

// Manifest is the decoded, as-yet-unvalidated project manifest.
type Manifest struct {
	Version  int                `toml:"manifest-version"`
	Products map[string]Product `toml:"products"`
}

// Parse decodes raw TOML bytes and validates the result.
func Parse(data []byte) (*Manifest, string, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, "", errs.Wrap(errs.Configuration, "invalid-project-manifest", "parse project manifest", err)
	}
	if m.Version != SupportedVersion {
		return nil, "", errs.Newf(errs.Configuration, "unsupported-manifest-version", "unsupported manifest version %d", m.Version)
	}
	if len(m.Products) == 0 {
		return nil, "", errs.New(errs.Configuration, "invalid-project-manifest", "no product declared")
	}
	if len(m.Products) > 1 {
		return nil, "", errs.New(errs.Configuration, "unsupported-multiple-products", "unsupported multiple products")
	}
	var name string
	for k := range m.Products {
		name = k
	}
	return &m, name, nil
}

// Canonicalize resolves path to the absolute, symlink-resolved form that
// Load uses as the Project Manifest Binding key, without parsing the file's
// contents. Remove/Verify/Archive only need this form to look up an
// existing binding.
func Canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errs.Wrap(errs.Configuration, "invalid-project-manifest", "resolve manifest path", err)
	}
	canon, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errs.New(errs.Configuration, "invalid-project-manifest", "project manifest not found: "+abs)
		}
		return "", errs.Wrap(errs.Configuration, "invalid-project-manifest", "canonicalize manifest path", err)
	}
	return canon, nil
}

// Load reads and parses the manifest at path, returning the parsed document,
// the single product's name, and the canonicalized absolute path (used as
// the Project Manifest Binding key).
func Load(path string) (*Manifest, string, string, error) {
	canon, err := Canonicalize(path)
	if err != nil {
		return nil, "", "", err
	}

	data, err := os.ReadFile(canon)
	if err != nil {
		return nil, "", "", errs.Wrap(errs.Configuration, "invalid-project-manifest", "read project manifest", err)
	}

	m, product, err := Parse(data)
	if err != nil {
		return nil, "", "", err
	}
	return m, product, canon, nil
}

// Discover walks upward from dir looking for criticalup.toml, returning its
// path once found (spec §4.7 step 2).
func Discover(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", errs.Wrap(errs.Dispatch, "no-project-manifest", "resolve working directory", err)
	}
	for {
		candidate := filepath.Join(abs, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", errs.New(errs.Dispatch, "no-project-manifest", "no project manifest found")
		}
		abs = parent
	}
}

// Synthesize produces a default document declaring a single product for
// release, used by `init`.
func Synthesize(product, release string) ([]byte, error) {
	m := Manifest{
		Version: SupportedVersion,
		Products: map[string]Product{
			product: {Release: release, Packages: []string{"rustc-${host-triple}", "cargo-${host-triple}"}},
		},
	}
	out, err := toml.Marshal(m)
	if err != nil {
		return nil, errs.Wrap(errs.Configuration, "invalid-project-manifest", "marshal synthesized manifest", err)
	}
	return out, nil
}
