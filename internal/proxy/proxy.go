// Package proxy implements the binary-proxy dispatcher (spec §4.7): given
// the name a proxy executable was invoked as and the caller's working
// directory, it discovers the controlling project manifest, resolves its
// bound installation, and locates the matching executable within it. It is
// grounded on the teacher's cmd/zerb/activate.go pattern of shelling out to
// an installed tool via os/exec with an augmented environment.
package proxy

import (
	"path/filepath"
	"runtime"
	"strings"

	"github.com/criticalup/criticalup/internal/errs"
	"github.com/criticalup/criticalup/internal/manifest"
	"github.com/criticalup/criticalup/internal/state"
)

// canonicalize matches the path form manifest.Load records bindings under,
// so a manifest discovered by walking parents resolves to the same binding
// key it was installed with.
func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errs.Wrap(errs.Dispatch, "no-project-manifest", "resolve manifest path", err)
	}
	canon, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", errs.Wrap(errs.Dispatch, "no-project-manifest", "canonicalize manifest path", err)
	}
	return canon, nil
}

// exeSuffix is the OS executable-suffix convention proxies must normalize
// against (spec §4.7 step 4: "the user may include or omit the suffix").
func exeSuffix() string {
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ""
}

// InvokedName derives the dispatch name from argv[0]: its basename with any
// OS executable suffix stripped (spec §4.7 step 1).
func InvokedName(argv0 string) string {
	base := filepath.Base(argv0)
	if suffix := exeSuffix(); suffix != "" && strings.HasSuffix(strings.ToLower(base), suffix) {
		base = base[:len(base)-len(suffix)]
	}
	return base
}

// Dispatcher resolves invocations against a state root.
type Dispatcher struct {
	Root *state.Root
}

// New builds a Dispatcher over root.
func New(root *state.Root) *Dispatcher {
	return &Dispatcher{Root: root}
}

// Discover walks upward from dir to find the controlling project manifest
// (spec §4.7 step 2), returning it in the canonicalized form bindings are
// keyed by.
func (d *Dispatcher) Discover(dir string) (string, error) {
	found, err := manifest.Discover(dir)
	if err != nil {
		return "", err
	}
	return canonicalize(found)
}

// Resolve looks up the installation bound to manifestPath (spec §4.7 step
// 3). The path must already be canonicalized the way manifest.Load returns
// it, since that's the form bindings are keyed by.
func (d *Dispatcher) Resolve(manifestPath string) (string, error) {
	doc, err := d.Root.Load()
	if err != nil {
		return "", err
	}
	id, ok := doc.Bindings[manifestPath]
	if !ok {
		return "", errs.New(errs.Dispatch, "toolchain-not-installed", "no installation bound to "+manifestPath)
	}
	return id, nil
}

// Locate finds the executable matching name within installation id (spec
// §4.7 step 4): the stored file list is searched for a basename matching
// name with or without the platform executable suffix.
func (d *Dispatcher) Locate(installationID, name string) (string, error) {
	doc, err := d.Root.Load()
	if err != nil {
		return "", err
	}
	inst, ok := doc.Installations[installationID]
	if !ok {
		return "", errs.New(errs.State, "missing-binding", "no installation "+installationID+" recorded")
	}

	suffix := exeSuffix()
	if suffix != "" && strings.HasSuffix(strings.ToLower(name), suffix) {
		name = name[:len(name)-len(suffix)]
	}
	root := d.Root.InstallationDir(installationID)
	for _, f := range inst.Files {
		if !f.NeedsProxy {
			continue
		}
		base := filepath.Base(f.Path)
		candidate := base
		if suffix != "" && strings.HasSuffix(strings.ToLower(candidate), suffix) {
			candidate = candidate[:len(candidate)-len(suffix)]
		}
		if candidate == name {
			return filepath.Join(root, f.Path), nil
		}
	}
	return "", errs.New(errs.Dispatch, "binary-not-found", "no executable named "+name+" in installation "+installationID)
}

// Which performs stages 1-4 and returns the resolved path, without
// executing anything (spec §4.7 "which stops after stage 4").
func (d *Dispatcher) Which(cwd, name string) (string, error) {
	return d.WhichFrom(cwd, "", name)
}

// WhichFrom is Which, but skips the upward-discovery walk when manifestPath
// is non-empty: an explicit --project flag takes the walk's place rather
// than narrowing it (spec §6 "run [--project <p>]", "which [--project <p>]").
func (d *Dispatcher) WhichFrom(cwd, manifestPath, name string) (string, error) {
	var err error
	if manifestPath != "" {
		manifestPath, err = canonicalize(manifestPath)
	} else {
		manifestPath, err = d.Discover(cwd)
	}
	if err != nil {
		return "", err
	}
	id, err := d.Resolve(manifestPath)
	if err != nil {
		return "", err
	}
	return d.Locate(id, name)
}
