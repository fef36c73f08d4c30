// Package state persists the on-disk record of installations and the
// project manifests bound to them (spec §4.4). The atomic write-then-rename
// pattern is adapted from the teacher's internal/transaction/transaction.go
// Save/Load; the filesystem locking is adapted from its lock.go, extended
// here with a shared-reader mode per spec §5.
package state

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/criticalup/criticalup/internal/errs"
)

// FileRecord is one installed file's relative path and digest, as recorded
// in an installation's file manifest.
type FileRecord struct {
	Path       string `json:"path"`
	SHA256     string `json:"sha256"`
	NeedsProxy bool   `json:"needs_proxy"`
}

// Installation is an on-disk materialized (product, release, package set)
// combination.
type Installation struct {
	ID      string       `json:"id"`
	Product string       `json:"product"`
	Release string       `json:"release"`
	Files   []FileRecord `json:"files"`
}

// Document is the full persisted state: every known installation and every
// project-manifest binding pointing at one.
type Document struct {
	Version       int                `json:"version"`
	Installations map[string]*Installation `json:"installations"`
	Bindings      map[string]string  `json:"bindings"` // canonical project manifest path -> installation id
}

const documentVersion = 1

func newDocument() *Document {
	return &Document{
		Version:       documentVersion,
		Installations: make(map[string]*Installation),
		Bindings:      make(map[string]string),
	}
}

// Root is a handle to a state root directory (spec §6 layout), threaded
// explicitly through operations rather than kept as an ambient singleton
// (spec §9 "Global state").
type Root struct {
	Path string
}

// NewRoot wraps an existing state root path. Use DefaultRoot to derive the
// OS-conventional location.
func NewRoot(path string) *Root { return &Root{Path: path} }

func (r *Root) documentPath() string    { return filepath.Join(r.Path, "state.json") }
func (r *Root) ToolchainsDir() string   { return filepath.Join(r.Path, "toolchains") }
func (r *Root) ProxyBinDir() string     { return filepath.Join(r.Path, "proxy", "bin") }
func (r *Root) InstallationDir(id string) string {
	return filepath.Join(r.ToolchainsDir(), id)
}

// Load reads the state document, tolerating a missing file (a fresh root)
// by returning an empty Document. A truncated/partially written temp file
// never reaches this path because writes are rename-committed; any JSON
// decode error is still surfaced rather than silently ignored, since it can
// only mean on-disk corruption.
func (r *Root) Load() (*Document, error) {
	data, err := os.ReadFile(r.documentPath())
	if os.IsNotExist(err) {
		return newDocument(), nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.State, "state-read-failed", "read state document", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errs.Wrap(errs.State, "state-read-failed", "decode state document", err)
	}
	if doc.Installations == nil {
		doc.Installations = make(map[string]*Installation)
	}
	if doc.Bindings == nil {
		doc.Bindings = make(map[string]string)
	}
	return &doc, nil
}

// Save writes doc atomically (write-temp-then-rename), per spec §4.4.
func (r *Root) Save(doc *Document) error {
	if err := os.MkdirAll(r.Path, 0o755); err != nil {
		return errs.Wrap(errs.State, "state-write-failed", "create state root", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errs.Wrap(errs.State, "state-write-failed", "marshal state document", err)
	}
	tmp := r.documentPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errs.Wrap(errs.State, "state-write-failed", "write temp state document", err)
	}
	if err := os.Rename(tmp, r.documentPath()); err != nil {
		os.Remove(tmp)
		return errs.Wrap(errs.State, "state-write-failed", "rename state document into place", err)
	}
	if df, err := os.Open(r.Path); err == nil {
		df.Sync()
		df.Close()
	}
	return nil
}

// RefCount reports how many bindings currently point at installation id.
func (d *Document) RefCount(id string) int {
	n := 0
	for _, bound := range d.Bindings {
		if bound == id {
			n++
		}
	}
	return n
}

// Bind records that manifestPath depends on installation id, replacing any
// prior binding for that path.
func (d *Document) Bind(manifestPath, installationID string) {
	d.Bindings[manifestPath] = installationID
}

// Unbind removes the binding for manifestPath, if any. The installation
// itself is left on disk with its refcount decremented implicitly (since
// RefCount is derived, not stored) until Collect sweeps it.
func (d *Document) Unbind(manifestPath string) {
	delete(d.Bindings, manifestPath)
}

// OrphanedInstallations returns the ids of installations with no remaining
// binding.
func (d *Document) OrphanedInstallations() []string {
	var orphans []string
	for id := range d.Installations {
		if d.RefCount(id) == 0 {
			orphans = append(orphans, id)
		}
	}
	return orphans
}

// ExportedExecutables returns the union, over all bound installations, of
// executable names each exposes — the set proxy/bin/ must mirror (spec §3
// invariant on proxies).
func (d *Document) ExportedExecutables(needsProxy map[string][]string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, id := range d.Bindings {
		for _, name := range needsProxy[id] {
			out[name] = struct{}{}
		}
	}
	return out
}
