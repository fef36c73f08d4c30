package proxy

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/criticalup/criticalup/internal/errs"
)

// linkRecord is the small descriptor the companion toolchain ecosystem
// reads to discover criticalup's proxy directory as an externally managed
// toolchain (e.g. a rustup-style "toolchain link"). Its location is
// <state_root>/link.json rather than a system-wide registry, since this
// core never touches shared configuration (spec §1 Non-goals).
type linkRecord struct {
	Name      string `json:"name"`
	ProxyPath string `json:"path"`
}

func linkPath(root string) string { return filepath.Join(root, "link.json") }

// LinkCreate registers the proxy directory under name (spec §4.7 "link
// create registers the proxy directory as a named external toolchain").
func (d *Dispatcher) LinkCreate(name string) error {
	rec := linkRecord{Name: name, ProxyPath: d.Root.ProxyBinDir()}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return errs.Wrap(errs.State, "state-write-failed", "marshal link record", err)
	}
	if err := os.MkdirAll(d.Root.Path, 0o755); err != nil {
		return errs.Wrap(errs.State, "state-write-failed", "create state root", err)
	}
	tmp := linkPath(d.Root.Path) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errs.Wrap(errs.State, "state-write-failed", "write link record", err)
	}
	if err := os.Rename(tmp, linkPath(d.Root.Path)); err != nil {
		os.Remove(tmp)
		return errs.Wrap(errs.State, "state-write-failed", "rename link record into place", err)
	}
	return nil
}

// LinkRemove reverses LinkCreate.
func (d *Dispatcher) LinkRemove() error {
	if err := os.Remove(linkPath(d.Root.Path)); err != nil && !os.IsNotExist(err) {
		return errs.Wrap(errs.State, "state-write-failed", "remove link record", err)
	}
	return nil
}

// LinkShow returns the currently registered link record, if any.
func (d *Dispatcher) LinkShow() (*linkRecord, error) {
	data, err := os.ReadFile(linkPath(d.Root.Path))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.State, "state-read-failed", "read link record", err)
	}
	var rec linkRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errs.Wrap(errs.State, "state-read-failed", "decode link record", err)
	}
	return &rec, nil
}
