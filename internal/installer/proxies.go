package installer

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/criticalup/criticalup/internal/errs"
	"github.com/criticalup/criticalup/internal/state"
)

// proxyExeSuffix is the OS-specific proxy executable suffix (spec §6
// "proxy/bin/<executable-names> (with .exe on Windows)").
func proxyExeSuffix() string {
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ""
}

// proxyPayloadName is the sibling binary every proxy/bin/ entry is a copy
// (or link) of. criticalup itself dispatches on subcommand name, not on
// os.Args[0], so it cannot double as the payload the way a single combined
// binary could (criticalup-core/src/binary_proxies.rs); criticalup-proxy is
// the dedicated binary that dispatches on invoked name at runtime instead
// (spec §4.5 step 6, §4.7).
const proxyPayloadName = "criticalup-proxy"

// proxyPayloadPath locates criticalup-proxy alongside the running
// criticalup executable, since the two are built and shipped together.
func proxyPayloadPath() (string, error) {
	self, err := os.Executable()
	if err != nil {
		return "", errs.Wrap(errs.State, "state-write-failed", "locate running executable", err)
	}
	if resolved, err := filepath.EvalSymlinks(self); err == nil {
		self = resolved
	}
	payload := filepath.Join(filepath.Dir(self), proxyPayloadName+proxyExeSuffix())
	if _, err := os.Stat(payload); err != nil {
		return "", errs.Wrap(errs.State, "state-write-failed", "locate "+proxyPayloadName+" alongside "+self, err)
	}
	return payload, nil
}

// RegenerateProxies recomputes the set of proxy executables from doc's
// bindings and reconciles proxy/bin/ to match exactly, adding any missing
// entries and removing any that no longer correspond to a bound
// installation's exported executables (spec §4.4 Collect, spec §3
// invariant on proxies).
func (ins *Installer) RegenerateProxies(doc *state.Document) error {
	needsProxy := make(map[string][]string)
	for id, inst := range doc.Installations {
		for _, f := range inst.Files {
			if !f.NeedsProxy {
				continue
			}
			needsProxy[id] = append(needsProxy[id], filepath.Base(f.Path))
		}
	}

	wanted := doc.ExportedExecutables(needsProxy)

	binDir := ins.Root.ProxyBinDir()
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return errs.Wrap(errs.State, "state-write-failed", "create proxy bin directory", err)
	}

	existing, err := os.ReadDir(binDir)
	if err != nil {
		return errs.Wrap(errs.State, "state-write-failed", "list proxy bin directory", err)
	}
	present := make(map[string]struct{}, len(existing))
	for _, e := range existing {
		present[e.Name()] = struct{}{}
	}

	suffix := proxyExeSuffix()
	var payload string
	for name := range wanted {
		fileName := name + suffix
		if _, ok := present[fileName]; ok {
			continue
		}
		if payload == "" {
			payload, err = proxyPayloadPath()
			if err != nil {
				return err
			}
		}
		dest := filepath.Join(binDir, fileName)
		if err := installProxyBinary(payload, dest); err != nil {
			return err
		}
		ins.Log.Debug("proxy installed", "name", fileName)
	}

	for fileName := range present {
		base := fileName
		if suffix != "" && len(base) > len(suffix) && base[len(base)-len(suffix):] == suffix {
			base = base[:len(base)-len(suffix)]
		}
		if _, ok := wanted[base]; ok {
			continue
		}
		if err := os.Remove(filepath.Join(binDir, fileName)); err != nil && !os.IsNotExist(err) {
			return errs.Wrap(errs.State, "state-write-failed", "remove stale proxy", err)
		}
		ins.Log.Debug("proxy removed", "name", fileName)
	}

	return nil
}

// installProxyBinary places a proxy at dest. A hard link is tried first
// since every proxy is byte-identical to payload; a copy is the fallback
// when linking isn't possible (crossing filesystems, or an OS that
// disallows it).
func installProxyBinary(payload, dest string) error {
	if err := os.Link(payload, dest); err == nil {
		return nil
	}
	data, err := os.ReadFile(payload)
	if err != nil {
		return errs.Wrap(errs.State, "state-write-failed", "read criticalup-proxy payload", err)
	}
	if err := os.WriteFile(dest, data, 0o755); err != nil {
		return errs.Wrap(errs.State, "state-write-failed", "write proxy binary", err)
	}
	return nil
}
