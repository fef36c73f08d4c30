package installer

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/criticalup/criticalup/internal/errs"
	"github.com/criticalup/criticalup/internal/state"
)

// commit atomically moves a staged installation into its final location and
// records it in the state document (spec §4.5 step 5). The staging
// directory is always removed, win or lose, since nothing outside it is
// ever accessible from a committed binding before this returns.
func (ins *Installer) commit(id string, req Request, stagingDir string, files []state.FileRecord) error {
	final := ins.Root.InstallationDir(id)

	if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		os.RemoveAll(stagingDir)
		return errs.Wrap(errs.State, "state-write-failed", "create toolchains directory", err)
	}

	if err := renameInto(stagingDir, final); err != nil {
		os.RemoveAll(stagingDir)
		return err
	}

	doc, err := ins.Root.Load()
	if err != nil {
		return err
	}
	doc.Installations[id] = &state.Installation{
		ID:      id,
		Product: req.Product,
		Release: req.Release,
		Files:   files,
	}
	return ins.Root.Save(doc)
}

// renameInto commits src into dst. On every platform, an existing dst is
// first moved aside to a uniquely named sibling, then src is renamed into
// place, and the displaced directory is deleted afterward, per spec §9
// "Atomicity on all OSes". The displaced one is removed only after the
// staged directory is in place; between the two renames dst does not
// exist, and a crash there leaves the previous installation under its
// displaced name.
func renameInto(src, dst string) error {
	if _, err := os.Stat(dst); err == nil {
		displaced := dst + ".displaced-" + uuid.NewString()
		if err := os.Rename(dst, displaced); err != nil {
			return errs.Wrap(errs.State, "state-write-failed", "displace existing installation directory", err)
		}
		if err := os.Rename(src, dst); err != nil {
			os.Rename(displaced, dst)
			return errs.Wrap(errs.State, "state-write-failed", "rename staged installation into place", err)
		}
		os.RemoveAll(displaced)
		return nil
	}
	if err := os.Rename(src, dst); err != nil {
		return errs.Wrap(errs.State, "state-write-failed", "rename staged installation into place", err)
	}
	return nil
}
