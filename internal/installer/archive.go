package installer

import (
	"archive/tar"
	"io"
	"os"
	"sort"
	"time"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/criticalup/criticalup/internal/errs"
)

// zeroTime is stamped on every archive entry so two archives of the same
// file set are byte-identical regardless of each file's on-disk mtime.
var zeroTime time.Time

// Archive streams installationID's directory into an uncompressed tarball
// at out, in lexicographic order of relative path, per spec §4.5 "Archive".
// Deterministic order is what makes the round-trip law in spec §8 hold:
// archive followed by extraction reproduces the file set byte-for-byte.
func (ins *Installer) Archive(installationID string, out io.Writer) error {
	doc, err := ins.Root.Load()
	if err != nil {
		return err
	}
	inst, ok := doc.Installations[installationID]
	if !ok {
		return errs.Newf(errs.State, "missing-binding", "no installation %q recorded", installationID)
	}

	paths := make([]string, len(inst.Files))
	for i, f := range inst.Files {
		paths[i] = f.Path
	}
	sort.Strings(paths)

	root := ins.Root.InstallationDir(installationID)
	tw := tar.NewWriter(out)
	for _, rel := range paths {
		full, err := securejoin.SecureJoin(root, rel)
		if err != nil {
			return errs.Wrap(errs.Integrity, "archive-path-traversal", "resolve file for archiving", err)
		}
		info, err := os.Stat(full)
		if err != nil {
			return errs.Wrap(errs.Integrity, "corrupted-installation", "stat file for archiving", err)
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return errs.Wrap(errs.Integrity, "corrupted-installation", "build archive header", err)
		}
		hdr.Name = rel
		hdr.ModTime = zeroTime
		if err := tw.WriteHeader(hdr); err != nil {
			return errs.Wrap(errs.Integrity, "corrupted-installation", "write archive header", err)
		}
		f, err := os.Open(full)
		if err != nil {
			return errs.Wrap(errs.Integrity, "corrupted-installation", "open file for archiving", err)
		}
		_, copyErr := io.Copy(tw, f)
		f.Close()
		if copyErr != nil {
			return errs.Wrap(errs.Integrity, "corrupted-installation", "copy file into archive", copyErr)
		}
	}
	if err := tw.Close(); err != nil {
		return errs.Wrap(errs.Integrity, "corrupted-installation", "finalize archive", err)
	}
	return nil
}
