package installer

import (
	"crypto/sha256"
	"encoding/hex"
	"os"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/criticalup/criticalup/internal/errs"
)

// Mismatch names one file whose on-disk digest no longer matches its
// recorded file-manifest entry.
type Mismatch struct {
	Path string
	Want string
	Got  string
}

// Verify recomputes, for installationID, every recorded file's digest
// against its file manifest (spec §4.5 "Verify"). A non-empty mismatch
// slice with a nil error means the installation is present but corrupted;
// a non-nil error means the installation or a file within it could not be
// read at all.
func (ins *Installer) Verify(installationID string) ([]Mismatch, error) {
	doc, err := ins.Root.Load()
	if err != nil {
		return nil, err
	}
	inst, ok := doc.Installations[installationID]
	if !ok {
		return nil, errs.Newf(errs.State, "missing-binding", "no installation %q recorded", installationID)
	}

	root := ins.Root.InstallationDir(installationID)
	var mismatches []Mismatch
	for _, rec := range inst.Files {
		path, err := securejoin.SecureJoin(root, rec.Path)
		if err != nil {
			return nil, errs.Wrap(errs.Integrity, "archive-path-traversal", "resolve recorded file path", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			mismatches = append(mismatches, Mismatch{Path: rec.Path, Want: rec.SHA256, Got: "missing"})
			continue
		}
		sum := sha256.Sum256(data)
		got := hex.EncodeToString(sum[:])
		if got != rec.SHA256 {
			mismatches = append(mismatches, Mismatch{Path: rec.Path, Want: rec.SHA256, Got: got})
		}
	}
	return mismatches, nil
}
