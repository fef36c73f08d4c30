package installer

import (
	"archive/tar"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/sourcegraph/conc/pool"

	"github.com/criticalup/criticalup/internal/catalog"
	"github.com/criticalup/criticalup/internal/errs"
	"github.com/criticalup/criticalup/internal/state"
	"github.com/criticalup/criticalup/internal/trust"
)

// packageManifestEntry is the conventional path, inside every package
// archive, of the signed file manifest describing the archive's contents
// (criticaltrust's Package/PackageManifest, spec §4.2).
const packageManifestEntry = "criticaltrust-manifest.json"

// stagedFile pairs an extracted file's staging-relative path with its
// recorded digest and whether it needs a proxy registered.
type stagedFile struct {
	record     state.FileRecord
	needsProxy bool
}

// acquireAndStage fetches every package archive and extracts it into a fresh
// staging directory outside the final installation path (spec §4.5 steps
// 3-4), returning the staging directory, the combined file manifest, and the
// set of executable names the installation exposes.
func (ins *Installer) acquireAndStage(ctx context.Context, plan *Plan) (string, []state.FileRecord, []string, error) {
	archives, err := ins.acquireAll(ctx, plan.Packages)
	if err != nil {
		return "", nil, nil, err
	}

	stagingDir := filepath.Join(ins.Root.ToolchainsDir(), ".staging-"+uuid.NewString())
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return "", nil, nil, errs.Wrap(errs.State, "state-write-failed", "create staging directory", err)
	}

	results := make([][]stagedFile, len(plan.Packages))

	p := pool.New().WithContext(ctx).WithMaxGoroutines(maxConcurrentAcquires).WithCancelOnError()
	for i := range plan.Packages {
		i := i
		pkg := plan.Packages[i]
		data := archives[i]
		p.Go(func(ctx context.Context) error {
			files, err := ins.extractPackage(stagingDir, pkg, data)
			if err != nil {
				return err
			}
			results[i] = files
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		os.RemoveAll(stagingDir)
		return "", nil, nil, err
	}

	var records []state.FileRecord
	var execNames []string
	for _, files := range results {
		for _, f := range files {
			records = append(records, f.record)
			if f.needsProxy {
				execNames = append(execNames, filepath.Base(f.record.Path))
			}
		}
	}

	return stagingDir, records, execNames, nil
}

// extractPackage decompresses and untars a single package archive into
// stagingDir, verifying its embedded package manifest's signature and every
// listed file's digest, and refusing any entry whose path would escape
// stagingDir (spec §4.5 step 4, §8 "archive entry with .. is rejected").
func (ins *Installer) extractPackage(stagingDir string, pkg catalog.ResolvedPackage, data []byte) ([]stagedFile, error) {
	entries, err := readArchive(pkg.Entry.Format, data)
	if err != nil {
		return nil, err
	}

	rawManifest, ok := entries[packageManifestEntry]
	if !ok {
		return nil, errs.Newf(errs.Integrity, "corrupted-installation", "package %q: missing embedded manifest", pkg.Name)
	}
	var env trust.Envelope
	if err := jsonUnmarshal(rawManifest, &env); err != nil {
		return nil, errs.Wrap(errs.Configuration, "malformed-envelope", "decode package manifest envelope", err)
	}
	manifest, err := catalog.DecodePackageManifest(&env, ins.Keychain)
	if err != nil {
		return nil, err
	}

	byPath := make(map[string]catalog.PackageFile, len(manifest.Files))
	for _, f := range manifest.Files {
		byPath[f.Path] = f
	}

	out := make([]stagedFile, 0, len(manifest.Files))
	for _, pf := range manifest.Files {
		raw, ok := entries[pf.Path]
		if !ok {
			return nil, errs.Newf(errs.Integrity, "corrupted-installation", "package %q: file %q listed in manifest but not in archive", pkg.Name, pf.Path)
		}

		sum := sha256.Sum256(raw)
		got := hex.EncodeToString(sum[:])
		if got != pf.SHA256 {
			return nil, errs.Newf(errs.Integrity, "digest-mismatch", "package %q: file %q digest mismatch: got %s want %s", pkg.Name, pf.Path, got, pf.SHA256)
		}

		for _, part := range strings.Split(filepath.ToSlash(pf.Path), "/") {
			if part == ".." {
				return nil, errs.Newf(errs.Integrity, "archive-path-traversal", "package %q: file %q escapes the staging root", pkg.Name, pf.Path)
			}
		}
		dest, err := securejoin.SecureJoin(stagingDir, pf.Path)
		if err != nil {
			return nil, errs.Wrap(errs.Integrity, "archive-path-traversal", fmt.Sprintf("package %q: file %q", pkg.Name, pf.Path), err)
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return nil, errs.Wrap(errs.State, "state-write-failed", "create staged parent directory", err)
		}
		mode := os.FileMode(pf.PosixMode)
		if mode == 0 {
			mode = 0o644
		}
		if err := os.WriteFile(dest, raw, mode); err != nil {
			return nil, errs.Wrap(errs.State, "state-write-failed", "write staged file", err)
		}

		out = append(out, stagedFile{
			record:     state.FileRecord{Path: pf.Path, SHA256: pf.SHA256, NeedsProxy: pf.NeedsProxy},
			needsProxy: pf.NeedsProxy,
		})
	}

	return out, nil
}

// readArchive decompresses and untars the archive bytes wholesale into a
// path -> content map. Packages are small enough (individual toolchain
// components) that materializing the full set in memory before the
// per-file digest/path checks is the simpler and safer approach; it also
// lets the embedded package manifest be verified before any file is
// written to disk. The files themselves are checked and written one at a
// time, so a failing check can follow earlier writes into the staging
// directory.
func readArchive(format string, data []byte) (map[string][]byte, error) {
	var tarReader *tar.Reader
	switch format {
	case "tar":
		tarReader = tar.NewReader(bytes.NewReader(data))
	case "tar.zst":
		zr, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, errs.Wrap(errs.Integrity, "corrupted-installation", "open zstd stream", err)
		}
		defer zr.Close()
		tarReader = tar.NewReader(zr)
	default:
		return nil, errs.Newf(errs.Integrity, "corrupted-installation", "unsupported archive format %q", format)
	}

	out := make(map[string][]byte)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errs.Wrap(errs.Integrity, "corrupted-installation", "read archive entry", err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}
		buf := make([]byte, header.Size)
		if _, err := io.ReadFull(tarReader, buf); err != nil {
			return nil, errs.Wrap(errs.Integrity, "corrupted-installation", "read archive entry body", err)
		}
		out[filepath.ToSlash(header.Name)] = buf
	}
	return out, nil
}
