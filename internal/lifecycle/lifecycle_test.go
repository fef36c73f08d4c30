package lifecycle

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/criticalup/criticalup/internal/manifest"
	"github.com/criticalup/criticalup/internal/state"
)

func TestInitWritesDefaultManifest(t *testing.T) {
	dir := t.TempDir()
	if err := Init(dir, "rustc", "stable-25.02.0", false, nil); err != nil {
		t.Fatalf("Init: %v", err)
	}

	_, product, _, err := manifest.Load(filepath.Join(dir, manifest.FileName))
	if err != nil {
		t.Fatalf("Load synthesized manifest: %v", err)
	}
	if product != "rustc" {
		t.Errorf("product = %q, want rustc", product)
	}
}

func TestInitPrintsToWriter(t *testing.T) {
	var buf bytes.Buffer
	if err := Init("", "rustc", "stable-25.02.0", true, &buf); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("expected manifest bytes written to buffer")
	}
}

func TestCleanIsIdempotent(t *testing.T) {
	root := state.NewRoot(t.TempDir())
	doc, err := root.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	doc.Installations["orphan"] = &state.Installation{ID: "orphan"}
	if err := os.MkdirAll(root.InstallationDir("orphan"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := root.Save(doc); err != nil {
		t.Fatalf("Save: %v", err)
	}

	ops := &Ops{Root: root}

	first, err := ops.Clean()
	if err != nil {
		t.Fatalf("first Clean: %v", err)
	}
	if len(first.RemovedInstallations) != 1 {
		t.Fatalf("expected one removed installation, got %v", first.RemovedInstallations)
	}

	second, err := ops.Clean()
	if err != nil {
		t.Fatalf("second Clean: %v", err)
	}
	if len(second.RemovedInstallations) != 0 {
		t.Errorf("expected no removals on second Clean, got %v", second.RemovedInstallations)
	}
}
