package state

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestDocumentSaveLoadRoundTrip(t *testing.T) {
	root := NewRoot(t.TempDir())
	doc := newDocument()
	doc.Installations["abc"] = &Installation{
		ID:      "abc",
		Product: "x",
		Release: "stable-25.02.0",
		Files: []FileRecord{
			{Path: "bin/rustc", SHA256: "deadbeef", NeedsProxy: true},
			{Path: "lib/libstd.so", SHA256: "feedface"},
		},
	}
	doc.Bind("/project/criticalup.toml", "abc")

	if err := root.Save(doc); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := root.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Bindings["/project/criticalup.toml"] != "abc" {
		t.Errorf("binding not preserved: %+v", loaded.Bindings)
	}
	if diff := cmp.Diff(doc.Installations["abc"], loaded.Installations["abc"]); diff != "" {
		t.Errorf("installation not preserved (-want +got):\n%s", diff)
	}
}

func TestDocumentLoadMissingReturnsEmpty(t *testing.T) {
	root := NewRoot(t.TempDir())
	doc, err := root.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(doc.Installations) != 0 || len(doc.Bindings) != 0 {
		t.Error("expected empty document for missing state file")
	}
}

func TestRefCountAndOrphans(t *testing.T) {
	doc := newDocument()
	doc.Installations["a"] = &Installation{ID: "a"}
	doc.Installations["b"] = &Installation{ID: "b"}
	doc.Bind("/p1/criticalup.toml", "a")
	doc.Bind("/p2/criticalup.toml", "a")

	if doc.RefCount("a") != 2 {
		t.Errorf("RefCount(a) = %d, want 2", doc.RefCount("a"))
	}
	if doc.RefCount("b") != 0 {
		t.Errorf("RefCount(b) = %d, want 0", doc.RefCount("b"))
	}

	orphans := doc.OrphanedInstallations()
	if len(orphans) != 1 || orphans[0] != "b" {
		t.Errorf("OrphanedInstallations = %v, want [b]", orphans)
	}

	doc.Unbind("/p1/criticalup.toml")
	if doc.RefCount("a") != 1 {
		t.Errorf("RefCount(a) after unbind = %d, want 1", doc.RefCount("a"))
	}
}

func TestAcquireExclusiveBlocksAcquireExclusive(t *testing.T) {
	dir := t.TempDir()
	l1, err := AcquireExclusive(dir, time.Second)
	if err != nil {
		t.Fatalf("first AcquireExclusive: %v", err)
	}
	defer l1.Release()

	if _, err := AcquireExclusive(dir, 200*time.Millisecond); err == nil {
		t.Fatal("expected second exclusive acquire to time out as busy")
	}
}

func TestAcquireSharedAllowsConcurrentReaders(t *testing.T) {
	dir := t.TempDir()
	l1, err := AcquireShared(dir, time.Second)
	if err != nil {
		t.Fatalf("first AcquireShared: %v", err)
	}
	defer l1.Release()

	l2, err := AcquireShared(dir, time.Second)
	if err != nil {
		t.Fatalf("second AcquireShared: %v", err)
	}
	defer l2.Release()
}

func TestAcquireExclusiveWaitsForReaders(t *testing.T) {
	dir := t.TempDir()
	reader, err := AcquireShared(dir, time.Second)
	if err != nil {
		t.Fatalf("AcquireShared: %v", err)
	}

	if _, err := AcquireExclusive(dir, 200*time.Millisecond); err == nil {
		t.Fatal("expected exclusive acquire to be blocked by an active reader")
	}

	if err := reader.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	excl, err := AcquireExclusive(dir, time.Second)
	if err != nil {
		t.Fatalf("AcquireExclusive after reader release: %v", err)
	}
	excl.Release()
}
