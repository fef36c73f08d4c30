package installer

import (
	"archive/tar"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/criticalup/criticalup/internal/catalog"
	"github.com/criticalup/criticalup/internal/corelog"
	"github.com/criticalup/criticalup/internal/hostinfo"
	"github.com/criticalup/criticalup/internal/state"
	"github.com/criticalup/criticalup/internal/transport"
	"github.com/criticalup/criticalup/internal/trust"
)

var farFuture = time.Now().Add(365 * 24 * time.Hour)

// buildTarPackage assembles a package archive containing one executable
// file plus its signed package manifest, returning the archive bytes and
// its own digest (used as the release manifest's expected package digest).
func buildTarPackage(t *testing.T, packagesSigner trust.Signer, content []byte) ([]byte, string) {
	t.Helper()
	fileSum := sha256.Sum256(content)
	fileDigest := hex.EncodeToString(fileSum[:])

	pm := catalog.PackageManifest{
		Version: catalog.SupportedManifestVersion,
		Product: "rustc",
		Package: "rustc-x86_64-unknown-linux-gnu",
		Files: []catalog.PackageFile{
			{Path: "bin/rustc", PosixMode: 0o755, SHA256: fileDigest, NeedsProxy: true},
		},
	}
	env, err := trust.NewEnvelope(pm)
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	if err := env.AddSignature(packagesSigner); err != nil {
		t.Fatalf("AddSignature: %v", err)
	}
	envBytes, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	writeEntry(t, tw, packageManifestEntry, envBytes)
	writeEntry(t, tw, "bin/rustc", content)
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}

	archiveSum := sha256.Sum256(buf.Bytes())
	return buf.Bytes(), hex.EncodeToString(archiveSum[:])
}

func writeEntry(t *testing.T, tw *tar.Writer, name string, content []byte) {
	t.Helper()
	hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(content))}
	if err := tw.WriteHeader(hdr); err != nil {
		t.Fatalf("write header %s: %v", name, err)
	}
	if _, err := tw.Write(content); err != nil {
		t.Fatalf("write body %s: %v", name, err)
	}
}

// setupKeychain builds a trust-rooted keychain with a releases key and a
// packages key already merged in, returning the keychain plus both signers.
func setupKeychain(t *testing.T) (*trust.Keychain, trust.Signer, trust.Signer) {
	t.Helper()
	root, err := trust.NewInMemorySigner(trust.RoleRoot)
	if err != nil {
		t.Fatalf("root signer: %v", err)
	}
	rootPub, err := root.PublicKey()
	if err != nil {
		t.Fatalf("root pub: %v", err)
	}
	rootPub.Expiry = farFuture

	kc, err := trust.NewKeychain(rootPub, false)
	if err != nil {
		t.Fatalf("NewKeychain: %v", err)
	}

	releasesSigner, err := trust.NewInMemorySigner(trust.RoleReleases)
	if err != nil {
		t.Fatalf("releases signer: %v", err)
	}
	releasesPub, err := releasesSigner.PublicKey()
	if err != nil {
		t.Fatalf("releases pub: %v", err)
	}
	releasesPub.Expiry = farFuture

	packagesSigner, err := trust.NewInMemorySigner(trust.RolePackages)
	if err != nil {
		t.Fatalf("packages signer: %v", err)
	}
	packagesPub, err := packagesSigner.PublicKey()
	if err != nil {
		t.Fatalf("packages pub: %v", err)
	}
	packagesPub.Expiry = farFuture

	doc := trust.KeysDocument{Keys: []trust.PublicKey{*releasesPub, *packagesPub}}
	env, err := trust.NewEnvelope(doc)
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	if err := env.AddSignature(root); err != nil {
		t.Fatalf("AddSignature: %v", err)
	}
	if err := kc.LoadAll(env); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}

	return kc, releasesSigner, packagesSigner
}

func TestInstallHappyPath(t *testing.T) {
	kc, releasesSigner, packagesSigner := setupKeychain(t)

	archive, archiveDigest := buildTarPackage(t, packagesSigner, []byte("#!/bin/sh\necho rustc\n"))

	var manifestURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/packages/rustc.tar", func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	})
	mux.HandleFunc("/manifest.json", func(w http.ResponseWriter, r *http.Request) {
		manifest := catalog.ReleaseManifest{
			Version: catalog.SupportedManifestVersion,
			Product: "rustc",
			Releases: map[string]catalog.Release{
				"stable-25.02.0": {
					Packages: map[string]catalog.PackageEntry{
						"rustc-x86_64-unknown-linux-gnu": {URL: manifestURL, SHA256: archiveDigest, Format: "tar"},
					},
				},
			},
		}
		env, err := trust.NewEnvelope(manifest)
		if err != nil {
			t.Fatalf("NewEnvelope: %v", err)
		}
		if err := env.AddSignature(releasesSigner); err != nil {
			t.Fatalf("AddSignature: %v", err)
		}
		data, err := json.Marshal(env)
		if err != nil {
			t.Fatalf("marshal envelope: %v", err)
		}
		w.Write(data)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	manifestURL = srv.URL + "/packages/rustc.tar"

	root := state.NewRoot(t.TempDir())
	cache := transport.NewCache(root.Path)
	client := transport.NewClient(cache)
	host := &hostinfo.Info{OS: "linux", Arch: "amd64", Libc: "gnu", Triple: "x86_64-unknown-linux-gnu"}

	ins := New(root, client, kc, host, corelog.Noop())
	id, err := ins.Install(context.Background(), Request{
		Product:         "rustc",
		Release:         "stable-25.02.0",
		Packages:        []string{"rustc-${host-triple}"},
		ManifestCatalog: srv.URL + "/manifest.json",
		ProjectManifest: "/project/criticalup.toml",
	})
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty installation id")
	}

	mismatches, err := ins.Verify(id)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(mismatches) != 0 {
		t.Errorf("unexpected mismatches: %+v", mismatches)
	}
}

func TestInstallSharedAcrossProjects(t *testing.T) {
	kc, releasesSigner, packagesSigner := setupKeychain(t)
	archive, archiveDigest := buildTarPackage(t, packagesSigner, []byte("#!/bin/sh\necho rustc\n"))

	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/packages/rustc.tar", func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	})
	mux.HandleFunc("/manifest.json", func(w http.ResponseWriter, r *http.Request) {
		manifest := catalog.ReleaseManifest{
			Version: catalog.SupportedManifestVersion,
			Product: "rustc",
			Releases: map[string]catalog.Release{
				"stable-25.02.0": {
					Packages: map[string]catalog.PackageEntry{
						"rustc-x86_64-unknown-linux-gnu": {URL: srv.URL + "/packages/rustc.tar", SHA256: archiveDigest, Format: "tar"},
					},
				},
			},
		}
		env, _ := trust.NewEnvelope(manifest)
		env.AddSignature(releasesSigner)
		data, _ := json.Marshal(env)
		w.Write(data)
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	root := state.NewRoot(t.TempDir())
	cache := transport.NewCache(root.Path)
	client := transport.NewClient(cache)
	host := &hostinfo.Info{OS: "linux", Arch: "amd64", Libc: "gnu", Triple: "x86_64-unknown-linux-gnu"}
	ins := New(root, client, kc, host, corelog.Noop())

	req1 := Request{Product: "rustc", Release: "stable-25.02.0", Packages: []string{"rustc-${host-triple}"}, ManifestCatalog: srv.URL + "/manifest.json", ProjectManifest: "/p1/criticalup.toml"}
	req2 := req1
	req2.ProjectManifest = "/p2/criticalup.toml"

	id1, err := ins.Install(context.Background(), req1)
	if err != nil {
		t.Fatalf("first Install: %v", err)
	}
	id2, err := ins.Install(context.Background(), req2)
	if err != nil {
		t.Fatalf("second Install: %v", err)
	}
	if id1 != id2 {
		t.Errorf("expected shared installation id, got %s and %s", id1, id2)
	}

	doc, err := root.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(doc.Installations) != 1 {
		t.Errorf("expected one installation, got %d", len(doc.Installations))
	}
	if len(doc.Bindings) != 2 {
		t.Errorf("expected two bindings, got %d", len(doc.Bindings))
	}
}
