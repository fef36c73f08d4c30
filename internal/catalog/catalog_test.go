package catalog

import (
	"testing"
	"time"

	"github.com/criticalup/criticalup/internal/hostinfo"
	"github.com/criticalup/criticalup/internal/trust"
)

func testKeychain(t *testing.T) (*trust.Keychain, trust.Signer) {
	t.Helper()
	signer, err := trust.NewInMemorySigner(trust.RoleReleases)
	if err != nil {
		t.Fatalf("NewInMemorySigner: %v", err)
	}
	// A throwaway root key signs a keys document carrying the releases key;
	// the keychain package's own tests cover the multi-role closure.
	rootSigner, err := trust.NewInMemorySigner(trust.RoleRoot)
	if err != nil {
		t.Fatalf("NewInMemorySigner: %v", err)
	}
	rootPub, err := rootSigner.PublicKey()
	if err != nil {
		t.Fatalf("PublicKey: %v", err)
	}
	rootPub.Expiry = time.Now().Add(time.Hour)
	kc, err := trust.NewKeychain(rootPub, false)
	if err != nil {
		t.Fatalf("NewKeychain: %v", err)
	}

	releasesPub, err := signer.PublicKey()
	if err != nil {
		t.Fatalf("PublicKey: %v", err)
	}
	releasesPub.Expiry = time.Now().Add(time.Hour)
	doc := trust.KeysDocument{Keys: []trust.PublicKey{*releasesPub}}
	env, err := trust.NewEnvelope(doc)
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	if err := env.AddSignature(rootSigner); err != nil {
		t.Fatalf("AddSignature: %v", err)
	}
	if err := kc.LoadAll(env); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}

	return kc, signer
}

func TestDecodeVerifiedAndResolve(t *testing.T) {
	kc, signer := testKeychain(t)

	manifest := ReleaseManifest{
		Version: 1,
		Product: "x",
		Releases: map[string]Release{
			"stable-25.02.0": {
				Packages: map[string]PackageEntry{
					"c-x86_64-unknown-linux-gnu": {URL: "https://example/c", SHA256: "abc", Format: "tar.zst"},
					"s-x86_64-unknown-linux-gnu": {URL: "https://example/s", SHA256: "def", Format: "tar.zst"},
				},
			},
		},
	}

	env, err := trust.NewEnvelope(manifest)
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	if err := env.AddSignature(signer); err != nil {
		t.Fatalf("AddSignature: %v", err)
	}

	decoded, err := DecodeVerified(env, kc)
	if err != nil {
		t.Fatalf("DecodeVerified: %v", err)
	}

	host := &hostinfo.Info{Triple: "x86_64-unknown-linux-gnu"}
	resolved, err := decoded.Resolve("stable-25.02.0", []string{"c-${host-triple}", "s-${host-triple}"}, host)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(resolved) != 2 {
		t.Fatalf("got %d resolved packages, want 2", len(resolved))
	}
	if resolved[0].Name != "c-x86_64-unknown-linux-gnu" {
		t.Errorf("resolved[0].Name = %q", resolved[0].Name)
	}
}

func TestResolveUnknownPackage(t *testing.T) {
	manifest := &ReleaseManifest{
		Version: 1,
		Product: "x",
		Releases: map[string]Release{
			"stable-25.02.0": {Packages: map[string]PackageEntry{}},
		},
	}
	host := &hostinfo.Info{Triple: "x86_64-unknown-linux-gnu"}
	if _, err := manifest.Resolve("stable-25.02.0", []string{"missing"}, host); err == nil {
		t.Fatal("expected error for unknown package")
	}
}

func TestDecodeVerifiedRejectsUnknownVersion(t *testing.T) {
	kc, signer := testKeychain(t)
	manifest := ReleaseManifest{Version: 2, Product: "x"}
	env, err := trust.NewEnvelope(manifest)
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	if err := env.AddSignature(signer); err != nil {
		t.Fatalf("AddSignature: %v", err)
	}
	if _, err := DecodeVerified(env, kc); err == nil {
		t.Fatal("expected error for unsupported manifest version")
	}
}
