package trust

import (
	"testing"
	"time"
)

func generateRootSigner(t *testing.T) (Signer, *PublicKey) {
	t.Helper()
	signer, err := NewInMemorySigner(RoleRoot)
	if err != nil {
		t.Fatalf("NewInMemorySigner: %v", err)
	}
	pub, err := signer.PublicKey()
	if err != nil {
		t.Fatalf("PublicKey: %v", err)
	}
	pub.Expiry = time.Now().Add(24 * time.Hour)
	return signer, pub
}

func TestEnvelopeVerifyRoundTrip(t *testing.T) {
	signer, pub := generateRootSigner(t)
	kc, err := NewKeychain(pub, false)
	if err != nil {
		t.Fatalf("NewKeychain: %v", err)
	}

	type payload struct {
		Value string `json:"value"`
	}

	env, err := NewEnvelope(payload{Value: "hello"})
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	if err := env.AddSignature(signer); err != nil {
		t.Fatalf("AddSignature: %v", err)
	}

	var out payload
	if err := env.Verify(kc, RoleRoot, &out); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if out.Value != "hello" {
		t.Errorf("got %q, want %q", out.Value, "hello")
	}
}

func TestEnvelopeVerifyUntrustedKey(t *testing.T) {
	_, rootPub := generateRootSigner(t)
	kc, err := NewKeychain(rootPub, false)
	if err != nil {
		t.Fatalf("NewKeychain: %v", err)
	}

	otherSigner, err := NewInMemorySigner(RoleRoot)
	if err != nil {
		t.Fatalf("NewInMemorySigner: %v", err)
	}

	env, err := NewEnvelope(map[string]string{"value": "x"})
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	if err := env.AddSignature(otherSigner); err != nil {
		t.Fatalf("AddSignature: %v", err)
	}

	var out map[string]string
	if err := env.Verify(kc, RoleRoot, &out); err == nil {
		t.Fatal("expected verification failure for untrusted key")
	}
}

func TestEnvelopeVerifyExpiredKey(t *testing.T) {
	signer, pub := generateRootSigner(t)
	pub.Expiry = time.Now().Add(-time.Hour)
	kc, err := NewKeychain(pub, false)
	if err != nil {
		t.Fatalf("NewKeychain: %v", err)
	}

	env, err := NewEnvelope(map[string]string{"value": "x"})
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	if err := env.AddSignature(signer); err != nil {
		t.Fatalf("AddSignature: %v", err)
	}

	var out map[string]string
	if err := env.Verify(kc, RoleRoot, &out); err == nil {
		t.Fatal("expected verification failure for expired key")
	}
}

func TestEnvelopeVerifyRoleMismatch(t *testing.T) {
	signer, pub := generateRootSigner(t)
	kc, err := NewKeychain(pub, false)
	if err != nil {
		t.Fatalf("NewKeychain: %v", err)
	}

	env, err := NewEnvelope(map[string]string{"value": "x"})
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	if err := env.AddSignature(signer); err != nil {
		t.Fatalf("AddSignature: %v", err)
	}

	var out map[string]string
	if err := env.Verify(kc, RolePackages, &out); err == nil {
		t.Fatal("expected verification failure for role mismatch")
	}
}

func TestPublicKeySupported(t *testing.T) {
	_, pub := generateRootSigner(t)
	if !pub.Supported() {
		t.Fatal("expected generated key to be supported")
	}

	unknownRole := *pub
	unknownRole.Role = RoleUnknown
	if unknownRole.Supported() {
		t.Fatal("expected unknown role to be unsupported")
	}

	unknownAlg := *pub
	unknownAlg.Algorithm = AlgorithmUnknown
	if unknownAlg.Supported() {
		t.Fatal("expected unknown algorithm to be unsupported")
	}
}

func TestKeychainNewRejectsNonRootRole(t *testing.T) {
	signer, err := NewInMemorySigner(RolePackages)
	if err != nil {
		t.Fatalf("NewInMemorySigner: %v", err)
	}
	pub, err := signer.PublicKey()
	if err != nil {
		t.Fatalf("PublicKey: %v", err)
	}

	if _, err := NewKeychain(pub, false); err == nil {
		t.Fatal("expected error constructing keychain from non-root key")
	}
}

func TestKeychainLoadAllMergesKeysAndRevocation(t *testing.T) {
	rootSigner, rootPub := generateRootSigner(t)
	kc, err := NewKeychain(rootPub, false)
	if err != nil {
		t.Fatalf("NewKeychain: %v", err)
	}

	releasesSigner, err := NewInMemorySigner(RoleReleases)
	if err != nil {
		t.Fatalf("NewInMemorySigner: %v", err)
	}
	releasesPub, err := releasesSigner.PublicKey()
	if err != nil {
		t.Fatalf("PublicKey: %v", err)
	}
	releasesPub.Expiry = time.Now().Add(time.Hour)

	doc := KeysDocument{
		Keys: []PublicKey{*releasesPub},
		RevocationInfo: &RevocationInfo{
			RevokedContentSHA256: [][]byte{[]byte("revoked-digest")},
			ExpiresAt:            time.Now().Add(200 * 24 * time.Hour),
		},
	}
	env, err := NewEnvelope(doc)
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	if err := env.AddSignature(rootSigner); err != nil {
		t.Fatalf("AddSignature: %v", err)
	}

	if err := kc.LoadAll(env); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}

	if _, ok := kc.Get(releasesPub.ID()); !ok {
		t.Error("expected releases key to be merged into keychain")
	}
	if !kc.IsRevoked([]byte("revoked-digest")) {
		t.Error("expected digest to be revoked")
	}
	if kc.IsRevoked([]byte("not-revoked")) {
		t.Error("did not expect unrelated digest to be revoked")
	}

	// Loading a second revocation ledger must fail (one-shot load).
	if err := kc.LoadAll(env); err == nil {
		t.Fatal("expected second LoadAll with a revocation ledger to fail")
	}
}

func TestKeychainLoadAllRejectsStaleRevocationOnline(t *testing.T) {
	rootSigner, rootPub := generateRootSigner(t)
	kc, err := NewKeychain(rootPub, false)
	if err != nil {
		t.Fatalf("NewKeychain: %v", err)
	}

	doc := KeysDocument{
		RevocationInfo: &RevocationInfo{
			RevokedContentSHA256: nil,
			ExpiresAt:            time.Now().Add(time.Hour), // well under the 90-day floor
		},
	}
	env, err := NewEnvelope(doc)
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	if err := env.AddSignature(rootSigner); err != nil {
		t.Fatalf("AddSignature: %v", err)
	}

	if err := kc.LoadAll(env); err == nil {
		t.Fatal("expected stale revocation ledger to be rejected in online mode")
	}
}

func TestKeychainLoadAllAllowsStaleRevocationOffline(t *testing.T) {
	rootSigner, rootPub := generateRootSigner(t)
	kc, err := NewKeychain(rootPub, true)
	if err != nil {
		t.Fatalf("NewKeychain: %v", err)
	}

	doc := KeysDocument{
		RevocationInfo: &RevocationInfo{
			ExpiresAt: time.Now().Add(time.Hour),
		},
	}
	env, err := NewEnvelope(doc)
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	if err := env.AddSignature(rootSigner); err != nil {
		t.Fatalf("AddSignature: %v", err)
	}

	if err := kc.LoadAll(env); err != nil {
		t.Fatalf("expected stale revocation ledger to be tolerated offline: %v", err)
	}
}
