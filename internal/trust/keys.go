// Package trust implements the signature and revocation core: public key
// representation, signed envelopes, a keychain extended from a pinned root
// by keys documents that the root itself signs (keys delivered that way are
// not used to admit further keys), and a revocation ledger with a minimum
// freshness window. It is grounded on criticaltrust's keys/signatures model
// (original_source/crates/criticaltrust), rendered in the teacher's idiom:
// plain structs, explicit constructors, errors classified through
// internal/errs rather than a bespoke error enum per package.
package trust

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"time"

	"github.com/criticalup/criticalup/internal/errs"
)

// Role restricts what a key is permitted to sign. A key presented for a
// payload whose Signable role does not match its own role is never trusted
// for that payload, independent of signature validity.
type Role string

const (
	RoleRoot       Role = "root"
	RolePackages   Role = "packages"
	RoleReleases   Role = "releases"
	RoleRedirects  Role = "redirects"
	RoleRevocation Role = "revocation"
	RoleUnknown    Role = "unknown"
)

// Algorithm identifies the signature scheme a key uses. CriticalUp fixes on
// a single scheme (spec §4.1); the type exists so that an unrecognized value
// arriving over the wire is rejected explicitly rather than silently
// defaulting.
type Algorithm string

const (
	AlgorithmECDSAP256SHA256 Algorithm = "ecdsa-p256-sha256-spki-der"
	AlgorithmUnknown         Algorithm = "unknown"
)

// KeyID is a stable, short identifier for a public key: the base64 encoding
// of the SHA-256 digest of its raw SPKI-DER bytes.
type KeyID string

// PublicKey is a trust-root or trust-extension key as delivered inside a
// signed envelope (or compiled into the binary for the root).
type PublicKey struct {
	Role      Role
	Algorithm Algorithm
	Expiry    time.Time
	Raw       []byte // SPKI DER-encoded public key bytes
}

// ID computes the key's content-derived identifier.
func (k *PublicKey) ID() KeyID {
	sum := sha256.Sum256(k.Raw)
	return KeyID(base64.StdEncoding.EncodeToString(sum[:]))
}

// Supported reports whether the key's role and algorithm are both
// recognized. A syntactically valid key can still be unsupported; this is
// checked independently of, and prior to, any signature verification
// (SPEC_FULL.md supplemented feature 4).
func (k *PublicKey) Supported() bool {
	if k.Role == RoleUnknown || k.Role == "" {
		return false
	}
	return k.Algorithm == AlgorithmECDSAP256SHA256
}

// parsedECDSA parses the key's raw SPKI-DER bytes into an *ecdsa.PublicKey,
// failing if the key is not on the expected curve.
func (k *PublicKey) parsedECDSA() (*ecdsa.PublicKey, error) {
	pub, err := x509.ParsePKIXPublicKey(k.Raw)
	if err != nil {
		return nil, errs.Wrap(errs.Trust, "bad-curve-or-point", "parse public key", err)
	}
	ecdsaKey, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return nil, errs.New(errs.Trust, "bad-curve-or-point", "key is not ECDSA")
	}
	if ecdsaKey.Curve != elliptic.P256() {
		return nil, errs.New(errs.Trust, "bad-curve-or-point", "key is not on P-256")
	}
	return ecdsaKey, nil
}

// verifyRaw checks an ECDSA signature over digest using this key, ignoring
// role/expiry/revocation — those are checked by the caller in Verify.
func (k *PublicKey) verifyRaw(digest, signature []byte) (bool, error) {
	ecdsaKey, err := k.parsedECDSA()
	if err != nil {
		return false, err
	}
	return ecdsa.VerifyASN1(ecdsaKey, digest, signature), nil
}
