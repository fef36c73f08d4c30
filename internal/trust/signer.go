package trust

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"

	sigsig "github.com/sigstore/sigstore/pkg/signature"

	"github.com/criticalup/criticalup/internal/errs"
)

// Signer is the signing-side capability abstraction (spec §4.1, §9
// "polymorphism of signing keys"): a signer can produce a signature over a
// message and report its own public key. The verification path never needs
// this interface; it exists for tests and the tooling that mints new signed
// envelopes.
type Signer interface {
	Sign(message []byte) ([]byte, error)
	PublicKey() (*PublicKey, error)
}

// inMemorySigner wraps an in-memory ECDSA private key behind a
// sigstore SignerVerifier, so the hashing and ASN.1 signature encoding is
// delegated to the same library the rest of the pack already depends on,
// rather than re-implemented here.
type inMemorySigner struct {
	sv   sigsig.SignerVerifier
	role Role
	pub  *ecdsa.PublicKey
}

// NewInMemorySigner generates a fresh P-256 key pair for the given role and
// wraps it as a Signer. Used by tests and by tooling that mints development
// keychains; never exercised on the verification path.
func NewInMemorySigner(role Role) (Signer, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, errs.Wrap(errs.Trust, "malformed-envelope", "generate key pair", err)
	}
	return newInMemorySigner(priv, role)
}

func newInMemorySigner(priv *ecdsa.PrivateKey, role Role) (Signer, error) {
	sv, err := sigsig.LoadECDSASignerVerifier(priv, crypto.SHA256)
	if err != nil {
		return nil, errs.Wrap(errs.Trust, "malformed-envelope", "load ECDSA signer", err)
	}
	return &inMemorySigner{sv: sv, role: role, pub: &priv.PublicKey}, nil
}

func (s *inMemorySigner) Sign(message []byte) ([]byte, error) {
	sig, err := s.sv.SignMessage(bytes.NewReader(message))
	if err != nil {
		return nil, errs.Wrap(errs.Trust, "malformed-envelope", "sign message", err)
	}
	return sig, nil
}

func (s *inMemorySigner) PublicKey() (*PublicKey, error) {
	raw, err := x509.MarshalPKIXPublicKey(s.pub)
	if err != nil {
		return nil, errs.Wrap(errs.Trust, "malformed-envelope", "marshal public key", err)
	}
	return &PublicKey{
		Role:      s.role,
		Algorithm: AlgorithmECDSAP256SHA256,
		Raw:       raw,
	}, nil
}

// KMSHandle is a handle to a remote signing key (e.g. a cloud KMS key)
// identified by a resource name; it defers to a caller-supplied
// sigsig.SignerVerifier (typically built from a KMS-specific scheme URI via
// sigstore's kms provider registry) to perform the actual signing operation,
// so this package stays free of any particular cloud SDK.
type KMSHandle struct {
	ResourceName string
	sv           sigsig.SignerVerifier
	role         Role
}

// NewKMSHandle wraps an already-constructed sigstore SignerVerifier (backed
// by a KMS key) as a Signer. The caller is responsible for resolving
// resourceName to sv via sigstore's kms.Get(ctx, resourceName, ...).
func NewKMSHandle(resourceName string, sv sigsig.SignerVerifier, role Role) *KMSHandle {
	return &KMSHandle{ResourceName: resourceName, sv: sv, role: role}
}

func (k *KMSHandle) Sign(message []byte) ([]byte, error) {
	sig, err := k.sv.SignMessage(bytes.NewReader(message))
	if err != nil {
		return nil, errs.Wrap(errs.Trust, "malformed-envelope", "sign message via KMS", err)
	}
	return sig, nil
}

func (k *KMSHandle) PublicKey() (*PublicKey, error) {
	pub, err := k.sv.PublicKey()
	if err != nil {
		return nil, errs.Wrap(errs.Trust, "malformed-envelope", "fetch KMS public key", err)
	}
	ecdsaPub, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return nil, errs.New(errs.Trust, "bad-curve-or-point", "KMS key is not ECDSA")
	}
	raw, err := x509.MarshalPKIXPublicKey(ecdsaPub)
	if err != nil {
		return nil, errs.Wrap(errs.Trust, "malformed-envelope", "marshal KMS public key", err)
	}
	return &PublicKey{
		Role:      k.role,
		Algorithm: AlgorithmECDSAP256SHA256,
		Raw:       raw,
	}, nil
}
