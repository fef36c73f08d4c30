package trust

import (
	"encoding/json"
	"time"

	"github.com/criticalup/criticalup/internal/errs"
)

// Signature pairs a key id with the signature bytes produced by that key
// over the envelope's canonical payload digest.
type Signature struct {
	KeyID     KeyID  `json:"key_sha256"`
	Signature []byte `json:"signature"`
}

// Signable is implemented by payload types that can be carried inside a
// signed Envelope. SignedByRole names the role a key must hold to be
// accepted as a signer of this payload type.
type Signable interface {
	SignedByRole() Role
}

// Envelope is a signed wrapper around an arbitrary payload, mirroring
// criticaltrust's SignedPayload: the payload is retained in its originally
// serialized form (so the signed bytes are exactly reproducible) alongside
// an ordered list of signatures.
type Envelope struct {
	Signatures []Signature     `json:"signatures"`
	Payload    json.RawMessage `json:"signed"`
}

// KeySource resolves a key id (when present) or enumerates candidate keys of
// a role (when absent) during verification. Keychain implements this.
type KeySource interface {
	Get(id KeyID) (*PublicKey, bool)
	CandidatesForRole(role Role) []*PublicKey
	IsRevoked(contentSHA256 []byte) bool
}

// Verify checks that at least one signature in the envelope comes from a key
// in src that is trusted for role and not expired, then decodes the payload
// into out. Per SPEC_FULL.md supplemented feature 3, unmatched key ids and
// role mismatches are skipped, not treated as errors; only the absence of
// any matching signature is fatal. Decoding happens only after a signature
// has verified, so an attacker controlling the payload bytes gains nothing
// by having them parse before trust is established.
func (e *Envelope) Verify(src KeySource, role Role, out interface{}) error {
	canon, err := canonicalRaw(e.Payload)
	if err != nil {
		return err
	}
	digest := sha256Sum(canon)

	var sawCandidate bool
	for _, sig := range e.Signatures {
		var key *PublicKey
		if sig.KeyID != "" {
			k, ok := src.Get(sig.KeyID)
			if !ok {
				continue
			}
			key = k
		}

		candidates := []*PublicKey{key}
		if key == nil {
			candidates = src.CandidatesForRole(role)
		}

		for _, candidate := range candidates {
			if candidate == nil || candidate.Role != role {
				continue
			}
			sawCandidate = true
			if time.Now().After(candidate.Expiry) {
				continue
			}
			ok, verr := candidate.verifyRaw(digest, sig.Signature)
			if verr != nil || !ok {
				continue
			}
			// A matching, valid, unexpired signature was found. Revocation
			// of the payload's own content (when applicable) is checked by
			// the caller, since not every Signable participates in the
			// revocation ledger (the ledger itself must not be revocation
			// checked, to avoid circular logic).
			if err := json.Unmarshal(e.Payload, out); err != nil {
				return errs.Wrap(errs.Trust, "malformed-envelope", "decode verified payload", err)
			}
			return nil
		}
	}

	if !sawCandidate {
		return errs.New(errs.Trust, "role-mismatch", "no candidate key found for role "+string(role))
	}
	return errs.New(errs.Trust, "no-trusted-signature", "no signature verified under a trusted, unexpired key")
}

// canonicalRaw re-renders an already-serialized JSON payload in canonical
// form, so the bytes that get hashed/signed are independent of the original
// field order the payload happened to arrive in.
func canonicalRaw(payload json.RawMessage) ([]byte, error) {
	var generic interface{}
	if err := json.Unmarshal(payload, &generic); err != nil {
		return nil, errs.Wrap(errs.Trust, "malformed-envelope", "unmarshal payload for digest", err)
	}
	return canonicalize(generic)
}

// NewEnvelope serializes payload and wraps it, unsigned. Callers add
// signatures with AddSignature.
func NewEnvelope(payload interface{}) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errs.Wrap(errs.Trust, "malformed-envelope", "marshal payload", err)
	}
	return &Envelope{Payload: raw}, nil
}

// AddSignature signs the envelope's canonical payload with signer and
// appends the resulting signature. The signer hashes the message itself
// (SHA-256, per Algorithm), matching what the stdlib-based verifier in
// PublicKey.verifyRaw expects on the receiving end.
func (e *Envelope) AddSignature(signer Signer) error {
	canon, err := canonicalRaw(e.Payload)
	if err != nil {
		return err
	}
	sig, err := signer.Sign(canon)
	if err != nil {
		return errs.Wrap(errs.Trust, "malformed-envelope", "sign payload", err)
	}
	pub, err := signer.PublicKey()
	if err != nil {
		return errs.Wrap(errs.Trust, "malformed-envelope", "read signer public key", err)
	}
	e.Signatures = append(e.Signatures, Signature{KeyID: pub.ID(), Signature: sig})
	return nil
}
