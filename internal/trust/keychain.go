package trust

import (
	"sync"
	"time"

	"github.com/criticalup/criticalup/internal/errs"
)

// minRevocationFreshness is the shortest remaining validity a revocation
// ledger may have at verification time; ledgers closer to expiry than this
// are treated as not fresh enough and rejected outright (SPEC_FULL.md
// supplemented feature 1, grounded on criticaltrust's
// MAX_REVOCATION_INFO_EXPIRATION_DURATION = 90 days).
const minRevocationFreshness = 90 * 24 * time.Hour

// KeysDocument is the payload of the signed "keys document" envelope: a
// flat list of non-root keys to merge into the keychain, plus the
// (separately-role-scoped) revocation ledger.
type KeysDocument struct {
	Keys           []PublicKey    `json:"keys"`
	RevocationInfo *RevocationInfo `json:"revocation_info,omitempty"`
}

// SignedByRole requires the pinned root itself: the keys document is the
// mechanism that bootstraps every non-root key, so at the point it's
// ingested nothing but the root is trusted yet (spec §4.1 "start with the
// root keys; fetch and verify the signed keys document using only keys
// already in the keychain whose role is permitted to sign keys").
func (KeysDocument) SignedByRole() Role { return RoleRoot }

// RevocationInfo is a signed list of artifact digests that must never be
// honored, plus the ledger's own expiry (original_source/crates/
// criticaltrust/src/revocation_info.rs).
type RevocationInfo struct {
	RevokedContentSHA256 [][]byte  `json:"revoked_content_sha256"`
	ExpiresAt            time.Time `json:"expires_at"`
}

func (RevocationInfo) SignedByRole() Role { return RoleRevocation }

// Keychain holds the set of keys trusted at a point in time, built up from a
// pinned root by verifying successive keys documents. It also carries at
// most one loaded revocation ledger.
type Keychain struct {
	mu       sync.RWMutex
	keys     map[KeyID]*PublicKey
	rootID   KeyID
	revoked  map[string]struct{} // revoked digest bytes, used directly as a string key
	revInfo  *RevocationInfo
	offline  bool
}

// NewKeychain constructs a keychain pinned to trustRoot, which must have
// RoleRoot. This matches criticaltrust's Keychain::new, which rejects any
// other role for the trust root (Error::WrongKeyRoleForTrustRoot).
func NewKeychain(trustRoot *PublicKey, offline bool) (*Keychain, error) {
	if trustRoot.Role != RoleRoot {
		return nil, errs.New(errs.Trust, "wrong-key-role-for-trust-root", "trust root key must have role root")
	}
	if !trustRoot.Supported() {
		return nil, errs.New(errs.Trust, "role-mismatch", "trust root key is not a supported algorithm")
	}
	kc := &Keychain{
		keys:    make(map[KeyID]*PublicKey),
		revoked: make(map[string]struct{}),
		offline: offline,
	}
	id := trustRoot.ID()
	kc.keys[id] = trustRoot
	kc.rootID = id
	return kc, nil
}

// Get implements KeySource.
func (k *Keychain) Get(id KeyID) (*PublicKey, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	key, ok := k.keys[id]
	return key, ok
}

// CandidatesForRole implements KeySource: when an envelope's signature omits
// a key id, every trusted key of the expected role is tried.
func (k *Keychain) CandidatesForRole(role Role) []*PublicKey {
	k.mu.RLock()
	defer k.mu.RUnlock()
	var out []*PublicKey
	for _, key := range k.keys {
		if key.Role == role {
			out = append(out, key)
		}
	}
	return out
}

// IsRevoked implements KeySource: reports whether contentSHA256 appears in
// the loaded revocation ledger. A ledger loaded in offline mode is honored
// even when stale. An absent ledger revokes nothing, online or offline (a
// ledger is supplemental, not mandatory, per §9's "Open question"
// resolution — revocation is authoritative only when present).
func (k *Keychain) IsRevoked(contentSHA256 []byte) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.revInfo == nil {
		return false
	}
	_, ok := k.revoked[string(contentSHA256)]
	return ok
}

// LoadAll verifies and merges a keys document envelope into the keychain.
// If the envelope fails to verify under the root role, nothing is merged
// and the error is returned. Individual keys whose role/algorithm is
// unsupported are skipped rather than aborting the load. Loading a
// revocation ledger is one-shot: a second ledger in the same process is
// rejected with an error rather than replacing the first (SPEC_FULL.md
// supplemented feature 2, criticaltrust's Error::RevocationInfoOverwriting);
// the keys of that second document are still merged.
func (k *Keychain) LoadAll(env *Envelope) error {
	var doc KeysDocument
	if err := env.Verify(k, RoleRoot, &doc); err != nil {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	for i := range doc.Keys {
		key := doc.Keys[i]
		if !key.Supported() {
			continue
		}
		k.keys[key.ID()] = &key
	}

	if doc.RevocationInfo != nil {
		if k.revInfo != nil {
			return errs.New(errs.State, "revocation-info-overwriting", "revocation info already loaded")
		}
		if err := k.checkFreshness(doc.RevocationInfo); err != nil {
			return err
		}
		k.revInfo = doc.RevocationInfo
		for _, d := range doc.RevocationInfo.RevokedContentSHA256 {
			k.revoked[string(d)] = struct{}{}
		}
	}

	return nil
}

func (k *Keychain) checkFreshness(info *RevocationInfo) error {
	if k.offline {
		// Stale lists are still honored against downloaded caches in
		// offline mode (spec §4.1 "Revocation").
		return nil
	}
	if time.Until(info.ExpiresAt) < minRevocationFreshness {
		return errs.New(errs.Trust, "revoked-artifact", "revocation ledger is not fresh enough; refresh required before proceeding")
	}
	return nil
}

// RevocationInfo exposes the currently loaded ledger, or nil.
func (k *Keychain) RevocationInfo() *RevocationInfo {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.revInfo
}
