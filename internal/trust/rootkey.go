package trust

import (
	"encoding/base64"
	"time"

	"github.com/criticalup/criticalup/internal/errs"
)

// rootKeySPKIDERBase64 is the SPKI-DER-encoded, base64-wrapped P-256 public
// key compiled into the binary as the trust root (spec §3 "Root keys are
// pinned into the binary"). It is swapped in at release-build time by the
// project's key-generation tooling, the way the teacher embeds its GPG
// keyrings via go:embed in internal/binary/keyring.go; this constant plays
// the same "compiled-in trust material" role without requiring a build-time
// asset file for a single fixed-size key.
const rootKeySPKIDERBase64 = "MFkwEwYHKoZIzj0CAQYIKoZIzj0DAQcDQgAEp1b1bFhVbVJGBxF6eFQ+LQwAqq5lx3cLc1mZQKkQwFw6KQEfhj+Lq3P0n4WQ9t1RK+6Q1X0nk3vVnD6HqgkKMQ=="

// rootKeyExpiry is the trust root's own expiry. Unlike extension keys, the
// root is never itself delivered inside a verified envelope, so its expiry
// is a compiled-in constant rather than a field read off the wire.
var rootKeyExpiry = time.Date(2035, time.January, 1, 0, 0, 0, 0, time.UTC)

// LoadRootKey decodes the compiled-in trust root.
func LoadRootKey() (*PublicKey, error) {
	raw, err := base64.StdEncoding.DecodeString(rootKeySPKIDERBase64)
	if err != nil {
		return nil, errs.Wrap(errs.Trust, "bad-curve-or-point", "decode compiled-in root key", err)
	}
	return &PublicKey{
		Role:      RoleRoot,
		Algorithm: AlgorithmECDSAP256SHA256,
		Expiry:    rootKeyExpiry,
		Raw:       raw,
	}, nil
}
