package state

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/criticalup/criticalup/internal/errs"
)

// credential is the on-disk form of the stored download-server token
// (spec §4.3 "Authentication", §6 "auth set"/"auth remove").
type credential struct {
	Token string `json:"token"`
}

func credentialPath(root string) string { return filepath.Join(root, "credentials.json") }

// SaveToken persists token, replacing any previously stored one. The file
// is written with owner-only permissions since it holds a bearer secret.
func (r *Root) SaveToken(token string) error {
	if err := os.MkdirAll(r.Path, 0o755); err != nil {
		return errs.Wrap(errs.State, "state-write-failed", "create state root", err)
	}
	data, err := json.Marshal(credential{Token: token})
	if err != nil {
		return errs.Wrap(errs.State, "state-write-failed", "marshal credential", err)
	}
	tmp := credentialPath(r.Path) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errs.Wrap(errs.State, "state-write-failed", "write credential", err)
	}
	if err := os.Rename(tmp, credentialPath(r.Path)); err != nil {
		os.Remove(tmp)
		return errs.Wrap(errs.State, "state-write-failed", "rename credential into place", err)
	}
	return nil
}

// LoadToken returns the stored token, or "" if none has been set.
func (r *Root) LoadToken() (string, error) {
	data, err := os.ReadFile(credentialPath(r.Path))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", errs.Wrap(errs.State, "state-read-failed", "read credential", err)
	}
	var c credential
	if err := json.Unmarshal(data, &c); err != nil {
		return "", errs.Wrap(errs.State, "state-read-failed", "decode credential", err)
	}
	return c.Token, nil
}

// RemoveToken deletes the stored token, if any.
func (r *Root) RemoveToken() error {
	if err := os.Remove(credentialPath(r.Path)); err != nil && !os.IsNotExist(err) {
		return errs.Wrap(errs.State, "state-write-failed", "remove credential", err)
	}
	return nil
}
