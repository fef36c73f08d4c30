// Package transport implements the content-addressed download cache and the
// HTTP client that fills it, including conditional revalidation, retry with
// backoff, offline mode, and bearer-token authentication (spec §4.3). The
// retry/backoff shape and atomic-write-then-rename pattern are grounded on
// the teacher's internal/binary/download.go; the on-disk sharded cache
// layout is grounded on aweris-cafs/internal/store/local.go.
package transport

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/criticalup/criticalup/internal/errs"
)

// Category partitions the cache directory into the three kinds of entry
// spec §6 names: keys documents, release manifests, and package archives.
type Category string

const (
	CategoryKeys      Category = "keys"
	CategoryManifests Category = "manifests"
	CategoryPackages  Category = "packages"
)

// Sidecar holds the HTTP validators and digest needed to revalidate and
// trust a cache entry, stored alongside the payload blob (spec §6 "Cache
// entry format").
type Sidecar struct {
	URL          string `json:"url"`
	ETag         string `json:"etag,omitempty"`
	LastModified string `json:"last_modified,omitempty"`
	SHA256       string `json:"sha256"`
}

// Cache is the on-disk, content-addressed store of downloaded bytes, rooted
// at <state_root>/cache/.
type Cache struct {
	root string
}

// NewCache opens (without creating) a cache rooted at root.
func NewCache(root string) *Cache {
	return &Cache{root: root}
}

func (c *Cache) dir(cat Category) string {
	return filepath.Join(c.root, "cache", string(cat))
}

// keyFor derives the stable on-disk basename for a URL: the hex SHA-256 of
// the URL string, sharded by its first two characters the way aweris-cafs
// shards object digests.
func keyFor(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

func (c *Cache) paths(cat Category, url string) (payload, sidecar string) {
	key := keyFor(url)
	dir := filepath.Join(c.dir(cat), key[:2])
	return filepath.Join(dir, key+".bin"), filepath.Join(dir, key+".json")
}

// Entry is a cache hit: the stored bytes and their validators.
type Entry struct {
	Payload []byte
	Sidecar Sidecar
}

// Get reads the cached entry for url, if any.
func (c *Cache) Get(cat Category, url string) (*Entry, bool, error) {
	payloadPath, sidecarPath := c.paths(cat, url)

	sidecarBytes, err := os.ReadFile(sidecarPath)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.Wrap(errs.State, "cache-read-failed", "read cache sidecar", err)
	}
	var sc Sidecar
	if err := json.Unmarshal(sidecarBytes, &sc); err != nil {
		// A partially written sidecar is treated as a miss, not a hard
		// error (spec §4.4 "reads tolerate partially written temporaries").
		return nil, false, nil
	}

	payload, err := os.ReadFile(payloadPath)
	if err != nil {
		return nil, false, nil
	}

	return &Entry{Payload: payload, Sidecar: sc}, true, nil
}

// Put atomically replaces the cached entry for url (spec §4.3 step 2: "write
// to temporary, rename").
func (c *Cache) Put(cat Category, url string, payload []byte, sc Sidecar) error {
	payloadPath, sidecarPath := c.paths(cat, url)
	dir := filepath.Dir(payloadPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrap(errs.State, "cache-write-failed", "create cache directory", err)
	}

	if err := writeAtomic(dir, payloadPath, payload); err != nil {
		return err
	}

	sidecarBytes, err := json.Marshal(sc)
	if err != nil {
		return errs.Wrap(errs.State, "cache-write-failed", "marshal cache sidecar", err)
	}
	return writeAtomic(dir, sidecarPath, sidecarBytes)
}

func writeAtomic(dir, finalPath string, data []byte) error {
	tmp := filepath.Join(dir, ".tmp-"+uuid.NewString())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errs.Wrap(errs.State, "cache-write-failed", "write temp file", err)
	}
	if err := os.Rename(tmp, finalPath); err != nil {
		os.Remove(tmp)
		return errs.Wrap(errs.State, "cache-write-failed", "rename temp file into place", err)
	}
	return nil
}
