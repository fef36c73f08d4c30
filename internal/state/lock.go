package state

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/criticalup/criticalup/internal/errs"
)

// staleLockThreshold mirrors the teacher's transaction lock: a lock file
// older than this is assumed to be left behind by a crashed process and is
// safe to clear, adapted from internal/transaction/lock.go.
const staleLockThreshold = 10 * time.Minute

// defaultLockTimeout bounds how long Acquire* will retry before giving up
// with a "busy" error (spec §5 "Lock acquisition has a bounded timeout").
const defaultLockTimeout = 30 * time.Second

const lockRetryInterval = 50 * time.Millisecond

// Lock guards the state document for the duration of an operation. Writers
// hold an exclusive lock; readers hold a shared lock. Exclusivity is
// enforced with a single O_CREATE|O_EXCL file the way the teacher's
// transaction lock does; the shared side additionally registers a reader
// marker so an incoming writer can see readers are active. This is
// cooperative, not kernel-enforced (there's no portable flock across the
// OSes this tool targets without an extra dependency the rest of the pack
// doesn't otherwise need) — every caller in this codebase goes through
// Acquire*, so the cooperative discipline holds in practice.
type Lock struct {
	dir        string
	exclusive  bool
	lockFile   *os.File
	readerFile string
}

func lockPath(dir string) string      { return filepath.Join(dir, "state.lock") }
func readersDir(dir string) string    { return filepath.Join(dir, "state.readers") }

// AcquireExclusive blocks (up to timeout) until no shared readers are
// registered and the exclusive lock file can be created.
func AcquireExclusive(dir string, timeout time.Duration) (*Lock, error) {
	if timeout <= 0 {
		timeout = defaultLockTimeout
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.Wrap(errs.State, "busy", "create state directory", err)
	}

	deadline := time.Now().Add(timeout)
	path := lockPath(dir)
	for {
		if hasNoReaders(dir) {
			file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
			if err == nil {
				writeLockMetadata(file)
				return &Lock{dir: dir, exclusive: true, lockFile: file}, nil
			}
			if !os.IsExist(err) {
				return nil, errs.Wrap(errs.State, "busy", "create lock file", err)
			}
			if stale, _ := isLockStale(path); stale {
				os.Remove(path)
				continue
			}
		}
		if time.Now().After(deadline) {
			return nil, errs.New(errs.State, "busy", "busy: another operation is in progress")
		}
		time.Sleep(lockRetryInterval)
	}
}

// AcquireShared blocks (up to timeout) until no exclusive lock is held, then
// registers as a reader.
func AcquireShared(dir string, timeout time.Duration) (*Lock, error) {
	if timeout <= 0 {
		timeout = defaultLockTimeout
	}
	rdir := readersDir(dir)
	if err := os.MkdirAll(rdir, 0o755); err != nil {
		return nil, errs.Wrap(errs.State, "busy", "create readers directory", err)
	}

	deadline := time.Now().Add(timeout)
	path := lockPath(dir)
	for {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			readerFile := filepath.Join(rdir, uuid.NewString()+".lock")
			if err := os.WriteFile(readerFile, []byte{}, 0o600); err != nil {
				return nil, errs.Wrap(errs.State, "busy", "register reader", err)
			}
			// Re-check: a writer may have raced us between the Stat and the
			// reader file write. If so, back off and retry rather than
			// proceeding alongside an exclusive holder.
			if _, err := os.Stat(path); err == nil {
				os.Remove(readerFile)
			} else {
				return &Lock{dir: dir, exclusive: false, readerFile: readerFile}, nil
			}
		}
		if time.Now().After(deadline) {
			return nil, errs.New(errs.State, "busy", "busy: another operation is in progress")
		}
		time.Sleep(lockRetryInterval)
	}
}

// Release gives up the lock.
func (l *Lock) Release() error {
	if l.exclusive {
		if l.lockFile != nil {
			l.lockFile.Close()
			l.lockFile = nil
		}
		if err := os.Remove(lockPath(l.dir)); err != nil && !os.IsNotExist(err) {
			return errs.Wrap(errs.State, "busy", "remove lock file", err)
		}
		return nil
	}
	if l.readerFile != "" {
		if err := os.Remove(l.readerFile); err != nil && !os.IsNotExist(err) {
			return errs.Wrap(errs.State, "busy", "remove reader marker", err)
		}
	}
	return nil
}

func hasNoReaders(dir string) bool {
	entries, err := os.ReadDir(readersDir(dir))
	if err != nil {
		return true
	}
	return len(entries) == 0
}

func writeLockMetadata(f *os.File) {
	data := []byte("pid=" + strconv.Itoa(os.Getpid()) + "\ntimestamp=" + time.Now().UTC().Format(time.RFC3339) + "\n")
	f.Write(data)
	f.Sync()
}

func isLockStale(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return time.Since(info.ModTime()) > staleLockThreshold, nil
}
