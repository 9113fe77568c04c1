package shared

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// RunLock enforces single-run execution against a sync state database.
// A run must refuse to start while another process holds the lock.
type RunLock struct {
	path string
	lock *flock.Flock
}

// NewRunLock creates a lock guarding the database at dbPath.
// The lock file lives next to the database so that two runs pointed at the
// same state always contend on the same file.
func NewRunLock(dbPath string) *RunLock {
	path := dbPath + ".lock"
	return &RunLock{path: path, lock: flock.New(path)}
}

// Acquire takes the lock without blocking. Returns ErrStateLocked when
// another run already holds it.
func (l *RunLock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	ok, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: lock held at %s", ErrStateLocked, l.path)
	}
	return nil
}

// Release drops the lock. Safe to call when the lock was never acquired.
func (l *RunLock) Release() error {
	return l.lock.Unlock()
}

// Path returns the lock file location.
func (l *RunLock) Path() string {
	return l.path
}
