package mht2pdf

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFileName is the lock file kept at the top of every output root.
const LockFileName = ".mht2pdf.lock"

// File permission constants.
const (
	dirPermissions  = 0o750 // rwxr-x---: owner full, group read+execute
	filePermissions = 0o644 // rw-r--r--: owner read+write, others read
)

// OutputLock is an exclusive claim on an output root.
type OutputLock struct {
	path string
	lock *flock.Flock
}

// LockOutputRoot creates root if needed and takes its lock without
// waiting. A root that cannot be created or written is ErrOutputRoot, one
// already locked by another run is ErrLockHeld; both wrap ErrConfig.
func LockOutputRoot(root string) (*OutputLock, error) {
	if err := os.MkdirAll(root, dirPermissions); err != nil {
		return nil, fmt.Errorf("%w: %w: %s: %v", ErrConfig, ErrOutputRoot, root, err)
	}

	path := filepath.Join(root, LockFileName)
	l := flock.New(path)
	ok, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %s: %v", ErrConfig, ErrOutputRoot, path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %w: %s", ErrConfig, ErrLockHeld, path)
	}
	return &OutputLock{path: path, lock: l}, nil
}

// Path returns the lock file location.
func (l *OutputLock) Path() string {
	return l.path
}

// Unlock releases the lock. The lock file stays in place.
func (l *OutputLock) Unlock() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}
