package shared

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Lock is an advisory, process-wide file lock guarding the target catalog against concurrent runs.
type Lock struct {
	fl *flock.Flock
}

// AcquireLock takes a non-blocking exclusive lock on path, creating parent directories as needed.
//
// Returns [ErrLockHeld] when another process already owns it.
func AcquireLock(path string) (*Lock, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create lock directory: %w", err)
		}
	}

	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLockHeld, path)
	}
	return &Lock{fl: fl}, nil
}

// Release unlocks the file. Safe to call on a nil Lock.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
