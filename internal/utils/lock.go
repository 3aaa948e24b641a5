package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

const lockFileName = "canvaswatch.lock"

// StateLock manages a file-based lock for the state directory, so two
// canvaswatch processes cannot interleave snapshot writes.
type StateLock struct {
	lock *flock.Flock
	path string
}

// NewStateLock creates a new lock inside the given state directory.
func NewStateLock(stateDir string) (*StateLock, error) {
	absDir, err := filepath.Abs(stateDir)
	if err != nil {
		return nil, fmt.Errorf("could not resolve state dir: %w", err)
	}
	if err := os.MkdirAll(absDir, 0o755); err != nil {
		return nil, err
	}
	lockPath := filepath.Join(absDir, lockFileName)
	return &StateLock{
		lock: flock.New(lockPath),
		path: lockPath,
	}, nil
}

// Lock acquires the state lock, waiting if necessary.
// It will print a message if it has to wait.
func (l *StateLock) Lock() error {
	locked, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock on %s: %w", l.path, err)
	}

	if !locked {
		fmt.Fprintf(os.Stderr, "Another canvaswatch process is using this state directory, waiting for it to finish...\n")
		if err := l.lock.Lock(); err != nil {
			return fmt.Errorf("failed to acquire lock on %s after waiting: %w", l.path, err)
		}
	}
	return nil
}

// Unlock releases the state lock.
func (l *StateLock) Unlock() error {
	if err := l.lock.Unlock(); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to release lock on %s: %w", l.path, err)
	}
	return nil
}

// DefaultStateDir resolves the state directory path.
func DefaultStateDir(stateDir string) (string, error) {
	if stateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", "canvaswatch"), nil
	}
	return filepath.Abs(stateDir)
}
