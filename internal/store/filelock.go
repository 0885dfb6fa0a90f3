package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

var (
	// ErrLockTimeout indicates the lock was not acquired within the timeout
	ErrLockTimeout = errors.New("lock acquisition timed out")
)

// FileLock is an exclusive, cross-process lock backed by flock(2) on a lock
// file. Every acquisition opens its own file description, so goroutines of
// one process exclude each other as well.
type FileLock struct {
	path    string
	timeout time.Duration
}

// Lease is a held FileLock. It must be released exactly once.
type Lease struct {
	file *os.File
}

// NewFileLock creates a lock on path. Acquire gives up after timeout.
func NewFileLock(path string, timeout time.Duration) *FileLock {
	return &FileLock{path: path, timeout: timeout}
}

// Path returns the lock file path.
func (l *FileLock) Path() string {
	return l.path
}

// TryAcquire takes the lock without waiting. It returns a nil lease and no
// error when another holder has it.
func (l *FileLock) TryAcquire() (*Lease, error) {
	f, err := l.open()
	if err != nil {
		return nil, err
	}
	ok, err := tryFlock(f)
	if err != nil || !ok {
		_ = f.Close()
		return nil, err
	}
	return &Lease{file: f}, nil
}

// Acquire waits for the lock until the timeout expires or ctx is done.
func (l *FileLock) Acquire(ctx context.Context) (*Lease, error) {
	f, err := l.open()
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(l.timeout)
	backoff := 10 * time.Millisecond
	const maxBackoff = 500 * time.Millisecond

	for {
		ok, err := tryFlock(f)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		if ok {
			return &Lease{file: f}, nil
		}
		if !time.Now().Before(deadline) {
			_ = f.Close()
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, l.path)
		}

		wait := min(backoff, time.Until(deadline))
		select {
		case <-ctx.Done():
			_ = f.Close()
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// With runs fn while holding the lock.
func (l *FileLock) With(ctx context.Context, fn func() error) (err error) {
	lease, err := l.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := lease.Release(); rerr != nil && err == nil {
			err = rerr
		}
	}()
	return fn()
}

// Release unlocks and closes the lock file. Releasing a nil lease is a no-op.
func (le *Lease) Release() error {
	if le == nil || le.file == nil {
		return nil
	}
	err := syscall.Flock(int(le.file.Fd()), syscall.LOCK_UN)
	closeErr := le.file.Close()
	le.file = nil
	if err != nil {
		return fmt.Errorf("flock unlock failed: %w", err)
	}
	if closeErr != nil {
		return fmt.Errorf("close failed: %w", closeErr)
	}
	return nil
}

func (l *FileLock) open() (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}
	return f, nil
}

func tryFlock(f *os.File) (bool, error) {
	err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, syscall.EWOULDBLOCK) {
		return false, nil
	}
	return false, fmt.Errorf("flock failed: %w", err)
}
